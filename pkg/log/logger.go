// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in licenses/BSD-golang.txt.

// Portions of this file are additionally subject to the following
// license and copyright.
//
// Copyright 2018 Irfan Sharif.
// Copyright 2018 The Kura Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Portions of this code originated in the standard library 'log' package.

package log

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Logger writes leveled logs to an io.Writer, with headers as determined by
// its flags. Loggers are immutable once built; Tag returns a derived copy.
type Logger struct {
	w        io.Writer
	flag     Flag
	basePath string // stripped from Llongfile names, optional
	tags     string // pre-rendered "[k=v k=v] " prefix, optional
}

const newline = "\n"

// New returns a new Logger writing to a synchronized os.Stderr with LstdFlags,
// as overridden by the provided options.
func New(options ...option) *Logger {
	l := &Logger{
		w:    DefaultWriter(),
		flag: LstdFlags,
	}
	for _, option := range options {
		option(l)
	}
	return l
}

// Discarder returns a Logger configured to discard all writes.
func Discarder() *Logger {
	return New(Writer(ioutil.Discard))
}

// Tag returns a logger that prefixes every message with key=value, after any
// tags l already carries.
func (l *Logger) Tag(key string, value interface{}) *Logger {
	tagged := *l
	kv := fmt.Sprintf("%s=%v", key, value)
	if l.tags == "" {
		tagged.tags = "[" + kv + "] "
	} else {
		tagged.tags = strings.TrimSuffix(l.tags, "] ") + " " + kv + "] "
	}
	return &tagged
}

// Info logs to the INFO log. Arguments are handled in the manner of
// fmt.Println.
func (l *Logger) Info(v ...interface{}) {
	l.log(InfoMode, fmt.Sprintln(v...))
}

// Infof logs to the INFO log. Arguments are handled in the manner of
// fmt.Printf; a newline is appended at the end.
func (l *Logger) Infof(format string, v ...interface{}) {
	l.log(InfoMode, fmt.Sprintf(format+newline, v...))
}

func (l *Logger) Warn(v ...interface{}) {
	l.log(WarnMode, fmt.Sprintln(v...))
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	l.log(WarnMode, fmt.Sprintf(format+newline, v...))
}

func (l *Logger) Error(v ...interface{}) {
	l.log(ErrorMode, fmt.Sprintln(v...))
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.log(ErrorMode, fmt.Sprintf(format+newline, v...))
}

// Fatal logs to the FATAL log and exits with status 255. Fatal statements are
// never filtered out.
func (l *Logger) Fatal(v ...interface{}) {
	l.log(FatalMode, fmt.Sprintln(v...))
	os.Exit(255)
}

func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.log(FatalMode, fmt.Sprintf(format+newline, v...))
	os.Exit(255)
}

func (l *Logger) Debug(v ...interface{}) {
	l.log(DebugMode, fmt.Sprintln(v...))
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	l.log(DebugMode, fmt.Sprintf(format+newline, v...))
}

// DebugEnabled reports whether debug statements in the caller's file would be
// emitted, so callers can skip building expensive debug output.
func (l *Logger) DebugEnabled() bool {
	file, _ := caller(1)
	return enabled(DebugMode, filepath.Base(file))
}

// log must only be called from the exported logging methods; the call site
// of interest is two frames up.
func (l *Logger) log(lmode Mode, data string) {
	file, line := caller(2)
	bfile := filepath.Base(file)

	if GetTracePoint(fmt.Sprintf("%s:%d", bfile, line)) {
		// Skip logger.log and the exported wrapper.
		l.w.Write(stacktrace(2))
	}

	if !enabled(lmode, bfile) {
		return
	}

	var buf bytes.Buffer
	buf.Write(l.header(lmode, time.Now(), file, line))
	buf.WriteString(l.tags)
	buf.WriteString(data)
	l.w.Write(buf.Bytes())
}

// enabled decides whether a statement at lmode in file bfile is emitted. File
// overrides win over the global mode; fatal statements always go through.
func enabled(lmode Mode, bfile string) bool {
	if fmode, ok := GetFileLogMode(bfile); ok {
		return fmode&lmode != DisabledMode || lmode&FatalMode != DisabledMode
	}
	return GetGlobalLogMode()&lmode != DisabledMode || lmode&FatalMode != DisabledMode
}

// header formats the log header as per l.flag:
//
//   I181016 06:33:04.606396 pkg/adapter/adapter.go:42]
func (l *Logger) header(lmode Mode, t time.Time, file string, line int) []byte {
	var buf []byte
	if l.flag&Lmode != 0 {
		buf = append(buf, lmode.byte())
	}
	if l.flag&LUTC != 0 {
		t = t.UTC()
	}
	if l.flag&Ldate != 0 {
		year, month, day := t.Date()
		if year < 2000 {
			year = 2000
		}
		itoa(&buf, year-2000, 2)
		itoa(&buf, int(month), 2)
		itoa(&buf, day, 2)
		if l.flag&(Ltime|Lmicroseconds) != 0 {
			buf = append(buf, ' ')
		}
	}
	if l.flag&(Ltime|Lmicroseconds) != 0 {
		hour, min, sec := t.Clock()
		itoa(&buf, hour, 2)
		buf = append(buf, ':')
		itoa(&buf, min, 2)
		buf = append(buf, ':')
		itoa(&buf, sec, 2)
		if l.flag&Lmicroseconds != 0 {
			buf = append(buf, '.')
			itoa(&buf, t.Nanosecond()/1e3, 6)
		}
	}
	buf = append(buf, ' ')

	if l.flag&(Lshortfile|Llongfile) != 0 {
		if l.flag&Lshortfile != 0 {
			file = filepath.Base(file)
		} else if l.basePath != "" {
			file = strings.TrimPrefix(strings.TrimPrefix(file, l.basePath), "/")
		}
		buf = append(buf, file...)
		buf = append(buf, ':')
		itoa(&buf, line, -1)
		buf = append(buf, "] "...)
	}
	return buf
}

// Cheap integer to fixed-width decimal ASCII. Give a negative width to avoid
// zero-padding.
func itoa(buf *[]byte, i int, wid int) {
	// Assemble decimal in reverse order.
	var b [20]byte
	bp := len(b) - 1
	for i >= 10 || wid > 1 {
		wid--
		q := i / 10
		b[bp] = byte('0' + i - q*10)
		bp--
		i = q
	}
	// i < 10
	b[bp] = byte('0' + i)
	*buf = append(*buf, b[bp:]...)
}

// stacktrace returns the stack trace of the current goroutine with the n
// innermost callers (and stacktrace itself) removed. debug.Stack prints two
// lines per frame, after a one-line goroutine header.
func stacktrace(skip int) []byte {
	skip = 2*skip + 2 /* debug.Stack */ + 2 /* stacktrace */

	lines := bytes.Split(debug.Stack(), []byte("\n"))
	if 1+skip > len(lines) {
		return debug.Stack()
	}
	trimmed := append([][]byte{lines[0]}, lines[1+skip:]...)
	return bytes.Join(trimmed, []byte("\n"))
}

// caller returns the file and line number depth frames above its own caller.
func caller(depth int) (file string, line int) {
	_, file, line, ok := runtime.Caller(depth + 1)
	if !ok {
		file = "[???]"
		line = -1
	}
	return file, line
}
