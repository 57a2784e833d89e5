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

package cli

import (
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"regexp"
	"strings"

	"github.com/kurafs/fusefs/pkg/log"
)

// LogFlags are the logging flags shared by every server command.
type LogFlags struct {
	Dir            string
	SuppressStderr bool
	Mode           LogMode
	Filter         LogFilter
	BacktraceAt    BacktracePoints

	// Rotation thresholds for files written under Dir.
	MaxSizeMB  int
	MaxAgeDays int
}

// Register defines the logging flags on fs.
func (l *LogFlags) Register(fs *flag.FlagSet) {
	fs.StringVar(&l.Dir, "log-dir", "",
		"Write log files to the specified directory")
	fs.BoolVar(&l.SuppressStderr, "suppress-stderr", false,
		"Suppress standard error logging")
	fs.Var(&l.Mode, "log-mode",
		"Log mode for logs emitted globally (can be overridden using -log-filter)")
	fs.Var(&l.Filter, "log-filter",
		"Comma-separated list of fname.go:mode settings for file-filtered logging")
	fs.Var(&l.BacktraceAt, "log-backtrace-at",
		"Comma-separated list of fname.go:N settings to emit backtraces")
	fs.IntVar(&l.MaxSizeMB, "log-max-size", 50,
		"Size in MiB at which log files under -log-dir are rotated")
	fs.IntVar(&l.MaxAgeDays, "log-max-age", 0,
		"Days to retain rotated log files (0 retains them forever)")
}

// Writer assembles the destination for log output as per the flags.
func (l *LogFlags) Writer(stderr io.Writer) io.Writer {
	writer := ioutil.Discard
	if l.Dir != "" {
		writer = log.LogRotationWriter(l.Dir, l.MaxSizeMB, l.MaxAgeDays)
	}
	if !l.SuppressStderr {
		writer = log.MultiWriter(writer, stderr)
	}
	return log.SynchronizedWriter(writer)
}

// Logger installs the global mode, file filters and tracepoints, and returns
// a logger writing to the configured destinations.
func (l *LogFlags) Logger() *log.Logger {
	if l.Mode.set {
		log.SetGlobalLogMode(l.Mode.m)
	}
	for _, flm := range l.Filter {
		log.SetFileLogMode(flm.fname, flm.fmode)
	}
	for _, tp := range l.BacktraceAt {
		log.SetTracePoint(tp)
	}

	logf := log.Ldate | log.Ltime | log.Lmicroseconds | log.Llongfile | log.LUTC | log.Lmode
	return log.New(log.Writer(l.Writer(os.Stderr)), log.Flags(logf), log.SkipBasePath())
}

// LogMode is a flag.Value for a '|' separated list of log modes.
type LogMode struct {
	m   log.Mode
	set bool
}

func (l *LogMode) String() string {
	if !l.set {
		return log.Mode(log.DefaultMode).String()
	}
	return l.m.String()
}

func (l *LogMode) Set(value string) error {
	m, err := log.ParseMode(value)
	if err != nil {
		return err
	}
	l.m, l.set = m, true
	return nil
}

// IsSet reports whether the flag was provided.
func (l *LogMode) IsSet() bool { return l.set }

type fileLogMode struct {
	fname string
	fmode log.Mode
}

// LogFilter is a flag.Value for comma-separated fname.go:mode overrides.
type LogFilter []fileLogMode

var fileNameRegex = regexp.MustCompile(`^[\w-]+\.go$`)

func (l *LogFilter) String() string {
	var parts []string
	for _, f := range *l {
		parts = append(parts, fmt.Sprintf("%s:%s", f.fname, f.fmode))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (l *LogFilter) Set(value string) error {
	for _, f := range strings.Split(value, ",") {
		fields := strings.Split(f, ":")
		if len(fields) != 2 {
			return fmt.Errorf("improperly formatted filter: %s, expected fname.go:mode", f)
		}

		fname, mode := fields[0], fields[1]
		if !fileNameRegex.MatchString(fname) {
			return fmt.Errorf("expected filename '%s' to match the regex '%s'", fname, fileNameRegex)
		}
		fmode, err := log.ParseMode(mode)
		if err != nil {
			return err
		}
		*l = append(*l, fileLogMode{fname: fname, fmode: fmode})
	}
	return nil
}

// BacktracePoints is a flag.Value for comma-separated fname.go:line tracepoints.
type BacktracePoints []string

var lineNumberRegex = regexp.MustCompile(`^\d+$`)

func (l *BacktracePoints) String() string {
	return fmt.Sprint(*l)
}

func (l *BacktracePoints) Set(value string) error {
	for _, f := range strings.Split(value, ",") {
		fields := strings.Split(f, ":")
		if len(fields) != 2 {
			return fmt.Errorf("improperly formatted tracepoint: %s, expected fname.go:line", f)
		}

		fname, lnumber := fields[0], fields[1]
		if !fileNameRegex.MatchString(fname) {
			return fmt.Errorf("expected filename '%s' to match the regex '%s'", fname, fileNameRegex)
		}
		if !lineNumberRegex.MatchString(lnumber) {
			return fmt.Errorf("expected line number '%s' to match the regex '%s'", lnumber, lineNumberRegex)
		}
		*l = append(*l, fmt.Sprintf("%s:%s", fname, lnumber))
	}
	return nil
}
