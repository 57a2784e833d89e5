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

package log

import (
	"io"
	"path/filepath"
	"runtime"
)

// Flag controls the header written ahead of every log message.
type Flag int

const (
	Ldate         Flag = 1 << iota // the date in the local time zone: 181016
	Ltime                          // the time in the local time zone: 01:23:23
	Lmicroseconds                  // microsecond resolution: 01:23:23.123123, assumes Ltime
	Llongfile                      // full file name and line number: /a/b/c/d.go:23
	Lshortfile                     // final file name element and line number: d.go:23, overrides Llongfile
	LUTC                           // if Ldate or Ltime is set, use UTC rather than the local time zone
	Lmode                          // the mode of the statement: I, W, E, F or D

	// LstdFlags produces headers of the form:
	//   I181016 06:33:04.606396 fname.go:42] message
	LstdFlags = Lmode | Ldate | Lmicroseconds | Lshortfile
)

type option func(l *Logger)

// Writer directs log output to w. w is used as is; wrap it with
// SynchronizedWriter if the logger is shared across goroutines.
func Writer(w io.Writer) option {
	return func(l *Logger) {
		l.w = w
	}
}

// Flags sets the header format.
func Flags(f Flag) option {
	return func(l *Logger) {
		l.flag = f
	}
}

// BasePath strips path from file names printed with Llongfile.
func BasePath(path string) option {
	return func(l *Logger) {
		l.basePath = path
	}
}

// SkipBasePath strips the repository root from file names printed with
// Llongfile, so headers read pkg/adapter/adapter.go:42 instead of the
// absolute path on the build machine.
func SkipBasePath() option {
	return func(l *Logger) {
		_, file, _, ok := runtime.Caller(0)
		if !ok {
			return
		}
		// This file lives in <root>/pkg/log.
		l.basePath = filepath.Dir(filepath.Dir(filepath.Dir(file)))
	}
}
