// Copyright 2013 Google Inc. All Rights Reserved.
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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultWriter returns a default os.Stderr writer that is safe for concurrent use.
func DefaultWriter() io.Writer {
	return SynchronizedWriter(os.Stderr)
}

// LogRotationWriter returns an io.Writer appending to <dirname>/<program>.log,
// rotating the file once it grows past maxSizeMB megabytes. Rotated files are
// kept for maxAgeDays days (zero keeps them forever) and compressed.
func LogRotationWriter(dirname string, maxSizeMB, maxAgeDays int) io.Writer {
	return &lumberjack.Logger{
		Filename:  filepath.Join(dirname, fmt.Sprintf("%s.log", filepath.Base(os.Args[0]))),
		MaxSize:   maxSizeMB,
		MaxAge:    maxAgeDays,
		LocalTime: true,
		Compress:  true,
	}
}

// SynchronizedWriter wraps an io.Writer with a mutex for concurrent access.
func SynchronizedWriter(w io.Writer) io.Writer {
	return &synchronizedWriter{
		w: w,
	}
}

// MultiWriter multiplexes writes to multiple io.Writers.
func MultiWriter(w io.Writer, ws ...io.Writer) io.Writer {
	mw := &multiWriter{}
	mw.ws = append(mw.ws, w)
	mw.ws = append(mw.ws, ws...)
	return mw
}

type synchronizedWriter struct {
	sync.Mutex
	w io.Writer
}

func (s *synchronizedWriter) Write(b []byte) (n int, err error) {
	s.Lock()
	defer s.Unlock()
	return s.w.Write(b)
}

type multiWriter struct {
	ws []io.Writer
}

// Best effort write on all the writers. We return the smallest n across all
// of them and the last non-nil error, if any.
func (m *multiWriter) Write(b []byte) (n int, err error) {
	n = len(b)
	for _, w := range m.ws {
		nbytes, er := w.Write(b)
		if nbytes < n {
			n = nbytes
		}
		if er != nil {
			err = er
		}
	}
	return n, err
}
