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
	"sync"
	"sync/atomic"
)

// Set of enabled tracepoints, keyed by fname.go:line.
type tracePointMap map[string]struct{}

// Per-file mode overrides, keyed by base file name.
type fileModeMap map[string]Mode

// Reads are lock free; writers serialize on mu and swap in a fresh copy.
type gstateT struct {
	gmode atomic.Value // type: Mode

	mu          sync.Mutex
	tracePoints atomic.Value // type: tracePointMap
	fileModes   atomic.Value // type: fileModeMap
}

var gstate gstateT

func init() {
	gstate.gmode.Store(Mode(DefaultMode))
	gstate.tracePoints.Store(make(tracePointMap))
	gstate.fileModes.Store(make(fileModeMap))
}

// SetGlobalLogMode sets the global log mode to the one specified. Logging
// outside what's included in the mode is thereby suppressed.
func SetGlobalLogMode(m Mode) {
	gstate.gmode.Store(m)
}

// GetGlobalLogMode gets the currently set global log mode.
func GetGlobalLogMode() Mode {
	return gstate.gmode.Load().(Mode)
}

func updateTracePoints(fn func(m tracePointMap)) {
	gstate.mu.Lock()
	defer gstate.mu.Unlock()

	cur := gstate.tracePoints.Load().(tracePointMap)
	next := make(tracePointMap, len(cur)+1)
	for tp := range cur {
		next[tp] = struct{}{}
	}
	fn(next)
	gstate.tracePoints.Store(next)
}

func updateFileModes(fn func(m fileModeMap)) {
	gstate.mu.Lock()
	defer gstate.mu.Unlock()

	cur := gstate.fileModes.Load().(fileModeMap)
	next := make(fileModeMap, len(cur)+1)
	for fname, m := range cur {
		next[fname] = m
	}
	fn(next)
	gstate.fileModes.Store(next)
}

// SetTracePoint enables the provided tracepoint. A tracepoint is of the form
// filename.go:line-number corresponding to the position of a logging
// statement that, once enabled, emits a backtrace whenever it executes,
// regardless of the mode it logs at.
func SetTracePoint(tp string) {
	updateTracePoints(func(m tracePointMap) { m[tp] = struct{}{} })
}

// ResetTracePoint disables a tracepoint set by SetTracePoint.
func ResetTracePoint(tp string) {
	updateTracePoints(func(m tracePointMap) { delete(m, tp) })
}

// GetTracePoint checks if the corresponding tracepoint is enabled.
func GetTracePoint(tp string) bool {
	_, ok := gstate.tracePoints.Load().(tracePointMap)[tp]
	return ok
}

// SetFileLogMode sets the log mode for the provided filename. Subsequent
// logging statements within the file get filtered accordingly.
func SetFileLogMode(fname string, mode Mode) {
	updateFileModes(func(m fileModeMap) { m[fname] = mode })
}

// GetFileLogMode gets the log mode for the specified file.
func GetFileLogMode(fname string) (Mode, bool) {
	m, ok := gstate.fileModes.Load().(fileModeMap)[fname]
	return m, ok
}

// ResetFileLogMode drops the override for fname; its statements get filtered
// as per the global log mode again.
func ResetFileLogMode(fname string) {
	updateFileModes(func(m fileModeMap) { delete(m, fname) })
}
