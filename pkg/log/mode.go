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
	"strings"
)

// Mode is a bitmask of logging levels. A statement logged at mode m is emitted
// when m intersects the mode in effect for its file.
type Mode int

const (
	InfoMode Mode = 1 << iota
	WarnMode
	ErrorMode
	FatalMode
	DebugMode

	// The zero-value of DisableMode can also be used to check if modes
	// intersect, i.e.  (lmode&gmode) != DisabledMode checks if the local
	// logger mode is filtered through by the global mode.
	DisabledMode = 0
	DefaultMode  = InfoMode | WarnMode | ErrorMode
)

var modeNames = []struct {
	m    Mode
	name string
}{
	{InfoMode, "info"},
	{WarnMode, "warn"},
	{ErrorMode, "error"},
	{FatalMode, "fatal"},
	{DebugMode, "debug"},
}

// String renders m as a '|' separated list, e.g. "info|warn|error".
func (m Mode) String() string {
	if m == DisabledMode {
		return "disabled"
	}
	var names []string
	for _, mn := range modeNames {
		if m&mn.m != DisabledMode {
			names = append(names, mn.name)
		}
	}
	return strings.Join(names, "|")
}

// ParseMode is the inverse of Mode.String.
func ParseMode(value string) (Mode, error) {
	if value == "disabled" {
		return DisabledMode, nil
	}
	var m Mode
	for _, name := range strings.Split(value, "|") {
		found := false
		for _, mn := range modeNames {
			if mn.name == name {
				m |= mn.m
				found = true
				break
			}
		}
		if !found {
			return DisabledMode, fmt.Errorf("unrecognized log mode: %q", name)
		}
	}
	return m, nil
}

// byte is the single character used for m in log headers.
func (m Mode) byte() byte {
	switch m {
	case InfoMode:
		return 'I'
	case WarnMode:
		return 'W'
	case ErrorMode:
		return 'E'
	case FatalMode:
		return 'F'
	case DebugMode:
		return 'D'
	default:
		return '?'
	}
}
