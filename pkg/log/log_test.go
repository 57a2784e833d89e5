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
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"testing"
)

func expectMatch(t *testing.T, regex string, buffer *bytes.Buffer) {
	t.Helper()
	match, err := regexp.Match(regex, buffer.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if !match {
		t.Errorf("expected pattern: %q, got: %q", regex, buffer.String())
	}
	buffer.Reset()
}

func TestTracePoints(t *testing.T) {
	tp := fmt.Sprintf("%s:%d", "t.go", 42)
	if GetTracePoint(tp) {
		t.Errorf("didn't expect tracepoint %s to be enabled", tp)
	}
	SetTracePoint(tp)
	if !GetTracePoint(tp) {
		t.Errorf("expected tracepoint %s to be enabled", tp)
	}
	ResetTracePoint(tp)
	if GetTracePoint(tp) {
		t.Errorf("expected tracepoint %s to be reset", tp)
	}
}

func TestInfoLog(t *testing.T) {
	SetGlobalLogMode(InfoMode)
	defer SetGlobalLogMode(DefaultMode)

	buffer := new(bytes.Buffer)
	logger := New(Writer(buffer))

	logger.Info("info")
	expectMatch(t, `^I\d{6} [\d:.]+ log_test.go:\d+\] info\n$`, buffer)

	logger.Infof("%t %d %s", true, 1, "infof")
	expectMatch(t, `^I.*\] true 1 infof\n$`, buffer)

	logger.Warn("suppressed")
	expectMatch(t, `^$`, buffer)
}

func TestLongfileBasePath(t *testing.T) {
	buffer := new(bytes.Buffer)
	logger := New(Writer(buffer), Flags(Lmode|Llongfile), SkipBasePath())

	logger.Error("boom")
	expectMatch(t, `^E pkg/log/log_test.go:\d+\] boom\n$`, buffer)
}

func TestTags(t *testing.T) {
	buffer := new(bytes.Buffer)
	base := New(Writer(buffer), Flags(Lmode|Lshortfile))
	tagged := base.Tag("op", "flush").Tag("path", "/a.txt")

	tagged.Info("closing")
	expectMatch(t, `^I log_test.go:\d+\] \[op=flush path=/a.txt\] closing\n$`, buffer)

	// The parent logger is left untouched.
	base.Info("plain")
	expectMatch(t, `^I log_test.go:\d+\] plain\n$`, buffer)
}

func TestFileLogModeOverride(t *testing.T) {
	SetGlobalLogMode(InfoMode)
	defer SetGlobalLogMode(DefaultMode)

	buffer := new(bytes.Buffer)
	logger := New(Writer(buffer))

	SetFileLogMode("log_test.go", DebugMode)
	logger.Debug("debug")
	expectMatch(t, `^D.*\] debug\n$`, buffer)
	logger.Info("info")
	expectMatch(t, `^$`, buffer)

	ResetFileLogMode("log_test.go")
	logger.Debug("debug")
	expectMatch(t, `^$`, buffer)
}

func TestDebugModeEnableDisable(t *testing.T) {
	SetGlobalLogMode(InfoMode)
	defer SetGlobalLogMode(DefaultMode)

	buffer := new(bytes.Buffer)
	logger := New(Writer(buffer))

	logger.Debug("debug")
	logger.Debugf("%t %d %s", true, 1, "debugf")
	if logger.DebugEnabled() {
		t.Error("expected debug logging to be disabled")
	}
	expectMatch(t, `^$`, buffer)

	SetGlobalLogMode(DebugMode)
	logger.Debug("debug")
	expectMatch(t, `^D.*\] debug\n$`, buffer)
	if !logger.DebugEnabled() {
		t.Error("expected debug logging to be enabled")
	}
}

func TestModeString(t *testing.T) {
	for _, tc := range []struct {
		m Mode
		s string
	}{
		{DisabledMode, "disabled"},
		{InfoMode, "info"},
		{DefaultMode, "info|warn|error"},
		{InfoMode | DebugMode, "info|debug"},
	} {
		if got := tc.m.String(); got != tc.s {
			t.Errorf("expected %q, got %q", tc.s, got)
		}
		m, err := ParseMode(tc.s)
		if err != nil {
			t.Fatal(err)
		}
		if m != tc.m {
			t.Errorf("ParseMode(%q): expected %v, got %v", tc.s, tc.m, m)
		}
	}
	if _, err := ParseMode("loud"); err == nil {
		t.Error("expected error parsing unknown mode")
	}
}

func TestEnableTracePoint(t *testing.T) {
	SetGlobalLogMode(DisabledMode)
	defer SetGlobalLogMode(DefaultMode)

	// This depends on the exact difference in line numbers between the call
	// to caller and the logger.Info call below; the tracepoint is set for the
	// line exactly eight lines down.
	file, line := caller(0)
	tp := fmt.Sprintf("%s:%d", filepath.Base(file), line+8)
	SetTracePoint(tp)
	defer ResetTracePoint(tp)

	buffer := new(bytes.Buffer)
	logger := New(Writer(buffer))
	{
		logger.Info()
		if buffer.Len() == 0 {
			t.Fatal("expected stack trace to be populated, found empty buffer instead")
		}

		first, err := buffer.ReadString(byte('\n'))
		if err != nil {
			t.Fatal(err)
		}
		if match, _ := regexp.MatchString(`^goroutine \d+ \[running\]:`, first); !match {
			t.Errorf("unexpected first line: %s", first)
		}

		second, err := buffer.ReadString(byte('\n'))
		if err != nil {
			t.Fatal(err)
		}
		if match, _ := regexp.MatchString(`^github.com/kurafs/fusefs/pkg/log.TestEnableTracePoint`, second); !match {
			t.Errorf("unexpected second line: %s", second)
		}
	}
}
