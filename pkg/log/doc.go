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

// Package log implements leveled execution logs. Logging statements carry a
// mode (info, warn, error, fatal, debug); which modes are emitted is decided
// globally, and can be overridden per source file at runtime:
//
//      $ fusefs fuse-server -log-mode info|warn|error \
//                           -log-dir /var/log/fusefs \
//                           -log-filter adapter.go:debug,fallback.go:debug \
//                           -log-backtrace-at handle.go:88 \
//                           /mnt/hello
//
// -log-backtrace-at names tracepoints (file.go:line); when a logging statement
// at a tracepoint executes, a backtrace of the current goroutine is written
// ahead of the message.
//
// Loggers are cheap values configured through options at construction:
//
//      writer := log.SynchronizedWriter(os.Stderr)
//      writer = log.MultiWriter(writer, log.LogRotationWriter("/logs", 50 /* MiB */, 7 /* days */))
//
//      logf := log.Lmode | log.Ldate | log.Ltime | log.Llongfile
//      logger := log.New(log.Writer(writer), log.Flags(logf), log.SkipBasePath())
//
// Tag derives a logger that prefixes every message with key=value pairs:
//
//      logger.Tag("op", "flush").Tag("path", "/a.txt").Errorf("write failed: %v", err)
//      // E181016 10:04:05.123456 pkg/adapter/adapter.go:210] [op=flush path=/a.txt] write failed: ...
package log
