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

package adapter

import (
	"golang.org/x/sys/unix"

	"github.com/kurafs/fusefs/pkg/vfs"
)

// OpenFlags are the open(2) flags a file was opened with.
type OpenFlags uint32

func (f OpenFlags) accMode() uint32 { return uint32(f) & unix.O_ACCMODE }

func (f OpenFlags) ReadOnly() bool  { return f.accMode() == unix.O_RDONLY }
func (f OpenFlags) WriteOnly() bool { return f.accMode() == unix.O_WRONLY }
func (f OpenFlags) ReadWrite() bool { return f.accMode() == unix.O_RDWR }

// Reading reports whether the descriptor may be read from.
func (f OpenFlags) Reading() bool { return f.ReadOnly() || f.ReadWrite() }

// Writing reports whether the descriptor may be written to.
func (f OpenFlags) Writing() bool { return f.WriteOnly() || f.ReadWrite() }

// Append is only meaningful for descriptors open for writing.
func (f OpenFlags) Append() bool { return f.Writing() && uint32(f)&unix.O_APPEND != 0 }

func (f OpenFlags) Truncate() bool { return f.Writing() && uint32(f)&unix.O_TRUNC != 0 }

// OpenMode renders f the way RawOpen expects it: "r", "w" or "rw", with an
// "a" suffix for appends. Flags with an invalid access mode render as "".
func (f OpenFlags) OpenMode() vfs.OpenMode {
	var mode string
	switch {
	case f.ReadWrite():
		mode = "rw"
	case f.ReadOnly():
		mode = "r"
	case f.WriteOnly():
		mode = "w"
	default:
		return ""
	}
	if f.Append() {
		mode += "a"
	}
	return vfs.OpenMode(mode)
}
