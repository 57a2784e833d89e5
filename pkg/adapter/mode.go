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

import "golang.org/x/sys/unix"

// Permissions is what the provider's predicates say about a path.
type Permissions struct {
	Directory  bool
	Writable   bool
	Executable bool
}

// Mode translates provider permissions into st_mode bits. Directories are
// rwx for everyone when writable and r-x otherwise; files are always
// readable, with write and execute bits granted to everyone or no one.
func Mode(p Permissions) uint32 {
	if p.Directory {
		if p.Writable {
			return unix.S_IFDIR | 0777
		}
		return unix.S_IFDIR | 0555
	}

	mode := uint32(unix.S_IFREG | 0444)
	if p.Writable {
		mode |= 0222
	}
	if p.Executable {
		mode |= 0111
	}
	return mode
}

func isRegular(mode uint32) bool {
	return mode&unix.S_IFMT == unix.S_IFREG
}
