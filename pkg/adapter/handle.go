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
	"sync"

	"github.com/kurafs/fusefs/pkg/vfs"
)

// FileHandle is the state behind one kernel file descriptor. It is either
// raw-backed, in which case I/O goes straight to the provider, or buffered,
// in which case the whole file is held in memory and written back on flush.
type FileHandle struct {
	mu sync.Mutex

	path  string
	flags OpenFlags

	raw    bool
	token  vfs.RawToken
	buffer []byte

	modified bool
}

func newFileHandle(path string, flags OpenFlags) *FileHandle {
	return &FileHandle{path: path, flags: flags}
}

// Path is the path the file was opened at.
func (h *FileHandle) Path() string { return h.path }

func (h *FileHandle) Flags() OpenFlags { return h.flags }

// Raw reports whether the handle is raw-backed.
func (h *FileHandle) Raw() bool { return h.raw }

// read returns up to size bytes at off of the buffered content. Reads outside
// the content, including at negative offsets, are empty.
func (h *FileHandle) read(off int64, size int) []byte {
	if off < 0 || size <= 0 || off >= int64(len(h.buffer)) {
		return []byte{}
	}
	end := off + int64(size)
	if end > int64(len(h.buffer)) {
		end = int64(len(h.buffer))
	}
	out := make([]byte, end-off)
	copy(out, h.buffer[off:end])
	return out
}

// write stores data at off. Appending descriptors and writes at or past the
// end of the content append, ignoring off; other writes overwrite in place,
// growing the content as needed.
func (h *FileHandle) write(off int64, data []byte) int {
	if h.flags.Append() || off >= int64(len(h.buffer)) {
		h.buffer = append(h.buffer, data...)
	} else {
		if off < 0 {
			off = 0
		}
		if end := off + int64(len(data)); end > int64(len(h.buffer)) {
			h.buffer = append(h.buffer, make([]byte, end-int64(len(h.buffer)))...)
		}
		copy(h.buffer[off:], data)
	}
	h.modified = true
	return len(data)
}

// truncate shrinks the content to size bytes. It never extends.
func (h *FileHandle) truncate(size int64) {
	switch {
	case size <= 0:
		h.buffer = h.buffer[:0]
	case size < int64(len(h.buffer)):
		h.buffer = h.buffer[:size]
	}
	h.modified = true
}

// take returns the content to write back and marks the handle clean.
func (h *FileHandle) take() []byte {
	h.modified = false
	out := make([]byte, len(h.buffer))
	copy(out, h.buffer)
	return out
}
