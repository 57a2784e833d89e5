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

package vfs

import (
	"context"
	"strings"
	"time"
)

// Provider is the required part of the filesystem contract. Paths are
// absolute, slash separated and rooted at "/".
//
// Predicates return plain booleans; a provider that cannot answer should
// answer false. Mutations and content accessors return errors, which the
// adapter hands back to the kernel (see Error for the mapping).
//
// Methods may be called concurrently from many goroutines, including for the
// same path. Providers are responsible for their own synchronization.
type Provider interface {
	// Contents lists the names (not paths) of the entries in dir, in the
	// order they should be presented.
	Contents(ctx context.Context, dir string) ([]string, error)
	IsDirectory(ctx context.Context, path string) bool
	IsFile(ctx context.Context, path string) bool
	Size(ctx context.Context, path string) (int64, error)
	Times(ctx context.Context, path string) (atime, mtime, ctime time.Time, err error)

	ReadFile(ctx context.Context, path string) ([]byte, error)
	// WriteTo replaces the entire content of path, creating it if needed.
	WriteTo(ctx context.Context, path string, data []byte) error

	CanWrite(ctx context.Context, path string) bool
	CanMkdir(ctx context.Context, path string) bool
	CanDelete(ctx context.Context, path string) bool
	CanRmdir(ctx context.Context, path string) bool
	Executable(ctx context.Context, path string) bool

	Mkdir(ctx context.Context, path string) error
	Rmdir(ctx context.Context, path string) error
	Delete(ctx context.Context, path string) error
}

// RawToken is the opaque value a RawOpener associates with an open file. The
// adapter never inspects it; it is handed back on every raw call for the same
// open file.
type RawToken interface{}

// OpenMode describes how a file is being opened: "r", "w" or "rw", with an
// "a" suffix for appends.
type OpenMode string

// Reading reports whether the mode permits reads.
func (m OpenMode) Reading() bool { return strings.HasPrefix(string(m), "r") }

// Writing reports whether the mode permits writes.
func (m OpenMode) Writing() bool { return strings.Contains(string(m), "w") }

// Append reports whether writes go to the end of the file.
func (m OpenMode) Append() bool { return strings.HasSuffix(string(m), "a") }

// RawOpener is implemented by providers that serve byte ranges directly
// instead of whole files. When RawOpen reports ok, every read, write and close
// on that open file is delegated to the provider and nothing is buffered by
// the adapter. Returning ok == false for a path is allowed and makes the
// adapter buffer that file instead.
type RawOpener interface {
	RawOpen(ctx context.Context, path string, mode OpenMode) (tok RawToken, ok bool, err error)
	// RawRead returns up to size bytes at off. Returning io.EOF is treated as
	// an empty read.
	RawRead(ctx context.Context, path string, off int64, size int, tok RawToken) ([]byte, error)
	RawWrite(ctx context.Context, path string, off int64, data []byte, tok RawToken) (int, error)
	RawClose(ctx context.Context, path string, tok RawToken) error
}

// RawTruncater is implemented by providers that can resize a file in place.
// tok is nil when the file is truncated by path rather than through an open
// file. Returning false declines, and the adapter emulates the truncate.
type RawTruncater interface {
	RawTruncate(ctx context.Context, path string, size int64, tok RawToken) (bool, error)
}

// Toucher is implemented by providers that track modification times set by
// callers (utimes(2), touch(1)). Without it, time updates are accepted and
// ignored.
type Toucher interface {
	Touch(ctx context.Context, path string, mtime time.Time) error
}

// Renamer is implemented by providers with a native rename. Returning false
// declines, and the adapter copies plain files instead.
type Renamer interface {
	Rename(ctx context.Context, from, to string) (bool, error)
}

// Base implements Provider with the most conservative answers: nothing exists,
// nothing is permitted, and mutations do nothing. Embed it and override what
// the filesystem supports.
type Base struct{}

var _ Provider = Base{}

func (Base) Contents(ctx context.Context, dir string) ([]string, error) { return nil, nil }
func (Base) IsDirectory(ctx context.Context, path string) bool { return false }
func (Base) IsFile(ctx context.Context, path string) bool { return false }
func (Base) Size(ctx context.Context, path string) (int64, error) { return 0, nil }

func (Base) Times(ctx context.Context, path string) (atime, mtime, ctime time.Time, err error) {
	epoch := time.Unix(0, 0)
	return epoch, epoch, epoch, nil
}

func (Base) ReadFile(ctx context.Context, path string) ([]byte, error) { return nil, nil }
func (Base) WriteTo(ctx context.Context, path string, data []byte) error { return nil }
func (Base) CanWrite(ctx context.Context, path string) bool { return false }
func (Base) CanMkdir(ctx context.Context, path string) bool { return false }
func (Base) CanDelete(ctx context.Context, path string) bool { return false }
func (Base) CanRmdir(ctx context.Context, path string) bool { return false }
func (Base) Executable(ctx context.Context, path string) bool { return false }
func (Base) Mkdir(ctx context.Context, path string) error { return nil }
func (Base) Rmdir(ctx context.Context, path string) error { return nil }
func (Base) Delete(ctx context.Context, path string) error { return nil }
