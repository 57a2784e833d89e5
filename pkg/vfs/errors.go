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
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// Kind classifies filesystem errors. Each kind maps onto one errno at the
// kernel boundary.
type Kind int

const (
	// KindIO is any provider failure that doesn't fit a more specific kind.
	KindIO Kind = iota
	KindPermissionDenied
	KindNotFound
	KindUnsupported
	KindInvalidArgument
	// KindStaleHandle is a file handle used after it was released.
	KindStaleHandle
)

func (k Kind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission denied"
	case KindNotFound:
		return "not found"
	case KindUnsupported:
		return "unsupported operation"
	case KindInvalidArgument:
		return "invalid argument"
	case KindStaleHandle:
		return "stale file handle"
	default:
		return "i/o error"
	}
}

// Errno is the POSIX error number reported to the kernel for k.
func (k Kind) Errno() syscall.Errno {
	switch k {
	case KindPermissionDenied:
		return syscall.EACCES
	case KindNotFound:
		return syscall.ENOENT
	case KindUnsupported:
		return syscall.ENOTSUP
	case KindInvalidArgument:
		return syscall.EINVAL
	case KindStaleHandle:
		return syscall.EBADF
	default:
		return syscall.EIO
	}
}

// Error is the error type returned by the adapter. Op is the filesystem
// operation (e.g. "unlink") and Path the path it was applied to.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

// Sentinels for use with errors.Is.
var (
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrUnsupported      = &Error{Kind: KindUnsupported}
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument}
	ErrStaleHandle      = &Error{Kind: KindStaleHandle}
)

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + " " + e.Path + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err,
// ErrPermissionDenied) holds regardless of op and path.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Errno is the errno reported to the kernel. An IO error that wraps a
// syscall.Errno reports that errno instead of EIO.
func (e *Error) Errno() syscall.Errno {
	if e.Kind == KindIO {
		var errno syscall.Errno
		if errors.As(e.Err, &errno) && errno != 0 {
			return errno
		}
	}
	return e.Kind.Errno()
}

func PermissionDenied(op, path string) *Error {
	return &Error{Kind: KindPermissionDenied, Op: op, Path: path}
}

func NotFound(op, path string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Path: path}
}

func Unsupported(op, path string) *Error {
	return &Error{Kind: KindUnsupported, Op: op, Path: path}
}

func InvalidArgument(op, path string, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidArgument, Op: op, Path: path, Err: fmt.Errorf(format, args...)}
}

// Translate wraps a provider error as an *Error for op on path. An *Error is
// returned unchanged; fs.ErrNotExist and fs.ErrPermission keep their meaning;
// anything else becomes KindIO. Translate(op, path, nil) is nil.
func Translate(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var verr *Error
	if errors.As(err, &verr) {
		return err
	}
	kind := KindIO
	switch {
	case errors.Is(err, fs.ErrNotExist):
		kind = KindNotFound
	case errors.Is(err, fs.ErrPermission):
		kind = KindPermissionDenied
	case errors.Is(err, errors.ErrUnsupported):
		kind = KindUnsupported
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// KindOf reports the kind of err, translating it first if needed.
func KindOf(err error) Kind {
	var verr *Error
	if errors.As(Translate("", "", err), &verr) {
		return verr.Kind
	}
	return KindIO
}
