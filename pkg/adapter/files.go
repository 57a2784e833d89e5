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
	"context"
	"errors"
	"io"

	"golang.org/x/sys/unix"

	"github.com/kurafs/fusefs/pkg/vfs"
)

// Mknod records a regular file at path without touching the provider. The
// file reads as empty until a descriptor opened on it is flushed.
func (a *Adapter) Mknod(ctx context.Context, caller *vfs.Caller, path string, mode uint32) (err error) {
	ctx, c := a.enter(ctx, caller, "mknod", path)
	defer c.exit(&err)

	return a.mknod(ctx, path, mode)
}

func (a *Adapter) mknod(ctx context.Context, path string, mode uint32) error {
	if !isRegular(mode) || !a.provider.CanWrite(ctx, path) {
		return vfs.PermissionDenied("mknod", path)
	}
	a.pending.add(path, mode)
	return nil
}

// Create is mknod followed by open. If the open fails the file is forgotten.
func (a *Adapter) Create(ctx context.Context, caller *vfs.Caller, path string, mode, flags uint32) (fh HandleID, err error) {
	ctx, c := a.enter(ctx, caller, "create", path)
	defer c.exit(&err)

	if err := a.mknod(ctx, path, unix.S_IFREG|mode); err != nil {
		return 0, err
	}
	fh, err = a.open(ctx, path, OpenFlags(flags))
	if err != nil {
		a.pending.remove(path)
		return 0, err
	}
	return fh, nil
}

// Open allocates a handle for path. Providers implementing vfs.RawOpener get
// the first say; if they decline, the file's content is loaded up front (or
// started empty, for new files and write-only descriptors) and served from
// memory until flushed.
func (a *Adapter) Open(ctx context.Context, caller *vfs.Caller, path string, flags uint32) (fh HandleID, err error) {
	ctx, c := a.enter(ctx, caller, "open", path)
	defer c.exit(&err)

	return a.open(ctx, path, OpenFlags(flags))
}

func (a *Adapter) open(ctx context.Context, path string, flags OpenFlags) (HandleID, error) {
	if !flags.Reading() && !flags.Writing() {
		return 0, vfs.PermissionDenied("open", path)
	}
	h := newFileHandle(path, flags)

	if a.rawOpener != nil {
		tok, ok, err := a.rawOpener.RawOpen(ctx, path, flags.OpenMode())
		if err != nil {
			return 0, vfs.Translate("open", path, err)
		}
		if ok {
			h.raw, h.token = true, tok
			return a.handles.insert(h), nil
		}
	}

	_, pending := a.pending.get(path)
	switch {
	case flags.Writing() && !a.provider.CanWrite(ctx, path):
		return 0, vfs.PermissionDenied("open", path)
	case pending:
		// Nothing to load, the provider doesn't know about it yet.
	case flags.ReadOnly(), flags.ReadWrite(), flags.Append():
		content, err := a.provider.ReadFile(ctx, path)
		if err != nil {
			return 0, vfs.Translate("open", path, err)
		}
		h.buffer = content
	}

	if flags.Truncate() {
		h.truncate(0)
	}
	return a.handles.insert(h), nil
}

// Read returns up to size bytes at off. Buffered reads past the end of the
// file, or at negative offsets, are empty rather than errors.
func (a *Adapter) Read(ctx context.Context, caller *vfs.Caller, path string, fh HandleID, off int64, size int) (data []byte, err error) {
	ctx, c := a.enter(ctx, caller, "read", path)
	defer c.exit(&err)

	h, err := a.handle("read", path, fh)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.raw {
		return h.read(off, size), nil
	}
	data, err = a.rawOpener.RawRead(ctx, path, off, size, h.token)
	if errors.Is(err, io.EOF) {
		// Short final reads come with io.EOF, as from an io.ReaderAt.
		if data == nil {
			data = []byte{}
		}
		return data, nil
	}
	if err != nil {
		return nil, vfs.Translate("read", path, err)
	}
	return data, nil
}

// Write stores data at off, returning the number of bytes accepted. Buffered
// writes always accept everything; the content reaches the provider on flush.
func (a *Adapter) Write(ctx context.Context, caller *vfs.Caller, path string, fh HandleID, off int64, data []byte) (n int, err error) {
	ctx, c := a.enter(ctx, caller, "write", path)
	defer c.exit(&err)

	h, err := a.handle("write", path, fh)
	if err != nil {
		return 0, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.raw {
		return h.write(off, data), nil
	}
	n, err = a.rawOpener.RawWrite(ctx, path, off, data, h.token)
	if err != nil {
		return n, vfs.Translate("write", path, err)
	}
	return n, nil
}

// Ftruncate resizes an open file. Buffered content is only ever shortened.
func (a *Adapter) Ftruncate(ctx context.Context, caller *vfs.Caller, path string, fh HandleID, size int64) (err error) {
	ctx, c := a.enter(ctx, caller, "ftruncate", path)
	defer c.exit(&err)

	h, err := a.handle("ftruncate", path, fh)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.raw {
		h.truncate(size)
		return nil
	}
	if a.rawTruncater == nil {
		return vfs.Unsupported("ftruncate", path)
	}
	ok, err := a.rawTruncater.RawTruncate(ctx, path, size, h.token)
	if err != nil {
		return vfs.Translate("ftruncate", path, err)
	}
	if !ok {
		return vfs.Unsupported("ftruncate", path)
	}
	return nil
}

// Flush writes modified buffered content back to the provider. Flushing an
// unmodified or raw handle does nothing.
func (a *Adapter) Flush(ctx context.Context, caller *vfs.Caller, path string, fh HandleID) (err error) {
	ctx, c := a.enter(ctx, caller, "flush", path)
	defer c.exit(&err)

	h, err := a.handle("flush", path, fh)
	if err != nil {
		return err
	}
	return a.flush(ctx, path, h)
}

func (a *Adapter) flush(ctx context.Context, path string, h *FileHandle) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.raw || !h.modified {
		return nil
	}
	content := h.take()
	if err := a.provider.WriteTo(ctx, path, content); err != nil {
		h.modified = true
		return vfs.Translate("flush", path, err)
	}
	a.metrics.addFlushed(len(content))
	a.pending.remove(path)
	return nil
}

// Release flushes and closes the handle. fh is invalid afterwards, even if
// the flush or close failed. Closing a raw handle that was open for writing
// ends any pending creation of the file.
func (a *Adapter) Release(ctx context.Context, caller *vfs.Caller, path string, fh HandleID) (err error) {
	ctx, c := a.enter(ctx, caller, "release", path)
	defer c.exit(&err)

	h, ok := a.handles.remove(fh)
	if !ok {
		return &vfs.Error{Kind: vfs.KindStaleHandle, Op: "release", Path: path, Err: staleError(fh)}
	}

	err = a.flush(ctx, path, h)
	if h.raw {
		cerr := a.rawOpener.RawClose(ctx, path, h.token)
		switch {
		case cerr != nil:
			if err == nil {
				err = vfs.Translate("release", path, cerr)
			}
		case h.flags.Writing():
			// A raw writer leaves the file in the provider's hands.
			a.pending.remove(path)
		}
	}
	return err
}
