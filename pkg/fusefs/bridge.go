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

package fusefs

import (
	"context"
	"errors"
	"path"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/kurafs/fusefs/pkg/adapter"
	"github.com/kurafs/fusefs/pkg/log"
	"github.com/kurafs/fusefs/pkg/vfs"
)

// bridge holds what every node shares. Its methods work on absolute paths so
// they can be exercised without a mounted inode tree.
type bridge struct {
	a        *adapter.Adapter
	logger   *log.Logger
	directIO bool
}

// fileHandle is what go-fuse carries between open and release.
type fileHandle struct {
	id adapter.HandleID
}

// callerOf extracts the calling process from a request context. Requests the
// kernel didn't originate (there are none in practice) run without identity.
func callerOf(ctx context.Context) *vfs.Caller {
	c, ok := fuse.FromContext(ctx)
	if !ok {
		return nil
	}
	return &vfs.Caller{UID: c.Uid, GID: c.Gid, PID: c.Pid}
}

// errno maps adapter errors to what the kernel is told.
func errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	var verr *vfs.Error
	if errors.As(err, &verr) {
		return verr.Errno()
	}
	var en syscall.Errno
	if errors.As(err, &en) {
		return en
	}
	return syscall.EIO
}

func handleOf(f interface{}) (adapter.HandleID, bool) {
	fh, ok := f.(*fileHandle)
	if !ok || fh == nil {
		return 0, false
	}
	return fh.id, true
}

func childPath(dir, name string) string {
	return path.Join(dir, name)
}

func fillAttr(attr adapter.Attr, out *fuse.Attr) {
	out.Mode = attr.Mode
	out.Nlink = attr.Nlink
	if attr.Size > 0 {
		out.Size = uint64(attr.Size)
	}
	out.Blocks = (out.Size + 511) / 512
	out.Blksize = 4096
	out.Owner = fuse.Owner{Uid: attr.UID, Gid: attr.GID}
	out.SetTimes(&attr.Atime, &attr.Mtime, &attr.Ctime)
}

// setattr takes apart a SETATTR request: a size becomes a truncate (through
// the open file when there is one), mode and owner changes become chmod and
// chown, and times become utimens.
func (b *bridge) setattr(ctx context.Context, p string, f interface{}, in *fuse.SetAttrIn) error {
	caller := callerOf(ctx)
	if caller != nil {
		ctx = vfs.WithCaller(ctx, *caller)
	}

	if size, ok := in.GetSize(); ok {
		var err error
		if fh, ok := handleOf(f); ok {
			err = b.a.Ftruncate(ctx, nil, p, fh, int64(size))
		} else {
			err = b.a.Truncate(ctx, nil, p, int64(size))
		}
		if err != nil {
			return err
		}
	}

	if mode, ok := in.GetMode(); ok {
		if err := b.a.Chmod(ctx, nil, p, mode); err != nil {
			return err
		}
	}

	uid, uok := in.GetUID()
	gid, gok := in.GetGID()
	if uok || gok {
		if !uok {
			uid = ^uint32(0)
		}
		if !gok {
			gid = ^uint32(0)
		}
		if err := b.a.Chown(ctx, nil, p, uid, gid); err != nil {
			return err
		}
	}

	// Only the modification time is tracked; atime-only updates (touch -a)
	// have nothing to forward.
	if mtime, ok := in.GetMTime(); ok {
		atime, _ := in.GetATime()
		if err := b.a.Utimens(ctx, nil, p, atime, mtime); err != nil {
			return err
		}
	}
	return nil
}

// readdir drops the adapter's "." and "..": go-fuse emits its own.
func (b *bridge) readdir(ctx context.Context, p string) ([]fuse.DirEntry, error) {
	names, err := b.a.ReadDir(ctx, callerOf(ctx), p)
	if err != nil {
		return nil, err
	}
	entries := make([]fuse.DirEntry, 0, len(names))
	for _, name := range names {
		if name == "." || name == ".." {
			continue
		}
		entries = append(entries, fuse.DirEntry{Name: name})
	}
	return entries, nil
}

func (b *bridge) openFlags() uint32 {
	if b.directIO {
		return fuse.FOPEN_DIRECT_IO
	}
	return 0
}
