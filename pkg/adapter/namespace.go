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
	"time"

	"github.com/kurafs/fusefs/pkg/vfs"
)

func (a *Adapter) Mkdir(ctx context.Context, caller *vfs.Caller, path string, mode uint32) (err error) {
	ctx, c := a.enter(ctx, caller, "mkdir", path)
	defer c.exit(&err)

	if !a.provider.CanMkdir(ctx, path) {
		return vfs.PermissionDenied("mkdir", path)
	}
	return vfs.Translate("mkdir", path, a.provider.Mkdir(ctx, path))
}

// Truncate resizes path outside of any open descriptor, natively when the
// provider supports it and by rewriting the file otherwise.
func (a *Adapter) Truncate(ctx context.Context, caller *vfs.Caller, path string, size int64) (err error) {
	ctx, c := a.enter(ctx, caller, "truncate", path)
	defer c.exit(&err)

	if !a.provider.CanWrite(ctx, path) {
		return vfs.PermissionDenied("truncate", path)
	}
	if _, ok := a.pending.get(path); ok && !a.provider.IsFile(ctx, path) {
		// Already empty.
		return nil
	}
	if a.rawTruncater != nil {
		ok, err := a.rawTruncater.RawTruncate(ctx, path, size, nil)
		if err != nil {
			return vfs.Translate("truncate", path, err)
		}
		if ok {
			return nil
		}
	}
	a.metrics.fellBack("truncate")
	return truncateByRewrite(ctx, a.provider, path, size)
}

func (a *Adapter) Unlink(ctx context.Context, caller *vfs.Caller, path string) (err error) {
	ctx, c := a.enter(ctx, caller, "unlink", path)
	defer c.exit(&err)

	if !a.provider.CanDelete(ctx, path) {
		return vfs.PermissionDenied("unlink", path)
	}
	if a.pending.remove(path) && !a.provider.IsFile(ctx, path) {
		return nil
	}
	return vfs.Translate("unlink", path, a.provider.Delete(ctx, path))
}

func (a *Adapter) Rmdir(ctx context.Context, caller *vfs.Caller, path string) (err error) {
	ctx, c := a.enter(ctx, caller, "rmdir", path)
	defer c.exit(&err)

	if !a.provider.CanRmdir(ctx, path) {
		return vfs.PermissionDenied("rmdir", path)
	}
	return vfs.Translate("rmdir", path, a.provider.Rmdir(ctx, path))
}

// Rename moves from to to. Providers implementing vfs.Renamer are asked
// first; otherwise plain files are copied and the source deleted. Anything
// else, directories in particular, can't be moved without native support.
func (a *Adapter) Rename(ctx context.Context, caller *vfs.Caller, from, to string) (err error) {
	ctx, c := a.enter(ctx, caller, "rename", from)
	defer c.exit(&err)

	if _, ok := a.pending.get(from); ok && !a.provider.IsFile(ctx, from) {
		if !a.provider.CanWrite(ctx, to) {
			return vfs.PermissionDenied("rename", to)
		}
		a.pending.move(from, to)
		return nil
	}

	if a.renamer != nil {
		ok, err := a.renamer.Rename(ctx, from, to)
		if err != nil {
			return vfs.Translate("rename", from, err)
		}
		if ok {
			a.pending.remove(to)
			a.pending.move(from, to)
			return nil
		}
	}

	if !a.provider.IsFile(ctx, from) || !a.provider.CanWrite(ctx, to) || !a.provider.CanDelete(ctx, from) {
		return vfs.PermissionDenied("rename", from)
	}
	a.metrics.fellBack("rename")
	if err := renameByCopy(ctx, a.provider, from, to); err != nil {
		return err
	}
	// to now has provider content; a create pending there is superseded.
	a.pending.remove(to)
	a.pending.move(from, to)
	return nil
}

// Chmod is accepted and ignored; modes are derived from provider predicates.
func (a *Adapter) Chmod(ctx context.Context, caller *vfs.Caller, path string, mode uint32) (err error) {
	_, c := a.enter(ctx, caller, "chmod", path)
	defer c.exit(&err)
	return nil
}

// Chown is accepted and ignored.
func (a *Adapter) Chown(ctx context.Context, caller *vfs.Caller, path string, uid, gid uint32) (err error) {
	_, c := a.enter(ctx, caller, "chown", path)
	defer c.exit(&err)
	return nil
}

// Utimens forwards the modification time to providers implementing
// vfs.Toucher. The access time is dropped, and a zero mtime means the
// modification time is not being changed.
func (a *Adapter) Utimens(ctx context.Context, caller *vfs.Caller, path string, atime, mtime time.Time) (err error) {
	ctx, c := a.enter(ctx, caller, "utimens", path)
	defer c.exit(&err)

	if a.toucher == nil || mtime.IsZero() {
		return nil
	}
	return vfs.Translate("utimens", path, a.toucher.Touch(ctx, path, mtime))
}
