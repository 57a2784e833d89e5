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

// probeName is looked up in directories to decide whether they're writable:
// a directory is writable if the provider would let the caller create a file
// or directory in it.
const probeName = "._rfuse_check_"

// Attr is the subset of stat(2) the adapter reports.
type Attr struct {
	Mode  uint32
	Nlink uint32
	Size  int64
	UID   uint32
	GID   uint32
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

// IsDir reports whether the attributes describe a directory.
func (a Attr) IsDir() bool {
	return !isRegular(a.Mode)
}

// ReadDir lists path. "." and ".." always come first, followed by the
// provider's entries in the order it gave them.
func (a *Adapter) ReadDir(ctx context.Context, caller *vfs.Caller, path string) (names []string, err error) {
	ctx, c := a.enter(ctx, caller, "readdir", path)
	defer c.exit(&err)

	contents, err := a.provider.Contents(ctx, path)
	if err != nil {
		return nil, vfs.Translate("readdir", path, err)
	}
	names = make([]string, 0, len(contents)+2)
	names = append(names, ".", "..")
	return append(names, contents...), nil
}

// GetAttr describes path. Files pending creation are reported as empty
// regular files owned by the caller, without consulting the provider.
func (a *Adapter) GetAttr(ctx context.Context, caller *vfs.Caller, path string) (attr Attr, err error) {
	ctx, c := a.enter(ctx, caller, "getattr", path)
	defer c.exit(&err)

	if path == "/" || a.provider.IsDirectory(ctx, path) {
		probe := childPath(path, probeName)
		attr = Attr{
			Mode: Mode(Permissions{
				Directory: true,
				Writable:  a.provider.CanMkdir(ctx, probe) || a.provider.CanWrite(ctx, probe),
			}),
			// find(1) and friends treat nlink == 1 as "unknown" rather than
			// trusting it to count subdirectories.
			Nlink: 1,
			UID:   a.uid,
			GID:   a.gid,
		}
		attr.Atime, attr.Mtime, attr.Ctime, err = a.provider.Times(ctx, path)
		if err != nil {
			return Attr{}, vfs.Translate("getattr", path, err)
		}
		return attr, nil
	}

	if mode, ok := a.pending.get(path); ok {
		now := a.now()
		uid, gid := a.uid, a.gid
		if who, ok := vfs.CallerFrom(ctx); ok {
			uid, gid = who.UID, who.GID
		}
		return Attr{
			Mode:  mode,
			Nlink: 1,
			UID:   uid,
			GID:   gid,
			Atime: now,
			Mtime: now,
			Ctime: now,
		}, nil
	}

	if a.provider.IsFile(ctx, path) {
		attr = Attr{
			Mode: Mode(Permissions{
				Writable:   a.provider.CanWrite(ctx, path),
				Executable: a.provider.Executable(ctx, path),
			}),
			Nlink: 1,
			UID:   a.uid,
			GID:   a.gid,
		}
		if attr.Size, err = a.provider.Size(ctx, path); err != nil {
			return Attr{}, vfs.Translate("getattr", path, err)
		}
		attr.Atime, attr.Mtime, attr.Ctime, err = a.provider.Times(ctx, path)
		if err != nil {
			return Attr{}, vfs.Translate("getattr", path, err)
		}
		return attr, nil
	}

	return Attr{}, vfs.NotFound("getattr", path)
}

func childPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}
