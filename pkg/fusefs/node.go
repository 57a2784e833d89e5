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
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// node is one file or directory. It carries no state of its own beyond its
// place in the inode tree.
type node struct {
	gofuse.Inode
	b *bridge
}

var _ gofuse.InodeEmbedder = (*node)(nil)
var _ gofuse.NodeGetattrer = (*node)(nil)
var _ gofuse.NodeSetattrer = (*node)(nil)
var _ gofuse.NodeLookuper = (*node)(nil)
var _ gofuse.NodeReaddirer = (*node)(nil)
var _ gofuse.NodeMkdirer = (*node)(nil)
var _ gofuse.NodeMknoder = (*node)(nil)
var _ gofuse.NodeCreater = (*node)(nil)
var _ gofuse.NodeOpener = (*node)(nil)
var _ gofuse.NodeReader = (*node)(nil)
var _ gofuse.NodeWriter = (*node)(nil)
var _ gofuse.NodeFlusher = (*node)(nil)
var _ gofuse.NodeFsyncer = (*node)(nil)
var _ gofuse.NodeReleaser = (*node)(nil)
var _ gofuse.NodeUnlinker = (*node)(nil)
var _ gofuse.NodeRmdirer = (*node)(nil)
var _ gofuse.NodeRenamer = (*node)(nil)
var _ gofuse.NodeSymlinker = (*node)(nil)
var _ gofuse.NodeLinker = (*node)(nil)
var _ gofuse.NodeGetxattrer = (*node)(nil)
var _ gofuse.NodeSetxattrer = (*node)(nil)
var _ gofuse.NodeListxattrer = (*node)(nil)
var _ gofuse.NodeRemovexattrer = (*node)(nil)
var _ gofuse.NodeStatfser = (*node)(nil)

// path is the node's absolute path in the mounted filesystem.
func (n *node) path() string {
	return "/" + n.Path(nil)
}

// child creates the inode for name below n, filling out from the adapter's
// view of it.
func (n *node) child(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	attr, err := n.b.a.GetAttr(ctx, callerOf(ctx), childPath(n.path(), name))
	if err != nil {
		return nil, errno(err)
	}
	fillAttr(attr, &out.Attr)
	return n.NewInode(ctx, &node{b: n.b}, gofuse.StableAttr{Mode: attr.Mode & syscall.S_IFMT}), 0
}

func (n *node) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	attr, err := n.b.a.GetAttr(ctx, callerOf(ctx), n.path())
	if err != nil {
		return errno(err)
	}
	fillAttr(attr, &out.Attr)
	return 0
}

func (n *node) Setattr(ctx context.Context, f gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if err := n.b.setattr(ctx, n.path(), f, in); err != nil {
		return errno(err)
	}
	return n.Getattr(ctx, f, out)
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	return n.child(ctx, name, out)
}

func (n *node) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	entries, err := n.b.readdir(ctx, n.path())
	if err != nil {
		return nil, errno(err)
	}
	return &sliceDirStream{entries: entries}, 0
}

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	if err := n.b.a.Mkdir(ctx, callerOf(ctx), childPath(n.path(), name), mode); err != nil {
		return nil, errno(err)
	}
	return n.child(ctx, name, out)
}

func (n *node) Mknod(ctx context.Context, name string, mode uint32, dev uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	if err := n.b.a.Mknod(ctx, callerOf(ctx), childPath(n.path(), name), mode); err != nil {
		return nil, errno(err)
	}
	return n.child(ctx, name, out)
}

func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	p := childPath(n.path(), name)
	fh, err := n.b.a.Create(ctx, callerOf(ctx), p, mode, flags)
	if err != nil {
		return nil, nil, 0, errno(err)
	}
	inode, en := n.child(ctx, name, out)
	if en != 0 {
		n.b.a.Release(ctx, callerOf(ctx), p, fh)
		return nil, nil, 0, en
	}
	return inode, &fileHandle{id: fh}, n.b.openFlags(), 0
}

func (n *node) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	fh, err := n.b.a.Open(ctx, callerOf(ctx), n.path(), flags)
	if err != nil {
		return nil, 0, errno(err)
	}
	return &fileHandle{id: fh}, n.b.openFlags(), 0
}

func (n *node) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	fh, ok := handleOf(f)
	if !ok {
		return nil, syscall.EBADF
	}
	data, err := n.b.a.Read(ctx, callerOf(ctx), n.path(), fh, off, len(dest))
	if err != nil {
		return nil, errno(err)
	}
	return fuse.ReadResultData(data), 0
}

func (n *node) Write(ctx context.Context, f gofuse.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	fh, ok := handleOf(f)
	if !ok {
		return 0, syscall.EBADF
	}
	written, err := n.b.a.Write(ctx, callerOf(ctx), n.path(), fh, off, data)
	if err != nil {
		return uint32(written), errno(err)
	}
	return uint32(written), 0
}

func (n *node) Flush(ctx context.Context, f gofuse.FileHandle) syscall.Errno {
	fh, ok := handleOf(f)
	if !ok {
		return 0
	}
	return errno(n.b.a.Flush(ctx, callerOf(ctx), n.path(), fh))
}

// Fsync writes buffered content back, same as a flush.
func (n *node) Fsync(ctx context.Context, f gofuse.FileHandle, flags uint32) syscall.Errno {
	return n.Flush(ctx, f)
}

func (n *node) Release(ctx context.Context, f gofuse.FileHandle) syscall.Errno {
	fh, ok := handleOf(f)
	if !ok {
		return 0
	}
	return errno(n.b.a.Release(ctx, callerOf(ctx), n.path(), fh))
}

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	return errno(n.b.a.Unlink(ctx, callerOf(ctx), childPath(n.path(), name)))
}

func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return errno(n.b.a.Rmdir(ctx, callerOf(ctx), childPath(n.path(), name)))
}

// Rename supports plain renames only; RENAME_NOREPLACE and RENAME_EXCHANGE
// get EINVAL, which tools like mv(1) take as a cue to fall back.
func (n *node) Rename(ctx context.Context, name string, newParent gofuse.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	if flags != 0 {
		return syscall.EINVAL
	}
	to := childPath("/"+newParent.EmbeddedInode().Path(nil), newName)
	return errno(n.b.a.Rename(ctx, callerOf(ctx), childPath(n.path(), name), to))
}

func (n *node) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	return nil, errno(n.b.a.Symlink(ctx, callerOf(ctx), target, childPath(n.path(), name)))
}

func (n *node) Link(ctx context.Context, target gofuse.InodeEmbedder, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	oldpath := "/" + target.EmbeddedInode().Path(nil)
	return nil, errno(n.b.a.Link(ctx, callerOf(ctx), oldpath, childPath(n.path(), name)))
}

func (n *node) Getxattr(ctx context.Context, attr string, dest []byte) (uint32, syscall.Errno) {
	_, err := n.b.a.Getxattr(ctx, callerOf(ctx), n.path(), attr)
	return 0, errno(err)
}

func (n *node) Setxattr(ctx context.Context, attr string, data []byte, flags uint32) syscall.Errno {
	return errno(n.b.a.Setxattr(ctx, callerOf(ctx), n.path(), attr, data, flags))
}

// Listxattr reports no attributes rather than failing; ls(1) and cp(1) list
// attributes on every file.
func (n *node) Listxattr(ctx context.Context, dest []byte) (uint32, syscall.Errno) {
	n.b.a.Listxattr(ctx, callerOf(ctx), n.path())
	return 0, 0
}

func (n *node) Removexattr(ctx context.Context, attr string) syscall.Errno {
	return errno(n.b.a.Removexattr(ctx, callerOf(ctx), n.path(), attr))
}

// Statfs reports an empty filesystem rather than failing, so df(1) works.
func (n *node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	n.b.a.Statfs(ctx, callerOf(ctx), n.path())
	out.Bsize = 4096
	out.Frsize = 4096
	out.NameLen = 255
	return 0
}

var _ gofuse.DirStream = (*sliceDirStream)(nil)

type sliceDirStream struct {
	entries []fuse.DirEntry
	index   int
}

func (s *sliceDirStream) HasNext() bool {
	return s.index < len(s.entries)
}

func (s *sliceDirStream) Next() (fuse.DirEntry, syscall.Errno) {
	if s.index >= len(s.entries) {
		return fuse.DirEntry{}, syscall.EINVAL
	}
	entry := s.entries[s.index]
	s.index++
	return entry, 0
}

func (s *sliceDirStream) Close() {}
