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
	"fmt"
	"io/fs"
	"syscall"
	"testing"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/kurafs/fusefs/pkg/adapter"
	"github.com/kurafs/fusefs/pkg/providers/memfs"
	"github.com/kurafs/fusefs/pkg/vfs"
)

func TestErrno(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want syscall.Errno
	}{
		{nil, 0},
		{vfs.PermissionDenied("open", "/a"), syscall.EACCES},
		{vfs.NotFound("getattr", "/a"), syscall.ENOENT},
		{vfs.Unsupported("link", "/a"), syscall.ENOTSUP},
		{vfs.InvalidArgument("read", "/a", "bad offset"), syscall.EINVAL},
		{&vfs.Error{Kind: vfs.KindStaleHandle}, syscall.EBADF},
		{vfs.Translate("flush", "/a", syscall.ENOSPC), syscall.ENOSPC},
		{vfs.Translate("flush", "/a", fmt.Errorf("disk on fire")), syscall.EIO},
		{vfs.Translate("open", "/a", fs.ErrNotExist), syscall.ENOENT},
		{syscall.EROFS, syscall.EROFS},
		{fmt.Errorf("plain"), syscall.EIO},
	} {
		assert.Equal(t, tc.want, errno(tc.err), "%v", tc.err)
	}
}

func TestCallerOf(t *testing.T) {
	assert.Nil(t, callerOf(context.Background()))

	ctx := fuse.NewContext(context.Background(), &fuse.Caller{
		Owner: fuse.Owner{Uid: 1000, Gid: 100},
		Pid:   4242,
	})
	assert.Equal(t, &vfs.Caller{UID: 1000, GID: 100, PID: 4242}, callerOf(ctx))
}

func TestFillAttr(t *testing.T) {
	mtime := time.Date(2018, 10, 16, 10, 4, 5, 0, time.UTC)
	var out fuse.Attr
	fillAttr(adapter.Attr{
		Mode:  unix.S_IFREG | 0644,
		Nlink: 1,
		Size:  1025,
		UID:   7,
		GID:   8,
		Atime: mtime,
		Mtime: mtime,
		Ctime: mtime,
	}, &out)

	assert.Equal(t, uint32(unix.S_IFREG|0644), out.Mode)
	assert.Equal(t, uint64(1025), out.Size)
	assert.Equal(t, uint64(3), out.Blocks)
	assert.Equal(t, uint32(7), out.Uid)
	assert.Equal(t, uint32(8), out.Gid)
	assert.Equal(t, uint64(mtime.Unix()), out.Mtime)
}

func TestHandleOf(t *testing.T) {
	_, ok := handleOf(nil)
	assert.False(t, ok)
	_, ok = handleOf((*fileHandle)(nil))
	assert.False(t, ok)
	id, ok := handleOf(&fileHandle{id: 9})
	assert.True(t, ok)
	assert.Equal(t, adapter.HandleID(9), id)
}

func TestSetattr(t *testing.T) {
	p := memfs.New()
	ctx := context.Background()
	require.NoError(t, p.WriteTo(ctx, "/a.txt", []byte("abcdef")))
	b := &bridge{a: adapter.New(p)}

	// Truncate by path.
	in := &fuse.SetAttrIn{}
	in.Valid = fuse.FATTR_SIZE
	in.Size = 3
	require.NoError(t, b.setattr(ctx, "/a.txt", nil, in))
	content, err := p.ReadFile(ctx, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(content))

	// Truncate through an open file only touches the buffer until flush.
	fh, err := b.a.Open(ctx, nil, "/a.txt", unix.O_RDWR)
	require.NoError(t, err)
	in.Size = 1
	require.NoError(t, b.setattr(ctx, "/a.txt", &fileHandle{id: fh}, in))
	content, _ = p.ReadFile(ctx, "/a.txt")
	assert.Equal(t, "abc", string(content))
	require.NoError(t, b.a.Release(ctx, nil, "/a.txt", fh))
	content, _ = p.ReadFile(ctx, "/a.txt")
	assert.Equal(t, "a", string(content))

	// Times reach the provider's Touch; mode changes are absorbed.
	mtime := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	in = &fuse.SetAttrIn{}
	in.Valid = fuse.FATTR_MTIME | fuse.FATTR_MODE
	in.Mtime = uint64(mtime.Unix())
	in.Mode = 0600
	require.NoError(t, b.setattr(ctx, "/a.txt", nil, in))
	_, got, _, err := p.Times(ctx, "/a.txt")
	require.NoError(t, err)
	assert.True(t, mtime.Equal(got), "mtime %v", got)

	// touch -a sets only the access time; the modification time stays.
	in = &fuse.SetAttrIn{}
	in.Valid = fuse.FATTR_ATIME
	in.Atime = uint64(time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC).Unix())
	require.NoError(t, b.setattr(ctx, "/a.txt", nil, in))
	_, got, _, err = p.Times(ctx, "/a.txt")
	require.NoError(t, err)
	assert.True(t, mtime.Equal(got), "mtime %v", got)
}

func TestReaddirDropsDots(t *testing.T) {
	p := memfs.New()
	ctx := context.Background()
	require.NoError(t, p.WriteTo(ctx, "/b", nil))
	require.NoError(t, p.Mkdir(ctx, "/a"))
	b := &bridge{a: adapter.New(p)}

	entries, err := b.readdir(ctx, "/")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestSliceDirStream(t *testing.T) {
	s := &sliceDirStream{entries: []fuse.DirEntry{{Name: "a"}}}
	require.True(t, s.HasNext())
	e, en := s.Next()
	assert.Equal(t, syscall.Errno(0), en)
	assert.Equal(t, "a", e.Name)
	assert.False(t, s.HasNext())
	_, en = s.Next()
	assert.Equal(t, syscall.EINVAL, en)
}

func TestTimeout(t *testing.T) {
	assert.Equal(t, time.Second, timeout(0, time.Second))
	assert.Equal(t, time.Duration(0), timeout(-1, time.Second))
	assert.Equal(t, time.Minute, timeout(time.Minute, time.Second))
}
