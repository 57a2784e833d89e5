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

package memfs

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/kurafs/fusefs/pkg/adapter"
	"github.com/kurafs/fusefs/pkg/vfs"
)

var epoch = time.Date(2018, 10, 16, 0, 0, 0, 0, time.UTC)

func newFS(t *testing.T) *FS {
	t.Helper()
	f := New(WithClock(func() time.Time { return epoch }))
	ctx := context.Background()
	require.NoError(t, f.Mkdir(ctx, "/a"))
	require.NoError(t, f.Mkdir(ctx, "/a/b"))
	require.NoError(t, f.WriteTo(ctx, "/a/b/c.txt", []byte("deep")))
	require.NoError(t, f.WriteTo(ctx, "/a/x.txt", []byte("shallow")))
	require.NoError(t, f.WriteTo(ctx, "/a-b.txt", []byte("sibling")))
	return f
}

func TestContents(t *testing.T) {
	f := newFS(t)
	ctx := context.Background()

	names, err := f.Contents(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a-b.txt"}, names)

	names, err = f.Contents(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "x.txt"}, names)

	_, err = f.Contents(ctx, "/a/x.txt")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestPredicates(t *testing.T) {
	f := newFS(t)
	ctx := context.Background()

	assert.True(t, f.IsDirectory(ctx, "/"))
	assert.True(t, f.IsDirectory(ctx, "/a/b"))
	assert.False(t, f.IsFile(ctx, "/a/b"))
	assert.True(t, f.IsFile(ctx, "/a/x.txt"))

	assert.True(t, f.CanWrite(ctx, "/a/new.txt"))
	assert.True(t, f.CanWrite(ctx, "/a/x.txt"))
	assert.False(t, f.CanWrite(ctx, "/a/b"))
	assert.False(t, f.CanWrite(ctx, "/missing/new.txt"))

	assert.True(t, f.CanMkdir(ctx, "/a/d"))
	assert.False(t, f.CanMkdir(ctx, "/a/b"))

	assert.True(t, f.CanDelete(ctx, "/a/x.txt"))
	assert.False(t, f.CanDelete(ctx, "/a"))

	assert.False(t, f.CanRmdir(ctx, "/"))
	assert.False(t, f.CanRmdir(ctx, "/a"))
	require.NoError(t, f.Delete(ctx, "/a/b/c.txt"))
	assert.True(t, f.CanRmdir(ctx, "/a/b"))
	require.NoError(t, f.Rmdir(ctx, "/a/b"))
	assert.False(t, f.IsDirectory(ctx, "/a/b"))
}

func TestReadWrite(t *testing.T) {
	f := newFS(t)
	ctx := context.Background()

	data, err := f.ReadFile(ctx, "/a/x.txt")
	require.NoError(t, err)
	assert.Equal(t, "shallow", string(data))

	// The returned slice is a copy.
	data[0] = 'S'
	data, _ = f.ReadFile(ctx, "/a/x.txt")
	assert.Equal(t, "shallow", string(data))

	size, err := f.Size(ctx, "/a/b/c.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(4), size)

	assert.Error(t, f.WriteTo(ctx, "/nowhere/x", nil))
	assert.Error(t, f.WriteTo(ctx, "/a/b", nil))
	assert.ErrorIs(t, f.Mkdir(ctx, "/a"), fs.ErrExist)
}

func TestRename(t *testing.T) {
	f := newFS(t)
	ctx := context.Background()

	ok, err := f.Rename(ctx, "/a", "/z")
	require.True(t, ok)
	require.NoError(t, err)

	assert.False(t, f.IsDirectory(ctx, "/a"))
	assert.True(t, f.IsDirectory(ctx, "/z/b"))
	data, err := f.ReadFile(ctx, "/z/b/c.txt")
	require.NoError(t, err)
	assert.Equal(t, "deep", string(data))
	// A sibling sharing the prefix stays put.
	assert.True(t, f.IsFile(ctx, "/a-b.txt"))

	_, err = f.Rename(ctx, "/z", "/z/b/inner")
	assert.True(t, errors.Is(err, vfs.ErrInvalidArgument))

	// Files replace files.
	_, err = f.Rename(ctx, "/a-b.txt", "/z/x.txt")
	require.NoError(t, err)
	data, _ = f.ReadFile(ctx, "/z/x.txt")
	assert.Equal(t, "sibling", string(data))

	_, err = f.Rename(ctx, "/z/x.txt", "/z/b")
	assert.ErrorIs(t, err, fs.ErrExist)
}

func TestTouch(t *testing.T) {
	f := newFS(t)
	ctx := context.Background()

	later := epoch.Add(time.Hour)
	require.NoError(t, f.Touch(ctx, "/a/x.txt", later))
	atime, mtime, ctime, err := f.Times(ctx, "/a/x.txt")
	require.NoError(t, err)
	assert.Equal(t, epoch, atime)
	assert.Equal(t, later, mtime)
	assert.Equal(t, epoch, ctime)

	assert.ErrorIs(t, f.Touch(ctx, "/missing", later), fs.ErrNotExist)
}

// TestThroughAdapter drives the provider the way a mount would.
func TestThroughAdapter(t *testing.T) {
	f := newFS(t)
	ctx := context.Background()
	a := adapter.New(f)

	root, err := a.GetAttr(ctx, nil, "/")
	require.NoError(t, err)
	assert.Equal(t, uint32(unix.S_IFDIR|0777), root.Mode)

	fh, err := a.Create(ctx, nil, "/a/new.txt", 0644, unix.O_WRONLY)
	require.NoError(t, err)
	_, err = a.Write(ctx, nil, "/a/new.txt", fh, 0, []byte("hello"))
	require.NoError(t, err)
	require.NoError(t, a.Release(ctx, nil, "/a/new.txt", fh))

	attr, err := a.GetAttr(ctx, nil, "/a/new.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), attr.Size)
	assert.Equal(t, uint32(unix.S_IFREG|0666), attr.Mode)

	require.NoError(t, a.Rename(ctx, nil, "/a/new.txt", "/a/b/moved.txt"))
	assert.False(t, f.IsFile(ctx, "/a/new.txt"))
	data, err := f.ReadFile(ctx, "/a/b/moved.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	later := epoch.Add(time.Minute)
	require.NoError(t, a.Utimens(ctx, nil, "/a/b/moved.txt", later, later))
	attr, err = a.GetAttr(ctx, nil, "/a/b/moved.txt")
	require.NoError(t, err)
	assert.Equal(t, later, attr.Mtime)
}
