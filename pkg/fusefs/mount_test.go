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
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurafs/fusefs/pkg/adapter"
	"github.com/kurafs/fusefs/pkg/providers/hello"
	"github.com/kurafs/fusefs/pkg/providers/memfs"
	"github.com/kurafs/fusefs/pkg/vfs"
)

// fuseAvailable skips tests that need a real mount when the kernel module or
// the permission to mount is missing.
func fuseAvailable(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skip("skipping: /dev/fuse not available")
	}
}

func testMount(t *testing.T, p vfs.Provider) string {
	t.Helper()
	fuseAvailable(t)

	mountpoint := filepath.Join(t.TempDir(), "mnt")
	server, err := Mount(Options{
		Mountpoint:   mountpoint,
		Adapter:      adapter.New(p),
		EntryTimeout: -1,
		AttrTimeout:  -1,
	})
	if err != nil {
		t.Skipf("skipping: cannot mount: %v", err)
	}
	t.Cleanup(func() {
		if err := server.Unmount(); err != nil {
			t.Errorf("unmount: %v", err)
		}
	})
	return mountpoint
}

func TestMountValidation(t *testing.T) {
	_, err := Mount(Options{Adapter: adapter.New(vfs.Base{})})
	assert.Error(t, err)
	_, err = Mount(Options{Mountpoint: t.TempDir()})
	assert.Error(t, err)
}

func TestMountHello(t *testing.T) {
	mnt := testMount(t, hello.New())

	entries, err := os.ReadDir(mnt)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hello.txt", entries[0].Name())

	content, err := os.ReadFile(filepath.Join(mnt, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, hello.Greeting, string(content))

	err = os.WriteFile(filepath.Join(mnt, "hello.txt"), []byte("bye"), 0644)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Error(t, os.Mkdir(filepath.Join(mnt, "dir"), 0755))
}

func TestMountReadWrite(t *testing.T) {
	p := memfs.New()
	mnt := testMount(t, p)
	ctx := context.Background()

	require.NoError(t, os.Mkdir(filepath.Join(mnt, "docs"), 0755))
	name := filepath.Join(mnt, "docs", "notes.txt")
	require.NoError(t, os.WriteFile(name, []byte("first draft"), 0644))

	content, err := p.ReadFile(ctx, "/docs/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "first draft", string(content))

	f, err := os.OpenFile(name, os.O_WRONLY|os.O_APPEND, 0)
	require.NoError(t, err)
	_, err = f.WriteString(", revised")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	content, err = os.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "first draft, revised", string(content))

	require.NoError(t, os.Truncate(name, 5))
	fi, err := os.Stat(name)
	require.NoError(t, err)
	assert.Equal(t, int64(5), fi.Size())
	assert.True(t, fi.Mode().IsRegular())

	renamed := filepath.Join(mnt, "docs", "first.txt")
	require.NoError(t, os.Rename(name, renamed))
	entries, err := os.ReadDir(filepath.Join(mnt, "docs"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	assert.Equal(t, []string{"first.txt"}, names)

	require.NoError(t, os.Remove(renamed))
	require.NoError(t, os.Remove(filepath.Join(mnt, "docs")))
	assert.False(t, p.IsDirectory(ctx, "/docs"))
}

func TestMountEmptyFileIsVisibleBeforeClose(t *testing.T) {
	mnt := testMount(t, memfs.New())

	name := filepath.Join(mnt, "empty")
	f, err := os.Create(name)
	require.NoError(t, err)

	fi, err := os.Stat(name)
	require.NoError(t, err)
	assert.Equal(t, int64(0), fi.Size())

	require.NoError(t, f.Close())
	_, err = os.Stat(name)
	assert.NoError(t, err)
}
