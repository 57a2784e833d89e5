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

// Package memfs is a read-write provider that keeps everything in memory.
// Entries are indexed by absolute path in a B-tree, so a directory's children
// form one contiguous run and listings come out sorted.
package memfs

import (
	"context"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/kurafs/fusefs/pkg/vfs"
)

const degree = 32

type entry struct {
	path  string
	dir   bool
	data  []byte
	atime time.Time
	mtime time.Time
	ctime time.Time
}

func (e *entry) Less(than btree.Item) bool {
	return e.path < than.(*entry).path
}

func key(p string) *entry { return &entry{path: p} }

// FS is safe for concurrent use.
type FS struct {
	mu   sync.RWMutex
	tree *btree.BTree
	now  func() time.Time
}

var (
	_ vfs.Provider = (*FS)(nil)
	_ vfs.Renamer  = (*FS)(nil)
	_ vfs.Toucher  = (*FS)(nil)
)

type Option func(*FS)

// WithClock overrides the time source for new entries and writes.
func WithClock(now func() time.Time) Option {
	return func(f *FS) { f.now = now }
}

func New(opts ...Option) *FS {
	f := &FS{tree: btree.New(degree), now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// lookup must be called with mu held.
func (f *FS) lookup(p string) (*entry, bool) {
	if p == "/" {
		return &entry{path: "/", dir: true}, true
	}
	item := f.tree.Get(key(p))
	if item == nil {
		return nil, false
	}
	return item.(*entry), true
}

// children calls fn for each entry directly inside dir, in order. It must be
// called with mu held.
func (f *FS) children(dir string, fn func(e *entry) bool) {
	prefix := strings.TrimSuffix(dir, "/") + "/"
	f.tree.AscendGreaterOrEqual(key(prefix), func(i btree.Item) bool {
		e := i.(*entry)
		if !strings.HasPrefix(e.path, prefix) {
			return false
		}
		if strings.Contains(e.path[len(prefix):], "/") {
			return true
		}
		return fn(e)
	})
}

// subtree collects dir and everything below it. It must be called with mu
// held.
func (f *FS) subtree(dir string) []*entry {
	var out []*entry
	if e, ok := f.lookup(dir); ok {
		out = append(out, e)
	}
	prefix := dir + "/"
	f.tree.AscendGreaterOrEqual(key(prefix), func(i btree.Item) bool {
		e := i.(*entry)
		if !strings.HasPrefix(e.path, prefix) {
			return false
		}
		out = append(out, e)
		return true
	})
	return out
}

func (f *FS) isDir(p string) bool {
	e, ok := f.lookup(p)
	return ok && e.dir
}

func (f *FS) Contents(ctx context.Context, dir string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.isDir(dir) {
		return nil, fs.ErrNotExist
	}
	var names []string
	f.children(dir, func(e *entry) bool {
		names = append(names, path.Base(e.path))
		return true
	})
	return names, nil
}

func (f *FS) IsDirectory(ctx context.Context, p string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.isDir(p)
}

func (f *FS) IsFile(ctx context.Context, p string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.lookup(p)
	return ok && !e.dir
}

func (f *FS) Size(ctx context.Context, p string) (int64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.lookup(p)
	if !ok {
		return 0, fs.ErrNotExist
	}
	return int64(len(e.data)), nil
}

func (f *FS) Times(ctx context.Context, p string) (atime, mtime, ctime time.Time, err error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.lookup(p)
	if !ok {
		return atime, mtime, ctime, fs.ErrNotExist
	}
	return e.atime, e.mtime, e.ctime, nil
}

func (f *FS) ReadFile(ctx context.Context, p string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.lookup(p)
	if !ok || e.dir {
		return nil, fs.ErrNotExist
	}
	return append([]byte(nil), e.data...), nil
}

func (f *FS) WriteTo(ctx context.Context, p string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.isDir(path.Dir(p)) {
		return fs.ErrNotExist
	}
	now := f.now()
	e, ok := f.lookup(p)
	switch {
	case !ok:
		e = &entry{path: p, atime: now, ctime: now}
	case e.dir:
		return &fs.PathError{Op: "write", Path: p, Err: fs.ErrInvalid}
	}
	e.data = append([]byte(nil), data...)
	e.mtime = now
	f.tree.ReplaceOrInsert(e)
	return nil
}

// CanWrite permits writing any file whose directory exists.
func (f *FS) CanWrite(ctx context.Context, p string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return !f.isDir(p) && f.isDir(path.Dir(p))
}

func (f *FS) CanMkdir(ctx context.Context, p string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, exists := f.lookup(p)
	return !exists && f.isDir(path.Dir(p))
}

func (f *FS) CanDelete(ctx context.Context, p string) bool {
	return f.IsFile(ctx, p)
}

// CanRmdir permits removing empty directories other than the root.
func (f *FS) CanRmdir(ctx context.Context, p string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if p == "/" || !f.isDir(p) {
		return false
	}
	empty := true
	f.children(p, func(*entry) bool {
		empty = false
		return false
	})
	return empty
}

func (f *FS) Executable(ctx context.Context, p string) bool { return false }

func (f *FS) Mkdir(ctx context.Context, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.lookup(p); exists {
		return fs.ErrExist
	}
	if !f.isDir(path.Dir(p)) {
		return fs.ErrNotExist
	}
	now := f.now()
	f.tree.ReplaceOrInsert(&entry{path: p, dir: true, atime: now, mtime: now, ctime: now})
	return nil
}

func (f *FS) Rmdir(ctx context.Context, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p == "/" || !f.isDir(p) {
		return fs.ErrNotExist
	}
	f.tree.Delete(key(p))
	return nil
}

func (f *FS) Delete(ctx context.Context, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.lookup(p)
	if !ok || e.dir {
		return fs.ErrNotExist
	}
	f.tree.Delete(e)
	return nil
}

// Rename moves a file or a whole directory. An existing file at the target
// is replaced; an existing directory is not.
func (f *FS) Rename(ctx context.Context, from, to string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if from == "/" || to == "/" || strings.HasPrefix(to, from+"/") {
		return true, vfs.InvalidArgument("rename", from, "cannot move %s into itself", from)
	}
	if _, ok := f.lookup(from); !ok {
		return true, fs.ErrNotExist
	}
	if !f.isDir(path.Dir(to)) {
		return true, fs.ErrNotExist
	}
	if f.isDir(to) {
		return true, fs.ErrExist
	}

	now := f.now()
	for _, e := range f.subtree(from) {
		f.tree.Delete(e)
		e.path = to + strings.TrimPrefix(e.path, from)
		e.ctime = now
		f.tree.ReplaceOrInsert(e)
	}
	return true, nil
}

func (f *FS) Touch(ctx context.Context, p string, mtime time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.lookup(p)
	if !ok || p == "/" {
		return fs.ErrNotExist
	}
	e.mtime = mtime
	return nil
}
