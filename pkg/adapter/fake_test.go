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
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kurafs/fusefs/pkg/vfs"
)

var epoch = time.Date(2018, 10, 16, 10, 4, 5, 0, time.UTC)

// fakeProvider is a whole-file provider over maps, recording what it was
// asked to do.
type fakeProvider struct {
	vfs.Base

	mu          sync.Mutex
	files       map[string][]byte
	dirs        map[string]bool
	listing     []string // returned verbatim by Contents when set
	readonly    map[string]bool
	undeletable map[string]bool
	noMkdir     bool

	writes  map[string]int
	deletes int
}

var _ vfs.Provider = (*fakeProvider)(nil)

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		files:       make(map[string][]byte),
		dirs:        map[string]bool{"/": true},
		readonly:    make(map[string]bool),
		undeletable: make(map[string]bool),
		writes:      make(map[string]int),
	}
}

func (p *fakeProvider) Contents(ctx context.Context, dir string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.listing != nil {
		return p.listing, nil
	}
	var names []string
	for f := range p.files {
		if path.Dir(f) == dir {
			names = append(names, path.Base(f))
		}
	}
	for d := range p.dirs {
		if d != "/" && path.Dir(d) == dir {
			names = append(names, path.Base(d))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (p *fakeProvider) IsDirectory(ctx context.Context, path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirs[path]
}

func (p *fakeProvider) IsFile(ctx context.Context, path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.files[path]
	return ok
}

func (p *fakeProvider) Size(ctx context.Context, path string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int64(len(p.files[path])), nil
}

func (p *fakeProvider) Times(ctx context.Context, path string) (atime, mtime, ctime time.Time, err error) {
	return epoch, epoch, epoch, nil
}

func (p *fakeProvider) ReadFile(ctx context.Context, path string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	content, ok := p.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return append([]byte(nil), content...), nil
}

func (p *fakeProvider) WriteTo(ctx context.Context, path string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files[path] = append([]byte(nil), data...)
	p.writes[path]++
	return nil
}

func (p *fakeProvider) CanWrite(ctx context.Context, path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.readonly[path]
}

func (p *fakeProvider) CanMkdir(ctx context.Context, path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.noMkdir
}

func (p *fakeProvider) CanDelete(ctx context.Context, path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.undeletable[path]
}

func (p *fakeProvider) CanRmdir(ctx context.Context, path string) bool { return true }

func (p *fakeProvider) Executable(ctx context.Context, path string) bool {
	return strings.HasSuffix(path, ".sh")
}

func (p *fakeProvider) Mkdir(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirs[path] = true
	return nil
}

func (p *fakeProvider) Rmdir(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.dirs, path)
	return nil
}

func (p *fakeProvider) Delete(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.files[path]; !ok {
		return fs.ErrNotExist
	}
	delete(p.files, path)
	p.deletes++
	return nil
}

func (p *fakeProvider) content(path string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.files[path]
	return string(c), ok
}

func (p *fakeProvider) writesTo(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes[path]
}

// rawProvider serves byte ranges directly for paths under /raw.
type rawProvider struct {
	*fakeProvider

	truncates bool
	eofTail   bool // final reads return their bytes with io.EOF
	opened    map[int]string
	closed    []int
	next      int
}

var (
	_ vfs.RawOpener    = (*rawProvider)(nil)
	_ vfs.RawTruncater = (*rawProvider)(nil)
)

func newRawProvider() *rawProvider {
	return &rawProvider{fakeProvider: newFakeProvider(), truncates: true, opened: make(map[int]string)}
}

func (p *rawProvider) RawOpen(ctx context.Context, path string, mode vfs.OpenMode) (vfs.RawToken, bool, error) {
	if !strings.HasPrefix(path, "/raw") {
		return nil, false, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.files[path]; !ok && !mode.Writing() {
		return nil, false, fs.ErrNotExist
	}
	p.next++
	p.opened[p.next] = string(mode)
	return p.next, true, nil
}

func (p *rawProvider) RawRead(ctx context.Context, path string, off int64, size int, tok vfs.RawToken) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	content := p.files[path]
	if off >= int64(len(content)) {
		return nil, io.EOF
	}
	end := off + int64(size)
	if end > int64(len(content)) {
		end = int64(len(content))
	}
	data := append([]byte(nil), content[off:end]...)
	if p.eofTail && end == int64(len(content)) {
		return data, io.EOF
	}
	return data, nil
}

func (p *rawProvider) RawWrite(ctx context.Context, path string, off int64, data []byte, tok vfs.RawToken) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	content := p.files[path]
	if end := off + int64(len(data)); end > int64(len(content)) {
		content = append(content, make([]byte, end-int64(len(content)))...)
	}
	copy(content[off:], data)
	p.files[path] = content
	return len(data), nil
}

func (p *rawProvider) RawClose(ctx context.Context, path string, tok vfs.RawToken) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed, tok.(int))
	return nil
}

func (p *rawProvider) RawTruncate(ctx context.Context, path string, size int64, tok vfs.RawToken) (bool, error) {
	if !p.truncates {
		return false, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	content := p.files[path]
	if size < int64(len(content)) {
		p.files[path] = content[:size]
	}
	return true, nil
}

// nativeProvider renames and touches natively.
type nativeProvider struct {
	*fakeProvider

	renames int
	mtimes  map[string]time.Time
}

var (
	_ vfs.Renamer = (*nativeProvider)(nil)
	_ vfs.Toucher = (*nativeProvider)(nil)
)

func newNativeProvider() *nativeProvider {
	return &nativeProvider{fakeProvider: newFakeProvider(), mtimes: make(map[string]time.Time)}
}

func (p *nativeProvider) Rename(ctx context.Context, from, to string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	content, ok := p.files[from]
	if !ok {
		return false, nil
	}
	delete(p.files, from)
	p.files[to] = content
	p.renames++
	return true, nil
}

func (p *nativeProvider) Touch(ctx context.Context, path string, mtime time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mtimes[path] = mtime
	return nil
}

// identityProvider only lets a caller write files named after its uid, and
// records every identity it observed.
type identityProvider struct {
	*fakeProvider

	seenMu sync.Mutex
	seen   map[string][]vfs.Caller
}

func newIdentityProvider() *identityProvider {
	return &identityProvider{fakeProvider: newFakeProvider(), seen: make(map[string][]vfs.Caller)}
}

func (p *identityProvider) CanWrite(ctx context.Context, path string) bool {
	c, ok := vfs.CallerFrom(ctx)
	p.seenMu.Lock()
	p.seen[path] = append(p.seen[path], c)
	p.seenMu.Unlock()
	return ok && path == ownedBy(c.UID)
}

func ownedBy(uid uint32) string {
	return fmt.Sprintf("/owned-by-%d", uid)
}
