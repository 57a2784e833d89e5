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

// Package boltfs is a persistent provider backed by a single bolt database.
//
// Every entry has a CBOR-encoded metadata record in the "meta" bucket, keyed
// by absolute path. File content lives in the "chunks" bucket, split into
// fixed-size chunks keyed by path, a NUL and the big-endian chunk index.
// Chunks past the end of what was written are absent and read as zeros.
//
// Files are served through raw I/O, so reads and writes touch only the chunks
// they overlap. Each entry records the uid of the caller that created it, and
// only that user (or root, or calls carrying no caller at all) may modify it.
package boltfs

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/boltdb/bolt"

	"github.com/kurafs/fusefs/pkg/codec"
	"github.com/kurafs/fusefs/pkg/log"
	"github.com/kurafs/fusefs/pkg/streaming"
	"github.com/kurafs/fusefs/pkg/vfs"
)

var (
	metaBucket  = []byte("meta")
	chunkBucket = []byte("chunks")
)

type meta struct {
	Dir   bool   `cbor:"1,keyasint,omitempty"`
	Size  int64  `cbor:"2,keyasint,omitempty"`
	UID   uint32 `cbor:"3,keyasint"`
	GID   uint32 `cbor:"4,keyasint"`
	Atime int64  `cbor:"5,keyasint"`
	Mtime int64  `cbor:"6,keyasint"`
	Ctime int64  `cbor:"7,keyasint"`
}

// openFile is the raw token for an open file.
type openFile struct {
	path string
	mode vfs.OpenMode
}

type Store struct {
	db        *bolt.DB
	logger    *log.Logger
	chunkSize int
	uid, gid  uint32
	now       func() time.Time
	open      int64
}

var (
	_ vfs.Provider     = (*Store)(nil)
	_ vfs.RawOpener    = (*Store)(nil)
	_ vfs.RawTruncater = (*Store)(nil)
	_ vfs.Renamer      = (*Store)(nil)
	_ vfs.Toucher      = (*Store)(nil)
)

type Option func(*Store)

func WithLogger(logger *log.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithChunkSize sets the size content is split into. It only applies to
// stores created with it; reopening a store with a different size corrupts
// its files.
func WithChunkSize(size int) Option {
	return func(s *Store) { s.chunkSize = size }
}

// WithOwner sets the owner of the root directory when the store is created.
// It defaults to the current process's user.
func WithOwner(uid, gid uint32) Option {
	return func(s *Store) { s.uid, s.gid = uid, gid }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (creating if needed) the store at file.
func Open(file string, opts ...Option) (*Store, error) {
	s := &Store{
		logger:    log.Discarder(),
		chunkSize: streaming.ChunkSize,
		uid:       uint32(os.Getuid()),
		gid:       uint32(os.Getgid()),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := bolt.Open(file, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", file, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{metaBucket, chunkBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket: %s", err)
			}
		}
		b := tx.Bucket(metaBucket)
		if b.Get([]byte("/")) != nil {
			return nil
		}
		now := s.now().UnixNano()
		return putMeta(b, "/", &meta{Dir: true, UID: s.uid, GID: s.gid, Atime: now, Mtime: now, Ctime: now})
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	s.db = db
	s.logger.Infof("opened store %s", file)
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// OpenFiles returns the number of raw tokens handed out and not yet closed.
func (s *Store) OpenFiles() int {
	return int(atomic.LoadInt64(&s.open))
}

func getMeta(b *bolt.Bucket, p string) (*meta, bool, error) {
	data := b.Get([]byte(p))
	if data == nil {
		return nil, false, nil
	}
	m := &meta{}
	if err := codec.Unmarshal(data, m); err != nil {
		return nil, false, fmt.Errorf("decoding metadata for %s: %w", p, err)
	}
	return m, true, nil
}

func putMeta(b *bolt.Bucket, p string, m *meta) error {
	data, err := codec.Marshal(m)
	if err != nil {
		return err
	}
	return b.Put([]byte(p), data)
}

func chunkKey(p string, index int) []byte {
	key := make([]byte, len(p)+1+4)
	copy(key, p)
	binary.BigEndian.PutUint32(key[len(p)+1:], uint32(index))
	return key
}

func chunkPrefix(p string) []byte {
	return append([]byte(p), 0)
}

// stat looks p up outside of any transaction; errors read as absent.
func (s *Store) stat(p string) (m *meta, ok bool) {
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		m, ok, err = getMeta(tx.Bucket(metaBucket), p)
		return err
	})
	if err != nil {
		s.logger.Warnf("stat %s: %v", p, err)
		return nil, false
	}
	return m, ok
}

// permits reports whether the caller in ctx may modify m.
func permits(ctx context.Context, m *meta) bool {
	c, ok := vfs.CallerFrom(ctx)
	return !ok || c.UID == 0 || c.UID == m.UID
}

func (s *Store) owner(ctx context.Context) (uid, gid uint32) {
	if c, ok := vfs.CallerFrom(ctx); ok {
		return c.UID, c.GID
	}
	return s.uid, s.gid
}

func (s *Store) Contents(ctx context.Context, dir string) ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(metaBucket)
		m, ok, err := getMeta(b, dir)
		if err != nil {
			return err
		}
		if !ok || !m.Dir {
			return fs.ErrNotExist
		}
		prefix := []byte(strings.TrimSuffix(dir, "/") + "/")
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			name := k[len(prefix):]
			if len(name) == 0 || bytes.IndexByte(name, '/') >= 0 {
				continue
			}
			names = append(names, string(name))
		}
		return nil
	})
	return names, err
}

func (s *Store) IsDirectory(ctx context.Context, p string) bool {
	m, ok := s.stat(p)
	return ok && m.Dir
}

func (s *Store) IsFile(ctx context.Context, p string) bool {
	m, ok := s.stat(p)
	return ok && !m.Dir
}

func (s *Store) Size(ctx context.Context, p string) (int64, error) {
	m, ok := s.stat(p)
	if !ok {
		return 0, fs.ErrNotExist
	}
	return m.Size, nil
}

func (s *Store) Times(ctx context.Context, p string) (atime, mtime, ctime time.Time, err error) {
	m, ok := s.stat(p)
	if !ok {
		return atime, mtime, ctime, fs.ErrNotExist
	}
	return time.Unix(0, m.Atime), time.Unix(0, m.Mtime), time.Unix(0, m.Ctime), nil
}

// read assembles [off, off+n) of a file of the given size, n already clamped
// to the end of the file.
func (s *Store) read(tx *bolt.Tx, p string, off int64, n int) []byte {
	out := make([]byte, n)
	first, last, ok := streaming.Span(off, n, s.chunkSize)
	if !ok {
		return out
	}
	chunks := tx.Bucket(chunkBucket)
	for i := first; i <= last; i++ {
		chunk := chunks.Get(chunkKey(p, i))
		start := int64(i) * int64(s.chunkSize)
		// Position of the chunk relative to out, and of out within the chunk.
		from := int64(0)
		if off > start {
			from = off - start
		}
		if from >= int64(len(chunk)) {
			continue
		}
		copy(out[start+from-off:], chunk[from:])
	}
	return out
}

// write stores data at off, growing m.Size as needed.
func (s *Store) write(tx *bolt.Tx, p string, m *meta, off int64, data []byte) error {
	first, last, ok := streaming.Span(off, len(data), s.chunkSize)
	if !ok {
		return nil
	}
	chunks := tx.Bucket(chunkBucket)
	for i := first; i <= last; i++ {
		key := chunkKey(p, i)
		start := int64(i) * int64(s.chunkSize)
		chunk := append([]byte(nil), chunks.Get(key)...)

		lo := int64(0)
		if off > start {
			lo = off - start
		}
		hi := off + int64(len(data)) - start
		if hi > int64(s.chunkSize) {
			hi = int64(s.chunkSize)
		}
		if int64(len(chunk)) < hi {
			chunk = append(chunk, make([]byte, hi-int64(len(chunk)))...)
		}
		copy(chunk[lo:hi], data[start+lo-off:])
		if err := chunks.Put(key, chunk); err != nil {
			return err
		}
	}
	if end := off + int64(len(data)); end > m.Size {
		m.Size = end
	}
	m.Mtime = s.now().UnixNano()
	return putMeta(tx.Bucket(metaBucket), p, m)
}

// truncate drops content past size. Growing a file only moves its size; the
// missing chunks read as zeros.
func (s *Store) truncate(tx *bolt.Tx, p string, m *meta, size int64) error {
	if size < m.Size {
		chunks := tx.Bucket(chunkBucket)
		keep := streaming.Chunks(size, s.chunkSize)
		for i := keep; i < streaming.Chunks(m.Size, s.chunkSize); i++ {
			if err := chunks.Delete(chunkKey(p, i)); err != nil {
				return err
			}
		}
		if rem := int(size % int64(s.chunkSize)); rem != 0 {
			key := chunkKey(p, keep-1)
			if chunk := chunks.Get(key); len(chunk) > rem {
				if err := chunks.Put(key, append([]byte(nil), chunk[:rem]...)); err != nil {
					return err
				}
			}
		}
	}
	m.Size = size
	m.Mtime = s.now().UnixNano()
	return putMeta(tx.Bucket(metaBucket), p, m)
}

// file fetches the metadata of the regular file at p.
func file(tx *bolt.Tx, p string) (*meta, error) {
	m, ok, err := getMeta(tx.Bucket(metaBucket), p)
	switch {
	case err != nil:
		return nil, err
	case !ok:
		return nil, fs.ErrNotExist
	case m.Dir:
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrInvalid}
	}
	return m, nil
}

func (s *Store) ReadFile(ctx context.Context, p string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		m, err := file(tx, p)
		if err != nil {
			return err
		}
		data = s.read(tx, p, 0, int(m.Size))
		return nil
	})
	return data, err
}

// WriteTo replaces p's content, creating p (owned by the caller) if needed.
func (s *Store) WriteTo(ctx context.Context, p string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		m, err := s.create(ctx, tx, p)
		if err != nil {
			return err
		}
		if err := s.truncate(tx, p, m, 0); err != nil {
			return err
		}
		chunks := tx.Bucket(chunkBucket)
		chunker := streaming.NewChunkerSize(data, s.chunkSize)
		for chunker.Next() {
			chunk := append([]byte(nil), chunker.Value()...)
			if err := chunks.Put(chunkKey(p, chunker.Index()), chunk); err != nil {
				return err
			}
		}
		m.Size = int64(len(data))
		return putMeta(tx.Bucket(metaBucket), p, m)
	})
}

// create returns the metadata of the file at p, adding an empty one if p
// doesn't exist yet.
func (s *Store) create(ctx context.Context, tx *bolt.Tx, p string) (*meta, error) {
	b := tx.Bucket(metaBucket)
	m, ok, err := getMeta(b, p)
	if err != nil {
		return nil, err
	}
	if ok {
		if m.Dir {
			return nil, &fs.PathError{Op: "write", Path: p, Err: fs.ErrInvalid}
		}
		return m, nil
	}
	parent, ok, err := getMeta(b, path.Dir(p))
	if err != nil {
		return nil, err
	}
	if !ok || !parent.Dir {
		return nil, fs.ErrNotExist
	}
	uid, gid := s.owner(ctx)
	now := s.now().UnixNano()
	m = &meta{UID: uid, GID: gid, Atime: now, Mtime: now, Ctime: now}
	return m, putMeta(b, p, m)
}

// CanWrite permits the owner of an existing file, or the owner of the
// directory a new file would go in.
func (s *Store) CanWrite(ctx context.Context, p string) bool {
	if m, ok := s.stat(p); ok {
		return !m.Dir && permits(ctx, m)
	}
	parent, ok := s.stat(path.Dir(p))
	return ok && parent.Dir && permits(ctx, parent)
}

func (s *Store) CanMkdir(ctx context.Context, p string) bool {
	if _, exists := s.stat(p); exists {
		return false
	}
	parent, ok := s.stat(path.Dir(p))
	return ok && parent.Dir && permits(ctx, parent)
}

func (s *Store) CanDelete(ctx context.Context, p string) bool {
	m, ok := s.stat(p)
	return ok && !m.Dir && permits(ctx, m)
}

func (s *Store) CanRmdir(ctx context.Context, p string) bool {
	if p == "/" {
		return false
	}
	m, ok := s.stat(p)
	if !ok || !m.Dir || !permits(ctx, m) {
		return false
	}
	names, err := s.Contents(ctx, p)
	return err == nil && len(names) == 0
}

func (s *Store) Executable(ctx context.Context, p string) bool { return false }

func (s *Store) Mkdir(ctx context.Context, p string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(metaBucket)
		if b.Get([]byte(p)) != nil {
			return fs.ErrExist
		}
		parent, ok, err := getMeta(b, path.Dir(p))
		if err != nil {
			return err
		}
		if !ok || !parent.Dir {
			return fs.ErrNotExist
		}
		uid, gid := s.owner(ctx)
		now := s.now().UnixNano()
		return putMeta(b, p, &meta{Dir: true, UID: uid, GID: gid, Atime: now, Mtime: now, Ctime: now})
	})
}

func (s *Store) Rmdir(ctx context.Context, p string) error {
	if p == "/" {
		return vfs.PermissionDenied("rmdir", p)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(metaBucket)
		m, ok, err := getMeta(b, p)
		if err != nil {
			return err
		}
		if !ok || !m.Dir {
			return fs.ErrNotExist
		}
		prefix := []byte(p + "/")
		if k, _ := b.Cursor().Seek(prefix); k != nil && bytes.HasPrefix(k, prefix) {
			return syscall.ENOTEMPTY
		}
		return b.Delete([]byte(p))
	})
}

func (s *Store) Delete(ctx context.Context, p string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		m, err := file(tx, p)
		if err != nil {
			return err
		}
		if err := s.truncate(tx, p, m, 0); err != nil {
			return err
		}
		return tx.Bucket(metaBucket).Delete([]byte(p))
	})
}

// Rename moves a file or a directory with everything below it. An existing
// file at the target is replaced.
func (s *Store) Rename(ctx context.Context, from, to string) (bool, error) {
	if from == "/" || to == "/" || strings.HasPrefix(to, from+"/") {
		return true, vfs.InvalidArgument("rename", from, "cannot move %s into itself", from)
	}
	if from == to {
		return true, nil
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(metaBucket)
		if b.Get([]byte(from)) == nil {
			return fs.ErrNotExist
		}
		parent, ok, err := getMeta(b, path.Dir(to))
		if err != nil {
			return err
		}
		if !ok || !parent.Dir {
			return fs.ErrNotExist
		}
		if target, ok, err := getMeta(b, to); err != nil {
			return err
		} else if ok {
			if target.Dir {
				return fs.ErrExist
			}
			if err := s.truncate(tx, to, target, 0); err != nil {
				return err
			}
		}

		// Collect before moving; bolt cursors don't survive modification.
		keys := [][]byte{[]byte(from)}
		prefix := []byte(from + "/")
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		now := s.now().UnixNano()
		for _, k := range keys {
			dst := to + strings.TrimPrefix(string(k), from)
			if err := s.move(tx, string(k), dst, now); err != nil {
				return err
			}
		}
		return nil
	})
	return true, err
}

// move relocates a single entry and its chunks.
func (s *Store) move(tx *bolt.Tx, from, to string, now int64) error {
	b := tx.Bucket(metaBucket)
	m, _, err := getMeta(b, from)
	if err != nil {
		return err
	}
	chunks := tx.Bucket(chunkBucket)
	if !m.Dir {
		for i := 0; i < streaming.Chunks(m.Size, s.chunkSize); i++ {
			chunk := chunks.Get(chunkKey(from, i))
			if chunk == nil {
				continue
			}
			if err := chunks.Put(chunkKey(to, i), append([]byte(nil), chunk...)); err != nil {
				return err
			}
			if err := chunks.Delete(chunkKey(from, i)); err != nil {
				return err
			}
		}
	}
	m.Ctime = now
	if err := b.Delete([]byte(from)); err != nil {
		return err
	}
	return putMeta(b, to, m)
}

func (s *Store) Touch(ctx context.Context, p string, mtime time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(metaBucket)
		m, ok, err := getMeta(b, p)
		if err != nil {
			return err
		}
		if !ok {
			return fs.ErrNotExist
		}
		m.Mtime = mtime.UnixNano()
		return putMeta(b, p, m)
	})
}

// RawOpen serves every regular file raw. Opening a missing file for writing
// creates it. Writers are held to the same ownership rule as CanWrite.
func (s *Store) RawOpen(ctx context.Context, p string, mode vfs.OpenMode) (vfs.RawToken, bool, error) {
	var err error
	if mode.Writing() {
		if !s.CanWrite(ctx, p) {
			return nil, false, fs.ErrPermission
		}
		err = s.db.Update(func(tx *bolt.Tx) error {
			_, err := s.create(ctx, tx, p)
			return err
		})
	} else {
		err = s.db.View(func(tx *bolt.Tx) error {
			_, err := file(tx, p)
			return err
		})
	}
	if err != nil {
		return nil, false, err
	}
	atomic.AddInt64(&s.open, 1)
	return &openFile{path: p, mode: mode}, true, nil
}

func token(p string, tok vfs.RawToken) (*openFile, error) {
	f, ok := tok.(*openFile)
	if !ok || f.path != p {
		return nil, vfs.InvalidArgument("raw", p, "foreign token %v", tok)
	}
	return f, nil
}

func (s *Store) RawRead(ctx context.Context, p string, off int64, size int, tok vfs.RawToken) ([]byte, error) {
	if _, err := token(p, tok); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		m, err := file(tx, p)
		if err != nil {
			return err
		}
		if off < 0 || off >= m.Size {
			return io.EOF
		}
		if rest := m.Size - off; int64(size) > rest {
			size = int(rest)
		}
		data = s.read(tx, p, off, size)
		return nil
	})
	return data, err
}

func (s *Store) RawWrite(ctx context.Context, p string, off int64, data []byte, tok vfs.RawToken) (int, error) {
	f, err := token(p, tok)
	if err != nil {
		return 0, err
	}
	if !f.mode.Writing() {
		return 0, vfs.PermissionDenied("write", p)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		m, err := file(tx, p)
		if err != nil {
			return err
		}
		if f.mode.Append() {
			off = m.Size
		}
		return s.write(tx, p, m, off, data)
	})
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

func (s *Store) RawClose(ctx context.Context, p string, tok vfs.RawToken) error {
	if _, err := token(p, tok); err != nil {
		return err
	}
	atomic.AddInt64(&s.open, -1)
	return nil
}

// RawTruncate resizes p. tok is nil for truncation by path.
func (s *Store) RawTruncate(ctx context.Context, p string, size int64, tok vfs.RawToken) (bool, error) {
	if tok != nil {
		if _, err := token(p, tok); err != nil {
			return true, err
		}
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		m, err := file(tx, p)
		if err != nil {
			return err
		}
		return s.truncate(tx, p, m, size)
	})
	return true, err
}
