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
	"fmt"
	"sync"
)

// HandleID addresses an open file. The low 32 bits index a slot in the handle
// table; the high 32 bits carry the slot's generation at allocation, so IDs of
// released handles never resolve again, even once their slot is reused. The
// zero HandleID is never allocated.
type HandleID uint64

func makeHandleID(index, gen uint32) HandleID {
	return HandleID(uint64(gen)<<32 | uint64(index))
}

func (id HandleID) index() uint32 { return uint32(id) }
func (id HandleID) gen() uint32   { return uint32(id >> 32) }

func (id HandleID) String() string {
	return fmt.Sprintf("fh%d.%d", id.index(), id.gen())
}

type slot struct {
	gen uint32
	h   *FileHandle // nil when free
}

// handleTable is a slot map of open files.
type handleTable struct {
	mu    sync.Mutex
	slots []slot
	free  []uint32
	open  int
}

func newHandleTable() *handleTable {
	return &handleTable{}
}

func (t *handleTable) insert(h *FileHandle) HandleID {
	t.mu.Lock()
	defer t.mu.Unlock()

	var index uint32
	if n := len(t.free); n > 0 {
		index = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		index = uint32(len(t.slots))
		t.slots = append(t.slots, slot{})
	}

	s := &t.slots[index]
	s.gen++
	if s.gen == 0 { // wrapped; zero is reserved for "never allocated"
		s.gen = 1
	}
	s.h = h
	t.open++
	return makeHandleID(index, s.gen)
}

func (t *handleTable) get(id HandleID) (*FileHandle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.lookup(id)
	if !ok {
		return nil, false
	}
	return s.h, true
}

func (t *handleTable) remove(id HandleID) (*FileHandle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.lookup(id)
	if !ok {
		return nil, false
	}
	h := s.h
	s.h = nil
	t.free = append(t.free, id.index())
	t.open--
	return h, true
}

// lookup must be called with mu held.
func (t *handleTable) lookup(id HandleID) (*slot, bool) {
	if int(id.index()) >= len(t.slots) {
		return nil, false
	}
	s := &t.slots[id.index()]
	if s.h == nil || s.gen != id.gen() {
		return nil, false
	}
	return s, true
}

func (t *handleTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}
