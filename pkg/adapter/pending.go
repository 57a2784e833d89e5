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

import "sync"

// pendingSet tracks files made by mknod that the provider hasn't seen yet.
// An entry lives until the first flush that writes the path, or until the
// path is unlinked.
type pendingSet struct {
	mu    sync.RWMutex
	modes map[string]uint32
}

func newPendingSet() *pendingSet {
	return &pendingSet{modes: make(map[string]uint32)}
}

func (p *pendingSet) add(path string, mode uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modes[path] = mode
}

func (p *pendingSet) get(path string) (mode uint32, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	mode, ok = p.modes[path]
	return mode, ok
}

// remove reports whether path was pending.
func (p *pendingSet) remove(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.modes[path]
	delete(p.modes, path)
	return ok
}

// move re-keys a pending entry, reporting whether from was pending.
func (p *pendingSet) move(from, to string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	mode, ok := p.modes[from]
	if !ok {
		return false
	}
	delete(p.modes, from)
	p.modes[to] = mode
	return true
}

func (p *pendingSet) len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.modes)
}
