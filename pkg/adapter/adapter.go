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

// Package adapter translates FUSE operations into calls against a
// vfs.Provider. It owns everything the provider doesn't: open file handles,
// buffering for providers that only read and write whole files, files created
// but not yet written, and the emulation of truncate and rename on top of
// whole-file access.
//
// Every entry point takes the calling process's identity, which is made
// available to the provider through the context for the duration of the call:
//
//      a := adapter.New(provider, adapter.WithLogger(logger))
//      fh, err := a.Open(ctx, &vfs.Caller{UID: 1000, GID: 1000}, "/hello.txt", unix.O_RDONLY)
//      data, err := a.Read(ctx, nil, "/hello.txt", fh, 0, 4096)
//
// A nil caller keeps whatever identity ctx already carries.
package adapter

import (
	"context"
	"os"
	"time"

	"github.com/kurafs/fusefs/pkg/log"
	"github.com/kurafs/fusefs/pkg/vfs"
)

// Adapter is safe for concurrent use.
type Adapter struct {
	provider vfs.Provider

	// Optional capabilities, nil when the provider lacks them.
	rawOpener    vfs.RawOpener
	rawTruncater vfs.RawTruncater
	toucher      vfs.Toucher
	renamer      vfs.Renamer

	handles *handleTable
	pending *pendingSet

	logger   *log.Logger
	metrics  *Metrics
	now      func() time.Time
	uid, gid uint32
}

type Option func(a *Adapter)

func WithLogger(logger *log.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithMetrics records operation counts and latencies in m.
func WithMetrics(m *Metrics) Option {
	return func(a *Adapter) {
		a.metrics = m
	}
}

// WithOwner sets the owner reported for provider files and directories. It
// defaults to the user running the adapter.
func WithOwner(uid, gid uint32) Option {
	return func(a *Adapter) {
		a.uid, a.gid = uid, gid
	}
}

// WithClock sets the time source used for files that only exist as pending
// creates.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		a.now = now
	}
}

// New returns an adapter serving p. The provider's optional capabilities are
// detected here, once.
func New(p vfs.Provider, opts ...Option) *Adapter {
	a := &Adapter{
		provider: p,
		handles:  newHandleTable(),
		pending:  newPendingSet(),
		logger:   log.Discarder(),
		now:      time.Now,
		uid:      uint32(os.Getuid()),
		gid:      uint32(os.Getgid()),
	}
	a.rawOpener, _ = p.(vfs.RawOpener)
	a.rawTruncater, _ = p.(vfs.RawTruncater)
	a.toucher, _ = p.(vfs.Toucher)
	a.renamer, _ = p.(vfs.Renamer)

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Provider returns the provider the adapter serves.
func (a *Adapter) Provider() vfs.Provider {
	return a.provider
}

// OpenHandles is the number of file handles not yet released.
func (a *Adapter) OpenHandles() int {
	return a.handles.len()
}

// Pending reports whether path was created by mknod and hasn't been written
// to the provider yet.
func (a *Adapter) Pending(path string) bool {
	_, ok := a.pending.get(path)
	return ok
}

// call is the scope of one dispatched operation.
type call struct {
	a     *Adapter
	op    string
	path  string
	start time.Time
}

// enter establishes the operation context for one entry point. The returned
// ctx carries caller (or keeps the caller already in ctx when caller is nil)
// and is only valid until the entry point returns.
func (a *Adapter) enter(ctx context.Context, caller *vfs.Caller, op, path string) (context.Context, *call) {
	if caller != nil {
		ctx = vfs.WithCaller(ctx, *caller)
	}
	if a.logger.DebugEnabled() {
		c, _ := vfs.CallerFrom(ctx)
		a.logger.Tag("op", op).Tag("path", path).Debugf("enter (%s)", c)
	}
	return ctx, &call{a: a, op: op, path: path, start: time.Now()}
}

// exit records the outcome of the call. Stale handles are logged as errors;
// they mean the kernel and the adapter disagree about what's open.
func (c *call) exit(err *error) {
	var e error
	if err != nil {
		e = *err
	}
	c.a.metrics.observe(c.op, c.start, e)
	c.a.metrics.setOpen(c.a.handles.len(), c.a.pending.len())

	switch {
	case e != nil && vfs.KindOf(e) == vfs.KindStaleHandle:
		c.a.logger.Tag("op", c.op).Tag("path", c.path).Error(e)
	case e != nil && vfs.KindOf(e) == vfs.KindIO:
		c.a.logger.Tag("op", c.op).Tag("path", c.path).Warn(e)
	case c.a.logger.DebugEnabled():
		c.a.logger.Tag("op", c.op).Tag("path", c.path).Debugf("exit after %s: %v", time.Since(c.start), e)
	}
}

// handle resolves id, failing with a stale handle error when it's been
// released or never existed.
func (a *Adapter) handle(op, path string, id HandleID) (*FileHandle, error) {
	h, ok := a.handles.get(id)
	if !ok {
		return nil, &vfs.Error{Kind: vfs.KindStaleHandle, Op: op, Path: path, Err: staleError(id)}
	}
	return h, nil
}

type staleError HandleID

func (e staleError) Error() string {
	return "no open file for " + HandleID(e).String()
}
