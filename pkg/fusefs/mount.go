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
	"errors"
	"fmt"
	"os"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/kurafs/fusefs/pkg/adapter"
	"github.com/kurafs/fusefs/pkg/log"
)

const (
	DefaultEntryTimeout = time.Second
	DefaultAttrTimeout  = time.Second
)

type Options struct {
	// Mountpoint is created if it doesn't exist.
	Mountpoint string
	Adapter    *adapter.Adapter

	// FsName is shown as the device in mount(8) and /proc/mounts.
	FsName string

	// AllowOther permits other users (including root) to access the mount.
	// Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Debug logs every FUSE request and response.
	Debug bool

	// DirectIO bypasses the kernel page cache, so every read reaches the
	// adapter.
	DirectIO bool

	// Zero uses the defaults above. Negative disables caching.
	EntryTimeout time.Duration
	AttrTimeout  time.Duration

	Logger *log.Logger
}

// NewRoot returns the root inode serving a.
func NewRoot(a *adapter.Adapter, logger *log.Logger, directIO bool) gofuse.InodeEmbedder {
	if logger == nil {
		logger = log.Discarder()
	}
	return &node{b: &bridge{a: a, logger: logger, directIO: directIO}}
}

// Mount mounts opts.Adapter at opts.Mountpoint and starts serving it. Call
// Unmount on the returned server (or Wait for an external umount) to stop.
func Mount(opts Options) (*fuse.Server, error) {
	if opts.Mountpoint == "" {
		return nil, errors.New("mountpoint is required")
	}
	if opts.Adapter == nil {
		return nil, errors.New("adapter is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Discarder()
	}
	if opts.FsName == "" {
		opts.FsName = "fusefs"
	}

	if err := os.MkdirAll(opts.Mountpoint, 0755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", opts.Mountpoint, err)
	}

	entryTimeout := timeout(opts.EntryTimeout, DefaultEntryTimeout)
	attrTimeout := timeout(opts.AttrTimeout, DefaultAttrTimeout)

	root := NewRoot(opts.Adapter, opts.Logger, opts.DirectIO)
	server, err := gofuse.Mount(opts.Mountpoint, root, &gofuse.Options{
		EntryTimeout: &entryTimeout,
		AttrTimeout:  &attrTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     opts.FsName,
			Name:       "fusefs",
			AllowOther: opts.AllowOther,
			Debug:      opts.Debug,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting at %s: %w", opts.Mountpoint, err)
	}

	opts.Logger.Infof("mounted %s at %s", opts.FsName, opts.Mountpoint)
	return server, nil
}

func timeout(d, def time.Duration) time.Duration {
	switch {
	case d == 0:
		return def
	case d < 0:
		return 0
	default:
		return d
	}
}
