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

package fuseserver

import (
	"fmt"
	"io"

	"github.com/kurafs/fusefs/pkg/config"
	"github.com/kurafs/fusefs/pkg/log"
	"github.com/kurafs/fusefs/pkg/providers/boltfs"
	"github.com/kurafs/fusefs/pkg/providers/hello"
	"github.com/kurafs/fusefs/pkg/providers/memfs"
	"github.com/kurafs/fusefs/pkg/remote"
	"github.com/kurafs/fusefs/pkg/vfs"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openProvider constructs the provider named by cfg. The returned closer
// releases whatever the provider holds (database file, connection) and must
// be called after the filesystem is unmounted.
func openProvider(logger *log.Logger, cfg config.Mount) (vfs.Provider, io.Closer, error) {
	switch cfg.Provider {
	case "hello":
		return hello.New(), nopCloser{}, nil
	case "memfs":
		return memfs.New(), nopCloser{}, nil
	case "bolt":
		store, err := boltfs.Open(cfg.BoltPath, boltfs.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case "remote":
		client, err := remote.Dial(cfg.RemoteAddr, remote.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
