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

// Command envfs mounts the process environment as a read-only directory of
// files, one per variable:
//
//      $ go run ./example/envfs /tmp/env &
//      $ cat /tmp/env/HOME
//      /home/gopher
//
// It is the smallest useful provider: embed vfs.Base and answer the
// questions that matter.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/kurafs/fusefs/pkg/adapter"
	"github.com/kurafs/fusefs/pkg/fusefs"
	"github.com/kurafs/fusefs/pkg/log"
	"github.com/kurafs/fusefs/pkg/vfs"
)

type envFS struct {
	vfs.Base
}

func name(path string) string { return strings.TrimPrefix(path, "/") }

func (envFS) Contents(ctx context.Context, dir string) ([]string, error) {
	var names []string
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 && !strings.Contains(kv[:i], "/") {
			names = append(names, kv[:i])
		}
	}
	sort.Strings(names)
	return names, nil
}

func (envFS) IsFile(ctx context.Context, path string) bool {
	_, ok := os.LookupEnv(name(path))
	return ok && !strings.Contains(name(path), "/")
}

func (envFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	v, ok := os.LookupEnv(name(path))
	if !ok {
		return nil, vfs.ErrNotFound
	}
	return []byte(v + "\n"), nil
}

func (e envFS) Size(ctx context.Context, path string) (int64, error) {
	data, err := e.ReadFile(ctx, path)
	return int64(len(data)), err
}

func main() {
	debug := flag.Bool("debug", false, "Log every FUSE request")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: envfs [-debug] <mount-point>")
		os.Exit(2)
	}

	logger := log.New(log.Writer(os.Stderr))
	server, err := fusefs.Mount(fusefs.Options{
		Mountpoint: flag.Arg(0),
		Adapter:    adapter.New(envFS{}, adapter.WithLogger(logger)),
		FsName:     "envfs",
		Debug:      *debug,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal(err.Error())
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		server.Unmount()
	}()
	server.Wait()
}
