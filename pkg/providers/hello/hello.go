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

// Package hello is the smallest useful provider: a read-only filesystem with a
// single file. It overrides four methods and takes the rest from vfs.Base.
package hello

import (
	"context"

	"github.com/kurafs/fusefs/pkg/vfs"
)

const (
	// Filename is the one file in the filesystem.
	Filename = "hello.txt"
	// Greeting is its content.
	Greeting = "Hello, World!\n"
)

type FS struct {
	vfs.Base
}

var _ vfs.Provider = (*FS)(nil)

func New() *FS {
	return &FS{}
}

func (*FS) Contents(ctx context.Context, dir string) ([]string, error) {
	return []string{Filename}, nil
}

func (*FS) IsFile(ctx context.Context, path string) bool {
	return path == "/"+Filename
}

func (*FS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return []byte(Greeting), nil
}

func (*FS) Size(ctx context.Context, path string) (int64, error) {
	return int64(len(Greeting)), nil
}
