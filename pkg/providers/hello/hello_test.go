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

package hello

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/kurafs/fusefs/pkg/adapter"
	"github.com/kurafs/fusefs/pkg/vfs"
)

func TestHello(t *testing.T) {
	ctx := context.Background()
	a := adapter.New(New())

	names, err := a.ReadDir(ctx, nil, "/")
	require.NoError(t, err)
	assert.Equal(t, []string{".", "..", Filename}, names)

	attr, err := a.GetAttr(ctx, nil, "/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, uint32(unix.S_IFREG|0444), attr.Mode)
	assert.Equal(t, int64(len(Greeting)), attr.Size)

	root, err := a.GetAttr(ctx, nil, "/")
	require.NoError(t, err)
	assert.Equal(t, uint32(unix.S_IFDIR|0555), root.Mode)

	fh, err := a.Open(ctx, nil, "/hello.txt", unix.O_RDONLY)
	require.NoError(t, err)
	data, err := a.Read(ctx, nil, "/hello.txt", fh, 7, 5)
	require.NoError(t, err)
	assert.Equal(t, "World", string(data))
	require.NoError(t, a.Release(ctx, nil, "/hello.txt", fh))
}

func TestHelloIsReadOnly(t *testing.T) {
	ctx := context.Background()
	a := adapter.New(New())

	_, err := a.GetAttr(ctx, nil, "/missing")
	assert.True(t, errors.Is(err, vfs.ErrNotFound))

	_, err = a.Open(ctx, nil, "/hello.txt", unix.O_WRONLY)
	assert.True(t, errors.Is(err, vfs.ErrPermissionDenied))
	assert.True(t, errors.Is(a.Mkdir(ctx, nil, "/dir", 0755), vfs.ErrPermissionDenied))
	assert.True(t, errors.Is(a.Unlink(ctx, nil, "/hello.txt"), vfs.ErrPermissionDenied))
}
