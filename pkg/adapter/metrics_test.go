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
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/kurafs/fusefs/pkg/vfs"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	p := newFakeProvider()
	p.files["/a.txt"] = []byte("abcdef")
	a := New(p, WithMetrics(m))
	ctx := context.Background()

	fh, err := a.Open(ctx, alice, "/a.txt", unix.O_RDWR)
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.handles))

	_, err = a.Write(ctx, alice, "/a.txt", fh, 0, []byte("XY"))
	require.NoError(t, err)
	require.NoError(t, a.Release(ctx, alice, "/a.txt", fh))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.handles))
	assert.Equal(t, float64(6), testutil.ToFloat64(m.flushed))

	_, err = a.GetAttr(ctx, alice, "/missing")
	require.Error(t, err)
	_, err = a.Read(ctx, alice, "/a.txt", fh, 0, 1)
	require.Error(t, err)
	require.NoError(t, a.Truncate(ctx, alice, "/a.txt", 1))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ops.WithLabelValues("open", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ops.WithLabelValues("getattr", "not_found")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ops.WithLabelValues("read", "stale_handle")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.fallback.WithLabelValues("truncate")))

	require.NoError(t, a.Mknod(ctx, alice, "/new", unix.S_IFREG|0644))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.pending))
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "ok", resultLabel(nil))
	assert.Equal(t, "permission_denied", resultLabel(vfs.PermissionDenied("open", "/a")))
	assert.Equal(t, "unsupported", resultLabel(vfs.Unsupported("link", "/a")))
	assert.Equal(t, "invalid_argument", resultLabel(vfs.InvalidArgument("read", "/a", "bad")))
	assert.Equal(t, "io", resultLabel(vfs.Translate("flush", "/a", context.DeadlineExceeded)))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.setOpen(1, 1)
	m.addFlushed(1)
	m.fellBack("rename")
}
