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
	"context"
	"flag"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurafs/fusefs/pkg/config"
	"github.com/kurafs/fusefs/pkg/log"
	"github.com/kurafs/fusefs/pkg/providers/boltfs"
	"github.com/kurafs/fusefs/pkg/providers/hello"
)

func flagSet(flagged *config.Mount) *flag.FlagSet {
	fs := flag.NewFlagSet("fuse-server", flag.ContinueOnError)
	fs.SetOutput(ioutil.Discard)
	fs.StringVar(&flagged.Provider, "provider", flagged.Provider, "")
	fs.StringVar(&flagged.BoltPath, "bolt-path", flagged.BoltPath, "")
	fs.Var(&flagged.AttrTimeout, "attr-timeout", "")
	return fs
}

func TestResolve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fusefs.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(`
mount:
  provider: bolt
  bolt_path: /var/lib/fusefs.db
  attr_timeout: 3s
  allow_other: true
`), 0600))

	t.Run("file", func(t *testing.T) {
		flagged := config.DefaultMount()
		fs := flagSet(&flagged)
		require.NoError(t, fs.Parse(nil))

		cfg, err := resolve(fs, path, flagged)
		require.NoError(t, err)
		assert.Equal(t, "bolt", cfg.Provider)
		assert.Equal(t, 3*time.Second, time.Duration(cfg.AttrTimeout))
		assert.True(t, cfg.AllowOther)
	})

	t.Run("flags override", func(t *testing.T) {
		flagged := config.DefaultMount()
		fs := flagSet(&flagged)
		require.NoError(t, fs.Parse([]string{"-bolt-path", "/tmp/other.db", "-attr-timeout", "-1s"}))

		cfg, err := resolve(fs, path, flagged)
		require.NoError(t, err)
		assert.Equal(t, "bolt", cfg.Provider, "unset flags keep the file's value")
		assert.Equal(t, "/tmp/other.db", cfg.BoltPath)
		assert.Equal(t, -time.Second, time.Duration(cfg.AttrTimeout))
	})

	t.Run("no file", func(t *testing.T) {
		flagged := config.DefaultMount()
		fs := flagSet(&flagged)
		require.NoError(t, fs.Parse(nil))

		cfg, err := resolve(fs, "", flagged)
		require.NoError(t, err)
		assert.Equal(t, config.DefaultMount(), cfg)
	})

	t.Run("invalid", func(t *testing.T) {
		flagged := config.DefaultMount()
		fs := flagSet(&flagged)
		require.NoError(t, fs.Parse([]string{"-provider", "bolt"}))

		_, err := resolve(fs, "", flagged)
		assert.Error(t, err, "bolt without a path")
	})
}

func TestOpenProvider(t *testing.T) {
	logger := log.Discarder()

	p, closer, err := openProvider(logger, config.Mount{Provider: "hello"})
	require.NoError(t, err)
	assert.IsType(t, &hello.FS{}, p)
	assert.NoError(t, closer.Close())

	p, closer, err = openProvider(logger, config.Mount{Provider: "memfs"})
	require.NoError(t, err)
	assert.True(t, p.IsDirectory(context.Background(), "/"))
	assert.NoError(t, closer.Close())

	db := filepath.Join(t.TempDir(), "fs.db")
	p, closer, err = openProvider(logger, config.Mount{Provider: "bolt", BoltPath: db})
	require.NoError(t, err)
	assert.IsType(t, &boltfs.Store{}, p)
	assert.NoError(t, closer.Close())

	_, _, err = openProvider(logger, config.Mount{Provider: "nfs"})
	assert.Error(t, err)
}

func TestStart(t *testing.T) {
	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skip("no /dev/fuse")
	}

	mnt := t.TempDir()
	cfg := config.DefaultMount()
	cfg.AttrTimeout = config.Duration(-1)
	cfg.EntryTimeout = config.Duration(-1)

	wait, shutdown, err := Start(log.Discarder(), cfg, mnt)
	if err != nil {
		t.Skipf("cannot mount: %v", err)
	}

	data, err := ioutil.ReadFile(filepath.Join(mnt, hello.Filename))
	assert.NoError(t, err)
	assert.Equal(t, hello.Greeting, string(data))

	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	shutdown()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop after shutdown")
	}
}
