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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	f := Default()
	assert.Equal(t, "hello", f.Mount.Provider)
	assert.NoError(t, f.Mount.Validate())
	assert.Equal(t, DefaultStoragePort, f.Storage.Port)
	assert.Equal(t, DefaultTokenIdle, time.Duration(f.Storage.TokenIdle))
	assert.NoError(t, f.Storage.Validate())
}

func TestParse(t *testing.T) {
	f, err := Parse([]byte(`
mount:
  provider: remote
  remote_addr: storage:9000
  entry_timeout: 250ms
  attr_timeout: -1s
  allow_other: true
storage:
  provider: bolt
  store_path: /tmp/store.db
  port: 9000
  token_idle: 90s
`))
	require.NoError(t, err)
	assert.Equal(t, "remote", f.Mount.Provider)
	assert.Equal(t, "storage:9000", f.Mount.RemoteAddr)
	assert.Equal(t, 250*time.Millisecond, time.Duration(f.Mount.EntryTimeout))
	assert.Equal(t, -time.Second, time.Duration(f.Mount.AttrTimeout))
	assert.True(t, f.Mount.AllowOther)
	assert.Equal(t, "fusefs", f.Mount.FsName, "unset keys keep their defaults")
	assert.Equal(t, 9000, f.Storage.Port)
	assert.Equal(t, 90*time.Second, time.Duration(f.Storage.TokenIdle))
	assert.NoError(t, f.Mount.Validate())
	assert.NoError(t, f.Storage.Validate())
}

func TestParseEmpty(t *testing.T) {
	f, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), f)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("mount:\n  entry_timeout: soon\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("mount:\n  mountpoint: /mnt\n"))
	assert.Error(t, err, "unknown keys are rejected")
}

func TestValidate(t *testing.T) {
	m := DefaultMount()
	m.Provider = "nfs"
	assert.Error(t, m.Validate())

	m.Provider = "bolt"
	err := m.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BoltPath")

	m.BoltPath = "fs.db"
	assert.NoError(t, m.Validate())

	m.Provider = "remote"
	m.RemoteAddr = ""
	assert.Error(t, m.Validate())

	s := DefaultStorage()
	s.IP = "not-an-ip"
	assert.Error(t, s.Validate())
	s.IP = "127.0.0.1"
	s.Port = 0
	assert.Error(t, s.Validate())
	s.Port = 80
	s.TokenIdle = -1
	assert.Error(t, s.Validate())
	s.TokenIdle = 0
	s.Provider = "hello"
	assert.Error(t, s.Validate(), "hello is read-only and not served remotely")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fusefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mount:\n  provider: memfs\n"), 0600))
	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memfs", f.Mount.Provider)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, os.IsNotExist(err))
}

func TestDurationFlag(t *testing.T) {
	var d Duration
	require.NoError(t, d.Set("1m30s"))
	assert.Equal(t, "1m30s", d.String())
	assert.Error(t, d.Set("never"))
}
