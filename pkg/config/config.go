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

// Package config loads the YAML configuration shared by the fuse-server and
// storage-server commands. A file holds a "mount" section and a "storage"
// section; each command reads its own and lets explicit flags override it.
//
//      mount:
//        provider: remote
//        remote_addr: storage.local:10669
//        entry_timeout: 5s
//      storage:
//        provider: bolt
//        store_path: /var/lib/fusefs
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/go-playground/validator.v9"
	"gopkg.in/yaml.v3"
)

const (
	DefaultStoragePort = 10669
	DefaultRemoteAddr  = "localhost:10669"
	DefaultTokenIdle   = 10 * time.Minute
)

// Duration is a time.Duration written as a string ("1s", "250ms").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Set and String make a Duration usable as a flag.Value.
func (d *Duration) Set(s string) error {
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) String() string {
	return time.Duration(*d).String()
}

type File struct {
	Mount   Mount   `yaml:"mount"`
	Storage Storage `yaml:"storage"`
}

// Mount configures fuse-server.
type Mount struct {
	Provider   string `yaml:"provider" validate:"required,oneof=hello memfs bolt remote"`
	BoltPath   string `yaml:"bolt_path"`
	RemoteAddr string `yaml:"remote_addr"`

	FsName     string `yaml:"fs_name"`
	AllowOther bool   `yaml:"allow_other"`
	Debug      bool   `yaml:"debug"`
	DirectIO   bool   `yaml:"direct_io"`

	// Zero means the mount defaults; negative disables kernel caching.
	EntryTimeout Duration `yaml:"entry_timeout"`
	AttrTimeout  Duration `yaml:"attr_timeout"`

	MetricsAddr string `yaml:"metrics_addr"`
}

// Storage configures storage-server.
type Storage struct {
	IP        string `yaml:"ip" validate:"omitempty,ip"`
	Port      int    `yaml:"port" validate:"min=1,max=65535"`
	Provider  string `yaml:"provider" validate:"required,oneof=memfs bolt"`
	StorePath string `yaml:"store_path"`
	// Raw opens untouched for TokenIdle are closed on the client's behalf.
	// Zero disables the sweep.
	TokenIdle Duration `yaml:"token_idle" validate:"min=0"`
}

func DefaultMount() Mount {
	return Mount{Provider: "hello", RemoteAddr: DefaultRemoteAddr, FsName: "fusefs"}
}

func DefaultStorage() Storage {
	return Storage{Port: DefaultStoragePort, Provider: "memfs", StorePath: "fusefs-store", TokenIdle: Duration(DefaultTokenIdle)}
}

func Default() *File {
	return &File{Mount: DefaultMount(), Storage: DefaultStorage()}
}

// Load reads path over the defaults. Unknown keys are an error.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*File, error) {
	f := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return f, nil
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterStructValidation(mountLevel, Mount{})
	validate.RegisterStructValidation(storageLevel, Storage{})
}

// mountLevel requires the setting each provider depends on.
func mountLevel(sl validator.StructLevel) {
	m := sl.Current().Interface().(Mount)
	switch {
	case m.Provider == "bolt" && m.BoltPath == "":
		sl.ReportError(m.BoltPath, "BoltPath", "bolt_path", "required_for_bolt", "")
	case m.Provider == "remote" && m.RemoteAddr == "":
		sl.ReportError(m.RemoteAddr, "RemoteAddr", "remote_addr", "required_for_remote", "")
	}
}

func storageLevel(sl validator.StructLevel) {
	s := sl.Current().Interface().(Storage)
	if s.Provider == "bolt" && s.StorePath == "" {
		sl.ReportError(s.StorePath, "StorePath", "store_path", "required_for_bolt", "")
	}
}

func (m *Mount) Validate() error {
	return check(validate.Struct(m))
}

func (s *Storage) Validate() error {
	return check(validate.Struct(s))
}

// check flattens validator errors into one readable error.
func check(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msg := "invalid configuration:"
	for _, fe := range verrs {
		msg += fmt.Sprintf(" %s failed %q", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg += fmt.Sprintf(" (%s)", fe.Param())
		}
		msg += ";"
	}
	return errors.New(msg[:len(msg)-1])
}
