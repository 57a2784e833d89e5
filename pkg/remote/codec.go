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

// Package remote serves a vfs.Provider over gRPC and provides a client that
// is itself a vfs.Provider, so a filesystem can be mounted on one machine and
// stored on another.
//
// There is no generated code: the service is described by hand and messages
// are CBOR-encoded structs. Every provider method travels as a unary Call,
// except ReadFile and WriteTo which stream their content in
// streaming.ChunkSize pieces. The caller's identity rides along in request
// metadata and is restored on the server with vfs.WithCaller.
package remote

import (
	"google.golang.org/grpc/encoding"

	"github.com/kurafs/fusefs/pkg/codec"
)

// Name is the codec's content-subtype: requests are sent as
// "application/grpc+cbor".
const Name = "cbor"

type cborCodec struct{}

var _ encoding.Codec = cborCodec{}

func (cborCodec) Marshal(v interface{}) ([]byte, error)      { return codec.Marshal(v) }
func (cborCodec) Unmarshal(data []byte, v interface{}) error { return codec.Unmarshal(data, v) }
func (cborCodec) Name() string                               { return Name }

func init() {
	encoding.RegisterCodec(cborCodec{})
}
