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

// Package codec is the CBOR encoding shared by stored metadata and the remote
// provider protocol. Encoding is Core Deterministic (RFC 8949 4.2), so equal
// values always produce equal bytes.
package codec

import (
	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	// Unknown fields are ignored so older readers accept newer records.
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

func Marshal(v interface{}) ([]byte, error) {
	return encMode.Marshal(v)
}

func Unmarshal(data []byte, v interface{}) error {
	return decMode.Unmarshal(data, v)
}

// Diagnose renders data in CBOR diagnostic notation (RFC 8949 8), for logs
// and debugging.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
