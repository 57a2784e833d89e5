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

package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name string `cbor:"1,keyasint"`
	Size int64  `cbor:"2,keyasint,omitempty"`
}

func TestDeterministic(t *testing.T) {
	a, err := Marshal(map[string]int{"b": 2, "a": 1, "c": 3})
	require.NoError(t, err)
	b, err := Marshal(map[string]int{"c": 3, "a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestIntegerKeys(t *testing.T) {
	data, err := Marshal(record{Name: "x", Size: 7})
	require.NoError(t, err)

	diag, err := Diagnose(data)
	require.NoError(t, err)
	assert.Equal(t, `{1: "x", 2: 7}`, diag)

	var got record
	require.NoError(t, Unmarshal(data, &got))
	assert.Equal(t, record{Name: "x", Size: 7}, got)
}

func TestUnknownFieldsIgnored(t *testing.T) {
	data, err := Marshal(map[int]interface{}{1: "x", 9: true})
	require.NoError(t, err)

	var got record
	require.NoError(t, Unmarshal(data, &got))
	assert.Equal(t, "x", got.Name)
}
