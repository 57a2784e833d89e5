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

// Package streaming splits content into fixed-size chunks, both for
// streaming it over gRPC and for storing it as separate keys.
package streaming

// Chunker is an iterator over consecutive chunks of a byte slice. It starts
// positioned before the first chunk:
//
//      chunker := streaming.NewChunker(data)
//      for chunker.Next() {
//      	put(chunker.Index(), chunker.Value())
//      }
type Chunker struct {
	part   int
	size   int
	source []byte
}

// NewChunker returns a Chunker yielding ChunkSize chunks of source.
func NewChunker(source []byte) *Chunker {
	return NewChunkerSize(source, ChunkSize)
}

// NewChunkerSize returns a Chunker yielding chunks of the given size.
func NewChunkerSize(source []byte, size int) *Chunker {
	if size <= 0 {
		size = ChunkSize
	}
	return &Chunker{part: -1, size: size, source: source}
}

// Value returns the current chunk. The last chunk may be short.
func (c *Chunker) Value() []byte {
	end := (c.part + 1) * c.size
	if end >= len(c.source) {
		end = len(c.source)
	}
	return c.source[c.part*c.size : end]
}

// Index returns the position of the current chunk.
func (c *Chunker) Index() int {
	return c.part
}

// Next advances the iterator to the next chunk.
func (c *Chunker) Next() bool {
	c.part++
	return c.part*c.size < len(c.source)
}

// Chunks returns the number of chunks needed to hold n bytes.
func Chunks(n int64, size int) int {
	if n <= 0 {
		return 0
	}
	return int((n + int64(size) - 1) / int64(size))
}

// Span returns the indexes of the first and last chunks overlapping
// [off, off+n). ok is false for an empty range.
func Span(off int64, n int, size int) (first, last int, ok bool) {
	if off < 0 || n <= 0 {
		return 0, 0, false
	}
	first = int(off / int64(size))
	last = int((off + int64(n) - 1) / int64(size))
	return first, last, true
}
