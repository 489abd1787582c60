/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

// Package buffer implements the growable byte buffer the stream readers
// accumulate transport bytes in.
package buffer

import (
	"fmt"
	"io"
)

const minimalCapacity = 1024

// Buffer owns a backing array with a consumed prefix and a live range.
// The consumed prefix is dropped only once it covers at least half of the
// backing array, which keeps compaction amortized over the bytes appended.
type Buffer struct {
	data     []byte
	start    int
	consumed int64

	// err arrived together with data and is held back for the next Fill
	err error
}

// New returns an empty buffer with the given initial capacity
func New(capacity int) *Buffer {
	if capacity < minimalCapacity {
		capacity = minimalCapacity
	}
	return &Buffer{data: make([]byte, 0, capacity)}
}

// Bytes returns the live, unconsumed bytes. The slice is valid until the
// next call that modifies the buffer.
func (b *Buffer) Bytes() []byte {
	return b.data[b.start:]
}

// Len returns the number of unconsumed bytes
func (b *Buffer) Len() int {
	return len(b.data) - b.start
}

// At returns the i-th unconsumed byte
func (b *Buffer) At(i int) byte {
	return b.data[b.start+i]
}

// Offset returns the number of bytes consumed since the buffer was created
func (b *Buffer) Offset() int64 {
	return b.consumed
}

// Extend appends p to the live range
func (b *Buffer) Extend(p []byte) {
	b.reserve(len(p))
	b.data = append(b.data, p...)
}

// Fill reads once from r straight into the spare capacity of the buffer.
// An error returned along with data is reported by the following Fill,
// after the caller had a chance to drain the bytes.
func (b *Buffer) Fill(r io.Reader, size int) (int, error) {
	if err := b.err; err != nil {
		b.err = nil
		return 0, err
	}
	b.reserve(size)
	end := len(b.data)
	n, err := r.Read(b.data[end : end+size])
	if n > 0 {
		b.data = b.data[:end+n]
		b.err = err
		return n, nil
	}
	return n, err
}

// Consume drops the first n unconsumed bytes
func (b *Buffer) Consume(n int) {
	if n < 0 || n > b.Len() {
		panic(fmt.Sprintf("buffer: can not consume %d of %d bytes", n, b.Len()))
	}
	b.start += n
	b.consumed += int64(n)
	if b.start == len(b.data) {
		b.data = b.data[:0]
		b.start = 0
	}
}

// Reset drops all unconsumed bytes
func (b *Buffer) Reset() {
	b.Consume(b.Len())
}

// reserve makes room for n more bytes after the live range
func (b *Buffer) reserve(n int) {
	if b.data == nil {
		b.data = make([]byte, 0, minimalCapacity)
	}
	if cap(b.data)-len(b.data) >= n {
		return
	}
	if b.start > 0 && b.start*2 >= cap(b.data) {
		live := copy(b.data, b.data[b.start:])
		b.data = b.data[:live]
		b.start = 0
		if cap(b.data)-len(b.data) >= n {
			return
		}
	}
	capacity := cap(b.data) * 2
	if capacity < len(b.data)+n {
		capacity = len(b.data) + n
	}
	grown := make([]byte, len(b.data), capacity)
	copy(grown, b.data)
	b.data = grown
}
