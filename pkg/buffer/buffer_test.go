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

package buffer

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestExtendConsume(t *testing.T) {
	b := New(0)
	b.Extend([]byte{1, 2, 3, 4})
	if b.Len() != 4 || b.At(2) != 3 {
		t.Fatalf("after extend: len %d, bytes % X", b.Len(), b.Bytes())
	}
	b.Consume(3)
	if !bytes.Equal(b.Bytes(), []byte{4}) || b.Offset() != 3 {
		t.Fatalf("after consume: % X at offset %d", b.Bytes(), b.Offset())
	}
	b.Extend([]byte{5})
	if !bytes.Equal(b.Bytes(), []byte{4, 5}) {
		t.Fatalf("after second extend: % X", b.Bytes())
	}
	b.Reset()
	if b.Len() != 0 || b.Offset() != 5 {
		t.Fatalf("after reset: len %d offset %d", b.Len(), b.Offset())
	}
}

func TestCompaction(t *testing.T) {
	b := New(minimalCapacity)
	want := make([]byte, 50)
	b.Extend(want)
	chunk := make([]byte, 100)
	for i := 0; i < 1000; i++ {
		for j := range chunk {
			chunk[j] = byte(i + j)
		}
		b.Extend(chunk)
		want = append(want, chunk...)
		b.Consume(100)
		want = want[100:]
	}
	if !bytes.Equal(b.Bytes(), want) {
		t.Fatalf("live range differs after compaction")
	}
	if cap(b.data) > 2*minimalCapacity {
		t.Fatalf("backing array grew to %d bytes for %d live bytes", cap(b.data), b.Len())
	}
	if b.Offset() != 100000 {
		t.Fatalf("offset: got %d", b.Offset())
	}
}

func TestFill(t *testing.T) {
	b := New(0)
	r := bytes.NewReader([]byte("abcdef"))
	n, err := b.Fill(r, 4)
	if err != nil || n != 4 {
		t.Fatalf("fill: %d, %v", n, err)
	}
	n, err = b.Fill(r, 4)
	if err != nil || n != 2 {
		t.Fatalf("fill: %d, %v", n, err)
	}
	if _, err = b.Fill(r, 4); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
	if string(b.Bytes()) != "abcdef" {
		t.Fatalf("bytes: %q", b.Bytes())
	}
}

func TestFillErrorAfterData(t *testing.T) {
	b := New(0)
	boom := errors.New("boom")
	r := &dataErrReader{data: []byte("ab"), err: boom}
	n, err := b.Fill(r, 4)
	if err != nil || n != 2 {
		t.Fatalf("fill: %d, %v", n, err)
	}
	if n, err = b.Fill(r, 4); n != 0 || !errors.Is(err, boom) {
		t.Fatalf("expected the held back error, got %d, %v", n, err)
	}
	if r.reads != 1 {
		t.Fatalf("the reader must not be read again, got %d reads", r.reads)
	}
	if string(b.Bytes()) != "ab" {
		t.Fatalf("bytes: %q", b.Bytes())
	}
}

type dataErrReader struct {
	data  []byte
	err   error
	reads int
}

func (r *dataErrReader) Read(p []byte) (int, error) {
	r.reads++
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, r.err
}

func TestConsumeTooMuchPanics(t *testing.T) {
	b := New(0)
	b.Extend([]byte{1})
	defer func() {
		if recover() == nil {
			t.Fatalf("consuming beyond the live range should panic")
		}
	}()
	b.Consume(2)
}
