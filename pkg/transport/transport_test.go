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

package transport

import (
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"greenlab.dev/go-vbus/pkg/config"
)

func TestConnReadTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	c := NewConn(client)
	defer c.Close()

	if err := c.SetReadTimeout(20 * time.Millisecond); err != nil {
		t.Fatalf("set timeout: %v", err)
	}
	buf := make([]byte, 4)
	_, err := c.Read(buf)
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("expected a deadline error, got %v", err)
	}

	go server.Write([]byte{0xAA, 0x10})
	if err := c.SetReadTimeout(0); err != nil {
		t.Fatalf("set timeout: %v", err)
	}
	n, err := c.Read(buf)
	if err != nil || n != 2 || buf[0] != 0xAA {
		t.Fatalf("read %d bytes, %v", n, err)
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.bin")
	if err := os.WriteFile(path, []byte{0xAA, 0x10, 0x00}, 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	link, err := Open(&config.SourceConfig{File: path, Serial: "/dev/does-not-exist"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer link.Close()
	if err := link.SetReadTimeout(time.Second); err != nil {
		t.Fatalf("set timeout: %v", err)
	}
	data, err := io.ReadAll(link)
	if err != nil || len(data) != 3 {
		t.Fatalf("read %d bytes, %v", len(data), err)
	}
}

func TestOpenNoSource(t *testing.T) {
	if _, err := Open(&config.SourceConfig{}); !errors.As(err, &ErrNoSource{}) {
		t.Fatalf("expected ErrNoSource, got %v", err)
	}
}
