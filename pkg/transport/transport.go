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

// Package transport opens the byte sources live data is read from.
package transport

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"go.bug.st/serial"

	"greenlab.dev/go-vbus/pkg/config"
	"greenlab.dev/go-vbus/pkg/log"
)

const (
	DialTimeout = 5 * time.Second
)

// Link is an open byte source/sink with an adjustable read timeout
type Link interface {
	io.ReadWriteCloser
	SetReadTimeout(timeout time.Duration) error
}

var (
	_ Link = &Conn{}
	_ Link = &File{}
)

type ErrNoSource struct{}

func (e ErrNoSource) Error() string {
	return "No source configured: set a serial port, a TCP address or a file"
}

// Open connects to the source selected by cfg. A file wins over
// a TCP address, which wins over a serial port.
func Open(cfg *config.SourceConfig) (Link, error) {
	switch {
	case cfg.File != "":
		f, err := OpenFile(cfg.File)
		if err != nil {
			return nil, err
		}
		return f, nil
	case cfg.Address != "":
		conn, err := Dial(cfg.Address)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case cfg.Serial != "":
		return OpenSerial(cfg.Serial, cfg.BaudRate)
	}
	return nil, ErrNoSource{}
}

// OpenSerial opens a serial port in 8N1 mode
func OpenSerial(path string, baudRate int) (serial.Port, error) {
	if baudRate == 0 {
		baudRate = config.DefaultBaudRate
	}
	log.Info("Opening serial port %s at %d baud", path, baudRate)
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	return port, nil
}

// Conn maps read timeouts of a network connection onto read deadlines.
// A zero timeout means reads block.
type Conn struct {
	net.Conn
	timeout time.Duration
}

func NewConn(conn net.Conn) *Conn {
	return &Conn{Conn: conn}
}

func Dial(address string) (*Conn, error) {
	log.Info("Connecting to %s", address)
	conn, err := net.DialTimeout("tcp", address, DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return NewConn(conn), nil
}

func (c *Conn) SetReadTimeout(timeout time.Duration) error {
	c.timeout = timeout
	return nil
}

func (c *Conn) Read(p []byte) (int, error) {
	var deadline time.Time
	if c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	if err := c.Conn.SetReadDeadline(deadline); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

// File replays a raw capture. It can not be written to.
type File struct {
	*os.File
}

func OpenFile(path string) (*File, error) {
	log.Info("Opening file %s", path)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &File{File: f}, nil
}

// SetReadTimeout has no effect on files
func (f *File) SetReadTimeout(time.Duration) error {
	return nil
}
