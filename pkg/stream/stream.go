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

// Package stream implements pull readers and writers for VBus live data
// and VBus recording files over plain io.Reader / io.Writer values.
package stream

import (
	"errors"
	"fmt"
	"net"
	"os"
	"slices"
	"time"
)

const readChunkSize = 4096

// Clock provides the reception time of decoded entities
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// TimeoutReader is implemented by sources able to bound a blocking read,
// e.g. go.bug.st/serial.Port. A read that times out returns no bytes.
type TimeoutReader interface {
	SetReadTimeout(t time.Duration) error
}

// ErrNoData is returned by ReadPacketData when a read timed out without
// producing a complete unit.
var ErrNoData = errors.New("no live data received")

// ErrUnsupportedRecord is returned when a recording contains a record
// type the reader does not know.
type ErrUnsupportedRecord struct {
	Type   uint8
	Offset int64
}

func (e ErrUnsupportedRecord) Error() string {
	return fmt.Sprintf("Unsupported record type 0x%02X at offset %d", e.Type, e.Offset)
}

// Filter restricts the records a reader returns. Zero timestamps are unbounded
// and an empty channel list allows every channel.
type Filter struct {
	MinTimestamp time.Time
	MaxTimestamp time.Time
	MinExclusive bool
	MaxExclusive bool
	Channels     []uint8
}

// MatchTimestamp checks ts against the time bounds
func (f *Filter) MatchTimestamp(ts time.Time) bool {
	if !f.MinTimestamp.IsZero() {
		if ts.Before(f.MinTimestamp) || (f.MinExclusive && ts.Equal(f.MinTimestamp)) {
			return false
		}
	}
	if !f.MaxTimestamp.IsZero() {
		if ts.After(f.MaxTimestamp) || (f.MaxExclusive && ts.Equal(f.MaxTimestamp)) {
			return false
		}
	}
	return true
}

// MatchChannel checks channel against the allow-list
func (f *Filter) MatchChannel(channel uint8) bool {
	return len(f.Channels) == 0 || slices.Contains(f.Channels, channel)
}

// IsTimeout reports whether err is a deadline expiry rather than a failure
func IsTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
