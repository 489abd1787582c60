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

package layers

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	ProtocolVersionPacket   uint8 = 0x10
	ProtocolVersionDatagram uint8 = 0x20
	ProtocolVersionTelegram uint8 = 0x30
)

// Header is the common prefix of packets, datagrams and telegrams.
// Timestamp and Channel are assigned on reception and never travel on the wire.
type Header struct {
	Timestamp          time.Time
	Channel            uint8
	DestinationAddress uint16
	SourceAddress      uint16
	ProtocolVersion    uint8
}

// IDString formats the identity fields of the header
func (h *Header) IDString() string {
	return fmt.Sprintf("%02X_%04X_%04X_%02X", h.Channel, h.DestinationAddress, h.SourceAddress, h.ProtocolVersion)
}

// compare orders headers by channel, destination, source and protocol version
func (h *Header) compare(other *Header) int {
	if c := cmp.Compare(h.Channel, other.Channel); c != 0 {
		return c
	}
	if c := cmp.Compare(h.DestinationAddress, other.DestinationAddress); c != 0 {
		return c
	}
	if c := cmp.Compare(h.SourceAddress, other.SourceAddress); c != 0 {
		return c
	}
	return cmp.Compare(h.ProtocolVersion, other.ProtocolVersion)
}

// decodeAddresses reads destination, source and protocol version from
// the first six bytes of a live-data unit.
func (h *Header) decodeAddresses(buf []byte) {
	h.DestinationAddress = binary.LittleEndian.Uint16(buf[1:3])
	h.SourceAddress = binary.LittleEndian.Uint16(buf[3:5])
	h.ProtocolVersion = buf[5]
}

// serializeAddresses is the inverse of decodeAddresses
func (h *Header) serializeAddresses(buf []byte) {
	buf[0] = LiveDataSync
	binary.LittleEndian.PutUint16(buf[1:3], h.DestinationAddress)
	binary.LittleEndian.PutUint16(buf[3:5], h.SourceAddress)
	buf[5] = h.ProtocolVersion
}

// mustBeEncodable panics when the header can not be produced by a well-formed decode
func (h *Header) mustBeEncodable(kind Kind) {
	if Kind(h.ProtocolVersion>>4) != kind {
		panic(fmt.Sprintf("layers: protocol version 0x%02X can not be encoded as %s", h.ProtocolVersion, kind))
	}
	mustBe7Bit("destination address", uint32(h.DestinationAddress), 2)
	mustBe7Bit("source address", uint32(h.SourceAddress), 2)
	mustBe7Bit("protocol version", uint32(h.ProtocolVersion), 1)
}

// mustBe7Bit panics if one of the low n bytes of value has its high bit set
func mustBe7Bit(what string, value uint32, n int) {
	for i := 0; i < n; i++ {
		if (value>>(8*uint(i)))&0x80 != 0 {
			panic(fmt.Sprintf("layers: %s 0x%X is not 7-bit safe", what, value))
		}
	}
}
