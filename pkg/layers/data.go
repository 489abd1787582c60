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
	"fmt"
	"time"

	"github.com/google/gopacket"
)

// Kind tells packets, datagrams and telegrams apart.
// Its value is the high nibble of the protocol version.
type Kind uint8

const (
	KindPacket   Kind = 1
	KindDatagram Kind = 2
	KindTelegram Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindPacket:
		return "Packet"
	case KindDatagram:
		return "Datagram"
	case KindTelegram:
		return "Telegram"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Data is one decoded VBus entity. It is implemented by *Packet, *Datagram
// and *Telegram only; use a type switch to get at the concrete value.
type Data interface {
	gopacket.SerializableLayer
	// GetHeader returns the common header of the entity
	GetHeader() *Header
	// Kind returns the variant tag
	Kind() Kind
	// IDString formats the identity of the entity
	IDString() string
	// Clone returns a deep copy
	Clone() Data

	wireLength() int
	encodeTo(buf []byte)
}

var (
	_ Data = &Packet{}
	_ Data = &Datagram{}
	_ Data = &Telegram{}
)

// Fingerprint is the comparable identity key of an entity.
// Two entities are identity-equal exactly when their fingerprints are equal.
type Fingerprint struct {
	Kind               Kind
	Channel            uint8
	DestinationAddress uint16
	SourceAddress      uint16
	ProtocolVersion    uint8
	Command            uint16
	Param16            int16
}

// FingerprintOf reduces an entity to its identity key
func FingerprintOf(d Data) Fingerprint {
	h := d.GetHeader()
	fp := Fingerprint{
		Kind:               d.Kind(),
		Channel:            h.Channel,
		DestinationAddress: h.DestinationAddress,
		SourceAddress:      h.SourceAddress,
		ProtocolVersion:    h.ProtocolVersion,
	}
	switch d := d.(type) {
	case *Packet:
		fp.Command = d.Command
	case *Datagram:
		fp.Command = d.Command
		if d.Command == DatagramCommandBusOffer {
			fp.Param16 = d.Param16
		}
	case *Telegram:
		fp.Command = uint16(d.Command)
	}
	return fp
}

// String renders the fingerprint like the ID string of the entity, leaving
// out the parameter of datagrams whose command does not identify by it.
func (fp Fingerprint) String() string {
	h := Header{
		Channel:            fp.Channel,
		DestinationAddress: fp.DestinationAddress,
		SourceAddress:      fp.SourceAddress,
		ProtocolVersion:    fp.ProtocolVersion,
	}
	switch {
	case fp.Kind == KindTelegram:
		return fmt.Sprintf("%s_%02X", h.IDString(), fp.Command)
	case fp.Kind == KindDatagram && fp.Command == DatagramCommandBusOffer:
		return fmt.Sprintf("%s_%04X_%04X", h.IDString(), fp.Command, uint16(fp.Param16))
	default:
		return fmt.Sprintf("%s_%04X", h.IDString(), fp.Command)
	}
}

// Compare defines the total order of entities: header fields first, then
// the variant tag, then the variant specific identity fields.
// It returns 0 exactly for identity-equal entities.
func Compare(a, b Data) int {
	if c := a.GetHeader().compare(b.GetHeader()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Kind(), b.Kind()); c != 0 {
		return c
	}
	switch a := a.(type) {
	case *Packet:
		return cmp.Compare(a.Command, b.(*Packet).Command)
	case *Datagram:
		other := b.(*Datagram)
		if c := cmp.Compare(a.Command, other.Command); c != 0 {
			return c
		}
		if a.Command == DatagramCommandBusOffer {
			return cmp.Compare(a.Param16, other.Param16)
		}
		return 0
	case *Telegram:
		return cmp.Compare(a.Command, b.(*Telegram).Command)
	}
	panic(fmt.Sprintf("layers: unexpected data type %T", a))
}

// Equal reports identity equality
func Equal(a, b Data) bool {
	return Compare(a, b) == 0
}

// LiveDataLength returns the exact wire length of d without encoding it
func LiveDataLength(d Data) int {
	return d.wireLength()
}

// EncodeLiveData returns the wire representation of d.
// It panics for values a well-formed decode can never produce.
func EncodeLiveData(d Data) []byte {
	buf := make([]byte, d.wireLength())
	d.encodeTo(buf)
	return buf
}

// DecodeLiveData decodes a unit ClassifyLiveData reported as complete.
// An unknown protocol version is a programmer error and panics.
func DecodeLiveData(timestamp time.Time, channel uint8, buf []byte) Data {
	if len(buf) < 6 {
		panic(fmt.Sprintf("layers: live data too short: %d bytes", len(buf)))
	}
	var d Data
	switch Kind(buf[5] >> 4) {
	case KindPacket:
		p := &Packet{}
		p.decode(buf)
		d = p
	case KindDatagram:
		dgram := &Datagram{}
		dgram.decode(buf)
		d = dgram
	case KindTelegram:
		tgram := &Telegram{}
		tgram.decode(buf)
		d = tgram
	default:
		panic(fmt.Sprintf("layers: unsupported protocol version 0x%02X", buf[5]))
	}
	h := d.GetHeader()
	h.Timestamp = timestamp
	h.Channel = channel
	return d
}
