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
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	// DatagramCommandBusOffer is the only command whose Param16 is part of
	// the datagram identity.
	DatagramCommandBusOffer uint16 = 0x0900

	datagramDataLength = 6
)

// Datagram is a VBus 2.x unit: a command with a 16 and a 32 bit parameter.
type Datagram struct {
	layers.BaseLayer
	Header
	Command uint16
	Param16 int16
	Param32 int32
}

// GetHeader ...
func (d *Datagram) GetHeader() *Header {
	return &d.Header
}

// Kind ...
func (d *Datagram) Kind() Kind {
	return KindDatagram
}

// IDString formats the header identity followed by command and param16
func (d *Datagram) IDString() string {
	return fmt.Sprintf("%s_%04X_%04X", d.Header.IDString(), d.Command, uint16(d.Param16))
}

// Clone ...
func (d *Datagram) Clone() Data {
	clone := *d
	clone.BaseLayer = layers.BaseLayer{}
	return &clone
}

func (d *Datagram) wireLength() int {
	return DatagramLength
}

func (d *Datagram) decode(buf []byte) {
	d.Header.decodeAddresses(buf)
	d.Command = binary.LittleEndian.Uint16(buf[6:8])
	var data [datagramDataLength]byte
	copy(data[:], buf[8:8+datagramDataLength])
	InjectSeptet(data[:], buf[8+datagramDataLength])
	d.Param16 = int16(binary.LittleEndian.Uint16(data[0:2]))
	d.Param32 = int32(binary.LittleEndian.Uint32(data[2:6]))
}

func (d *Datagram) encodeTo(buf []byte) {
	d.Header.mustBeEncodable(KindDatagram)
	mustBe7Bit("datagram command", uint32(d.Command), 2)
	d.Header.serializeAddresses(buf)
	binary.LittleEndian.PutUint16(buf[6:8], d.Command)
	data := buf[8 : 8+datagramDataLength]
	binary.LittleEndian.PutUint16(data[0:2], uint16(d.Param16))
	binary.LittleEndian.PutUint32(data[2:6], uint32(d.Param32))
	buf[8+datagramDataLength] = ExtractSeptet(data)
	putChecksum(buf[1:DatagramLength])
}

var DatagramLayerType = gopacket.RegisterLayerType(DatagramLayerNum,
	gopacket.LayerTypeMetadata{Name: "VBusDatagram", Decoder: gopacket.DecodeFunc(decodeDatagramLayer)})

// LayerType returns the type of the datagram layer in the layer catalog
func (d *Datagram) LayerType() gopacket.LayerType {
	return DatagramLayerType
}

// CanDecode ...
func (d *Datagram) CanDecode() gopacket.LayerClass {
	return DatagramLayerType
}

// NextLayerType ...
func (d *Datagram) NextLayerType() gopacket.LayerType {
	return nextLiveDataLayer(d.BaseLayer)
}

// SerializeTo prepends the 16 wire bytes of the datagram
func (d *Datagram) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(DatagramLength)
	if err != nil {
		return err
	}
	d.encodeTo(bytes)
	return nil
}

// DecodeFromBytes decodes the datagram at the front of data
func (d *Datagram) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	length, err := checkLiveData(data, KindDatagram, df)
	if err != nil {
		return err
	}
	d.decode(data[:length])
	d.BaseLayer = layers.BaseLayer{
		Contents: data[:length],
		Payload:  data[length:],
	}
	return nil
}

func decodeDatagramLayer(data []byte, p gopacket.PacketBuilder) error {
	dgram := &Datagram{}
	err := dgram.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(dgram)
	return p.NextDecoder(dgram.NextLayerType())
}
