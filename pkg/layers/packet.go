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
	// MaxPacketFrameCount is the largest frame count a 7-bit frame count byte can carry
	MaxPacketFrameCount = 127
	// PacketFrameDataLength is the number of payload bytes per packet frame
	PacketFrameDataLength = 4
	// MaxPacketFrameData is the payload capacity of a packet
	MaxPacketFrameData = MaxPacketFrameCount * PacketFrameDataLength
)

// Packet is a VBus 1.x unit: a command plus up to 508 payload bytes
// transported in 4-byte frames.
type Packet struct {
	layers.BaseLayer
	Header
	Command    uint16
	FrameCount uint8
	FrameData  [MaxPacketFrameData]byte
}

// GetHeader ...
func (p *Packet) GetHeader() *Header {
	return &p.Header
}

// Kind ...
func (p *Packet) Kind() Kind {
	return KindPacket
}

// IDString formats the identity, e.g. 11_0010_7E11_10_0100
func (p *Packet) IDString() string {
	return fmt.Sprintf("%s_%04X", p.Header.IDString(), p.Command)
}

// PacketID returns the identity of the packet as a value
func (p *Packet) PacketID() PacketID {
	return PacketID{
		Channel:            p.Channel,
		DestinationAddress: p.DestinationAddress,
		SourceAddress:      p.SourceAddress,
		Command:            p.Command,
	}
}

// ValidFrameData returns the payload bytes covered by FrameCount
func (p *Packet) ValidFrameData() []byte {
	return p.FrameData[:int(p.FrameCount)*PacketFrameDataLength]
}

// Clone ...
func (p *Packet) Clone() Data {
	clone := *p
	clone.BaseLayer = layers.BaseLayer{}
	return &clone
}

func (p *Packet) wireLength() int {
	return PacketHeaderLength + int(p.FrameCount)*PacketFrameLength
}

func (p *Packet) decode(buf []byte) {
	p.Header.decodeAddresses(buf)
	p.Command = binary.LittleEndian.Uint16(buf[6:8])
	p.FrameCount = buf[8]
	p.FrameData = [MaxPacketFrameData]byte{}
	for i := 0; i < int(p.FrameCount); i++ {
		frame := buf[PacketHeaderLength+i*PacketFrameLength:]
		data := p.FrameData[i*PacketFrameDataLength : (i+1)*PacketFrameDataLength]
		copy(data, frame[:PacketFrameDataLength])
		InjectSeptet(data, frame[PacketFrameDataLength])
	}
}

func (p *Packet) encodeTo(buf []byte) {
	p.Header.mustBeEncodable(KindPacket)
	mustBe7Bit("packet command", uint32(p.Command), 2)
	if p.FrameCount > MaxPacketFrameCount {
		panic(fmt.Sprintf("layers: packet frame count %d exceeds %d", p.FrameCount, MaxPacketFrameCount))
	}
	p.Header.serializeAddresses(buf)
	binary.LittleEndian.PutUint16(buf[6:8], p.Command)
	buf[8] = p.FrameCount
	putChecksum(buf[1:PacketHeaderLength])
	for i := 0; i < int(p.FrameCount); i++ {
		frame := buf[PacketHeaderLength+i*PacketFrameLength : PacketHeaderLength+(i+1)*PacketFrameLength]
		copy(frame, p.FrameData[i*PacketFrameDataLength:(i+1)*PacketFrameDataLength])
		frame[PacketFrameDataLength] = ExtractSeptet(frame[:PacketFrameDataLength])
		putChecksum(frame)
	}
}

var PacketLayerType = gopacket.RegisterLayerType(PacketLayerNum,
	gopacket.LayerTypeMetadata{Name: "VBusPacket", Decoder: gopacket.DecodeFunc(decodePacketLayer)})

// LayerType returns the type of the packet layer in the layer catalog
func (p *Packet) LayerType() gopacket.LayerType {
	return PacketLayerType
}

// CanDecode ...
func (p *Packet) CanDecode() gopacket.LayerClass {
	return PacketLayerType
}

// NextLayerType chains to the next live-data unit when bytes are left
func (p *Packet) NextLayerType() gopacket.LayerType {
	return nextLiveDataLayer(p.BaseLayer)
}

// SerializeTo prepends the wire representation of the packet
func (p *Packet) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(p.wireLength())
	if err != nil {
		return err
	}
	p.encodeTo(bytes)
	return nil
}

// DecodeFromBytes decodes the packet at the front of data
func (p *Packet) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	length, err := checkLiveData(data, KindPacket, df)
	if err != nil {
		return err
	}
	p.decode(data[:length])
	p.BaseLayer = layers.BaseLayer{
		Contents: data[:length],
		Payload:  data[length:],
	}
	return nil
}

func decodePacketLayer(data []byte, p gopacket.PacketBuilder) error {
	packet := &Packet{}
	err := packet.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(packet)
	return p.NextDecoder(packet.NextLayerType())
}
