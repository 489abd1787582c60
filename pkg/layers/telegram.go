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
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	// TelegramFrameDataLength is the number of payload bytes per telegram frame
	TelegramFrameDataLength = 7
	// MaxTelegramFrameData is the payload capacity of a telegram
	MaxTelegramFrameData = MaxTelegramFrameCount * TelegramFrameDataLength
)

// Telegram is a VBus 3.x unit. The top three bits of Command carry the frame count.
type Telegram struct {
	layers.BaseLayer
	Header
	Command   uint8
	FrameData [MaxTelegramFrameData]byte
}

// GetHeader ...
func (t *Telegram) GetHeader() *Header {
	return &t.Header
}

// Kind ...
func (t *Telegram) Kind() Kind {
	return KindTelegram
}

// IDString ...
func (t *Telegram) IDString() string {
	return fmt.Sprintf("%s_%02X", t.Header.IDString(), t.Command)
}

// FrameCount returns the frame count encoded in the command
func (t *Telegram) FrameCount() int {
	return TelegramFrameCount(t.Command)
}

// ValidFrameData returns the payload bytes covered by the frame count
func (t *Telegram) ValidFrameData() []byte {
	n := t.FrameCount()
	if n > MaxTelegramFrameCount {
		n = MaxTelegramFrameCount
	}
	return t.FrameData[:n*TelegramFrameDataLength]
}

// Clone ...
func (t *Telegram) Clone() Data {
	clone := *t
	clone.BaseLayer = layers.BaseLayer{}
	return &clone
}

func (t *Telegram) wireLength() int {
	return TelegramHeaderLength + t.FrameCount()*TelegramFrameLength
}

func (t *Telegram) decode(buf []byte) {
	t.Header.decodeAddresses(buf)
	t.Command = buf[6]
	t.FrameData = [MaxTelegramFrameData]byte{}
	for i := 0; i < t.FrameCount(); i++ {
		frame := buf[TelegramHeaderLength+i*TelegramFrameLength:]
		data := t.FrameData[i*TelegramFrameDataLength : (i+1)*TelegramFrameDataLength]
		copy(data, frame[:TelegramFrameDataLength])
		InjectSeptet(data, frame[TelegramFrameDataLength])
	}
}

func (t *Telegram) encodeTo(buf []byte) {
	t.Header.mustBeEncodable(KindTelegram)
	if t.FrameCount() > MaxTelegramFrameCount {
		panic(fmt.Sprintf("layers: telegram frame count %d exceeds %d", t.FrameCount(), MaxTelegramFrameCount))
	}
	t.Header.serializeAddresses(buf)
	buf[6] = t.Command
	putChecksum(buf[1:TelegramHeaderLength])
	for i := 0; i < t.FrameCount(); i++ {
		frame := buf[TelegramHeaderLength+i*TelegramFrameLength : TelegramHeaderLength+(i+1)*TelegramFrameLength]
		copy(frame, t.FrameData[i*TelegramFrameDataLength:(i+1)*TelegramFrameDataLength])
		frame[TelegramFrameDataLength] = ExtractSeptet(frame[:TelegramFrameDataLength])
		putChecksum(frame)
	}
}

var TelegramLayerType = gopacket.RegisterLayerType(TelegramLayerNum,
	gopacket.LayerTypeMetadata{Name: "VBusTelegram", Decoder: gopacket.DecodeFunc(decodeTelegramLayer)})

// LayerType returns the type of the telegram layer in the layer catalog
func (t *Telegram) LayerType() gopacket.LayerType {
	return TelegramLayerType
}

// CanDecode ...
func (t *Telegram) CanDecode() gopacket.LayerClass {
	return TelegramLayerType
}

// NextLayerType ...
func (t *Telegram) NextLayerType() gopacket.LayerType {
	return nextLiveDataLayer(t.BaseLayer)
}

// SerializeTo prepends the wire representation of the telegram
func (t *Telegram) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(t.wireLength())
	if err != nil {
		return err
	}
	t.encodeTo(bytes)
	return nil
}

// DecodeFromBytes decodes the telegram at the front of data
func (t *Telegram) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	length, err := checkLiveData(data, KindTelegram, df)
	if err != nil {
		return err
	}
	t.decode(data[:length])
	t.BaseLayer = layers.BaseLayer{
		Contents: data[:length],
		Payload:  data[length:],
	}
	return nil
}

func decodeTelegramLayer(data []byte, p gopacket.PacketBuilder) error {
	tgram := &Telegram{}
	err := tgram.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(tgram)
	return p.NextDecoder(tgram.NextLayerType())
}
