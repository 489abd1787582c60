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

func init() {
	initUnknownKinds()
	initActualKinds()
}

const (
	// LiveDataLayerNum identifies the dispatching live-data layer
	LiveDataLayerNum = 2101
	PacketLayerNum   = 2102
	DatagramLayerNum = 2103
	TelegramLayerNum = 2104
	RecordLayerNum   = 2105
)

type errorDecoderForKind int

func (e *errorDecoderForKind) Decode(data []byte, p gopacket.PacketBuilder) error {
	return e
}

func (e *errorDecoderForKind) Error() string {
	return fmt.Sprintf("Unable to decode VBus protocol version 0x%X0", int(*e))
}

var errorDecodersForKind [16]errorDecoderForKind

// KindMetadata maps the high nibble of the protocol version to a decoder
var KindMetadata [16]layers.EnumMetadata

func initUnknownKinds() {
	for i := 0; i < 16; i++ {
		errorDecodersForKind[i] = errorDecoderForKind(i)
		KindMetadata[i] = layers.EnumMetadata{
			DecodeWith: &errorDecodersForKind[i],
			Name:       "UnknownVBusProtocol",
		}
	}
}

func initActualKinds() {
	KindMetadata[KindPacket] = layers.EnumMetadata{DecodeWith: gopacket.DecodeFunc(decodePacketLayer), Name: "Packet", LayerType: PacketLayerType}
	KindMetadata[KindDatagram] = layers.EnumMetadata{DecodeWith: gopacket.DecodeFunc(decodeDatagramLayer), Name: "Datagram", LayerType: DatagramLayerType}
	KindMetadata[KindTelegram] = layers.EnumMetadata{DecodeWith: gopacket.DecodeFunc(decodeTelegramLayer), Name: "Telegram", LayerType: TelegramLayerType}
}

// LayerType returns KindMetadata.LayerType
func (k Kind) LayerType() gopacket.LayerType {
	return KindMetadata[k&0x0F].LayerType
}

// Decode calls KindMetadata.DecodeWith's decoder
func (k Kind) Decode(data []byte, p gopacket.PacketBuilder) error {
	return KindMetadata[k&0x0F].DecodeWith.Decode(data, p)
}

// LiveDataLayerType decodes a stream of concatenated live-data units,
// dispatching every unit on its protocol version:
//
//	packet := gopacket.NewPacket(buf, layers.LiveDataLayerType, gopacket.Default)
var LiveDataLayerType = gopacket.RegisterLayerType(LiveDataLayerNum,
	gopacket.LayerTypeMetadata{Name: "VBusLiveData", Decoder: gopacket.DecodeFunc(decodeLiveDataLayer)})

func decodeLiveDataLayer(data []byte, p gopacket.PacketBuilder) error {
	if len(data) < 6 {
		p.SetTruncated()
		return ErrMalformed{What: fmt.Sprintf("live data too short: %d bytes", len(data))}
	}
	return Kind(data[5]>>4).Decode(data, p)
}

// checkLiveData classifies data and makes sure it holds a complete unit of the expected kind
func checkLiveData(data []byte, kind Kind, df gopacket.DecodeFeedback) (int, error) {
	framing, length := ClassifyLiveData(data)
	switch framing {
	case FramePartial:
		df.SetTruncated()
		return 0, ErrMalformed{What: fmt.Sprintf("truncated %s", kind)}
	case FrameMalformed:
		return 0, ErrMalformed{What: fmt.Sprintf("invalid %s", kind)}
	}
	if Kind(data[5]>>4) != kind {
		return 0, ErrUnsupportedProtocol{Version: data[5]}
	}
	return length, nil
}

func nextLiveDataLayer(base layers.BaseLayer) gopacket.LayerType {
	if len(base.Payload) > 0 {
		return gopacket.LayerType(LiveDataLayerNum)
	}
	return gopacket.LayerTypeZero
}
