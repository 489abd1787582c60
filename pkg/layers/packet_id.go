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
	"strconv"
	"strings"
)

// PacketID is the identity of a packet as a comparable value
type PacketID struct {
	Channel            uint8
	DestinationAddress uint16
	SourceAddress      uint16
	Command            uint16
}

func (id PacketID) String() string {
	return fmt.Sprintf("%02X_%04X_%04X_%02X_%04X", id.Channel, id.DestinationAddress, id.SourceAddress,
		ProtocolVersionPacket, id.Command)
}

// ParsePacketID parses the representation returned by PacketID.String.
// The channel prefix is optional and defaults to 0.
func ParsePacketID(s string) (PacketID, error) {
	parts := strings.Split(strings.TrimSpace(s), "_")
	if len(parts) == 4 {
		parts = append([]string{"00"}, parts...)
	}
	if len(parts) != 5 {
		return PacketID{}, ErrWrongPacketID{ID: s}
	}
	var values [5]uint64
	for i, part := range parts {
		v, err := strconv.ParseUint(part, 16, 16)
		if err != nil {
			return PacketID{}, ErrWrongPacketID{ID: s}
		}
		values[i] = v
	}
	if values[0] > 0xFF || values[3]&0xF0 != uint64(ProtocolVersionPacket) {
		return PacketID{}, ErrWrongPacketID{ID: s}
	}
	return PacketID{
		Channel:            uint8(values[0]),
		DestinationAddress: uint16(values[1]),
		SourceAddress:      uint16(values[2]),
		Command:            uint16(values[4]),
	}, nil
}
