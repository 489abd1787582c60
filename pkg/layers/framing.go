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
)

const (
	// LiveDataSync starts every live-data unit on the wire
	LiveDataSync = 0xAA
	// RecordSync starts every record of a recording file
	RecordSync = 0xA5

	PacketHeaderLength   = 10
	PacketFrameLength    = 6
	DatagramLength       = 16
	TelegramHeaderLength = 8
	TelegramFrameLength  = 9

	// RecordHeaderLength is the minimal length of any record
	RecordHeaderLength = 14

	// MaxTelegramFrameCount bounds the frame count encoded in a telegram command
	MaxTelegramFrameCount = 3
)

// Framing is the outcome of classifying the front of a byte buffer
type Framing int

const (
	// FramePartial means more bytes are needed to decide
	FramePartial Framing = iota
	// FrameComplete means a well-formed unit starts the buffer
	FrameComplete
	// FrameMalformed means the buffer does not start with a valid unit
	FrameMalformed
)

func (f Framing) String() string {
	switch f {
	case FramePartial:
		return "Partial"
	case FrameComplete:
		return "Complete"
	case FrameMalformed:
		return "Malformed"
	}
	return "Unknown"
}

// TelegramFrameCount returns the number of 9-byte frames announced by a telegram command
func TelegramFrameCount(command uint8) int {
	return int(command >> 5)
}

// ClassifyLiveData checks whether a complete live-data unit starts buf.
// The returned length is only meaningful for FrameComplete.
func ClassifyLiveData(buf []byte) (Framing, int) {
	if len(buf) == 0 {
		return FramePartial, 0
	}
	if buf[0] != LiveDataSync {
		return FrameMalformed, 0
	}
	headerEnd := len(buf)
	if headerEnd > 6 {
		headerEnd = 6
	}
	if hasHighBit(buf[1:headerEnd]) {
		return FrameMalformed, 0
	}
	if len(buf) < 6 {
		return FramePartial, 0
	}

	switch buf[5] & 0xF0 {
	case 0x10:
		return classifyPacket(buf)
	case 0x20:
		return classifyDatagram(buf)
	case 0x30:
		return classifyTelegram(buf)
	}
	return FrameMalformed, 0
}

// classifyGroup validates a checksummed group that may still be incomplete
func classifyGroup(buf []byte, start, length int) Framing {
	end := start + length
	available := end
	if available > len(buf) {
		available = len(buf)
	}
	if start < available && hasHighBit(buf[start:available]) {
		return FrameMalformed
	}
	if len(buf) < end {
		return FramePartial
	}
	return FrameComplete
}

func classifyPacket(buf []byte) (Framing, int) {
	if f := classifyGroup(buf, 6, PacketHeaderLength-6); f != FrameComplete {
		return f, 0
	}
	if !ChecksumMatches(buf[1:PacketHeaderLength]) {
		return FrameMalformed, 0
	}
	frameCount := int(buf[8])
	length := PacketHeaderLength + frameCount*PacketFrameLength
	for offset := PacketHeaderLength; offset < length; offset += PacketFrameLength {
		if f := classifyGroup(buf, offset, PacketFrameLength); f != FrameComplete {
			return f, 0
		}
		if !ChecksumMatches(buf[offset : offset+PacketFrameLength]) {
			return FrameMalformed, 0
		}
	}
	return FrameComplete, length
}

func classifyDatagram(buf []byte) (Framing, int) {
	if f := classifyGroup(buf, 6, DatagramLength-6); f != FrameComplete {
		return f, 0
	}
	if !ChecksumMatches(buf[1:DatagramLength]) {
		return FrameMalformed, 0
	}
	return FrameComplete, DatagramLength
}

func classifyTelegram(buf []byte) (Framing, int) {
	if f := classifyGroup(buf, 6, TelegramHeaderLength-6); f != FrameComplete {
		return f, 0
	}
	if !ChecksumMatches(buf[1:TelegramHeaderLength]) {
		return FrameMalformed, 0
	}
	frameCount := TelegramFrameCount(buf[6])
	if frameCount > MaxTelegramFrameCount {
		return FrameMalformed, 0
	}
	length := TelegramHeaderLength + frameCount*TelegramFrameLength
	for offset := TelegramHeaderLength; offset < length; offset += TelegramFrameLength {
		if f := classifyGroup(buf, offset, TelegramFrameLength); f != FrameComplete {
			return f, 0
		}
		if !ChecksumMatches(buf[offset : offset+TelegramFrameLength]) {
			return FrameMalformed, 0
		}
	}
	return FrameComplete, length
}

// ClassifyRecord checks whether a complete recording record starts buf
func ClassifyRecord(buf []byte) (Framing, int) {
	if len(buf) == 0 {
		return FramePartial, 0
	}
	if buf[0] != RecordSync {
		return FrameMalformed, 0
	}
	if len(buf) < 2 {
		return FramePartial, 0
	}
	if buf[1]>>4 != buf[1]&0x0F {
		return FrameMalformed, 0
	}
	if len(buf) < 6 {
		return FramePartial, 0
	}
	length := int(binary.LittleEndian.Uint16(buf[2:4]))
	if length != int(binary.LittleEndian.Uint16(buf[4:6])) {
		return FrameMalformed, 0
	}
	if length < RecordHeaderLength {
		return FrameMalformed, 0
	}
	if len(buf) < length {
		return FramePartial, 0
	}
	return FrameComplete, length
}
