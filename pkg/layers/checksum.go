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
	"time"
)

// Checksum folds buf into the 7-bit VBus checksum
func Checksum(buf []byte) byte {
	var acc byte = 0x7F
	for _, b := range buf {
		acc = (0x80 + acc - b) & 0x7F
	}
	return acc
}

// ChecksumMatches checks the checksum of all but the last byte of a group
// against that last byte.
func ChecksumMatches(group []byte) bool {
	if len(group) == 0 {
		return false
	}
	last := len(group) - 1
	return Checksum(group[:last]) == group[last]
}

// putChecksum stores the checksum of all but the last byte into the last byte
func putChecksum(group []byte) {
	last := len(group) - 1
	group[last] = Checksum(group[:last])
}

// ExtractSeptet clears the high bit of every byte in buf and returns
// the collected bits (bit i is the high bit of buf[i]).
func ExtractSeptet(buf []byte) byte {
	var septet byte
	for i := range buf {
		if buf[i]&0x80 != 0 {
			buf[i] &= 0x7F
			septet |= 1 << uint(i)
		}
	}
	return septet
}

// InjectSeptet restores the high bits previously collected by ExtractSeptet
func InjectSeptet(buf []byte, septet byte) {
	for i := range buf {
		if septet&(1<<uint(i)) != 0 {
			buf[i] |= 0x80
		}
	}
}

// hasHighBit reports whether any byte of buf has its high bit set
func hasHighBit(buf []byte) bool {
	for _, b := range buf {
		if b&0x80 != 0 {
			return true
		}
	}
	return false
}

// TimestampFromBytes decodes a little-endian count of milliseconds since epoch
func TimestampFromBytes(buf []byte) time.Time {
	ms := int64(binary.LittleEndian.Uint64(buf[0:8]))
	return time.UnixMilli(ms).UTC()
}

// PutTimestamp encodes t as a little-endian count of milliseconds since epoch
func PutTimestamp(buf []byte, t time.Time) {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(t.UnixMilli()))
}
