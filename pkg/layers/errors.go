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
)

// ErrMalformed is returned when bytes do not form a valid unit
type ErrMalformed struct {
	What string
}

func (e ErrMalformed) Error() string {
	return fmt.Sprintf("Malformed VBus data: %s", e.What)
}

// ErrUnsupportedProtocol is returned for protocol versions no decoder exists for
type ErrUnsupportedProtocol struct {
	Version uint8
}

func (e ErrUnsupportedProtocol) Error() string {
	return fmt.Sprintf("Unsupported VBus protocol version 0x%02X", e.Version)
}

// ErrWrongPacketID is returned when a string can not be parsed as a PacketID
type ErrWrongPacketID struct {
	ID string
}

func (e ErrWrongPacketID) Error() string {
	return fmt.Sprintf("Wrong packet ID %q. Must look like 00_0010_7E11_10_0100", e.ID)
}
