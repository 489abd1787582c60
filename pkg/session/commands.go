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

package session

import (
	"time"

	"greenlab.dev/go-vbus/pkg/layers"
)

// Datagram commands of the parameterization protocol
const (
	CommandValue                   uint16 = 0x0100
	CommandSetValue                uint16 = 0x0200
	CommandGetValue                uint16 = 0x0300
	CommandFreeBus                 uint16 = 0x0500
	CommandReleaseBus              uint16 = 0x0600
	CommandGetValueIDHash          uint16 = 0x1000
	CommandGetValueIndex           uint16 = 0x1100
	CommandGetCaps1                uint16 = 0x1300
	CommandCaps1                   uint16 = 0x1301
	CommandBeginBulkTransaction    uint16 = 0x1400
	CommandBulkTransactionBegun    uint16 = 0x1401
	CommandCommitBulkTransaction   uint16 = 0x1402
	CommandBulkTransactionDone     uint16 = 0x1403
	CommandRollbackBulkTransaction uint16 = 0x1404
	CommandBulkTransactionReverted uint16 = 0x1405
	CommandSetBulkValue            uint16 = 0x1500
	CommandBulkValueSet            uint16 = 0x1600
)

func (s *Session) request(address, command uint16, param16 int16, param32 int32) *layers.Datagram {
	return &layers.Datagram{
		Header: layers.Header{
			Timestamp:          s.Clock.Now(),
			Channel:            s.Channel,
			DestinationAddress: address,
			SourceAddress:      s.SelfAddress,
			ProtocolVersion:    layers.ProtocolVersionDatagram,
		},
		Command: command,
		Param16: param16,
		Param32: param32,
	}
}

// reply accepts datagrams sent by address to this session carrying command
func (s *Session) reply(address, command uint16, match func(*layers.Datagram) bool) func(layers.Data) bool {
	return func(d layers.Data) bool {
		dgram, ok := d.(*layers.Datagram)
		if !ok || dgram.SourceAddress != address || dgram.DestinationAddress != s.SelfAddress || dgram.Command != command {
			return false
		}
		return match == nil || match(dgram)
	}
}

func (s *Session) exchange(tx *layers.Datagram, filter func(layers.Data) bool) (*layers.Datagram, error) {
	rx, err := s.Transceive(tx, defaultTries, defaultInitialTimeout, defaultTimeoutIncrement, filter)
	if err != nil || rx == nil {
		return nil, err
	}
	return rx.(*layers.Datagram), nil
}

func withIndex(index int16) func(*layers.Datagram) bool {
	return func(d *layers.Datagram) bool {
		return d.Param16 == index
	}
}

// WaitForFreeBus waits up to 20 seconds for a controller to offer the bus
func (s *Session) WaitForFreeBus() (*layers.Datagram, error) {
	rx, err := s.Transceive(nil, 1, 20*time.Second, 0, func(d layers.Data) bool {
		dgram, ok := d.(*layers.Datagram)
		return ok && dgram.Command == CommandFreeBus
	})
	if err != nil || rx == nil {
		return nil, err
	}
	return rx.(*layers.Datagram), nil
}

// ReleaseBus hands the bus back to the controller at address and waits
// for it to resume sending packets.
func (s *Session) ReleaseBus(address uint16) (*layers.Packet, error) {
	rx, err := s.Transceive(s.request(address, CommandReleaseBus, 0, 0), 2, 2500*time.Millisecond, 2500*time.Millisecond,
		func(d layers.Data) bool {
			_, ok := d.(*layers.Packet)
			return ok
		})
	if err != nil || rx == nil {
		return nil, err
	}
	return rx.(*layers.Packet), nil
}

func (s *Session) GetValueByIndex(address uint16, index int16, subindex uint8) (*layers.Datagram, error) {
	tx := s.request(address, CommandGetValue|uint16(subindex), index, 0)
	return s.exchange(tx, s.reply(address, CommandValue|uint16(subindex), withIndex(index)))
}

func (s *Session) SetValueByIndex(address uint16, index int16, subindex uint8, value int32) (*layers.Datagram, error) {
	tx := s.request(address, CommandSetValue|uint16(subindex), index, value)
	return s.exchange(tx, s.reply(address, CommandValue|uint16(subindex), withIndex(index)))
}

// GetValueIDHashByIndex asks for the ID hash of the value at index
func (s *Session) GetValueIDHashByIndex(address uint16, index int16) (*layers.Datagram, error) {
	tx := s.request(address, CommandGetValueIDHash, index, 0)
	return s.exchange(tx, s.reply(address, CommandValue, withIndex(index)))
}

// GetValueIndexByIDHash asks for the index of the value with the given ID hash
func (s *Session) GetValueIndexByIDHash(address uint16, hash int32) (*layers.Datagram, error) {
	tx := s.request(address, CommandGetValueIndex, 0, hash)
	return s.exchange(tx, s.reply(address, CommandValue, func(d *layers.Datagram) bool {
		return d.Param32 == hash
	}))
}

func (s *Session) GetCaps1(address uint16) (*layers.Datagram, error) {
	tx := s.request(address, CommandGetCaps1, 0, 0)
	return s.exchange(tx, s.reply(address, CommandCaps1, nil))
}

// BeginBulkValueTransaction starts a transaction the controller rolls back
// after txTimeout seconds without commit.
func (s *Session) BeginBulkValueTransaction(address uint16, txTimeout int32) (*layers.Datagram, error) {
	tx := s.request(address, CommandBeginBulkTransaction, 0, txTimeout)
	return s.exchange(tx, s.reply(address, CommandBulkTransactionBegun, nil))
}

func (s *Session) CommitBulkValueTransaction(address uint16) (*layers.Datagram, error) {
	tx := s.request(address, CommandCommitBulkTransaction, 0, 0)
	return s.exchange(tx, s.reply(address, CommandBulkTransactionDone, nil))
}

func (s *Session) RollbackBulkValueTransaction(address uint16) (*layers.Datagram, error) {
	tx := s.request(address, CommandRollbackBulkTransaction, 0, 0)
	return s.exchange(tx, s.reply(address, CommandBulkTransactionReverted, nil))
}

// SetBulkValueByIndex stages a value inside a bulk transaction
func (s *Session) SetBulkValueByIndex(address uint16, index int16, subindex uint8, value int32) (*layers.Datagram, error) {
	tx := s.request(address, CommandSetBulkValue|uint16(subindex), index, value)
	return s.exchange(tx, s.reply(address, CommandBulkValueSet|uint16(subindex), withIndex(index)))
}
