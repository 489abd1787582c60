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

package param

import (
	"errors"
	"testing"
	"time"

	"greenlab.dev/go-vbus/pkg/layers"
	"greenlab.dev/go-vbus/pkg/session"
)

// controller answers bulk transaction requests after one read
type controller struct {
	now     time.Time
	pending *layers.Datagram
	sent    []uint16
	ignore  uint16
}

func (c *controller) Now() time.Time {
	return c.now
}

func (c *controller) ReadData() (layers.Data, error) {
	c.now = c.now.Add(100 * time.Millisecond)
	rx := c.pending
	c.pending = nil
	if rx == nil {
		return nil, nil
	}
	return rx, nil
}

func (c *controller) SetReadTimeout(time.Duration) error {
	return nil
}

func (c *controller) EOF() bool {
	return false
}

func (c *controller) WriteData(data ...layers.Data) error {
	for _, d := range data {
		tx := d.(*layers.Datagram)
		c.sent = append(c.sent, tx.Command)
		if tx.Command&0xFF00 == c.ignore {
			continue
		}
		var answer uint16
		switch tx.Command {
		case session.CommandBeginBulkTransaction:
			answer = session.CommandBulkTransactionBegun
		case session.CommandCommitBulkTransaction:
			answer = session.CommandBulkTransactionDone
		case session.CommandRollbackBulkTransaction:
			answer = session.CommandBulkTransactionReverted
		default:
			answer = session.CommandBulkValueSet | tx.Command&0x00FF
		}
		c.pending = &layers.Datagram{
			Header: layers.Header{
				DestinationAddress: tx.SourceAddress,
				SourceAddress:      tx.DestinationAddress,
				ProtocolVersion:    layers.ProtocolVersionDatagram,
			},
			Command: answer,
			Param16: tx.Param16,
			Param32: tx.Param32,
		}
	}
	return nil
}

func newControllerSession(c *controller) *session.Session {
	c.now = time.UnixMilli(1700000000000)
	s := session.New(c, c)
	s.Clock = c
	return s
}

func TestSetBulk(t *testing.T) {
	c := &controller{}
	s := newControllerSession(c)
	rx, err := setBulk(s, 0x7E11, 12, 2, -5)
	if err != nil || rx == nil {
		t.Fatalf("set bulk: %v, %v", rx, err)
	}
	if rx.Param16 != 12 || rx.Param32 != -5 || rx.Command != session.CommandBulkValueSet|2 {
		t.Fatalf("unexpected answer: %+v", rx)
	}
	want := []uint16{0x1400, 0x1502, 0x1402}
	if len(c.sent) != len(want) {
		t.Fatalf("sent %04X", c.sent)
	}
	for i := range want {
		if c.sent[i] != want[i] {
			t.Fatalf("sent %04X, want %04X", c.sent, want)
		}
	}
}

func TestSetBulkRollsBack(t *testing.T) {
	c := &controller{ignore: session.CommandSetBulkValue}
	s := newControllerSession(c)
	_, err := setBulk(s, 0x7E11, 12, 0, 1)
	if !errors.As(err, &ErrNoAnswer{}) {
		t.Fatalf("expected ErrNoAnswer, got %v", err)
	}
	if last := c.sent[len(c.sent)-1]; last != session.CommandRollbackBulkTransaction {
		t.Fatalf("last request %04X is not a rollback", last)
	}
}

func TestDeviceAddress(t *testing.T) {
	o := options{device: "0x7E11"}
	if address, err := o.address(); err != nil || address != 0x7E11 {
		t.Fatalf("address: %04X, %v", address, err)
	}
	o.device = "0x17E11"
	if _, err := o.address(); err == nil {
		t.Fatalf("expected an out of range error")
	}
}
