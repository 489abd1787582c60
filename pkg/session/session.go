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

// Package session implements request/response exchanges with VBus
// controllers on top of a live data reader and writer.
package session

import (
	"io"
	"time"

	"greenlab.dev/go-vbus/pkg/layers"
	"greenlab.dev/go-vbus/pkg/log"
	"greenlab.dev/go-vbus/pkg/stream"
)

const (
	DefaultSelfAddress uint16 = 0x0020

	defaultTries            = 3
	defaultInitialTimeout   = 500 * time.Millisecond
	defaultTimeoutIncrement = 500 * time.Millisecond
)

// DataReader is satisfied by *stream.LiveDataReader
type DataReader interface {
	ReadData() (layers.Data, error)
	SetReadTimeout(t time.Duration) error
	// EOF reports that the source is exhausted and no more data will arrive
	EOF() bool
}

// DataWriter is satisfied by *stream.LiveDataWriter
type DataWriter interface {
	WriteData(data ...layers.Data) error
}

// Session pairs a reader and a writer over one link. It is not safe for
// concurrent use.
type Session struct {
	reader DataReader
	writer DataWriter

	Channel     uint8
	SelfAddress uint16
	Clock       stream.Clock
}

func New(reader DataReader, writer DataWriter) *Session {
	return &Session{
		reader:      reader,
		writer:      writer,
		SelfAddress: DefaultSelfAddress,
		Clock:       stream.SystemClock{},
	}
}

// NewForLink creates a session reading and writing raw live data on rw
func NewForLink(rw io.ReadWriter, channel uint8) *Session {
	reader := stream.NewLiveDataReader(rw)
	reader.SetChannel(channel)
	s := New(reader, stream.NewLiveDataWriter(rw))
	s.Channel = channel
	return s
}

// Transmit writes d to the link
func (s *Session) Transmit(d layers.Data) error {
	return s.writer.WriteData(d)
}

// Receive returns the next entity arriving within timeout. Timeouts and
// read errors yield nil.
func (s *Session) Receive(timeout time.Duration) layers.Data {
	if err := s.reader.SetReadTimeout(timeout); err != nil {
		log.Debug("Unable to set read timeout: %s", err)
	}
	d, err := s.reader.ReadData()
	if err != nil {
		log.Debug("Receive failed: %s", err)
		return nil
	}
	return d
}

type transceiveState int

const (
	stateTransmit transceiveState = iota
	stateReceive
	stateNextAttempt
	stateDone
)

// Transceive transmits tx (unless nil) and waits for an entity accepted by
// filter. Every one of tries attempts waits at most its timeout, which
// starts at initialTimeout and grows by timeoutIncrement per attempt.
// It returns nil when all attempts are exhausted or the source reached
// EOF. Only transmit errors are returned.
func (s *Session) Transceive(tx layers.Data, tries int, initialTimeout, timeoutIncrement time.Duration,
	filter func(layers.Data) bool) (layers.Data, error) {
	var (
		state    = stateTransmit
		attempt  = 0
		timeout  = initialTimeout
		deadline time.Time
	)
	if tries <= 0 {
		state = stateDone
	}
	for state != stateDone {
		switch state {
		case stateTransmit:
			if tx != nil {
				if err := s.Transmit(tx); err != nil {
					return nil, err
				}
			}
			deadline = s.Clock.Now().Add(timeout)
			state = stateReceive
		case stateReceive:
			remaining := deadline.Sub(s.Clock.Now())
			if remaining <= 0 {
				state = stateNextAttempt
				break
			}
			d := s.Receive(remaining)
			if d != nil && filter(d) {
				return d, nil
			}
			if d == nil && s.reader.EOF() {
				log.Debug("Source exhausted, giving up after %d attempts", attempt+1)
				state = stateDone
			}
		case stateNextAttempt:
			attempt++
			timeout += timeoutIncrement
			if attempt < tries {
				state = stateTransmit
			} else {
				state = stateDone
			}
		}
	}
	return nil, nil
}
