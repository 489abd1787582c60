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

package stream

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/google/gopacket"

	"greenlab.dev/go-vbus/pkg/buffer"
	"greenlab.dev/go-vbus/pkg/layers"
	"greenlab.dev/go-vbus/pkg/log"
)

// LiveDataReader decodes entities from a raw VBus byte stream.
// Malformed bytes are skipped until the stream resynchronizes.
type LiveDataReader struct {
	r       io.Reader
	buf     *buffer.Buffer
	clock   Clock
	channel uint8
	eof     bool
}

var _ gopacket.PacketDataSource = &LiveDataReader{}

func NewLiveDataReader(r io.Reader) *LiveDataReader {
	return &LiveDataReader{
		r:     r,
		buf:   buffer.New(readChunkSize),
		clock: SystemClock{},
	}
}

// SetChannel sets the channel assigned to every decoded entity
func (r *LiveDataReader) SetChannel(channel uint8) {
	r.channel = channel
}

func (r *LiveDataReader) Channel() uint8 {
	return r.channel
}

// SetClock replaces the clock timestamping decoded entities
func (r *LiveDataReader) SetClock(clock Clock) {
	r.clock = clock
}

// SetReadTimeout bounds the next reads if the source supports it.
// Other sources keep blocking until bytes arrive.
func (r *LiveDataReader) SetReadTimeout(t time.Duration) error {
	if tr, ok := r.r.(TimeoutReader); ok {
		return tr.SetReadTimeout(t)
	}
	return nil
}

// EOF reports whether the source has been read to its end
func (r *LiveDataReader) EOF() bool {
	return r.eof
}

// ReadData returns the next entity. It returns nil and no error when the
// source reached EOF or timed out before a complete unit arrived.
func (r *LiveDataReader) ReadData() (layers.Data, error) {
	unit, ts, err := r.readUnit()
	if err != nil || unit == nil {
		return nil, err
	}
	return layers.DecodeLiveData(ts, r.channel, unit), nil
}

// ReadPacketData returns the next raw unit, so the reader can feed
// gopacket.NewPacketSource(r, layers.LiveDataLayerType). The channel is
// the only element of CaptureInfo.AncillaryData.
func (r *LiveDataReader) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	unit, ts, err := r.readUnit()
	if err != nil {
		return nil, gopacket.CaptureInfo{}, err
	}
	if unit == nil {
		if r.eof {
			return nil, gopacket.CaptureInfo{}, io.EOF
		}
		return nil, gopacket.CaptureInfo{}, ErrNoData
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(unit),
		Length:        len(unit),
		AncillaryData: []interface{}{r.channel},
	}
	return unit, ci, nil
}

func (r *LiveDataReader) readUnit() ([]byte, time.Time, error) {
	for {
		if unit := nextLiveData(r.buf); unit != nil {
			return unit, r.clock.Now(), nil
		}
		n, err := r.buf.Fill(r.r, readChunkSize)
		if n > 0 {
			continue
		}
		switch {
		case err == nil, IsTimeout(err):
			return nil, time.Time{}, nil
		case errors.Is(err, io.EOF):
			r.eof = true
			return nil, time.Time{}, nil
		}
		return nil, time.Time{}, fmt.Errorf("read live data: %w", err)
	}
}

// nextLiveData extracts the next complete unit from buf. A malformed
// start is dropped up to the next sync byte.
func nextLiveData(buf *buffer.Buffer) []byte {
	for buf.Len() > 0 {
		data := buf.Bytes()
		framing, length := layers.ClassifyLiveData(data)
		switch framing {
		case layers.FrameComplete:
			unit := slices.Clone(data[:length])
			buf.Consume(length)
			return unit
		case layers.FramePartial:
			return nil
		}
		skip := bytes.IndexByte(data[1:], layers.LiveDataSync) + 1
		if skip == 0 {
			skip = len(data)
		}
		log.Debug("Skipping %d malformed live data bytes at offset %d", skip, buf.Offset())
		buf.Consume(skip)
	}
	return nil
}

// LiveDataWriter encodes entities onto a raw VBus byte stream
type LiveDataWriter struct {
	w  io.Writer
	sb gopacket.SerializeBuffer
}

func NewLiveDataWriter(w io.Writer) *LiveDataWriter {
	return &LiveDataWriter{
		w:  w,
		sb: gopacket.NewSerializeBuffer(),
	}
}

// WriteData encodes all entities and writes them in one call
func (w *LiveDataWriter) WriteData(data ...layers.Data) error {
	sls := make([]gopacket.SerializableLayer, len(data))
	for i, d := range data {
		sls[i] = d
	}
	if err := gopacket.SerializeLayers(w.sb, gopacket.SerializeOptions{}, sls...); err != nil {
		return err
	}
	if _, err := w.w.Write(w.sb.Bytes()); err != nil {
		return fmt.Errorf("write live data: %w", err)
	}
	return nil
}
