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
	"fmt"
	"io"
	"time"

	"greenlab.dev/go-vbus/pkg/buffer"
	"greenlab.dev/go-vbus/pkg/layers"
)

const maxLiveStreamChunk = 0xFFFF - 22

// LiveDataRecordingReader decodes entities from the raw live data stored in
// the live data stream records of a recording. Units may span records.
type LiveDataRecordingReader struct {
	recordSource
	live      *buffer.Buffer
	channel   uint8
	timestamp time.Time
}

func NewLiveDataRecordingReader(r io.Reader) *LiveDataRecordingReader {
	return &LiveDataRecordingReader{
		recordSource: newRecordSource(r),
		live:         buffer.New(readChunkSize),
	}
}

// ReadData returns the next entity, or nil at the end of the stream.
// Entities carry the start timestamp of the record they completed in.
func (r *LiveDataRecordingReader) ReadData() (layers.Data, error) {
	for {
		if unit := nextLiveData(r.live); unit != nil {
			return layers.DecodeLiveData(r.timestamp, r.channel, unit), nil
		}
		record, offset, err := r.next()
		if err != nil || record == nil {
			return nil, err
		}
		header := layers.DecodeRecordHeader(record)
		switch header.Type {
		case layers.RecordTypeChannel:
			channel, err := layers.DecodeChannelRecord(record)
			if err != nil {
				return nil, fmt.Errorf("record at offset %d: %w", offset, err)
			}
			if channel != r.channel {
				r.live.Reset()
				r.channel = channel
			}
		case layers.RecordTypeLiveDataStream:
			if !r.filter.MatchTimestamp(header.Timestamp) || !r.filter.MatchChannel(r.channel) {
				r.live.Reset()
				continue
			}
			_, raw, err := layers.DecodeLiveStreamRecord(record)
			if err != nil {
				return nil, fmt.Errorf("record at offset %d: %w", offset, err)
			}
			r.live.Extend(raw)
			r.timestamp = header.Timestamp
		case layers.RecordTypeDataSet:
			r.live.Reset()
			r.channel = 0
		case layers.RecordTypeData, layers.RecordTypeComment:
		default:
			return nil, ErrUnsupportedRecord{Type: uint8(header.Type), Offset: offset}
		}
	}
}

// LiveDataRecorder captures raw live data verbatim into live data stream
// records. It is an io.Writer so it can sit behind an io.TeeReader.
type LiveDataRecorder struct {
	w              *RecordingWriter
	clock          Clock
	channel        uint8
	channelWritten bool
}

func NewLiveDataRecorder(w io.Writer, channel uint8) *LiveDataRecorder {
	return &LiveDataRecorder{
		w:       NewRecordingWriter(w),
		clock:   SystemClock{},
		channel: channel,
	}
}

func (r *LiveDataRecorder) SetClock(clock Clock) {
	r.clock = clock
}

// Write stores p stamped with the current time
func (r *LiveDataRecorder) Write(p []byte) (int, error) {
	now := r.clock.Now()
	if err := r.Record(now, now, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Record stores raw bytes received between start and end
func (r *LiveDataRecorder) Record(start, end time.Time, raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	if !r.channelWritten {
		if err := r.w.WriteChannel(start, r.channel); err != nil {
			return err
		}
		r.channelWritten = true
	}
	for len(raw) > 0 {
		n := min(len(raw), maxLiveStreamChunk)
		if err := r.w.WriteLiveDataStream(start, end, raw[:n]); err != nil {
			return err
		}
		raw = raw[n:]
	}
	return nil
}
