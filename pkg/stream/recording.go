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

	"greenlab.dev/go-vbus/pkg/buffer"
	"greenlab.dev/go-vbus/pkg/dataset"
	"greenlab.dev/go-vbus/pkg/layers"
	"greenlab.dev/go-vbus/pkg/log"
)

// recordSource splits a byte stream into complete records
type recordSource struct {
	r      io.Reader
	buf    *buffer.Buffer
	filter Filter
}

func newRecordSource(r io.Reader) recordSource {
	return recordSource{r: r, buf: buffer.New(readChunkSize)}
}

// next returns a copy of the next complete record and its stream offset.
// It returns a nil record at the end of the stream.
func (s *recordSource) next() ([]byte, int64, error) {
	for {
		for s.buf.Len() > 0 {
			data := s.buf.Bytes()
			framing, length := layers.ClassifyRecord(data)
			if framing == layers.FramePartial {
				break
			}
			offset := s.buf.Offset()
			if framing == layers.FrameComplete {
				record := slices.Clone(data[:length])
				s.buf.Consume(length)
				return record, offset, nil
			}
			skip := bytes.IndexByte(data[1:], layers.RecordSync) + 1
			if skip == 0 {
				skip = len(data)
			}
			log.Debug("Skipping %d malformed record bytes at offset %d", skip, offset)
			s.buf.Consume(skip)
		}
		n, err := s.buf.Fill(s.r, readChunkSize)
		if n > 0 {
			continue
		}
		if err == nil || errors.Is(err, io.EOF) || IsTimeout(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("read recording: %w", err)
	}
}

// SetFilter replaces the record filter
func (s *recordSource) SetFilter(f Filter) {
	s.filter = f
}

// RecordingReader reads data sets from a VBus recording
type RecordingReader struct {
	recordSource
	channel   uint8
	pending   []byte
	offset    int64
	onComment func(ts time.Time, comment []byte)
}

func NewRecordingReader(r io.Reader) *RecordingReader {
	return &RecordingReader{recordSource: newRecordSource(r)}
}

// SetCommentHandler registers fn to receive the bodies of comment records
func (r *RecordingReader) SetCommentHandler(fn func(ts time.Time, comment []byte)) {
	r.onComment = fn
}

// ReadRecord returns the next raw record, or nil at the end of the stream.
// Filters do not apply.
func (r *RecordingReader) ReadRecord() ([]byte, error) {
	record, _, err := r.nextRecord()
	return record, err
}

func (r *RecordingReader) nextRecord() ([]byte, int64, error) {
	if r.pending != nil {
		record := r.pending
		r.pending = nil
		return record, r.offset, nil
	}
	return r.next()
}

// ReadDataSet folds the data records up to the next data set delimiter
// into a data set. It returns nil at the end of the stream. A delimiter
// outside the filter's time bounds skips its whole data set.
func (r *RecordingReader) ReadDataSet() (*dataset.DataSet, error) {
	var ds *dataset.DataSet
	skipping := false
	for {
		record, offset, err := r.nextRecord()
		if err != nil {
			return nil, err
		}
		if record == nil {
			return ds, nil
		}
		header := layers.DecodeRecordHeader(record)
		if header.Type == layers.RecordTypeDataSet {
			if ds != nil {
				r.pending, r.offset = record, offset
				return ds, nil
			}
			r.channel = 0
			skipping = !r.filter.MatchTimestamp(header.Timestamp)
			if !skipping {
				ds = dataset.New()
				ds.Timestamp = header.Timestamp
			}
			continue
		}
		d, err := r.handle(header, record, offset)
		if err != nil {
			return nil, err
		}
		if d == nil || skipping {
			continue
		}
		if ds == nil {
			ds = dataset.New()
		}
		ds.AddData(d)
	}
}

// ReadTopologyDataSet scans the rest of the stream and returns one
// placeholder entity per distinct identity, sorted. Payloads are not kept.
func (r *RecordingReader) ReadTopologyDataSet() (*dataset.DataSet, error) {
	seen := make(map[layers.Fingerprint]struct{})
	var fingerprints []layers.Fingerprint
	var latest time.Time
	skipping := false
	for {
		record, offset, err := r.nextRecord()
		if err != nil {
			return nil, err
		}
		if record == nil {
			break
		}
		header := layers.DecodeRecordHeader(record)
		if header.Type == layers.RecordTypeDataSet {
			r.channel = 0
			skipping = !r.filter.MatchTimestamp(header.Timestamp)
			continue
		}
		d, err := r.handle(header, record, offset)
		if err != nil {
			return nil, err
		}
		if d == nil || skipping {
			continue
		}
		if ts := d.GetHeader().Timestamp; ts.After(latest) {
			latest = ts
		}
		fp := layers.FingerprintOf(d)
		if _, ok := seen[fp]; !ok {
			seen[fp] = struct{}{}
			fingerprints = append(fingerprints, fp)
		}
	}

	ds := dataset.New()
	for _, fp := range fingerprints {
		d, err := layers.DecodeDataRecord(fp.Channel, fp.Record())
		if err != nil {
			return nil, err
		}
		ds.AddData(d)
	}
	ds.Sort()
	ds.Timestamp = latest
	return ds, nil
}

// handle processes every record type but the delimiter and returns the
// decoded entity of a data record passing the filter
func (r *RecordingReader) handle(header layers.RecordHeader, record []byte, offset int64) (layers.Data, error) {
	switch header.Type {
	case layers.RecordTypeChannel:
		channel, err := layers.DecodeChannelRecord(record)
		if err != nil {
			return nil, fmt.Errorf("record at offset %d: %w", offset, err)
		}
		r.channel = channel
	case layers.RecordTypeData:
		if !r.filter.MatchTimestamp(header.Timestamp) || !r.filter.MatchChannel(r.channel) {
			return nil, nil
		}
		d, err := layers.DecodeDataRecord(r.channel, record)
		if err != nil {
			return nil, fmt.Errorf("record at offset %d: %w", offset, err)
		}
		return d, nil
	case layers.RecordTypeComment:
		if r.onComment != nil {
			r.onComment(header.Timestamp, layers.DecodeCommentRecord(record))
		}
	case layers.RecordTypeLiveDataStream:
	default:
		return nil, ErrUnsupportedRecord{Type: uint8(header.Type), Offset: offset}
	}
	return nil, nil
}

// RecordingWriter writes records of a VBus recording
type RecordingWriter struct {
	w io.Writer
}

func NewRecordingWriter(w io.Writer) *RecordingWriter {
	return &RecordingWriter{w: w}
}

func (w *RecordingWriter) write(record []byte) error {
	if _, err := w.w.Write(record); err != nil {
		return fmt.Errorf("write recording: %w", err)
	}
	return nil
}

// WriteDataSet writes one delimiter, then per channel in ascending order
// a channel marker followed by the data records of that channel.
func (w *RecordingWriter) WriteDataSet(ds *dataset.DataSet) error {
	out := layers.EncodeDataSetRecord(ds.Timestamp)
	for _, channel := range ds.Channels() {
		out = append(out, layers.EncodeChannelRecord(ds.Timestamp, channel)...)
		for _, d := range ds.Data() {
			if d.GetHeader().Channel == channel {
				out = append(out, layers.EncodeDataRecord(d)...)
			}
		}
	}
	return w.write(out)
}

// WriteDataSetHeader writes a bare data set delimiter
func (w *RecordingWriter) WriteDataSetHeader(ts time.Time) error {
	return w.write(layers.EncodeDataSetRecord(ts))
}

// WriteData writes one data record. The channel is not written.
func (w *RecordingWriter) WriteData(d layers.Data) error {
	return w.write(layers.EncodeDataRecord(d))
}

func (w *RecordingWriter) WriteChannel(ts time.Time, channel uint8) error {
	return w.write(layers.EncodeChannelRecord(ts, channel))
}

func (w *RecordingWriter) WriteComment(ts time.Time, comment []byte) error {
	return w.write(layers.EncodeCommentRecord(ts, comment))
}

func (w *RecordingWriter) WriteLiveDataStream(start, end time.Time, raw []byte) error {
	return w.write(layers.EncodeLiveStreamRecord(start, end, raw))
}
