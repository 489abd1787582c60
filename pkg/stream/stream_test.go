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
	"io"
	"testing"
	"testing/iotest"
	"time"

	"github.com/google/gopacket"

	"greenlab.dev/go-vbus/pkg/dataset"
	"greenlab.dev/go-vbus/pkg/layers"
)

var base = time.UnixMilli(1700000000000).UTC()

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

func packet(src uint16, frameCount uint8, ts time.Time) *layers.Packet {
	p := &layers.Packet{
		Header: layers.Header{
			Timestamp:          ts,
			DestinationAddress: 0x0010,
			SourceAddress:      src,
			ProtocolVersion:    layers.ProtocolVersionPacket,
		},
		Command:    0x0100,
		FrameCount: frameCount,
	}
	for i := range p.ValidFrameData() {
		p.FrameData[i] = byte(i * 13)
	}
	return p
}

func datagram(ts time.Time) *layers.Datagram {
	return &layers.Datagram{
		Header: layers.Header{
			Timestamp:          ts,
			DestinationAddress: 0x0020,
			SourceAddress:      0x7E11,
			ProtocolVersion:    layers.ProtocolVersionDatagram,
		},
		Command: 0x0100,
		Param16: 0x1234,
		Param32: 42,
	}
}

func TestLiveDataReaderResync(t *testing.T) {
	var raw []byte
	raw = append(raw, 0x01, 0xAA, 0x7F)
	raw = append(raw, layers.EncodeLiveData(packet(0x7E11, 2, base))...)
	raw = append(raw, 0xAA, 0xAA)
	raw = append(raw, layers.EncodeLiveData(datagram(base))...)
	raw = append(raw, layers.EncodeLiveData(packet(0x7E21, 1, base))[:7]...)

	for name, source := range map[string]io.Reader{
		"whole":    bytes.NewReader(raw),
		"one byte": iotest.OneByteReader(bytes.NewReader(raw)),
	} {
		clock := &fixedClock{now: base.Add(time.Minute)}
		r := NewLiveDataReader(source)
		r.SetChannel(3)
		r.SetClock(clock)

		d, err := r.ReadData()
		if err != nil {
			t.Fatalf("%s: read: %v", name, err)
		}
		p, ok := d.(*layers.Packet)
		if !ok || p.SourceAddress != 0x7E11 || p.FrameCount != 2 {
			t.Fatalf("%s: expected the first packet, got %#v", name, d)
		}
		if p.Channel != 3 || !p.Timestamp.Equal(clock.now) {
			t.Fatalf("%s: channel %d timestamp %v", name, p.Channel, p.Timestamp)
		}
		if !bytes.Equal(p.ValidFrameData(), packet(0x7E11, 2, base).ValidFrameData()) {
			t.Fatalf("%s: frame data differs", name)
		}

		d, err = r.ReadData()
		if err != nil {
			t.Fatalf("%s: read: %v", name, err)
		}
		if _, ok := d.(*layers.Datagram); !ok {
			t.Fatalf("%s: expected the datagram, got %#v", name, d)
		}

		d, err = r.ReadData()
		if err != nil || d != nil {
			t.Fatalf("%s: expected nothing for a truncated tail, got %v, %v", name, d, err)
		}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("boom")
}

func TestLiveDataReaderTransportError(t *testing.T) {
	r := NewLiveDataReader(failingReader{})
	if _, err := r.ReadData(); err == nil {
		t.Fatalf("transport errors must be returned")
	}
}

type dataThenError struct {
	data []byte
}

func (r *dataThenError) Read(p []byte) (int, error) {
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, errors.New("boom")
}

func TestLiveDataReaderErrorAfterData(t *testing.T) {
	r := NewLiveDataReader(&dataThenError{data: layers.EncodeLiveData(datagram(base))})
	d, err := r.ReadData()
	if _, ok := d.(*layers.Datagram); !ok || err != nil {
		t.Fatalf("expected the buffered datagram first, got %#v, %v", d, err)
	}
	if _, err := r.ReadData(); err == nil {
		t.Fatalf("the error that came with the data must be reported")
	}
}

func TestLiveDataPacketSource(t *testing.T) {
	var raw bytes.Buffer
	w := NewLiveDataWriter(&raw)
	if err := w.WriteData(packet(0x7E11, 1, base), datagram(base)); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := NewLiveDataReader(&raw)
	r.SetChannel(7)
	source := gopacket.NewPacketSource(r, layers.LiveDataLayerType)

	var kinds []gopacket.LayerType
	for packet := range source.Packets() {
		if packet.ErrorLayer() != nil {
			t.Fatalf("decode: %v", packet.ErrorLayer().Error())
		}
		kinds = append(kinds, packet.Layers()[0].LayerType())
		channel := packet.Metadata().AncillaryData[0].(uint8)
		if channel != 7 {
			t.Fatalf("channel: got %d", channel)
		}
	}
	if len(kinds) != 2 || kinds[0] != layers.PacketLayerType || kinds[1] != layers.DatagramLayerType {
		t.Fatalf("layers: got %v", kinds)
	}
}

func TestFilter(t *testing.T) {
	f := Filter{MinTimestamp: base, MaxTimestamp: base.Add(time.Hour), MaxExclusive: true, Channels: []uint8{1}}
	if !f.MatchTimestamp(base) || f.MatchTimestamp(base.Add(time.Hour)) || f.MatchTimestamp(base.Add(-time.Second)) {
		t.Fatalf("timestamp bounds")
	}
	f.MinExclusive = true
	if f.MatchTimestamp(base) {
		t.Fatalf("exclusive lower bound")
	}
	if !f.MatchChannel(1) || f.MatchChannel(2) {
		t.Fatalf("channel list")
	}
	var all Filter
	if !all.MatchTimestamp(time.Time{}) || !all.MatchChannel(9) {
		t.Fatalf("empty filter should match everything")
	}
}

func TestReadDataSetScenario(t *testing.T) {
	var raw []byte
	raw = append(raw, layers.EncodeDataSetRecord(base)...)
	raw = append(raw, layers.EncodeChannelRecord(base, 1)...)
	raw = append(raw, layers.EncodeDataRecord(packet(0x7E11, 2, base))...)

	r := NewRecordingReader(bytes.NewReader(raw))
	ds, err := r.ReadDataSet()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if ds == nil || ds.Len() != 1 {
		t.Fatalf("expected one entity, got %v", ds)
	}
	if ch := ds.Get(0).GetHeader().Channel; ch != 1 {
		t.Fatalf("channel: got %d", ch)
	}
	ds, err = r.ReadDataSet()
	if err != nil || ds != nil {
		t.Fatalf("expected the end of the stream, got %v, %v", ds, err)
	}
}

func writeTwoDataSets(t *testing.T) []byte {
	t.Helper()
	var out bytes.Buffer
	w := NewRecordingWriter(&out)

	first := dataset.New()
	first.AddData(packet(0x7E11, 1, base))
	second := dataset.New()
	p := packet(0x7E11, 3, base.Add(time.Minute))
	p.Channel = 2
	second.AddData(p)
	second.AddData(packet(0x7E21, 1, base.Add(time.Minute)))
	second.AddData(datagram(base.Add(time.Minute)))

	if err := w.WriteDataSet(first); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.WriteComment(base, []byte("note")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.WriteDataSet(second); err != nil {
		t.Fatalf("write: %v", err)
	}
	return out.Bytes()
}

func TestRecordingWriterLayout(t *testing.T) {
	raw := writeTwoDataSets(t)
	r := NewRecordingReader(bytes.NewReader(raw))
	var types []layers.RecordType
	var channels []uint8
	for {
		record, err := r.ReadRecord()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if record == nil {
			break
		}
		header := layers.DecodeRecordHeader(record)
		types = append(types, header.Type)
		if header.Type == layers.RecordTypeChannel {
			channel, _ := layers.DecodeChannelRecord(record)
			channels = append(channels, channel)
		}
	}
	want := []layers.RecordType{
		layers.RecordTypeDataSet, layers.RecordTypeChannel, layers.RecordTypeData,
		layers.RecordTypeComment,
		layers.RecordTypeDataSet, layers.RecordTypeChannel, layers.RecordTypeData, layers.RecordTypeData,
		layers.RecordTypeChannel, layers.RecordTypeData,
	}
	if len(types) != len(want) {
		t.Fatalf("types: got %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("types: got %v, want %v", types, want)
		}
	}
	if len(channels) != 3 || channels[0] != 0 || channels[1] != 0 || channels[2] != 2 {
		t.Fatalf("channels: got %v", channels)
	}
}

func TestReadDataSets(t *testing.T) {
	r := NewRecordingReader(bytes.NewReader(writeTwoDataSets(t)))
	var comments []string
	r.SetCommentHandler(func(ts time.Time, comment []byte) {
		comments = append(comments, string(comment))
	})

	first, err := r.ReadDataSet()
	if err != nil || first == nil || first.Len() != 1 {
		t.Fatalf("first: %v, %v", first, err)
	}
	second, err := r.ReadDataSet()
	if err != nil || second == nil || second.Len() != 3 {
		t.Fatalf("second: %v, %v", second, err)
	}
	if !second.Timestamp.Equal(base.Add(time.Minute)) {
		t.Fatalf("timestamp: got %v", second.Timestamp)
	}
	if _, ok := second.FindByIDString("02_0010_7E11_10_0100"); !ok {
		t.Fatalf("channel 2 packet missing")
	}
	if len(comments) != 1 || comments[0] != "note" {
		t.Fatalf("comments: got %v", comments)
	}
	if ds, err := r.ReadDataSet(); ds != nil || err != nil {
		t.Fatalf("expected the end of the stream, got %v, %v", ds, err)
	}
}

func TestReadDataSetFilter(t *testing.T) {
	r := NewRecordingReader(bytes.NewReader(writeTwoDataSets(t)))
	r.SetFilter(Filter{MinTimestamp: base, MinExclusive: true, Channels: []uint8{2}})
	ds, err := r.ReadDataSet()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if ds == nil || ds.Len() != 1 || ds.Get(0).GetHeader().Channel != 2 {
		t.Fatalf("expected only the channel 2 packet of the second set, got %v", ds)
	}
}

func TestReadTopologyDataSet(t *testing.T) {
	r := NewRecordingReader(bytes.NewReader(writeTwoDataSets(t)))
	ds, err := r.ReadTopologyDataSet()
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	want := []string{
		"00_0010_7E11_10_0100",
		"00_0010_7E21_10_0100",
		"00_0020_7E11_20_0100_0000",
		"02_0010_7E11_10_0100",
	}
	if ds.Len() != len(want) {
		t.Fatalf("len: got %d, want %d", ds.Len(), len(want))
	}
	for i, id := range want {
		if got := ds.Get(i).IDString(); got != id {
			t.Fatalf("entity %d: got %s, want %s", i, got, id)
		}
	}
	if ds.Get(0).(*layers.Packet).FrameCount != 0 {
		t.Fatalf("topology placeholders carry no payload")
	}
}

func TestUnsupportedRecord(t *testing.T) {
	raw := layers.EncodeDataSetRecord(base)
	bad := layers.EncodeCommentRecord(base, []byte("x"))
	bad[1] = 0x55
	raw = append(raw, bad...)
	raw = append(raw, layers.EncodeDataRecord(packet(0x7E11, 0, base))...)

	r := NewRecordingReader(bytes.NewReader(raw))
	_, err := r.ReadDataSet()
	var unsupported ErrUnsupportedRecord
	if !errors.As(err, &unsupported) || unsupported.Type != 0x55 || unsupported.Offset != layers.RecordHeaderLength {
		t.Fatalf("expected ErrUnsupportedRecord, got %v", err)
	}
	ds, err := r.ReadDataSet()
	if err != nil || ds == nil || ds.Len() != 1 {
		t.Fatalf("reading should continue after the bad record, got %v, %v", ds, err)
	}
}

func TestRecordingResync(t *testing.T) {
	raw := []byte{0x00, 0xA5, 0x12}
	raw = append(raw, layers.EncodeDataSetRecord(base)...)
	raw = append(raw, layers.EncodeDataRecord(packet(0x7E11, 1, base))...)
	r := NewRecordingReader(iotest.HalfReader(bytes.NewReader(raw)))
	ds, err := r.ReadDataSet()
	if err != nil || ds == nil || ds.Len() != 1 {
		t.Fatalf("got %v, %v", ds, err)
	}
}

func TestLiveDataRecording(t *testing.T) {
	var raw []byte
	raw = append(raw, layers.EncodeLiveData(packet(0x7E11, 4, base))...)
	raw = append(raw, layers.EncodeLiveData(datagram(base))...)

	var out bytes.Buffer
	clock := &fixedClock{now: base}
	recorder := NewLiveDataRecorder(&out, 5)
	recorder.SetClock(clock)
	if _, err := recorder.Write(raw[:13]); err != nil {
		t.Fatalf("write: %v", err)
	}
	clock.now = base.Add(time.Second)
	if _, err := io.Copy(recorder, bytes.NewReader(raw[13:])); err != nil {
		t.Fatalf("copy: %v", err)
	}

	r := NewLiveDataRecordingReader(bytes.NewReader(out.Bytes()))
	d, err := r.ReadData()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	p, ok := d.(*layers.Packet)
	if !ok || p.FrameCount != 4 || p.Channel != 5 {
		t.Fatalf("expected the packet on channel 5, got %#v", d)
	}
	if !p.Timestamp.Equal(base.Add(time.Second)) {
		t.Fatalf("timestamp: got %v", p.Timestamp)
	}
	d, err = r.ReadData()
	if _, ok := d.(*layers.Datagram); !ok || err != nil {
		t.Fatalf("expected the datagram, got %#v, %v", d, err)
	}
	if d, err = r.ReadData(); d != nil || err != nil {
		t.Fatalf("expected the end of the stream, got %v, %v", d, err)
	}

	filtered := NewLiveDataRecordingReader(bytes.NewReader(out.Bytes()))
	filtered.SetFilter(Filter{Channels: []uint8{1}})
	if d, err = filtered.ReadData(); d != nil || err != nil {
		t.Fatalf("channel filter: got %v, %v", d, err)
	}
}

func TestLiveDataRecordingDataSetDelimiter(t *testing.T) {
	var out bytes.Buffer
	w := NewRecordingWriter(&out)
	steps := []func() error{
		func() error { return w.WriteChannel(base, 5) },
		func() error {
			return w.WriteLiveDataStream(base, base, layers.EncodeLiveData(packet(0x7E11, 2, base))[:12])
		},
		func() error { return w.WriteDataSetHeader(base.Add(time.Second)) },
		func() error {
			return w.WriteLiveDataStream(base.Add(time.Second), base.Add(time.Second), layers.EncodeLiveData(datagram(base)))
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	r := NewLiveDataRecordingReader(bytes.NewReader(out.Bytes()))
	d, err := r.ReadData()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	dgram, ok := d.(*layers.Datagram)
	if !ok || dgram.Channel != 0 {
		t.Fatalf("expected the datagram on channel 0, got %#v", d)
	}
	if d, err = r.ReadData(); d != nil || err != nil {
		t.Fatalf("expected the end of the stream, got %v, %v", d, err)
	}
}
