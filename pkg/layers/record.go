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
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// RecordType is the self-validating type byte of a recording record
type RecordType uint8

const (
	// RecordTypeDataSet starts a new snapshot
	RecordTypeDataSet RecordType = 0x44
	// RecordTypeData carries one entity
	RecordTypeData RecordType = 0x66
	// RecordTypeChannel declares the channel of the following data records
	RecordTypeChannel RecordType = 0x77
	// RecordTypeLiveDataStream carries raw live-data bytes
	RecordTypeLiveDataStream RecordType = 0x88
	// RecordTypeComment carries opaque bytes
	RecordTypeComment RecordType = 0x99
)

func (t RecordType) String() string {
	switch t {
	case RecordTypeDataSet:
		return "DataSet"
	case RecordTypeData:
		return "Data"
	case RecordTypeChannel:
		return "Channel"
	case RecordTypeLiveDataStream:
		return "LiveDataStream"
	case RecordTypeComment:
		return "Comment"
	}
	return fmt.Sprintf("RecordType(0x%02X)", uint8(t))
}

const (
	dataRecordBodyOffset    = 26
	channelRecordLength     = 16
	liveStreamRecordMinimum = 22
)

// RecordHeader is the 14 byte prefix of every record
type RecordHeader struct {
	Type      RecordType
	Length    uint16
	Timestamp time.Time
}

// DecodeRecordHeader reads the header of a record ClassifyRecord reported as complete
func DecodeRecordHeader(buf []byte) RecordHeader {
	return RecordHeader{
		Type:      RecordType(buf[1]),
		Length:    binary.LittleEndian.Uint16(buf[2:4]),
		Timestamp: TimestampFromBytes(buf[6:14]),
	}
}

// Serialize writes the header into the first 14 bytes of buf
func (h *RecordHeader) Serialize(buf []byte) {
	buf[0] = RecordSync
	buf[1] = uint8(h.Type)
	binary.LittleEndian.PutUint16(buf[2:4], h.Length)
	binary.LittleEndian.PutUint16(buf[4:6], h.Length)
	PutTimestamp(buf[6:14], h.Timestamp)
}

func newRecord(t RecordType, timestamp time.Time, bodyLength int) []byte {
	length := RecordHeaderLength + bodyLength
	if length > 0xFFFF {
		panic(fmt.Sprintf("layers: record of %d bytes exceeds 65535", length))
	}
	buf := make([]byte, length)
	h := RecordHeader{Type: t, Length: uint16(length), Timestamp: timestamp}
	h.Serialize(buf)
	return buf
}

// EncodeDataSetRecord returns a data set delimiter record
func EncodeDataSetRecord(timestamp time.Time) []byte {
	return newRecord(RecordTypeDataSet, timestamp, 0)
}

// EncodeChannelRecord returns a channel marker record
func EncodeChannelRecord(timestamp time.Time, channel uint8) []byte {
	buf := newRecord(RecordTypeChannel, timestamp, channelRecordLength-RecordHeaderLength)
	buf[14] = channel
	return buf
}

// DecodeChannelRecord returns the channel declared by a channel marker record
func DecodeChannelRecord(record []byte) (uint8, error) {
	if len(record) < channelRecordLength {
		return 0, ErrMalformed{What: fmt.Sprintf("channel record too short: %d bytes", len(record))}
	}
	return record[14], nil
}

// EncodeCommentRecord returns a comment record carrying comment verbatim
func EncodeCommentRecord(timestamp time.Time, comment []byte) []byte {
	buf := newRecord(RecordTypeComment, timestamp, len(comment))
	copy(buf[RecordHeaderLength:], comment)
	return buf
}

// DecodeCommentRecord returns the opaque bytes of a comment record
func DecodeCommentRecord(record []byte) []byte {
	return record[RecordHeaderLength:]
}

// EncodeLiveStreamRecord wraps raw live-data bytes received between start and end
func EncodeLiveStreamRecord(start, end time.Time, raw []byte) []byte {
	buf := newRecord(RecordTypeLiveDataStream, start, liveStreamRecordMinimum-RecordHeaderLength+len(raw))
	PutTimestamp(buf[14:22], end)
	copy(buf[liveStreamRecordMinimum:], raw)
	return buf
}

// DecodeLiveStreamRecord returns the end timestamp and the raw live-data bytes of a stream record
func DecodeLiveStreamRecord(record []byte) (time.Time, []byte, error) {
	if len(record) < liveStreamRecordMinimum {
		return time.Time{}, nil, ErrMalformed{What: fmt.Sprintf("live data stream record too short: %d bytes", len(record))}
	}
	return TimestampFromBytes(record[14:22]), record[liveStreamRecordMinimum:], nil
}

// DataRecordLength returns the length of the data record of d without encoding it
func DataRecordLength(d Data) int {
	return dataRecordBodyOffset + len(recordPayload(d))
}

func recordPayload(d Data) []byte {
	switch d := d.(type) {
	case *Packet:
		return d.ValidFrameData()
	case *Datagram:
		payload := make([]byte, datagramDataLength)
		binary.LittleEndian.PutUint16(payload[0:2], uint16(d.Param16))
		binary.LittleEndian.PutUint32(payload[2:6], uint32(d.Param32))
		return payload
	case *Telegram:
		return d.ValidFrameData()
	}
	panic(fmt.Sprintf("layers: unexpected data type %T", d))
}

// EncodeDataRecord wraps d into a data record stamped with its own timestamp.
// The channel is not part of the record; it is declared by a channel marker.
func EncodeDataRecord(d Data) []byte {
	h := d.GetHeader()
	payload := recordPayload(d)
	buf := newRecord(RecordTypeData, h.Timestamp, dataRecordBodyOffset-RecordHeaderLength+len(payload))
	binary.LittleEndian.PutUint16(buf[14:16], h.DestinationAddress)
	binary.LittleEndian.PutUint16(buf[16:18], h.SourceAddress)
	buf[18] = h.ProtocolVersion
	switch d := d.(type) {
	case *Packet:
		binary.LittleEndian.PutUint16(buf[20:22], d.Command)
	case *Datagram:
		binary.LittleEndian.PutUint16(buf[20:22], d.Command)
	case *Telegram:
		buf[20] = d.Command
	}
	binary.LittleEndian.PutUint16(buf[22:24], uint16(len(payload)))
	copy(buf[dataRecordBodyOffset:], payload)
	return buf
}

// DecodeDataRecord decodes a data record into an entity on the given channel.
// Unknown protocol versions and inconsistent lengths are structural errors.
func DecodeDataRecord(channel uint8, record []byte) (Data, error) {
	if len(record) < dataRecordBodyOffset {
		return nil, ErrMalformed{What: fmt.Sprintf("data record too short: %d bytes", len(record))}
	}
	header := Header{
		Timestamp:          TimestampFromBytes(record[6:14]),
		Channel:            channel,
		DestinationAddress: binary.LittleEndian.Uint16(record[14:16]),
		SourceAddress:      binary.LittleEndian.Uint16(record[16:18]),
		ProtocolVersion:    record[18],
	}
	command := binary.LittleEndian.Uint16(record[20:22])
	payloadLength := int(binary.LittleEndian.Uint16(record[22:24]))
	if dataRecordBodyOffset+payloadLength > len(record) {
		return nil, ErrMalformed{What: fmt.Sprintf("data record payload of %d bytes exceeds record", payloadLength)}
	}
	payload := record[dataRecordBodyOffset : dataRecordBodyOffset+payloadLength]

	switch Kind(header.ProtocolVersion >> 4) {
	case KindPacket:
		if payloadLength%PacketFrameDataLength != 0 || payloadLength > MaxPacketFrameData {
			return nil, ErrMalformed{What: fmt.Sprintf("packet payload of %d bytes", payloadLength)}
		}
		p := &Packet{Header: header, Command: command, FrameCount: uint8(payloadLength / PacketFrameDataLength)}
		copy(p.FrameData[:], payload)
		return p, nil
	case KindDatagram:
		if payloadLength < datagramDataLength {
			return nil, ErrMalformed{What: fmt.Sprintf("datagram payload of %d bytes", payloadLength)}
		}
		return &Datagram{
			Header:  header,
			Command: command,
			Param16: int16(binary.LittleEndian.Uint16(payload[0:2])),
			Param32: int32(binary.LittleEndian.Uint32(payload[2:6])),
		}, nil
	case KindTelegram:
		t := &Telegram{Header: header, Command: uint8(command)}
		if t.FrameCount() > MaxTelegramFrameCount || payloadLength != t.FrameCount()*TelegramFrameDataLength {
			return nil, ErrMalformed{What: fmt.Sprintf("telegram payload of %d bytes for command 0x%02X", payloadLength, t.Command)}
		}
		copy(t.FrameData[:], payload)
		return t, nil
	}
	return nil, ErrUnsupportedProtocol{Version: header.ProtocolVersion}
}

// Record synthesizes the minimal data record of the entity the fingerprint stands for
func (fp Fingerprint) Record() []byte {
	payloadLength := 0
	switch fp.Kind {
	case KindDatagram:
		payloadLength = datagramDataLength
	case KindTelegram:
		payloadLength = TelegramFrameCount(uint8(fp.Command)) * TelegramFrameDataLength
	}
	buf := newRecord(RecordTypeData, time.UnixMilli(0), dataRecordBodyOffset-RecordHeaderLength+payloadLength)
	binary.LittleEndian.PutUint16(buf[14:16], fp.DestinationAddress)
	binary.LittleEndian.PutUint16(buf[16:18], fp.SourceAddress)
	buf[18] = fp.ProtocolVersion
	binary.LittleEndian.PutUint16(buf[20:22], fp.Command)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(payloadLength))
	if fp.Kind == KindDatagram {
		binary.LittleEndian.PutUint16(buf[26:28], uint16(fp.Param16))
	}
	return buf
}

// RecordLayer is one record of a recording file
type RecordLayer struct {
	layers.BaseLayer
	RecordHeader
	Body []byte
}

var RecordLayerType = gopacket.RegisterLayerType(RecordLayerNum,
	gopacket.LayerTypeMetadata{Name: "VBusRecord", Decoder: gopacket.DecodeFunc(decodeRecordLayer)})

// LayerType returns the type of the record layer in the layer catalog
func (r *RecordLayer) LayerType() gopacket.LayerType {
	return RecordLayerType
}

// CanDecode ...
func (r *RecordLayer) CanDecode() gopacket.LayerClass {
	return RecordLayerType
}

// NextLayerType chains to the next record when bytes are left
func (r *RecordLayer) NextLayerType() gopacket.LayerType {
	if len(r.Payload) > 0 {
		return gopacket.LayerType(RecordLayerNum)
	}
	return gopacket.LayerTypeZero
}

// SerializeTo prepends the record, recomputing its length fields
func (r *RecordLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(RecordHeaderLength + len(r.Body))
	if err != nil {
		return err
	}
	h := r.RecordHeader
	h.Length = uint16(len(bytes))
	h.Serialize(bytes)
	copy(bytes[RecordHeaderLength:], r.Body)
	return nil
}

// DecodeFromBytes decodes the record at the front of data
func (r *RecordLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	framing, length := ClassifyRecord(data)
	switch framing {
	case FramePartial:
		df.SetTruncated()
		return ErrMalformed{What: "truncated record"}
	case FrameMalformed:
		return ErrMalformed{What: "invalid record"}
	}
	r.RecordHeader = DecodeRecordHeader(data)
	r.Body = data[RecordHeaderLength:length]
	r.BaseLayer = layers.BaseLayer{
		Contents: data[:length],
		Payload:  data[length:],
	}
	return nil
}

func decodeRecordLayer(data []byte, p gopacket.PacketBuilder) error {
	record := &RecordLayer{}
	err := record.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(record)
	return p.NextDecoder(record.NextLayerType())
}
