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

// Package report renders data sets as text, JSON, YAML or CBOR.
package report

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fxamacker/cbor/v2"
	"sigs.k8s.io/yaml"

	"greenlab.dev/go-vbus/pkg/dataset"
	"greenlab.dev/go-vbus/pkg/layers"
)

// Entry is the serializable view of one entity
type Entry struct {
	ID                 string    `json:"id"`
	Kind               string    `json:"kind"`
	Timestamp          time.Time `json:"timestamp"`
	Channel            uint8     `json:"channel"`
	DestinationAddress uint16    `json:"destinationAddress"`
	SourceAddress      uint16    `json:"sourceAddress"`
	ProtocolVersion    uint8     `json:"protocolVersion"`
	Command            uint16    `json:"command"`
	FrameCount         int       `json:"frameCount,omitempty"`
	Param16            int16     `json:"param16,omitempty"`
	Param32            int32     `json:"param32,omitempty"`
	Payload            string    `json:"payload,omitempty"`
}

func NewEntry(d layers.Data) Entry {
	h := d.GetHeader()
	e := Entry{
		ID:                 d.IDString(),
		Kind:               d.Kind().String(),
		Timestamp:          h.Timestamp,
		Channel:            h.Channel,
		DestinationAddress: h.DestinationAddress,
		SourceAddress:      h.SourceAddress,
		ProtocolVersion:    h.ProtocolVersion,
	}
	switch d := d.(type) {
	case *layers.Packet:
		e.Command = d.Command
		e.FrameCount = int(d.FrameCount)
		e.Payload = hex.EncodeToString(d.ValidFrameData())
	case *layers.Datagram:
		e.Command = d.Command
		e.Param16 = d.Param16
		e.Param32 = d.Param32
	case *layers.Telegram:
		e.Command = uint16(d.Command)
		e.FrameCount = d.FrameCount()
		e.Payload = hex.EncodeToString(d.ValidFrameData())
	}
	return e
}

// Entries converts the members of ds in their current order
func Entries(ds *dataset.DataSet) []Entry {
	entries := make([]Entry, 0, ds.Len())
	for _, d := range ds.Data() {
		entries = append(entries, NewEntry(d))
	}
	return entries
}

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCBOR Format = "cbor"
)

var Formats = []Format{FormatText, FormatJSON, FormatYAML, FormatCBOR}

type ErrWrongFormat struct {
	Format string
}

func (e ErrWrongFormat) Error() string {
	return fmt.Sprintf("Wrong report format %q. Must be one of: text, json, yaml, cbor.", e.Format)
}

func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", ErrWrongFormat{Format: s}
}

var cborMode = func() cbor.EncMode {
	mode, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// Write renders entries in the given format
func Write(w io.Writer, format Format, entries []Entry) error {
	switch format {
	case FormatText:
		return writeText(w, entries)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case FormatYAML:
		data, err := yaml.Marshal(entries)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case FormatCBOR:
		return cborMode.NewEncoder(w).Encode(entries)
	}
	return ErrWrongFormat{Format: string(format)}
}

// WriteDataSet renders the members of ds
func WriteDataSet(w io.Writer, format Format, ds *dataset.DataSet) error {
	return Write(w, format, Entries(ds))
}

// ReadCBOR decodes entries written with FormatCBOR
func ReadCBOR(r io.Reader) ([]Entry, error) {
	var entries []Entry
	if err := cbor.NewDecoder(r).Decode(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func writeText(w io.Writer, entries []Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		var detail string
		switch e.Kind {
		case layers.KindDatagram.String():
			detail = fmt.Sprintf("param16=%d param32=%d", e.Param16, e.Param32)
		default:
			detail = fmt.Sprintf("frames=%d %s", e.FrameCount, e.Payload)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Timestamp.Format(time.RFC3339Nano), e.ID, e.Kind, detail)
	}
	return tw.Flush()
}
