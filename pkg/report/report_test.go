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

package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"sigs.k8s.io/yaml"

	"greenlab.dev/go-vbus/pkg/dataset"
	"greenlab.dev/go-vbus/pkg/layers"
)

var base = time.UnixMilli(1700000000123).UTC()

func testDataSet() *dataset.DataSet {
	ds := dataset.New()
	p := &layers.Packet{
		Header: layers.Header{
			Timestamp:          base,
			Channel:            1,
			DestinationAddress: 0x0010,
			SourceAddress:      0x7E11,
			ProtocolVersion:    layers.ProtocolVersionPacket,
		},
		Command:    0x0100,
		FrameCount: 1,
	}
	copy(p.FrameData[:], []byte{0xDE, 0xAD, 0xBE, 0xEF})
	ds.AddData(p)
	ds.AddData(&layers.Datagram{
		Header: layers.Header{
			Timestamp:          base,
			DestinationAddress: 0x0000,
			SourceAddress:      0x7E11,
			ProtocolVersion:    layers.ProtocolVersionDatagram,
		},
		Command: 0x0900,
		Param16: 3,
		Param32: -1,
	})
	return ds
}

func TestEntries(t *testing.T) {
	entries := Entries(testDataSet())
	if len(entries) != 2 {
		t.Fatalf("entries: got %d", len(entries))
	}
	if e := entries[0]; e.ID != "01_0010_7E11_10_0100" || e.Payload != "deadbeef" || e.FrameCount != 1 || e.Kind != "Packet" {
		t.Fatalf("packet entry: %+v", e)
	}
	if e := entries[1]; e.Param16 != 3 || e.Param32 != -1 || e.Payload != "" {
		t.Fatalf("datagram entry: %+v", e)
	}
}

func TestWriteFormats(t *testing.T) {
	ds := testDataSet()

	var out bytes.Buffer
	if err := WriteDataSet(&out, FormatJSON, ds); err != nil {
		t.Fatalf("json: %v", err)
	}
	var fromJSON []Entry
	if err := json.Unmarshal(out.Bytes(), &fromJSON); err != nil || len(fromJSON) != 2 {
		t.Fatalf("json decode: %v", err)
	}
	if !fromJSON[0].Timestamp.Equal(base) {
		t.Fatalf("json timestamp: %v", fromJSON[0].Timestamp)
	}

	out.Reset()
	if err := WriteDataSet(&out, FormatYAML, ds); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	var fromYAML []Entry
	if err := yaml.Unmarshal(out.Bytes(), &fromYAML); err != nil || fromYAML[1].ID != "00_0000_7E11_20_0900_0003" {
		t.Fatalf("yaml decode: %v, %+v", err, fromYAML)
	}

	out.Reset()
	if err := WriteDataSet(&out, FormatCBOR, ds); err != nil {
		t.Fatalf("cbor: %v", err)
	}
	fromCBOR, err := ReadCBOR(&out)
	if err != nil || len(fromCBOR) != 2 {
		t.Fatalf("cbor decode: %v", err)
	}
	if fromCBOR[0].ID != "01_0010_7E11_10_0100" || !fromCBOR[0].Timestamp.Equal(base) || fromCBOR[1].Param32 != -1 {
		t.Fatalf("cbor entries: %+v", fromCBOR)
	}

	out.Reset()
	if err := WriteDataSet(&out, FormatText, ds); err != nil {
		t.Fatalf("text: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "deadbeef") || !strings.Contains(lines[1], "param32=-1") {
		t.Fatalf("text: %q", out.String())
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("CBOR"); err != nil || f != FormatCBOR {
		t.Fatalf("got %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("xml is not a report format")
	}
}
