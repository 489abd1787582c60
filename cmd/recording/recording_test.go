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

package recording

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"greenlab.dev/go-vbus/pkg/dataset"
	"greenlab.dev/go-vbus/pkg/layers"
	"greenlab.dev/go-vbus/pkg/report"
	"greenlab.dev/go-vbus/pkg/stream"
)

var base = time.UnixMilli(1700000000000)

func testPacket(channel uint8, command uint16, ts time.Time) *layers.Packet {
	return &layers.Packet{
		Header: layers.Header{
			Timestamp:          ts,
			Channel:            channel,
			DestinationAddress: 0x0010,
			SourceAddress:      0x7E11,
			ProtocolVersion:    layers.ProtocolVersionPacket,
		},
		Command: command,
	}
}

func writeRecording(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	w := stream.NewRecordingWriter(&buf)
	for i, ts := range []time.Time{base, base.Add(time.Minute)} {
		ds := dataset.New()
		ds.AddData(testPacket(0, 0x0100, ts))
		ds.AddData(testPacket(1, 0x0100+uint16(i), ts))
		if err := w.WriteDataSet(ds); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "test.vbus")
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func convert(t *testing.T, args ...string) []report.Entry {
	t.Helper()
	var out bytes.Buffer
	cmd := NewConvertCommand()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("convert: %v", err)
	}
	var entries []report.Entry
	if err := json.Unmarshal(out.Bytes(), &entries); err != nil {
		t.Fatalf("unmarshal %q: %v", out.String(), err)
	}
	return entries
}

func TestConvertSum(t *testing.T) {
	path := writeRecording(t)
	entries := convert(t, "--input", path, "--format", "json", "--sum")
	if len(entries) != 3 {
		t.Fatalf("expected 3 entities, got %d", len(entries))
	}
	if entries[0].ID != "00_0010_7E11_10_0100" || !entries[0].Timestamp.Equal(base.Add(time.Minute)) {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
}

func TestConvertFilter(t *testing.T) {
	path := writeRecording(t)
	entries := convert(t, "--input", path, "--format", "json", "--sum", "--channels", "1",
		"--to", base.Add(time.Second).UTC().Format(time.RFC3339))
	if len(entries) != 1 || entries[0].ID != "01_0010_7E11_10_0100" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestConvertOrder(t *testing.T) {
	path := writeRecording(t)
	entries := convert(t, "--input", path, "--format", "json", "--sum", "--order", "01_0010_7E11_10_0101")
	if len(entries) != 3 || entries[0].ID != "01_0010_7E11_10_0101" {
		t.Fatalf("unexpected order: %+v", entries)
	}
}

func TestFilterOptions(t *testing.T) {
	o := filterOptions{from: "2024-01-02T15:04:05Z", channels: []uint{3}}
	f, err := o.filter()
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if f.MinTimestamp.IsZero() || !f.MaxTimestamp.IsZero() || len(f.Channels) != 1 || f.Channels[0] != 3 {
		t.Fatalf("unexpected filter: %+v", f)
	}
	o.to = "yesterday"
	if _, err := o.filter(); !errors.As(err, &ErrWrongTime{}) {
		t.Fatalf("expected ErrWrongTime, got %v", err)
	}
}
