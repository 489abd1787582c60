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

package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"greenlab.dev/go-vbus/pkg/config"
	"greenlab.dev/go-vbus/pkg/dataset"
	"greenlab.dev/go-vbus/pkg/layers"
	"greenlab.dev/go-vbus/pkg/report"
)

func testDataSet() *dataset.DataSet {
	ds := dataset.New()
	ds.AddData(&layers.Packet{
		Header: layers.Header{
			Timestamp:          time.UnixMilli(1700000000000),
			DestinationAddress: 0x0010,
			SourceAddress:      0x7E11,
			ProtocolVersion:    layers.ProtocolVersionPacket,
		},
		Command:    0x0100,
		FrameCount: 1,
	})
	return ds
}

func TestNatsMessage(t *testing.T) {
	data, err := natsMessage(testDataSet())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var entries []report.Entry
	if err := json.Unmarshal(data, &entries); err != nil || len(entries) != 1 {
		t.Fatalf("unmarshal: %v", err)
	}
	if entries[0].ID != "00_0010_7E11_10_0100" {
		t.Fatalf("id: %s", entries[0].ID)
	}
}

func TestRedisFields(t *testing.T) {
	e := report.Entries(testDataSet())[0]
	if key := redisKey("vbus:", e); key != "vbus:00_0010_7E11_10_0100" {
		t.Fatalf("key: %s", key)
	}
	fields := redisFields(e)
	if fields["frames"] != 1 || fields["payload"] != "00000000" || fields["ts"] != int64(1700000000000) {
		t.Fatalf("fields: %v", fields)
	}
	if _, ok := fields["param32"]; ok {
		t.Fatalf("packets carry no params")
	}
}

type recordingPublisher struct {
	published int
	closed    bool
	err       error
}

func (p *recordingPublisher) Publish(context.Context, *dataset.DataSet) error {
	p.published++
	return p.err
}

func (p *recordingPublisher) Close() {
	p.closed = true
}

func TestMulti(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("down")}
	ok := &recordingPublisher{}
	m := Multi{failing, ok}
	if err := m.Publish(context.Background(), testDataSet()); err == nil {
		t.Fatalf("expected the error of the failing publisher")
	}
	if ok.published != 1 {
		t.Fatalf("a failing publisher must not stop the others")
	}
	m.Close()
	if !failing.closed || !ok.closed {
		t.Fatalf("close must reach every publisher")
	}
}

func TestFromConfigDisabled(t *testing.T) {
	m, err := FromConfig(context.Background(), config.NewDefaultConfig())
	if err != nil || len(m) != 0 {
		t.Fatalf("expected no publishers, got %d, %v", len(m), err)
	}
	if err := m.Publish(context.Background(), testDataSet()); err != nil {
		t.Fatalf("publish to nothing: %v", err)
	}
}
