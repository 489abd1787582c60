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

package store

import (
	"net"
	"testing"

	"greenlab.dev/go-vbus/pkg/discover"
)

func TestDevices(t *testing.T) {
	s := newTestState(t)
	devices, err := s.Devices()
	if err != nil || len(devices) != 0 {
		t.Fatalf("empty state: %v, %v", devices, err)
	}

	for _, d := range []*discover.Device{
		{Address: net.IPv4(192, 168, 1, 20), Serial: "B", Product: "DL2"},
		{Address: net.IPv4(192, 168, 1, 10), Serial: "A", Product: "KM1"},
		{Address: net.IPv4(192, 168, 1, 21), Serial: "B", Product: "DL2"},
	} {
		if err := s.PutDevice(d); err != nil {
			t.Fatalf("put device: %v", err)
		}
	}
	devices, err = s.Devices()
	if err != nil {
		t.Fatalf("devices: %v", err)
	}
	if len(devices) != 2 || devices[0].Serial != "A" || !devices[1].Address.Equal(net.IPv4(192, 168, 1, 21)) {
		t.Fatalf("unexpected devices: %v", devices)
	}

	channels, err := s.Channels()
	if err != nil || len(channels) != 0 {
		t.Fatalf("the device bucket is not a channel: %v, %v", channels, err)
	}
}
