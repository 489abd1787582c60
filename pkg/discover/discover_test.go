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

package discover

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

const deviceInformation = `vendor = "RESOL"
product = "KM2"
serial = "001E66000001"
version = "2.2.0"
build = "201911281024"
name = "KM2-Boiler"
features = "vbus,dl2"
`

func TestDecodeDeviceInformation(t *testing.T) {
	d := &Device{Address: net.IPv4(192, 168, 1, 10)}
	DecodeDeviceInformation([]byte(deviceInformation), d)
	if d.Vendor != "RESOL" || d.Product != "KM2" || d.Serial != "001E66000001" || d.Name != "KM2-Boiler" {
		t.Fatalf("unexpected device: %+v", d)
	}
	if d.Key() != "001E66000001" || d.VBusAddress() != "192.168.1.10:7053" {
		t.Fatalf("key %s, address %s", d.Key(), d.VBusAddress())
	}
}

// respond answers every query on conn like an adapter would
func respond(conn *net.UDPConn) {
	buf := make([]byte, 64)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}
		if string(buf[:n]) == QueryString {
			conn.WriteTo([]byte("noise"), addr)
			conn.WriteTo([]byte(ReplyString), addr)
			conn.WriteTo([]byte(ReplyString), addr)
		}
	}
}

func TestDiscover(t *testing.T) {
	web := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DeviceInformationPath {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(deviceInformation))
	}))
	defer web.Close()
	_, port, _ := net.SplitHostPort(web.Listener.Addr().String())
	webPort, _ := strconv.Atoi(port)

	adapter, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer adapter.Close()
	go respond(adapter)

	s := &Discoverer{
		Context: context.Background(),
		UDPAddr: adapter.LocalAddr().(*net.UDPAddr),
		Timeout: 300 * time.Millisecond,
		WebPort: uint16(webPort),
	}
	devices, err := s.Discover()
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("expected one device, got %d", len(devices))
	}
	d := devices[0]
	if !d.Address.Equal(net.IPv4(127, 0, 0, 1)) || d.Product != "KM2" || d.Timestamp == 0 {
		t.Fatalf("unexpected device: %+v", d)
	}
}

func TestFetchDeviceInformationNotFound(t *testing.T) {
	web := httptest.NewServer(http.NotFoundHandler())
	defer web.Close()
	_, port, _ := net.SplitHostPort(web.Listener.Addr().String())
	webPort, _ := strconv.Atoi(port)
	if _, err := FetchDeviceInformation(net.IPv4(127, 0, 0, 1), uint16(webPort)); err == nil {
		t.Fatalf("expected an error for a missing page")
	}
}
