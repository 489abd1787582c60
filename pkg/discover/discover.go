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

// Package discover finds VBus-over-TCP adapters on the local network.
// A query datagram is broadcast to DiscoveryPort and every adapter that
// answers is asked for its device information over HTTP.
package discover

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/imroc/req"

	"greenlab.dev/go-vbus/pkg/log"
)

const (
	DiscoveryPort = 7053
	VBusPort      = 7053
	WebPort       = 80

	QueryString = "---RESOL-BROADCAST-QUERY---"
	ReplyString = "---RESOL-BROADCAST-REPLY---"

	DeviceInformationPath = "/cgi-bin/get_resol_device_information"

	DefaultBroadcastAddress = "255.255.255.255"
	DefaultTimeout          = 2 * time.Second
)

// ErrGetAddr is returned when the sender of a reply is not a UDP peer
type ErrGetAddr struct {
	Addr net.Addr
}

func (e ErrGetAddr) Error() string {
	return fmt.Sprintf("Error while getting device address from %v", e.Addr)
}

type Discoverer struct {
	context.Context
	*net.UDPAddr
	Timeout time.Duration
	WebPort uint16
}

// NewDiscoverer prepares a query to address. Address may be a broadcast
// address or a single host.
func NewDiscoverer(ctx context.Context, address string) (*Discoverer, error) {
	log.Debug("Initializing discoverer with address: %s port: %d", address, DiscoveryPort)
	uaddr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(address, fmt.Sprint(DiscoveryPort)))
	if err != nil {
		return nil, err
	}
	return &Discoverer{
		Context: ctx,
		UDPAddr: uaddr,
		Timeout: DefaultTimeout,
		WebPort: WebPort,
	}, nil
}

// Discover broadcasts the query, collects the replies until the timeout
// elapses and fetches the information of every replying device. Devices
// whose information can not be fetched are returned with their address only.
func (s *Discoverer) Discover() ([]*Device, error) {
	addresses, err := s.query()
	if err != nil {
		return nil, err
	}
	devices := make([]*Device, 0, len(addresses))
	for _, ip := range addresses {
		d, err := FetchDeviceInformation(ip, s.WebPort)
		if err != nil {
			log.Warning("Unable to fetch information of %s: %s", ip, err)
			d = &Device{Address: ip, WebPort: s.WebPort, Timestamp: time.Now().UnixMilli()}
		}
		devices = append(devices, d)
	}
	return devices, nil
}

func (s *Discoverer) query() ([]net.IP, error) {
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if _, err := conn.WriteTo([]byte(QueryString), s.UDPAddr); err != nil {
		return nil, err
	}
	deadline := time.Now().Add(s.Timeout)
	if d, ok := s.Context.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var addresses []net.IP
	buffer := make([]byte, 2048)
	for s.Context.Err() == nil {
		length, addr, err := conn.ReadFrom(buffer)
		if errors.Is(err, os.ErrDeadlineExceeded) {
			break
		}
		if err != nil {
			return nil, err
		}
		if string(buffer[:length]) != ReplyString {
			log.Debug("Ignoring %d bytes from %s", length, addr)
			continue
		}
		ip, err := replyAddress(addr)
		if err != nil {
			log.Warning("%s", err)
			continue
		}
		if !seen[ip.String()] {
			seen[ip.String()] = true
			addresses = append(addresses, ip)
		}
	}
	return addresses, nil
}

// replyAddress returns the IP address of the device that sent a reply
func replyAddress(addr net.Addr) (net.IP, error) {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return nil, ErrGetAddr{Addr: addr}
	}
	return udpAddr.IP, nil
}

// FetchDeviceInformation asks the web server of the device at ip for its
// vendor, product and serial
func FetchDeviceInformation(ip net.IP, port uint16) (*Device, error) {
	url := fmt.Sprintf("http://%s%s", net.JoinHostPort(ip.String(), fmt.Sprint(port)), DeviceInformationPath)
	r, err := req.Get(url)
	if err != nil {
		return nil, err
	}
	if r.Response().StatusCode != 200 {
		return nil, errors.New(r.Response().Status)
	}
	body, err := r.ToBytes()
	if err != nil {
		return nil, err
	}
	d := &Device{Address: ip, WebPort: port, Timestamp: time.Now().UnixMilli()}
	DecodeDeviceInformation(body, d)
	return d, nil
}
