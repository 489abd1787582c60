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
	"fmt"
	"net"
	"regexp"

	"sigs.k8s.io/yaml"

	"greenlab.dev/go-vbus/pkg/log"
)

// Device describes a VBus-over-TCP adapter answering the discovery query
type Device struct {
	Address   net.IP `json:"address"`
	WebPort   uint16 `json:"webPort,omitempty"`
	Vendor    string `json:"vendor,omitempty"`
	Product   string `json:"product,omitempty"`
	Serial    string `json:"serial,omitempty"`
	Version   string `json:"version,omitempty"`
	Build     string `json:"build,omitempty"`
	Name      string `json:"name,omitempty"`
	Features  string `json:"features,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

func (d *Device) String() string {
	result, err := yaml.Marshal(d)
	if err != nil {
		log.Info("Error occured while marshaling device description, %s", err)
		return ""
	}
	return fmt.Sprintf("---\n%s", string(result))
}

// Key identifies the device in the state database: its serial number,
// or its address when the serial is unknown
func (d *Device) Key() string {
	if d.Serial != "" {
		return d.Serial
	}
	return d.Address.String()
}

// VBusAddress is the TCP address live data is served on
func (d *Device) VBusAddress() string {
	return net.JoinHostPort(d.Address.String(), fmt.Sprint(VBusPort))
}

var informationLine = regexp.MustCompile(`(\w+)\s*=\s*"([^"\r\n]*)"`)

// DecodeDeviceInformation fills d from the key="value" lines served at
// DeviceInformationPath. Unknown keys are ignored.
func DecodeDeviceInformation(body []byte, d *Device) {
	for _, m := range informationLine.FindAllSubmatch(body, -1) {
		value := string(m[2])
		switch string(m[1]) {
		case "vendor":
			d.Vendor = value
		case "product":
			d.Product = value
		case "serial":
			d.Serial = value
		case "version":
			d.Version = value
		case "build":
			d.Build = value
		case "name":
			d.Name = value
		case "features":
			d.Features = value
		}
	}
}
