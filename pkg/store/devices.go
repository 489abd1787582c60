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
	"sort"

	"go.etcd.io/bbolt"
	"sigs.k8s.io/yaml"

	"greenlab.dev/go-vbus/pkg/discover"
	"greenlab.dev/go-vbus/pkg/log"
)

const (
	DeviceBucketName = "discover"
)

// PutDevice stores the description of a discovered adapter, replacing
// the previous one with the same key
func (s *State) PutDevice(d *discover.Device) error {
	log.Debug("Setting device description: device: %s", d.Key())
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(DeviceBucketName))
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(d)
		if err != nil {
			return err
		}
		return b.Put([]byte(d.Key()), data)
	})
}

// Devices returns every stored adapter ordered by key
func (s *State) Devices() ([]*discover.Device, error) {
	log.Debug("Getting all device descriptions")
	var devices []*discover.Device
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(DeviceBucketName))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			d := &discover.Device{}
			if err := yaml.Unmarshal(v, d); err != nil {
				log.Error("Error while unmarshalling device %s: %s", k, err)
				return err
			}
			devices = append(devices, d)
			return nil
		})
	}); err != nil {
		return nil, err
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Key() < devices[j].Key()
	})
	return devices, nil
}
