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

// Package store keeps the latest observation of every entity in a bbolt database.
// Each channel has its own bucket mapping the identity of an entity to its data record.
package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.etcd.io/bbolt"

	"greenlab.dev/go-vbus/pkg/dataset"
	"greenlab.dev/go-vbus/pkg/layers"
	"greenlab.dev/go-vbus/pkg/log"
)

const (
	BucketNamePrefix = "channel_"
)

type ErrBucketNotFound struct {
	Name string
}

func (e ErrBucketNotFound) Error() string {
	return fmt.Sprintf("Bucket not found: %s", e.Name)
}

type ErrDataNotFound struct {
	ID string
}

func (e ErrDataNotFound) Error() string {
	return fmt.Sprintf("Data not found: %s", e.ID)
}

type State struct {
	context.Context
	DB *bbolt.DB
}

func NewState(ctx context.Context, path string) (*State, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	return &State{
		Context: ctx,
		DB:      db,
	}, nil
}

// Close ...
func (s *State) Close() {
	s.DB.Close()
}

func bucketName(channel uint8) string {
	return fmt.Sprintf("%s%02X", BucketNamePrefix, channel)
}

func parseBucketName(name []byte) (uint8, bool) {
	suffix, ok := strings.CutPrefix(string(name), BucketNamePrefix)
	if !ok {
		return 0, false
	}
	channel, err := strconv.ParseUint(suffix, 16, 8)
	if err != nil {
		return 0, false
	}
	return uint8(channel), true
}

// PutDataSet stores every entity of ds in one transaction
func (s *State) PutDataSet(ds *dataset.DataSet) error {
	log.Debug("Storing data set of %d entities", ds.Len())
	return s.DB.Update(func(tx *bbolt.Tx) error {
		for _, d := range ds.Data() {
			if err := putData(tx, d); err != nil {
				return err
			}
		}
		return nil
	})
}

// PutData stores one entity, replacing the previous observation
func (s *State) PutData(d layers.Data) error {
	return s.DB.Update(func(tx *bbolt.Tx) error {
		return putData(tx, d)
	})
}

func putData(tx *bbolt.Tx, d layers.Data) error {
	b, err := tx.CreateBucketIfNotExists([]byte(bucketName(d.GetHeader().Channel)))
	if err != nil {
		return err
	}
	key := []byte(layers.FingerprintOf(d).String())
	if stored := b.Get(key); stored != nil && len(stored) >= layers.RecordHeaderLength {
		if layers.DecodeRecordHeader(stored).Timestamp.After(d.GetHeader().Timestamp) {
			return nil
		}
	}
	return b.Put(key, layers.EncodeDataRecord(d))
}

// identityKey reduces an ID string to the key its entity is stored under.
// Datagram IDs carry a parameter that only bus offers are identified by.
func identityKey(id string) string {
	parts := strings.Split(id, "_")
	if len(parts) == 6 && parts[4] != fmt.Sprintf("%04X", layers.DatagramCommandBusOffer) {
		return strings.Join(parts[:5], "_")
	}
	return id
}

// GetData returns the latest observation of the entity with the given ID string
func (s *State) GetData(id string) (layers.Data, error) {
	log.Debug("Getting data: %s", id)
	prefix, _, found := strings.Cut(id, "_")
	channel, err := strconv.ParseUint(prefix, 16, 8)
	if !found || err != nil {
		return nil, ErrDataNotFound{ID: id}
	}
	var d layers.Data
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		name := bucketName(uint8(channel))
		b := tx.Bucket([]byte(name))
		if b == nil {
			return ErrBucketNotFound{Name: name}
		}
		record := b.Get([]byte(identityKey(strings.ToUpper(id))))
		if record == nil {
			return ErrDataNotFound{ID: id}
		}
		d, err = layers.DecodeDataRecord(uint8(channel), record)
		return err
	}); err != nil {
		return nil, err
	}
	return d, nil
}

// GetDataSet returns all stored entities sorted by identity
func (s *State) GetDataSet() (*dataset.DataSet, error) {
	log.Debug("Getting all data")
	ds := dataset.New()
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bbolt.Bucket) error {
			channel, ok := parseBucketName(name)
			if !ok {
				return nil
			}
			return b.ForEach(func(k, v []byte) error {
				d, err := layers.DecodeDataRecord(channel, v)
				if err != nil {
					log.Error("Unable to decode stored record %s: %s", k, err)
					return err
				}
				ds.AddData(d)
				return nil
			})
		})
	}); err != nil {
		return nil, err
	}
	ds.Sort()
	return ds, nil
}

// Channels returns the channels with stored entities in ascending order
func (s *State) Channels() ([]uint8, error) {
	var channels []uint8
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			if channel, ok := parseBucketName(name); ok {
				channels = append(channels, channel)
			}
			return nil
		})
	}); err != nil {
		return nil, err
	}
	return channels, nil
}
