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

// Package dataset aggregates decoded VBus entities into snapshots keyed by identity.
package dataset

import (
	"slices"
	"time"

	"greenlab.dev/go-vbus/pkg/layers"
)

// DataSet is an insertion-ordered collection of entities in which no two
// members are identity-equal, plus the latest timestamp seen.
type DataSet struct {
	Timestamp time.Time

	data  []layers.Data
	index map[layers.Fingerprint]int
}

// New returns an empty data set
func New() *DataSet {
	return &DataSet{index: make(map[layers.Fingerprint]int)}
}

// Len returns the number of entities
func (ds *DataSet) Len() int {
	return len(ds.data)
}

// Get returns the i-th entity
func (ds *DataSet) Get(i int) layers.Data {
	return ds.data[i]
}

// Data returns the entities in their current order. The slice must not be modified.
func (ds *DataSet) Data() []layers.Data {
	return ds.data
}

// AddData inserts d or replaces the identity-equal member in place.
// The data set takes ownership of d.
func (ds *DataSet) AddData(d layers.Data) {
	if ds.index == nil {
		ds.reindex()
	}
	fp := layers.FingerprintOf(d)
	if i, ok := ds.index[fp]; ok {
		ds.data[i] = d
	} else {
		ds.index[fp] = len(ds.data)
		ds.data = append(ds.data, d)
	}
	if ts := d.GetHeader().Timestamp; ts.After(ds.Timestamp) {
		ds.Timestamp = ts
	}
}

// AddDataSet folds copies of the entities of other into ds
func (ds *DataSet) AddDataSet(other *DataSet) {
	for _, d := range other.data {
		ds.AddData(d.Clone())
	}
	if other.Timestamp.After(ds.Timestamp) {
		ds.Timestamp = other.Timestamp
	}
}

// FindByID returns the member identity-equal to d
func (ds *DataSet) FindByID(d layers.Data) (layers.Data, bool) {
	if ds.index == nil {
		ds.reindex()
	}
	i, ok := ds.index[layers.FingerprintOf(d)]
	if !ok {
		return nil, false
	}
	return ds.data[i], true
}

// FindByIDString returns the member whose IDString is id
func (ds *DataSet) FindByIDString(id string) (layers.Data, bool) {
	for _, d := range ds.data {
		if d.IDString() == id {
			return d, true
		}
	}
	return nil, false
}

// Retain keeps the entities for which keep returns true, preserving their order
func (ds *DataSet) Retain(keep func(layers.Data) bool) {
	ds.data = slices.DeleteFunc(ds.data, func(d layers.Data) bool {
		return !keep(d)
	})
	ds.reindex()
}

// RemoveDataOlderThan drops every entity received before ts
func (ds *DataSet) RemoveDataOlderThan(ts time.Time) {
	ds.Retain(func(d layers.Data) bool {
		return !d.GetHeader().Timestamp.Before(ts)
	})
}

// ClearPacketsOlderThan tombstones every packet received before ts: the
// packet keeps its identity and position but carries no frames.
func (ds *DataSet) ClearPacketsOlderThan(ts time.Time) {
	for _, d := range ds.data {
		if p, ok := d.(*layers.Packet); ok && p.Timestamp.Before(ts) {
			p.FrameCount = 0
		}
	}
}

// ClearAllPackets tombstones every packet
func (ds *DataSet) ClearAllPackets() {
	for _, d := range ds.data {
		if p, ok := d.(*layers.Packet); ok {
			p.FrameCount = 0
		}
	}
}

// Sort orders the entities by identity
func (ds *DataSet) Sort() {
	ds.SortBy(layers.Compare)
}

// SortBy stable-sorts the entities with cmp
func (ds *DataSet) SortBy(cmp func(a, b layers.Data) int) {
	slices.SortStableFunc(ds.data, cmp)
	ds.reindex()
}

// SortByIDSlice places the packets listed in ids first, in list order,
// followed by the remaining packets and then all other entities, each
// group ordered by identity.
func (ds *DataSet) SortByIDSlice(ids []layers.PacketID) {
	rank := make(map[layers.PacketID]int, len(ids))
	for i, id := range ids {
		if _, ok := rank[id]; !ok {
			rank[id] = i
		}
	}
	group := func(d layers.Data) (int, int) {
		p, ok := d.(*layers.Packet)
		if !ok {
			return 2, 0
		}
		if r, ok := rank[p.PacketID()]; ok {
			return 0, r
		}
		return 1, 0
	}
	ds.SortBy(func(a, b layers.Data) int {
		ga, ra := group(a)
		gb, rb := group(b)
		if ga != gb {
			return ga - gb
		}
		if ga == 0 {
			return ra - rb
		}
		return layers.Compare(a, b)
	})
}

// Clone returns a deep copy of the data set
func (ds *DataSet) Clone() *DataSet {
	clone := &DataSet{
		Timestamp: ds.Timestamp,
		data:      make([]layers.Data, len(ds.data)),
	}
	for i, d := range ds.data {
		clone.data[i] = d.Clone()
	}
	clone.reindex()
	return clone
}

// Channels returns the distinct channels of the members in ascending order
func (ds *DataSet) Channels() []uint8 {
	var channels []uint8
	for _, d := range ds.data {
		channels = append(channels, d.GetHeader().Channel)
	}
	slices.Sort(channels)
	return slices.Compact(channels)
}

func (ds *DataSet) reindex() {
	ds.index = make(map[layers.Fingerprint]int, len(ds.data))
	for i, d := range ds.data {
		ds.index[layers.FingerprintOf(d)] = i
	}
}
