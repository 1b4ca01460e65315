/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package jobs

import (
	"errors"
	"fmt"
	"hash/crc32"
	"sort"
	"sync"
)

// ErrNoNodes is returned when a key is looked up on an empty ring.
var ErrNoNodes = errors.New("no nodes available")

// Distributor maps keys onto nodes with consistent hashing. It routes
// studios onto instances and lock keys onto worker lanes, so adding or
// removing a node moves as few keys as possible.
type Distributor struct {
	mu sync.RWMutex

	// ring contains sorted hash values for virtual nodes
	ring []uint32

	// owners maps hash values to node IDs
	owners map[uint32]string

	virtualNodes int
}

// NewDistributor creates a new consistent hash distributor.
func NewDistributor(virtualNodes int) *Distributor {
	if virtualNodes <= 0 {
		virtualNodes = 500
	}

	return &Distributor{
		ring:         make([]uint32, 0),
		owners:       make(map[uint32]string),
		virtualNodes: virtualNodes,
	}
}

// AddNode adds a node to the ring. Adding a node twice is a no-op.
func (d *Distributor) AddNode(nodeID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := 0; i < d.virtualNodes; i++ {
		hash := hashKey(fmt.Sprintf("%s-%d", nodeID, i))
		if _, exists := d.owners[hash]; exists {
			// first owner keeps a colliding point
			continue
		}
		d.ring = append(d.ring, hash)
		d.owners[hash] = nodeID
	}

	sort.Slice(d.ring, func(i, j int) bool {
		return d.ring[i] < d.ring[j]
	})
}

// RemoveNode removes a node and its virtual points from the ring.
func (d *Distributor) RemoveNode(nodeID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	kept := make([]uint32, 0, len(d.ring))
	for _, hash := range d.ring {
		if d.owners[hash] != nodeID {
			kept = append(kept, hash)
		} else {
			delete(d.owners, hash)
		}
	}
	d.ring = kept
}

// Owner returns the node responsible for key.
func (d *Distributor) Owner(key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if len(d.ring) == 0 {
		return "", ErrNoNodes
	}

	hash := hashKey(key)
	idx := sort.Search(len(d.ring), func(i int) bool {
		return d.ring[i] >= hash
	})
	if idx >= len(d.ring) {
		idx = 0
	}

	return d.owners[d.ring[idx]], nil
}

// Assignments returns key -> node for every key.
func (d *Distributor) Assignments(keys []string) map[string]string {
	assignments := make(map[string]string, len(keys))
	for _, key := range keys {
		if node, err := d.Owner(key); err == nil {
			assignments[key] = node
		}
	}
	return assignments
}

// KeysFor returns the subset of keys owned by nodeID.
func (d *Distributor) KeysFor(nodeID string, keys []string) []string {
	owned := make([]string, 0)
	for _, key := range keys {
		if node, err := d.Owner(key); err == nil && node == nodeID {
			owned = append(owned, key)
		}
	}
	return owned
}

// Nodes returns all registered nodes, sorted.
func (d *Distributor) Nodes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	seen := make(map[string]bool)
	for _, node := range d.owners {
		seen[node] = true
	}
	result := make([]string, 0, len(seen))
	for node := range seen {
		result = append(result, node)
	}
	sort.Strings(result)
	return result
}

// Churn reports the fraction of keys that would move if nodeID were added
// ("add") or removed ("remove").
func (d *Distributor) Churn(keys []string, operation, nodeID string) float64 {
	if len(keys) == 0 {
		return 0
	}
	before := d.Assignments(keys)

	d.mu.RLock()
	trial := NewDistributor(d.virtualNodes)
	trial.ring = append([]uint32{}, d.ring...)
	for k, v := range d.owners {
		trial.owners[k] = v
	}
	d.mu.RUnlock()

	switch operation {
	case "add":
		trial.AddNode(nodeID)
	case "remove":
		trial.RemoveNode(nodeID)
	default:
		return 0
	}

	after := trial.Assignments(keys)
	changes := 0
	for key, node := range before {
		if after[key] != node {
			changes++
		}
	}
	return float64(changes) / float64(len(keys))
}

func hashKey(key string) uint32 {
	return crc32.ChecksumIEEE([]byte(key))
}
