// Package registry records which synchronization transmitter is collocated
// with each receiver of a network, and resolves the two channels of a
// base/receiver pair.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrUnknownReceiver is returned when a receiver has no registered station.
	ErrUnknownReceiver = errors.New("registry: unknown receiver")

	// ErrSameReceiver is returned when a pair uses the base as the receiver.
	ErrSameReceiver = errors.New("registry: base and receiver are the same")

	// ErrSharedTransmitter is returned when two receivers share a sync transmitter.
	ErrSharedTransmitter = errors.New("registry: sync transmitter already assigned")
)

// Station is a receiver and the sync transmitter placed next to it.
type Station struct {
	Receiver        string `yaml:"receiver" json:"receiver"`
	SyncTransmitter string `yaml:"sync_transmitter" json:"sync_transmitter"`
}

// Channels names the two sync transmitters used to synchronize a receiver
// against the base: the base's own tag and the receiver's own tag.
type Channels struct {
	Base     string
	Receiver string
}

// Network is a thread-safe set of stations keyed by receiver id.
type Network struct {
	mu       sync.RWMutex
	stations map[string]Station
	owners   map[string]string // transmitter -> receiver
}

// NewNetwork creates a network from stations.
func NewNetwork(stations ...Station) (*Network, error) {
	n := &Network{
		stations: make(map[string]Station),
		owners:   make(map[string]string),
	}
	for _, s := range stations {
		if err := n.Register(s); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// Register adds or replaces a station.
func (n *Network) Register(s Station) error {
	if s.Receiver == "" || s.SyncTransmitter == "" {
		return fmt.Errorf("registry: station needs receiver and sync transmitter, got %+v", s)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if owner, ok := n.owners[s.SyncTransmitter]; ok && owner != s.Receiver {
		return fmt.Errorf("%w: %s belongs to %s", ErrSharedTransmitter, s.SyncTransmitter, owner)
	}
	if old, ok := n.stations[s.Receiver]; ok {
		delete(n.owners, old.SyncTransmitter)
	}
	n.stations[s.Receiver] = s
	n.owners[s.SyncTransmitter] = s.Receiver
	return nil
}

// Get retrieves a station by receiver id.
func (n *Network) Get(receiver string) (Station, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	s, ok := n.stations[receiver]
	return s, ok
}

// Has checks if a receiver is registered.
func (n *Network) Has(receiver string) bool {
	_, ok := n.Get(receiver)
	return ok
}

// Delete removes a station.
func (n *Network) Delete(receiver string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if s, ok := n.stations[receiver]; ok {
		delete(n.owners, s.SyncTransmitter)
		delete(n.stations, receiver)
	}
}

// Receivers returns all receiver ids in sorted order.
func (n *Network) Receivers() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	keys := make([]string, 0, len(n.stations))
	for key := range n.stations {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// IsSyncTransmitter reports whether a transmitter is any station's sync tag.
func (n *Network) IsSyncTransmitter(transmitter string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.owners[transmitter]
	return ok
}

// Len returns the number of stations.
func (n *Network) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.stations)
}

// Pair resolves the two sync channels used to correct receiver against base.
func (n *Network) Pair(base, receiver string) (Channels, error) {
	if base == receiver {
		return Channels{}, fmt.Errorf("%w: %s", ErrSameReceiver, base)
	}
	b, ok := n.Get(base)
	if !ok {
		return Channels{}, fmt.Errorf("%w: base %s", ErrUnknownReceiver, base)
	}
	r, ok := n.Get(receiver)
	if !ok {
		return Channels{}, fmt.Errorf("%w: receiver %s", ErrUnknownReceiver, receiver)
	}
	return Channels{Base: b.SyncTransmitter, Receiver: r.SyncTransmitter}, nil
}

// PairsFor returns every registered receiver other than base, for running
// independent pairwise jobs against the same base.
func (n *Network) PairsFor(base string) ([]string, error) {
	if !n.Has(base) {
		return nil, fmt.Errorf("%w: base %s", ErrUnknownReceiver, base)
	}
	var out []string
	for _, r := range n.Receivers() {
		if r != base {
			out = append(out, r)
		}
	}
	return out, nil
}
