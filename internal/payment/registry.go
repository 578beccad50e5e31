package payment

import (
	"fmt"
	"sort"

	"github.com/fairyhunter13/listing-payment-gate/internal/chain"
)

// Registry resolves networks to their chain clients.
// The first registered client is the default network.
type Registry struct {
	clients  map[chain.Network]chain.Client
	fallback chain.Network
}

// NewRegistry builds a registry. Network names must be unique.
func NewRegistry(clients ...chain.Client) (*Registry, error) {
	r := &Registry{clients: make(map[chain.Network]chain.Client, len(clients))}
	for _, c := range clients {
		n := c.Network()
		if _, dup := r.clients[n]; dup {
			return nil, fmt.Errorf("network %s registered twice", n)
		}
		r.clients[n] = c
		if r.fallback == "" {
			r.fallback = n
		}
	}
	return r, nil
}

// Client returns the client for n, or the default network's client when n is empty.
func (r *Registry) Client(n chain.Network) (chain.Client, error) {
	if n == "" {
		n = r.fallback
	}
	c, ok := r.clients[n]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, n)
	}
	return c, nil
}

// Default returns the default network, empty when nothing is registered.
func (r *Registry) Default() chain.Network {
	return r.fallback
}

// Networks lists registered networks in name order.
func (r *Registry) Networks() []chain.Network {
	out := make([]chain.Network, 0, len(r.clients))
	for n := range r.clients {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
