// Package feeprovider resolves dynamic protocol fees.
//
// A swap program can delegate its protocol fee rate and recipient to an
// external provider identified by address. The node wires one FeeSource
// into the engine: a Static source configured at startup, or a gRPC
// Client talking to a remote fee service.
package feeprovider

import (
	"errors"
	"sync"

	"github.com/fortiblox/swapvm/internal/types"
)

var (
	// ErrUnknownProvider is returned for a provider address with no
	// configured rate.
	ErrUnknownProvider = errors.New("unknown fee provider")
)

// Rate is one provider's fee configuration.
type Rate struct {
	// FeeBps is the fee rate, 1e9 scale.
	FeeBps uint32

	// Recipient receives the skimmed fee.
	Recipient types.Address
}

// Static is a fixed table of provider rates, configured at startup.
// It implements vm.FeeSource.
type Static struct {
	mu    sync.RWMutex
	rates map[types.Address]Rate
}

// NewStatic creates a static fee source from a provider -> rate table.
func NewStatic(rates map[types.Address]Rate) *Static {
	m := make(map[types.Address]Rate, len(rates))
	for k, v := range rates {
		m[k] = v
	}
	return &Static{rates: m}
}

// Set installs or replaces one provider's rate.
func (s *Static) Set(provider types.Address, rate Rate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[provider] = rate
}

// FeeFor returns the configured rate for provider. The order and taker
// arguments are ignored; a static table does not discriminate.
func (s *Static) FeeFor(provider types.Address, order types.Hash, taker types.Address) (uint32, types.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rates[provider]
	if !ok {
		return 0, types.Address{}, ErrUnknownProvider
	}
	return r.FeeBps, r.Recipient, nil
}
