package feeprovider

import (
	"errors"
	"testing"

	"github.com/fortiblox/swapvm/internal/types"
)

var (
	providerA = types.MustAddressFromHex("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	providerB = types.MustAddressFromHex("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	recipient = types.MustAddressFromHex("0x3333333333333333333333333333333333333333")
)

func TestStaticFeeFor(t *testing.T) {
	s := NewStatic(map[types.Address]Rate{
		providerA: {FeeBps: 5_000_000, Recipient: recipient},
	})

	bps, to, err := s.FeeFor(providerA, types.Hash{}, types.Address{})
	if err != nil {
		t.Fatalf("FeeFor: %v", err)
	}
	if bps != 5_000_000 || to != recipient {
		t.Fatalf("got (%d, %s)", bps, to)
	}

	if _, _, err := s.FeeFor(providerB, types.Hash{}, types.Address{}); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("unknown provider: err = %v", err)
	}
}

func TestStaticSet(t *testing.T) {
	s := NewStatic(nil)
	s.Set(providerB, Rate{FeeBps: 1_000_000, Recipient: recipient})

	bps, _, err := s.FeeFor(providerB, types.Hash{}, types.Address{})
	if err != nil {
		t.Fatalf("FeeFor: %v", err)
	}
	if bps != 1_000_000 {
		t.Fatalf("bps = %d, want 1000000", bps)
	}

	// Replacement wins.
	s.Set(providerB, Rate{FeeBps: 2_000_000, Recipient: recipient})
	bps, _, _ = s.FeeFor(providerB, types.Hash{}, types.Address{})
	if bps != 2_000_000 {
		t.Fatalf("bps = %d after replace, want 2000000", bps)
	}
}

func TestClientConfigValidate(t *testing.T) {
	cfg := DefaultClientConfig("")
	if err := cfg.Validate(); !errors.Is(err, ErrNoEndpoint) {
		t.Fatalf("err = %v, want ErrNoEndpoint", err)
	}
	if _, err := NewClient(cfg); !errors.Is(err, ErrNoEndpoint) {
		t.Fatalf("NewClient: err = %v, want ErrNoEndpoint", err)
	}

	cfg = DefaultClientConfig("localhost:9000")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestClientClosed(t *testing.T) {
	// grpc.Dial does not connect eagerly, so constructing a client
	// against a dead endpoint succeeds.
	c, err := NewClient(DefaultClientConfig("localhost:1"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, _, err := c.FeeFor(providerA, types.Hash{}, types.Address{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("FeeFor after close: %v", err)
	}
	// Double close is safe.
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
