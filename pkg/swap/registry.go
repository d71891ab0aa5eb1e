package swap

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/YieldCraft-AI/contracts/pkg/util"
)

// TokenInfo is a registry row for an eligible swap-target token.
type TokenInfo struct {
	Address common.Address `json:"address"`
	// Associated reports whether the engine's holding account has completed
	// the ledger association step and can receive the token.
	Associated bool  `json:"associated"`
	AddedAt    int64 `json:"addedAt"` // unix seconds
}

// Associator is the ledger-specific token-association primitive. On ledgers
// without an association requirement a no-op implementation is used.
type Associator interface {
	Associate(ctx context.Context, token common.Address) error
}

// NoopAssociator treats every association as already done.
type NoopAssociator struct{}

func (NoopAssociator) Associate(ctx context.Context, token common.Address) error { return nil }

// TokenRegistry maintains the allow-list of swap-target tokens and their
// association state, in-memory with Pebble persistence via the shared Store.
type TokenRegistry struct {
	mu     sync.RWMutex
	tokens map[common.Address]*TokenInfo
	store  *Store
	clock  util.Clock
}

// NewTokenRegistry loads registry state from the store. A nil clock defaults
// to wall time.
func NewTokenRegistry(store *Store, clock util.Clock) (*TokenRegistry, error) {
	infos, err := store.LoadTokens()
	if err != nil {
		return nil, fmt.Errorf("failed to load token registry: %w", err)
	}

	tokens := make(map[common.Address]*TokenInfo, len(infos))
	for _, info := range infos {
		tokens[info.Address] = info
	}

	if clock == nil {
		clock = util.RealClock{}
	}
	return &TokenRegistry{
		tokens: tokens,
		store:  store,
		clock:  clock,
	}, nil
}

// Register adds a token to the allow-list. Registering an already-known
// token is a no-op success so bulk setup calls tolerate repeats.
func (r *TokenRegistry) Register(addr common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tokens[addr]; exists {
		return nil
	}

	info := &TokenInfo{
		Address: addr,
		AddedAt: r.clock.Now().Unix(),
	}
	if err := r.store.SaveToken(info); err != nil {
		return err
	}
	r.tokens[addr] = info
	return nil
}

// Associate marks a registered token as associated with the engine's holding
// account. Idempotent: associating an already-associated token succeeds.
func (r *TokenRegistry) Associate(addr common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, exists := r.tokens[addr]
	if !exists {
		return fmt.Errorf("%w: %s is not registered", ErrUnsupportedToken, addr.Hex())
	}
	if info.Associated {
		return nil
	}

	info.Associated = true
	if err := r.store.SaveToken(info); err != nil {
		info.Associated = false
		return err
	}
	return nil
}

// IsSwappable reports whether a token may be used as an order's tokenOut:
// it must be on the allow-list and associated.
func (r *TokenRegistry) IsSwappable(addr common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.tokens[addr]
	return exists && info.Associated
}

// IsRegistered reports whether a token is on the allow-list.
func (r *TokenRegistry) IsRegistered(addr common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.tokens[addr]
	return exists
}

// List returns a snapshot of all registry entries.
func (r *TokenRegistry) List() []TokenInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TokenInfo, 0, len(r.tokens))
	for _, info := range r.tokens {
		out = append(out, *info)
	}
	return out
}

// Count returns the number of registered tokens.
func (r *TokenRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}
