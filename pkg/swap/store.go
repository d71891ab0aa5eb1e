package swap

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

// Store is the durable order map: in-memory cache guarded by a RWMutex plus
// Pebble persistence. Orders are never physically deleted; terminal orders
// remain queryable for audit. The store also holds the token registry rows
// and the engine metadata (next order id, held balance, wrapped-native
// binding) so that related writes can share one atomic Pebble batch.
type Store struct {
	mu     sync.RWMutex
	db     *pebble.DB
	orders map[uint64]*Order
	nextID uint64
}

// NewStore opens a Pebble database at the given path and rebuilds the
// in-memory cache from it.
func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                    pebble.NewCache(64 << 20), // 64MB cache
		MemTableSize:             32 << 20,                  // 32MB memtable
		MaxConcurrentCompactions: func() int { return 3 },
		L0CompactionThreshold:    2,
		L0StopWritesThreshold:    12,
		MaxOpenFiles:             1000,
		BytesPerSync:             512 << 10, // 512KB
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}

	s := &Store{
		db:     db,
		orders: make(map[uint64]*Order),
		nextID: 1,
	}
	if err := s.reload(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// reload rebuilds the order cache and the id counter from disk.
func (s *Store) reload() error {
	prefix := orderPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to iterate orders: %w", err)
	}
	defer iter.Close()

	maxID := uint64(0)
	for iter.First(); iter.Valid(); iter.Next() {
		var ord Order
		if err := json.Unmarshal(iter.Value(), &ord); err != nil {
			continue // Skip invalid entries
		}
		o := ord
		s.orders[o.ID] = &o
		if o.ID > maxID {
			maxID = o.ID
		}
	}

	// Stored counter wins; fall back to max(id)+1 for databases written
	// before the counter key existed.
	if raw, ok := s.getMeta(keyNextOrderID); ok {
		if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
			s.nextID = n
		}
	} else if maxID > 0 {
		s.nextID = maxID + 1
	}

	return nil
}

// NextOrderID returns the id the next successful creation will use.
func (s *Store) NextOrderID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID
}

// GetOrder retrieves an order by id. The result is a detached copy: mutating
// it never touches the cache, and cache entries themselves are only ever
// replaced wholesale (never mutated in place), so concurrent readers always
// see a consistent snapshot.
func (s *Store) GetOrder(id uint64) (*Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ord, ok := s.orders[id]
	if !ok {
		return nil, false
	}
	cp := *ord
	return &cp, true
}

// Orders returns all orders sorted by id ascending.
func (s *Store) Orders() []*Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Order, 0, len(s.orders))
	for _, ord := range s.orders {
		out = append(out, ord)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActiveEscrow sums AmountIn over all active orders. This is recomputed on
// demand rather than cached, so fee accounting cannot drift.
func (s *Store) ActiveEscrow() *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := new(big.Int)
	for _, ord := range s.orders {
		if ord.IsActive {
			total.Add(total, ord.AmountIn)
		}
	}
	return total
}

// CreateOrder persists a new order, the incremented id counter and the new
// balance in one atomic batch, then installs the order in the cache.
// The order's ID must equal NextOrderID().
func (s *Store) CreateOrder(ord *Order, balance *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ord.ID != s.nextID {
		return fmt.Errorf("order id %d does not match counter %d", ord.ID, s.nextID)
	}

	data, err := json.Marshal(ord)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(orderKey(ord.ID), data, nil); err != nil {
		return err
	}
	if err := batch.Set([]byte(keyNextOrderID), []byte(strconv.FormatUint(ord.ID+1, 10)), nil); err != nil {
		return err
	}
	if err := batch.Set([]byte(keyBalance), []byte(balance.String()), nil); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit order %d: %w", ord.ID, err)
	}

	cp := *ord
	s.orders[ord.ID] = &cp
	s.nextID = ord.ID + 1
	return nil
}

// UpdateOrder persists an order's current state together with the new
// balance in one atomic batch, then swaps a fresh copy into the cache.
// Used for cancel, execution commit and execution rollback.
func (s *Store) UpdateOrder(ord *Order, balance *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[ord.ID]; !ok {
		return fmt.Errorf("order %d not found", ord.ID)
	}

	data, err := json.Marshal(ord)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(orderKey(ord.ID), data, nil); err != nil {
		return err
	}
	if err := batch.Set([]byte(keyBalance), []byte(balance.String()), nil); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit order %d: %w", ord.ID, err)
	}

	cp := *ord
	s.orders[ord.ID] = &cp
	return nil
}

// SaveBalance persists the held balance alone (fee withdrawal).
func (s *Store) SaveBalance(balance *big.Int) error {
	if err := s.db.Set([]byte(keyBalance), []byte(balance.String()), pebble.Sync); err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return nil
}

// LoadBalance returns the persisted held balance, zero if never written.
func (s *Store) LoadBalance() *big.Int {
	raw, ok := s.getMeta(keyBalance)
	if !ok {
		return new(big.Int)
	}
	bal, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return new(big.Int)
	}
	return bal
}

// SaveWrappedNative persists the wrapped-native binding.
func (s *Store) SaveWrappedNative(addr common.Address) error {
	if err := s.db.Set([]byte(keyWrapped), []byte(addr.Hex()), pebble.Sync); err != nil {
		return fmt.Errorf("failed to save wrapped-native binding: %w", err)
	}
	return nil
}

// LoadWrappedNative returns the persisted binding, zero address if unset.
func (s *Store) LoadWrappedNative() common.Address {
	raw, ok := s.getMeta(keyWrapped)
	if !ok || !common.IsHexAddress(raw) {
		return common.Address{}
	}
	return common.HexToAddress(raw)
}

// SaveToken persists a registry entry.
func (s *Store) SaveToken(info *TokenInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := s.db.Set(tokenKey(info.Address), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// LoadTokens loads all registry entries.
func (s *Store) LoadTokens() ([]*TokenInfo, error) {
	prefix := tokenPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate tokens: %w", err)
	}
	defer iter.Close()

	var tokens []*TokenInfo
	for iter.First(); iter.Valid(); iter.Next() {
		var info TokenInfo
		if err := json.Unmarshal(iter.Value(), &info); err != nil {
			continue // Skip invalid entries
		}
		t := info
		tokens = append(tokens, &t)
	}
	return tokens, nil
}

// getMeta reads a metadata key as a string.
func (s *Store) getMeta(key string) (string, bool) {
	val, closer, err := s.db.Get([]byte(key))
	if err == pebble.ErrNotFound {
		return "", false
	}
	if err != nil {
		return "", false
	}
	defer closer.Close()
	return string(val), true
}
