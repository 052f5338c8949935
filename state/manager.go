package state

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"eventpool/core/types"
	"eventpool/native/rewards"
	"eventpool/storage"
)

const (
	poolPrefix    = "rewards/pool/"
	allocPrefix   = "rewards/alloc/"
	accountPrefix = "bank/account/"
)

// Manager persists the typed ledger records (reward pools, allocations,
// accounts) as JSON-encoded entries in a key-value database. It implements
// both the reward engine's state contract and the bank port's account store.
type Manager struct {
	mu sync.RWMutex
	db storage.Database
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func poolKey(id [32]byte) []byte {
	return []byte(poolPrefix + hex.EncodeToString(id[:]))
}

func allocKey(id [32]byte, participant [20]byte) []byte {
	return []byte(allocPrefix + hex.EncodeToString(id[:]) + "/" + hex.EncodeToString(participant[:]))
}

func accountKey(addr [20]byte) []byte {
	return []byte(accountPrefix + hex.EncodeToString(addr[:]))
}

func (m *Manager) put(key []byte, record any) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("state: encode record: %w", err)
	}
	return m.db.Put(key, encoded)
}

// get decodes the record at key into out. The boolean reports presence.
func (m *Manager) get(key []byte, out any) (bool, error) {
	encoded, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(encoded, out); err != nil {
		return false, fmt.Errorf("state: decode record: %w", err)
	}
	return true, nil
}

// RewardPoolPut persists a sanitised copy of the pool.
func (m *Manager) RewardPoolPut(pool *rewards.RewardPool) error {
	sanitized, err := rewards.SanitizeRewardPool(pool)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(poolKey(sanitized.EventID), sanitized)
}

// RewardPoolGet loads the pool for the event id, reporting presence.
func (m *Manager) RewardPoolGet(id [32]byte) (*rewards.RewardPool, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pool := new(rewards.RewardPool)
	ok, err := m.get(poolKey(id), pool)
	if err != nil || !ok {
		return nil, false, err
	}
	return pool, true, nil
}

// RewardAllocationPut persists a copy of the allocation.
func (m *Manager) RewardAllocationPut(alloc *rewards.Allocation) error {
	if alloc == nil {
		return fmt.Errorf("state: nil allocation")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(allocKey(alloc.EventID, alloc.Participant), alloc.Clone())
}

// RewardAllocationGet loads the allocation for (event id, participant),
// reporting presence.
func (m *Manager) RewardAllocationGet(id [32]byte, participant [20]byte) (*rewards.Allocation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	alloc := new(rewards.Allocation)
	ok, err := m.get(allocKey(id, participant), alloc)
	if err != nil || !ok {
		return nil, false, err
	}
	return alloc, true, nil
}

// AccountGet loads the account for the address. Missing accounts read as
// zero-balance accounts.
func (m *Manager) AccountGet(addr [20]byte) (*types.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account := new(types.Account)
	ok, err := m.get(accountKey(addr), account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.NewAccount(), nil
	}
	return account.Normalize(), nil
}

// AccountPut persists the account for the address.
func (m *Manager) AccountPut(addr [20]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(accountKey(addr), account.Clone().Normalize())
}
