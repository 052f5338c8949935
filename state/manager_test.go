package state

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"eventpool/core/types"
	"eventpool/native/rewards"
	"eventpool/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { _ = db.Close() })
	return NewManager(db)
}

func testEventID(fill byte) [32]byte {
	var id [32]byte
	copy(id[:], bytes.Repeat([]byte{fill}, 32))
	return id
}

func testAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func TestRewardPoolRoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	id := testEventID(0xAB)

	_, ok, err := mgr.RewardPoolGet(id)
	require.NoError(t, err)
	require.False(t, ok)

	pool := &rewards.RewardPool{
		EventID:         id,
		Controller:      testAddress(0x01),
		Asset:           testAddress(0x02),
		Kind:            rewards.KindUSDC,
		PoolAmount:      big.NewInt(1_000_000),
		AllocatedTotal:  big.NewInt(250),
		ClaimedAmount:   big.NewInt(100),
		ReclaimedAmount: big.NewInt(0),
		CreatedAt:       1_700_000_000,
	}
	require.NoError(t, mgr.RewardPoolPut(pool))

	stored, ok, err := mgr.RewardPoolGet(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pool.Controller, stored.Controller)
	require.Equal(t, pool.Kind, stored.Kind)
	require.Zero(t, pool.PoolAmount.Cmp(stored.PoolAmount))
	require.Zero(t, pool.AllocatedTotal.Cmp(stored.AllocatedTotal))
	require.Equal(t, pool.CreatedAt, stored.CreatedAt)
	require.False(t, stored.Cancelled)

	// Mutating the returned copy must not leak into storage.
	stored.PoolAmount.SetInt64(7)
	again, _, err := mgr.RewardPoolGet(id)
	require.NoError(t, err)
	require.Zero(t, again.PoolAmount.Cmp(big.NewInt(1_000_000)))
}

func TestRewardPoolPutRejectsInvalid(t *testing.T) {
	mgr := newTestManager(t)
	pool := &rewards.RewardPool{
		EventID:    testEventID(0x01),
		Kind:       rewards.KindNFT,
		PoolAmount: big.NewInt(1),
	}
	require.ErrorIs(t, mgr.RewardPoolPut(pool), rewards.ErrUnsupportedKind)
}

func TestAllocationRoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	id := testEventID(0xCD)
	participant := testAddress(0x0A)

	_, ok, err := mgr.RewardAllocationGet(id, participant)
	require.NoError(t, err)
	require.False(t, ok)

	alloc := &rewards.Allocation{
		EventID:     id,
		Participant: participant,
		Amount:      big.NewInt(400),
	}
	require.NoError(t, mgr.RewardAllocationPut(alloc))

	stored, ok, err := mgr.RewardAllocationGet(id, participant)
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, stored.Amount.Cmp(big.NewInt(400)))
	require.False(t, stored.Claimed)

	// Distinct participants under the same event do not collide.
	other := testAddress(0x0B)
	_, ok, err = mgr.RewardAllocationGet(id, other)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAccountRoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	addr := testAddress(0x55)

	account, err := mgr.AccountGet(addr)
	require.NoError(t, err)
	require.Zero(t, account.BalanceUSDC.Sign())
	require.Zero(t, account.BalanceWLD.Sign())

	account.BalanceUSDC = big.NewInt(123)
	require.NoError(t, mgr.AccountPut(addr, account))

	stored, err := mgr.AccountGet(addr)
	require.NoError(t, err)
	require.Zero(t, stored.BalanceUSDC.Cmp(big.NewInt(123)))

	require.Error(t, mgr.AccountPut(addr, nil))
}

func TestAccountRoundTripOnBolt(t *testing.T) {
	db, err := storage.NewBoltDB(t.TempDir() + "/state.db")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	mgr := NewManager(db)

	addr := testAddress(0x77)
	account := types.NewAccount()
	account.BalanceWLD = big.NewInt(999)
	require.NoError(t, mgr.AccountPut(addr, account))

	stored, err := mgr.AccountGet(addr)
	require.NoError(t, err)
	require.Zero(t, stored.BalanceWLD.Cmp(big.NewInt(999)))
}
