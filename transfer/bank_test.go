package transfer

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"eventpool/native/rewards"
	"eventpool/state"
	"eventpool/storage"
)

func newTestBank(t *testing.T) *Bank {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { _ = db.Close() })
	return NewBank(state.NewManager(db))
}

func addr(fill byte) [20]byte {
	var a [20]byte
	copy(a[:], bytes.Repeat([]byte{fill}, 20))
	return a
}

func event(fill byte) [32]byte {
	var id [32]byte
	copy(id[:], bytes.Repeat([]byte{fill}, 32))
	return id
}

func TestCustodyAddressDeterministic(t *testing.T) {
	a := CustodyAddress(event(0x01))
	b := CustodyAddress(event(0x01))
	c := CustodyAddress(event(0x02))
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.NotEqual(t, [20]byte{}, a)
}

func TestPullPushRoundTrip(t *testing.T) {
	bank := newTestBank(t)
	holder := addr(0x10)
	recipient := addr(0x20)
	id := event(0xAA)

	require.NoError(t, bank.Deposit(holder, rewards.KindUSDC, big.NewInt(1000)))
	require.NoError(t, bank.Pull(id, holder, rewards.KindUSDC, big.NewInt(600)))

	custody, err := bank.CustodyBalance(id, rewards.KindUSDC)
	require.NoError(t, err)
	require.Zero(t, custody.Cmp(big.NewInt(600)))

	require.NoError(t, bank.Push(id, recipient, rewards.KindUSDC, big.NewInt(250)))
	custody, err = bank.CustodyBalance(id, rewards.KindUSDC)
	require.NoError(t, err)
	require.Zero(t, custody.Cmp(big.NewInt(350)))
}

func TestTransferInsufficientBalanceFails(t *testing.T) {
	bank := newTestBank(t)
	holder := addr(0x10)
	id := event(0xAA)

	require.NoError(t, bank.Deposit(holder, rewards.KindWLD, big.NewInt(100)))
	err := bank.Pull(id, holder, rewards.KindWLD, big.NewInt(101))
	require.ErrorIs(t, err, errInsufficientFunds)

	// Balance untouched by the failed pull.
	custody, err := bank.CustodyBalance(id, rewards.KindWLD)
	require.NoError(t, err)
	require.Zero(t, custody.Sign())
	require.NoError(t, bank.Pull(id, holder, rewards.KindWLD, big.NewInt(100)))
}

func TestTransferValidation(t *testing.T) {
	bank := newTestBank(t)
	id := event(0x01)
	holder := addr(0x02)

	require.ErrorIs(t, bank.Pull(id, holder, rewards.KindUSDC, nil), errNegativeAmount)
	require.ErrorIs(t, bank.Pull(id, holder, rewards.KindUSDC, big.NewInt(-1)), errNegativeAmount)
	require.ErrorIs(t, bank.Pull(id, holder, rewards.KindNFT, big.NewInt(1)), errUnsupportedBalance)

	// Zero-value transfers are a no-op success.
	require.NoError(t, bank.Push(id, holder, rewards.KindUSDC, big.NewInt(0)))
}

func TestBalancesAreIndependentPerKind(t *testing.T) {
	bank := newTestBank(t)
	holder := addr(0x10)
	id := event(0xAA)

	require.NoError(t, bank.Deposit(holder, rewards.KindUSDC, big.NewInt(500)))
	require.NoError(t, bank.Deposit(holder, rewards.KindWLD, big.NewInt(50)))
	require.NoError(t, bank.Pull(id, holder, rewards.KindUSDC, big.NewInt(500)))

	err := bank.Pull(id, holder, rewards.KindUSDC, big.NewInt(1))
	require.ErrorIs(t, err, errInsufficientFunds)
	require.NoError(t, bank.Pull(id, holder, rewards.KindWLD, big.NewInt(50)))
}
