package transfer

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"eventpool/core/types"
	"eventpool/native/rewards"
)

var (
	errNilStore           = errors.New("bank: account store not configured")
	errInsufficientFunds  = errors.New("bank: insufficient balance")
	errNegativeAmount     = errors.New("bank: negative transfer amount")
	errUnsupportedBalance = errors.New("bank: unsupported reward kind")
)

// custodySalt namespaces the derived custody addresses so they cannot collide
// with externally controlled accounts.
var custodySalt = []byte("eventpool/custody/v1")

// AccountStore is the persistence contract the bank requires.
type AccountStore interface {
	AccountGet(addr [20]byte) (*types.Account, error)
	AccountPut(addr [20]byte, account *types.Account) error
}

// Bank implements the reward engine's transfer port on top of persisted
// per-address accounts. Each event gets a deterministic custody address;
// pulls move value from a holder into custody and pushes move it back out.
// Transfers either complete fully or fail without touching balances.
type Bank struct {
	mu    sync.Mutex
	store AccountStore
}

// NewBank constructs a bank over the supplied account store.
func NewBank(store AccountStore) *Bank {
	return &Bank{store: store}
}

// CustodyAddress derives the custody account address for an event.
func CustodyAddress(eventID [32]byte) [20]byte {
	digest := ethcrypto.Keccak256(custodySalt, eventID[:])
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr
}

// Pull moves amount from the holder's account into the event's custody
// account.
func (b *Bank) Pull(eventID [32]byte, holder [20]byte, kind rewards.RewardKind, amount *big.Int) error {
	return b.transfer(holder, CustodyAddress(eventID), kind, amount)
}

// Push moves amount from the event's custody account to the recipient.
func (b *Bank) Push(eventID [32]byte, recipient [20]byte, kind rewards.RewardKind, amount *big.Int) error {
	return b.transfer(CustodyAddress(eventID), recipient, kind, amount)
}

// CustodyBalance reports the value currently held in custody for an event.
func (b *Bank) CustodyBalance(eventID [32]byte, kind rewards.RewardKind) (*big.Int, error) {
	if b == nil || b.store == nil {
		return nil, errNilStore
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	account, err := b.store.AccountGet(CustodyAddress(eventID))
	if err != nil {
		return nil, err
	}
	return balanceOf(account.Normalize(), kind)
}

// Deposit credits the holder's account directly. It exists so operators and
// tests can fund accounts that the ledger later pulls from.
func (b *Bank) Deposit(holder [20]byte, kind rewards.RewardKind, amount *big.Int) error {
	if b == nil || b.store == nil {
		return errNilStore
	}
	if amount == nil || amount.Sign() < 0 {
		return errNegativeAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	account, err := b.store.AccountGet(holder)
	if err != nil {
		return err
	}
	account = account.Normalize()
	balance, err := balanceOf(account, kind)
	if err != nil {
		return err
	}
	if err := setBalance(account, kind, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	return b.store.AccountPut(holder, account)
}

func (b *Bank) transfer(from, to [20]byte, kind rewards.RewardKind, amount *big.Int) error {
	if b == nil || b.store == nil {
		return errNilStore
	}
	if amount == nil {
		return errNegativeAmount
	}
	if amount.Sign() < 0 {
		return errNegativeAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	fromAccount, err := b.store.AccountGet(from)
	if err != nil {
		return err
	}
	toAccount, err := b.store.AccountGet(to)
	if err != nil {
		return err
	}
	fromAccount = fromAccount.Normalize()
	toAccount = toAccount.Normalize()
	fromBalance, err := balanceOf(fromAccount, kind)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return errInsufficientFunds
	}
	toBalance, err := balanceOf(toAccount, kind)
	if err != nil {
		return err
	}
	if err := setBalance(fromAccount, kind, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	if err := setBalance(toAccount, kind, new(big.Int).Add(toBalance, amount)); err != nil {
		return err
	}
	if err := b.store.AccountPut(from, fromAccount); err != nil {
		return err
	}
	if err := b.store.AccountPut(to, toAccount); err != nil {
		return err
	}
	return nil
}

func balanceOf(account *types.Account, kind rewards.RewardKind) (*big.Int, error) {
	switch kind {
	case rewards.KindUSDC:
		return account.BalanceUSDC, nil
	case rewards.KindWLD:
		return account.BalanceWLD, nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedBalance, kind)
	}
}

func setBalance(account *types.Account, kind rewards.RewardKind, balance *big.Int) error {
	switch kind {
	case rewards.KindUSDC:
		account.BalanceUSDC = balance
	case rewards.KindWLD:
		account.BalanceWLD = balance
	default:
		return fmt.Errorf("%w: %s", errUnsupportedBalance, kind)
	}
	return nil
}
