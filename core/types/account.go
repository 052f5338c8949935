package types

import "math/big"

// Account holds the fungible balances tracked for a single address. One
// balance is kept per supported reward asset.
type Account struct {
	BalanceUSDC *big.Int `json:"balanceUsdc"`
	BalanceWLD  *big.Int `json:"balanceWld"`
}

// NewAccount returns an account with zeroed balances.
func NewAccount() *Account {
	return &Account{BalanceUSDC: big.NewInt(0), BalanceWLD: big.NewInt(0)}
}

// Normalize replaces nil balance fields with zero values so callers can
// operate on the account without nil checks. A nil receiver yields a fresh
// account.
func (a *Account) Normalize() *Account {
	if a == nil {
		return NewAccount()
	}
	if a.BalanceUSDC == nil {
		a.BalanceUSDC = big.NewInt(0)
	}
	if a.BalanceWLD == nil {
		a.BalanceWLD = big.NewInt(0)
	}
	return a
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return NewAccount()
	}
	clone := NewAccount()
	if a.BalanceUSDC != nil {
		clone.BalanceUSDC = new(big.Int).Set(a.BalanceUSDC)
	}
	if a.BalanceWLD != nil {
		clone.BalanceWLD = new(big.Int).Set(a.BalanceWLD)
	}
	return clone
}
