package rewards

import (
	"fmt"
	"math/big"
	"strings"
)

// RewardKind identifies the asset class held by a reward pool.
type RewardKind uint8

const (
	KindUnspecified RewardKind = iota
	KindUSDC
	KindWLD
	// KindNFT is reserved. Pools of this kind are rejected at creation until
	// non-fungible rewards are actually supported.
	KindNFT
)

// String returns the canonical lowercase label for the kind.
func (k RewardKind) String() string {
	switch k {
	case KindUSDC:
		return "usdc"
	case KindWLD:
		return "wld"
	case KindNFT:
		return "nft"
	default:
		return "unspecified"
	}
}

// NormalizeKind validates that the kind is one that the ledger can custody.
func NormalizeKind(k RewardKind) (RewardKind, error) {
	switch k {
	case KindUSDC, KindWLD:
		return k, nil
	default:
		return KindUnspecified, fmt.Errorf("%w: %s", ErrUnsupportedKind, k)
	}
}

// ParseKind resolves a textual kind label used by configuration and the RPC
// surface.
func ParseKind(label string) (RewardKind, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "usdc":
		return KindUSDC, nil
	case "wld":
		return KindWLD, nil
	case "nft":
		return KindNFT, nil
	default:
		return KindUnspecified, fmt.Errorf("%w: %q", ErrUnsupportedKind, label)
	}
}

// RewardPool captures the custody bookkeeping for a single event. PoolAmount
// holds value not yet earmarked for anyone; AllocatedTotal holds value
// earmarked but unclaimed; ClaimedAmount and ReclaimedAmount are cumulative
// outflows. The sum of the four always equals everything ever deposited.
type RewardPool struct {
	EventID         [32]byte
	Controller      [20]byte
	Asset           [20]byte
	Kind            RewardKind
	PoolAmount      *big.Int
	AllocatedTotal  *big.Int
	ClaimedAmount   *big.Int
	ReclaimedAmount *big.Int
	CreatedAt       int64
	ReclaimedAt     int64
	Cancelled       bool
}

// Clone returns a deep copy of the pool so callers can mutate the copy
// without affecting the stored instance.
func (p *RewardPool) Clone() *RewardPool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.PoolAmount = cloneBigInt(p.PoolAmount)
	clone.AllocatedTotal = cloneBigInt(p.AllocatedTotal)
	clone.ClaimedAmount = cloneBigInt(p.ClaimedAmount)
	clone.ReclaimedAmount = cloneBigInt(p.ReclaimedAmount)
	return &clone
}

// Settled reports whether reclamation has already run for the pool. Settled
// pools accept no further mutation; outstanding allocations are expired.
func (p *RewardPool) Settled() bool {
	return p != nil && p.ReclaimedAt != 0
}

// SanitizeRewardPool validates the supplied pool and returns a normalised
// deep copy with non-nil amount fields. The original value is not mutated.
func SanitizeRewardPool(p *RewardPool) (*RewardPool, error) {
	if p == nil {
		return nil, fmt.Errorf("rewards: nil pool")
	}
	if _, err := NormalizeKind(p.Kind); err != nil {
		return nil, err
	}
	clone := p.Clone()
	if clone.PoolAmount.Sign() < 0 || clone.AllocatedTotal.Sign() < 0 ||
		clone.ClaimedAmount.Sign() < 0 || clone.ReclaimedAmount.Sign() < 0 {
		return nil, fmt.Errorf("rewards: pool amounts must be non-negative")
	}
	return clone, nil
}

// Allocation is the per-participant earmark within a pool. Amount drops to
// zero on a successful claim; Claimed stays true forever afterwards.
type Allocation struct {
	EventID     [32]byte
	Participant [20]byte
	Amount      *big.Int
	Claimed     bool
}

// Clone returns a deep copy of the allocation.
func (a *Allocation) Clone() *Allocation {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Amount = cloneBigInt(a.Amount)
	return &clone
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}
