package events

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"eventpool/core/types"
)

const (
	TypeRewardPoolCreated      = "rewards.pool_created"
	TypeRewardPoolToppedUp     = "rewards.pool_topped_up"
	TypeRewardPoolWithdrawn    = "rewards.pool_withdrawn"
	TypeRewardDistributed      = "rewards.distributed"
	TypeRewardBatchDistributed = "rewards.batch_distributed"
	TypeRewardBonusDistributed = "rewards.bonus_distributed"
	TypeRewardClaimed          = "rewards.claimed"
)

type RewardPoolCreated struct {
	EventID    [32]byte
	Controller [20]byte
	Asset      [20]byte
	Kind       string
	Amount     *big.Int
	CreatedAt  int64
}

func (RewardPoolCreated) EventType() string { return TypeRewardPoolCreated }

func (e RewardPoolCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardPoolCreated,
		Attributes: map[string]string{
			"eventId":    hex.EncodeToString(e.EventID[:]),
			"controller": hexAddr(e.Controller),
			"asset":      hexAddr(e.Asset),
			"kind":       e.Kind,
			"amount":     formatAmount(e.Amount),
			"createdAt":  strconv.FormatInt(e.CreatedAt, 10),
		},
	}
}

type RewardPoolToppedUp struct {
	EventID    [32]byte
	Controller [20]byte
	Amount     *big.Int
}

func (RewardPoolToppedUp) EventType() string { return TypeRewardPoolToppedUp }

func (e RewardPoolToppedUp) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardPoolToppedUp,
		Attributes: map[string]string{
			"eventId":    hex.EncodeToString(e.EventID[:]),
			"controller": hexAddr(e.Controller),
			"amount":     formatAmount(e.Amount),
		},
	}
}

type RewardPoolWithdrawn struct {
	EventID    [32]byte
	Controller [20]byte
	Amount     *big.Int
	Cancelled  bool
}

func (RewardPoolWithdrawn) EventType() string { return TypeRewardPoolWithdrawn }

func (e RewardPoolWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardPoolWithdrawn,
		Attributes: map[string]string{
			"eventId":    hex.EncodeToString(e.EventID[:]),
			"controller": hexAddr(e.Controller),
			"amount":     formatAmount(e.Amount),
			"cancelled":  strconv.FormatBool(e.Cancelled),
		},
	}
}

type RewardDistributed struct {
	EventID   [32]byte
	Recipient [20]byte
	Amount    *big.Int
}

func (RewardDistributed) EventType() string { return TypeRewardDistributed }

func (e RewardDistributed) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardDistributed,
		Attributes: map[string]string{
			"eventId":   hex.EncodeToString(e.EventID[:]),
			"recipient": hexAddr(e.Recipient),
			"amount":    formatAmount(e.Amount),
		},
	}
}

type RewardBatchDistributed struct {
	EventID    [32]byte
	Recipients int
	Total      *big.Int
}

func (RewardBatchDistributed) EventType() string { return TypeRewardBatchDistributed }

func (e RewardBatchDistributed) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardBatchDistributed,
		Attributes: map[string]string{
			"eventId":    hex.EncodeToString(e.EventID[:]),
			"recipients": strconv.Itoa(e.Recipients),
			"total":      formatAmount(e.Total),
		},
	}
}

type RewardBonusDistributed struct {
	EventID   [32]byte
	Recipient [20]byte
	Amount    *big.Int
}

func (RewardBonusDistributed) EventType() string { return TypeRewardBonusDistributed }

func (e RewardBonusDistributed) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardBonusDistributed,
		Attributes: map[string]string{
			"eventId":   hex.EncodeToString(e.EventID[:]),
			"recipient": hexAddr(e.Recipient),
			"amount":    formatAmount(e.Amount),
		},
	}
}

type RewardClaimed struct {
	EventID     [32]byte
	Participant [20]byte
	Amount      *big.Int
}

func (RewardClaimed) EventType() string { return TypeRewardClaimed }

func (e RewardClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardClaimed,
		Attributes: map[string]string{
			"eventId":     hex.EncodeToString(e.EventID[:]),
			"participant": hexAddr(e.Participant),
			"amount":      formatAmount(e.Amount),
		},
	}
}

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
