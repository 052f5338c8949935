package rewards

import "errors"

var (
	ErrEventNotFound     = errors.New("rewards: event not found")
	ErrPoolNotFound      = errors.New("rewards: pool not found")
	ErrPoolExists        = errors.New("rewards: pool already exists")
	ErrUnauthorized      = errors.New("rewards: unauthorized")
	ErrInvalidRecipient  = errors.New("rewards: invalid recipient")
	ErrInvalidAsset      = errors.New("rewards: invalid asset address")
	ErrInvalidAmount     = errors.New("rewards: amount must be positive")
	ErrLengthMismatch    = errors.New("rewards: recipients and amounts length mismatch")
	ErrEmptyBatch        = errors.New("rewards: empty batch")
	ErrUnsupportedKind   = errors.New("rewards: unsupported reward kind")
	ErrInsufficientFunds = errors.New("rewards: insufficient pool funds")
	ErrAlreadyClaimed    = errors.New("rewards: already claimed")
	ErrNothingToClaim    = errors.New("rewards: nothing to claim")
	ErrNotParticipant    = errors.New("rewards: not a participant")
	ErrTransferFailed    = errors.New("rewards: transfer failed")
	ErrTimeoutNotReached = errors.New("rewards: reclaim timeout not reached")
	ErrPoolSettled       = errors.New("rewards: pool already settled")
	ErrPoolCancelled     = errors.New("rewards: pool cancelled")
)
