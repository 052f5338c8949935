package rewards

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"eventpool/core/events"
)

// DefaultReclaimWindow is how long a pool must exist before its controller
// may reclaim the unclaimed remainder.
const DefaultReclaimWindow = 30 * 24 * time.Hour

var (
	errNilState  = errors.New("rewards engine: state not configured")
	errNilOracle = errors.New("rewards engine: event source not configured")
	errNilPort   = errors.New("rewards engine: transfer port not configured")
)

// engineState is the persistence contract the engine requires. Implementations
// must return deep copies from getters so engine-side mutation stays local
// until the matching put.
type engineState interface {
	RewardPoolPut(*RewardPool) error
	RewardPoolGet(id [32]byte) (*RewardPool, bool, error)
	RewardAllocationPut(*Allocation) error
	RewardAllocationGet(id [32]byte, participant [20]byte) (*Allocation, bool, error)
}

// EventSource is the read-only registry that defines event existence, the
// creator address and the participant set. A zero creator address is the
// existence-negative signal.
type EventSource interface {
	EventExists(id [32]byte) (bool, error)
	EventCreator(id [32]byte) ([20]byte, error)
	EventParticipants(id [32]byte) ([][20]byte, error)
}

// TransferPort moves fungible value between external holder accounts and the
// per-event custody account. Implementations transfer fully or fail; there is
// no partial transfer.
type TransferPort interface {
	Pull(eventID [32]byte, holder [20]byte, kind RewardKind, amount *big.Int) error
	Push(eventID [32]byte, recipient [20]byte, kind RewardKind, amount *big.Int) error
}

// Engine owns the reward pool state machine: funding, allocation, claims and
// timeout reclamation. Every mutating operation is serialised per event id so
// the read-validate-transfer-write sequence is atomic with respect to other
// callers touching the same pool.
type Engine struct {
	state         engineState
	oracle        EventSource
	port          TransferPort
	emitter       events.Emitter
	nowFn         func() int64
	reclaimWindow time.Duration

	mu    sync.Mutex
	locks map[[32]byte]*sync.Mutex
}

// NewEngine constructs a reward engine with a no-op emitter and the default
// reclaim window.
func NewEngine() *Engine {
	return &Engine{
		emitter:       events.NoopEmitter{},
		nowFn:         func() int64 { return time.Now().Unix() },
		reclaimWindow: DefaultReclaimWindow,
		locks:         make(map[[32]byte]*sync.Mutex),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEventSource configures the external event registry.
func (e *Engine) SetEventSource(oracle EventSource) { e.oracle = oracle }

// SetTransferPort configures the value transfer backend.
func (e *Engine) SetTransferPort(port TransferPort) { e.port = port }

// SetEmitter configures the event emitter. Passing nil resets the emitter to
// a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetReclaimWindow overrides the reclaim timeout. Non-positive values restore
// the default.
func (e *Engine) SetReclaimWindow(window time.Duration) {
	if window <= 0 {
		e.reclaimWindow = DefaultReclaimWindow
		return
	}
	e.reclaimWindow = window
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	switch {
	case e == nil, e.state == nil:
		return errNilState
	case e.oracle == nil:
		return errNilOracle
	case e.port == nil:
		return errNilPort
	default:
		return nil
	}
}

// poolLock returns the mutex guarding the given event id, creating it on
// first use.
func (e *Engine) poolLock(id [32]byte) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.locks == nil {
		e.locks = make(map[[32]byte]*sync.Mutex)
	}
	lock, ok := e.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[id] = lock
	}
	return lock
}

func (e *Engine) loadPool(id [32]byte) (*RewardPool, error) {
	pool, ok, err := e.state.RewardPoolGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || pool == nil {
		return nil, ErrPoolNotFound
	}
	return pool, nil
}

// authorize compares the caller against the stored pool controller. All
// privileged operations use this single check; controller identity is fixed
// at pool creation and never re-derived from the registry.
func authorize(pool *RewardPool, caller [20]byte) error {
	if isZeroAddress(caller) || pool.Controller != caller {
		return ErrUnauthorized
	}
	return nil
}

// mutable rejects pools that have already been settled by reclamation.
func mutable(pool *RewardPool) error {
	if pool.Cancelled {
		return ErrPoolCancelled
	}
	if pool.Settled() {
		return ErrPoolSettled
	}
	return nil
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// CreatePool pulls the initial funding from the funder into custody and
// records a new pool for the event. The funder becomes the pool controller.
// Re-creating a pool for an existing event id is rejected.
func (e *Engine) CreatePool(funder [20]byte, eventID [32]byte, kind RewardKind, asset [20]byte, amount *big.Int) (*RewardPool, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if isZeroAddress(funder) {
		return nil, ErrInvalidRecipient
	}
	if isZeroAddress(asset) {
		return nil, ErrInvalidAsset
	}
	normalized, err := NormalizeKind(kind)
	if err != nil {
		return nil, err
	}
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	exists, err := e.oracle.EventExists(eventID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrEventNotFound
	}
	creator, err := e.oracle.EventCreator(eventID)
	if err != nil {
		return nil, err
	}
	if isZeroAddress(creator) {
		return nil, ErrEventNotFound
	}

	lock := e.poolLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	if _, ok, err := e.state.RewardPoolGet(eventID); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrPoolExists
	}
	if err := e.port.Pull(eventID, funder, normalized, amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	pool := &RewardPool{
		EventID:         eventID,
		Controller:      funder,
		Asset:           asset,
		Kind:            normalized,
		PoolAmount:      cloneBigInt(amount),
		AllocatedTotal:  big.NewInt(0),
		ClaimedAmount:   big.NewInt(0),
		ReclaimedAmount: big.NewInt(0),
		CreatedAt:       e.now(),
	}
	if err := e.state.RewardPoolPut(pool); err != nil {
		return nil, err
	}
	e.emit(events.RewardPoolCreated{
		EventID:    pool.EventID,
		Controller: pool.Controller,
		Asset:      pool.Asset,
		Kind:       pool.Kind.String(),
		Amount:     cloneBigInt(pool.PoolAmount),
		CreatedAt:  pool.CreatedAt,
	})
	return pool.Clone(), nil
}

// TopUp pulls additional funding from the controller into the pool. The
// creation timestamp is untouched, so topping up never extends the reclaim
// window.
func (e *Engine) TopUp(caller [20]byte, eventID [32]byte, amount *big.Int) (*RewardPool, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := validAmount(amount); err != nil {
		return nil, err
	}

	lock := e.poolLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	pool, err := e.loadPool(eventID)
	if err != nil {
		return nil, err
	}
	if err := authorize(pool, caller); err != nil {
		return nil, err
	}
	if err := mutable(pool); err != nil {
		return nil, err
	}
	if err := e.port.Pull(eventID, caller, pool.Kind, amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	pool.PoolAmount = new(big.Int).Add(pool.PoolAmount, amount)
	if err := e.state.RewardPoolPut(pool); err != nil {
		return nil, err
	}
	e.emit(events.RewardPoolToppedUp{
		EventID:    pool.EventID,
		Controller: pool.Controller,
		Amount:     cloneBigInt(amount),
	})
	return pool.Clone(), nil
}

// Allocate earmarks part of the unallocated pool remainder for a recipient.
// Repeated allocations to the same recipient accumulate.
func (e *Engine) Allocate(caller [20]byte, eventID [32]byte, recipient [20]byte, amount *big.Int) (*Allocation, error) {
	return e.allocate(caller, eventID, recipient, amount, false)
}

// AllocateBonus is Allocate with distinct event semantics: the ledger
// mechanics are identical, only the emitted event differs.
func (e *Engine) AllocateBonus(caller [20]byte, eventID [32]byte, recipient [20]byte, amount *big.Int) (*Allocation, error) {
	return e.allocate(caller, eventID, recipient, amount, true)
}

func (e *Engine) allocate(caller [20]byte, eventID [32]byte, recipient [20]byte, amount *big.Int, bonus bool) (*Allocation, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if isZeroAddress(recipient) {
		return nil, ErrInvalidRecipient
	}
	if err := validAmount(amount); err != nil {
		return nil, err
	}

	lock := e.poolLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	pool, err := e.loadPool(eventID)
	if err != nil {
		return nil, err
	}
	if err := authorize(pool, caller); err != nil {
		return nil, err
	}
	if err := mutable(pool); err != nil {
		return nil, err
	}
	if pool.PoolAmount.Cmp(amount) < 0 {
		return nil, ErrInsufficientFunds
	}
	alloc, err := e.creditAllocation(pool, recipient, amount)
	if err != nil {
		return nil, err
	}
	if err := e.state.RewardPoolPut(pool); err != nil {
		return nil, err
	}
	if bonus {
		e.emit(events.RewardBonusDistributed{EventID: eventID, Recipient: recipient, Amount: cloneBigInt(amount)})
	} else {
		e.emit(events.RewardDistributed{EventID: eventID, Recipient: recipient, Amount: cloneBigInt(amount)})
	}
	return alloc.Clone(), nil
}

// creditAllocation moves amount from the pool remainder into the recipient's
// allocation. The caller persists the pool afterwards.
func (e *Engine) creditAllocation(pool *RewardPool, recipient [20]byte, amount *big.Int) (*Allocation, error) {
	alloc, ok, err := e.state.RewardAllocationGet(pool.EventID, recipient)
	if err != nil {
		return nil, err
	}
	if !ok || alloc == nil {
		alloc = &Allocation{EventID: pool.EventID, Participant: recipient, Amount: big.NewInt(0)}
	}
	if alloc.Claimed {
		// A claimed flag is permanent; topping up a claimed allocation would
		// strand the funds forever.
		return nil, ErrAlreadyClaimed
	}
	pool.PoolAmount = new(big.Int).Sub(pool.PoolAmount, amount)
	pool.AllocatedTotal = new(big.Int).Add(pool.AllocatedTotal, amount)
	alloc.Amount = new(big.Int).Add(alloc.Amount, amount)
	if err := e.state.RewardAllocationPut(alloc); err != nil {
		return nil, err
	}
	return alloc, nil
}

// AllocateBatch applies a set of allocations with all-or-nothing semantics:
// every pair is validated before any state changes, and the batch aborts on
// the first violation.
func (e *Engine) AllocateBatch(caller [20]byte, eventID [32]byte, recipients [][20]byte, amounts []*big.Int) (*RewardPool, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(recipients) != len(amounts) {
		return nil, ErrLengthMismatch
	}
	total := big.NewInt(0)
	for i := range recipients {
		if isZeroAddress(recipients[i]) {
			return nil, fmt.Errorf("%w: index %d", ErrInvalidRecipient, i)
		}
		if err := validAmount(amounts[i]); err != nil {
			return nil, fmt.Errorf("%w: index %d", err, i)
		}
		total = total.Add(total, amounts[i])
	}

	lock := e.poolLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	pool, err := e.loadPool(eventID)
	if err != nil {
		return nil, err
	}
	if err := authorize(pool, caller); err != nil {
		return nil, err
	}
	if err := mutable(pool); err != nil {
		return nil, err
	}
	if pool.PoolAmount.Cmp(total) < 0 {
		return nil, ErrInsufficientFunds
	}
	for i := range recipients {
		alloc, ok, err := e.state.RewardAllocationGet(eventID, recipients[i])
		if err != nil {
			return nil, err
		}
		if ok && alloc != nil && alloc.Claimed {
			return nil, fmt.Errorf("%w: index %d", ErrAlreadyClaimed, i)
		}
	}
	for i := range recipients {
		if _, err := e.creditAllocation(pool, recipients[i], amounts[i]); err != nil {
			return nil, err
		}
	}
	if err := e.state.RewardPoolPut(pool); err != nil {
		return nil, err
	}
	e.emit(events.RewardBatchDistributed{
		EventID:    eventID,
		Recipients: len(recipients),
		Total:      cloneBigInt(total),
	})
	return pool.Clone(), nil
}

// Claim pays out the participant's full allocation. The outbound transfer is
// confirmed before any state is persisted, so a failed transfer leaves the
// ledger untouched.
func (e *Engine) Claim(eventID [32]byte, participant [20]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if isZeroAddress(participant) {
		return nil, ErrInvalidRecipient
	}

	lock := e.poolLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	pool, err := e.loadPool(eventID)
	if err != nil {
		return nil, err
	}
	if err := mutable(pool); err != nil {
		return nil, err
	}
	exists, err := e.oracle.EventExists(eventID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrEventNotFound
	}
	participants, err := e.oracle.EventParticipants(eventID)
	if err != nil {
		return nil, err
	}
	member := false
	for _, p := range participants {
		if p == participant {
			member = true
			break
		}
	}
	if !member {
		return nil, ErrNotParticipant
	}
	alloc, ok, err := e.state.RewardAllocationGet(eventID, participant)
	if err != nil {
		return nil, err
	}
	if ok && alloc != nil && alloc.Claimed {
		return nil, ErrAlreadyClaimed
	}
	if !ok || alloc == nil || alloc.Amount == nil || alloc.Amount.Sign() == 0 {
		return nil, ErrNothingToClaim
	}
	amount := cloneBigInt(alloc.Amount)
	if err := e.port.Push(eventID, participant, pool.Kind, amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	alloc.Amount = big.NewInt(0)
	alloc.Claimed = true
	pool.AllocatedTotal = new(big.Int).Sub(pool.AllocatedTotal, amount)
	pool.ClaimedAmount = new(big.Int).Add(pool.ClaimedAmount, amount)
	if err := e.state.RewardAllocationPut(alloc); err != nil {
		return nil, err
	}
	if err := e.state.RewardPoolPut(pool); err != nil {
		return nil, err
	}
	e.emit(events.RewardClaimed{EventID: eventID, Participant: participant, Amount: amount})
	return amount, nil
}

// Reclaim settles the pool after the timeout: everything not already claimed
// (the unallocated remainder plus all outstanding allocations) is returned to
// the controller and the pool stops accepting claims. Outstanding allocations
// expire by design. Cancelled is set only when no claim ever happened.
func (e *Engine) Reclaim(caller [20]byte, eventID [32]byte) (*RewardPool, *big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}

	lock := e.poolLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	pool, err := e.loadPool(eventID)
	if err != nil {
		return nil, nil, err
	}
	if err := authorize(pool, caller); err != nil {
		return nil, nil, err
	}
	if err := mutable(pool); err != nil {
		return nil, nil, err
	}
	now := e.now()
	if now < pool.CreatedAt+int64(e.reclaimWindow/time.Second) {
		return nil, nil, ErrTimeoutNotReached
	}
	remainder := new(big.Int).Add(pool.PoolAmount, pool.AllocatedTotal)
	if remainder.Sign() > 0 {
		if err := e.port.Push(eventID, pool.Controller, pool.Kind, remainder); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}
	pool.Cancelled = pool.ClaimedAmount.Sign() == 0
	pool.PoolAmount = big.NewInt(0)
	pool.AllocatedTotal = big.NewInt(0)
	pool.ReclaimedAmount = new(big.Int).Add(pool.ReclaimedAmount, remainder)
	pool.ReclaimedAt = now
	if err := e.state.RewardPoolPut(pool); err != nil {
		return nil, nil, err
	}
	e.emit(events.RewardPoolWithdrawn{
		EventID:    pool.EventID,
		Controller: pool.Controller,
		Amount:     cloneBigInt(remainder),
		Cancelled:  pool.Cancelled,
	})
	return pool.Clone(), remainder, nil
}

// Pool returns a copy of the stored pool record.
func (e *Engine) Pool(eventID [32]byte) (*RewardPool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pool, err := e.loadPool(eventID)
	if err != nil {
		return nil, err
	}
	return pool.Clone(), nil
}

// AllocationOf returns the participant's current unclaimed allocation. A
// missing record reads as zero.
func (e *Engine) AllocationOf(eventID [32]byte, participant [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	alloc, ok, err := e.state.RewardAllocationGet(eventID, participant)
	if err != nil {
		return nil, err
	}
	if !ok || alloc == nil {
		return big.NewInt(0), nil
	}
	return cloneBigInt(alloc.Amount), nil
}

// AllocationsOf is the vectorised form of AllocationOf; the result preserves
// the input order.
func (e *Engine) AllocationsOf(eventID [32]byte, participants [][20]byte) ([]*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	out := make([]*big.Int, len(participants))
	for i, participant := range participants {
		amount, err := e.AllocationOf(eventID, participant)
		if err != nil {
			return nil, err
		}
		out[i] = amount
	}
	return out, nil
}
