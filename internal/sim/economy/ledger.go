package economy

import "math"

const (
	// Unlimited is the funds value of an economy that never runs out; strokes
	// against it are free.
	Unlimited = math.MaxInt64
	// MaxStrokeCost caps the spend of a single stroke.
	MaxStrokeCost = math.MaxInt32

	DefaultCostMultiplier = 500
	// MaxCostMultiplier keeps a full-range cell edit within int64.
	MaxCostMultiplier = math.MaxInt64 / math.MaxUint16
)

// Economy is the resource collaborator the editor charges and refunds.
type Economy interface {
	CurrentFunds() int64
	Deduct(amount int64)
	Refund(amount int64)
}

// Ledger accumulates the cost of the active stroke against a funds snapshot
// taken when the stroke began.
type Ledger struct {
	multiplier int64

	funds     int64
	free      bool
	total     int64
	exhausted bool
}

func NewLedger(multiplier int64) *Ledger {
	if multiplier < 0 {
		multiplier = 0
	}
	return &Ledger{multiplier: multiplier}
}

func (l *Ledger) Multiplier() int64 { return l.multiplier }

// Begin starts a new stroke. funds is not re-read until the next Begin.
func (l *Ledger) Begin(funds int64, free bool) {
	l.funds = funds
	l.free = free || funds == Unlimited
	l.total = 0
	l.exhausted = false
}

// Cost is the price of changing one sample from old to next.
func (l *Ledger) Cost(old, next uint16) int64 {
	d := int64(next) - int64(old)
	if d < 0 {
		d = -d
	}
	return d * l.multiplier
}

// Propose reports whether a single cell edit is affordable and, if so, books it.
// After the first rejection every later proposal of the stroke is rejected too.
func (l *Ledger) Propose(old, next uint16) bool {
	if l.free {
		return true
	}
	if l.exhausted {
		return false
	}
	sum := l.total + l.Cost(old, next)
	if sum < l.funds && sum < MaxStrokeCost {
		l.total = sum
		return true
	}
	l.exhausted = true
	return false
}

func (l *Ledger) Total() int64    { return l.total }
func (l *Ledger) Free() bool      { return l.free }
func (l *Ledger) Exhausted() bool { return l.exhausted }

// Settle charges the stroke total to e and resets the ledger. It returns the
// amount charged; free strokes charge nothing.
func (l *Ledger) Settle(e Economy) int64 {
	total := l.total
	free := l.free
	l.Discard()
	if free || total == 0 {
		return 0
	}
	e.Deduct(total)
	return total
}

// Discard drops the pending stroke cost without charging it.
func (l *Ledger) Discard() {
	l.total = 0
	l.exhausted = false
	l.free = false
	l.funds = 0
}

// Refund returns amount to e unless free is set.
func Refund(e Economy, amount int64, free bool) bool {
	if free || amount == 0 {
		return false
	}
	e.Refund(amount)
	return true
}
