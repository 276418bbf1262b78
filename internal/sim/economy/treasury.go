package economy

import "sync"

// Treasury is an in-process Economy. It is safe for concurrent readers so the
// transport can report funds while the session goroutine spends them.
type Treasury struct {
	mu       sync.Mutex
	funds    int64
	spent    int64
	refunded int64
}

// NewTreasury starts with the given funds; Unlimited never decreases.
func NewTreasury(funds int64) *Treasury {
	return &Treasury{funds: funds}
}

func (t *Treasury) CurrentFunds() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.funds
}

func (t *Treasury) Deduct(amount int64) {
	if amount <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spent += amount
	if t.funds != Unlimited {
		t.funds -= amount
	}
}

func (t *Treasury) Refund(amount int64) {
	if amount <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refunded += amount
	if t.funds != Unlimited {
		t.funds += amount
	}
}

// Totals returns the lifetime deducted and refunded amounts.
func (t *Treasury) Totals() (spent, refunded int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spent, t.refunded
}
