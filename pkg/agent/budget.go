package agent

import (
	"errors"
	"sync"
)

// ErrBudgetExhausted signals that the shared iteration budget ran out. The
// pipeline treats this as a stop condition, not a failure.
var ErrBudgetExhausted = errors.New("iteration budget exhausted")

// Budget is the iteration allowance shared by every agent in one run. Each
// LLM call consumes one unit.
type Budget struct {
	mu        sync.Mutex
	remaining int
}

// NewBudget creates a budget with n iterations.
func NewBudget(n int) *Budget {
	return &Budget{remaining: n}
}

// Take consumes one iteration. Returns false when the budget is exhausted.
func (b *Budget) Take() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

// Remaining returns the number of iterations left.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}
