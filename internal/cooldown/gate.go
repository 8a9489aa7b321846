// Package cooldown blocks immediate re-entry after a position closes.
//
// The release condition depends on how the position ended. After a profit
// the price must pull back below the exit before re-buying; after a loss it
// must recover above the exit. Either way the gate only opens once the
// market has moved a configurable gap away from the exit price, which stops
// the loop from churning the same level.
package cooldown

import (
	"sort"
	"time"
)

// Reason records how the position that armed the cooldown ended.
type Reason string

const (
	ReasonProfit Reason = "profit"
	ReasonLoss   Reason = "loss"
)

// Entry is one armed cooldown.
type Entry struct {
	Market    string
	ExitPrice float64
	Reason    Reason
	Since     time.Time
}

// Table holds cooldown entries keyed by market. It is not safe for
// concurrent use; the orchestrator's state lock owns it.
type Table struct {
	gap     float64
	entries map[string]Entry
	now     func() time.Time
}

// NewTable builds a gate with the given re-buy gap (e.g. 0.015 = 1.5%).
func NewTable(gap float64) *Table {
	return &Table{
		gap:     gap,
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// Arm replaces any existing cooldown for market.
func (t *Table) Arm(market string, exitPrice float64, reason Reason) {
	t.entries[market] = Entry{
		Market:    market,
		ExitPrice: exitPrice,
		Reason:    reason,
		Since:     t.now(),
	}
}

// Allow reports whether market may be re-entered at price. A market with no
// cooldown is always allowed. When the release condition holds, the entry is
// removed and subsequent calls are unconditionally allowed.
func (t *Table) Allow(market string, price float64) bool {
	e, ok := t.entries[market]
	if !ok {
		return true
	}

	var released bool
	switch e.Reason {
	case ReasonProfit:
		released = price < e.ExitPrice*(1-t.gap)
	case ReasonLoss:
		released = price > e.ExitPrice*(1+t.gap)
	}
	if released {
		delete(t.entries, market)
	}
	return released
}

// Active reports whether market currently has an armed cooldown.
func (t *Table) Active(market string) bool {
	_, ok := t.entries[market]
	return ok
}

// Clear drops the cooldown for market, if any.
func (t *Table) Clear(market string) {
	delete(t.entries, market)
}

// Entries returns a snapshot sorted by market.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Market < out[j].Market })
	return out
}

// Len returns the number of armed cooldowns.
func (t *Table) Len() int {
	return len(t.entries)
}
