// Package watchlist tracks which instruments the trading loop evaluates.
//
// Membership follows recommendation batches with hysteresis: an instrument
// must miss two consecutive batches from its own origin range before it is
// dropped, and instruments with open positions are never dropped.
package watchlist

import (
	"sort"

	"trading-bot/internal/recommend"
)

// maxAbsence is how many consecutive same-range batches an entry may miss
// before eviction.
const maxAbsence = 2

// Entry is one tracked instrument.
type Entry struct {
	Market  string
	Absence int
	Origin  recommend.Range
}

// Table holds watchlist entries. It is not safe for concurrent use; the
// orchestrator's state lock owns it.
type Table struct {
	entries map[string]*Entry
}

// NewTable builds an empty watchlist.
func NewTable() *Table {
	return &Table{entries: make(map[string]*Entry)}
}

// Admit adds a market from the given origin range, or refreshes it if
// already tracked (absence resets, origin is re-stamped).
func (t *Table) Admit(market string, origin recommend.Range) {
	if e, ok := t.entries[market]; ok {
		e.Absence = 0
		e.Origin = origin
		return
	}
	t.entries[market] = &Entry{Market: market, Origin: origin}
}

// Apply reconciles the table against a recommendation batch drawn from
// origin. Batch members are admitted or refreshed. Entries from the same
// origin range that missed the batch gain an absence strike and are evicted
// on the second, unless protected reports an open position. Entries from
// other origin ranges are untouched: the batch is no evidence about them.
// Returns the evicted markets.
func (t *Table) Apply(batch []string, origin recommend.Range, protected func(market string) bool) []string {
	seen := make(map[string]bool, len(batch))
	for _, m := range batch {
		seen[m] = true
		t.Admit(m, origin)
	}

	var evicted []string
	for market, e := range t.entries {
		if e.Origin != origin || seen[market] {
			continue
		}
		e.Absence++
		if e.Absence >= maxAbsence && !protected(market) {
			delete(t.entries, market)
			evicted = append(evicted, market)
		}
	}
	sort.Strings(evicted)
	return evicted
}

// Remove deletes a market outright (manual toggle, position close).
func (t *Table) Remove(market string) bool {
	if _, ok := t.entries[market]; !ok {
		return false
	}
	delete(t.entries, market)
	return true
}

// Contains reports whether a market is tracked.
func (t *Table) Contains(market string) bool {
	_, ok := t.entries[market]
	return ok
}

// Markets returns tracked markets in sorted order.
func (t *Table) Markets() []string {
	out := make([]string, 0, len(t.entries))
	for m := range t.entries {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Entries returns a snapshot of all entries, sorted by market.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Market < out[j].Market })
	return out
}

// Len returns the number of tracked markets.
func (t *Table) Len() int {
	return len(t.entries)
}
