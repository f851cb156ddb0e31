// Package reputation implements the faction reputation ledger: a bounded
// score per (subject, faction) pair, mutated only through recorded deltas.
// The ledger is an explicit object handed to its consumers, never a process
// global, so tests build isolated ledgers and hosts persist them directly.
package reputation

import (
	"sync"

	"github.com/nathoo/dungeonmind/types"
)

type key struct {
	subject string
	faction string
}

// Ledger maps (subject, faction) to a clamped score. Only current scores
// are stored, no history; callers needing an audit trail log deltas
// themselves. Safe for concurrent use by a multi-threaded turn loop.
type Ledger struct {
	mu     sync.RWMutex
	scores map[key]int
}

// NewLedger creates an empty ledger. Every pair starts at 0.
func NewLedger() *Ledger {
	return &Ledger{scores: map[key]int{}}
}

// Get returns the current score for a pair. Unseen pairs are 0, not an error.
func (l *Ledger) Get(subject, faction string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.scores[key{subject, faction}]
}

// ApplyDelta applies a signed delta and returns the post-clamp score.
// Clamping to [ReputationMin, ReputationMax] is silent: deltas that would
// overflow the bound are truncated, never rejected.
func (l *Ledger) ApplyDelta(subject, faction string, delta int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := key{subject, faction}
	v := clamp(l.scores[k] + delta)
	l.scores[k] = v
	return v
}

// MeetsThreshold reports whether the pair's score lies within [min, max].
// A nil bound is unbounded on that side.
func (l *Ledger) MeetsThreshold(subject, faction string, min, max *int) bool {
	v := l.Get(subject, faction)
	if min != nil && v < *min {
		return false
	}
	if max != nil && v > *max {
		return false
	}
	return true
}

// Snapshot exports all non-zero scores as subject → faction → score,
// for serialization. The result is a deep copy.
func (l *Ledger) Snapshot() map[string]map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := map[string]map[string]int{}
	for k, v := range l.scores {
		if v == 0 {
			continue
		}
		m, ok := out[k.subject]
		if !ok {
			m = map[string]int{}
			out[k.subject] = m
		}
		m[k.faction] = v
	}
	return out
}

// Restore replaces the ledger contents with a snapshot, re-clamping every
// score so a hand-edited or stale save can never break the bound invariant.
func (l *Ledger) Restore(snap map[string]map[string]int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scores = map[key]int{}
	for subject, factions := range snap {
		for faction, v := range factions {
			l.scores[key{subject, faction}] = clamp(v)
		}
	}
}

func clamp(v int) int {
	if v < types.ReputationMin {
		return types.ReputationMin
	}
	if v > types.ReputationMax {
		return types.ReputationMax
	}
	return v
}
