// Package sim provides a scripted world backing the CLI and TUI: signal
// values, sightings and predicates are set by hand, and material rewards
// resolve through a seeded RNG so runs are reproducible.
package sim

import (
	"math/rand"
	"sync"

	"github.com/nathoo/dungeonmind/types"
)

// World is an in-memory world model. It implements both the world-query
// and reward-resolver boundaries of the engine.
type World struct {
	mu         sync.RWMutex
	signals    map[string]map[string]float64 // actor -> signal -> value
	sightings  map[string][]types.Detection  // actor -> sightings
	predicates map[string]bool
	effects    []string
	rng        *rand.Rand
}

// NewWorld creates an empty world with a seeded reward RNG.
func NewWorld(seed int64) *World {
	return &World{
		signals:    map[string]map[string]float64{},
		sightings:  map[string][]types.Detection{},
		predicates: map[string]bool{},
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// SetSignal sets one signal value for an actor.
func (w *World) SetSignal(actorID, signal string, value float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	m, ok := w.signals[actorID]
	if !ok {
		m = map[string]float64{}
		w.signals[actorID] = m
	}
	m[signal] = value
}

// ClearSignal removes a signal so the engine sees it as unavailable.
func (w *World) ClearSignal(actorID, signal string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.signals[actorID], signal)
}

// AddSighting appends a detection to an actor's perception.
func (w *World) AddSighting(actorID string, d types.Detection) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sightings[actorID] = append(w.sightings[actorID], d)
}

// ClearSightings empties an actor's perception.
func (w *World) ClearSightings(actorID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.sightings, actorID)
}

// SetPredicate sets a named world-state predicate.
func (w *World) SetPredicate(name string, v bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.predicates[name] = v
}

func (w *World) signal(actorID, name string) (float64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v, ok := w.signals[actorID][name]
	return v, ok
}

func (w *World) HealthFraction(entityID string) (float64, bool) {
	return w.signal(entityID, types.SignalHealthFraction)
}

func (w *World) ManaFraction(entityID string) (float64, bool) {
	return w.signal(entityID, types.SignalManaFraction)
}

func (w *World) ThreatRatio(entityID string) (float64, bool) {
	return w.signal(entityID, types.SignalThreatRatio)
}

func (w *World) Perceive(entityID string) []types.Detection {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]types.Detection(nil), w.sightings[entityID]...)
}

func (w *World) Predicate(name string) (ok, known bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v, found := w.predicates[name]
	return v, found
}

// ResolveMaterial rolls a concrete amount inside the range.
func (w *World) ResolveMaterial(r types.MaterialRange) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + w.rng.Intn(r.Max-r.Min+1)
}

// ApplyWorldEffect records an effect tag; the sim has no terrain to mutate.
func (w *World) ApplyWorldEffect(tag string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.effects = append(w.effects, tag)
}

// Effects returns the world-effect tags applied so far.
func (w *World) Effects() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]string(nil), w.effects...)
}
