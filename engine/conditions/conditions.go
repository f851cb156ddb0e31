// Package conditions evaluates named predicates against an actor view and
// a world snapshot. Evaluation is pure: no side effects, no world mutation.
package conditions

import (
	"fmt"
	"log/slog"

	"github.com/nathoo/dungeonmind/engine/registry"
	"github.com/nathoo/dungeonmind/types"
)

// Evaluator resolves condition names against the loaded definitions.
// Safe for concurrent use; it holds only read-only state.
type Evaluator struct {
	defs *registry.Defs
	log  *slog.Logger
}

// NewEvaluator creates an evaluator. A nil logger discards output.
func NewEvaluator(defs *registry.Defs, log *slog.Logger) *Evaluator {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Evaluator{defs: defs, log: log}
}

// Eval evaluates the named condition. An unregistered name is a content
// bug and returns an error. A missing world-query signal is recovered as a
// false result and logged; a missing signal must never crash an NPC's turn.
func (e *Evaluator) Eval(name string, actor types.ActorView, snap *types.WorldSnapshot) (bool, error) {
	cond, ok := e.defs.Conditions[name]
	if !ok {
		return false, fmt.Errorf("%w: %q", registry.ErrUnknownCondition, name)
	}
	return e.eval(cond, actor, snap)
}

func (e *Evaluator) eval(cond types.ConditionDef, actor types.ActorView, snap *types.WorldSnapshot) (bool, error) {
	switch cond.Kind {
	case types.CondHealthFraction:
		return e.compareSignal(cond, snap, types.SignalHealthFraction)

	case types.CondMana:
		return e.compareSignal(cond, snap, types.SignalManaFraction)

	case types.CondThreatRatio:
		return e.compareSignal(cond, snap, types.SignalThreatRatio)

	case types.CondEnemyInSight:
		for _, d := range snap.Sightings {
			if d.Hostile && d.Distance <= cond.Radius {
				return true, nil
			}
		}
		return false, nil

	case types.CondItemDetection:
		for _, d := range snap.Sightings {
			if d.ItemTag == "" || d.Distance > cond.Radius {
				continue
			}
			if cond.Item == "" || cond.Item == d.ItemTag {
				return true, nil
			}
		}
		return false, nil

	case types.CondFactionMemberEndangered:
		for _, d := range snap.Sightings {
			if d.Endangered && d.Faction == actor.Faction && d.Distance <= cond.Radius {
				return true, nil
			}
		}
		return false, nil

	case types.CondAllOf:
		// Short-circuit on first false.
		for _, sub := range cond.Sub {
			ok, err := e.Eval(sub, actor, snap)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case types.CondAnyOf:
		// Short-circuit on first true.
		for _, sub := range cond.Sub {
			ok, err := e.Eval(sub, actor, snap)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	default:
		return false, fmt.Errorf("condition %q has unhandled kind %d", cond.Name, cond.Kind)
	}
}

// compareSignal applies the condition's comparison to a snapshot signal.
// Absence of the signal is the recovered evaluation-error path.
func (e *Evaluator) compareSignal(cond types.ConditionDef, snap *types.WorldSnapshot, signal string) (bool, error) {
	v, ok := snap.Signals[signal]
	if !ok {
		e.log.Warn("world snapshot missing signal, condition evaluates false",
			"condition", cond.Name, "signal", signal)
		return false, nil
	}
	switch cond.Op {
	case types.CmpLess:
		return v < cond.Value, nil
	case types.CmpGreater:
		return v > cond.Value, nil
	case types.CmpEqual:
		return v == cond.Value, nil
	default:
		return false, fmt.Errorf("condition %q has unhandled comparison op %d", cond.Name, cond.Op)
	}
}
