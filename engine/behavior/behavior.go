// Package behavior implements the behavior tree interpreter: a single
// synchronous depth-first walk per actor per tick that yields at most one
// action intent. Trees live in the registry arena and are read-only, so the
// same tree may be walked concurrently for different actors; all working
// state stays on the call stack.
package behavior

import (
	"fmt"
	"math"

	"github.com/nathoo/dungeonmind/engine/conditions"
	"github.com/nathoo/dungeonmind/engine/registry"
	"github.com/nathoo/dungeonmind/types"
)

// Interpreter walks behavior trees against world snapshots.
type Interpreter struct {
	defs *registry.Defs
	eval *conditions.Evaluator
}

// New creates an interpreter over loaded definitions.
func New(defs *registry.Defs, eval *conditions.Evaluator) *Interpreter {
	return &Interpreter{defs: defs, eval: eval}
}

// TraceStep records one visited node during a traced decision.
type TraceStep struct {
	Node  int
	Kind  types.NodeKind
	Label string // condition or action name, empty for composites
	Pass  bool
}

// Decide walks the actor's behavior tree once and returns the chosen
// action intent, or nil when no branch succeeds. A tree that produces no
// successful leaf yields "no action" for the tick, never an error.
// Errors indicate content bugs (unknown archetype/condition/action).
func (in *Interpreter) Decide(actor types.ActorView, snap *types.WorldSnapshot) (*types.ActionIntent, error) {
	intent, _, err := in.decide(actor, snap, false)
	return intent, err
}

// DecideTraced is Decide plus a record of every node visited, for the
// inspector and debugging. The trace is rebuilt per call; nothing is
// retained between decisions.
func (in *Interpreter) DecideTraced(actor types.ActorView, snap *types.WorldSnapshot) (*types.ActionIntent, []TraceStep, error) {
	return in.decide(actor, snap, true)
}

func (in *Interpreter) decide(actor types.ActorView, snap *types.WorldSnapshot, traced bool) (*types.ActionIntent, []TraceStep, error) {
	arch, err := in.defs.Archetype(actor.Archetype)
	if err != nil {
		return nil, nil, err
	}
	tree, err := in.defs.Tree(arch.BehaviorTree)
	if err != nil {
		return nil, nil, err
	}

	w := walk{in: in, actor: actor, snap: snap, traced: traced}
	intent, err := w.node(tree.Root)
	if err != nil {
		return nil, nil, err
	}
	return intent, w.trace, nil
}

// walk carries the per-decision state. Nothing here outlives the call.
type walk struct {
	in     *Interpreter
	actor  types.ActorView
	snap   *types.WorldSnapshot
	traced bool
	trace  []TraceStep
}

func (w *walk) record(idx int, n types.Node, label string, pass bool) {
	if w.traced {
		w.trace = append(w.trace, TraceStep{Node: idx, Kind: n.Kind, Label: label, Pass: pass})
	}
}

// node evaluates one arena node. A nil intent with nil error is failure.
func (w *walk) node(idx int) (*types.ActionIntent, error) {
	n := w.in.defs.Nodes[idx]

	switch n.Kind {
	case types.NodeSelector:
		// First succeeding child wins, in declaration order.
		for _, c := range n.Children {
			intent, err := w.node(c)
			if err != nil {
				return nil, err
			}
			if intent != nil {
				w.record(idx, n, "", true)
				return intent, nil
			}
		}
		w.record(idx, n, "", false)
		return nil, nil

	case types.NodeSequence:
		// Every child must succeed; the sequence surfaces its final
		// child's intent. A failure anywhere discards the partial result.
		var last *types.ActionIntent
		for _, c := range n.Children {
			intent, err := w.node(c)
			if err != nil {
				return nil, err
			}
			if intent == nil {
				w.record(idx, n, "", false)
				return nil, nil
			}
			last = intent
		}
		w.record(idx, n, "", true)
		return last, nil

	case types.NodeGate:
		pass, err := w.in.eval.Eval(n.Condition, w.actor, w.snap)
		if err != nil {
			return nil, err
		}
		w.record(idx, n, n.Condition, pass)
		if !pass {
			return nil, nil
		}
		return w.node(n.Children[0])

	case types.NodeLeaf:
		act, err := w.in.defs.Action(n.Action)
		if err != nil {
			// Leaves are validated at load time; reaching this means the
			// defs were built by hand and skipped validation.
			return nil, err
		}
		w.record(idx, n, n.Action, true)
		intent := &types.ActionIntent{
			ActorID: w.actor.ID,
			Action:  act.Name,
			Kind:    act.Kind,
		}
		intent.TargetID = w.bindTarget(act)
		return intent, nil

	default:
		return nil, fmt.Errorf("node %d has unhandled kind %d", idx, n.Kind)
	}
}

// bindTarget picks a target for actions that want one: the nearest hostile
// sighting, restricted to the action's range when it has one. Navigation
// and no-op actions carry no target; movement destinations belong to the
// host's pathfinding, which is out of scope here.
func (w *walk) bindTarget(act types.ActionDef) string {
	switch act.Kind {
	case types.ActionNavigation, types.ActionNoOp:
		return ""
	}

	best := ""
	bestDist := math.MaxFloat64
	for _, d := range w.snap.Sightings {
		if !d.Hostile {
			continue
		}
		if act.Range > 0 && d.Distance > act.Range {
			continue
		}
		if d.Distance < bestDist {
			best = d.EntityID
			bestDist = d.Distance
		}
	}
	return best
}
