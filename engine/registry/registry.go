// Package registry holds the immutable definitions compiled from the
// content documents: archetypes, the behavior tree node arena, conditions,
// actions, and quest templates. Everything here is read-only after load and
// safe for unsynchronized concurrent reads.
package registry

import (
	"errors"
	"fmt"

	"github.com/nathoo/dungeonmind/types"
)

// Lookup failures. These indicate content bugs and are surfaced to the
// host, never silently ignored.
var (
	ErrUnknownArchetype = errors.New("unknown archetype")
	ErrUnknownTree      = errors.New("unknown behavior tree")
	ErrUnknownCondition = errors.New("unknown condition")
	ErrUnknownAction    = errors.New("unknown action")
	ErrUnknownTemplate  = errors.New("unknown quest template")
)

// Defs holds all compiled definitions. Trees share a single node arena;
// actors hold only root indices, never copies.
type Defs struct {
	Archetypes map[string]types.Archetype
	Trees      map[string]types.Tree
	Nodes      []types.Node
	Conditions map[string]types.ConditionDef
	Actions    map[string]types.ActionDef

	// Templates keeps declaration order: trigger matching walks this slice
	// and the first eligible template wins.
	Templates     []types.QuestTemplate
	TemplateIndex map[string]int

	Variables map[string][]string // placeholder pools
	Modifiers types.DynamicModifiers
}

// Archetype returns the archetype for an ID.
func (d *Defs) Archetype(id string) (types.Archetype, error) {
	a, ok := d.Archetypes[id]
	if !ok {
		return types.Archetype{}, fmt.Errorf("%w: %q", ErrUnknownArchetype, id)
	}
	return a, nil
}

// Tree returns the behavior tree for an ID.
func (d *Defs) Tree(id string) (types.Tree, error) {
	t, ok := d.Trees[id]
	if !ok {
		return types.Tree{}, fmt.Errorf("%w: %q", ErrUnknownTree, id)
	}
	return t, nil
}

// Condition returns the condition definition for a name.
func (d *Defs) Condition(name string) (types.ConditionDef, error) {
	c, ok := d.Conditions[name]
	if !ok {
		return types.ConditionDef{}, fmt.Errorf("%w: %q", ErrUnknownCondition, name)
	}
	return c, nil
}

// Action returns the action definition for a name.
func (d *Defs) Action(name string) (types.ActionDef, error) {
	a, ok := d.Actions[name]
	if !ok {
		return types.ActionDef{}, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	return a, nil
}

// Template returns the quest template for an ID.
func (d *Defs) Template(id string) (types.QuestTemplate, error) {
	i, ok := d.TemplateIndex[id]
	if !ok {
		return types.QuestTemplate{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
	}
	return d.Templates[i], nil
}

// MergePersonality layers a per-instance delta on top of a base personality,
// clamping every combined trait to [0,1].
func MergePersonality(base, delta types.Personality) types.Personality {
	return types.Personality{
		Aggression:    clamp01(base.Aggression + delta.Aggression),
		Caution:       clamp01(base.Caution + delta.Caution),
		Curiosity:     clamp01(base.Curiosity + delta.Curiosity),
		Loyalty:       clamp01(base.Loyalty + delta.Loyalty),
		FearThreshold: clamp01(base.FearThreshold + delta.FearThreshold),
		PainTolerance: clamp01(base.PainTolerance + delta.PainTolerance),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
