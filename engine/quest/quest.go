// Package quest implements the template engine and instance lifecycle:
// trigger matching, requirement gating, placeholder binding, objective and
// constraint tracking, and reward/consequence application through the
// reputation ledger.
package quest

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/nathoo/dungeonmind/engine/registry"
	"github.com/nathoo/dungeonmind/engine/reputation"
	"github.com/nathoo/dungeonmind/types"
)

var (
	// ErrDuplicateActiveQuest is an expected control-flow signal: the
	// matched template already has a non-terminal instance for the same
	// (quest-giver, template) key. No instance is created.
	ErrDuplicateActiveQuest = errors.New("duplicate active quest")

	ErrUnknownInstance = errors.New("unknown quest instance")
	ErrNotPending      = errors.New("quest instance is not pending")
	ErrNotActive       = errors.New("quest instance is not active")
)

// instanceKey prevents duplicate concurrent grants of one template by one
// quest giver.
type instanceKey struct {
	giver    string
	template string
}

// Engine owns the live quest instances. Terminal instances stay readable
// until Archive moves them to the archive list; no instance re-enters
// Active after leaving it.
type Engine struct {
	defs   *registry.Defs
	ledger *reputation.Ledger
	log    *slog.Logger

	mu        sync.Mutex
	instances map[string]*types.QuestInstance
	active    map[instanceKey]string // non-terminal instance per key
	archived  []*types.QuestInstance
	outcomes  []types.Outcome

	newID func() string
}

// NewEngine creates a quest engine over loaded definitions and a ledger.
// A nil logger discards output.
func NewEngine(defs *registry.Defs, ledger *reputation.Ledger, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		defs:      defs,
		ledger:    ledger,
		log:       log,
		instances: map[string]*types.QuestInstance{},
		active:    map[instanceKey]string{},
		newID:     uuid.NewString,
	}
}

// TryTrigger matches the event against templates in declaration order; the
// first template whose trigger matches and whose requirements pass wins.
// Returns the bound Pending instance, or nil when nothing matched, or
// ErrDuplicateActiveQuest when the winning template is already granted.
func (e *Engine) TryTrigger(event types.WorldEvent, snap *types.WorldSnapshot) (*types.QuestInstance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.defs.Templates {
		tpl := &e.defs.Templates[i]
		trig, ok := matchTrigger(tpl, event)
		if !ok {
			continue
		}
		if !e.requirementsPass(tpl, event.SubjectID, snap) {
			continue
		}

		k := instanceKey{giver: event.GiverID, template: tpl.ID}
		if _, exists := e.active[k]; exists {
			return nil, fmt.Errorf("%w: template %q for giver %q", ErrDuplicateActiveQuest, tpl.ID, event.GiverID)
		}

		inst := e.bind(tpl, trig, event)
		e.instances[inst.ID] = inst
		e.active[k] = inst.ID
		e.log.Info("quest instantiated",
			"instance", inst.ID, "template", tpl.ID, "giver", inst.GiverID, "subject", inst.SubjectID)
		return cloneInstance(inst), nil
	}

	return nil, nil
}

// matchTrigger returns the first trigger of tpl matching the event.
// Literal params must equal the event's; {placeholder} params only require
// the event param to be present (the value binds at instantiation).
func matchTrigger(tpl *types.QuestTemplate, event types.WorldEvent) (types.TriggerDef, bool) {
	for _, trig := range tpl.Triggers {
		if trig.Event != event.Type {
			continue
		}
		if paramsMatch(trig.Params, event.Params) {
			return trig, true
		}
	}
	return types.TriggerDef{}, false
}

func paramsMatch(want map[string]string, have map[string]string) bool {
	for k, v := range want {
		got, ok := have[k]
		if !ok {
			return false
		}
		if isBinding(v) {
			continue
		}
		if got != v {
			return false
		}
	}
	return true
}

// requirementsPass evaluates reputation thresholds (scaled by faction
// pride) and world-state predicates against the snapshot.
func (e *Engine) requirementsPass(tpl *types.QuestTemplate, subject string, snap *types.WorldSnapshot) bool {
	for _, req := range tpl.Requirements.Reputation {
		min, max := scaleBounds(req, e.defs.Modifiers.FactionPride[req.Faction])
		if !e.ledger.MeetsThreshold(subject, req.Faction, min, max) {
			return false
		}
	}
	for _, name := range tpl.Requirements.WorldState {
		ok, present := snap.Predicates[name]
		if !present {
			// Same recovery as condition evaluation: a missing world
			// answer is a failed requirement, not a crash.
			e.log.Warn("world snapshot missing predicate, requirement fails",
				"template", tpl.ID, "predicate", name)
			return false
		}
		if !ok {
			return false
		}
	}
	return true
}

// scaleBounds applies the faction pride coefficient to threshold bounds.
// Pride of 0 (absent faction) leaves bounds untouched.
func scaleBounds(req types.ReputationRequirement, pride float64) (*int, *int) {
	if pride == 0 || pride == 1 {
		return req.Min, req.Max
	}
	scale := func(p *int) *int {
		if p == nil {
			return nil
		}
		v := int(float64(*p) * pride)
		return &v
	}
	return scale(req.Min), scale(req.Max)
}

// Get returns a copy of an instance.
func (e *Engine) Get(instanceID string) (*types.QuestInstance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[instanceID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstance, instanceID)
	}
	return cloneInstance(inst), nil
}

// Active returns copies of all non-terminal instances, newest last.
func (e *Engine) Active() []*types.QuestInstance {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*types.QuestInstance
	for _, id := range e.activeIDsLocked() {
		out = append(out, cloneInstance(e.instances[id]))
	}
	return out
}

// Accept transitions a Pending instance to Active and starts its clock.
func (e *Engine) Accept(instanceID string) (*types.QuestInstance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[instanceID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstance, instanceID)
	}
	if inst.State != types.QuestPending {
		return nil, fmt.Errorf("%w: %q", ErrNotPending, instanceID)
	}
	inst.State = types.QuestActive
	inst.Clock = 0
	e.log.Info("quest accepted", "instance", inst.ID, "template", inst.Template)
	return cloneInstance(inst), nil
}

// Advance applies an objective event to an Active instance. Progress never
// exceeds the objective's target; completing every non-optional objective
// transitions the instance to Succeeded and applies rewards.
func (e *Engine) Advance(instanceID string, ev types.ObjectiveEvent) (*types.QuestInstance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[instanceID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstance, instanceID)
	}
	if inst.State != types.QuestActive {
		return nil, fmt.Errorf("%w: %q", ErrNotActive, instanceID)
	}

	tpl, err := e.defs.Template(inst.Template)
	if err != nil {
		return nil, err
	}

	for i := range tpl.Objectives {
		def := tpl.Objectives[i]
		prog := &inst.Objectives[i]
		if prog.Done || def.Kind != ev.Kind {
			continue
		}
		if target := substitute(def.Target, inst.Vars); target != "" && target != ev.Target {
			continue
		}

		switch def.Kind {
		case types.ObjectiveHoldTerritory, types.ObjectiveSurviveTrial:
			prog.Progress += ev.Elapsed
			if prog.Progress > def.Duration {
				prog.Progress = def.Duration
			}
			prog.Done = prog.Progress >= def.Duration
		default:
			n := ev.Count
			if n == 0 {
				n = 1
			}
			prog.Progress += n
			if prog.Progress > def.Count {
				prog.Progress = def.Count
			}
			prog.Done = prog.Progress >= def.Count
		}
		break
	}

	if requiredDone(&tpl, inst) {
		e.succeedLocked(inst, &tpl)
	}
	return cloneInstance(inst), nil
}

// TickClock advances an Active instance's clock and fails it when a
// time-limit constraint is breached, immediately and independent of
// objective progress.
func (e *Engine) TickClock(instanceID string, elapsed int) (*types.QuestInstance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[instanceID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstance, instanceID)
	}
	if inst.State != types.QuestActive {
		return cloneInstance(inst), nil
	}

	inst.Clock += elapsed
	if inst.Deadline > 0 && inst.Clock > inst.Deadline {
		tpl, err := e.defs.Template(inst.Template)
		if err != nil {
			return nil, err
		}
		cause := "time_limit"
		for _, con := range tpl.Constraints {
			if con.Kind == types.ConstraintTimeLimit && con.Consequence != "" {
				cause = con.Consequence
			}
		}
		e.failLocked(inst, &tpl, cause)
	}
	return cloneInstance(inst), nil
}

// TickAll advances the clock of every Active instance by elapsed ticks.
func (e *Engine) TickAll(elapsed int) {
	e.mu.Lock()
	ids := e.activeIDsLocked()
	e.mu.Unlock()
	for _, id := range ids {
		// Per-instance locking keeps the failure path simple.
		_, _ = e.TickClock(id, elapsed)
	}
}

// RecordBreach fails an Active instance that carries a constraint of the
// given kind. Instances without that constraint ignore the breach.
func (e *Engine) RecordBreach(instanceID string, kind types.ConstraintKind) (*types.QuestInstance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[instanceID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstance, instanceID)
	}
	if inst.State != types.QuestActive {
		return cloneInstance(inst), nil
	}

	tpl, err := e.defs.Template(inst.Template)
	if err != nil {
		return nil, err
	}
	for _, con := range tpl.Constraints {
		if con.Kind != kind {
			continue
		}
		cause := con.Consequence
		if cause == "" {
			cause = constraintName(kind)
		}
		e.failLocked(inst, &tpl, cause)
		break
	}
	return cloneInstance(inst), nil
}

// Archive moves a terminal instance to the archive. The window between the
// terminal transition and archival is the host's chance to present the
// outcome.
func (e *Engine) Archive(instanceID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[instanceID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownInstance, instanceID)
	}
	if inst.State != types.QuestSucceeded && inst.State != types.QuestFailed {
		return fmt.Errorf("instance %q is not terminal", instanceID)
	}
	inst.State = types.QuestArchived
	e.archived = append(e.archived, inst)
	delete(e.instances, instanceID)
	return nil
}

// DrainOutcomes returns outcomes emitted since the last drain. The host's
// loot and world-effect collaborators consume these.
func (e *Engine) DrainOutcomes() []types.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.outcomes
	e.outcomes = nil
	return out
}

// succeedLocked applies rewards (including bonuses of completed optional
// objectives) through the ledger and emits the outcome.
func (e *Engine) succeedLocked(inst *types.QuestInstance, tpl *types.QuestTemplate) {
	inst.State = types.QuestSucceeded
	delete(e.active, instanceKey{giver: inst.GiverID, template: inst.Template})

	deltas := map[string]int{}
	for faction, d := range tpl.Rewards.Reputation {
		deltas[faction] += d
	}
	material := append([]types.MaterialRange(nil), tpl.Rewards.Material...)
	for i, def := range tpl.Objectives {
		if !def.Optional || !inst.Objectives[i].Done {
			continue
		}
		for faction, d := range def.BonusReputation {
			deltas[faction] += d
		}
		material = append(material, def.BonusMaterial...)
	}
	for faction, d := range deltas {
		e.ledger.ApplyDelta(inst.SubjectID, faction, d)
	}

	e.outcomes = append(e.outcomes, types.Outcome{
		InstanceID:   inst.ID,
		Template:     inst.Template,
		State:        types.QuestSucceeded,
		Reputation:   deltas,
		WorldEffects: append([]string(nil), tpl.Rewards.WorldEffects...),
		Material:     material,
	})
	e.log.Info("quest succeeded", "instance", inst.ID, "template", inst.Template)
}

// failLocked applies failure consequences and emits the outcome.
func (e *Engine) failLocked(inst *types.QuestInstance, tpl *types.QuestTemplate, cause string) {
	inst.State = types.QuestFailed
	inst.FailCause = cause
	delete(e.active, instanceKey{giver: inst.GiverID, template: inst.Template})

	deltas := map[string]int{}
	for faction, d := range tpl.FailureConsequences.Reputation {
		deltas[faction] += d
		e.ledger.ApplyDelta(inst.SubjectID, faction, d)
	}

	e.outcomes = append(e.outcomes, types.Outcome{
		InstanceID:   inst.ID,
		Template:     inst.Template,
		State:        types.QuestFailed,
		Reputation:   deltas,
		WorldEffects: append([]string(nil), tpl.FailureConsequences.WorldEffects...),
		Material:     append([]types.MaterialRange(nil), tpl.FailureConsequences.Material...),
	})
	e.log.Info("quest failed", "instance", inst.ID, "template", inst.Template, "cause", cause)
}

// requiredDone reports whether every non-optional objective is complete.
func requiredDone(tpl *types.QuestTemplate, inst *types.QuestInstance) bool {
	for i, def := range tpl.Objectives {
		if !def.Optional && !inst.Objectives[i].Done {
			return false
		}
	}
	return len(tpl.Objectives) > 0
}

func (e *Engine) activeIDsLocked() []string {
	var ids []string
	for _, inst := range e.instances {
		if inst.State == types.QuestPending || inst.State == types.QuestActive {
			ids = append(ids, inst.ID)
		}
	}
	// Stable order for deterministic iteration.
	sort.Strings(ids)
	return ids
}

func constraintName(kind types.ConstraintKind) string {
	switch kind {
	case types.ConstraintTimeLimit:
		return "time_limit"
	case types.ConstraintStealth:
		return "stealth"
	case types.ConstraintNoHarm:
		return "no_harm"
	default:
		return "constraint"
	}
}

func cloneInstance(inst *types.QuestInstance) *types.QuestInstance {
	c := *inst
	c.Vars = map[string]string{}
	for k, v := range inst.Vars {
		c.Vars[k] = v
	}
	c.Objectives = append([]types.ObjectiveProgress(nil), inst.Objectives...)
	return &c
}
