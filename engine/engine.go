// Package engine wires the registry, condition evaluator, behavior tree
// interpreter, reputation ledger and quest engine into the runtime boundary
// the host's turn loop consumes.
package engine

import (
	"log/slog"

	"github.com/nathoo/dungeonmind/engine/behavior"
	"github.com/nathoo/dungeonmind/engine/conditions"
	"github.com/nathoo/dungeonmind/engine/quest"
	"github.com/nathoo/dungeonmind/engine/registry"
	"github.com/nathoo/dungeonmind/engine/reputation"
	"github.com/nathoo/dungeonmind/types"
)

// WorldQuery is the boundary the engine consumes from the world service.
// The engine never computes geometry or entity state itself; it only
// filters and compares what this interface reports. The second return of
// the signal methods reports availability; a missing signal downgrades to
// a false condition, never an error.
type WorldQuery interface {
	HealthFraction(entityID string) (float64, bool)
	ManaFraction(entityID string) (float64, bool)
	ThreatRatio(entityID string) (float64, bool)
	// Perceive reports entity and item sightings around an actor, with
	// the spatial and ownership tests already applied.
	Perceive(entityID string) []types.Detection
	// Predicate answers a named world-state question for quest
	// requirements.
	Predicate(name string) (ok, known bool)
}

// RewardResolver is the loot/world collaborator that turns material
// ranges into concrete values and applies world-effect tags. The engine
// itself never rolls loot.
type RewardResolver interface {
	ResolveMaterial(r types.MaterialRange) int
	ApplyWorldEffect(tag string)
}

// ResolvedReward is one material reward after resolution.
type ResolvedReward struct {
	Kind   string
	Amount int
}

// QuestReport pairs a terminal quest outcome with its resolved rewards.
type QuestReport struct {
	Outcome   types.Outcome
	Materials []ResolvedReward
}

// TickResult is everything one engine tick produced.
type TickResult struct {
	Intents []types.ActionIntent
	Reports []QuestReport
	// Errors holds per-actor content bugs (unknown archetype, condition
	// or action). One broken actor never stops the other turns, but the
	// bug is surfaced here, never swallowed.
	Errors []error
}

// Engine is the decision and consequence core.
type Engine struct {
	Defs   *registry.Defs
	Ledger *reputation.Ledger
	Quests *quest.Engine

	interp  *behavior.Interpreter
	world   WorldQuery
	rewards RewardResolver
	log     *slog.Logger

	// actors in creation order: tie-breaking between NPCs contesting the
	// same resource must be reproducible.
	actors []types.ActorView
	tick   int
}

// New creates an engine over loaded definitions. world may be nil when the
// host builds snapshots itself; rewards may be nil when no loot
// collaborator is attached; a nil logger discards output.
func New(defs *registry.Defs, ledger *reputation.Ledger, world WorldQuery, rewards RewardResolver, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	eval := conditions.NewEvaluator(defs, log)
	return &Engine{
		Defs:    defs,
		Ledger:  ledger,
		Quests:  quest.NewEngine(defs, ledger, log),
		interp:  behavior.New(defs, eval),
		world:   world,
		rewards: rewards,
		log:     log,
	}
}

// AddActor registers an actor for the tick loop. Iteration order is
// creation order, permanently.
func (e *Engine) AddActor(actor types.ActorView) {
	e.actors = append(e.actors, actor)
}

// Actors returns the registered actors in creation order.
func (e *Engine) Actors() []types.ActorView {
	return append([]types.ActorView(nil), e.actors...)
}

// Decide walks one actor's tree against a host-built snapshot and returns
// at most one action intent. Nil means no action this tick.
func (e *Engine) Decide(actor types.ActorView, snap *types.WorldSnapshot) (*types.ActionIntent, error) {
	return e.interp.Decide(actor, snap)
}

// DecideTraced is Decide with the visited-node trace, for inspection.
func (e *Engine) DecideTraced(actor types.ActorView, snap *types.WorldSnapshot) (*types.ActionIntent, []behavior.TraceStep, error) {
	return e.interp.DecideTraced(actor, snap)
}

// OnEvent feeds a world event to the quest engine. The returned instance
// (if any) is Pending until accepted.
func (e *Engine) OnEvent(event types.WorldEvent, snap *types.WorldSnapshot) (*types.QuestInstance, error) {
	return e.Quests.TryTrigger(event, snap)
}

// AcceptQuest transitions a Pending instance to Active.
func (e *Engine) AcceptQuest(instanceID string) (*types.QuestInstance, error) {
	return e.Quests.Accept(instanceID)
}

// AdvanceQuest applies an objective event to an Active instance.
func (e *Engine) AdvanceQuest(instanceID string, ev types.ObjectiveEvent) (*types.QuestInstance, error) {
	return e.Quests.Advance(instanceID, ev)
}

// Reputation returns the current score for a (subject, faction) pair.
func (e *Engine) Reputation(subject, faction string) int {
	return e.Ledger.Get(subject, faction)
}

// ApplyReputationDelta mutates reputation through the ledger and returns
// the post-clamp score.
func (e *Engine) ApplyReputationDelta(subject, faction string, delta int) int {
	return e.Ledger.ApplyDelta(subject, faction, delta)
}

// BuildSnapshot assembles a decision snapshot for one actor from the world
// query collaborator. Missing signals are simply absent from the map; the
// condition evaluator downgrades them to false results.
func (e *Engine) BuildSnapshot(actorID string) *types.WorldSnapshot {
	snap := &types.WorldSnapshot{
		Tick:       e.tick,
		Signals:    map[string]float64{},
		Predicates: map[string]bool{},
	}
	if e.world == nil {
		return snap
	}
	if v, ok := e.world.HealthFraction(actorID); ok {
		snap.Signals[types.SignalHealthFraction] = v
	}
	if v, ok := e.world.ManaFraction(actorID); ok {
		snap.Signals[types.SignalManaFraction] = v
	}
	if v, ok := e.world.ThreatRatio(actorID); ok {
		snap.Signals[types.SignalThreatRatio] = v
	}
	snap.Sightings = e.world.Perceive(actorID)

	// Only the predicates templates actually require are asked for.
	for _, tpl := range e.Defs.Templates {
		for _, name := range tpl.Requirements.WorldState {
			if _, done := snap.Predicates[name]; done {
				continue
			}
			if ok, known := e.world.Predicate(name); known {
				snap.Predicates[name] = ok
			}
		}
	}
	return snap
}

// Tick runs one game tick: every registered actor decides once, in
// creation order, then active quest clocks advance and terminal outcomes
// are resolved. No operation here blocks; a decide call always runs to
// completion within the tick.
func (e *Engine) Tick() TickResult {
	e.tick++
	var res TickResult

	for _, actor := range e.actors {
		snap := e.BuildSnapshot(actor.ID)
		intent, err := e.interp.Decide(actor, snap)
		if err != nil {
			e.log.Error("decide failed", "actor", actor.ID, "error", err)
			res.Errors = append(res.Errors, err)
			continue
		}
		if intent != nil {
			res.Intents = append(res.Intents, *intent)
		}
	}

	e.Quests.TickAll(1)
	res.Reports = e.ResolveOutcomes()
	return res
}

// ResolveOutcomes drains quest outcomes and runs them through the reward
// resolver when one is attached.
func (e *Engine) ResolveOutcomes() []QuestReport {
	outcomes := e.Quests.DrainOutcomes()
	if len(outcomes) == 0 {
		return nil
	}
	reports := make([]QuestReport, 0, len(outcomes))
	for _, out := range outcomes {
		report := QuestReport{Outcome: out}
		if e.rewards != nil {
			for _, r := range out.Material {
				report.Materials = append(report.Materials, ResolvedReward{
					Kind:   r.Kind,
					Amount: e.rewards.ResolveMaterial(r),
				})
			}
			for _, tag := range out.WorldEffects {
				e.rewards.ApplyWorldEffect(tag)
			}
		}
		reports = append(reports, report)
	}
	return reports
}

// TickCount returns the number of completed engine ticks.
func (e *Engine) TickCount() int {
	return e.tick
}

// RestoreTick sets the tick counter, for save restoration.
func (e *Engine) RestoreTick(n int) {
	e.tick = n
}
