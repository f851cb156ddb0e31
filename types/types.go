// Package types defines the shared data structures for the DungeonMind engine.
// This package contains only type definitions — no logic, no methods.
package types

// Personality holds the six base traits, each in [0,1].
type Personality struct {
	Aggression    float64
	Caution       float64
	Curiosity     float64
	Loyalty       float64
	FearThreshold float64
	PainTolerance float64
}

// SocialTraits holds the four social propensities, each in [0,1].
type SocialTraits struct {
	FactionTrust       float64
	OutsiderTrust      float64
	Recruitment        float64
	InformationSharing float64
}

// Archetype is the immutable template for an actor kind. Shared by every
// actor instance of that kind; never mutated after load.
type Archetype struct {
	ID                   string
	Name                 string
	Description          string
	Faction              string
	Personality          Personality
	BehaviorTree         string // tree ID, resolved at load time
	SpecialAbilities     []string
	EquipmentPreferences []string
	LootPreferences      []string
	CombatStyle          string
	Social               SocialTraits
}

// NodeKind discriminates behavior tree node variants.
type NodeKind uint8

const (
	NodeSelector NodeKind = iota // first succeeding child wins
	NodeSequence                 // all children must succeed, in order
	NodeGate                     // named condition guards a single child
	NodeLeaf                     // names an action; always succeeds
)

// Node is one behavior tree node in the registry arena.
// Children are arena indices, in declaration order.
type Node struct {
	Kind      NodeKind
	Condition string // gate: condition name
	Action    string // leaf: action name
	Children  []int
}

// Tree is a rooted behavior tree. Owned by the registry, referenced by ID,
// never duplicated per actor. Root is an arena index.
type Tree struct {
	ID          string
	Description string
	Root        int
}

// CmpOp is the comparison operator for numeric conditions.
type CmpOp uint8

const (
	CmpLess CmpOp = iota
	CmpGreater
	CmpEqual
)

// CondKind discriminates condition variants.
type CondKind uint8

const (
	CondHealthFraction CondKind = iota
	CondMana
	CondThreatRatio
	CondEnemyInSight
	CondItemDetection
	CondFactionMemberEndangered
	CondAllOf
	CondAnyOf
)

// ConditionDef is a named predicate definition. Pure function of
// (actor view, world snapshot); no side effects.
type ConditionDef struct {
	Name   string
	Kind   CondKind
	Op     CmpOp    // numeric kinds
	Value  float64  // numeric kinds: compare literal
	Radius float64  // radius-scoped kinds
	Item   string   // item detection: optional tag filter
	Sub    []string // composite kinds: sub-condition names, in order
}

// ActionKind discriminates action effect categories.
type ActionKind uint8

const (
	ActionSpellCast ActionKind = iota
	ActionSpecialMove
	ActionCombatAction
	ActionNavigation
	ActionNoOp
)

// ActionDef is a named effect descriptor. The engine never executes the
// effect; the damage/heal expression is an opaque string for the host.
type ActionDef struct {
	Name            string
	Kind            ActionKind
	Cost            float64
	Range           float64
	Power           string // damage/heal expression
	Duration        float64
	RequiresStealth bool
	Flags           []string
}

// ActionIntent is the decision the interpreter hands back to the host.
// TargetID is bound from the snapshot when the chosen action wants one.
type ActionIntent struct {
	ActorID  string
	Action   string
	Kind     ActionKind
	TargetID string
}

// ActorView is the already-resolved view of one actor handed to a decision:
// archetype identity plus the combined personality (base + any per-instance
// delta, merged by the host before the call).
type ActorView struct {
	ID          string
	Archetype   string
	Faction     string
	Personality Personality
}

// Signal names the host assembles into a snapshot from the world query
// service. Absence of a required signal is an evaluation error, recovered
// as a false condition result.
const (
	SignalHealthFraction = "health_fraction"
	SignalManaFraction   = "mana_fraction"
	SignalThreatRatio    = "threat_ratio"
)

// Detection is one entity or item sighting reported by the world service.
// The spatial and ownership tests already happened there; conditions only
// apply radius and kind filters locally.
type Detection struct {
	EntityID   string
	Faction    string
	Distance   float64
	Hostile    bool
	Endangered bool
	ItemTag    string // non-empty for item sightings
}

// WorldSnapshot is the per-decision view of the world for one actor.
type WorldSnapshot struct {
	Tick      int
	Signals   map[string]float64
	Sightings []Detection
	// Predicates holds pre-evaluated world-state predicate results,
	// keyed by name, for quest requirement checks.
	Predicates map[string]bool
}

// Reputation bounds. Scores are clamped to this closed range, silently.
const (
	ReputationMin = -100
	ReputationMax = 100
)

// TriggerDef matches an incoming world event by type and parameter equality.
// A parameter value of the form "{name}" binds the event value to a quest
// placeholder instead of filtering on it.
type TriggerDef struct {
	Event  string
	Params map[string]string
}

// ReputationRequirement gates a template on the subject's standing with a
// faction. Nil bound means unbounded on that side.
type ReputationRequirement struct {
	Faction string
	Min     *int
	Max     *int
}

// Requirements gate template instantiation.
type Requirements struct {
	Reputation []ReputationRequirement
	WorldState []string // predicate names checked against the snapshot
}

// ObjectiveKind discriminates objective completion semantics. All kinds are
// terminal boolean checks except HoldTerritory and SurviveTrial, which track
// elapsed duration against a target.
type ObjectiveKind uint8

const (
	ObjectiveDestroyStructure ObjectiveKind = iota
	ObjectiveEliminate
	ObjectiveRetrieve
	ObjectiveDeliver
	ObjectiveNegotiate
	ObjectiveHoldTerritory
	ObjectiveSurviveTrial
)

// ObjectiveDef is one typed objective in a template. Target may contain a
// {placeholder} resolved at trigger time. Count applies to Eliminate-style
// objectives; Duration (ticks) to HoldTerritory/SurviveTrial.
type ObjectiveDef struct {
	ID          string
	Kind        ObjectiveKind
	Description string
	Target      string
	Count       int
	Duration    int
	Optional    bool
	// Bonus applied only when an optional objective completes.
	BonusReputation map[string]int
	BonusMaterial   []MaterialRange
}

// ConstraintKind discriminates quest constraints.
type ConstraintKind uint8

const (
	ConstraintTimeLimit ConstraintKind = iota
	ConstraintStealth
	ConstraintNoHarm
)

// ConstraintDef is one constraint; breach fails the instance immediately.
type ConstraintDef struct {
	Kind        ConstraintKind
	Limit       int    // ticks, TimeLimit only
	Consequence string // named failure consequence tag
}

// MaterialRange is a material reward range, resolved to a concrete value
// by the host's loot collaborator, never by this engine.
type MaterialRange struct {
	Kind string
	Min  int
	Max  int
}

// Consequences bundle the reputation deltas, world-effect tags and material
// ranges applied on a terminal transition. Used for both rewards and
// failure consequences.
type Consequences struct {
	Reputation   map[string]int
	WorldEffects []string
	Material     []MaterialRange
}

// QuestTemplate is an immutable quest definition.
type QuestTemplate struct {
	ID                  string
	Name                string // may contain {placeholder} tokens
	Description         string // may contain {placeholder} tokens
	Category            string
	Triggers            []TriggerDef
	Requirements        Requirements
	Objectives          []ObjectiveDef
	Constraints         []ConstraintDef
	Rewards             Consequences
	FailureConsequences Consequences
}

// DynamicModifiers are scaling coefficients applied uniformly at trigger
// time. FactionPride scales reputation requirement thresholds per faction.
type DynamicModifiers struct {
	FactionPride map[string]float64
}

// QuestState is the lifecycle state of an instance.
// Pending -> Active -> {Succeeded, Failed} -> Archived. No re-entry.
type QuestState uint8

const (
	QuestPending QuestState = iota
	QuestActive
	QuestSucceeded
	QuestFailed
	QuestArchived
)

// ObjectiveProgress tracks one objective on an instance. Progress never
// exceeds the defined target.
type ObjectiveProgress struct {
	Progress int
	Done     bool
}

// QuestInstance is a template bound to concrete world values.
type QuestInstance struct {
	ID          string // uuid
	Template    string
	GiverID     string
	SubjectID   string
	Vars        map[string]string // resolved placeholders
	Name        string            // substituted
	Description string            // substituted
	State       QuestState
	Objectives  []ObjectiveProgress
	Clock       int    // ticks elapsed since Active
	Deadline    int    // ticks allowed by a TimeLimit constraint; 0 = none
	FailCause   string // consequence tag or constraint name on Failed
	CreatedTick int
}

// Well-known world event types fed to the quest engine. Templates may
// trigger on any event type; these are the ones the original game raised.
const (
	EventEnemySlain           = "enemy_slain"
	EventStructureDestroyed   = "structure_destroyed"
	EventItemRetrieved        = "item_retrieved"
	EventItemDelivered        = "item_delivered"
	EventNegotiationResolved  = "negotiation_resolved"
	EventConflictStarted      = "conflict_started"
	EventFactionRelationShift = "faction_relation_changed"
	EventReputationChanged    = "reputation_changed"
	EventQuestGiverApproached = "quest_giver_approached"
	EventTerritoryEntered     = "territory_entered"
)

// WorldEvent is an event from the host's turn loop or world service.
type WorldEvent struct {
	Type      string
	SubjectID string // instigating player
	GiverID   string // quest giver the event is attributed to
	Params    map[string]string
	Tick      int
}

// ObjectiveEvent reports progress toward an instance's objectives.
type ObjectiveEvent struct {
	Kind    ObjectiveKind
	Target  string
	Count   int // defaults to 1 when zero
	Elapsed int // duration ticks for HoldTerritory/SurviveTrial
}

// Outcome is emitted when an instance reaches a terminal state. The host's
// loot/world collaborators resolve the material ranges and effect tags.
type Outcome struct {
	InstanceID   string
	Template     string
	State        QuestState
	Reputation   map[string]int // deltas already applied to the ledger
	WorldEffects []string
	Material     []MaterialRange
}
