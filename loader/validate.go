package loader

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/nathoo/dungeonmind/engine/registry"
	"github.com/nathoo/dungeonmind/types"
)

// ValidationError collects all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// placeholderPattern matches {placeholder} tokens in template text.
var placeholderPattern = regexp.MustCompile(`\{([a-z][a-z0-9_]*)\}`)

// Placeholders always bound at trigger time from the event context.
var builtinPlaceholders = map[string]bool{
	"subject": true,
	"giver":   true,
	"faction": true,
}

// validate checks the compiled defs for referential integrity. Every id a
// tree, condition, action or template references must resolve here; an
// unresolved reference is a load error, not a runtime crash.
func validate(defs *registry.Defs) error {
	ve := &ValidationError{}

	validateConditionRefs(defs, ve)
	validateTrees(defs, ve)
	validateArchetypes(defs, ve)
	validateTemplates(defs, ve)

	for _, w := range ve.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateConditionRefs checks composite sub-condition references and
// rejects reference cycles among composites.
func validateConditionRefs(defs *registry.Defs, ve *ValidationError) {
	for name, cond := range defs.Conditions {
		for _, sub := range cond.Sub {
			if _, ok := defs.Conditions[sub]; !ok {
				ve.Errors = append(ve.Errors, fmt.Sprintf(
					"condition %q references undefined condition %q", name, sub))
			}
		}
	}

	// Cycle detection over the composite reference graph.
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := map[string]int{}
	var visit func(name string) bool
	visit = func(name string) bool {
		switch state[name] {
		case visiting:
			return false
		case done:
			return true
		}
		state[name] = visiting
		for _, sub := range defs.Conditions[name].Sub {
			if _, ok := defs.Conditions[sub]; ok && !visit(sub) {
				return false
			}
		}
		state[name] = done
		return true
	}
	for name := range defs.Conditions {
		if !visit(name) {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"condition %q participates in a reference cycle", name))
		}
	}
}

func validateTrees(defs *registry.Defs, ve *ValidationError) {
	for id, tree := range defs.Trees {
		if tree.Root < 0 || tree.Root >= len(defs.Nodes) {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"tree %q root index out of range", id))
			continue
		}
		walkNodes(defs, tree.Root, func(n types.Node) {
			switch n.Kind {
			case types.NodeGate:
				if _, ok := defs.Conditions[n.Condition]; !ok {
					ve.Errors = append(ve.Errors, fmt.Sprintf(
						"tree %q gate references undefined condition %q", id, n.Condition))
				}
			case types.NodeLeaf:
				if _, ok := defs.Actions[n.Action]; !ok {
					ve.Errors = append(ve.Errors, fmt.Sprintf(
						"tree %q leaf references undefined action %q", id, n.Action))
				}
			}
		})
	}
}

// walkNodes visits the subtree rooted at idx. The arena is append-only and
// children always have higher indices than their parent, so trees are
// acyclic by construction; this is plain traversal, not cycle defense.
func walkNodes(defs *registry.Defs, idx int, fn func(types.Node)) {
	node := defs.Nodes[idx]
	fn(node)
	for _, c := range node.Children {
		walkNodes(defs, c, fn)
	}
}

func validateArchetypes(defs *registry.Defs, ve *ValidationError) {
	for id, arch := range defs.Archetypes {
		if arch.Name == "" {
			ve.Errors = append(ve.Errors, fmt.Sprintf("archetype %q has no name", id))
		}
		if arch.Faction == "" {
			ve.Errors = append(ve.Errors, fmt.Sprintf("archetype %q has no faction_allegiance", id))
		} else if !identPattern.MatchString(arch.Faction) {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"archetype %q faction %q is not a well-formed id", id, arch.Faction))
		}

		if arch.BehaviorTree == "" {
			ve.Errors = append(ve.Errors, fmt.Sprintf("archetype %q has no behavior_tree", id))
		} else if _, ok := defs.Trees[arch.BehaviorTree]; !ok {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"archetype %q references undefined behavior tree %q", id, arch.BehaviorTree))
		}

		checkUnitRange(ve, id, "aggression", arch.Personality.Aggression)
		checkUnitRange(ve, id, "caution", arch.Personality.Caution)
		checkUnitRange(ve, id, "curiosity", arch.Personality.Curiosity)
		checkUnitRange(ve, id, "loyalty", arch.Personality.Loyalty)
		checkUnitRange(ve, id, "fear_threshold", arch.Personality.FearThreshold)
		checkUnitRange(ve, id, "pain_tolerance", arch.Personality.PainTolerance)
		checkUnitRange(ve, id, "faction_trust", arch.Social.FactionTrust)
		checkUnitRange(ve, id, "outsider_trust", arch.Social.OutsiderTrust)
		checkUnitRange(ve, id, "recruitment", arch.Social.Recruitment)
		checkUnitRange(ve, id, "information_sharing", arch.Social.InformationSharing)

		// Ability and preference ids are free-form strings (no catalog
		// lookup, the items service owns that) but they must be
		// syntactically well-formed.
		checkIDList(ve, id, "special_abilities", arch.SpecialAbilities)
		checkIDList(ve, id, "equipment_preferences", arch.EquipmentPreferences)
		checkIDList(ve, id, "loot_preferences", arch.LootPreferences)
	}
}

func checkUnitRange(ve *ValidationError, archID, trait string, v float64) {
	if v < 0 || v > 1 {
		ve.Errors = append(ve.Errors, fmt.Sprintf(
			"archetype %q trait %s out of range [0,1]: %g", archID, trait, v))
	}
}

func checkIDList(ve *ValidationError, archID, field string, ids []string) {
	for _, s := range ids {
		if !identPattern.MatchString(s) {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"archetype %q %s entry %q is not a well-formed id", archID, field, s))
		}
	}
}

func validateTemplates(defs *registry.Defs, ve *ValidationError) {
	// Factions that actually have members; quests referencing others still
	// work (the ledger defaults to 0) but usually indicate a typo.
	knownFactions := map[string]bool{}
	for _, arch := range defs.Archetypes {
		knownFactions[arch.Faction] = true
	}

	for _, tpl := range defs.Templates {
		if tpl.Name == "" {
			ve.Errors = append(ve.Errors, fmt.Sprintf("quest template %q has no name", tpl.ID))
		}
		if len(tpl.Triggers) == 0 {
			ve.Warnings = append(ve.Warnings, fmt.Sprintf(
				"quest template %q has no triggers and can never be instantiated", tpl.ID))
		}

		// Placeholders must be resolvable at trigger time: from a declared
		// variable pool, a trigger param binding, or a builtin.
		bound := map[string]bool{}
		for name := range builtinPlaceholders {
			bound[name] = true
		}
		for name := range defs.Variables {
			bound[name] = true
		}
		for _, trig := range tpl.Triggers {
			for _, v := range trig.Params {
				if m := placeholderPattern.FindStringSubmatch(v); m != nil {
					bound[m[1]] = true
				}
			}
		}

		checkPlaceholders(ve, tpl.ID, "name", tpl.Name, bound)
		checkPlaceholders(ve, tpl.ID, "description", tpl.Description, bound)
		for _, obj := range tpl.Objectives {
			checkPlaceholders(ve, tpl.ID, "objective "+obj.ID, obj.Target, bound)
		}

		objIDs := map[string]bool{}
		requiredCount := 0
		for _, obj := range tpl.Objectives {
			if objIDs[obj.ID] {
				ve.Errors = append(ve.Errors, fmt.Sprintf(
					"quest template %q has duplicate objective id %q", tpl.ID, obj.ID))
			}
			objIDs[obj.ID] = true
			if !obj.Optional {
				requiredCount++
			}
			checkFactionDeltas(ve, tpl.ID, knownFactions, obj.BonusReputation)
		}
		if len(tpl.Objectives) > 0 && requiredCount == 0 {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"quest template %q has only optional objectives", tpl.ID))
		}

		for _, req := range tpl.Requirements.Reputation {
			if !identPattern.MatchString(req.Faction) {
				ve.Errors = append(ve.Errors, fmt.Sprintf(
					"quest template %q reputation requirement faction %q is not a well-formed id",
					tpl.ID, req.Faction))
			} else if !knownFactions[req.Faction] {
				ve.Warnings = append(ve.Warnings, fmt.Sprintf(
					"quest template %q requires reputation with faction %q, which has no archetypes",
					tpl.ID, req.Faction))
			}
		}

		checkFactionDeltas(ve, tpl.ID, knownFactions, tpl.Rewards.Reputation)
		checkFactionDeltas(ve, tpl.ID, knownFactions, tpl.FailureConsequences.Reputation)
	}
}

func checkPlaceholders(ve *ValidationError, tplID, field, text string, bound map[string]bool) {
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		if !bound[m[1]] {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"quest template %q %s uses placeholder {%s} with no variable pool or trigger binding",
				tplID, field, m[1]))
		}
	}
}

func checkFactionDeltas(ve *ValidationError, tplID string, known map[string]bool, deltas map[string]int) {
	for faction := range deltas {
		if !identPattern.MatchString(faction) {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"quest template %q reputation delta faction %q is not a well-formed id", tplID, faction))
		} else if !known[faction] {
			ve.Warnings = append(ve.Warnings, fmt.Sprintf(
				"quest template %q applies reputation with faction %q, which has no archetypes",
				tplID, faction))
		}
	}
}
