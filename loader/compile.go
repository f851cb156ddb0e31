package loader

import (
	"fmt"

	"github.com/nathoo/dungeonmind/engine/registry"
	"github.com/nathoo/dungeonmind/types"
	lua "github.com/yuin/gopher-lua"
)

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getBool returns a bool field from a Lua table, or the default if missing.
func getBool(tbl *lua.LTable, key string, def bool) bool {
	v := tbl.RawGetString(key)
	if b, ok := v.(lua.LBool); ok {
		return bool(b)
	}
	return def
}

// getNumber returns a numeric field from a Lua table, or the default if missing.
func getNumber(tbl *lua.LTable, key string, def float64) float64 {
	v := tbl.RawGetString(key)
	if n, ok := v.(lua.LNumber); ok {
		return float64(n)
	}
	return def
}

// getInt returns an int field from a Lua table, or the default if missing.
func getInt(tbl *lua.LTable, key string, def int) int {
	return int(getNumber(tbl, key, float64(def)))
}

// getIntPtr returns a pointer to an int field, or nil if the field is absent.
func getIntPtr(tbl *lua.LTable, key string) *int {
	v := tbl.RawGetString(key)
	if n, ok := v.(lua.LNumber); ok {
		i := int(n)
		return &i
	}
	return nil
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	v := tbl.RawGetString(key)
	if t, ok := v.(*lua.LTable); ok {
		return t
	}
	return nil
}

// tableToStringList converts an array-style Lua table to a string slice.
func tableToStringList(tbl *lua.LTable) []string {
	if tbl == nil {
		return nil
	}
	var list []string
	for i := 1; i <= tbl.MaxN(); i++ {
		if s, ok := tbl.RawGetInt(i).(lua.LString); ok {
			list = append(list, string(s))
		}
	}
	return list
}

// tableToStringMap converts a Lua table to a map[string]string.
func tableToStringMap(tbl *lua.LTable) map[string]string {
	if tbl == nil {
		return nil
	}
	m := map[string]string{}
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			if vs, ok := v.(lua.LString); ok {
				m[string(ks)] = string(vs)
			}
		}
	})
	return m
}

// tableToIntMap converts a Lua table to a map[string]int.
func tableToIntMap(tbl *lua.LTable) map[string]int {
	if tbl == nil {
		return nil
	}
	m := map[string]int{}
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			if n, ok := v.(lua.LNumber); ok {
				m[string(ks)] = int(n)
			}
		}
	})
	return m
}

// tableToFloatMap converts a Lua table to a map[string]float64.
func tableToFloatMap(tbl *lua.LTable) map[string]float64 {
	if tbl == nil {
		return nil
	}
	m := map[string]float64{}
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			if n, ok := v.(lua.LNumber); ok {
				m[string(ks)] = float64(n)
			}
		}
	})
	return m
}

// Closed kind-tag tables. Unknown tags are compile errors, never ignored.

var condKinds = map[string]types.CondKind{
	"health_fraction":           types.CondHealthFraction,
	"mana":                      types.CondMana,
	"threat_ratio":              types.CondThreatRatio,
	"enemy_in_sight":            types.CondEnemyInSight,
	"item_detection":            types.CondItemDetection,
	"faction_member_endangered": types.CondFactionMemberEndangered,
	"all_of":                    types.CondAllOf,
	"any_of":                    types.CondAnyOf,
}

var cmpOps = map[string]types.CmpOp{
	"less_than":    types.CmpLess,
	"greater_than": types.CmpGreater,
	"equal":        types.CmpEqual,
}

var actionKinds = map[string]types.ActionKind{
	"spell_cast":    types.ActionSpellCast,
	"special_move":  types.ActionSpecialMove,
	"combat_action": types.ActionCombatAction,
	"navigation":    types.ActionNavigation,
	"no_op":         types.ActionNoOp,
}

var objectiveKinds = map[string]types.ObjectiveKind{
	"destroy_structure": types.ObjectiveDestroyStructure,
	"eliminate":         types.ObjectiveEliminate,
	"retrieve":          types.ObjectiveRetrieve,
	"deliver":           types.ObjectiveDeliver,
	"negotiate":         types.ObjectiveNegotiate,
	"hold_territory":    types.ObjectiveHoldTerritory,
	"survive_trial":     types.ObjectiveSurviveTrial,
}

var constraintKinds = map[string]types.ConstraintKind{
	"time_limit": types.ConstraintTimeLimit,
	"stealth":    types.ConstraintStealth,
	"no_harm":    types.ConstraintNoHarm,
}

// compile converts all collected Lua data into registry Defs.
func compile(coll *collector) (*registry.Defs, error) {
	defs := &registry.Defs{
		Archetypes:    map[string]types.Archetype{},
		Trees:         map[string]types.Tree{},
		Conditions:    map[string]types.ConditionDef{},
		Actions:       map[string]types.ActionDef{},
		TemplateIndex: map[string]int{},
		Variables:     map[string][]string{},
	}

	for _, raw := range coll.conditions {
		cond, err := compileCondition(raw)
		if err != nil {
			return nil, fmt.Errorf("condition %s: %w", raw.name, err)
		}
		if _, dup := defs.Conditions[cond.Name]; dup {
			return nil, fmt.Errorf("duplicate condition %q", cond.Name)
		}
		defs.Conditions[cond.Name] = cond
	}

	for _, raw := range coll.actions {
		act, err := compileAction(raw)
		if err != nil {
			return nil, fmt.Errorf("action %s: %w", raw.name, err)
		}
		if _, dup := defs.Actions[act.Name]; dup {
			return nil, fmt.Errorf("duplicate action %q", act.Name)
		}
		defs.Actions[act.Name] = act
	}

	for _, raw := range coll.trees {
		tree, err := compileTree(raw, &defs.Nodes)
		if err != nil {
			return nil, fmt.Errorf("tree %s: %w", raw.id, err)
		}
		if _, dup := defs.Trees[tree.ID]; dup {
			return nil, fmt.Errorf("duplicate tree %q", tree.ID)
		}
		defs.Trees[tree.ID] = tree
	}

	for _, raw := range coll.archetypes {
		arch, err := compileArchetype(raw)
		if err != nil {
			return nil, fmt.Errorf("archetype %s: %w", raw.id, err)
		}
		if _, dup := defs.Archetypes[arch.ID]; dup {
			return nil, fmt.Errorf("duplicate archetype %q", arch.ID)
		}
		defs.Archetypes[arch.ID] = arch
	}

	for _, raw := range coll.templates {
		tpl, err := compileTemplate(raw)
		if err != nil {
			return nil, fmt.Errorf("quest template %s: %w", raw.id, err)
		}
		if _, dup := defs.TemplateIndex[tpl.ID]; dup {
			return nil, fmt.Errorf("duplicate quest template %q", tpl.ID)
		}
		defs.TemplateIndex[tpl.ID] = len(defs.Templates)
		defs.Templates = append(defs.Templates, tpl)
	}

	if coll.variables != nil {
		coll.variables.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				if pool, ok := v.(*lua.LTable); ok {
					defs.Variables[string(ks)] = tableToStringList(pool)
				}
			}
		})
	}

	if coll.modifiers != nil {
		defs.Modifiers.FactionPride = tableToFloatMap(getTable(coll.modifiers, "faction_pride"))
	}

	return defs, nil
}

func compileCondition(raw rawCondition) (types.ConditionDef, error) {
	tbl := raw.table
	kindTag := getString(tbl, "kind")
	kind, ok := condKinds[kindTag]
	if !ok {
		return types.ConditionDef{}, fmt.Errorf("unknown condition kind %q", kindTag)
	}

	cond := types.ConditionDef{Name: raw.name, Kind: kind}

	switch kind {
	case types.CondHealthFraction, types.CondMana, types.CondThreatRatio:
		opTag := getString(tbl, "op")
		op, ok := cmpOps[opTag]
		if !ok {
			return types.ConditionDef{}, fmt.Errorf("unknown comparison op %q", opTag)
		}
		cond.Op = op
		cond.Value = getNumber(tbl, "value", 0)

	case types.CondEnemyInSight, types.CondItemDetection, types.CondFactionMemberEndangered:
		cond.Radius = getNumber(tbl, "radius", 0)
		if cond.Radius <= 0 {
			return types.ConditionDef{}, fmt.Errorf("radius-scoped condition needs a positive radius")
		}
		cond.Item = getString(tbl, "item")

	case types.CondAllOf, types.CondAnyOf:
		cond.Sub = tableToStringList(getTable(tbl, "of"))
		if len(cond.Sub) == 0 {
			return types.ConditionDef{}, fmt.Errorf("composite condition needs at least one sub-condition")
		}
	}

	return cond, nil
}

func compileAction(raw rawAction) (types.ActionDef, error) {
	tbl := raw.table
	kindTag := getString(tbl, "kind")
	kind, ok := actionKinds[kindTag]
	if !ok {
		return types.ActionDef{}, fmt.Errorf("unknown action kind %q", kindTag)
	}

	return types.ActionDef{
		Name:            raw.name,
		Kind:            kind,
		Cost:            getNumber(tbl, "cost", 0),
		Range:           getNumber(tbl, "range", 0),
		Power:           getString(tbl, "power"),
		Duration:        getNumber(tbl, "duration", 0),
		RequiresStealth: getBool(tbl, "requires_stealth", false),
		Flags:           tableToStringList(getTable(tbl, "flags")),
	}, nil
}

// compileTree compiles a tree table into arena nodes appended to the shared
// arena. Children are compiled depth-first in declaration order, so sibling
// order in the document is sibling order in the arena.
func compileTree(raw rawTree, arena *[]types.Node) (types.Tree, error) {
	rootTbl := getTable(raw.table, "root")
	if rootTbl == nil {
		return types.Tree{}, fmt.Errorf("missing root node")
	}
	root, err := compileNode(rootTbl, arena)
	if err != nil {
		return types.Tree{}, err
	}
	return types.Tree{
		ID:          raw.id,
		Description: getString(raw.table, "description"),
		Root:        root,
	}, nil
}

func compileNode(tbl *lua.LTable, arena *[]types.Node) (int, error) {
	typeTag := getString(tbl, "type")

	// Reserve the slot before children so parents precede children.
	idx := len(*arena)
	*arena = append(*arena, types.Node{})

	var node types.Node
	switch typeTag {
	case "selector", "sequence":
		if typeTag == "selector" {
			node.Kind = types.NodeSelector
		} else {
			node.Kind = types.NodeSequence
		}
		children := getTable(tbl, "children")
		if children == nil || children.MaxN() == 0 {
			return 0, fmt.Errorf("%s node needs at least one child", typeTag)
		}
		for i := 1; i <= children.MaxN(); i++ {
			childTbl, ok := children.RawGetInt(i).(*lua.LTable)
			if !ok {
				return 0, fmt.Errorf("%s child %d is not a node", typeTag, i)
			}
			childIdx, err := compileNode(childTbl, arena)
			if err != nil {
				return 0, err
			}
			node.Children = append(node.Children, childIdx)
		}

	case "gate":
		node.Kind = types.NodeGate
		node.Condition = getString(tbl, "condition")
		if node.Condition == "" {
			return 0, fmt.Errorf("gate node needs a condition name")
		}
		childTbl := getTable(tbl, "child")
		if childTbl == nil {
			return 0, fmt.Errorf("gate node needs a child")
		}
		childIdx, err := compileNode(childTbl, arena)
		if err != nil {
			return 0, err
		}
		node.Children = []int{childIdx}

	case "leaf":
		node.Kind = types.NodeLeaf
		node.Action = getString(tbl, "action")
		if node.Action == "" {
			return 0, fmt.Errorf("leaf node needs an action name")
		}

	default:
		return 0, fmt.Errorf("unknown node type %q", typeTag)
	}

	(*arena)[idx] = node
	return idx, nil
}

func compileArchetype(raw rawArchetype) (types.Archetype, error) {
	tbl := raw.table

	persTbl := getTable(tbl, "base_personality")
	if persTbl == nil {
		return types.Archetype{}, fmt.Errorf("missing base_personality")
	}
	socialTbl := getTable(tbl, "social_traits")
	if socialTbl == nil {
		return types.Archetype{}, fmt.Errorf("missing social_traits")
	}

	return types.Archetype{
		ID:          raw.id,
		Name:        getString(tbl, "name"),
		Description: getString(tbl, "description"),
		Faction:     getString(tbl, "faction_allegiance"),
		Personality: types.Personality{
			Aggression:    getNumber(persTbl, "aggression", 0.5),
			Caution:       getNumber(persTbl, "caution", 0.5),
			Curiosity:     getNumber(persTbl, "curiosity", 0.5),
			Loyalty:       getNumber(persTbl, "loyalty", 0.5),
			FearThreshold: getNumber(persTbl, "fear_threshold", 0.5),
			PainTolerance: getNumber(persTbl, "pain_tolerance", 0.5),
		},
		BehaviorTree:         getString(tbl, "behavior_tree"),
		SpecialAbilities:     tableToStringList(getTable(tbl, "special_abilities")),
		EquipmentPreferences: tableToStringList(getTable(tbl, "equipment_preferences")),
		LootPreferences:      tableToStringList(getTable(tbl, "loot_preferences")),
		CombatStyle:          getString(tbl, "combat_style"),
		Social: types.SocialTraits{
			FactionTrust:       getNumber(socialTbl, "faction_trust", 0.5),
			OutsiderTrust:      getNumber(socialTbl, "outsider_trust", 0.5),
			Recruitment:        getNumber(socialTbl, "recruitment", 0.5),
			InformationSharing: getNumber(socialTbl, "information_sharing", 0.5),
		},
	}, nil
}

func compileTemplate(raw rawTemplate) (types.QuestTemplate, error) {
	tbl := raw.table

	tpl := types.QuestTemplate{
		ID:          raw.id,
		Name:        getString(tbl, "name"),
		Description: getString(tbl, "description"),
		Category:    getString(tbl, "category"),
	}

	if triggers := getTable(tbl, "triggers"); triggers != nil {
		for i := 1; i <= triggers.MaxN(); i++ {
			trigTbl, ok := triggers.RawGetInt(i).(*lua.LTable)
			if !ok {
				return tpl, fmt.Errorf("trigger %d is not a table", i)
			}
			event := getString(trigTbl, "event")
			if event == "" {
				return tpl, fmt.Errorf("trigger %d missing event type", i)
			}
			tpl.Triggers = append(tpl.Triggers, types.TriggerDef{
				Event:  event,
				Params: tableToStringMap(getTable(trigTbl, "params")),
			})
		}
	}

	if reqs := getTable(tbl, "requirements"); reqs != nil {
		if repList := getTable(reqs, "reputation"); repList != nil {
			for i := 1; i <= repList.MaxN(); i++ {
				reqTbl, ok := repList.RawGetInt(i).(*lua.LTable)
				if !ok {
					return tpl, fmt.Errorf("reputation requirement %d is not a table", i)
				}
				req := types.ReputationRequirement{
					Faction: getString(reqTbl, "faction"),
					Min:     getIntPtr(reqTbl, "min_value"),
					Max:     getIntPtr(reqTbl, "max_value"),
				}
				if req.Faction == "" {
					return tpl, fmt.Errorf("reputation requirement %d missing faction", i)
				}
				if req.Min == nil && req.Max == nil {
					return tpl, fmt.Errorf("reputation requirement %d needs min_value or max_value", i)
				}
				tpl.Requirements.Reputation = append(tpl.Requirements.Reputation, req)
			}
		}
		tpl.Requirements.WorldState = tableToStringList(getTable(reqs, "world_state"))
	}

	if objectives := getTable(tbl, "objectives"); objectives != nil {
		for i := 1; i <= objectives.MaxN(); i++ {
			objTbl, ok := objectives.RawGetInt(i).(*lua.LTable)
			if !ok {
				return tpl, fmt.Errorf("objective %d is not a table", i)
			}
			obj, err := compileObjective(objTbl)
			if err != nil {
				return tpl, fmt.Errorf("objective %d: %w", i, err)
			}
			tpl.Objectives = append(tpl.Objectives, obj)
		}
	}

	if constraints := getTable(tbl, "constraints"); constraints != nil {
		for i := 1; i <= constraints.MaxN(); i++ {
			conTbl, ok := constraints.RawGetInt(i).(*lua.LTable)
			if !ok {
				return tpl, fmt.Errorf("constraint %d is not a table", i)
			}
			kindTag := getString(conTbl, "kind")
			kind, ok := constraintKinds[kindTag]
			if !ok {
				return tpl, fmt.Errorf("constraint %d: unknown kind %q", i, kindTag)
			}
			con := types.ConstraintDef{
				Kind:        kind,
				Limit:       getInt(conTbl, "limit", 0),
				Consequence: getString(conTbl, "consequence"),
			}
			if kind == types.ConstraintTimeLimit && con.Limit <= 0 {
				return tpl, fmt.Errorf("constraint %d: time_limit needs a positive limit", i)
			}
			tpl.Constraints = append(tpl.Constraints, con)
		}
	}

	var err error
	tpl.Rewards, err = compileConsequences(getTable(tbl, "rewards"))
	if err != nil {
		return tpl, fmt.Errorf("rewards: %w", err)
	}
	tpl.FailureConsequences, err = compileConsequences(getTable(tbl, "failure_consequences"))
	if err != nil {
		return tpl, fmt.Errorf("failure_consequences: %w", err)
	}

	return tpl, nil
}

func compileObjective(tbl *lua.LTable) (types.ObjectiveDef, error) {
	kindTag := getString(tbl, "kind")
	kind, ok := objectiveKinds[kindTag]
	if !ok {
		return types.ObjectiveDef{}, fmt.Errorf("unknown objective kind %q", kindTag)
	}

	obj := types.ObjectiveDef{
		ID:          getString(tbl, "id"),
		Kind:        kind,
		Description: getString(tbl, "description"),
		Target:      getString(tbl, "target"),
		Count:       getInt(tbl, "count", 1),
		Duration:    getInt(tbl, "duration", 0),
		Optional:    getBool(tbl, "optional", false),
	}
	if obj.ID == "" {
		return obj, fmt.Errorf("missing id")
	}
	if obj.Count < 1 {
		return obj, fmt.Errorf("count must be at least 1")
	}

	durational := kind == types.ObjectiveHoldTerritory || kind == types.ObjectiveSurviveTrial
	if durational && obj.Duration <= 0 {
		return obj, fmt.Errorf("%s needs a positive duration", kindTag)
	}
	if !durational && obj.Duration != 0 {
		return obj, fmt.Errorf("duration is only valid for hold_territory/survive_trial")
	}

	if bonus := getTable(tbl, "bonus"); bonus != nil {
		if !obj.Optional {
			return obj, fmt.Errorf("bonus is only valid on optional objectives")
		}
		obj.BonusReputation = tableToIntMap(getTable(bonus, "reputation"))
		var err error
		obj.BonusMaterial, err = compileMaterial(getTable(bonus, "material"))
		if err != nil {
			return obj, err
		}
	}

	return obj, nil
}

func compileConsequences(tbl *lua.LTable) (types.Consequences, error) {
	var c types.Consequences
	if tbl == nil {
		return c, nil
	}
	c.Reputation = tableToIntMap(getTable(tbl, "reputation"))
	c.WorldEffects = tableToStringList(getTable(tbl, "world_effects"))
	var err error
	c.Material, err = compileMaterial(getTable(tbl, "material"))
	return c, err
}

func compileMaterial(tbl *lua.LTable) ([]types.MaterialRange, error) {
	if tbl == nil {
		return nil, nil
	}
	var ranges []types.MaterialRange
	for i := 1; i <= tbl.MaxN(); i++ {
		rTbl, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("material range %d is not a table", i)
		}
		r := types.MaterialRange{
			Kind: getString(rTbl, "kind"),
			Min:  getInt(rTbl, "min", 0),
			Max:  getInt(rTbl, "max", 0),
		}
		if r.Kind == "" {
			return nil, fmt.Errorf("material range %d missing kind", i)
		}
		if r.Min < 0 || r.Max < r.Min {
			return nil, fmt.Errorf("material range %d: bad bounds [%d,%d]", i, r.Min, r.Max)
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}
