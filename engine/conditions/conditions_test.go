package conditions

import (
	"testing"

	"github.com/nathoo/dungeonmind/engine/registry"
	"github.com/nathoo/dungeonmind/types"
)

func testDefs() *registry.Defs {
	return &registry.Defs{
		Conditions: map[string]types.ConditionDef{
			"low_health": {
				Name: "low_health", Kind: types.CondHealthFraction,
				Op: types.CmpLess, Value: 0.3,
			},
			"high_mana": {
				Name: "high_mana", Kind: types.CondMana,
				Op: types.CmpGreater, Value: 0.5,
			},
			"outmatched": {
				Name: "outmatched", Kind: types.CondThreatRatio,
				Op: types.CmpGreater, Value: 1.5,
			},
			"enemy_close": {
				Name: "enemy_close", Kind: types.CondEnemyInSight, Radius: 5,
			},
			"relic_near": {
				Name: "relic_near", Kind: types.CondItemDetection,
				Radius: 4, Item: "relic",
			},
			"any_item_near": {
				Name: "any_item_near", Kind: types.CondItemDetection, Radius: 4,
			},
			"ally_in_peril": {
				Name: "ally_in_peril", Kind: types.CondFactionMemberEndangered, Radius: 6,
			},
			"desperate": {
				Name: "desperate", Kind: types.CondAllOf,
				Sub: []string{"low_health", "enemy_close"},
			},
			"retreat": {
				Name: "retreat", Kind: types.CondAnyOf,
				Sub: []string{"outmatched", "low_health"},
			},
		},
	}
}

func snapshot(signals map[string]float64, sightings ...types.Detection) *types.WorldSnapshot {
	return &types.WorldSnapshot{Signals: signals, Sightings: sightings}
}

func TestEval_SignalComparisons(t *testing.T) {
	e := NewEvaluator(testDefs(), nil)
	actor := types.ActorView{ID: "npc1", Faction: "watch"}

	tests := []struct {
		name    string
		cond    string
		signals map[string]float64
		want    bool
	}{
		{"health below threshold", "low_health", map[string]float64{types.SignalHealthFraction: 0.2}, true},
		{"health at threshold", "low_health", map[string]float64{types.SignalHealthFraction: 0.3}, false},
		{"health above threshold", "low_health", map[string]float64{types.SignalHealthFraction: 0.9}, false},
		{"mana above", "high_mana", map[string]float64{types.SignalManaFraction: 0.8}, true},
		{"mana below", "high_mana", map[string]float64{types.SignalManaFraction: 0.5}, false},
		{"threat above", "outmatched", map[string]float64{types.SignalThreatRatio: 2.0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Eval(tt.cond, actor, snapshot(tt.signals))
			if err != nil {
				t.Fatalf("Eval: %v", err)
			}
			if got != tt.want {
				t.Errorf("Eval(%s) = %v, want %v", tt.cond, got, tt.want)
			}
		})
	}
}

func TestEval_MissingSignalIsFalseNotError(t *testing.T) {
	e := NewEvaluator(testDefs(), nil)
	actor := types.ActorView{ID: "npc1"}

	got, err := e.Eval("low_health", actor, snapshot(map[string]float64{}))
	if err != nil {
		t.Fatalf("missing signal must not error: %v", err)
	}
	if got {
		t.Error("missing signal must evaluate false")
	}
}

func TestEval_UnknownConditionIsError(t *testing.T) {
	e := NewEvaluator(testDefs(), nil)
	actor := types.ActorView{ID: "npc1"}

	_, err := e.Eval("never_defined", actor, snapshot(nil))
	if err == nil {
		t.Fatal("unknown condition name must error")
	}
}

func TestEval_EnemyInSight(t *testing.T) {
	e := NewEvaluator(testDefs(), nil)
	actor := types.ActorView{ID: "npc1"}

	tests := []struct {
		name      string
		sightings []types.Detection
		want      bool
	}{
		{"hostile inside radius", []types.Detection{{EntityID: "orc", Hostile: true, Distance: 3}}, true},
		{"hostile outside radius", []types.Detection{{EntityID: "orc", Hostile: true, Distance: 9}}, false},
		{"non-hostile inside radius", []types.Detection{{EntityID: "deer", Distance: 2}}, false},
		{"no sightings", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Eval("enemy_close", actor, snapshot(nil, tt.sightings...))
			if err != nil {
				t.Fatalf("Eval: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEval_ItemDetection(t *testing.T) {
	e := NewEvaluator(testDefs(), nil)
	actor := types.ActorView{ID: "npc1"}

	relic := types.Detection{EntityID: "relic1", ItemTag: "relic", Distance: 2}
	sword := types.Detection{EntityID: "sword1", ItemTag: "sword", Distance: 2}

	got, err := e.Eval("relic_near", actor, snapshot(nil, sword))
	if err != nil || got {
		t.Errorf("tag filter should reject sword: got %v, err %v", got, err)
	}
	got, _ = e.Eval("relic_near", actor, snapshot(nil, sword, relic))
	if !got {
		t.Error("matching tag inside radius should pass")
	}
	got, _ = e.Eval("any_item_near", actor, snapshot(nil, sword))
	if !got {
		t.Error("untagged filter should accept any item")
	}
}

func TestEval_FactionMemberEndangered(t *testing.T) {
	e := NewEvaluator(testDefs(), nil)
	actor := types.ActorView{ID: "npc1", Faction: "watch"}

	ally := types.Detection{EntityID: "ally", Faction: "watch", Endangered: true, Distance: 4}
	stranger := types.Detection{EntityID: "other", Faction: "cult", Endangered: true, Distance: 4}
	safeAlly := types.Detection{EntityID: "ally2", Faction: "watch", Distance: 4}

	got, _ := e.Eval("ally_in_peril", actor, snapshot(nil, stranger, safeAlly))
	if got {
		t.Error("other factions and safe allies must not trigger")
	}
	got, _ = e.Eval("ally_in_peril", actor, snapshot(nil, ally))
	if !got {
		t.Error("endangered same-faction ally inside radius should trigger")
	}
}

func TestEval_Composites(t *testing.T) {
	e := NewEvaluator(testDefs(), nil)
	actor := types.ActorView{ID: "npc1"}

	lowHP := map[string]float64{types.SignalHealthFraction: 0.1, types.SignalThreatRatio: 1.0}
	orc := types.Detection{EntityID: "orc", Hostile: true, Distance: 2}

	got, err := e.Eval("desperate", actor, snapshot(lowHP, orc))
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !got {
		t.Error("all_of with all subs true should pass")
	}

	got, _ = e.Eval("desperate", actor, snapshot(lowHP))
	if got {
		t.Error("all_of with one sub false should fail")
	}

	got, _ = e.Eval("retreat", actor, snapshot(lowHP))
	if !got {
		t.Error("any_of with one sub true should pass")
	}

	healthy := map[string]float64{types.SignalHealthFraction: 0.9, types.SignalThreatRatio: 1.0}
	got, _ = e.Eval("retreat", actor, snapshot(healthy))
	if got {
		t.Error("any_of with all subs false should fail")
	}
}

func TestEval_CompositePropagatesUnknownSub(t *testing.T) {
	defs := testDefs()
	defs.Conditions["broken"] = types.ConditionDef{
		Name: "broken", Kind: types.CondAllOf, Sub: []string{"missing"},
	}
	e := NewEvaluator(defs, nil)

	_, err := e.Eval("broken", types.ActorView{}, snapshot(nil))
	if err == nil {
		t.Fatal("unknown sub-condition must surface as error")
	}
}
