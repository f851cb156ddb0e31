package engine_test

import (
	"path/filepath"
	"testing"

	"github.com/nathoo/dungeonmind/engine"
	"github.com/nathoo/dungeonmind/engine/reputation"
	"github.com/nathoo/dungeonmind/loader"
	"github.com/nathoo/dungeonmind/sim"
	"github.com/nathoo/dungeonmind/types"
)

// These tests run the shipped content documents end to end: Lua load,
// decision walk, quest trigger, lifecycle.

func loadContent(t *testing.T) (*engine.Engine, *sim.World) {
	t.Helper()
	defs, err := loader.Load(filepath.Join("..", "content"))
	if err != nil {
		t.Fatalf("loading content: %v", err)
	}
	world := sim.NewWorld(1)
	return engine.New(defs, reputation.NewLedger(), world, world, nil), world
}

func zealot(e *engine.Engine) types.ActorView {
	arch, _ := e.Defs.Archetype("cult_zealot")
	return types.ActorView{
		ID:          "zealot1",
		Archetype:   arch.ID,
		Faction:     arch.Faction,
		Personality: arch.Personality,
	}
}

func TestZealotHealsAtDeathsDoor(t *testing.T) {
	e, world := loadContent(t)
	actor := zealot(e)

	world.SetSignal(actor.ID, types.SignalHealthFraction, 0.2)
	world.SetSignal(actor.ID, types.SignalManaFraction, 0.9)
	world.AddSighting(actor.ID, types.Detection{EntityID: "pc", Distance: 3, Hostile: true})

	intent, err := e.Decide(actor, e.BuildSnapshot(actor.ID))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if intent == nil || intent.Action != "use_healing_potion" {
		t.Fatalf("intent = %+v, want use_healing_potion despite the visible enemy", intent)
	}
}

func TestZealotChargesWhenHealthy(t *testing.T) {
	e, world := loadContent(t)
	actor := zealot(e)

	world.SetSignal(actor.ID, types.SignalHealthFraction, 0.9)
	world.SetSignal(actor.ID, types.SignalManaFraction, 0.1) // no fireball
	world.AddSighting(actor.ID, types.Detection{EntityID: "pc", Distance: 3, Hostile: true})

	intent, err := e.Decide(actor, e.BuildSnapshot(actor.ID))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if intent == nil || intent.Action != "zealous_charge" {
		t.Fatalf("intent = %+v, want zealous_charge", intent)
	}
	if intent.TargetID != "pc" {
		t.Fatalf("target = %q, want pc", intent.TargetID)
	}
}

func TestRedemptionTrialReputationWindow(t *testing.T) {
	e, _ := loadContent(t)
	trial := types.WorldEvent{
		Type:      types.EventQuestGiverApproached,
		SubjectID: "pc",
		GiverID:   "flame_priest",
		Params:    map[string]string{"site": "ashen_shrine"},
	}

	e.Ledger.Restore(map[string]map[string]int{"pc": {"cult_of_flame": -10}})
	inst, err := e.OnEvent(trial, e.BuildSnapshot("flame_priest"))
	if err != nil {
		t.Fatalf("OnEvent: %v", err)
	}
	if inst != nil {
		t.Fatalf("reputation -10 is not hostile enough, got %q", inst.Template)
	}

	e.Ledger.Restore(map[string]map[string]int{"pc": {"cult_of_flame": -40}})
	inst, err = e.OnEvent(trial, e.BuildSnapshot("flame_priest"))
	if err != nil {
		t.Fatalf("OnEvent: %v", err)
	}
	if inst == nil || inst.Template != "redemption_trial" {
		t.Fatalf("inst = %+v, want redemption_trial", inst)
	}
	if inst.Vars["site"] != "ashen_shrine" {
		t.Fatalf("site bound to %q, want the event's site", inst.Vars["site"])
	}
}

func TestSabotageBaseRewardWithoutBonus(t *testing.T) {
	e, world := loadContent(t)
	world.SetPredicate("faction_war_active", true)
	e.Ledger.Restore(map[string]map[string]int{"pc": {"cult_of_flame": 20}})

	inst, err := e.OnEvent(types.WorldEvent{
		Type:      types.EventConflictStarted,
		SubjectID: "pc",
		GiverID:   "flame_priest",
		Params:    map[string]string{"target_faction": "ember_syndicate"},
	}, e.BuildSnapshot("flame_priest"))
	if err != nil {
		t.Fatalf("OnEvent: %v", err)
	}
	if inst == nil || inst.Template != "faction_war_sabotage" {
		t.Fatalf("inst = %+v, want faction_war_sabotage", inst)
	}

	if _, err := e.AcceptQuest(inst.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	got, err := e.AdvanceQuest(inst.ID, types.ObjectiveEvent{
		Kind:   types.ObjectiveDestroyStructure,
		Target: "siege_engine",
	})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if got.State != types.QuestSucceeded {
		t.Fatalf("state = %v, want succeeded with the optional objective undone", got.State)
	}

	// Base reward only: 20 + 15, not +5 for the undone crew objective.
	if rep := e.Reputation("pc", "cult_of_flame"); rep != 35 {
		t.Fatalf("cult reputation = %d, want 35", rep)
	}
	if rep := e.Reputation("pc", "ember_syndicate"); rep != -15 {
		t.Fatalf("syndicate reputation = %d, want -15", rep)
	}

	reports := e.ResolveOutcomes()
	if len(reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(reports))
	}
	mats := reports[0].Materials
	if len(mats) != 1 || mats[0].Kind != "coin" || mats[0].Amount < 40 || mats[0].Amount > 80 {
		t.Fatalf("materials = %+v, want one coin roll in [40,80]", mats)
	}
}

func TestGuardRetreatsWhenOutmatched(t *testing.T) {
	e, world := loadContent(t)
	arch, _ := e.Defs.Archetype("camp_guard")
	actor := types.ActorView{ID: "guard1", Archetype: arch.ID, Faction: arch.Faction, Personality: arch.Personality}

	world.SetSignal(actor.ID, types.SignalHealthFraction, 0.8)
	world.SetSignal(actor.ID, types.SignalThreatRatio, 2.0)
	world.AddSighting(actor.ID, types.Detection{EntityID: "pc", Distance: 5, Hostile: true})

	intent, err := e.Decide(actor, e.BuildSnapshot(actor.ID))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if intent == nil || intent.Action != "fall_back" {
		t.Fatalf("intent = %+v, want fall_back", intent)
	}
}
