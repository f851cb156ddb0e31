// Package cli provides terminal I/O, output formatting, and meta-command
// dispatch for the dungeonmind simulation console.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/nathoo/dungeonmind/engine"
	"github.com/nathoo/dungeonmind/engine/registry"
	"github.com/nathoo/dungeonmind/engine/save"
	"github.com/nathoo/dungeonmind/sim"
	"github.com/nathoo/dungeonmind/store"
	"github.com/nathoo/dungeonmind/types"
)

// CLI handles terminal interaction with the simulation.
type CLI struct {
	Engine    *engine.Engine
	World     *sim.World
	Store     store.Storage
	In        io.Reader
	Out       io.Writer
	Trace     bool
	EchoInput bool   // echo each input line after the prompt (for script playback)
	SavePath  string // default path for /export and /import
	TickLimit int    // cap on one tick command's count; zero = unlimited
	lastCmd   string // for "again"/"g" repeat
}

// New creates a CLI wired to the given engine, world and save store.
func New(eng *engine.Engine, world *sim.World, st store.Storage) *CLI {
	return &CLI{
		Engine: eng,
		World:  world,
		Store:  st,
		In:     os.Stdin,
		Out:    os.Stdout,
	}
}

// Run starts the console loop: prompt, input, dispatch, output.
func (c *CLI) Run() {
	scanner := bufio.NewScanner(c.In)
	for {
		c.print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		// Skip comment lines (for script files).
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		// Meta-commands start with '/'.
		if strings.HasPrefix(input, "/") {
			if c.handleMeta(input) {
				return // /quit
			}
			continue
		}

		// "again" / "g" repeats the last command.
		lower := strings.ToLower(input)
		if lower == "again" || lower == "g" {
			if c.lastCmd == "" {
				c.printLine("Nothing to repeat.")
				continue
			}
			input = c.lastCmd
		} else {
			c.lastCmd = input
		}

		c.dispatch(strings.Fields(input))
	}
}

// Execute runs one console command and returns its output lines and
// whether the console should exit. Used by the TUI, which owns the
// rendering.
func (c *CLI) Execute(input string) ([]string, bool) {
	var buf strings.Builder
	saved := c.Out
	c.Out = &buf
	defer func() { c.Out = saved }()

	quit := false
	if strings.HasPrefix(input, "/") {
		quit = c.handleMeta(input)
	} else if fields := strings.Fields(input); len(fields) > 0 {
		c.dispatch(fields)
	}

	out := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(out) == 1 && out[0] == "" {
		out = nil
	}
	return out, quit
}

func (c *CLI) dispatch(args []string) {
	switch args[0] {
	case "spawn":
		c.cmdSpawn(args[1:])
	case "set":
		c.cmdSet(args[1:])
	case "sight":
		c.cmdSight(args[1:])
	case "pred":
		c.cmdPred(args[1:])
	case "decide":
		c.cmdDecide(args[1:])
	case "tick":
		c.cmdTick(args[1:])
	case "event":
		c.cmdEvent(args[1:])
	case "accept":
		c.cmdAccept(args[1:])
	case "advance":
		c.cmdAdvance(args[1:])
	case "quests":
		c.cmdQuests()
	case "rep":
		c.cmdRep(args[1:])
	case "actors":
		c.cmdActors()
	default:
		c.printLine(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", args[0]))
	}
}

// handleMeta dispatches meta-commands. Returns true if the console should exit.
func (c *CLI) handleMeta(input string) bool {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		c.printLine("Goodbye.")
		return true

	case "/save":
		c.cmdSave(arg)

	case "/load":
		c.cmdLoad(arg)

	case "/saves":
		c.cmdSaves()

	case "/export":
		c.cmdExport(arg)

	case "/import":
		c.cmdImport(arg)

	case "/help":
		c.cmdHelp()

	case "/trace":
		c.Trace = !c.Trace
		if c.Trace {
			c.printLine("Trace output enabled.")
		} else {
			c.printLine("Trace output disabled.")
		}

	default:
		c.printLine(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
	}

	return false
}

// spawn <archetype> <actor_id> [trait=delta ...] layers optional
// per-instance trait deltas on the archetype's base personality.
func (c *CLI) cmdSpawn(args []string) {
	if len(args) < 2 {
		c.printLine("Usage: spawn <archetype> <actor_id> [trait=delta ...]")
		return
	}
	arch, err := c.Engine.Defs.Archetype(args[0])
	if err != nil {
		c.printLine(fmt.Sprintf("Spawn failed: %v", err))
		return
	}
	var delta types.Personality
	for _, kv := range args[2:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			c.printLine(fmt.Sprintf("Bad trait delta %q, want trait=delta.", kv))
			return
		}
		d, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.printLine(fmt.Sprintf("Bad trait delta: %v", err))
			return
		}
		switch k {
		case "aggression":
			delta.Aggression = d
		case "caution":
			delta.Caution = d
		case "curiosity":
			delta.Curiosity = d
		case "loyalty":
			delta.Loyalty = d
		case "fear_threshold":
			delta.FearThreshold = d
		case "pain_tolerance":
			delta.PainTolerance = d
		default:
			c.printLine(fmt.Sprintf("Unknown trait %q.", k))
			return
		}
	}
	c.Engine.AddActor(types.ActorView{
		ID:          args[1],
		Archetype:   arch.ID,
		Faction:     arch.Faction,
		Personality: registry.MergePersonality(arch.Personality, delta),
	})
	c.printLine(fmt.Sprintf("%s enters as %s (%s).", args[1], arch.Name, arch.Faction))
}

func (c *CLI) cmdSet(args []string) {
	if len(args) != 3 {
		c.printLine("Usage: set <actor> <health|mana|threat> <value>")
		return
	}
	signal, ok := map[string]string{
		"health": types.SignalHealthFraction,
		"mana":   types.SignalManaFraction,
		"threat": types.SignalThreatRatio,
	}[args[1]]
	if !ok {
		c.printLine(fmt.Sprintf("Unknown signal %q.", args[1]))
		return
	}
	v, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		c.printLine(fmt.Sprintf("Bad value: %v", err))
		return
	}
	c.World.SetSignal(args[0], signal, v)
	c.printLine(fmt.Sprintf("%s %s = %g", args[0], args[1], v))
}

// sight <actor> <entity> <distance> [hostile] [endangered] [faction=X] [item=TAG]
func (c *CLI) cmdSight(args []string) {
	if len(args) < 3 {
		c.printLine("Usage: sight <actor> <entity> <distance> [hostile] [endangered] [faction=X] [item=TAG]")
		return
	}
	dist, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		c.printLine(fmt.Sprintf("Bad distance: %v", err))
		return
	}
	d := types.Detection{EntityID: args[1], Distance: dist}
	for _, flag := range args[3:] {
		switch {
		case flag == "hostile":
			d.Hostile = true
		case flag == "endangered":
			d.Endangered = true
		case strings.HasPrefix(flag, "faction="):
			d.Faction = strings.TrimPrefix(flag, "faction=")
		case strings.HasPrefix(flag, "item="):
			d.ItemTag = strings.TrimPrefix(flag, "item=")
		default:
			c.printLine(fmt.Sprintf("Unknown sighting flag %q.", flag))
			return
		}
	}
	c.World.AddSighting(args[0], d)
	c.printLine(fmt.Sprintf("%s now sees %s at %.1f.", args[0], args[1], dist))
}

func (c *CLI) cmdPred(args []string) {
	if len(args) != 2 {
		c.printLine("Usage: pred <name> <true|false>")
		return
	}
	v, err := strconv.ParseBool(args[1])
	if err != nil {
		c.printLine(fmt.Sprintf("Bad value: %v", err))
		return
	}
	c.World.SetPredicate(args[0], v)
	c.printLine(fmt.Sprintf("world %s = %v", args[0], v))
}

func (c *CLI) cmdDecide(args []string) {
	if len(args) != 1 {
		c.printLine("Usage: decide <actor>")
		return
	}
	actor, ok := c.findActor(args[0])
	if !ok {
		c.printLine(fmt.Sprintf("No actor %q.", args[0]))
		return
	}
	snap := c.Engine.BuildSnapshot(actor.ID)
	intent, trace, err := c.Engine.DecideTraced(actor, snap)
	if err != nil {
		c.printLine(fmt.Sprintf("Decide failed: %v", err))
		return
	}
	if intent == nil {
		c.printLine(fmt.Sprintf("%s holds still.", actor.ID))
	} else {
		c.printIntent(*intent)
	}
	if c.Trace {
		for _, step := range trace {
			mark := "fail"
			if step.Pass {
				mark = "pass"
			}
			c.printLine(fmt.Sprintf("[trace] %3d %-8s %-24s %s", step.Node, nodeKindLabel(step.Kind), step.Label, mark))
		}
	}
}

func (c *CLI) cmdTick(args []string) {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			c.printLine("Usage: tick [count]")
			return
		}
		n = v
	}
	if c.TickLimit > 0 && n > c.TickLimit {
		c.printLine(fmt.Sprintf("Tick count capped at %d.", c.TickLimit))
		n = c.TickLimit
	}
	for i := 0; i < n; i++ {
		res := c.Engine.Tick()
		for _, intent := range res.Intents {
			c.printIntent(intent)
		}
		for _, rep := range res.Reports {
			c.printReport(rep)
		}
		for _, err := range res.Errors {
			c.printLine(fmt.Sprintf("Error: %v", err))
		}
	}
	c.printLine(fmt.Sprintf("Tick %d.", c.Engine.TickCount()))
}

// event <type> <subject> <giver> [k=v ...]
func (c *CLI) cmdEvent(args []string) {
	if len(args) < 3 {
		c.printLine("Usage: event <type> <subject> <giver> [key=value ...]")
		return
	}
	ev := types.WorldEvent{
		Type:      args[0],
		SubjectID: args[1],
		GiverID:   args[2],
		Params:    map[string]string{},
		Tick:      c.Engine.TickCount(),
	}
	for _, kv := range args[3:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			c.printLine(fmt.Sprintf("Bad parameter %q, want key=value.", kv))
			return
		}
		ev.Params[k] = v
	}
	// Quest-giver snapshot: requirement predicates come from the world.
	snap := c.Engine.BuildSnapshot(ev.GiverID)
	inst, err := c.Engine.OnEvent(ev, snap)
	if err != nil {
		c.printLine(fmt.Sprintf("Event rejected: %v", err))
		return
	}
	if inst == nil {
		c.printLine("No quest offered.")
		return
	}
	c.printLine(fmt.Sprintf("Quest offered: %s [%s]", inst.Name, inst.ID))
}

func (c *CLI) cmdAccept(args []string) {
	if len(args) != 1 {
		c.printLine("Usage: accept <instance_id>")
		return
	}
	id, ok := c.resolveInstance(args[0])
	if !ok {
		c.printLine(fmt.Sprintf("No quest instance matching %q.", args[0]))
		return
	}
	inst, err := c.Engine.AcceptQuest(id)
	if err != nil {
		c.printLine(fmt.Sprintf("Accept failed: %v", err))
		return
	}
	c.printLine(fmt.Sprintf("Accepted: %s", inst.Name))
}

// advance <instance> <objective_kind> <target> [count]
func (c *CLI) cmdAdvance(args []string) {
	if len(args) < 3 {
		c.printLine("Usage: advance <instance_id> <kind> <target> [count]")
		return
	}
	id, ok := c.resolveInstance(args[0])
	if !ok {
		c.printLine(fmt.Sprintf("No quest instance matching %q.", args[0]))
		return
	}
	kind, ok := objectiveKindNames[args[1]]
	if !ok {
		c.printLine(fmt.Sprintf("Unknown objective kind %q.", args[1]))
		return
	}
	ev := types.ObjectiveEvent{Kind: kind, Target: args[2]}
	if len(args) > 3 {
		n, err := strconv.Atoi(args[3])
		if err != nil {
			c.printLine(fmt.Sprintf("Bad count: %v", err))
			return
		}
		if kind == types.ObjectiveHoldTerritory || kind == types.ObjectiveSurviveTrial {
			ev.Elapsed = n
		} else {
			ev.Count = n
		}
	}
	inst, err := c.Engine.AdvanceQuest(id, ev)
	if err != nil {
		c.printLine(fmt.Sprintf("Advance failed: %v", err))
		return
	}
	c.printLine(fmt.Sprintf("%s: %s", inst.Name, stateLabel(inst.State)))
	for _, rep := range c.Engine.ResolveOutcomes() {
		c.printReport(rep)
	}
}

func (c *CLI) cmdQuests() {
	live, archived := c.Engine.Quests.Snapshot()
	if len(live) == 0 && len(archived) == 0 {
		c.printLine("No quests.")
		return
	}
	for _, inst := range live {
		c.printLine(fmt.Sprintf("%s  %-9s %s", shortID(inst.ID), stateLabel(inst.State), inst.Name))
	}
	for _, inst := range archived {
		c.printLine(fmt.Sprintf("%s  archived  %s", shortID(inst.ID), inst.Name))
	}
}

// rep <subject> <faction> shows a score; rep <subject> <faction> <delta>
// applies a delta.
func (c *CLI) cmdRep(args []string) {
	switch len(args) {
	case 2:
		c.printLine(fmt.Sprintf("%s / %s = %d", args[0], args[1], c.Engine.Reputation(args[0], args[1])))
	case 3:
		delta, err := strconv.Atoi(args[2])
		if err != nil {
			c.printLine(fmt.Sprintf("Bad delta: %v", err))
			return
		}
		after := c.Engine.ApplyReputationDelta(args[0], args[1], delta)
		c.printLine(fmt.Sprintf("%s / %s = %d", args[0], args[1], after))
	default:
		c.printLine("Usage: rep <subject> <faction> [delta]")
	}
}

func (c *CLI) cmdActors() {
	actors := c.Engine.Actors()
	if len(actors) == 0 {
		c.printLine("No actors.")
		return
	}
	for _, a := range actors {
		c.printLine(fmt.Sprintf("%-12s %-14s %s", a.ID, a.Archetype, a.Faction))
	}
}

func (c *CLI) cmdSave(name string) {
	if name == "" {
		name = "quicksave"
	}
	data, err := save.Capture(c.Engine)
	if err != nil {
		c.printLine(fmt.Sprintf("Save failed: %v", err))
		return
	}
	if err := c.Store.PutSave(context.Background(), name, data); err != nil {
		c.printLine(fmt.Sprintf("Save failed: %v", err))
		return
	}
	c.printLine(fmt.Sprintf("Saved to slot %s.", name))
}

func (c *CLI) cmdLoad(name string) {
	if name == "" {
		name = "quicksave"
	}
	data, err := c.Store.GetSave(context.Background(), name)
	if err != nil {
		c.printLine(fmt.Sprintf("Load failed: %v", err))
		return
	}
	if data == nil {
		c.printLine(fmt.Sprintf("No save in slot %s.", name))
		return
	}
	sd, err := save.Load(data)
	if err != nil {
		c.printLine(fmt.Sprintf("Load failed: %v", err))
		return
	}
	if err := save.Apply(c.Engine, sd); err != nil {
		c.printLine(fmt.Sprintf("Load failed: %v", err))
		return
	}
	c.printLine(fmt.Sprintf("Loaded slot %s (tick %d).", name, sd.Tick))
}

func (c *CLI) cmdSaves() {
	slots, err := c.Store.ListSaves(context.Background())
	if err != nil {
		c.printLine(fmt.Sprintf("List failed: %v", err))
		return
	}
	if len(slots) == 0 {
		c.printLine("No saves.")
		return
	}
	for _, slot := range slots {
		c.printLine("  " + slot)
	}
}

func (c *CLI) cmdExport(path string) {
	if path == "" {
		path = c.SavePath
	}
	if path == "" {
		c.printLine("Usage: /export <path>")
		return
	}
	if err := save.WriteFile(path, c.Engine); err != nil {
		c.printLine(fmt.Sprintf("Export failed: %v", err))
		return
	}
	c.printLine(fmt.Sprintf("Exported to %s.", path))
}

func (c *CLI) cmdImport(path string) {
	if path == "" {
		path = c.SavePath
	}
	if path == "" {
		c.printLine("Usage: /import <path>")
		return
	}
	if err := save.ReadFile(path, c.Engine); err != nil {
		c.printLine(fmt.Sprintf("Import failed: %v", err))
		return
	}
	c.printLine(fmt.Sprintf("Imported %s.", path))
}

func (c *CLI) cmdHelp() {
	help := []string{
		"System:",
		"  /save [slot]   — Save to the store (default: quicksave)",
		"  /load [slot]   — Load from the store (default: quicksave)",
		"  /saves         — List save slots",
		"  /export [path] — Write a compressed save file (default: configured save path)",
		"  /import [path] — Read a compressed save file (default: configured save path)",
		"  /trace         — Toggle decision trace output",
		"  /quit          — Exit",
		"  /help          — Show this help",
		"",
		"Simulation:",
		"  spawn <archetype> <id> [trait=delta ...] — Add an NPC",
		"  actors                        — List NPCs",
		"  set <actor> <signal> <v>      — Set health/mana/threat",
		"  sight <actor> <entity> <dist> — Add a sighting (flags: hostile, endangered, faction=, item=)",
		"  pred <name> <bool>            — Set a world predicate",
		"  decide <actor>                — Run one decision",
		"  tick [n]                      — Advance the simulation",
		"  event <type> <subject> <giver> [k=v ...]",
		"  accept <instance>             — Accept an offered quest",
		"  advance <instance> <kind> <target> [count]",
		"  quests                        — List quest instances",
		"  rep <subject> <faction> [delta]",
		"  again (g)                     — Repeat your last command",
	}
	for _, line := range help {
		c.printLine(line)
	}
}

func (c *CLI) printIntent(intent types.ActionIntent) {
	if intent.TargetID != "" {
		c.printLine(fmt.Sprintf("%s -> %s (%s)", intent.ActorID, intent.Action, intent.TargetID))
		return
	}
	c.printLine(fmt.Sprintf("%s -> %s", intent.ActorID, intent.Action))
}

func (c *CLI) printReport(rep engine.QuestReport) {
	c.printLine(fmt.Sprintf("Quest %s: %s", shortID(rep.Outcome.InstanceID), stateLabel(rep.Outcome.State)))
	for faction, delta := range rep.Outcome.Reputation {
		c.printLine(fmt.Sprintf("  reputation %s %+d", faction, delta))
	}
	for _, m := range rep.Materials {
		c.printLine(fmt.Sprintf("  reward %d %s", m.Amount, m.Kind))
	}
	for _, tag := range rep.Outcome.WorldEffects {
		c.printLine(fmt.Sprintf("  world effect %s", tag))
	}
}

func (c *CLI) findActor(id string) (types.ActorView, bool) {
	for _, a := range c.Engine.Actors() {
		if a.ID == id {
			return a, true
		}
	}
	return types.ActorView{}, false
}

// resolveInstance accepts a full instance id or an unambiguous prefix.
func (c *CLI) resolveInstance(prefix string) (string, bool) {
	live, archived := c.Engine.Quests.Snapshot()
	var match string
	for _, inst := range append(live, archived...) {
		if strings.HasPrefix(inst.ID, prefix) {
			if match != "" && match != inst.ID {
				return "", false
			}
			match = inst.ID
		}
	}
	return match, match != ""
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func stateLabel(st types.QuestState) string {
	switch st {
	case types.QuestPending:
		return "pending"
	case types.QuestActive:
		return "active"
	case types.QuestSucceeded:
		return "succeeded"
	case types.QuestFailed:
		return "failed"
	case types.QuestArchived:
		return "archived"
	}
	return "unknown"
}

func nodeKindLabel(k types.NodeKind) string {
	switch k {
	case types.NodeSelector:
		return "selector"
	case types.NodeSequence:
		return "sequence"
	case types.NodeGate:
		return "gate"
	case types.NodeLeaf:
		return "leaf"
	}
	return "unknown"
}

var objectiveKindNames = map[string]types.ObjectiveKind{
	"destroy_structure": types.ObjectiveDestroyStructure,
	"eliminate":         types.ObjectiveEliminate,
	"retrieve":          types.ObjectiveRetrieve,
	"deliver":           types.ObjectiveDeliver,
	"negotiate":         types.ObjectiveNegotiate,
	"hold_territory":    types.ObjectiveHoldTerritory,
	"survive_trial":     types.ObjectiveSurviveTrial,
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}
