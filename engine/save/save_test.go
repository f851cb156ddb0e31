package save

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nathoo/dungeonmind/engine"
	"github.com/nathoo/dungeonmind/engine/registry"
	"github.com/nathoo/dungeonmind/engine/reputation"
	"github.com/nathoo/dungeonmind/types"
)

func saveDefs() *registry.Defs {
	return &registry.Defs{
		Templates: []types.QuestTemplate{
			{
				ID:   "patrol",
				Name: "Patrol for {giver}",
				Triggers: []types.TriggerDef{
					{Event: types.EventQuestGiverApproached},
				},
				Objectives: []types.ObjectiveDef{
					{ID: "sweep", Kind: types.ObjectiveEliminate, Target: "vermin", Count: 3},
					{ID: "report", Kind: types.ObjectiveNegotiate, Target: "sergeant", Count: 1},
				},
			},
		},
		TemplateIndex: map[string]int{"patrol": 0},
	}
}

func newSaveEngine() *engine.Engine {
	return engine.New(saveDefs(), reputation.NewLedger(), nil, nil, nil)
}

func emptySnap() *types.WorldSnapshot {
	return &types.WorldSnapshot{Predicates: map[string]bool{}}
}

// populate grants one pending and one active-with-progress instance and
// touches the ledger and the clock.
func populate(t *testing.T, e *engine.Engine) {
	t.Helper()
	e.ApplyReputationDelta("pc", "watch", 40)
	e.ApplyReputationDelta("pc", "outlaws", -25)

	if _, err := e.OnEvent(types.WorldEvent{
		Type: types.EventQuestGiverApproached, SubjectID: "pc", GiverID: "captain",
	}, emptySnap()); err != nil {
		t.Fatalf("grant: %v", err)
	}
	inst, err := e.OnEvent(types.WorldEvent{
		Type: types.EventQuestGiverApproached, SubjectID: "pc", GiverID: "sergeant",
	}, emptySnap())
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := e.AcceptQuest(inst.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := e.AdvanceQuest(inst.ID, types.ObjectiveEvent{
		Kind: types.ObjectiveEliminate, Target: "vermin", Count: 2,
	}); err != nil {
		t.Fatalf("advance: %v", err)
	}

	e.Tick()
	e.Tick()
	e.Tick()
}

func TestCaptureApplyRoundTrip(t *testing.T) {
	src := newSaveEngine()
	populate(t, src)

	data, err := Capture(src)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	dst := newSaveEngine()
	sd, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := Apply(dst, sd); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if dst.TickCount() != src.TickCount() {
		t.Fatalf("tick = %d, want %d", dst.TickCount(), src.TickCount())
	}
	if got := dst.Reputation("pc", "watch"); got != 40 {
		t.Fatalf("watch rep = %d, want 40", got)
	}
	if got := dst.Reputation("pc", "outlaws"); got != -25 {
		t.Fatalf("outlaws rep = %d, want -25", got)
	}

	srcLive, srcArch := src.Quests.Snapshot()
	dstLive, dstArch := dst.Quests.Snapshot()
	if !reflect.DeepEqual(srcLive, dstLive) {
		t.Fatalf("live instances diverged:\n%+v\n%+v", srcLive, dstLive)
	}
	if !reflect.DeepEqual(srcArch, dstArch) {
		t.Fatalf("archived instances diverged:\n%+v\n%+v", srcArch, dstArch)
	}

	// Duplicate-grant protection must survive the restore.
	if _, err := dst.OnEvent(types.WorldEvent{
		Type: types.EventQuestGiverApproached, SubjectID: "pc", GiverID: "captain",
	}, emptySnap()); err == nil {
		t.Fatal("restored engine accepted a duplicate grant")
	}
}

func TestCaptureIsDeterministic(t *testing.T) {
	e := newSaveEngine()
	populate(t, e)

	a, err := Capture(e)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	b, err := Capture(e)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("identical state produced different bytes")
	}
}

func TestCaptureMatchesSchema(t *testing.T) {
	schema, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", "save.schema.json"))
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}

	for _, tc := range []struct {
		name     string
		populate bool
	}{
		{"fresh engine", false},
		{"populated engine", true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e := newSaveEngine()
			if tc.populate {
				populate(t, e)
			}
			data, err := Capture(e)
			if err != nil {
				t.Fatalf("Capture: %v", err)
			}
			var doc any
			if err := json.Unmarshal(data, &doc); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if err := schema.Validate(doc); err != nil {
				t.Fatalf("save does not match schema: %v", err)
			}
		})
	}
}

func TestLoadRejectsBadVersion(t *testing.T) {
	_, err := Load([]byte(`{"version": 99, "tick": 0, "reputation": {}, "quests": []}`))
	if err == nil || !strings.Contains(err.Error(), "version") {
		t.Fatalf("err = %v, want version rejection", err)
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	if _, err := Load([]byte(`{"version": 1,`)); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestApplyRejectsUnknownTemplate(t *testing.T) {
	sd := &SaveData{
		Version: FormatVersion,
		Quests: []QuestV1{
			{ID: "q1", Template: "deleted_template", Giver: "g", Subject: "pc", State: "pending"},
		},
	}
	err := Apply(newSaveEngine(), sd)
	if err == nil {
		t.Fatal("expected an error for a template missing from content")
	}
	if !strings.Contains(err.Error(), "deleted_template") {
		t.Fatalf("err = %v, want the template named", err)
	}
}

func TestApplyRejectsUnknownState(t *testing.T) {
	sd := &SaveData{
		Version: FormatVersion,
		Quests: []QuestV1{
			{ID: "q1", Template: "patrol", Giver: "g", Subject: "pc", State: "paused"},
		},
	}
	if err := Apply(newSaveEngine(), sd); err == nil {
		t.Fatal("expected an error for an unknown state name")
	}
}

func TestObjectiveProgressMatchedByID(t *testing.T) {
	// Saved order is reversed relative to the template; progress must still
	// land on the right objectives.
	sd := &SaveData{
		Version: FormatVersion,
		Quests: []QuestV1{
			{
				ID: "q1", Template: "patrol", Giver: "g", Subject: "pc", State: "active",
				Objectives: []ObjectiveV1{
					{ID: "report", Progress: 1, Done: true},
					{ID: "sweep", Progress: 2},
				},
			},
		},
	}
	e := newSaveEngine()
	if err := Apply(e, sd); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	inst, err := e.Quests.Get("q1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if inst.Objectives[0].Progress != 2 || inst.Objectives[0].Done {
		t.Fatalf("sweep progress = %+v, want 2/undone", inst.Objectives[0])
	}
	if inst.Objectives[1].Progress != 1 || !inst.Objectives[1].Done {
		t.Fatalf("report progress = %+v, want 1/done", inst.Objectives[1])
	}
}

func TestWriteReadFile(t *testing.T) {
	src := newSaveEngine()
	populate(t, src)

	path := filepath.Join(t.TempDir(), "saves", "slot1.sav")
	if err := WriteFile(path, src); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// The payload on disk is zstd, not raw JSON.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	magic := []byte{0x28, 0xb5, 0x2f, 0xfd}
	if len(raw) < 4 || !bytes.Equal(raw[:4], magic) {
		t.Fatalf("file does not start with the zstd magic: % x", raw[:4])
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp file left behind")
	}

	dst := newSaveEngine()
	if err := ReadFile(path, dst); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if dst.TickCount() != src.TickCount() {
		t.Fatalf("tick = %d, want %d", dst.TickCount(), src.TickCount())
	}
	srcLive, _ := src.Quests.Snapshot()
	dstLive, _ := dst.Quests.Snapshot()
	if !reflect.DeepEqual(srcLive, dstLive) {
		t.Fatal("instances diverged across the file round trip")
	}
}

func TestReadFileMissing(t *testing.T) {
	err := ReadFile(filepath.Join(t.TempDir(), "nope.sav"), newSaveEngine())
	if !os.IsNotExist(err) {
		t.Fatalf("err = %v, want not-exist", err)
	}
}
