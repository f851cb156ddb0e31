// Package save implements JSON serialization of engine state, with
// zstd-compressed file storage.
package save

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/nathoo/dungeonmind/engine"
	"github.com/nathoo/dungeonmind/types"
)

// FormatVersion is bumped on incompatible save layout changes.
const FormatVersion = 1

// SaveData is the JSON-serializable save format. Definitions are not
// saved; a load pairs this state with freshly loaded content and refuses
// instances whose template id no longer resolves.
type SaveData struct {
	Version    int                       `json:"version"`
	Tick       int                       `json:"tick"`
	Reputation map[string]map[string]int `json:"reputation"`
	Quests     []QuestV1                 `json:"quests"`
	Archived   []QuestV1                 `json:"archived,omitempty"`
}

// QuestV1 is the on-disk form of a quest instance.
type QuestV1 struct {
	ID          string            `json:"id"`
	Template    string            `json:"template"`
	Giver       string            `json:"giver"`
	Subject     string            `json:"subject"`
	State       string            `json:"state"`
	Vars        map[string]string `json:"vars,omitempty"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Objectives  []ObjectiveV1     `json:"objectives,omitempty"`
	Clock       int               `json:"clock,omitempty"`
	Deadline    int               `json:"deadline,omitempty"`
	FailCause   string            `json:"fail_cause,omitempty"`
	CreatedTick int               `json:"created_tick,omitempty"`
}

// ObjectiveV1 is the on-disk form of objective progress.
type ObjectiveV1 struct {
	ID       string `json:"id"`
	Progress int    `json:"progress,omitempty"`
	Done     bool   `json:"done,omitempty"`
}

var stateNames = map[types.QuestState]string{
	types.QuestPending:   "pending",
	types.QuestActive:    "active",
	types.QuestSucceeded: "succeeded",
	types.QuestFailed:    "failed",
	types.QuestArchived:  "archived",
}

func stateByName(name string) (types.QuestState, bool) {
	for st, n := range stateNames {
		if n == name {
			return st, true
		}
	}
	return 0, false
}

func toQuestV1(inst types.QuestInstance, tpl types.QuestTemplate) QuestV1 {
	q := QuestV1{
		ID:          inst.ID,
		Template:    inst.Template,
		Giver:       inst.GiverID,
		Subject:     inst.SubjectID,
		State:       stateNames[inst.State],
		Vars:        inst.Vars,
		Name:        inst.Name,
		Description: inst.Description,
		Clock:       inst.Clock,
		Deadline:    inst.Deadline,
		FailCause:   inst.FailCause,
		CreatedTick: inst.CreatedTick,
	}
	for i, prog := range inst.Objectives {
		id := ""
		if i < len(tpl.Objectives) {
			id = tpl.Objectives[i].ID
		}
		q.Objectives = append(q.Objectives, ObjectiveV1{
			ID:       id,
			Progress: prog.Progress,
			Done:     prog.Done,
		})
	}
	return q
}

func fromQuestV1(q QuestV1, tpl types.QuestTemplate) (types.QuestInstance, error) {
	st, ok := stateByName(q.State)
	if !ok {
		return types.QuestInstance{}, fmt.Errorf("quest %s: unknown state %q", q.ID, q.State)
	}
	inst := types.QuestInstance{
		ID:          q.ID,
		Template:    q.Template,
		GiverID:     q.Giver,
		SubjectID:   q.Subject,
		Vars:        q.Vars,
		Name:        q.Name,
		Description: q.Description,
		State:       st,
		Objectives:  make([]types.ObjectiveProgress, len(tpl.Objectives)),
		Clock:       q.Clock,
		Deadline:    q.Deadline,
		FailCause:   q.FailCause,
		CreatedTick: q.CreatedTick,
	}
	// Progress is matched by objective id so content reordering between
	// save and load stays harmless.
	byID := map[string]ObjectiveV1{}
	for _, o := range q.Objectives {
		byID[o.ID] = o
	}
	for i, def := range tpl.Objectives {
		if o, found := byID[def.ID]; found {
			inst.Objectives[i] = types.ObjectiveProgress{Progress: o.Progress, Done: o.Done}
		}
	}
	return inst, nil
}

// Capture serializes engine state to JSON bytes. Output is deterministic
// for identical state: quest slices come back ID-sorted from the quest
// engine and map keys are sorted by the JSON encoder.
func Capture(e *engine.Engine) ([]byte, error) {
	live, archived := e.Quests.Snapshot()
	data := SaveData{
		Version:    FormatVersion,
		Tick:       e.TickCount(),
		Reputation: e.Ledger.Snapshot(),
	}
	for _, inst := range live {
		tpl, err := e.Defs.Template(inst.Template)
		if err != nil {
			return nil, fmt.Errorf("quest %s: %w", inst.ID, err)
		}
		data.Quests = append(data.Quests, toQuestV1(inst, tpl))
	}
	for _, inst := range archived {
		tpl, err := e.Defs.Template(inst.Template)
		if err != nil {
			return nil, fmt.Errorf("quest %s: %w", inst.ID, err)
		}
		data.Archived = append(data.Archived, toQuestV1(inst, tpl))
	}
	if data.Quests == nil {
		data.Quests = []QuestV1{}
	}
	return json.MarshalIndent(data, "", "  ")
}

// Load deserializes JSON bytes into SaveData.
func Load(data []byte) (*SaveData, error) {
	var sd SaveData
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, err
	}
	if sd.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported save version %d", sd.Version)
	}
	if sd.Reputation == nil {
		sd.Reputation = map[string]map[string]int{}
	}
	return &sd, nil
}

// Apply restores loaded save data onto an engine. Quest instances whose
// template no longer exists in the loaded definitions are rejected rather
// than silently dropped.
func Apply(e *engine.Engine, sd *SaveData) error {
	live, err := rebuild(e, sd.Quests)
	if err != nil {
		return err
	}
	archived, err := rebuild(e, sd.Archived)
	if err != nil {
		return err
	}
	e.Ledger.Restore(sd.Reputation)
	e.Quests.Restore(live, archived)
	e.RestoreTick(sd.Tick)
	return nil
}

func rebuild(e *engine.Engine, saved []QuestV1) ([]types.QuestInstance, error) {
	var out []types.QuestInstance
	for _, q := range saved {
		tpl, err := e.Defs.Template(q.Template)
		if err != nil {
			return nil, fmt.Errorf("quest %s: %w", q.ID, err)
		}
		inst, err := fromQuestV1(q, tpl)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// WriteFile captures engine state and writes it zstd-compressed. The
// write goes through a temp file and rename so a crash never leaves a
// truncated save behind.
func WriteFile(path string, e *engine.Engine) error {
	data, err := Capture(e)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return err
	}
	bw := bufio.NewWriter(enc)
	if _, err := bw.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadFile reads a zstd-compressed save and applies it to an engine.
func ReadFile(path string, e *engine.Engine) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	raw, err := io.ReadAll(dec)
	if err != nil {
		return err
	}
	sd, err := Load(raw)
	if err != nil {
		return err
	}
	return Apply(e, sd)
}
