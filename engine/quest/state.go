package quest

import (
	"sort"

	"github.com/nathoo/dungeonmind/types"
)

// Snapshot exports copies of all live and archived instances in stable
// (ID-sorted) order, for serialization.
func (e *Engine) Snapshot() (live, archived []types.QuestInstance) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, inst := range e.instances {
		live = append(live, *cloneInstance(inst))
	}
	sort.Slice(live, func(i, j int) bool { return live[i].ID < live[j].ID })

	for _, inst := range e.archived {
		archived = append(archived, *cloneInstance(inst))
	}
	sort.Slice(archived, func(i, j int) bool { return archived[i].ID < archived[j].ID })
	return live, archived
}

// Restore replaces the engine's instances with a snapshot, rebuilding the
// duplicate-grant index from the non-terminal instances. Pending outcomes
// are not part of a snapshot; hosts drain them before saving.
func (e *Engine) Restore(live, archived []types.QuestInstance) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.instances = map[string]*types.QuestInstance{}
	e.active = map[instanceKey]string{}
	e.archived = nil
	e.outcomes = nil

	for i := range live {
		inst := cloneInstance(&live[i])
		e.instances[inst.ID] = inst
		if inst.State == types.QuestPending || inst.State == types.QuestActive {
			e.active[instanceKey{giver: inst.GiverID, template: inst.Template}] = inst.ID
		}
	}
	for i := range archived {
		e.archived = append(e.archived, cloneInstance(&archived[i]))
	}
}
