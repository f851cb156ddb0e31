package quest

import (
	"hash/fnv"
	"strings"

	"github.com/nathoo/dungeonmind/types"
)

// isBinding reports whether a trigger param value is a {placeholder}
// binding rather than a literal filter.
func isBinding(v string) bool {
	return len(v) > 2 && v[0] == '{' && v[len(v)-1] == '}'
}

// bind resolves the template's placeholders to concrete values and
// instantiates a Pending instance with zeroed objective progress.
//
// Resolution order, later sources never overriding earlier ones:
//  1. builtins from the event (subject, giver, faction),
//  2. trigger param bindings ({x} pulls the event param's value),
//  3. declared variable pools, picked deterministically per
//     (template, giver, subject) so re-binding the same key is stable.
func (e *Engine) bind(tpl *types.QuestTemplate, trig types.TriggerDef, event types.WorldEvent) *types.QuestInstance {
	vars := map[string]string{
		"subject": event.SubjectID,
		"giver":   event.GiverID,
	}
	if f, ok := event.Params["faction"]; ok {
		vars["faction"] = f
	}

	for param, v := range trig.Params {
		if isBinding(v) {
			name := v[1 : len(v)-1]
			if _, taken := vars[name]; !taken {
				vars[name] = event.Params[param]
			}
		}
	}

	for name, pool := range e.defs.Variables {
		if len(pool) == 0 {
			continue
		}
		if _, taken := vars[name]; taken {
			continue
		}
		vars[name] = pool[poolIndex(tpl.ID, event.GiverID, event.SubjectID, name, len(pool))]
	}

	inst := &types.QuestInstance{
		ID:          e.newID(),
		Template:    tpl.ID,
		GiverID:     event.GiverID,
		SubjectID:   event.SubjectID,
		Vars:        vars,
		Name:        substitute(tpl.Name, vars),
		Description: substitute(tpl.Description, vars),
		State:       types.QuestPending,
		Objectives:  make([]types.ObjectiveProgress, len(tpl.Objectives)),
		CreatedTick: event.Tick,
	}
	for _, con := range tpl.Constraints {
		if con.Kind == types.ConstraintTimeLimit {
			inst.Deadline = con.Limit
		}
	}
	return inst
}

// poolIndex picks a pool entry deterministically from the instance key.
// Not randomness: the same (template, giver, subject) always binds the
// same value, which keeps replays and tests reproducible.
func poolIndex(template, giver, subject, pool string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(template))
	h.Write([]byte{0})
	h.Write([]byte(giver))
	h.Write([]byte{0})
	h.Write([]byte(subject))
	h.Write([]byte{0})
	h.Write([]byte(pool))
	return int(h.Sum32() % uint32(n))
}

// substitute replaces {name} tokens with bound values. Unbound tokens are
// left as-is; validation rejected them at load time, so any survivor means
// the defs were built by hand.
func substitute(text string, vars map[string]string) string {
	if !strings.Contains(text, "{") {
		return text
	}
	out := text
	for name, v := range vars {
		out = strings.ReplaceAll(out, "{"+name+"}", v)
	}
	return out
}
