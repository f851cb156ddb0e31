package loader

import (
	lua "github.com/yuin/gopher-lua"
)

// rawArchetype holds an archetype table before compilation.
type rawArchetype struct {
	id    string
	table *lua.LTable
}

// rawCondition holds a condition table before compilation.
type rawCondition struct {
	name  string
	table *lua.LTable
}

// rawAction holds an action table before compilation.
type rawAction struct {
	name  string
	table *lua.LTable
}

// rawTree holds a behavior tree table before compilation.
type rawTree struct {
	id    string
	table *lua.LTable
}

// rawTemplate holds a quest template table before compilation.
type rawTemplate struct {
	id    string
	table *lua.LTable
}

// registerAPI registers all Lua constructors and helpers as globals.
func registerAPI(L *lua.LState, coll *collector) {
	registerConstructors(L, coll)
	registerTreeHelpers(L)
	registerQuestHelpers(L)
}

func registerConstructors(L *lua.LState, coll *collector) {
	// Archetype "id" { ... } — curried: Archetype("id") returns a function
	// that takes the definition table.
	L.SetGlobal("Archetype", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.archetypes = append(coll.archetypes, rawArchetype{id: id, table: tbl})
			return 0
		}))
		return 1
	}))

	// Condition "name" { kind = "...", ... } — curried.
	L.SetGlobal("Condition", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.conditions = append(coll.conditions, rawCondition{name: name, table: tbl})
			return 0
		}))
		return 1
	}))

	// Action "name" { kind = "...", ... } — curried.
	L.SetGlobal("Action", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.actions = append(coll.actions, rawAction{name: name, table: tbl})
			return 0
		}))
		return 1
	}))

	// Tree "id" { description = "...", root = Selector { ... } } — curried.
	L.SetGlobal("Tree", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.trees = append(coll.trees, rawTree{id: id, table: tbl})
			return 0
		}))
		return 1
	}))

	// QuestTemplate "id" { ... } — curried.
	L.SetGlobal("QuestTemplate", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.templates = append(coll.templates, rawTemplate{id: id, table: tbl})
			return 0
		}))
		return 1
	}))

	// QuestVariables { pool_name = { "value", ... }, ... }
	L.SetGlobal("QuestVariables", L.NewFunction(func(L *lua.LState) int {
		coll.variables = L.CheckTable(1)
		return 0
	}))

	// DynamicModifiers { faction_pride = { faction_id = 1.2, ... } }
	L.SetGlobal("DynamicModifiers", L.NewFunction(func(L *lua.LState) int {
		coll.modifiers = L.CheckTable(1)
		return 0
	}))
}

// registerTreeHelpers registers the node constructors used inside Tree
// definitions. Each returns a plain table with a "type" tag; compile()
// turns the nested tables into arena nodes.
func registerTreeHelpers(L *lua.LState) {
	// Selector { child1, child2, ... }
	L.SetGlobal("Selector", L.NewFunction(func(L *lua.LState) int {
		children := L.CheckTable(1)
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString("selector"))
		tbl.RawSetString("children", children)
		L.Push(tbl)
		return 1
	}))

	// Sequence { child1, child2, ... }
	L.SetGlobal("Sequence", L.NewFunction(func(L *lua.LState) int {
		children := L.CheckTable(1)
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString("sequence"))
		tbl.RawSetString("children", children)
		L.Push(tbl)
		return 1
	}))

	// Gate("condition_name", child)
	L.SetGlobal("Gate", L.NewFunction(func(L *lua.LState) int {
		cond := L.CheckString(1)
		child := L.CheckTable(2)
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString("gate"))
		tbl.RawSetString("condition", lua.LString(cond))
		tbl.RawSetString("child", child)
		L.Push(tbl)
		return 1
	}))

	// Do "action_name"
	L.SetGlobal("Do", L.NewFunction(func(L *lua.LState) int {
		action := L.CheckString(1)
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString("leaf"))
		tbl.RawSetString("action", lua.LString(action))
		L.Push(tbl)
		return 1
	}))
}

// registerQuestHelpers registers the constructors used inside QuestTemplate
// definitions.
func registerQuestHelpers(L *lua.LState) {
	// Trigger("event_type", { param = "value" or "{placeholder}" })
	// The params table is optional.
	L.SetGlobal("Trigger", L.NewFunction(func(L *lua.LState) int {
		event := L.CheckString(1)
		tbl := L.NewTable()
		tbl.RawSetString("event", lua.LString(event))
		if params, ok := L.Get(2).(*lua.LTable); ok {
			tbl.RawSetString("params", params)
		}
		L.Push(tbl)
		return 1
	}))
}
