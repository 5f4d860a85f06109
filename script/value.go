package script

import (
	"encoding/json"
	"sort"

	lua "github.com/yuin/gopher-lua"
)

// goToLua translates a Go value decoded from JSON (or a plain map/slice
// built by the runtime) into its Lua equivalent, per spec.md §4.I's
// numbers/booleans/strings/sequences/maps/nil round-trip.
func goToLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case float64:
		return lua.LNumber(val)
	case int:
		return lua.LNumber(val)
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(val, &decoded); err != nil {
			return lua.LNil
		}
		return goToLua(L, decoded)
	case []any:
		t := L.NewTable()
		for i, elem := range val {
			t.RawSetInt(i+1, goToLua(L, elem))
		}
		return t
	case map[string]any:
		t := L.NewTable()
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			t.RawSetString(k, goToLua(L, val[k]))
		}
		return t
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return lua.LNil
		}
		var decoded any
		if err := json.Unmarshal(data, &decoded); err != nil {
			return lua.LNil
		}
		return goToLua(L, decoded)
	}
}

// luaToGo translates a Lua value back into a JSON-compatible Go value.
func luaToGo(v lua.LValue) any {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(val)
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return float64(val)
	case *lua.LTable:
		return tableToGo(val)
	default:
		return nil
	}
}

// tableToGo converts an LTable to either a []any (dense 1-based integer
// keys with no gaps) or a map[string]any, matching how JSON arrays and
// objects decode in Go.
func tableToGo(t *lua.LTable) any {
	maxN := t.Len()
	isArray := maxN > 0
	out := map[string]any{}
	t.ForEach(func(k, val lua.LValue) {
		switch key := k.(type) {
		case lua.LNumber:
			out[key.String()] = luaToGo(val)
		case lua.LString:
			isArray = false
			out[string(key)] = luaToGo(val)
		}
	})
	if isArray {
		arr := make([]any, maxN)
		for i := 1; i <= maxN; i++ {
			arr[i-1] = luaToGo(t.RawGetInt(i))
		}
		return arr
	}
	return out
}

// goToLuaJSON marshals a Go value to JSON and translates it into Lua,
// used when a primitive's result arrives as json.RawMessage.
func goToLuaJSON(L *lua.LState, raw json.RawMessage) lua.LValue {
	if len(raw) == 0 {
		return lua.LNil
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return lua.LNil
	}
	return goToLua(L, decoded)
}

// luaValueToJSON translates a Lua value into a JSON-encoded byte slice.
func luaValueToJSON(v lua.LValue) (json.RawMessage, error) {
	return json.Marshal(luaToGo(v))
}
