package script

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/AnthusAI/Tactus/eventlog"
)

// installLog installs the Log capability table, appending log-class events
// through the invocation's event log.
func (b *Bridge) installLog() {
	t := b.L.NewTable()
	for _, level := range []string{"info", "warn", "error"} {
		level := level
		t.RawSetString(level, b.L.NewFunction(func(L *lua.LState) int {
			msg := L.CheckString(1)
			if b.log != nil {
				_, _ = b.log.Append(b.ctx, eventlog.Event{
					Type:    eventlog.TypeLog,
					Payload: map[string]any{"level": level, "message": msg},
				})
			}
			return 0
		}))
	}
	b.L.SetGlobal("Log", t)
}
