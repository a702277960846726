package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/kater/internal/game/action"
)

// RegisterModules registers the kater Lua table into L:
//
//	kater.log(msg)           writes msg to the host log at info level
//	kater.is_skill(category) reports whether category trains a skill
//	kater.categories()       returns every category name in declaration order
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: kater global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"log": func(L *lua.LState) int {
			m.logger.Info("script", zap.String("msg", L.CheckString(1)))
			return 0
		},
		"is_skill": func(L *lua.LState) int {
			c, err := action.ParseCategory(L.CheckString(1))
			L.Push(lua.LBool(err == nil && c.IsSkill()))
			return 1
		},
		"categories": func(L *lua.LState) int {
			t := L.NewTable()
			for _, c := range action.Categories {
				t.Append(lua.LString(c.String()))
			}
			L.Push(t)
			return 1
		},
	})
	L.SetGlobal("kater", mod)
}
