package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/kater/internal/game/scheduler"
)

// HookActionComplete is the global Lua function consulted after every resolved
// action: on_action_complete(category, tier, experience, info) -> bonus.
const HookActionComplete = "on_action_complete"

// Manager owns one sandboxed LState and dispatches hooks into it. Each call
// gets its own instruction budget.
//
// Manager is safe for concurrent use; calls into the VM are serialized.
type Manager struct {
	mu     sync.Mutex
	L      *lua.LState
	limit  int
	logger *zap.Logger
}

// NewManager creates a Manager with no scripts loaded.
//
// Precondition: logger must be non-nil.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

// LoadDir creates a sandboxed VM, registers the kater module, then executes
// every *.lua file in scriptDir in lexicographic order. A previously loaded VM
// is replaced only on success.
//
// Precondition: scriptDir must be a readable directory; instLimit >= 0.
// Postcondition: Returns an error on read or Lua load failure.
func (m *Manager) LoadDir(scriptDir string, instLimit int) error {
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q: %w", scriptDir, err)
	}
	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	L := NewSandboxedState(instLimit)
	m.RegisterModules(L)
	for _, path := range luaFiles {
		cancel := arm(L, instLimit)
		err := L.DoFile(path)
		cancel()
		if err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}

	m.mu.Lock()
	if m.L != nil {
		m.L.Close()
	}
	m.L = L
	m.limit = instLimit
	m.mu.Unlock()

	m.logger.Info("scripts loaded",
		zap.String("dir", scriptDir),
		zap.Int("files", len(luaFiles)),
	)
	return nil
}

// CallHook calls the named Lua global function. Returns (LNil, nil) if no VM is
// loaded or the hook is not defined.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or a non-nil
// error on a Lua runtime error or exhausted instruction budget.
func (m *Manager) CallHook(hook string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.call(hook, args...)
}

// call dispatches hook. Caller holds m.mu.
func (m *Manager) call(hook string, args ...lua.LValue) (lua.LValue, error) {
	if m.L == nil {
		return lua.LNil, nil
	}
	fn := m.L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}

	cancel := arm(m.L, m.limit)
	defer cancel()
	if err := m.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		return lua.LNil, fmt.Errorf("scripting: %s: %w", hook, err)
	}

	ret := m.L.Get(-1)
	m.L.Pop(1)
	return ret, nil
}

// OnActionComplete runs the on_action_complete hook for c and returns the
// balance bonus it grants. A missing hook, a non-numeric result or a negative
// number grants nothing.
func (m *Manager) OnActionComplete(c scheduler.Completion) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.L == nil {
		return 0, nil
	}

	info := m.L.NewTable()
	info.RawSetString("name", lua.LString(c.Name))
	info.RawSetString("item", lua.LString(c.Item.Name))
	info.RawSetString("quantity", lua.LNumber(c.Quantity))
	info.RawSetString("stored", lua.LBool(c.Stored))

	ret, err := m.call(HookActionComplete,
		lua.LString(c.Category.String()),
		lua.LNumber(c.Tier),
		lua.LNumber(c.Experience),
		info,
	)
	if err != nil {
		return 0, err
	}
	n, ok := ret.(lua.LNumber)
	if !ok || n <= 0 {
		return 0, nil
	}
	return int(n), nil
}

// Close releases the VM.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.L != nil {
		m.L.Close()
		m.L = nil
	}
}
