package scripting

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

//go:embed scripts/*.lua
var defaultScripts embed.FS

// Engine wraps a single gopher-lua VM for game formulas (damage rolls, stat
// regeneration). Single-goroutine access only (game loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine. The embedded default scripts are loaded
// first; scriptsDir (optional, may be empty or missing) overrides them.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	if err := e.loadEmbedded(); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load embedded scripts: %w", err)
	}
	if scriptsDir != "" {
		if err := e.loadDir(scriptsDir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load script overrides: %w", err)
		}
	}
	return e, nil
}

func (e *Engine) loadEmbedded() error {
	entries, err := defaultScripts.ReadDir("scripts")
	if err != nil {
		return err
	}
	for _, entry := range entries {
		raw, err := defaultScripts.ReadFile("scripts/" + entry.Name())
		if err != nil {
			return err
		}
		if err := e.vm.DoString(string(raw)); err != nil {
			return fmt.Errorf("load %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// loadDir loads all .lua files in a directory. A missing directory is fine.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

func (e *Engine) Close() {
	e.vm.Close()
}

// callInt invokes a Lua function returning a single integer.
func (e *Engine) callInt(fn string, args ...lua.LValue) (int, error) {
	f := e.vm.GetGlobal(fn)
	if f == lua.LNil {
		return 0, fmt.Errorf("lua function %s not defined", fn)
	}
	if err := e.vm.CallByParam(lua.P{Fn: f, NRet: 1, Protect: true}, args...); err != nil {
		return 0, err
	}
	ret := e.vm.Get(-1)
	e.vm.Pop(1)
	n, ok := ret.(lua.LNumber)
	if !ok {
		return 0, fmt.Errorf("lua function %s returned %s, want number", fn, ret.Type())
	}
	return int(n), nil
}

// CalcAttackDamage rolls bounded random damage for one attack.
func (e *Engine) CalcAttackDamage(attackerLevel int) int {
	dmg, err := e.callInt("calc_attack_damage", lua.LNumber(attackerLevel))
	if err != nil {
		e.log.Error("calc_attack_damage 執行失敗", zap.Error(err))
		return 1
	}
	if dmg < 0 {
		dmg = 0
	}
	return dmg
}

// AttackStaminaCost returns the stamina debited per attack.
func (e *Engine) AttackStaminaCost() int {
	cost, err := e.callInt("attack_stamina_cost")
	if err != nil {
		e.log.Error("attack_stamina_cost 執行失敗", zap.Error(err))
		return 0
	}
	return cost
}

// CalcHealthRegen returns the health restored on one server tick.
func (e *Engine) CalcHealthRegen(maxHealth int) int {
	n, err := e.callInt("calc_health_regen", lua.LNumber(maxHealth))
	if err != nil {
		e.log.Error("calc_health_regen 執行失敗", zap.Error(err))
		return 0
	}
	return n
}

// CalcStaminaRegen returns the stamina restored on one server tick.
func (e *Engine) CalcStaminaRegen(maxStamina int) int {
	n, err := e.callInt("calc_stamina_regen", lua.LNumber(maxStamina))
	if err != nil {
		e.log.Error("calc_stamina_regen 執行失敗", zap.Error(err))
		return 0
	}
	return n
}
