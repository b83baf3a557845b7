// Package plugin loads compiled-in extensions through a narrow capability set.
package plugin

import (
	"fmt"

	"go.uber.org/zap"

	"voxelcraft.ai/vcterm/internal/action"
	"voxelcraft.ai/vcterm/internal/cmdline"
	"voxelcraft.ai/vcterm/internal/command"
	"voxelcraft.ai/vcterm/internal/console"
	"voxelcraft.ai/vcterm/internal/world"
)

// Capabilities is everything a plugin hook may touch. World is nil during Before.
type Capabilities struct {
	World   world.World
	Printer *console.Printer
	Vars    *cmdline.Vars
	State   *action.State
	Arbiter *action.Arbiter
	Logger  *zap.Logger

	stage *command.Stage
}

// Register stages a command. It reaches the table only if the hook succeeds.
func (c *Capabilities) Register(spec command.Spec, h command.HandlerFunc) error {
	if c.stage == nil {
		return fmt.Errorf("register %s: no stage", spec.Name)
	}
	return c.stage.Register(spec, h)
}

type Plugin interface {
	Name() string
	// Before runs before login.
	Before(caps *Capabilities) error
	// Load runs once the world is connected.
	Load(caps *Capabilities) error
}

type Phase int

const (
	PhaseBefore Phase = iota
	PhaseLoad
)

func (p Phase) String() string {
	if p == PhaseBefore {
		return "before"
	}
	return "load"
}

// Result is the outcome of one plugin hook.
type Result struct {
	Name string
	// Commands lists what the hook added to the table.
	Commands []string
	Err      error
}

// Host runs the enabled plugins' hooks against one registry.
type Host struct {
	reg     *command.Registry
	plugins []Plugin
	log     *zap.Logger
}

func NewHost(reg *command.Registry, logger *zap.Logger, plugins ...Plugin) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{reg: reg, plugins: plugins, log: logger}
}

// Select picks the enabled plugins by name, reporting names that are not available.
func Select(enabled []string, available ...Plugin) (chosen []Plugin, unknown []string) {
	byName := make(map[string]Plugin, len(available))
	for _, p := range available {
		byName[p.Name()] = p
	}
	seen := map[string]bool{}
	for _, n := range enabled {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		if p, ok := byName[n]; ok {
			chosen = append(chosen, p)
		} else {
			unknown = append(unknown, n)
		}
	}
	return chosen, unknown
}

func (h *Host) Plugins() []Plugin { return append([]Plugin(nil), h.plugins...) }

// Run calls the phase hook of every plugin in order. A failing plugin leaves
// the table untouched and does not stop the others.
func (h *Host) Run(phase Phase, base Capabilities) []Result {
	out := make([]Result, 0, len(h.plugins))
	for _, p := range h.plugins {
		name := p.Name()
		res := Result{Name: name}
		res.Err = command.Run(h.reg, name, func(st *command.Stage) error {
			caps := base
			caps.stage = st
			if caps.Logger == nil {
				caps.Logger = h.log
			}
			caps.Logger = caps.Logger.Named(name)
			var err error
			if phase == PhaseBefore {
				err = p.Before(&caps)
			} else {
				err = p.Load(&caps)
			}
			res.Commands = st.Staged()
			return err
		})
		if res.Err != nil {
			res.Commands = nil
			h.log.Warn("plugin failed", zap.String("plugin", name), zap.Stringer("phase", phase), zap.Error(res.Err))
		} else {
			h.log.Info("plugin hook", zap.String("plugin", name), zap.Stringer("phase", phase), zap.Strings("commands", res.Commands))
		}
		out = append(out, res)
	}
	return out
}
