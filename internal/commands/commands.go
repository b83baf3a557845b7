// Package commands implements the built-in command table.
package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize/english"
	"github.com/rodaine/table"
	"go.uber.org/zap"

	"voxelcraft.ai/vcterm/internal/action"
	"voxelcraft.ai/vcterm/internal/behavior"
	"voxelcraft.ai/vcterm/internal/cmdline"
	"voxelcraft.ai/vcterm/internal/command"
	"voxelcraft.ai/vcterm/internal/console"
	"voxelcraft.ai/vcterm/internal/history"
	"voxelcraft.ai/vcterm/internal/world"
)

// ExecFunc runs one command line (without the leading dot) through
// substitution, tokenizing and dispatch.
type ExecFunc func(ctx context.Context, line string, origin command.Origin) error

// Env is what the built-in handlers operate on.
type Env struct {
	World world.World
	State *action.State
	// Arbiter orders orientation changes against the running loops.
	Arbiter *action.Arbiter
	Runner  *behavior.Runner
	Printer *console.Printer
	Vars    *cmdline.Vars
	Aliases command.Aliases
	// History is nil when history is disabled.
	History *history.Store
	Logger  *zap.Logger
	Version string

	Exec ExecFunc
	// Report prints a command error the way the dispatch boundary does.
	Report func(err error)
	// Go runs fn in the background, tracked by the caller.
	Go func(fn func())

	reg *command.Registry
}

func (e *Env) report(err error) {
	if e.Report != nil {
		e.Report(err)
		return
	}
	e.Printer.Warnf("%v", err)
}

func (e *Env) spawn(fn func()) {
	if e.Go != nil {
		e.Go(fn)
		return
	}
	go fn()
}

// await runs the slow part of a command. A script waits for it; every other
// origin gets it in the background, with its error going through Report.
func (e *Env) await(call *command.Call, fn func() error) error {
	if call.Origin == command.Script {
		return fn()
	}
	e.spawn(func() {
		if err := fn(); err != nil {
			e.report(err)
		}
	})
	return nil
}

type entry struct {
	spec command.Spec
	run  func(env *Env, ctx context.Context, call *command.Call) error
}

func builtins() []entry {
	var all []entry
	for _, group := range [][]entry{infoCommands, movementCommands, combatCommands, blockCommands, inventoryCommands, variableCommands, scriptCommands} {
		all = append(all, group...)
	}
	return all
}

// Register adds every built-in command to reg.
func Register(reg *command.Registry, env *Env) error {
	if env.Logger == nil {
		env.Logger = zap.NewNop()
	}
	env.reg = reg
	for _, e := range builtins() {
		e := e
		h := command.HandlerFunc(func(ctx context.Context, call *command.Call) error {
			return e.run(env, ctx, call)
		})
		if err := reg.Register(e.spec, h); err != nil {
			return err
		}
	}
	return nil
}

// Specs returns the built-in command specs in table order.
func Specs() []command.Spec {
	es := builtins()
	out := make([]command.Spec, len(es))
	for i, e := range es {
		out[i] = e.spec
	}
	return out
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parseInt(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	return n, err == nil
}

func parseFloats(args []string, n int) ([]float64, bool) {
	if len(args) < n {
		return nil, false
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		f, ok := parseFloat(args[i])
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

// Upper bounds for numeric arguments.
const (
	maxDistance = 10000
	maxSeconds  = 3600
)

// parseSeconds reads a duration in seconds between 0 and maxSeconds.
func parseSeconds(s string) (time.Duration, error) {
	f, ok := parseFloat(s)
	if !ok || f < 0 {
		return 0, command.Usagef("Seconds must be a number >= 0")
	}
	if f > maxSeconds {
		return 0, command.Usagef("Seconds must be at most %d", maxSeconds)
	}
	return time.Duration(f * float64(time.Second)), nil
}

func parseBlockPos(args []string) (world.BlockPos, bool) {
	fs, ok := parseFloats(args, 3)
	if !ok {
		return world.BlockPos{}, false
	}
	return world.Vec3{X: fs[0], Y: fs[1], Z: fs[2]}.Block(), true
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true", "yes", "y", "on":
		return true, true
	case "false", "no", "n", "off":
		return false, true
	}
	return false, false
}

// blocks renders a distance with its unit: "1 block", "2.5 blocks".
func blocks(f float64) string {
	n := 2
	if f == 1 {
		n = 1
	}
	return cmdline.FormatNumber(f) + " " + english.PluralWord(n, "block", "")
}

func seconds(f float64) string {
	n := 2
	if f == 1 {
		n = 1
	}
	return cmdline.FormatNumber(f) + " " + english.PluralWord(n, "second", "")
}

// renderTable draws rows under headers into a string for the printer.
func renderTable(headers []any, rows [][]any) string {
	var b strings.Builder
	t := table.New(headers...).WithWriter(&b)
	for _, r := range rows {
		t.AddRow(r...)
	}
	t.Print()
	return strings.TrimRight(b.String(), "\n")
}

func selfOrErr(w world.World) (world.Self, error) {
	s, ok := w.Self()
	if !ok {
		return world.Self{}, fmt.Errorf("not spawned yet: %w", world.ErrNotConnected)
	}
	return s, nil
}
