package commands

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"voxelcraft.ai/vcterm/internal/cmdline"
	"voxelcraft.ai/vcterm/internal/command"
	"voxelcraft.ai/vcterm/internal/world"
)

var infoCommands = []entry{
	{command.Spec{Name: "exit", Description: "Leave the world and exit"}, exitCmd},
	{command.Spec{Name: "reco", Description: "Drop the connection and reconnect"}, recoCmd},
	{command.Spec{Name: "send", Usage: "<message...>", Description: "Send a chat message"}, sendCmd},
	{command.Spec{Name: "position", Description: "Show the current position"}, positionCmd},
	{command.Spec{Name: "distance", Usage: "<x1> <y1> <z1> <x2> <y2> <z2>", Description: "Distance between two points"}, distanceCmd},
	{command.Spec{Name: "list", Description: "List online players"}, listCmd},
	{command.Spec{Name: "version", Description: "Show the client version"}, versionCmd},
	{command.Spec{Name: "help", Description: "Show this list"}, helpCmd},
	{command.Spec{Name: "history", Usage: "[count]", Description: "Show recent command lines"}, historyCmd},
}

func exitCmd(env *Env, _ context.Context, _ *command.Call) error {
	return env.World.Quit("exit")
}

func recoCmd(env *Env, _ context.Context, _ *command.Call) error {
	env.Printer.Infof("Reconnecting")
	return env.World.Reconnect()
}

func sendCmd(env *Env, _ context.Context, call *command.Call) error {
	if len(call.Args) == 0 {
		return command.ErrUsage()
	}
	return env.World.Chat(strings.Join(call.Args, " "))
}

func positionCmd(env *Env, _ context.Context, _ *command.Call) error {
	self, err := selfOrErr(env.World)
	if err != nil {
		return err
	}
	p := self.Pos
	env.Printer.Infof("Position: %s, %s, %s", cmdline.FormatNumber(p.X), cmdline.FormatNumber(p.Y), cmdline.FormatNumber(p.Z))
	return nil
}

func distanceCmd(env *Env, _ context.Context, call *command.Call) error {
	fs, ok := parseFloats(call.Args, 6)
	if !ok {
		return command.ErrUsage()
	}
	a := world.Vec3{X: fs[0], Y: fs[1], Z: fs[2]}
	b := world.Vec3{X: fs[3], Y: fs[4], Z: fs[5]}
	env.Printer.Infof("Distance: %s", cmdline.FormatNumber(a.DistanceTo(b)))
	return nil
}

func listCmd(env *Env, _ context.Context, _ *command.Call) error {
	ps := env.World.Players()
	if len(ps) == 0 {
		env.Printer.Infof("Player list: nobody online")
		return nil
	}
	rows := make([][]any, 0, len(ps))
	for _, p := range ps {
		rows = append(rows, []any{p.Name, fmt.Sprintf("%dms", p.PingMS)})
	}
	env.Printer.Infof("Player list (%s):\n%s", humanize.Comma(int64(len(ps))), renderTable([]any{"Name", "Ping"}, rows))
	return nil
}

func versionCmd(env *Env, _ context.Context, _ *command.Call) error {
	v := env.Version
	if v == "" {
		v = "dev"
	}
	env.Printer.Infof("vcterm version: %s\nGo version: %s", v, runtime.Version())
	return nil
}

func helpCmd(env *Env, _ context.Context, _ *command.Call) error {
	var rows [][]any
	for _, c := range env.reg.All() {
		if c.Hidden {
			continue
		}
		name := "." + c.Name
		if c.Usage != "" {
			name += " " + c.Usage
		}
		desc := c.Description
		switch {
		case c.ScriptOnly:
			desc += " (scripts only)"
		case c.NonVanilla:
			desc += " (non-vanilla)"
		}
		rows = append(rows, []any{name, desc})
	}
	out := renderTable([]any{"Command", "Description"}, rows)
	if names := env.Aliases.Names(); len(names) > 0 {
		var as []string
		for _, n := range names {
			target, _ := env.Aliases.Target(n)
			as = append(as, fmt.Sprintf(".%s -> .%s", n, target))
		}
		out += "\nAliases: " + strings.Join(as, ", ")
	}
	env.Printer.Infof("%s", out)
	return nil
}

func historyCmd(env *Env, ctx context.Context, call *command.Call) error {
	if env.History == nil {
		return errors.New("history is disabled")
	}
	n := 10
	if a := call.Arg(0); a != "" {
		v, ok := parseInt(a)
		if !ok || v <= 0 {
			return command.Usagef("Count must be a positive integer")
		}
		n = v
	}
	if err := env.History.Sync(ctx); err != nil {
		return err
	}
	if failed, werr := env.History.Failed(); failed > 0 {
		env.Printer.Warnf("%s could not be saved: %v", english.Plural(int(failed), "line", ""), werr)
	}
	if d := env.History.Dropped(); d > 0 {
		env.Printer.Warnf("%s dropped while the writer was busy", english.Plural(int(d), "line", ""))
	}
	es, err := env.History.Recent(ctx, n, "")
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	if len(es) == 0 {
		env.Printer.Infof("History is empty")
		return nil
	}
	rows := make([][]any, 0, len(es))
	for _, e := range es {
		rows = append(rows, []any{e.ID, humanize.Time(e.At), e.Origin, e.Line})
	}
	env.Printer.Infof("%s", renderTable([]any{"#", "When", "Origin", "Line"}, rows))
	return nil
}
