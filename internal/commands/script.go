package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"voxelcraft.ai/vcterm/internal/command"
	"voxelcraft.ai/vcterm/internal/console"
)

var errNoExec = errors.New("command execution is not wired")

var scriptCommands = []entry{
	{command.Spec{Name: "script", Usage: "<path>", Description: "Run each line of a file as a command"}, scriptCmd},
	{command.Spec{Name: "wait", Usage: "<seconds>", Description: "Pause the script", ScriptOnly: true}, waitCmd},
	{command.Spec{Name: "async", Usage: "<command...>", Description: "Run a command without waiting for it", ScriptOnly: true}, asyncCmd},
	{command.Spec{Name: "print", Usage: "<message...>", Description: "Print a message", ScriptOnly: true}, printCmd},
	{command.Spec{Name: "info", Usage: "<message...>", Description: "Print an info message", ScriptOnly: true}, printCmd},
	{command.Spec{Name: "warn", Usage: "<message...>", Description: "Print a warning", ScriptOnly: true}, printCmd},
	{command.Spec{Name: "error", Usage: "<message...>", Description: "Print an error", ScriptOnly: true}, printCmd},
	{command.Spec{Name: "success", Usage: "<message...>", Description: "Print a success message", ScriptOnly: true}, printCmd},
}

// scriptLines reads path and returns its command lines: comments after '#'
// stripped, blank lines dropped and an optional leading '.' removed.
func scriptLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, ".")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

func scriptCmd(env *Env, ctx context.Context, call *command.Call) error {
	if len(call.Args) == 0 {
		return command.ErrUsage()
	}
	if env.Exec == nil {
		return errNoExec
	}
	path := strings.Join(call.Args, " ")
	lines, err := scriptLines(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	env.Printer.Infof("Reading script %s", path)
	return env.await(call, func() error {
		for _, line := range lines {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := env.Exec(ctx, line, command.Script); err != nil {
				env.report(err)
			}
		}
		env.Printer.Successf("Reached end of script")
		return nil
	})
}

func waitCmd(_ *Env, ctx context.Context, call *command.Call) error {
	d, err := parseSeconds(call.Arg(0))
	if err != nil {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func asyncCmd(env *Env, ctx context.Context, call *command.Call) error {
	if len(call.Args) == 0 {
		return command.ErrUsage()
	}
	if env.Exec == nil {
		return errNoExec
	}
	line := strings.TrimPrefix(strings.Join(call.Args, " "), ".")
	env.spawn(func() {
		if err := env.Exec(ctx, line, command.Script); err != nil {
			env.report(err)
		}
	})
	return nil
}

func printCmd(env *Env, _ context.Context, call *command.Call) error {
	level, _ := console.ParseLevel(call.Spec.Name)
	env.Printer.Log(level, strings.Join(call.Args, " "))
	return nil
}
