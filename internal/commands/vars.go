package commands

import (
	"context"
	"strings"

	"voxelcraft.ai/vcterm/internal/cmdline"
	"voxelcraft.ai/vcterm/internal/command"
)

var variableCommands = []entry{
	{command.Spec{Name: "set", Usage: "<name> [value...]", Description: "Set a variable, used as %name%"}, setCmd},
	{command.Spec{Name: "unset", Usage: "<name>", Description: "Remove a variable"}, unsetCmd},
	{command.Spec{Name: "value", Usage: "<name>", Description: "Show a variable"}, valueCmd},
	{command.Spec{Name: "variables", Description: "List variables"}, variablesCmd},
}

func setCmd(env *Env, _ context.Context, call *command.Call) error {
	name := call.Arg(0)
	if !cmdline.ValidName(name) {
		return command.Usagef("Variable names may only contain letters, digits, '_', '-' and '.'")
	}
	value := strings.Join(call.Args[1:], " ")
	env.Vars.Set(name, value)
	env.Printer.Successf("Set %%%s%% to %s", name, value)
	return nil
}

func unsetCmd(env *Env, _ context.Context, call *command.Call) error {
	name := call.Arg(0)
	if name == "" {
		return command.ErrUsage()
	}
	if !env.Vars.Unset(name) {
		env.Printer.Warnf("%%%s%% is not set", name)
		return nil
	}
	env.Printer.Successf("Unset %%%s%%", name)
	return nil
}

func valueCmd(env *Env, _ context.Context, call *command.Call) error {
	name := call.Arg(0)
	if name == "" {
		return command.ErrUsage()
	}
	v, ok := env.Vars.Get(name)
	if !ok {
		v = "undefined"
	}
	env.Printer.Infof("%s: %s", name, v)
	return nil
}

func variablesCmd(env *Env, _ context.Context, _ *command.Call) error {
	names := env.Vars.Names()
	if len(names) == 0 {
		env.Printer.Infof("No variables")
		return nil
	}
	rows := make([][]any, 0, len(names))
	for _, n := range names {
		v, _ := env.Vars.Get(n)
		rows = append(rows, []any{n, v})
	}
	env.Printer.Infof("%s", renderTable([]any{"Name", "Value"}, rows))
	return nil
}
