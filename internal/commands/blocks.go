package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"voxelcraft.ai/vcterm/internal/action"
	"voxelcraft.ai/vcterm/internal/command"
	"voxelcraft.ai/vcterm/internal/world"
)

var blockCommands = []entry{
	{command.Spec{Name: "dig", Usage: "<x> <y> <z>", Description: "Dig a block"}, digCmd},
	{command.Spec{Name: "stopDig", Description: "Stop digging"}, stopDigCmd},
	{command.Spec{Name: "place", Usage: "<x> <y> <z>", Description: "Place the held block"}, placeCmd},
	{command.Spec{Name: "open", Usage: "<x> <y> <z>", Description: "Open a container"}, openCmd},
	{command.Spec{Name: "blocks", Usage: "<range> [count] [filter]", Description: "List nearby blocks whose name matches filter"}, blocksCmd},
}

// filterTimeout bounds one filter match.
const filterTimeout = 100 * time.Millisecond

func posText(p world.BlockPos) string { return fmt.Sprintf("%d, %d, %d", p.X, p.Y, p.Z) }

func digCmd(env *Env, ctx context.Context, call *command.Call) error {
	pos, ok := parseBlockPos(call.Args)
	if !ok {
		return command.ErrUsage()
	}
	env.Printer.Infof("Digging block at %s", posText(pos))
	return env.await(call, func() error {
		if err := env.World.Dig(ctx, pos); err != nil {
			return fmt.Errorf("could not dig block at %s: %w", posText(pos), err)
		}
		env.Printer.Successf("Dug block at %s", posText(pos))
		return nil
	})
}

func stopDigCmd(env *Env, _ context.Context, _ *command.Call) error {
	if err := env.World.StopDigging(); err != nil {
		return err
	}
	env.Printer.Successf("Stopped digging")
	return nil
}

func placeCmd(env *Env, ctx context.Context, call *command.Call) error {
	pos, ok := parseBlockPos(call.Args)
	if !ok {
		return command.ErrUsage()
	}
	lease, err := env.State.BeginLook("place")
	if err != nil {
		return err
	}
	return env.await(call, func() error {
		defer lease.Release()
		pctx, cancel := lease.Context(ctx)
		defer cancel()
		if err := env.World.Place(pctx, pos); err != nil {
			return fmt.Errorf("could not place block at %s: %w", posText(pos), err)
		}
		env.Printer.Successf("Placed block at %s", posText(pos))
		return nil
	})
}

func openCmd(env *Env, ctx context.Context, call *command.Call) error {
	pos, ok := parseBlockPos(call.Args)
	if !ok {
		return command.ErrUsage()
	}
	if env.State.Looking() {
		return action.ErrLooking
	}
	return env.await(call, func() error {
		if err := env.World.OpenContainer(ctx, pos); err != nil {
			return fmt.Errorf("could not open container at %s: %w", posText(pos), err)
		}
		env.Printer.Successf("Opened container at %s", posText(pos))
		return nil
	})
}

func blocksCmd(env *Env, _ context.Context, call *command.Call) error {
	if len(call.Args) == 0 {
		return command.ErrUsage()
	}
	r, ok := parseFloat(call.Args[0])
	if !ok || r <= 0 {
		return command.Usagef("Range must be greater than 0")
	}
	count := 0
	if a := call.Arg(1); a != "" {
		if count, ok = parseInt(a); !ok || count <= 0 {
			return command.Usagef("Count must be a positive integer")
		}
	}
	var filter *regexp2.Regexp
	if len(call.Args) > 2 {
		re, err := regexp2.Compile(strings.Join(call.Args[2:], " "), regexp2.IgnoreCase|regexp2.ECMAScript)
		if err != nil {
			return command.Usagef("Invalid filter: %v", err)
		}
		re.MatchTimeout = filterTimeout
		filter = re
	}

	var matchErr error
	found := env.World.FindBlocks(r, count, func(b world.Block) bool {
		if filter == nil || matchErr != nil {
			return matchErr == nil
		}
		ok, err := filter.MatchString(b.Name)
		if err != nil {
			matchErr = err
		}
		return ok
	})
	if matchErr != nil {
		return fmt.Errorf("filter: %w", matchErr)
	}

	var b strings.Builder
	for _, bl := range found {
		fmt.Fprintf(&b, "%s  %s\n", posText(bl.Pos), bl.Name)
	}
	fmt.Fprintf(&b, "Blocks: %d", len(found))
	env.Printer.Infof("%s", b.String())
	return nil
}
