package commands

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"voxelcraft.ai/vcterm/internal/cmdline"
	"voxelcraft.ai/vcterm/internal/command"
	"voxelcraft.ai/vcterm/internal/match"
	"voxelcraft.ai/vcterm/internal/world"
)

var errNotFollowing = errors.New("not following anyone")

var movementCommands = []entry{
	{command.Spec{Name: "move", Usage: "<north/south/east/west> [distance]", Description: "Walk a whole number of blocks in a direction"}, moveCmd},
	{command.Spec{Name: "moveTo", Usage: "<x> <z> [range]", Description: "Walk straight to a position"}, moveToCmd},
	{command.Spec{Name: "pathfind", Usage: "<x> <z>", Description: "Walk to a position using the server's pathfinder", NonVanilla: true}, pathfindCmd},
	{command.Spec{Name: "forceMove", Usage: "<up/forward/back/left/right/sprint> <seconds>", Description: "Hold a movement control for a while"}, forceMoveCmd},
	{command.Spec{Name: "control", Usage: "<forward/back/left/right/jump/sprint/sneak> <true/false> | clearall", Description: "Set a control state"}, controlCmd},
	{command.Spec{Name: "follow", Usage: "<matches> <range>", Description: "Follow the nearest matching entity"}, followCmd},
	{command.Spec{Name: "smartFollow", Usage: "<matches> <range>", Description: "Follow using the server's pathfinder", NonVanilla: true}, smartFollowCmd},
	{command.Spec{Name: "unfollow", Description: "Stop following", NonVanilla: true}, unfollowCmd},
}

func moveCmd(env *Env, ctx context.Context, call *command.Call) error {
	dir := strings.ToLower(call.Arg(0))
	delta, ok := world.DirectionDelta(dir)
	if !ok {
		return command.ErrUsage()
	}
	dist := 1
	if a := call.Arg(1); a != "" {
		f, ok := parseFloat(a)
		if !ok || f <= 0 {
			return command.Usagef("Distance must be greater than 0")
		}
		if f != math.Trunc(f) {
			return command.Usagef("Distance must be an integer")
		}
		if f > maxDistance {
			return command.Usagef("Distance must be at most %d", maxDistance)
		}
		dist = int(f)
	}
	self, err := selfOrErr(env.World)
	if err != nil {
		return err
	}
	lease, err := env.State.BeginMove("move")
	if err != nil {
		return err
	}
	n := float64(dist)
	target := self.Pos.Add(world.Vec3{X: delta.X * n, Z: delta.Z * n})
	env.Printer.Infof("Attempting to move %s for %s", dir, blocks(n))

	return env.await(call, func() error {
		defer lease.Release()
		mctx, cancel := lease.Context(ctx)
		defer cancel()
		if err := env.World.MoveTo(mctx, target, 0); err != nil {
			return fmt.Errorf("path was obstructed, stopped moving: %w", err)
		}
		env.Printer.Successf("Moved %s for %s", dir, blocks(n))
		return nil
	})
}

func parseXZ(call *command.Call) (x, z float64, ok bool) {
	fs, ok := parseFloats(call.Args, 2)
	if !ok {
		return 0, 0, false
	}
	return fs[0], fs[1], true
}

func moveToCmd(env *Env, ctx context.Context, call *command.Call) error {
	x, z, ok := parseXZ(call)
	if !ok {
		return command.ErrUsage()
	}
	tol := 0.0
	if a := call.Arg(2); a != "" {
		if tol, ok = parseFloat(a); !ok || tol < 0 {
			return command.Usagef("Range must be a number >= 0")
		}
	}
	self, err := selfOrErr(env.World)
	if err != nil {
		return err
	}
	env.Printer.Infof("Moving")
	return env.await(call, func() error {
		if err := env.World.MoveTo(ctx, world.Vec3{X: x, Y: self.Pos.Y, Z: z}, tol); err != nil {
			return fmt.Errorf("got stuck and couldn't reach %s, %s: %w", cmdline.FormatNumber(x), cmdline.FormatNumber(z), err)
		}
		env.Printer.Successf("Moved to %s, %s", cmdline.FormatNumber(x), cmdline.FormatNumber(z))
		return nil
	})
}

func pathfindCmd(env *Env, ctx context.Context, call *command.Call) error {
	x, z, ok := parseXZ(call)
	if !ok {
		return command.ErrUsage()
	}
	self, err := selfOrErr(env.World)
	if err != nil {
		return err
	}
	lease, err := env.State.BeginMove("pathfind")
	if err != nil {
		return err
	}

	xs, zs := cmdline.FormatNumber(x), cmdline.FormatNumber(z)
	env.Printer.Infof("Attempting to move to %s, %s", xs, zs)
	return env.await(call, func() error {
		defer lease.Release()
		pctx, cancel := lease.Context(ctx)
		defer cancel()
		if err := env.World.Pathfind(pctx, world.Vec3{X: x, Y: self.Pos.Y, Z: z}); err != nil {
			return fmt.Errorf("could not move to %s, %s: %w", xs, zs, err)
		}
		env.Printer.Successf("Moved to %s, %s", xs, zs)
		return nil
	})
}

func forceMoveCmd(env *Env, ctx context.Context, call *command.Call) error {
	name := strings.ToLower(call.Arg(0))
	var c world.Control
	switch name {
	case "up":
		c = world.Jump
	case "forward", "back", "left", "right", "sprint":
		c = world.Control(name)
	default:
		return command.ErrUsage()
	}
	d, err := parseSeconds(call.Arg(1))
	if err != nil {
		return err
	}
	secs := d.Seconds()

	env.Printer.Infof("Moving %s for %s", name, seconds(secs))
	if err := env.World.SetControlState(c, true); err != nil {
		return err
	}
	return env.await(call, func() error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
		}
		if err := env.World.SetControlState(c, false); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		env.Printer.Successf("Moved %s for %s", name, seconds(secs))
		return nil
	})
}

func controlCmd(env *Env, _ context.Context, call *command.Call) error {
	name := strings.ToLower(call.Arg(0))
	if name == "clearall" {
		if err := env.World.ClearControlStates(); err != nil {
			return err
		}
		env.Printer.Successf("Cleared all control states")
		return nil
	}
	c, ok := world.ParseControl(name)
	if !ok {
		return command.ErrUsage()
	}
	on, ok := parseBool(call.Arg(1))
	if !ok {
		return command.ErrUsage()
	}
	if err := env.World.SetControlState(c, on); err != nil {
		return err
	}
	env.Printer.Successf("Set control state %s to %t", c, on)
	return nil
}

// parseFollow validates <matches> <range>.
func parseFollow(call *command.Call) (*match.Predicate, float64, error) {
	if len(call.Args) < 2 {
		return nil, 0, command.ErrUsage()
	}
	pred, err := match.Parse(call.Args[0])
	if err != nil {
		return nil, 0, err
	}
	r, ok := parseFloat(call.Args[1])
	if !ok || r <= 0 {
		return nil, 0, command.Usagef("Range must be greater than 0")
	}
	return pred, r, nil
}

func followCmd(env *Env, _ context.Context, call *command.Call) error {
	pred, r, err := parseFollow(call)
	if err != nil {
		return err
	}
	if err := env.Runner.Follow(pred.Matcher(), r); err != nil {
		return err
	}
	env.Printer.Successf("Following nearest entity if %s with a range of %s", pred, blocks(r))
	return nil
}

func smartFollowCmd(env *Env, _ context.Context, call *command.Call) error {
	pred, r, err := parseFollow(call)
	if err != nil {
		return err
	}
	if err := env.Runner.SmartFollow(pred.Matcher(), r); err != nil {
		return err
	}
	env.Printer.Successf("Following nearest entity if %s with a range of %s", pred, blocks(r))
	return nil
}

func unfollowCmd(env *Env, _ context.Context, _ *command.Call) error {
	if !env.Runner.Unfollow() {
		return errNotFollowing
	}
	env.Printer.Successf("Stopped following")
	return nil
}
