package commands

import (
	"context"
	"errors"
	"strings"
	"time"

	"voxelcraft.ai/vcterm/internal/action"
	"voxelcraft.ai/vcterm/internal/behavior"
	"voxelcraft.ai/vcterm/internal/cmdline"
	"voxelcraft.ai/vcterm/internal/command"
	"voxelcraft.ai/vcterm/internal/match"
	"voxelcraft.ai/vcterm/internal/world"
)

var (
	errNotAttacking = errors.New("not attacking anything")
	errNotLooking   = errors.New("not looking at anything")
	errLookBusy     = errors.New("a running loop is turning the agent, try again later")
)

var combatCommands = []entry{
	{command.Spec{Name: "attack", Usage: "<matches> <cps> <maxReach> [minReach]", Description: "Attack the nearest matching entity in reach", NonVanilla: true}, attackCmd},
	{command.Spec{Name: "stopAttack", Description: "Stop attacking", NonVanilla: true}, stopAttackCmd},
	{command.Spec{Name: "look", Usage: "<north/south/east/west> | <yaw> <pitch> [force]", Description: "Turn to a direction or angle"}, lookCmd},
	{command.Spec{Name: "lookAt", Usage: "<player> <maxReach> [minReach] [force]", Description: "Keep looking at a player"}, lookAtCmd},
	{command.Spec{Name: "stopLook", Description: "Stop looking at a player"}, stopLookCmd},
}

func attackCmd(env *Env, _ context.Context, call *command.Call) error {
	if len(call.Args) < 3 {
		return command.ErrUsage()
	}
	pred, err := match.Parse(call.Args[0])
	if err != nil {
		return err
	}
	cps, ok := parseInt(call.Args[1])
	if !ok || cps <= 0 {
		return command.Usagef("CPS must be an integer greater than 0")
	}
	maxReach, ok := parseFloat(call.Args[2])
	if !ok || maxReach <= 0 {
		return command.Usagef("Reach must be greater than 0")
	}
	minReach := 0.0
	if a := call.Arg(3); a != "" {
		if minReach, ok = parseFloat(a); !ok || minReach < 0 {
			return command.Usagef("Minimum reach must be a number >= 0")
		}
	}
	if maxReach < minReach {
		return command.Usagef("Reach must be greater than or equal to the minimum reach")
	}
	if err := env.Runner.Attack(pred.Matcher(), cps, maxReach, minReach); err != nil {
		return err
	}
	env.Printer.Successf("Attacking nearest entity if %s with %d CPS and a reach of %s to %s",
		pred, cps, cmdline.FormatNumber(minReach), blocks(maxReach))
	return nil
}

func stopAttackCmd(env *Env, _ context.Context, _ *command.Call) error {
	stopped, err := env.State.StopAttack()
	if err != nil {
		return err
	}
	if !stopped {
		return errNotAttacking
	}
	env.Printer.Successf("Stopped attacking")
	return nil
}

// lookHold is how long a manual look keeps the orientation grant.
const lookHold = time.Second

// turn sets the orientation through the arbiter, below every loop's priority.
func (e *Env) turn(ctx context.Context, yaw, pitch float64, force bool) error {
	if e.Arbiter == nil {
		return e.World.SetOrientation(ctx, yaw, pitch, force)
	}
	var err error
	ok := e.Arbiter.Do(action.Request{
		Priority:  behavior.PriorityLook,
		Duration:  lookHold,
		Exclusive: true,
		Holder:    "look",
	}, func() {
		err = e.World.SetOrientation(ctx, yaw, pitch, force)
	})
	if !ok {
		return errLookBusy
	}
	return err
}

func lookCmd(env *Env, ctx context.Context, call *command.Call) error {
	if len(call.Args) == 0 {
		return command.ErrUsage()
	}
	self, err := selfOrErr(env.World)
	if err != nil {
		return err
	}
	dir := strings.ToLower(call.Args[0])
	if yaw, ok := world.DirectionYaw(dir); ok {
		if err := env.turn(ctx, yaw, self.Pitch, false); err != nil {
			return err
		}
		env.Printer.Successf("Looking %s", dir)
		return nil
	}

	fs, ok := parseFloats(call.Args, 2)
	if !ok {
		return command.ErrUsage()
	}
	yaw, pitch := fs[0], fs[1]
	if yaw < -90 || yaw > 90 || pitch < -90 || pitch > 90 {
		return command.Usagef("Yaw and pitch must be between -90 and 90")
	}
	force := false
	if a := call.Arg(2); a != "" {
		if force, ok = parseBool(a); !ok {
			return command.ErrUsage()
		}
	}
	if err := env.turn(ctx, yaw, pitch, force); err != nil {
		return err
	}
	env.Printer.Successf("Looking at yaw %s, pitch %s", cmdline.FormatNumber(yaw), cmdline.FormatNumber(pitch))
	return nil
}

func lookAtCmd(env *Env, _ context.Context, call *command.Call) error {
	if len(call.Args) < 2 {
		return command.ErrUsage()
	}
	player := call.Args[0]
	maxReach, ok := parseFloat(call.Args[1])
	if !ok || maxReach <= 0 {
		return command.Usagef("Reach must be greater than 0")
	}
	rest := call.Args[2:]
	minReach := 0.0
	if len(rest) > 0 {
		if f, ok := parseFloat(rest[0]); ok {
			if f < 0 || f > maxReach {
				return command.Usagef("Minimum reach must be between 0 and the reach")
			}
			minReach = f
			rest = rest[1:]
		}
	}
	force := false
	if len(rest) > 0 {
		switch strings.ToLower(rest[0]) {
		case "yes", "y":
			force = true
		case "no", "n":
		default:
			return command.ErrUsage()
		}
	}
	if err := env.Runner.LookAt(player, maxReach, minReach, force); err != nil {
		return err
	}
	env.Printer.Successf("Looking at %s within %s", player, blocks(maxReach))
	return nil
}

func stopLookCmd(env *Env, _ context.Context, _ *command.Call) error {
	stopped, err := env.State.StopLook()
	if err != nil {
		return err
	}
	if !stopped {
		return errNotLooking
	}
	env.Printer.Successf("Stopped looking")
	return nil
}
