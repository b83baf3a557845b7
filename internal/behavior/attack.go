package behavior

import (
	"context"
	"fmt"
	"time"

	"voxelcraft.ai/vcterm/internal/action"
	"voxelcraft.ai/vcterm/internal/world"
)

// Attack swings at the nearest agent or mob matching match while it is
// strictly between minReach and maxReach. It holds the attack lease, which
// also owns looking.
func (r *Runner) Attack(match world.Matcher, cps int, maxReach, minReach float64) error {
	if cps <= 0 {
		return fmt.Errorf("attack: cps must be positive")
	}
	lease, err := r.state.BeginAttack(holderID("attack"))
	if err != nil {
		return err
	}
	interval := time.Second / time.Duration(cps)
	r.spawn("attack", lease, func(ctx context.Context) error {
		return r.attack(ctx, lease.Holder(), match, interval, maxReach, minReach)
	})
	return nil
}

func attackable(match world.Matcher) world.Matcher {
	return func(e world.Entity) (bool, error) {
		if e.Type != world.TypeAgent && e.Type != world.TypeMob {
			return false, nil
		}
		return match(e)
	}
}

func (r *Runner) attack(ctx context.Context, holder string, match world.Matcher, interval time.Duration, maxReach, minReach float64) error {
	lim := gate(interval)
	match = attackable(match)
	for {
		if err := lim.Wait(ctx); err != nil {
			return nil
		}
		self, ok := r.world.Self()
		if !ok {
			continue
		}
		target, found, err := r.world.NearestEntity(match)
		if err != nil {
			return fmt.Errorf("attack: %w", err)
		}
		if !found {
			continue
		}
		d := self.Pos.DistanceTo(target.Pos)
		if d <= minReach || d >= maxReach {
			continue
		}
		granted, err := r.look(ctx, action.Request{
			Priority:  PriorityAttack,
			Duration:  interval,
			Exclusive: true,
			Holder:    holder,
		}, self.Eye(), target.Eye(), true)
		if err != nil {
			return fmt.Errorf("attack: %w", err)
		}
		if !granted {
			continue
		}
		if err := r.world.Attack(ctx, target.ID); err != nil {
			return fmt.Errorf("attack: %w", err)
		}
	}
}
