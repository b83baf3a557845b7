package behavior

import (
	"context"
	"fmt"

	"voxelcraft.ai/vcterm/internal/action"
	"voxelcraft.ai/vcterm/internal/world"
)

// Follow walks toward the nearest entity matching match until it is within
// distance. It holds the move lease.
func (r *Runner) Follow(match world.Matcher, distance float64) error {
	lease, err := r.state.BeginMove(holderID("follow"))
	if err != nil {
		return err
	}
	r.spawn("follow", lease, func(ctx context.Context) error {
		return r.follow(ctx, lease.Holder(), match, distance)
	})
	return nil
}

func (r *Runner) follow(ctx context.Context, holder string, match world.Matcher, distance float64) error {
	t := r.timing
	ctl := saveControls(r.world, world.Forward, world.Sprint, world.Jump)
	defer ctl.restore()

	lim := gate(t.FollowGate)
	var (
		last    world.Vec3
		hasLast bool
	)
	for {
		if err := lim.Wait(ctx); err != nil {
			return nil
		}
		self, ok := r.world.Self()
		if !ok {
			if !sleep(ctx, t.FollowIdle) {
				return nil
			}
			continue
		}
		target, found, err := r.world.NearestEntity(match)
		if err != nil {
			return fmt.Errorf("follow: %w", err)
		}
		if !found {
			if err := ctl.set(world.Forward, false); err != nil {
				return err
			}
			hasLast = false
			if !sleep(ctx, t.FollowIdle) {
				return nil
			}
			continue
		}
		if self.Pos.DistanceTo(target.Pos) <= distance {
			if err := ctl.set(world.Forward, false); err != nil {
				return err
			}
			hasLast = false
			if !sleep(ctx, t.FollowInRange) {
				return nil
			}
			continue
		}

		if _, err := r.look(ctx, action.Request{
			Priority:  PriorityFollow,
			Duration:  t.FollowGrant,
			Exclusive: true,
			Holder:    holder,
		}, self.Eye(), target.Pos.Add(world.Vec3{Y: target.Height}), false); err != nil {
			return fmt.Errorf("follow: %w", err)
		}
		if err := ctl.set(world.Forward, true); err != nil {
			return err
		}
		if err := ctl.set(world.Sprint, true); err != nil {
			return err
		}
		stuck := hasLast && self.Pos.DistanceTo(last) < t.StuckDistance
		if err := ctl.set(world.Jump, stuck); err != nil {
			return err
		}
		last, hasLast = self.Pos, true
	}
}

// Unfollow stops whichever loop holds the move lease.
func (r *Runner) Unfollow() bool { return r.state.StopMove() }
