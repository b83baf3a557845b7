package behavior

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"voxelcraft.ai/vcterm/internal/action"
	"voxelcraft.ai/vcterm/internal/world"
)

// smartFollowSlack keeps the server-side follow goal slightly inside the
// requested range.
const smartFollowSlack = 0.55

// SmartFollow delegates pathing to the world's follow task and re-targets
// it when the nearest match changes.
func (r *Runner) SmartFollow(match world.Matcher, distance float64) error {
	lease, err := r.state.BeginMove(holderID("smartFollow"))
	if err != nil {
		return err
	}
	r.spawn("smartFollow", lease, func(ctx context.Context) error {
		return r.smartFollow(ctx, lease.Holder(), match, distance)
	})
	return nil
}

func (r *Runner) smartFollow(ctx context.Context, holder string, match world.Matcher, distance float64) error {
	t := r.timing
	goal := math.Max(0, distance-smartFollowSlack)
	lim := gate(t.SmartFollowTick)

	var (
		current  string
		ended    <-chan error
		stopTask context.CancelFunc = func() {}
	)
	defer func() { stopTask() }()

	for {
		if err := lim.Wait(ctx); err != nil {
			return nil
		}
		select {
		case err := <-ended:
			// The world dropped the task; pick the target up again below.
			if err != nil && ctx.Err() == nil {
				r.log.Debug("follow task ended", zap.String("target", current), zap.Error(err))
			}
			stopTask()
			current, ended = "", nil
		default:
		}
		self, ok := r.world.Self()
		if !ok {
			continue
		}
		target, found, err := r.world.NearestEntity(match)
		if err != nil {
			return fmt.Errorf("smartFollow: %w", err)
		}
		if !found {
			if current != "" {
				stopTask()
				current, ended = "", nil
			}
			continue
		}
		// Keep the orientation claim while following so low-priority looks
		// do not fight the path.
		r.arbiter.Do(action.Request{
			Priority:  PriorityFollow,
			Duration:  t.SmartFollowTick,
			Exclusive: true,
			Holder:    holder,
		}, nil)

		if target.ID == current {
			continue
		}
		if self.Pos.DistanceTo(target.Pos) <= distance && current == "" {
			continue
		}
		stopTask()
		var taskCtx context.Context
		taskCtx, stopTask = context.WithCancel(ctx)
		ch, err := r.world.Follow(taskCtx, target.ID, goal)
		if err != nil {
			return fmt.Errorf("smartFollow: %w", err)
		}
		current, ended = target.ID, ch
	}
}
