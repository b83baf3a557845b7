package behavior

import (
	"context"
	"fmt"
	"strings"

	"voxelcraft.ai/vcterm/internal/action"
	"voxelcraft.ai/vcterm/internal/world"
)

// LookAt keeps the agent's head on a player while they are strictly between
// minReach and maxReach. It holds the look lease.
func (r *Runner) LookAt(player string, maxReach, minReach float64, force bool) error {
	lease, err := r.state.BeginLook(holderID("lookAt"))
	if err != nil {
		return err
	}
	r.spawn("lookAt", lease, func(ctx context.Context) error {
		return r.lookAt(ctx, lease.Holder(), player, maxReach, minReach, force)
	})
	return nil
}

// playerMatcher finds a player's entity by the id the player list reports,
// falling back to the entity name.
func (r *Runner) playerMatcher(name string) world.Matcher {
	id := ""
	for _, p := range r.world.Players() {
		if strings.EqualFold(p.Name, name) {
			id = p.EntityID
			break
		}
	}
	return func(e world.Entity) (bool, error) {
		if id != "" && e.ID == id {
			return true, nil
		}
		return e.Type == world.TypeAgent && strings.EqualFold(e.Name, name), nil
	}
}

func (r *Runner) lookAt(ctx context.Context, holder, player string, maxReach, minReach float64, force bool) error {
	t := r.timing
	lim := gate(t.LookAtTick)
	for {
		if err := lim.Wait(ctx); err != nil {
			return nil
		}
		self, ok := r.world.Self()
		if !ok {
			continue
		}
		target, found, err := r.world.NearestEntity(r.playerMatcher(player))
		if err != nil {
			return fmt.Errorf("lookAt: %w", err)
		}
		if !found {
			continue
		}
		d := self.Pos.DistanceTo(target.Pos)
		if d <= minReach || d >= maxReach {
			continue
		}
		if _, err := r.look(ctx, action.Request{
			Priority:  PriorityLookAt,
			Duration:  t.LookAtTick,
			Exclusive: true,
			Holder:    holder,
		}, self.Eye(), target.Eye(), force); err != nil {
			return fmt.Errorf("lookAt: %w", err)
		}
	}
}
