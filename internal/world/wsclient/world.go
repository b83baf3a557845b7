package wsclient

import (
	"context"
	"math"
	"time"

	"voxelcraft.ai/vcterm/internal/protocol"
	"voxelcraft.ai/vcterm/internal/world"
)

func (s *Session) Self() (world.Self, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.self, s.spawned
}

func (s *Session) Players() []world.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]world.Player(nil), s.players...)
}

// NearestEntity returns the closest entity other than self that match accepts.
func (s *Session) NearestEntity(match world.Matcher) (world.Entity, bool, error) {
	s.mu.RLock()
	self := s.self
	es := append([]world.Entity(nil), s.entities...)
	s.mu.RUnlock()

	var (
		best  world.Entity
		found bool
		bestD = math.Inf(1)
	)
	for _, e := range es {
		if e.ID == self.ID {
			continue
		}
		ok, err := match(e)
		if err != nil {
			return world.Entity{}, false, err
		}
		if !ok {
			continue
		}
		if d := self.Pos.DistanceTo(e.Pos); d < bestD {
			best, bestD, found = e, d, true
		}
	}
	return best, found, nil
}

func (s *Session) SetOrientation(ctx context.Context, yaw, pitch float64, force bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.instant(protocol.InstantReq{Type: protocol.InstantLook, Yaw: yaw, Pitch: pitch, Force: force}); err != nil {
		return err
	}
	s.mu.Lock()
	s.self.Yaw = yaw
	s.self.Pitch = pitch
	s.mu.Unlock()
	return nil
}

func (s *Session) SetControlState(c world.Control, on bool) error {
	if err := s.instant(protocol.InstantReq{Type: protocol.InstantControl, Control: string(c), On: on}); err != nil {
		return err
	}
	s.mu.Lock()
	s.controls[c] = on
	s.mu.Unlock()
	return nil
}

func (s *Session) ControlState(c world.Control) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.controls[c]
}

func (s *Session) ClearControlStates() error {
	for _, c := range world.Controls {
		if !s.ControlState(c) {
			continue
		}
		if err := s.SetControlState(c, false); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) MoveTo(ctx context.Context, pos world.Vec3, tolerance float64) error {
	return s.runTask(ctx, "moveTo", protocol.TaskReq{
		Type:      protocol.TaskMoveTo,
		Target:    [3]float64{pos.X, pos.Y, pos.Z},
		Tolerance: tolerance,
	}, false)
}

func (s *Session) Pathfind(ctx context.Context, pos world.Vec3) error {
	return s.runTask(ctx, "pathfind", protocol.TaskReq{
		Type:     protocol.TaskMoveTo,
		Target:   [3]float64{pos.X, pos.Y, pos.Z},
		Pathfind: true,
	}, false)
}

// Follow returns once the server accepts the task; cancelling ctx stops it.
func (s *Session) Follow(ctx context.Context, entityID string, distance float64) (<-chan error, error) {
	p, err := s.startTask(ctx, "follow", protocol.TaskReq{
		Type:     protocol.TaskFollow,
		TargetID: entityID,
		Distance: distance,
	}, true)
	if err != nil {
		return nil, err
	}
	return p.ended, nil
}

func (s *Session) Attack(ctx context.Context, entityID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.instant(protocol.InstantReq{Type: protocol.InstantAttack, TargetID: entityID})
}

func (s *Session) Dig(ctx context.Context, pos world.BlockPos) error {
	return s.runTask(ctx, "dig", protocol.TaskReq{
		Type:     protocol.TaskMine,
		BlockPos: [3]int{pos.X, pos.Y, pos.Z},
	}, false)
}

func (s *Session) StopDigging() error {
	return s.instant(protocol.InstantReq{Type: protocol.InstantStopDig})
}

// Place puts the held item at pos.
func (s *Session) Place(ctx context.Context, pos world.BlockPos) error {
	s.mu.RLock()
	var held string
	for _, it := range s.inventory {
		if it.Slot == s.self.Slot {
			held = it.Name
			break
		}
	}
	s.mu.RUnlock()
	return s.runTask(ctx, "place", protocol.TaskReq{
		Type:     protocol.TaskPlace,
		BlockPos: [3]int{pos.X, pos.Y, pos.Z},
		ItemID:   held,
	}, false)
}

func (s *Session) OpenContainer(ctx context.Context, pos world.BlockPos) error {
	return s.runTask(ctx, "open", protocol.TaskReq{
		Type:     protocol.TaskOpen,
		BlockPos: [3]int{pos.X, pos.Y, pos.Z},
	}, false)
}

func (s *Session) ClickSlot(ctx context.Context, w world.Window, slot int, mode world.ClickMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if mode == "" {
		mode = world.ClickNormal
	}
	return s.instant(protocol.InstantReq{
		Type:      protocol.InstantClickSlot,
		Window:    int(w),
		Slot:      slot,
		ClickMode: string(mode),
	})
}

func (s *Session) CloseWindow() error {
	if err := s.instant(protocol.InstantReq{Type: protocol.InstantCloseWindow}); err != nil {
		return err
	}
	s.mu.Lock()
	s.window = nil
	s.mu.Unlock()
	return nil
}

func (s *Session) Inventory(w world.Window) ([]world.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch w {
	case world.WindowInventory:
		return append([]world.Item(nil), s.inventory...), nil
	case world.WindowContainer:
		if s.window == nil {
			return nil, &world.ActionError{Op: "inventory", Code: protocol.ErrInvalidTarget, Message: "no container open"}
		}
		return convertItems(s.window.Slots), nil
	}
	return nil, &world.ActionError{Op: "inventory", Code: protocol.ErrBadRequest, Message: "unknown window"}
}

func (s *Session) SetHotbarSlot(slot int) error {
	if err := s.instant(protocol.InstantReq{Type: protocol.InstantSelectSlot, Slot: slot}); err != nil {
		return err
	}
	s.mu.Lock()
	s.self.Slot = slot
	s.mu.Unlock()
	return nil
}

// UseItem holds use for d, returning when it elapses.
func (s *Session) UseItem(ctx context.Context, d time.Duration) error {
	if err := s.instant(protocol.InstantReq{Type: protocol.InstantUseItem, DurationMS: int(d / time.Millisecond)}); err != nil {
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

func (s *Session) Chat(text string) error {
	return s.instant(protocol.InstantReq{Type: protocol.InstantSay, Channel: "LOCAL", Text: text})
}
