// Package worldtest provides an in-memory world.World for tests.
package worldtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"voxelcraft.ai/vcterm/internal/world"
)

// Call is one recorded primitive invocation.
type Call struct {
	Op   string
	Args []any
}

// Fake implements world.World over mutable in-memory state. Primitives
// succeed unless Fail has been set for their op name.
type Fake struct {
	mu sync.Mutex

	self     world.Self
	spawned  bool
	entities []world.Entity
	blocks   []world.Block
	players  []world.Player
	items    map[world.Window][]world.Item
	controls map[world.Control]bool
	fail     map[string]error
	calls    []Call
	chat     []string
	holds    map[string]chan struct{}
	follows  []*followTask

	events chan world.Event
}

func New() *Fake {
	return &Fake{
		self:     world.Self{ID: "A1", Name: "vcterm"},
		spawned:  true,
		items:    map[world.Window][]world.Item{},
		controls: map[world.Control]bool{},
		fail:     map[string]error{},
		holds:    map[string]chan struct{}{},
		events:   make(chan world.Event, 64),
	}
}

var _ world.World = (*Fake)(nil)

func (f *Fake) SetSelf(s world.Self) {
	f.mu.Lock()
	f.self = s
	f.spawned = true
	f.mu.Unlock()
}

// SetSpawned toggles whether Self reports a live agent.
func (f *Fake) SetSpawned(ok bool) {
	f.mu.Lock()
	f.spawned = ok
	f.mu.Unlock()
}

func (f *Fake) SetEntities(es ...world.Entity) {
	f.mu.Lock()
	f.entities = append([]world.Entity(nil), es...)
	f.mu.Unlock()
}

// SetBlocks replaces the observed terrain. Blocks are returned by FindBlocks
// nearest first.
func (f *Fake) SetBlocks(bs ...world.Block) {
	f.mu.Lock()
	f.blocks = append([]world.Block(nil), bs...)
	f.mu.Unlock()
}

func (f *Fake) SetPlayers(ps ...world.Player) {
	f.mu.Lock()
	f.players = append([]world.Player(nil), ps...)
	f.mu.Unlock()
}

func (f *Fake) SetItems(w world.Window, items ...world.Item) {
	f.mu.Lock()
	f.items[w] = append([]world.Item(nil), items...)
	f.mu.Unlock()
}

// Fail makes the named op return err; a nil err clears it.
func (f *Fake) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, op)
		return
	}
	f.fail[op] = err
}

// Hold makes the named op block until release is called or its context ends.
func (f *Fake) Hold(op string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.holds[op] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.holds[op] == ch {
				delete(f.holds, op)
			}
			f.mu.Unlock()
			close(ch)
		})
	}
}

// EndFollow ends the most recent accepted follow task with err.
func (f *Fake) EndFollow(err error) {
	f.mu.Lock()
	var t *followTask
	if n := len(f.follows); n > 0 {
		t = f.follows[n-1]
	}
	f.mu.Unlock()
	if t != nil {
		t.end(err)
	}
}

type followTask struct {
	ch   chan error
	once sync.Once
}

func (t *followTask) end(err error) {
	t.once.Do(func() {
		t.ch <- err
		close(t.ch)
	})
}

// Emit queues a world event.
func (f *Fake) Emit(ev world.Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	f.events <- ev
}

// CloseEvents ends the event stream.
func (f *Fake) CloseEvents() { close(f.events) }

func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the recorded calls of one op.
func (f *Fake) CallsTo(op string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) Chats() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.chat...)
}

func (f *Fake) record(op string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: op, Args: args})
	return f.fail[op]
}

// run records a blocking primitive and waits out any Hold on it.
func (f *Fake) run(ctx context.Context, op string, args ...any) error {
	if err := f.record(op, args...); err != nil {
		return err
	}
	f.mu.Lock()
	hold := f.holds[op]
	f.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
		}
	}
	return ctx.Err()
}

func (f *Fake) Self() (world.Self, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.self, f.spawned
}

func (f *Fake) Players() []world.Player {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]world.Player(nil), f.players...)
}

func (f *Fake) NearestEntity(match world.Matcher) (world.Entity, bool, error) {
	f.mu.Lock()
	self := f.self
	es := append([]world.Entity(nil), f.entities...)
	f.mu.Unlock()

	var (
		best  world.Entity
		found bool
		bestD float64
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
		d := self.Pos.DistanceTo(e.Pos)
		if !found || d < bestD {
			best, bestD, found = e, d, true
		}
	}
	return best, found, nil
}

func (f *Fake) FindBlocks(maxDistance float64, count int, match func(world.Block) bool) []world.Block {
	f.mu.Lock()
	origin := f.self.Pos
	bs := append([]world.Block(nil), f.blocks...)
	f.mu.Unlock()
	return world.NearestBlocks(origin, bs, maxDistance, count, match)
}

func (f *Fake) SetOrientation(_ context.Context, yaw, pitch float64, force bool) error {
	if err := f.record("look", yaw, pitch, force); err != nil {
		return err
	}
	f.mu.Lock()
	f.self.Yaw, f.self.Pitch = yaw, pitch
	f.mu.Unlock()
	return nil
}

func (f *Fake) SetControlState(c world.Control, on bool) error {
	if err := f.record("control", c, on); err != nil {
		return err
	}
	f.mu.Lock()
	f.controls[c] = on
	f.mu.Unlock()
	return nil
}

func (f *Fake) ControlState(c world.Control) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.controls[c]
}

func (f *Fake) ClearControlStates() error {
	if err := f.record("clearControls"); err != nil {
		return err
	}
	f.mu.Lock()
	f.controls = map[world.Control]bool{}
	f.mu.Unlock()
	return nil
}

func (f *Fake) MoveTo(ctx context.Context, pos world.Vec3, tolerance float64) error {
	return f.run(ctx, "moveTo", pos, tolerance)
}

func (f *Fake) Pathfind(ctx context.Context, pos world.Vec3) error {
	return f.run(ctx, "pathfind", pos)
}

// Follow accepts at once. The task runs until EndFollow or ctx ends.
func (f *Fake) Follow(ctx context.Context, entityID string, distance float64) (<-chan error, error) {
	if err := f.record("follow", entityID, distance); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := &followTask{ch: make(chan error, 1)}
	f.mu.Lock()
	f.follows = append(f.follows, t)
	f.mu.Unlock()
	context.AfterFunc(ctx, func() { t.end(ctx.Err()) })
	return t.ch, nil
}

func (f *Fake) Attack(ctx context.Context, entityID string) error {
	return f.run(ctx, "attack", entityID)
}

func (f *Fake) Dig(ctx context.Context, pos world.BlockPos) error {
	return f.run(ctx, "dig", pos)
}

func (f *Fake) StopDigging() error { return f.record("stopDig") }

func (f *Fake) Place(ctx context.Context, pos world.BlockPos) error {
	return f.run(ctx, "place", pos)
}

func (f *Fake) OpenContainer(ctx context.Context, pos world.BlockPos) error {
	return f.run(ctx, "open", pos)
}

func (f *Fake) ClickSlot(_ context.Context, w world.Window, slot int, mode world.ClickMode) error {
	return f.record("click", w, slot, mode)
}

func (f *Fake) CloseWindow() error { return f.record("closeWindow") }

func (f *Fake) Inventory(w world.Window) ([]world.Item, error) {
	if err := f.record("inventory", w); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	items, ok := f.items[w]
	if !ok && w == world.WindowContainer {
		return nil, fmt.Errorf("inventory: no open container")
	}
	return append([]world.Item(nil), items...), nil
}

func (f *Fake) SetHotbarSlot(slot int) error {
	if err := f.record("slot", slot); err != nil {
		return err
	}
	f.mu.Lock()
	f.self.Slot = slot
	f.mu.Unlock()
	return nil
}

func (f *Fake) UseItem(ctx context.Context, d time.Duration) error {
	return f.run(ctx, "useItem", d)
}

func (f *Fake) Chat(text string) error {
	if err := f.record("chat", text); err != nil {
		return err
	}
	f.mu.Lock()
	f.chat = append(f.chat, text)
	f.mu.Unlock()
	return nil
}

func (f *Fake) Reconnect() error { return f.record("reconnect") }

func (f *Fake) Quit(reason string) error { return f.record("quit", reason) }

func (f *Fake) Events() <-chan world.Event { return f.events }
