// Package world defines the collaborator the client drives: the agent's body
// in a voxel world. Implementations live in subpackages (wsclient talks to a
// voxelcraft server, worldtest is an in-memory fake).
package world

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrActionFailed wraps every rejection reported by the world.
var ErrActionFailed = errors.New("world action failed")

// ErrNotConnected is returned by primitives issued while no session is live.
var ErrNotConnected = errors.New("not connected")

// ActionError carries the world's rejection code. It unwraps to ErrActionFailed.
type ActionError struct {
	Op      string
	Code    string
	Message string
}

func (e *ActionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Op, e.Message, e.Code)
}

func (e *ActionError) Unwrap() error { return ErrActionFailed }

// Control is a movement control state.
type Control string

const (
	Forward Control = "forward"
	Back    Control = "back"
	Left    Control = "left"
	Right   Control = "right"
	Jump    Control = "jump"
	Sprint  Control = "sprint"
	Sneak   Control = "sneak"
)

// Controls lists every control state in display order.
var Controls = []Control{Forward, Back, Left, Right, Jump, Sprint, Sneak}

// ParseControl resolves an operator-supplied control name.
func ParseControl(s string) (Control, bool) {
	for _, c := range Controls {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Entity types reported by the server.
const (
	TypeAgent = "AGENT"
	TypeMob   = "MOB"
	TypeItem  = "ITEM"
)

// EyeHeight is the agent's eye level above its feet.
const EyeHeight = 1.62

// Self is the controlled agent.
type Self struct {
	ID     string
	Name   string
	Pos    Vec3
	Yaw    float64
	Pitch  float64
	HP     int
	Hunger int
	Slot   int
}

// Eye returns the agent's eye position.
func (s Self) Eye() Vec3 { return Vec3{X: s.Pos.X, Y: s.Pos.Y + EyeHeight, Z: s.Pos.Z} }

type Entity struct {
	ID     string
	Type   string
	Name   string
	Pos    Vec3
	Height float64
	Tags   []string
	Item   string
	Count  int
}

// Eye is the point an observer looks at: feet plus height.
func (e Entity) Eye() Vec3 {
	return Vec3{X: e.Pos.X, Y: e.Pos.Y + e.Height, Z: e.Pos.Z}
}

type Player struct {
	Name     string
	EntityID string
	PingMS   int
}

type Item struct {
	Slot  int
	Name  string
	Count int
}

// Block is one non-air cell of the observed terrain.
type Block struct {
	Pos  BlockPos
	Name string
}

// Window selects an inventory view.
type Window int

const (
	WindowInventory Window = 0
	WindowContainer Window = 1
)

// ClickMode selects how ClickSlot interacts with a slot.
type ClickMode string

const (
	ClickNormal  ClickMode = "CLICK"
	ClickShift   ClickMode = "SHIFT"
	ClickDrop    ClickMode = "DROP"
	ClickDropAll ClickMode = "DROP_ALL"
)

// EventKind enumerates world lifecycle and message events.
type EventKind string

const (
	EventLogin      EventKind = "login"
	EventSpawn      EventKind = "spawn"
	EventMessage    EventKind = "message"
	EventKicked     EventKind = "kicked"
	EventDeath      EventKind = "death"
	EventEnd        EventKind = "end"
	EventWindowOpen EventKind = "window_open"
)

type Event struct {
	Kind EventKind
	// From is the sender of a message.
	From string
	// Text carries the message body, kick reason, end reason or window title.
	Text string
	At   time.Time
}

// Matcher is an entity predicate. An error aborts the search.
type Matcher func(Entity) (bool, error)

// World is everything the client needs from the agent's environment.
// All methods are safe for concurrent use.
type World interface {
	Self() (Self, bool)
	Players() []Player
	NearestEntity(match Matcher) (Entity, bool, error)
	// FindBlocks returns up to count observed blocks within maxDistance of
	// the agent, nearest first. A count <= 0 means no limit.
	FindBlocks(maxDistance float64, count int, match func(Block) bool) []Block

	SetOrientation(ctx context.Context, yaw, pitch float64, force bool) error
	SetControlState(c Control, on bool) error
	ControlState(c Control) bool
	ClearControlStates() error

	MoveTo(ctx context.Context, pos Vec3, tolerance float64) error
	Pathfind(ctx context.Context, pos Vec3) error
	// Follow returns once the follow task is accepted. The channel yields
	// how the task ended (nil when it completed) and is then closed.
	Follow(ctx context.Context, entityID string, distance float64) (<-chan error, error)
	Attack(ctx context.Context, entityID string) error

	Dig(ctx context.Context, pos BlockPos) error
	StopDigging() error
	Place(ctx context.Context, pos BlockPos) error
	OpenContainer(ctx context.Context, pos BlockPos) error
	ClickSlot(ctx context.Context, w Window, slot int, mode ClickMode) error
	CloseWindow() error
	Inventory(w Window) ([]Item, error)
	SetHotbarSlot(slot int) error
	UseItem(ctx context.Context, d time.Duration) error

	Chat(text string) error
	Reconnect() error
	Quit(reason string) error
	Events() <-chan Event
}
