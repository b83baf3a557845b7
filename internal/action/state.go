// Package action coordinates what the agent is doing: a guarded state
// machine over moving, looking and attacking, and a priority arbiter for
// orientation requests.
package action

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrMoving           = errors.New("already moving")
	ErrAlreadyLooking   = errors.New("already looking at something")
	ErrAlreadyAttacking = errors.New("already attacking")
	ErrAttacking        = errors.New("attack in progress, consider .stopattack")
	ErrLooking          = errors.New("look in progress, consider .stoplook")
	ErrAttackOwnsLook   = errors.New("cannot stop looking while attacking, consider .stopattack")
	ErrLookNotAttack    = errors.New("not attacking, consider .stoplook")
)

type Kind int

const (
	Move Kind = iota + 1
	Look
	Attack
)

func (k Kind) String() string {
	switch k {
	case Move:
		return "move"
	case Look:
		return "look"
	case Attack:
		return "attack"
	}
	return "none"
}

// Lease is the token a loop holds while it owns a flag. Done is closed when
// the flag is cleared, whoever clears it.
type Lease struct {
	kind   Kind
	holder string
	state  *State
	done   chan struct{}
	once   sync.Once
}

func (l *Lease) Kind() Kind            { return l.kind }
func (l *Lease) Holder() string        { return l.holder }
func (l *Lease) Done() <-chan struct{} { return l.done }

// Active reports whether the lease still holds its flag.
func (l *Lease) Active() bool {
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}

// Release clears the lease's flag if it still holds it.
func (l *Lease) Release() { l.state.release(l) }

// Context returns a child of parent cancelled when the lease ends.
func (l *Lease) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-l.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (l *Lease) end() { l.once.Do(func() { close(l.done) }) }

// Snapshot is a point-in-time copy of the state.
type Snapshot struct {
	Moving    bool
	Looking   bool
	Attacking bool
	// LookOwner is the holder of the look lease, "" when nobody looks.
	LookOwner string
}

// State is the action state machine. The look lease doubles as the attack
// lease: attacking means the look lease is of kind Attack, so attacking
// always implies looking.
type State struct {
	mu   sync.Mutex
	move *Lease
	look *Lease
}

func NewState() *State { return &State{} }

func (s *State) newLease(k Kind, holder string) *Lease {
	return &Lease{kind: k, holder: holder, state: s, done: make(chan struct{})}
}

func (s *State) attackingLocked() bool { return s.look != nil && s.look.kind == Attack }

func (s *State) BeginMove(holder string) (*Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.move != nil {
		return nil, ErrMoving
	}
	s.move = s.newLease(Move, holder)
	return s.move, nil
}

func (s *State) BeginLook(holder string) (*Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attackingLocked() {
		return nil, ErrAttacking
	}
	if s.look != nil {
		return nil, ErrAlreadyLooking
	}
	s.look = s.newLease(Look, holder)
	return s.look, nil
}

// BeginAttack sets attacking and looking together.
func (s *State) BeginAttack(holder string) (*Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attackingLocked() {
		return nil, ErrAlreadyAttacking
	}
	if s.look != nil {
		return nil, ErrLooking
	}
	s.look = s.newLease(Attack, holder)
	return s.look, nil
}

// StopMove clears moving and reports whether it was set.
func (s *State) StopMove() bool {
	s.mu.Lock()
	l := s.move
	s.move = nil
	s.mu.Unlock()
	if l == nil {
		return false
	}
	l.end()
	return true
}

// StopLook clears looking. It refuses while an attack owns the look.
func (s *State) StopLook() (bool, error) {
	s.mu.Lock()
	if s.attackingLocked() {
		s.mu.Unlock()
		return false, ErrAttackOwnsLook
	}
	l := s.look
	s.look = nil
	s.mu.Unlock()
	if l == nil {
		return false, nil
	}
	l.end()
	return true, nil
}

// StopAttack clears attacking and looking. It refuses when a plain look is in
// progress.
func (s *State) StopAttack() (bool, error) {
	s.mu.Lock()
	if s.look != nil && !s.attackingLocked() {
		s.mu.Unlock()
		return false, ErrLookNotAttack
	}
	l := s.look
	s.look = nil
	s.mu.Unlock()
	if l == nil {
		return false, nil
	}
	l.end()
	return true, nil
}

func (s *State) release(l *Lease) {
	s.mu.Lock()
	switch {
	case s.move == l:
		s.move = nil
	case s.look == l:
		s.look = nil
	}
	s.mu.Unlock()
	l.end()
}

// Reset clears every flag and ends all outstanding leases.
func (s *State) Reset() {
	s.mu.Lock()
	move, look := s.move, s.look
	s.move, s.look = nil, nil
	s.mu.Unlock()
	if move != nil {
		move.end()
	}
	if look != nil {
		look.end()
	}
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Moving:    s.move != nil,
		Looking:   s.look != nil,
		Attacking: s.attackingLocked(),
	}
	if s.look != nil {
		snap.LookOwner = s.look.holder
	}
	return snap
}

func (s *State) Moving() bool    { return s.Snapshot().Moving }
func (s *State) Looking() bool   { return s.Snapshot().Looking }
func (s *State) Attacking() bool { return s.Snapshot().Attacking }
