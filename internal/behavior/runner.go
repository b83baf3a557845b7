// Package behavior runs the continuous commands (follow, smartFollow, attack,
// lookAt) as cooperative loops. Each loop owns an action lease, polls behind
// a cooldown gate and stops when its lease ends.
package behavior

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"voxelcraft.ai/vcterm/internal/action"
	"voxelcraft.ai/vcterm/internal/world"
)

// Timing holds every interval the loops use.
type Timing struct {
	FollowGate    time.Duration
	FollowIdle    time.Duration
	FollowInRange time.Duration
	FollowGrant   time.Duration
	// StuckDistance is how little the agent may move between follow ticks
	// before it tries to jump.
	StuckDistance float64

	SmartFollowTick time.Duration

	LookAtTick time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		FollowGate:      80 * time.Millisecond,
		FollowIdle:      200 * time.Millisecond,
		FollowInRange:   150 * time.Millisecond,
		FollowGrant:     120 * time.Millisecond,
		StuckDistance:   0.05,
		SmartFollowTick: 220 * time.Millisecond,
		LookAtTick:      100 * time.Millisecond,
	}
}

// Arbitration priorities. Higher wins.
const (
	PriorityLook   = 1
	PriorityLookAt = 5
	PriorityFollow = 10
	PriorityAttack = 20
)

// ReportFunc receives the error that ended a loop. It is called at most once
// per loop and never for a plain stop.
type ReportFunc func(loop string, err error)

type Runner struct {
	ctx     context.Context
	world   world.World
	state   *action.State
	arbiter *action.Arbiter
	timing  Timing
	report  ReportFunc
	log     *zap.Logger

	wg sync.WaitGroup

	mu      sync.Mutex
	running map[string]string // lease holder -> loop name
}

type Option func(*Runner)

func WithTiming(t Timing) Option      { return func(r *Runner) { r.timing = t } }
func WithReport(f ReportFunc) Option  { return func(r *Runner) { r.report = f } }
func WithLogger(l *zap.Logger) Option { return func(r *Runner) { r.log = l } }

// NewRunner binds loops to ctx; cancelling it stops every loop.
func NewRunner(ctx context.Context, w world.World, st *action.State, arb *action.Arbiter, opts ...Option) *Runner {
	r := &Runner{
		ctx:     ctx,
		world:   w,
		state:   st,
		arbiter: arb,
		timing:  DefaultTiming(),
		report:  func(string, error) {},
		log:     zap.NewNop(),
		running: map[string]string{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Runner) Timing() Timing { return r.timing }

// Wait blocks until every loop has returned.
func (r *Runner) Wait() { r.wg.Wait() }

// Running returns the names of live loops.
func (r *Runner) Running() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.running))
	for _, n := range r.running {
		out = append(out, n)
	}
	return out
}

func holderID(loop string) string { return loop + "-" + uuid.NewString()[:8] }

// spawn runs body until it returns or the lease ends, then releases the lease.
func (r *Runner) spawn(name string, lease *action.Lease, body func(ctx context.Context) error) {
	ctx, cancel := lease.Context(r.ctx)
	r.mu.Lock()
	r.running[lease.Holder()] = name
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		defer func() {
			r.mu.Lock()
			delete(r.running, lease.Holder())
			r.mu.Unlock()
		}()
		defer lease.Release()

		err := body(ctx)
		switch {
		case err == nil, errors.Is(err, context.Canceled):
			r.log.Debug("loop stopped", zap.String("loop", name), zap.String("holder", lease.Holder()))
		default:
			r.log.Info("loop failed", zap.String("loop", name), zap.Error(err))
			r.report(name, err)
		}
	}()
}

// gate builds the cooldown limiter for a loop.
func gate(every time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(every), 1)
}

// sleep waits d or until ctx ends. It reports whether the loop should go on.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// look asks the arbiter for an orientation change and applies it if granted.
func (r *Runner) look(ctx context.Context, req action.Request, eye, target world.Vec3, force bool) (bool, error) {
	yaw, pitch := world.LookAngles(eye, target)
	var err error
	ok := r.arbiter.Do(req, func() {
		err = r.world.SetOrientation(ctx, yaw, pitch, force)
	})
	return ok, err
}

// controlSaver records control states before a loop changes them.
type controlSaver struct {
	w     world.World
	saved map[world.Control]bool
}

func saveControls(w world.World, cs ...world.Control) *controlSaver {
	s := &controlSaver{w: w, saved: make(map[world.Control]bool, len(cs))}
	for _, c := range cs {
		s.saved[c] = w.ControlState(c)
	}
	return s
}

// set changes a saved control, skipping the call when it is already in place.
func (s *controlSaver) set(c world.Control, on bool) error {
	if s.w.ControlState(c) == on {
		return nil
	}
	if err := s.w.SetControlState(c, on); err != nil {
		return fmt.Errorf("control %s: %w", c, err)
	}
	return nil
}

// restore puts every saved control back. Errors are ignored: the connection
// may already be gone.
func (s *controlSaver) restore() {
	for c, on := range s.saved {
		if s.w.ControlState(c) != on {
			_ = s.w.SetControlState(c, on)
		}
	}
}
