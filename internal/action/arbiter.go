package action

import (
	"sync"
	"time"
)

// Grant is the current orientation claim.
type Grant struct {
	Priority  int
	ExpiresAt time.Time
	Holder    string
}

// Request asks the arbiter to run an orientation change.
type Request struct {
	Priority int
	Duration time.Duration
	// Exclusive requests replace the grant when accepted.
	Exclusive bool
	// ForceIfBusy runs the action even when rejected, leaving the grant as is.
	ForceIfBusy bool
	Holder      string
}

// Arbiter serialises orientation requests. There is at most one grant; it is
// never released, only replaced or left to expire.
type Arbiter struct {
	mu    sync.Mutex
	now   func() time.Time
	grant Grant
	has   bool
}

type ArbiterOption func(*Arbiter)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ArbiterOption {
	return func(a *Arbiter) { a.now = now }
}

func NewArbiter(opts ...ArbiterOption) *Arbiter {
	a := &Arbiter{now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Do decides req and, if accepted, runs fn. The decision, the grant update
// and fn run under one lock, so fn must not call back into the arbiter.
// It reports whether the request was accepted; a rejection is not an error.
func (a *Arbiter) Do(req Request, fn func()) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	accepted := !a.has || !now.Before(a.grant.ExpiresAt) || req.Priority >= a.grant.Priority
	if !accepted {
		if req.ForceIfBusy && fn != nil {
			fn()
		}
		return false
	}
	if req.Exclusive {
		a.grant = Grant{Priority: req.Priority, ExpiresAt: now.Add(req.Duration), Holder: req.Holder}
		a.has = true
	}
	if fn != nil {
		fn()
	}
	return true
}

// Current returns the grant if it has not expired.
func (a *Arbiter) Current() (Grant, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.has || !a.now().Before(a.grant.ExpiresAt) {
		return Grant{}, false
	}
	return a.grant, true
}
