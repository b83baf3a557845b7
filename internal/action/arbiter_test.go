package action

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClockArbiter() (*Arbiter, *fakeClock) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	return NewArbiter(WithClock(clk.Now)), clk
}

func TestArbiter_PreemptionAndExpiry(t *testing.T) {
	a, clk := newClockArbiter()
	ran := 0
	run := func() { ran++ }

	require.True(t, a.Do(Request{Priority: 10, Duration: 120 * time.Millisecond, Exclusive: true, Holder: "follow"}, run))
	require.Equal(t, 1, ran)

	// Lower priority while the grant is live is rejected silently.
	clk.Advance(50 * time.Millisecond)
	require.False(t, a.Do(Request{Priority: 5, Duration: 100 * time.Millisecond, Exclusive: true, Holder: "lookAt"}, run))
	require.Equal(t, 1, ran)
	g, ok := a.Current()
	require.True(t, ok)
	require.Equal(t, "follow", g.Holder)

	// Equal priority preempts.
	require.True(t, a.Do(Request{Priority: 10, Duration: 120 * time.Millisecond, Exclusive: true, Holder: "follow-2"}, run))
	require.Equal(t, 2, ran)

	// After expiry anything is accepted.
	clk.Advance(120 * time.Millisecond)
	_, ok = a.Current()
	require.False(t, ok)
	require.True(t, a.Do(Request{Priority: 1, Duration: time.Second, Exclusive: true, Holder: "low"}, run))
	require.Equal(t, 3, ran)
}

func TestArbiter_HigherPriorityPreempts(t *testing.T) {
	a, _ := newClockArbiter()
	require.True(t, a.Do(Request{Priority: 5, Duration: time.Second, Exclusive: true, Holder: "lookAt"}, nil))
	require.True(t, a.Do(Request{Priority: 20, Duration: time.Second, Exclusive: true, Holder: "attack"}, nil))
	g, _ := a.Current()
	require.Equal(t, 20, g.Priority)
}

func TestArbiter_NonExclusiveKeepsGrant(t *testing.T) {
	a, _ := newClockArbiter()
	require.True(t, a.Do(Request{Priority: 10, Duration: time.Second, Exclusive: true, Holder: "follow"}, nil))
	require.True(t, a.Do(Request{Priority: 10, Duration: time.Minute, Holder: "peek"}, nil))
	g, _ := a.Current()
	require.Equal(t, "follow", g.Holder)
}

func TestArbiter_ForceIfBusy(t *testing.T) {
	a, _ := newClockArbiter()
	require.True(t, a.Do(Request{Priority: 20, Duration: time.Second, Exclusive: true, Holder: "attack"}, nil))
	forced := false
	accepted := a.Do(Request{Priority: 1, Duration: time.Second, Exclusive: true, ForceIfBusy: true, Holder: "look"}, func() { forced = true })
	require.False(t, accepted)
	require.True(t, forced)
	g, _ := a.Current()
	require.Equal(t, "attack", g.Holder)
}

func TestArbiter_DecisionIsAtomic(t *testing.T) {
	a := NewArbiter()
	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			a.Do(Request{Priority: p % 3, Duration: time.Millisecond, Exclusive: true}, func() {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()
				time.Sleep(100 * time.Microsecond)
				mu.Lock()
				inside--
				mu.Unlock()
			})
		}(i)
	}
	wg.Wait()
	require.Equal(t, 1, maxSeen)
}
