package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"voxelcraft.ai/vcterm/internal/behavior"
	"voxelcraft.ai/vcterm/internal/config"
	"voxelcraft.ai/vcterm/internal/console"
	"voxelcraft.ai/vcterm/internal/plugin"
	"voxelcraft.ai/vcterm/internal/plugins/owo"
	"voxelcraft.ai/vcterm/internal/world"
	"voxelcraft.ai/vcterm/internal/world/worldtest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const eventually = 2 * time.Second

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

// chanReader hands out queued lines and reports io.EOF once closed.
type chanReader struct{ lines chan string }

func (r *chanReader) ReadLine() (string, error) {
	l, ok := <-r.lines
	if !ok {
		return "", io.EOF
	}
	return l, nil
}

type harness struct {
	w      *worldtest.Fake
	out    *syncBuffer
	c      *Client
	in     *chanReader
	done   chan error
	exited []int
}

func newHarness(t *testing.T, mutate func(*config.Config), plugins ...plugin.Plugin) *harness {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	cfg.Normalize()
	require.NoError(t, cfg.Validate())

	h := &harness{w: worldtest.New(), out: &syncBuffer{}, in: &chanReader{lines: make(chan string, 16)}, done: make(chan error, 1)}
	timing := behavior.Timing{
		FollowGate: time.Millisecond, FollowIdle: time.Millisecond, FollowInRange: time.Millisecond,
		FollowGrant: time.Millisecond, StuckDistance: 0.05, SmartFollowTick: time.Millisecond, LookAtTick: time.Millisecond,
	}
	c, err := New(Options{
		Config:  cfg,
		World:   h.w,
		Printer: console.NewPrinter(h.out),
		Plugins: plugins,
		Version: "test",
		Timing:  &timing,
		Exit:    func(code int) { h.exited = append(h.exited, code) },
	})
	require.NoError(t, err)
	h.c = c
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	go func() { h.done <- h.c.Run(context.Background(), h.in) }()
	t.Cleanup(func() {
		close(h.in.lines)
	})
}

// stop ends the world event stream and waits for Run.
func (h *harness) stop(t *testing.T) {
	t.Helper()
	h.w.CloseEvents()
	select {
	case err := <-h.done:
		require.NoError(t, err)
	case <-time.After(eventually):
		t.Fatal("Run did not return")
	}
}

func (h *harness) waitOutput(t *testing.T, substr string) {
	t.Helper()
	require.Eventually(t, func() bool { return strings.Contains(h.out.String(), substr) }, eventually, time.Millisecond, "missing %q in:\n%s", substr, h.out.String())
}

func (h *harness) waitChat(t *testing.T, text string) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, c := range h.w.Chats() {
			if c == text {
				return true
			}
		}
		return false
	}, eventually, time.Millisecond)
}

func TestRun_CommandsAndChat(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	h.w.Emit(world.Event{Kind: world.EventLogin})

	h.in.lines <- ".send hello there"
	h.waitChat(t, "hello there")
	h.in.lines <- "just chatting"
	h.waitChat(t, "just chatting")

	h.in.lines <- ".bogus"
	h.waitOutput(t, "unknown command: bogus, see .help")
	h.in.lines <- ".move"
	h.waitOutput(t, "[WARN] Usage: .move <north/south/east/west> [distance]")
	h.in.lines <- ".wait 1"
	h.waitOutput(t, "command can only be used in scripts: wait")
	h.stop(t)
}

func TestRun_SubstitutesBeforeDispatch(t *testing.T) {
	h := newHarness(t, nil)
	h.w.SetSelf(world.Self{ID: "A1", Name: "vcterm", Pos: world.Vec3{X: 10, Y: 64, Z: -3}})
	h.start(t)
	h.w.Emit(world.Event{Kind: world.EventLogin})

	h.in.lines <- ".set target bob"
	h.waitOutput(t, "Set %target% to bob")
	h.in.lines <- ".send %target% at ~x ~y+1 ~z"
	h.waitChat(t, "bob at 10 65 -3")
	h.stop(t)
}

func TestRun_OperatorLinesRunInOrder(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	h.w.Emit(world.Event{Kind: world.EventLogin})

	const n = 200
	want := make([]string, n)
	for i := 0; i < n; i++ {
		h.in.lines <- fmt.Sprintf(".set k%d v%d", i, i)
		h.in.lines <- fmt.Sprintf(".send [%%k%d%%]", i)
		want[i] = fmt.Sprintf("[v%d]", i)
	}
	require.Eventually(t, func() bool { return len(h.w.Chats()) == n }, eventually, time.Millisecond)
	require.Equal(t, want, h.w.Chats())
	h.stop(t)
}

func TestRun_RemoteLinesRunInOrder(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Remote.Enabled = true })
	h.start(t)
	h.w.Emit(world.Event{Kind: world.EventLogin})

	const n = 20
	want := make([]string, n)
	for i := 0; i < n; i++ {
		h.w.Emit(world.Event{Kind: world.EventMessage, From: "bob", Text: fmt.Sprintf("!#set r v%d", i)})
		h.w.Emit(world.Event{Kind: world.EventMessage, From: "bob", Text: "!#send got %r%"})
		want[i] = fmt.Sprintf("got v%d", i)
	}
	require.Eventually(t, func() bool { return len(h.w.Chats()) == n }, eventually, time.Millisecond)
	require.Equal(t, want, h.w.Chats())
	h.stop(t)
}

func TestRun_LongCommandDoesNotBlockInput(t *testing.T) {
	h := newHarness(t, nil)
	release := h.w.Hold("moveTo")
	defer release()
	h.start(t)
	h.w.Emit(world.Event{Kind: world.EventLogin})

	h.in.lines <- ".move north 3"
	h.in.lines <- ".send still here"
	h.waitChat(t, "still here")
	require.True(t, h.c.State().Moving())

	release()
	h.waitOutput(t, "Moved north for 3 blocks")
	h.stop(t)
}

func TestRun_BuffersMessagesUntilLogin(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	h.w.Emit(world.Event{Kind: world.EventMessage, From: "bob", Text: "early"})
	h.w.Emit(world.Event{Kind: world.EventLogin})
	h.waitOutput(t, "<bob> early")

	out := h.out.String()
	require.Less(t, strings.Index(out, "Connected as vcterm"), strings.Index(out, "<bob> early"))
	h.stop(t)
}

func TestRun_RemoteTrigger(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Remote.Enabled = true })
	h.start(t)
	h.w.Emit(world.Event{Kind: world.EventLogin})
	h.w.Emit(world.Event{Kind: world.EventMessage, From: "bob", Text: "§a!#send pong!"})
	h.waitChat(t, "pong")
	h.waitOutput(t, "[REMOTE] send pong")
	h.stop(t)
}

func TestRun_HooksOnAndOnce(t *testing.T) {
	h := newHarness(t, func(c *config.Config) {
		c.Hooks = map[string]string{
			"once_spawn": ".send first spawn",
			"on_death":   "send died again",
		}
	})
	h.start(t)
	h.w.Emit(world.Event{Kind: world.EventLogin})
	h.w.Emit(world.Event{Kind: world.EventSpawn})
	h.w.Emit(world.Event{Kind: world.EventDeath})
	h.w.Emit(world.Event{Kind: world.EventSpawn})
	h.w.Emit(world.Event{Kind: world.EventDeath})
	require.Eventually(t, func() bool { return len(h.w.Chats()) == 3 }, eventually, time.Millisecond)
	h.stop(t)

	var first, died int
	for _, c := range h.w.Chats() {
		switch c {
		case "first spawn":
			first++
		case "died again":
			died++
		}
	}
	require.Equal(t, 1, first)
	require.Equal(t, 2, died)
}

func TestRun_SpawnResetsActionState(t *testing.T) {
	h := newHarness(t, nil)
	lease, err := h.c.State().BeginMove("test")
	require.NoError(t, err)
	h.start(t)
	h.w.Emit(world.Event{Kind: world.EventSpawn})
	select {
	case <-lease.Done():
	case <-time.After(eventually):
		t.Fatal("spawn did not reset the action state")
	}
	require.False(t, h.c.State().Moving())
	h.stop(t)
}

func TestRun_PluginsLoadAfterLogin(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Plugins = []string{"owo", "missing"} }, owo.New())
	require.Contains(t, h.out.String(), "Unknown plugin: 'missing'")
	h.start(t)
	h.w.Emit(world.Event{Kind: world.EventLogin})
	h.waitOutput(t, "Loaded plugin: 'owo'")

	require.Contains(t, h.c.Completion().Words(), ".owo")
	h.in.lines <- ".owo hello world"
	h.waitChat(t, "hewwo wowwd owo")
	h.stop(t)
}

func TestRun_InterruptQuits(t *testing.T) {
	h := newHarness(t, nil)
	r := &interruptReader{}
	go func() { h.done <- h.c.Run(context.Background(), r) }()
	require.Eventually(t, func() bool { return len(h.w.CallsTo("quit")) == 1 }, eventually, time.Millisecond)
	require.Equal(t, []any{"interrupt"}, h.w.CallsTo("quit")[0].Args)
	h.stop(t)
}

type interruptReader struct{ once sync.Once }

func (r *interruptReader) ReadLine() (string, error) {
	err := io.EOF
	r.once.Do(func() { err = console.ErrInterrupt })
	return "", err
}

func TestRun_ContextCancelReturns(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.c.Run(ctx, nil) }()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(eventually):
		t.Fatal("Run did not return")
	}
}

func TestCompletion_ExcludesExitAndScriptOnly(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Commands.Aliases = map[string]string{"n": ".move north"} })
	words := h.c.Completion().Words()
	require.Contains(t, words, ".move")
	require.Contains(t, words, ".n")
	require.NotContains(t, words, ".exit")
	require.NotContains(t, words, ".print")
}

func TestGuard_ExitsWithoutDebug(t *testing.T) {
	h := newHarness(t, nil)
	func() {
		defer h.c.guard()
		panic(errors.New("boom"))
	}()
	require.Equal(t, []int{1}, h.exited)
	require.Contains(t, h.out.String(), "[ERROR] panic: boom")
}

func TestGuard_DebugKeepsRunning(t *testing.T) {
	h := newHarness(t, nil)
	h.c.opts.Debug = true
	func() {
		defer h.c.guard()
		panic("boom")
	}()
	require.Empty(t, h.exited)
	require.Contains(t, h.out.String(), "goroutine")
}

func crashInner() { panic("deep") }

func crashOuter() { crashInner() }

func TestCrashReport_KeepsTwoFrames(t *testing.T) {
	var report string
	func() {
		defer func() {
			r := recover()
			report = CrashReport(r, debug.Stack(), false)
		}()
		crashOuter()
	}()
	lines := strings.Split(report, "\n")
	require.Equal(t, "panic: deep", lines[0])
	require.Len(t, lines, 3)
	require.Contains(t, lines[1], "crashInner")
	require.Contains(t, lines[2], "crashOuter")
	require.Contains(t, lines[1], "client_test.go:")
}

func TestStripColors(t *testing.T) {
	require.Equal(t, "!#send hi", StripColors("§a!#§lsend hi"))
}
