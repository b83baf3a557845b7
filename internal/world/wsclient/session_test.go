package wsclient

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"voxelcraft.ai/vcterm/internal/protocol"
	"voxelcraft.ai/vcterm/internal/world"
)

func startSession(t *testing.T, fs *fakeServer, stateFile string) *Session {
	t.Helper()
	s := New(Config{URL: fs.URL(), Name: "me", StateFile: stateFile})
	s.Start()
	t.Cleanup(s.Close)
	waitEvent(t, s, world.EventSpawn)
	return s
}

func waitEvent(t *testing.T, s *Session, kind world.EventKind) world.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			require.True(t, ok, "events closed")
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %s", kind)
		}
	}
}

func TestSession_HandshakeAndObservation(t *testing.T) {
	fs := newFakeServer(t)
	s := New(Config{URL: fs.URL(), Name: "me"})
	s.Start()
	t.Cleanup(s.Close)

	waitEvent(t, s, world.EventLogin)
	waitEvent(t, s, world.EventSpawn)

	self, ok := s.Self()
	require.True(t, ok)
	require.Equal(t, "A1", self.ID)
	require.Equal(t, world.Vec3{X: 1, Y: 2, Z: 3}, self.Pos)

	hellos := fs.Hellos()
	require.Len(t, hellos, 1)
	require.Equal(t, "me", hellos[0].AgentName)
	require.Nil(t, hellos[0].Auth)

	e, found, err := s.NearestEntity(func(e world.Entity) (bool, error) { return e.Type == "AGENT", nil })
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "A2", e.ID)

	e, found, err = s.NearestEntity(func(world.Entity) (bool, error) { return true, nil })
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "M1", e.ID)

	require.Equal(t, []world.Player{{Name: "bob", EntityID: "A2", PingMS: 40}}, s.Players())
	items, err := s.Inventory(world.WindowInventory)
	require.NoError(t, err)
	require.Equal(t, []world.Item{{Slot: 0, Name: "STONE", Count: 12}}, items)

	_, err = s.Inventory(world.WindowContainer)
	require.ErrorIs(t, err, world.ErrActionFailed)
}

func TestSession_TaskCompletes(t *testing.T) {
	fs := newFakeServer(t)
	s := startSession(t, fs, "")

	errc := make(chan error, 1)
	go func() { errc <- s.MoveTo(context.Background(), world.Vec3{X: 5, Z: 5}, 1) }()

	act := fs.nextAct(t)
	require.Len(t, act.Tasks, 1)
	req := act.Tasks[0]
	require.Equal(t, protocol.TaskMoveTo, req.Type)
	require.Equal(t, [3]float64{5, 0, 5}, req.Target)
	require.Equal(t, "A1", act.AgentID)

	fs.Push(protocol.Event{"type": protocol.EventActionResult, "ref": req.ID, "ok": true, "task_id": "T1"})
	fs.Push(protocol.Event{"type": protocol.EventTaskDone, "task_id": "T1", "kind": protocol.TaskMoveTo})
	require.NoError(t, <-errc)
}

func TestSession_TaskRejectedAndFailed(t *testing.T) {
	fs := newFakeServer(t)
	s := startSession(t, fs, "")

	errc := make(chan error, 1)
	go func() { errc <- s.Dig(context.Background(), world.BlockPos{X: 1, Y: 2, Z: 3}) }()
	act := fs.nextAct(t)
	require.Equal(t, [3]int{1, 2, 3}, act.Tasks[0].BlockPos)
	fs.Push(protocol.Event{"type": protocol.EventActionResult, "ref": act.Tasks[0].ID, "ok": false, "code": protocol.ErrBlocked})
	err := <-errc
	require.ErrorIs(t, err, world.ErrActionFailed)
	var ae *world.ActionError
	require.True(t, errors.As(err, &ae))
	require.Equal(t, protocol.ErrBlocked, ae.Code)
	require.Equal(t, "blocked", ae.Message)

	go func() { errc <- s.OpenContainer(context.Background(), world.BlockPos{}) }()
	act = fs.nextAct(t)
	fs.Push(protocol.Event{"type": protocol.EventActionResult, "ref": act.Tasks[0].ID, "ok": true, "task_id": "T2"})
	fs.Push(protocol.Event{"type": protocol.EventTaskFail, "task_id": "T2", "code": protocol.ErrNoResource, "message": "nothing there"})
	err = <-errc
	require.ErrorIs(t, err, world.ErrActionFailed)
	require.Contains(t, err.Error(), "nothing there")
}

func TestSession_ContextCancelSendsCancel(t *testing.T) {
	fs := newFakeServer(t)
	s := startSession(t, fs, "")

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.MoveTo(ctx, world.Vec3{X: 9}, 0) }()
	act := fs.nextAct(t)
	fs.Push(protocol.Event{"type": protocol.EventActionResult, "ref": act.Tasks[0].ID, "ok": true, "task_id": "T9"})

	// Wait for the acceptance to land before cancelling.
	require.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.byTask["T9"] != nil
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-errc, context.Canceled)

	act = fs.nextAct(t)
	require.Equal(t, []string{"T9"}, act.Cancel)
}

type followStart struct {
	ended <-chan error
	err   error
}

func startFollow(t *testing.T, fs *fakeServer, s *Session, ctx context.Context, taskID string) <-chan error {
	t.Helper()
	res := make(chan followStart, 1)
	go func() {
		ch, err := s.Follow(ctx, "A2", 2)
		res <- followStart{ch, err}
	}()
	act := fs.nextAct(t)
	require.Equal(t, protocol.TaskFollow, act.Tasks[0].Type)
	require.Equal(t, "A2", act.Tasks[0].TargetID)
	fs.Push(protocol.Event{"type": protocol.EventActionResult, "ref": act.Tasks[0].ID, "ok": true, "task_id": taskID})
	r := <-res
	require.NoError(t, r.err)
	require.NotNil(t, r.ended)
	return r.ended
}

func TestSession_FollowReturnsOnAccept(t *testing.T) {
	fs := newFakeServer(t)
	s := startSession(t, fs, "")

	ctx, cancel := context.WithCancel(context.Background())
	ended := startFollow(t, fs, s, ctx, "F1")

	cancel()
	act := fs.nextAct(t)
	require.Equal(t, []string{"F1"}, act.Cancel)
	require.ErrorIs(t, <-ended, context.Canceled)
}

func TestSession_FollowReportsLaterFailure(t *testing.T) {
	fs := newFakeServer(t)
	s := startSession(t, fs, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ended := startFollow(t, fs, s, ctx, "F2")

	fs.Push(protocol.Event{"type": protocol.EventTaskFail, "task_id": "F2", "code": protocol.ErrBlocked})
	select {
	case err, ok := <-ended:
		require.True(t, ok)
		require.ErrorIs(t, err, world.ErrActionFailed)
	case <-time.After(3 * time.Second):
		t.Fatal("follow failure not reported")
	}
	_, open := <-ended
	require.False(t, open)
}

func TestSession_InstantsAndEvents(t *testing.T) {
	fs := newFakeServer(t)
	s := startSession(t, fs, "")

	require.NoError(t, s.Chat("hello"))
	act := fs.nextAct(t)
	require.Equal(t, protocol.InstantSay, act.Instants[0].Type)
	require.Equal(t, "hello", act.Instants[0].Text)

	require.NoError(t, s.SetControlState(world.Forward, true))
	require.True(t, s.ControlState(world.Forward))
	act = fs.nextAct(t)
	require.Equal(t, "forward", act.Instants[0].Control)
	require.True(t, act.Instants[0].On)

	require.NoError(t, s.ClearControlStates())
	require.False(t, s.ControlState(world.Forward))
	act = fs.nextAct(t)
	require.False(t, act.Instants[0].On)

	require.NoError(t, s.SetOrientation(context.Background(), 90, -10, true))
	act = fs.nextAct(t)
	require.Equal(t, protocol.InstantLook, act.Instants[0].Type)
	require.True(t, act.Instants[0].Force)
	self, _ := s.Self()
	require.Equal(t, 90.0, self.Yaw)

	fs.Push(protocol.Event{"type": protocol.EventChat, "from": "bob", "text": "hi"})
	ev := waitEvent(t, s, world.EventMessage)
	require.Equal(t, "bob", ev.From)
	require.Equal(t, "hi", ev.Text)

	fs.Push(protocol.Event{"type": protocol.EventKicked, "reason": "afk"})
	ev = waitEvent(t, s, world.EventKicked)
	require.Equal(t, "afk", ev.Text)
}

func TestSession_ResumeTokenPersistedAndReconnect(t *testing.T) {
	fs := newFakeServer(t)
	state := filepath.Join(t.TempDir(), "state", "session.json")
	s := startSession(t, fs, state)

	b, err := os.ReadFile(state)
	require.NoError(t, err)
	require.Contains(t, string(b), `"resume_token": "R1"`)

	require.NoError(t, s.Reconnect())
	waitEvent(t, s, world.EventEnd)
	waitEvent(t, s, world.EventSpawn)

	hellos := fs.Hellos()
	require.Len(t, hellos, 2)
	require.NotNil(t, hellos[1].Auth)
	require.Equal(t, "R1", hellos[1].Auth.Token)

	s2 := New(Config{URL: fs.URL(), Name: "me", StateFile: state})
	require.Equal(t, "R1", s2.resumeToken)
	s2.Close()
}

func TestSession_NotConnected(t *testing.T) {
	s := New(Config{URL: "ws://127.0.0.1:1/never"})
	require.ErrorIs(t, s.Chat("x"), world.ErrNotConnected)
	require.ErrorIs(t, s.MoveTo(context.Background(), world.Vec3{}, 1), world.ErrNotConnected)
	_, ok := s.Self()
	require.False(t, ok)
	require.NoError(t, s.Quit("bye"))

	var last world.Event
	for ev := range s.Events() {
		last = ev
	}
	require.Equal(t, world.EventEnd, last.Kind)
	require.Equal(t, "bye", last.Text)
}

func TestSession_FindBlocksFromVoxels(t *testing.T) {
	fs := newFakeServer(t)
	ids := make([]uint16, protocol.VoxelCount(1))
	ids[protocol.VoxelIndex(1, [3]int{0, -1, 0})] = 1
	ids[protocol.VoxelIndex(1, [3]int{1, 0, 0})] = 2
	fs.SetVoxels(protocol.VoxelsObs{Center: [3]int{1, 2, 3}, Radius: 1, Encoding: protocol.EncodingRLE, Data: protocol.EncodeRLE(ids)})
	s := startSession(t, fs, "")
	require.True(t, fs.Hellos()[0].Capabilities.DeltaVoxels)

	require.Equal(t, []world.Block{
		{Pos: world.BlockPos{X: 1, Y: 1, Z: 3}, Name: "STONE"},
		{Pos: world.BlockPos{X: 2, Y: 2, Z: 3}, Name: "DIRT"},
	}, s.FindBlocks(5, 0, nil))
	require.Len(t, s.FindBlocks(5, 1, nil), 1)
	require.Empty(t, s.FindBlocks(1, 0, nil))

	fs.SetVoxels(protocol.VoxelsObs{Center: [3]int{1, 2, 3}, Radius: 1, Encoding: protocol.EncodingDelta, Ops: []protocol.VoxelDeltaOp{{D: [3]int{1, 0, 0}}}})
	fs.Push()
	require.Eventually(t, func() bool { return len(s.FindBlocks(5, 0, nil)) == 1 }, 3*time.Second, time.Millisecond)
	require.Equal(t, "STONE", s.FindBlocks(5, 0, nil)[0].Name)
}

func TestSession_DeltaWithoutBaseDropsCube(t *testing.T) {
	fs := newFakeServer(t)
	fs.SetVoxels(protocol.VoxelsObs{Center: [3]int{1, 2, 3}, Radius: 1, Encoding: protocol.EncodingDelta, Ops: []protocol.VoxelDeltaOp{{D: [3]int{0, 0, 0}, B: 1}}})
	s := startSession(t, fs, "")
	require.Empty(t, s.FindBlocks(5, 0, nil))
}
