package wsclient

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voxelcraft.ai/vcterm/internal/protocol"
)

// pendingTask follows one TaskReq from ACT to ACTION_RESULT to TASK_DONE/TASK_FAIL.
type pendingTask struct {
	op  string
	ref string
	// taskID is assigned by the server on acceptance.
	taskID string
	// acceptOnly tasks return to the caller once accepted and keep running.
	acceptOnly bool
	cancelled  bool

	replied bool
	result  chan error
	// ended receives the outcome of an accepted acceptOnly task.
	ended    chan error
	settled  bool
	finished chan struct{}
}

func newPendingTask(op, ref string, acceptOnly bool) *pendingTask {
	return &pendingTask{
		op:         op,
		ref:        ref,
		acceptOnly: acceptOnly,
		result:     make(chan error, 1),
		ended:      make(chan error, 1),
		finished:   make(chan struct{}),
	}
}

// reply delivers the caller's outcome at most once. Callers hold s.mu.
func (p *pendingTask) reply(err error) {
	if p.replied {
		return
	}
	p.replied = true
	p.result <- err
}

// settleLocked ends p with err and forgets it.
func (s *Session) settleLocked(p *pendingTask, err error) {
	accepted := p.replied
	p.reply(err)
	if !p.settled {
		p.settled = true
		close(p.finished)
		if p.acceptOnly && accepted {
			p.ended <- err
		}
		close(p.ended)
	}
	delete(s.pending, p.ref)
	if p.taskID != "" {
		delete(s.byTask, p.taskID)
	}
}

func (s *Session) failAllLocked(err error) {
	for _, p := range s.pending {
		s.settleLocked(p, err)
	}
	for _, p := range s.byTask {
		s.settleLocked(p, err)
	}
}

func (s *Session) runTask(ctx context.Context, op string, req protocol.TaskReq, acceptOnly bool) error {
	_, err := s.startTask(ctx, op, req, acceptOnly)
	return err
}

// startTask sends req and waits for its outcome, or only for acceptance when
// acceptOnly is set.
func (s *Session) startTask(ctx context.Context, op string, req protocol.TaskReq, acceptOnly bool) (*pendingTask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req.ID = "K_" + uuid.NewString()
	p := newPendingTask(op, req.ID, acceptOnly)

	s.mu.Lock()
	s.pending[req.ID] = p
	s.mu.Unlock()

	if err := s.send(protocol.ActMsg{Tasks: []protocol.TaskReq{req}}); err != nil {
		s.mu.Lock()
		s.settleLocked(p, err)
		s.mu.Unlock()
		return nil, err
	}

	select {
	case err := <-p.result:
		if err != nil {
			return nil, err
		}
		if acceptOnly {
			go s.cancelOnDone(ctx, p)
		}
		return p, nil
	case <-ctx.Done():
		s.cancel(p)
		return nil, ctx.Err()
	}
}

// cancelOnDone cancels an accepted background task when ctx ends first.
func (s *Session) cancelOnDone(ctx context.Context, p *pendingTask) {
	select {
	case <-ctx.Done():
		s.cancel(p)
	case <-p.finished:
	case <-s.stop:
	}
}

// cancel withdraws p. A task the server has not accepted yet is cancelled
// when its ACTION_RESULT arrives.
func (s *Session) cancel(p *pendingTask) {
	s.mu.Lock()
	if p.settled {
		s.mu.Unlock()
		return
	}
	p.cancelled = true
	id := p.taskID
	if id != "" {
		s.settleLocked(p, context.Canceled)
	}
	s.mu.Unlock()

	if id == "" {
		return
	}
	if err := s.send(protocol.ActMsg{Cancel: []string{id}}); err != nil {
		s.log.Debug("cancel", zap.String("task_id", id), zap.Error(err))
	}
}

func (s *Session) instant(req protocol.InstantReq) error {
	req.ID = "I_" + uuid.NewString()
	return s.send(protocol.ActMsg{Instants: []protocol.InstantReq{req}})
}
