// Package wsclient implements world.World over a voxelcraft websocket session.
package wsclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"voxelcraft.ai/vcterm/internal/protocol"
	"voxelcraft.ai/vcterm/internal/world"
)

type Config struct {
	URL string
	// Name is sent as agent_name and keys the state file.
	Name string
	// Token authenticates a fresh join when no resume token is stored.
	Token     string
	StateFile string
	Logger    *zap.Logger
}

type Session struct {
	cfg Config
	log *zap.Logger

	mu sync.RWMutex

	startOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}

	conn    *websocket.Conn
	writeMu sync.Mutex

	connected  bool
	loggedIn   bool
	awaitSpawn bool
	spawned    bool
	quitReason string

	agentID     string
	resumeToken string
	tick        uint64

	self      world.Self
	entities  []world.Entity
	players   []world.Player
	inventory []world.Item
	window    *protocol.WindowObs
	controls  map[world.Control]bool

	palette []string
	partial []string
	voxels  voxelCube

	pending map[string]*pendingTask
	byTask  map[string]*pendingTask

	events chan world.Event
}

var _ world.World = (*Session)(nil)

func New(cfg Config) *Session {
	if cfg.Name == "" {
		cfg.Name = "vcterm"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		cfg:      cfg,
		log:      logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		controls: map[world.Control]bool{},
		pending:  map[string]*pendingTask{},
		byTask:   map[string]*pendingTask{},
		events:   make(chan world.Event, 256),
	}
	s.self = world.Self{Name: cfg.Name}

	st, err := loadStateFile(cfg.StateFile)
	if err != nil {
		logger.Warn("ignoring state file", zap.String("path", cfg.StateFile), zap.Error(err))
	}
	if ps, ok := st[cfg.Name]; ok && ps.ResumeToken != "" {
		s.resumeToken = ps.ResumeToken
		s.agentID = ps.AgentID
		if t := ps.connectedTime(); !t.IsZero() {
			logger.Info("resuming session", zap.String("agent_id", ps.AgentID), zap.String("last_connected", humanize.Time(t)))
		}
	}
	return s
}

// Start dials in the background and keeps reconnecting until Close.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		go s.run()
	})
}

// Close stops the session, emits end and closes Events.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		// A session that never started has nothing to wait for.
		s.startOnce.Do(func() { close(s.done) })
		close(s.stop)
		s.Disconnect()
		<-s.done

		s.mu.Lock()
		reason := s.quitReason
		s.failAllLocked(world.ErrNotConnected)
		s.mu.Unlock()
		if reason == "" {
			reason = "closed"
		}
		s.emit(world.Event{Kind: world.EventEnd, Text: reason})
		close(s.events)
	})
}

// Disconnect drops the current connection. The run loop dials again.
func (s *Session) Disconnect() {
	s.mu.Lock()
	c := s.conn
	s.conn = nil
	s.connected = false
	s.mu.Unlock()
	if c != nil {
		_ = c.Close()
	}
}

func (s *Session) Events() <-chan world.Event { return s.events }

func (s *Session) Reconnect() error {
	s.log.Info("reconnect requested")
	s.Disconnect()
	return nil
}

func (s *Session) Quit(reason string) error {
	s.mu.Lock()
	s.quitReason = reason
	s.mu.Unlock()
	s.Close()
	return nil
}

func (s *Session) emit(ev world.Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case s.events <- ev:
	default:
		s.log.Warn("event dropped", zap.String("kind", string(ev.Kind)))
	}
}

func (s *Session) run() {
	defer close(s.done)

	backoff := 200 * time.Millisecond
	for {
		select {
		case <-s.stop:
			s.Disconnect()
			return
		default:
		}

		welcomed, err := s.connectAndReadLoop()
		if err == nil {
			// Clean exit.
			return
		}
		s.lost(welcomed, err)
		if welcomed {
			backoff = 200 * time.Millisecond
		}
		select {
		case <-s.stop:
			s.Disconnect()
			return
		case <-time.After(backoff):
		}
		if backoff < 5*time.Second {
			backoff *= 2
			if backoff > 5*time.Second {
				backoff = 5 * time.Second
			}
		}
	}
}

func (s *Session) lost(welcomed bool, err error) {
	s.mu.Lock()
	s.conn = nil
	s.connected = false
	s.spawned = false
	s.awaitSpawn = false
	s.failAllLocked(world.ErrNotConnected)
	s.mu.Unlock()

	s.log.Warn("connection lost", zap.String("url", s.cfg.URL), zap.Error(err))
	if welcomed {
		s.emit(world.Event{Kind: world.EventEnd, Text: err.Error()})
	}
}

func (s *Session) connectAndReadLoop() (welcomed bool, err error) {
	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := d.Dial(s.cfg.URL, http.Header{})
	if err != nil {
		return false, err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	hello := protocol.HelloMsg{
		Type:              protocol.TypeHello,
		ProtocolVersion:   protocol.Version,
		SupportedVersions: []string{protocol.Version},
		AgentName:         s.cfg.Name,
		Capabilities:      protocol.HelloCapabilities{DeltaVoxels: true, MaxQueue: 64},
	}
	s.mu.RLock()
	token := strings.TrimSpace(s.resumeToken)
	s.mu.RUnlock()
	if token == "" {
		token = strings.TrimSpace(s.cfg.Token)
	}
	if token != "" {
		hello.Auth = &protocol.HelloAuth{Token: token}
	}

	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return false, err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.log.Debug("hello sent", zap.String("url", s.cfg.URL), zap.Bool("resume", token != ""))

	for {
		select {
		case <-s.stop:
			_ = conn.Close()
			return welcomed, nil
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			select {
			case <-s.stop:
				return welcomed, nil
			default:
			}
			return welcomed, err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			if !protocol.IsSupportedVersion(w.ProtocolVersion) {
				s.log.Warn("unsupported protocol version", zap.String("version", w.ProtocolVersion))
				continue
			}
			welcomed = true
			s.onWelcome(w)

		case protocol.TypeCatalog:
			var c protocol.CatalogMsg
			if err := json.Unmarshal(msg, &c); err != nil {
				continue
			}
			s.log.Debug("catalog", zap.String("name", c.Name), zap.String("digest", c.Digest), zap.Int("part", c.Part))
			if c.Name == protocol.CatalogBlockPalette {
				s.onPalette(c)
			}

		case protocol.TypeObs:
			var o protocol.ObsMsg
			if err := json.Unmarshal(msg, &o); err != nil {
				s.log.Debug("bad obs", zap.Error(err))
				continue
			}
			s.onObs(o)
		}
	}
}

func (s *Session) onWelcome(w protocol.WelcomeMsg) {
	now := time.Now()
	s.mu.Lock()
	s.agentID = w.AgentID
	s.resumeToken = w.ResumeToken
	s.self.ID = w.AgentID
	s.connected = true
	s.awaitSpawn = true
	s.controls = map[world.Control]bool{}
	s.window = nil
	s.voxels = voxelCube{}
	first := !s.loggedIn
	s.loggedIn = true
	s.mu.Unlock()

	s.log.Info("welcome", zap.String("agent_id", w.AgentID), zap.String("world", w.CurrentWorldID))
	if err := saveState(s.cfg.StateFile, s.cfg.Name, persistedSession{
		ResumeToken:     w.ResumeToken,
		AgentID:         w.AgentID,
		LastConnectedAt: now.UTC().Format(time.RFC3339Nano),
	}); err != nil {
		s.log.Warn("save state", zap.String("path", s.cfg.StateFile), zap.Error(err))
	}
	if first {
		s.emit(world.Event{Kind: world.EventLogin, At: now})
	}
}

func (s *Session) onObs(o protocol.ObsMsg) {
	var (
		out     []world.Event
		cancels []string
	)
	s.mu.Lock()
	s.tick = o.Tick
	if o.AgentID != "" {
		s.agentID = o.AgentID
		s.self.ID = o.AgentID
	}
	s.self.Pos = world.Vec3{X: o.Self.Pos[0], Y: o.Self.Pos[1], Z: o.Self.Pos[2]}
	s.self.Yaw = o.Self.Yaw
	s.self.Pitch = o.Self.Pitch
	s.self.HP = o.Self.HP
	s.self.Hunger = o.Self.Hunger
	s.self.Slot = o.Self.Slot

	s.entities = s.entities[:0]
	for _, e := range o.Entities {
		s.entities = append(s.entities, world.Entity{
			ID:     e.ID,
			Type:   e.Type,
			Name:   e.Name,
			Pos:    world.Vec3{X: e.Pos[0], Y: e.Pos[1], Z: e.Pos[2]},
			Height: e.Height,
			Tags:   append([]string(nil), e.Tags...),
			Item:   e.Item,
			Count:  e.Count,
		})
	}
	if o.Players != nil {
		s.players = s.players[:0]
		for _, p := range o.Players {
			s.players = append(s.players, world.Player{Name: p.Name, EntityID: p.EntityID, PingMS: p.PingMS})
		}
	}
	s.inventory = convertItems(o.Inventory)
	s.window = o.Window
	s.applyVoxelsLocked(o.Voxels)

	if s.awaitSpawn {
		s.awaitSpawn = false
		s.spawned = true
		out = append(out, world.Event{Kind: world.EventSpawn})
	}
	for _, e := range o.Events {
		ev, cancel, ok := s.onEventLocked(e)
		if cancel != "" {
			cancels = append(cancels, cancel)
		}
		if ok {
			out = append(out, ev)
		}
	}
	s.mu.Unlock()

	if len(cancels) > 0 {
		if err := s.send(protocol.ActMsg{Cancel: cancels}); err != nil {
			s.log.Debug("cancel", zap.Strings("tasks", cancels), zap.Error(err))
		}
	}
	for _, ev := range out {
		s.emit(ev)
	}
}

// onEventLocked settles pending tasks and translates operator-visible events.
func (s *Session) onEventLocked(e protocol.Event) (ev world.Event, cancel string, ok bool) {
	switch str(e, "type") {
	case protocol.EventActionResult:
		ref := str(e, "ref")
		p := s.pending[ref]
		accepted, _ := e["ok"].(bool)
		if p == nil {
			if !accepted {
				s.log.Warn("instant rejected", zap.String("ref", ref), zap.String("code", str(e, "code")), zap.String("message", str(e, "message")))
			}
			return ev, "", false
		}
		delete(s.pending, ref)
		if !accepted {
			s.settleLocked(p, actionError(p.op, e))
			return ev, "", false
		}
		p.taskID = str(e, "task_id")
		if p.taskID == "" {
			s.settleLocked(p, nil)
			return ev, "", false
		}
		s.byTask[p.taskID] = p
		if p.cancelled {
			s.settleLocked(p, nil)
			return ev, p.taskID, false
		}
		if p.acceptOnly {
			p.reply(nil)
		}
	case protocol.EventTaskDone:
		if p := s.byTask[str(e, "task_id")]; p != nil {
			s.settleLocked(p, nil)
		}
	case protocol.EventTaskFail:
		if p := s.byTask[str(e, "task_id")]; p != nil {
			s.settleLocked(p, actionError(p.op, e))
		}
	case protocol.EventChat:
		return world.Event{Kind: world.EventMessage, From: str(e, "from"), Text: str(e, "text")}, "", true
	case protocol.EventDeath:
		return world.Event{Kind: world.EventDeath, Text: str(e, "message")}, "", true
	case protocol.EventKicked:
		reason := str(e, "reason")
		if reason == "" {
			reason = str(e, "message")
		}
		return world.Event{Kind: world.EventKicked, Text: reason}, "", true
	case protocol.EventWindowOpen:
		return world.Event{Kind: world.EventWindowOpen, Text: str(e, "title")}, "", true
	}
	return ev, "", false
}

func actionError(op string, e protocol.Event) error {
	code := str(e, "code")
	msg := str(e, "message")
	if msg == "" {
		msg = protocol.DescribeCode(code)
	}
	return &world.ActionError{Op: op, Code: code, Message: msg}
}

func str(e protocol.Event, key string) string {
	switch v := e[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprint(v)
	}
	return ""
}

func convertItems(in []protocol.ItemStack) []world.Item {
	out := make([]world.Item, 0, len(in))
	for _, it := range in {
		out = append(out, world.Item{Slot: it.Slot, Name: it.Item, Count: it.Count})
	}
	return out
}

// send fills the envelope and writes one ACT.
func (s *Session) send(act protocol.ActMsg) error {
	act.Type = protocol.TypeAct
	act.ProtocolVersion = protocol.Version

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.RLock()
	conn := s.conn
	connected := s.connected
	act.Tick = s.tick
	act.AgentID = s.agentID
	s.mu.RUnlock()
	if conn == nil || !connected {
		return world.ErrNotConnected
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(act)
}
