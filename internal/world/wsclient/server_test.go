package wsclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voxelcraft.ai/vcterm/internal/protocol"
)

// fakeServer speaks the server side of the handshake and hands every ACT to
// the test.
type fakeServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu     sync.Mutex
	hellos []protocol.HelloMsg
	out    chan []byte
	tick   uint64
	obs    protocol.ObsMsg

	acts chan protocol.ActMsg
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		acts:     make(chan protocol.ActMsg, 64),
		obs: protocol.ObsMsg{
			Self: protocol.SelfObs{Pos: [3]float64{1, 2, 3}, HP: 20},
			Inventory: []protocol.ItemStack{
				{Slot: 0, Item: "STONE", Count: 12},
			},
			Entities: []protocol.EntityObs{
				{ID: "A1", Type: "AGENT", Name: "me", Pos: [3]float64{1, 2, 3}},
				{ID: "A2", Type: "AGENT", Name: "bob", Pos: [3]float64{4, 2, 3}},
				{ID: "M1", Type: "MOB", Name: "zombie", Pos: [3]float64{2, 2, 3}},
			},
			Players: []protocol.PlayerObs{{Name: "bob", EntityID: "A2", PingMS: 40}},
		},
	}
	fs.srv = httptest.NewServer(http.HandlerFunc(fs.handle))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) URL() string {
	return "ws" + strings.TrimPrefix(fs.srv.URL, "http")
}

func (fs *fakeServer) handle(rw http.ResponseWriter, r *http.Request) {
	conn, err := fs.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	_, msg, err := conn.ReadMessage()
	if err != nil {
		return
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil || hello.Type != protocol.TypeHello {
		return
	}

	out := make(chan []byte, 64)
	fs.mu.Lock()
	fs.hellos = append(fs.hellos, hello)
	fs.out = out
	fs.mu.Unlock()

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case b := <-out:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}
	}()

	fs.write(protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		AgentID:         "A1",
		ResumeToken:     "R1",
	})
	fs.write(protocol.CatalogMsg{Type: protocol.TypeCatalog, ProtocolVersion: protocol.Version, Name: "items", Digest: "d"})
	fs.write(protocol.CatalogMsg{Type: protocol.TypeCatalog, ProtocolVersion: protocol.Version, Name: protocol.CatalogBlockPalette, Digest: "p", Part: 1, TotalParts: 2, Data: json.RawMessage(`["AIR","STONE"]`)})
	fs.write(protocol.CatalogMsg{Type: protocol.TypeCatalog, ProtocolVersion: protocol.Version, Name: protocol.CatalogBlockPalette, Digest: "p", Part: 2, TotalParts: 2, Data: json.RawMessage(`["DIRT"]`)})
	fs.Push()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var act protocol.ActMsg
		if err := json.Unmarshal(msg, &act); err != nil || act.Type != protocol.TypeAct {
			continue
		}
		fs.acts <- act
	}
}

func (fs *fakeServer) write(v any) {
	b, _ := json.Marshal(v)
	fs.mu.Lock()
	out := fs.out
	fs.mu.Unlock()
	if out != nil {
		out <- b
	}
}

// Push sends an OBS carrying events.
func (fs *fakeServer) Push(events ...protocol.Event) {
	fs.mu.Lock()
	fs.tick++
	o := fs.obs
	o.Type = protocol.TypeObs
	o.ProtocolVersion = protocol.Version
	o.Tick = fs.tick
	o.AgentID = "A1"
	o.Events = events
	fs.mu.Unlock()
	fs.write(o)
}

// SetVoxels sets the cube carried by every later OBS.
func (fs *fakeServer) SetVoxels(v protocol.VoxelsObs) {
	fs.mu.Lock()
	fs.obs.Voxels = v
	fs.mu.Unlock()
}

func (fs *fakeServer) Hellos() []protocol.HelloMsg {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]protocol.HelloMsg(nil), fs.hellos...)
}

func (fs *fakeServer) nextAct(t *testing.T) protocol.ActMsg {
	t.Helper()
	select {
	case a := <-fs.acts:
		return a
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for ACT")
	}
	return protocol.ActMsg{}
}
