package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"voxelcraft.ai/vcterm/internal/protocol"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	s, err := jsonschema.Compile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// roundTrip marshals a Go message and decodes it generically so the schema
// sees exactly what goes over the wire.
func roundTrip(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestSchemas_ClientMessages(t *testing.T) {
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       "vcterm",
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 64},
		Auth:            &protocol.HelloAuth{Token: "resume_1"},
	}
	if err := compile(t, "hello.schema.json").Validate(roundTrip(t, hello)); err != nil {
		t.Fatalf("hello: %v", err)
	}

	act := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tick:            12,
		AgentID:         "A1",
		Instants: []protocol.InstantReq{
			{ID: "I1", Type: protocol.InstantSay, Channel: "LOCAL", Text: "hi"},
			{ID: "I2", Type: protocol.InstantLook, Yaw: 180, Pitch: -45.5, Force: true},
			{ID: "I3", Type: protocol.InstantControl, Control: "forward", On: true},
		},
		Tasks: []protocol.TaskReq{
			{ID: "K1", Type: protocol.TaskMoveTo, Target: [3]float64{1, 0, 1}, Tolerance: 1.2},
			{ID: "K2", Type: protocol.TaskFollow, TargetID: "A2", Distance: 2.45},
		},
		Cancel: []string{"K0"},
	}
	if err := compile(t, "act.schema.json").Validate(roundTrip(t, act)); err != nil {
		t.Fatalf("act: %v", err)
	}
}

func TestSchemas_RejectsOutOfRangePitch(t *testing.T) {
	act := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		AgentID:         "A1",
		Instants:        []protocol.InstantReq{{ID: "I1", Type: protocol.InstantLook, Pitch: 120}},
	}
	if err := compile(t, "act.schema.json").Validate(roundTrip(t, act)); err == nil {
		t.Fatalf("expected pitch 120 to be rejected")
	}
}

func TestSchemas_ServerSamples(t *testing.T) {
	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"0.9",
	  "agent_id":"A1",
	  "resume_token":"resume_world_1_123",
	  "world_params":{"tick_rate_hz":5,"height":64,"obs_radius":7,"seed":1337}
	}`), &welcome)
	if err := compile(t, "welcome.schema.json").Validate(welcome); err != nil {
		t.Fatalf("welcome: %v", err)
	}

	raw := []byte(`{
	  "type":"OBS",
	  "protocol_version":"0.9",
	  "tick":3,
	  "agent_id":"A1",
	  "self":{"pos":[0.5,64,-2.25],"yaw":90,"pitch":0,"hp":20,"hunger":20,"status":[]},
	  "inventory":[{"slot":0,"item":"PLANK","count":10}],
	  "entities":[{"id":"A2","type":"AGENT","name":"alice","pos":[3,64,1],"height":1.62}],
	  "events":[{"type":"CHAT","from":"A2","text":"hello","channel":"LOCAL"}],
	  "tasks":[]
	}`)
	var obs any
	_ = json.Unmarshal(raw, &obs)
	if err := compile(t, "obs.schema.json").Validate(obs); err != nil {
		t.Fatalf("obs: %v", err)
	}

	var typed protocol.ObsMsg
	if err := json.Unmarshal(raw, &typed); err != nil {
		t.Fatalf("typed obs: %v", err)
	}
	if typed.Self.Pos != [3]float64{0.5, 64, -2.25} || len(typed.Entities) != 1 || typed.Entities[0].Name != "alice" {
		t.Fatalf("unexpected typed obs: %+v", typed)
	}
}
