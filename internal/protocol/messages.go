package protocol

import "encoding/json"

// HELLO (client -> server)
type HelloMsg struct {
	Type              string            `json:"type"`
	ProtocolVersion   string            `json:"protocol_version"`
	SupportedVersions []string          `json:"supported_versions,omitempty"`
	AgentName         string            `json:"agent_name"`
	Capabilities      HelloCapabilities `json:"capabilities"`
	Auth              *HelloAuth        `json:"auth,omitempty"`
	WorldPreference   string            `json:"world_preference,omitempty"`
}

type HelloCapabilities struct {
	DeltaVoxels bool `json:"delta_voxels,omitempty"`
	MaxQueue    int  `json:"max_queue,omitempty"`
}

type HelloAuth struct {
	Token string `json:"token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id,omitempty"`
	AgentID         string      `json:"agent_id"`
	ResumeToken     string      `json:"resume_token"`
	WorldParams     WorldParams `json:"world_params"`
	CurrentWorldID  string      `json:"current_world_id,omitempty"`
}

type WorldParams struct {
	TickRateHz int   `json:"tick_rate_hz"`
	Height     int   `json:"height"`
	ObsRadius  int   `json:"obs_radius"`
	Seed       int64 `json:"seed"`
}

// CATALOG (server -> client): one part of a named catalog. Data is kept raw
// and decoded by catalog name.
type CatalogMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Name            string          `json:"name"`   // e.g. "block_palette"
	Digest          string          `json:"digest"` // sha256 hex
	Part            int             `json:"part"`
	TotalParts      int             `json:"total_parts"`
	Data            json.RawMessage `json:"data,omitempty"`
}
