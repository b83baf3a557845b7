package protocol

import "encoding/json"

const Version = "0.9"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeCatalog = "CATALOG"
	TypeObs     = "OBS"
	TypeAct     = "ACT"
)

var supportedVersions = []string{"0.9"}

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// IsSupportedVersion reports whether a server message version can be decoded
// by this client. An empty version is accepted for servers predating the field.
func IsSupportedVersion(v string) bool {
	if v == "" {
		return true
	}
	for _, s := range supportedVersions {
		if s == v {
			return true
		}
	}
	return false
}
