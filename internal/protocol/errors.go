package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// World routing/state.
	ErrWorldBusy     = "E_WORLD_BUSY"
	ErrWorldNotFound = "E_WORLD_NOT_FOUND"
	ErrWorldDenied   = "E_WORLD_DENIED"

	// Rule/action layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrNoPermission  = "E_NO_PERMISSION"
	ErrNoResource    = "E_NO_RESOURCE"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrRateLimit     = "E_RATE_LIMIT"
	ErrConflict      = "E_CONFLICT"
	ErrBlocked       = "E_BLOCKED"
	ErrStale         = "E_STALE"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]string{
	ErrProtoBadRequest: "malformed request",
	ErrWorldBusy:       "world busy",
	ErrWorldNotFound:   "world not found",
	ErrWorldDenied:     "world denied",
	ErrBadRequest:      "bad request",
	ErrNoPermission:    "no permission",
	ErrNoResource:      "missing resource",
	ErrInvalidTarget:   "invalid target",
	ErrRateLimit:       "rate limited",
	ErrConflict:        "conflicting action",
	ErrBlocked:         "blocked",
	ErrStale:           "stale request",
	ErrInternal:        "internal server error",
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// DescribeCode returns a short operator-facing text for a server error code.
// Unknown codes are returned verbatim.
func DescribeCode(code string) string {
	if d, ok := knownCodes[code]; ok {
		return d
	}
	return code
}
