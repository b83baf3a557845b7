package protocol

type ObsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	AgentID         string `json:"agent_id"`

	Self      SelfObs     `json:"self"`
	Inventory []ItemStack `json:"inventory"`
	Window    *WindowObs  `json:"window,omitempty"`
	Players   []PlayerObs `json:"players,omitempty"`

	Voxels   VoxelsObs   `json:"voxels"`
	Entities []EntityObs `json:"entities"`
	Events   []Event     `json:"events"`
	Tasks    []TaskObs   `json:"tasks"`
}

type SelfObs struct {
	Pos    [3]float64 `json:"pos"`
	Yaw    float64    `json:"yaw"`
	Pitch  float64    `json:"pitch"`
	HP     int        `json:"hp"`
	Hunger int        `json:"hunger"`
	Slot   int        `json:"slot"`
	Status []string   `json:"status"`
}

type ItemStack struct {
	Slot  int    `json:"slot"`
	Item  string `json:"item"`
	Count int    `json:"count"`
}

// WindowObs is the currently open container window, if any.
type WindowObs struct {
	ID    int         `json:"id"`
	Title string      `json:"title"`
	Slots []ItemStack `json:"slots"`
}

type PlayerObs struct {
	Name     string `json:"name"`
	EntityID string `json:"entity_id,omitempty"`
	PingMS   int    `json:"ping_ms"`
}

type EntityObs struct {
	ID     string     `json:"id"`
	Type   string     `json:"type"` // "AGENT", "MOB", "ITEM", "CHEST", ...
	Name   string     `json:"name,omitempty"`
	Pos    [3]float64 `json:"pos"`
	Height float64    `json:"height,omitempty"`
	Tags   []string   `json:"tags,omitempty"`

	// Optional payload for specialized entity types (e.g. "ITEM").
	Item  string `json:"item,omitempty"`
	Count int    `json:"count,omitempty"`
}

type Event map[string]interface{}

// Event types the client reacts to.
const (
	EventActionResult = "ACTION_RESULT"
	EventTaskDone     = "TASK_DONE"
	EventTaskFail     = "TASK_FAIL"
	EventChat         = "CHAT"
	EventDeath        = "DEATH"
	EventKicked       = "KICKED"
	EventWindowOpen   = "WINDOW_OPEN"
)

type TaskObs struct {
	TaskID   string     `json:"task_id"`
	Kind     string     `json:"kind"`
	Progress float64    `json:"progress"`
	Target   [3]float64 `json:"target,omitempty"`
}

// ACT (client -> server)
type ActMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	AgentID         string       `json:"agent_id"`
	Instants        []InstantReq `json:"instants,omitempty"`
	Tasks           []TaskReq    `json:"tasks,omitempty"`
	Cancel          []string     `json:"cancel,omitempty"`
}

// Instant types.
const (
	InstantSay         = "SAY"
	InstantLook        = "LOOK"
	InstantControl     = "CONTROL"
	InstantAttack      = "ATTACK"
	InstantClickSlot   = "CLICK_SLOT"
	InstantCloseWindow = "CLOSE_WINDOW"
	InstantSelectSlot  = "SELECT_SLOT"
	InstantUseItem     = "USE_ITEM"
	InstantStopDig     = "STOP_DIG"
)

type InstantReq struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	Channel string `json:"channel,omitempty"`
	Text    string `json:"text,omitempty"`

	TargetID string `json:"target_id,omitempty"`

	Yaw   float64 `json:"yaw,omitempty"`
	Pitch float64 `json:"pitch,omitempty"`
	Force bool    `json:"force,omitempty"`

	Control string `json:"control,omitempty"`
	On      bool   `json:"on,omitempty"`

	Window     int    `json:"window,omitempty"`
	Slot       int    `json:"slot,omitempty"`
	ClickMode  string `json:"click_mode,omitempty"` // "CLICK", "SHIFT", "DROP", "DROP_ALL"
	DurationMS int    `json:"duration_ms,omitempty"`
}

// Task types.
const (
	TaskMoveTo = "MOVE_TO"
	TaskFollow = "FOLLOW"
	TaskMine   = "MINE"
	TaskPlace  = "PLACE"
	TaskOpen   = "OPEN"
)

type TaskReq struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	Target    [3]float64 `json:"target,omitempty"`
	Tolerance float64    `json:"tolerance,omitempty"`
	Distance  float64    `json:"distance,omitempty"`
	Pathfind  bool       `json:"pathfind,omitempty"`

	TargetID string `json:"target_id,omitempty"`
	BlockPos [3]int `json:"block_pos,omitempty"`
	ItemID   string `json:"item_id,omitempty"`
}
