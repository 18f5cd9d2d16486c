package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	Tick            uint64         `json:"tick"`
	WorldParams     WorldParams    `json:"world_params"`
	Palette         []PaletteEntry `json:"palette"`
	Hotbar          []string       `json:"hotbar"`
	Selected        string         `json:"selected"`
}

type WorldParams struct {
	WorldID            string     `json:"world_id"`
	TickRateHz         int        `json:"tick_rate_hz"`
	ChunkSize          int        `json:"chunk_size"`
	LoadDistanceChunks int        `json:"load_distance_chunks"`
	SpawnPoint         [3]float32 `json:"spawn_point"`
	ButtonPulseTicks   int        `json:"button_pulse_ticks"`
	MaxReach           float32    `json:"max_reach"`
}

type PaletteEntry struct {
	ID           int        `json:"id"`
	Name         string     `json:"name"`
	DisplayName  string     `json:"display_name"`
	Description  string     `json:"description"`
	Solid        bool       `json:"solid"`
	Color        [3]float32 `json:"color"`
	PoweredColor [3]float32 `json:"powered_color"`
}

// ACT (client -> server)
type ActMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Actions         []Action `json:"actions"`
}

// Action kinds.
const (
	ActionPlace      = "PLACE"
	ActionDestroy    = "DESTROY"
	ActionUse        = "USE"
	ActionSetDelay   = "SET_DELAY"
	ActionClick      = "CLICK"
	ActionSelect     = "SELECT"
	ActionSelectType = "SELECT_TYPE"
	ActionCycle      = "CYCLE"
	ActionView       = "VIEW"
)

// Click buttons.
const (
	ButtonLeft  = "LEFT"
	ButtonRight = "RIGHT"
)

type Action struct {
	ID     string     `json:"id"`
	Type   string     `json:"type"`
	Pos    [3]int     `json:"pos,omitempty"`
	Block  string     `json:"block,omitempty"`
	Slot   int        `json:"slot,omitempty"`
	Delay  int        `json:"delay,omitempty"`
	Step   int        `json:"step,omitempty"`
	Origin [3]float32 `json:"origin,omitempty"`
	Dir    [3]float32 `json:"dir,omitempty"`
	Button string     `json:"button,omitempty"`
}

// TICK (server -> client)
type TickMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	Tick            uint64        `json:"tick"`
	Changes         []BlockChange `json:"changes"`
	Chunks          []ChunkData   `json:"chunks,omitempty"`
	Events          []Event       `json:"events,omitempty"`
}

// ChunkData carries a whole chunk that entered the session's view. States is
// the RLE of every packed block state in x-fastest, then y, then z order.
type ChunkData struct {
	Pos    [3]int `json:"pos"`
	States string `json:"states"`
}

type BlockChange struct {
	Pos            [3]int `json:"pos"`
	Block          string `json:"block"`
	Powered        bool   `json:"powered"`
	PowerLevel     uint8  `json:"power_level"`
	Active         bool   `json:"active"`
	TicksRemaining uint8  `json:"ticks_remaining,omitempty"`
	DelayTicks     uint8  `json:"delay_ticks,omitempty"`
}

// Event is a loosely typed notification attached to a TICK.
type Event map[string]any

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
