package world

import (
	"blec.dev/internal/protocol"
	"blec.dev/internal/sim/world/interact"
	"blec.dev/internal/sim/world/logic/rates"
)

type Vec3i struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func Vec3iFromArray(a [3]int) Vec3i { return Vec3i{X: a[0], Y: a[1], Z: a[2]} }

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

type ActionEnvelope struct {
	SessionID string
	Act       protocol.ActMsg
}

type RecordedJoin struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
}

type RecordedAction struct {
	SessionID string          `json:"session_id"`
	Action    protocol.Action `json:"action"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick          uint64           `json:"tick"`
	Joins         []RecordedJoin   `json:"joins,omitempty"`
	Leaves        []string         `json:"leaves,omitempty"`
	Actions       []RecordedAction `json:"actions,omitempty"`
	Powered       int              `json:"powered"`
	ActiveSources int              `json:"active_sources"`
	Digest        string           `json:"digest"`
}

type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	Actor  string `json:"actor"`
	Action string `json:"action"` // SET_BLOCK, USE, SET_DELAY
	Pos    [3]int `json:"pos"`
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

type session struct {
	id   string
	name string
	out  chan []byte

	selector *interact.Selector
	ia       *interact.Interaction

	view *Vec3i
	rate rates.Window

	// Positions and events not yet delivered; kept until a send succeeds.
	pending map[Vec3i]struct{}
	events  []protocol.Event

	// Whole chunks delivered in the current view, and those still owed.
	sent       map[ChunkKey]struct{}
	chunkQueue []ChunkKey
}
