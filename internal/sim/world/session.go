package world

import (
	"sort"

	"blec.dev/internal/protocol"
	"blec.dev/internal/sim/world/block"
	"blec.dev/internal/sim/world/interact"
)

// maxPendingEvents bounds the events kept for a session that is not reading.
const maxPendingEvents = 1024

func (w *World) interactConfig() interact.Config {
	return interact.Config{
		MaxReach:         w.cfg.MaxReach,
		PlaceCooldown:    w.cfg.PlaceCooldown,
		DestroyCooldown:  w.cfg.DestroyCooldown,
		ButtonPulseTicks: uint8(w.cfg.ButtonPulseTicks),
		RepeaterDelay:    uint8(w.cfg.RepeaterDelayTicks),
		MaxRepeaterDelay: uint8(w.cfg.MaxRepeaterDelayTicks),
	}
}

func (w *World) handleJoin(req JoinRequest) JoinResponse {
	name := req.Name
	if name == "" {
		name = "player"
	}
	s := w.addSession(w.newID(), name, req.Out)
	return JoinResponse{Welcome: w.welcome(s)}
}

// addSession registers a session under id and records the join.
func (w *World) addSession(id, name string, out chan []byte) *session {
	s := newSession(id, name, out, w.interactConfig())
	w.sessions[id] = s
	w.recJoins = append(w.recJoins, RecordedJoin{SessionID: id, Name: name})
	return s
}

func newSession(id, name string, out chan []byte, cfg interact.Config) *session {
	s := &session{
		id:       id,
		name:     name,
		out:      out,
		selector: interact.NewSelector(),
		ia:       interact.New(cfg),
		pending:  map[Vec3i]struct{}{},
	}
	s.syncSelection()
	return s
}

func (w *World) handleLeave(id string) {
	if _, ok := w.sessions[id]; !ok {
		return
	}
	delete(w.sessions, id)
	w.recLeaves = append(w.recLeaves, id)
}

// DropSessions removes every session and records a leave for each. Sessions
// restored from a snapshot have no connection behind them.
func (w *World) DropSessions() {
	for _, id := range w.sessionIDs() {
		w.handleLeave(id)
	}
}

// SessionCount reports connected sessions. World loop goroutine only.
func (w *World) SessionCount() int { return len(w.sessions) }

func (w *World) sessionIDs() []string {
	ids := make([]string, 0, len(w.sessions))
	for id := range w.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (w *World) welcome(s *session) protocol.WelcomeMsg {
	spawn := w.SpawnPoint()
	hotbar := make([]string, 0, interact.HotbarSize)
	for _, t := range s.selector.Hotbar() {
		hotbar = append(hotbar, t.String())
	}
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       s.id,
		Tick:            w.tick.Load(),
		WorldParams: protocol.WorldParams{
			WorldID:            w.cfg.ID,
			TickRateHz:         w.cfg.TickRateHz,
			ChunkSize:          ChunkSize,
			LoadDistanceChunks: w.cfg.LoadDistanceChunks,
			SpawnPoint:         [3]float32{spawn.X(), spawn.Y(), spawn.Z()},
			ButtonPulseTicks:   w.cfg.ButtonPulseTicks,
			MaxReach:           w.cfg.MaxReach,
		},
		Palette:  Palette(),
		Hotbar:   hotbar,
		Selected: s.selector.Selected().String(),
	}
}

// Palette lists every block type with its display data.
func Palette() []protocol.PaletteEntry {
	types := block.Types()
	out := make([]protocol.PaletteEntry, 0, len(types))
	for _, t := range types {
		info, ok := block.GetBlockInfo(t)
		if !ok {
			continue
		}
		c := block.GetBlockColor(t, false)
		pc := block.GetBlockColor(t, true)
		out = append(out, protocol.PaletteEntry{
			ID:           int(t),
			Name:         t.String(),
			DisplayName:  info.Name,
			Description:  info.Description,
			Solid:        info.Solid,
			Color:        [3]float32{c.X(), c.Y(), c.Z()},
			PoweredColor: [3]float32{pc.X(), pc.Y(), pc.Z()},
		})
	}
	return out
}

func (s *session) addEvent(e protocol.Event) {
	if len(s.events) >= maxPendingEvents {
		s.events = s.events[1:]
	}
	s.events = append(s.events, e)
}

// syncSelection copies the selector's choice into the interaction state.
func (s *session) syncSelection() {
	s.ia.SetSelectedBlock(s.selector.Selected())
}
