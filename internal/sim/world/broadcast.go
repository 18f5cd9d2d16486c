package world

import (
	"encoding/json"
	"sort"

	"blec.dev/internal/protocol"
	"blec.dev/internal/sim/world/logic/mathx"
)

// broadcast fans the changed set out to every session and sends each session
// whatever it has pending. A session whose outbox is full keeps its pending
// state and gets it, merged with later changes, on a later frame.
func (w *World) broadcast() {
	if len(w.changed) > 0 {
		for _, s := range w.sessions {
			if s.out == nil {
				continue
			}
			for p := range w.changed {
				s.pending[p] = struct{}{}
			}
		}
		w.changed = map[Vec3i]struct{}{}
	}

	tick := w.tick.Load()
	for _, id := range w.sessionIDs() {
		s := w.sessions[id]
		if s.out == nil || (len(s.pending) == 0 && len(s.events) == 0 && len(s.chunkQueue) == 0) {
			continue
		}
		msg := w.buildTick(s, tick)
		var used int
		msg.Chunks, used = w.nextChunks(s)
		b, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		select {
		case s.out <- b:
			s.pending = map[Vec3i]struct{}{}
			s.events = nil
			s.commitChunks(used)
		default:
		}
	}
}

// buildTick reads the current state of every pending position the session
// can see. Positions outside the view or in unloaded chunks are left out.
func (w *World) buildTick(s *session, tick uint64) protocol.TickMsg {
	positions := make([]Vec3i, 0, len(s.pending))
	for p := range s.pending {
		if !w.inView(s, p) {
			continue
		}
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool {
		a, b := positions[i], positions[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})

	changes := make([]protocol.BlockChange, 0, len(positions))
	for _, p := range positions {
		b := w.GetBlock(p.X, p.Y, p.Z)
		if b == nil {
			continue
		}
		changes = append(changes, protocol.BlockChange{
			Pos:            p.ToArray(),
			Block:          b.Type.String(),
			Powered:        b.Powered,
			PowerLevel:     b.PowerLevel,
			Active:         b.Active,
			TicksRemaining: b.TicksRemaining,
			DelayTicks:     b.DelayTicks,
		})
	}
	return protocol.TickMsg{
		Type:            protocol.TypeTick,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Changes:         changes,
		Events:          s.events,
	}
}

// inView reports whether p is within load distance of the session's view
// centre. Sessions without a view see everything.
func (w *World) inView(s *session, p Vec3i) bool {
	if s.view == nil {
		return true
	}
	pk := chunkKeyOf(p.X, p.Y, p.Z)
	vk := chunkKeyOf(s.view.X, s.view.Y, s.view.Z)
	d := w.cfg.LoadDistanceChunks
	return mathx.DistSq3(pk.CX, pk.CY, pk.CZ, vk.CX, vk.CY, vk.CZ) <= d*d
}
