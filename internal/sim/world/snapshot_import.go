package world

import (
	"fmt"
	"time"

	"blec.dev/internal/persistence/snapshot"
	"blec.dev/internal/sim/world/block"
	"blec.dev/internal/sim/world/logic/rates"
)

// ImportSnapshot replaces the chunks, clock and sessions with the snapshot's.
// Restored sessions have no connection until DropSessions or a replay removes
// them. The world is left untouched when the snapshot is rejected. The tick
// rate stays the configured one.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version: %d", s.Header.Version)
	}
	if s.AccumulatorNS < 0 {
		return fmt.Errorf("negative accumulator: %d", s.AccumulatorNS)
	}

	chunks := make(map[ChunkKey]*Chunk, len(s.Chunks))
	for i, c := range s.Chunks {
		k := ChunkKey{CX: c.CX, CY: c.CY, CZ: c.CZ}
		if _, dup := chunks[k]; dup {
			return fmt.Errorf("chunk %d: duplicate key %d,%d,%d", i, c.CX, c.CY, c.CZ)
		}
		if len(c.Blocks) != ChunkVolume {
			return fmt.Errorf("chunk %d,%d,%d: %d blocks, want %d", c.CX, c.CY, c.CZ, len(c.Blocks), ChunkVolume)
		}
		ch := &Chunk{CX: c.CX, CY: c.CY, CZ: c.CZ}
		for j, b := range c.Blocks {
			t := block.Type(b.Type)
			if !t.Valid() {
				return fmt.Errorf("chunk %d,%d,%d: block %d: unknown type %d", c.CX, c.CY, c.CZ, j, b.Type)
			}
			ch.Blocks[j] = block.Block{
				Type:           t,
				Powered:        b.Powered,
				PowerLevel:     b.PowerLevel,
				Rotation:       b.Rotation,
				Active:         b.Active,
				TicksRemaining: b.TicksRemaining,
				DelayTicks:     b.DelayTicks,
			}
		}
		chunks[k] = ch
	}

	sessions := make(map[string]*session, len(s.Sessions))
	for i, ss := range s.Sessions {
		if ss.ID == "" {
			return fmt.Errorf("session %d: empty id", i)
		}
		if _, dup := sessions[ss.ID]; dup {
			return fmt.Errorf("session %d: duplicate id %q", i, ss.ID)
		}
		sessions[ss.ID] = w.importSession(ss)
	}

	interval := w.cfg.TickInterval()
	w.chunks = chunks
	w.sessions = sessions
	w.recJoins = nil
	w.recLeaves = nil
	w.recActions = nil
	w.tick.Store(s.Header.Tick)
	w.accumulator = time.Duration(s.AccumulatorNS) % interval
	w.changed = map[Vec3i]struct{}{}
	return nil
}

func (w *World) importSession(ss snapshot.SessionV1) *session {
	s := newSession(ss.ID, ss.Name, nil, w.interactConfig())
	hotbar := make([]block.Type, 0, len(ss.Hotbar))
	for _, t := range ss.Hotbar {
		hotbar = append(hotbar, block.Type(t))
	}
	s.selector.Restore(hotbar, ss.Slot, block.Type(ss.Selected), ss.MenuVisible)
	s.syncSelection()
	s.ia.RestoreCooldowns(ss.LastPlace, ss.LastDestroy)
	s.rate = rates.Window{Start: ss.RateStart, Count: ss.RateCount}
	if ss.View != nil {
		v := Vec3iFromArray(*ss.View)
		s.view = &v
	}
	return s
}
