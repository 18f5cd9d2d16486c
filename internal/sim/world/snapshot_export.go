package world

import (
	"blec.dev/internal/persistence/snapshot"
	"blec.dev/internal/sim/world/block"
	"blec.dev/internal/sim/world/interact"
)

// ExportSnapshot captures the clock, every loaded chunk and the sessions'
// selection and cooldown state. World loop goroutine only.
func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	keys := w.LoadedChunkKeys()
	chunks := make([]snapshot.ChunkV1, 0, len(keys))
	for _, k := range keys {
		ch := w.chunks[k]
		blocks := make([]snapshot.BlockV1, ChunkVolume)
		for i := range ch.Blocks {
			blocks[i] = exportBlock(ch.Blocks[i])
		}
		chunks = append(chunks, snapshot.ChunkV1{CX: k.CX, CY: k.CY, CZ: k.CZ, Blocks: blocks})
	}
	return snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    w.tick.Load(),
		},
		TickRate:          w.cfg.TickRateHz,
		AccumulatorNS:     int64(w.accumulator),
		MaxTicksPerUpdate: w.cfg.MaxTicksPerUpdate,
		Chunks:            chunks,
		Sessions:          w.exportSessions(),
	}
}

func (w *World) exportSessions() []snapshot.SessionV1 {
	ids := w.sessionIDs()
	if len(ids) == 0 {
		return nil
	}
	out := make([]snapshot.SessionV1, 0, len(ids))
	for _, id := range ids {
		s := w.sessions[id]
		hotbar := make([]uint8, 0, interact.HotbarSize)
		for _, t := range s.selector.Hotbar() {
			hotbar = append(hotbar, uint8(t))
		}
		lastPlace, lastDestroy := s.ia.Cooldowns()
		ss := snapshot.SessionV1{
			ID:          s.id,
			Name:        s.name,
			Hotbar:      hotbar,
			Slot:        s.selector.Slot(),
			Selected:    uint8(s.selector.Selected()),
			MenuVisible: s.selector.MenuVisible(),
			LastPlace:   lastPlace,
			LastDestroy: lastDestroy,
			RateStart:   s.rate.Start,
			RateCount:   s.rate.Count,
		}
		if s.view != nil {
			v := s.view.ToArray()
			ss.View = &v
		}
		out = append(out, ss)
	}
	return out
}

func exportBlock(b block.Block) snapshot.BlockV1 {
	return snapshot.BlockV1{
		Type:           uint8(b.Type),
		Powered:        b.Powered,
		PowerLevel:     b.PowerLevel,
		Rotation:       b.Rotation,
		Active:         b.Active,
		TicksRemaining: b.TicksRemaining,
		DelayTicks:     b.DelayTicks,
	}
}
