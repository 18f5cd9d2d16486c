package world

import (
	"testing"
	"time"

	"blec.dev/internal/persistence/snapshot"
	"blec.dev/internal/sim/world/block"
)

type captureTickLogger struct{ entries []TickLogEntry }

func (c *captureTickLogger) WriteTick(e TickLogEntry) error {
	c.entries = append(c.entries, e)
	return nil
}

func TestUpdateAccumulatesTime(t *testing.T) {
	w := newTestWorld(t)
	if got := w.Update(125 * time.Millisecond); got != 2 {
		t.Fatalf("ticks=%d want 2", got)
	}
	if w.CurrentTick() != 2 {
		t.Fatalf("tick=%d want 2", w.CurrentTick())
	}
	if got := w.Update(20 * time.Millisecond); got != 0 {
		t.Fatalf("ticks=%d want 0", got)
	}
	if got := w.Update(5 * time.Millisecond); got != 1 {
		t.Fatalf("ticks=%d want 1", got)
	}
	if got := w.Update(-time.Second); got != 0 {
		t.Fatalf("negative dt ran %d ticks", got)
	}
}

func TestUpdateCapDropsBacklog(t *testing.T) {
	w := New(WorldConfig{ID: "test", MaxTicksPerUpdate: 2})
	if got := w.Update(520 * time.Millisecond); got != 2 {
		t.Fatalf("ticks=%d want 2", got)
	}
	if w.accumulator != 20*time.Millisecond {
		t.Fatalf("accumulator=%s want 20ms", w.accumulator)
	}
	if got := w.Update(30 * time.Millisecond); got != 1 {
		t.Fatalf("ticks=%d want 1", got)
	}
}

func TestUpdateRunsPowerTicks(t *testing.T) {
	w := newTestWorld(t)
	w.SetBlock(0, 0, 0, block.Block{Type: block.Button, Active: true, TicksRemaining: 4})
	place(w, 1, 0, 0, block.Light)

	w.Update(4 * w.cfg.TickInterval())
	if !w.GetBlock(1, 0, 0).Powered {
		t.Fatalf("light off during pulse")
	}
	w.Update(w.cfg.TickInterval())
	if w.GetBlock(1, 0, 0).Powered {
		t.Fatalf("light on after pulse")
	}
}

func TestTickLoggerEntries(t *testing.T) {
	w := newTestWorld(t)
	tl := &captureTickLogger{}
	w.SetTickLogger(tl)
	place(w, 0, 0, 0, block.PowerSource)
	place(w, 1, 0, 0, block.CopperWire)

	w.Update(2 * w.cfg.TickInterval())
	if len(tl.entries) != 2 {
		t.Fatalf("entries=%d want 2", len(tl.entries))
	}
	e := tl.entries[1]
	if e.Tick != 1 {
		t.Fatalf("tick=%d want 1", e.Tick)
	}
	if e.Powered != 2 || e.ActiveSources != 1 {
		t.Fatalf("entry=%+v", e)
	}
	if e.Digest == "" || e.Digest != w.StateDigest() {
		t.Fatalf("digest mismatch")
	}
}

func TestSnapshotEmittedPeriodically(t *testing.T) {
	w := New(WorldConfig{ID: "test", SnapshotEveryTicks: 3})
	sink := make(chan snapshot.SnapshotV1, 4)
	w.SetSnapshotSink(sink)
	w.GetOrCreateChunk(0, 0, 0)

	w.Update(7 * w.cfg.TickInterval())
	if len(sink) != 2 {
		t.Fatalf("snapshots=%d want 2", len(sink))
	}
	s := <-sink
	if s.Header.Tick != 3 || len(s.Chunks) != 1 {
		t.Fatalf("snapshot header=%+v chunks=%d", s.Header, len(s.Chunks))
	}
}

func TestPeriodicUnloadFollowsViews(t *testing.T) {
	w := New(WorldConfig{ID: "test", UnloadEveryTicks: 1, LoadDistanceChunks: 1})
	w.GetOrCreateChunk(0, 0, 0)
	w.GetOrCreateChunk(5, 0, 0)

	// No sessions: nothing pins chunks, nothing is evicted.
	w.Update(w.cfg.TickInterval())
	if w.LoadedChunks() != 2 {
		t.Fatalf("loaded=%d want 2", w.LoadedChunks())
	}

	w.handleJoin(JoinRequest{Name: "p"})
	for _, s := range w.sessions {
		s.view = &Vec3i{X: 80, Y: 0, Z: 0}
	}
	w.Update(w.cfg.TickInterval())
	if w.LoadedChunks() != 1 || w.GetChunk(5, 0, 0) == nil {
		t.Fatalf("expected only chunk 5,0,0 to remain, keys=%v", w.LoadedChunkKeys())
	}
	if w.evictedTotal != 1 {
		t.Fatalf("evicted=%d", w.evictedTotal)
	}
}
