package main

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	persistlog "blec.dev/internal/persistence/log"
	"blec.dev/internal/persistence/snapshot"
	"blec.dev/internal/protocol"
	"blec.dev/internal/sim/tuning"
	"blec.dev/internal/sim/world"
	"blec.dev/internal/sim/world/block"
)

func replayTestConfig() world.WorldConfig {
	cfg := world.ConfigFromTuning("replay", tuning.Defaults())
	cfg.SnapshotEveryTicks = 4
	return cfg
}

type liveRun struct {
	worldDir string
	snapPath string
	snapTick uint64
	endTick  uint64
	digest   string
	entries  []world.TickLogEntry
}

type captureTicks struct {
	next    world.TickLogger
	entries []world.TickLogEntry
}

func (c *captureTicks) WriteTick(e world.TickLogEntry) error {
	c.entries = append(c.entries, e)
	return c.next.WriteTick(e)
}

// recordRun builds a switch, wire and light circuit over several frames with
// the tick log going to disk, and keeps the snapshot taken at tick 4.
func recordRun(t *testing.T) liveRun {
	t.Helper()
	dir := t.TempDir()
	tl := persistlog.NewTickLogger(dir)
	capture := &captureTicks{next: tl}

	w := world.New(replayTestConfig())
	w.Initialize(1, block.Air)
	w.SetTickLogger(capture)
	sink := make(chan snapshot.SnapshotV1, 16)
	w.SetSnapshotSink(sink)

	resp := make(chan world.JoinResponse, 1)
	out := make(chan []byte, 64)
	w.StepFrame([]world.JoinRequest{{Name: "bot", Out: out, Resp: resp}}, nil, nil, 0)
	id := (<-resp).Welcome.SessionID

	frame := func(actions ...protocol.Action) {
		env := world.ActionEnvelope{SessionID: id, Act: protocol.ActMsg{
			Type:            protocol.TypeAct,
			ProtocolVersion: protocol.Version,
			Actions:         actions,
		}}
		w.StepFrame(nil, nil, []world.ActionEnvelope{env}, 50*time.Millisecond)
	}
	frame(protocol.Action{ID: "v", Type: protocol.ActionView, Pos: [3]int{0, 0, 0}})
	frame(protocol.Action{ID: "1", Type: protocol.ActionPlace, Pos: [3]int{0, 0, 0}, Block: "SWITCH"})
	frame(protocol.Action{ID: "2", Type: protocol.ActionPlace, Pos: [3]int{1, 0, 0}, Block: "COPPER_WIRE"})
	frame()
	frame(protocol.Action{ID: "3", Type: protocol.ActionPlace, Pos: [3]int{1, 0, 0}, Block: "COPPER_WIRE"})
	frame()
	frame(protocol.Action{ID: "4", Type: protocol.ActionPlace, Pos: [3]int{2, 0, 0}, Block: "LIGHT"})
	frame(protocol.Action{ID: "5", Type: protocol.ActionUse, Pos: [3]int{0, 0, 0}})
	frame()
	frame(protocol.Action{ID: "6", Type: protocol.ActionUse, Pos: [3]int{0, 0, 0}})
	frame()
	if err := tl.Close(); err != nil {
		t.Fatalf("close tick log: %v", err)
	}

	var snap snapshot.SnapshotV1
	found := false
	for len(sink) > 0 {
		s := <-sink
		if s.Header.Tick == 4 {
			snap, found = s, true
		}
	}
	if !found {
		t.Fatalf("no snapshot at tick 4")
	}
	path := snapshot.Path(dir, snap.Header.Tick)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	return liveRun{
		worldDir: dir,
		snapPath: path,
		snapTick: snap.Header.Tick,
		endTick:  w.CurrentTick(),
		digest:   w.StateDigest(),
		entries:  capture.entries,
	}
}

func restore(t *testing.T, path string) *world.World {
	t.Helper()
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	w := world.New(replayTestConfig())
	if err := w.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	return w
}

func TestReplayTicksMatchesLiveRun(t *testing.T) {
	run := recordRun(t)
	files, err := listTickFiles(filepath.Join(run.worldDir, "ticks"))
	if err != nil || len(files) == 0 {
		t.Fatalf("files=%v err=%v", files, err)
	}

	w := restore(t, run.snapPath)
	res, err := replayTicks(w, files, 0, 0)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if want := run.endTick - run.snapTick; res.Stepped != want || res.Checked != want {
		t.Fatalf("res=%+v want %d", res, want)
	}
	if w.StateDigest() != run.digest {
		t.Fatalf("final digest differs from live run")
	}
}

func TestReplayTicksBounds(t *testing.T) {
	run := recordRun(t)
	files, _ := listTickFiles(filepath.Join(run.worldDir, "ticks"))

	w := restore(t, run.snapPath)
	res, err := replayTicks(w, files, run.snapTick+2, run.snapTick+3)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Stepped != 4 || res.Checked != 2 {
		t.Fatalf("res=%+v", res)
	}
	if w.CurrentTick() != run.snapTick+4 {
		t.Fatalf("tick=%d", w.CurrentTick())
	}
}

func TestReplayTicksDetectsDivergence(t *testing.T) {
	run := recordRun(t)
	dir := t.TempDir()
	tl := persistlog.NewTickLogger(dir)
	for _, e := range run.entries {
		if e.Tick == run.snapTick+1 {
			e.Digest = "bogus"
		}
		if err := tl.WriteTick(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	_ = tl.Close()
	files, _ := listTickFiles(filepath.Join(dir, "ticks"))

	w := restore(t, run.snapPath)
	_, err := replayTicks(w, files, 0, 0)
	if err == nil || !strings.Contains(err.Error(), "digest mismatch at tick") {
		t.Fatalf("err=%v", err)
	}
}

func TestReplayTicksDetectsGap(t *testing.T) {
	run := recordRun(t)
	dir := t.TempDir()
	tl := persistlog.NewTickLogger(dir)
	for _, e := range run.entries {
		if e.Tick == run.snapTick {
			continue
		}
		_ = tl.WriteTick(e)
	}
	_ = tl.Close()
	files, _ := listTickFiles(filepath.Join(dir, "ticks"))

	w := restore(t, run.snapPath)
	_, err := replayTicks(w, files, 0, 0)
	if err == nil || !strings.Contains(err.Error(), "tick gap") {
		t.Fatalf("err=%v", err)
	}
}
