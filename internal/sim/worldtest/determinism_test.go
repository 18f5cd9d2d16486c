package worldtest

import (
	"testing"

	"blec.dev/internal/protocol"
	world "blec.dev/internal/sim/world"
	"blec.dev/internal/sim/world/block"
)

func determinismScript() [][]protocol.Action {
	return [][]protocol.Action{
		{placeAct([3]int{0, 0, 0}, "SWITCH"), placeAct([3]int{1, 0, 0}, "COPPER_WIRE")},
		{placeAct([3]int{2, 0, 0}, "REPEATER"), placeAct([3]int{3, 0, 0}, "COPPER_WIRE")},
		{{ID: "D1", Type: protocol.ActionSetDelay, Pos: [3]int{2, 0, 0}, Delay: 3}},
		{placeAct([3]int{4, 0, 0}, "LIGHT"), placeAct([3]int{0, 0, 2}, "BUTTON"), placeAct([3]int{1, 0, 2}, "LIGHT")},
		{useAct([3]int{0, 0, 0})},
		nil,
		{useAct([3]int{0, 0, 2})},
		nil,
		nil,
		{useAct([3]int{0, 0, 0})},
		nil,
		nil,
	}
}

type tickSink []world.TickLogEntry

func (s *tickSink) WriteTick(e world.TickLogEntry) error {
	*s = append(*s, e)
	return nil
}

func TestDeterminism_FixedActionsSameDigest(t *testing.T) {
	h1 := NewHarness(t, testConfig(), 1, "bot")
	h2 := NewHarness(t, testConfig(), 1, "bot")

	if h1.W.StateDigest() != h2.W.StateDigest() {
		t.Fatalf("digest mismatch after join")
	}
	for i, actions := range determinismScript() {
		h1.Step(actions...)
		h2.Step(actions...)
		if t1, t2 := h1.W.CurrentTick(), h2.W.CurrentTick(); t1 != t2 {
			t.Fatalf("step %d: tick mismatch %d vs %d", i, t1, t2)
		}
		if d1, d2 := h1.W.StateDigest(), h2.W.StateDigest(); d1 != d2 {
			t.Fatalf("step %d: digest mismatch at tick %d: %s vs %s", i, h1.W.CurrentTick(), d1, d2)
		}
	}
}

func TestDeterminism_StepOnceMatchesFrames(t *testing.T) {
	w := world.New(testConfig())
	w.Initialize(1, block.Air)
	var log tickSink
	w.SetTickLogger(&log)
	h := NewHarnessWithWorld(t, w, "bot")

	for _, actions := range determinismScript() {
		h.Step(actions...)
	}
	if len(log) != len(determinismScript()) {
		t.Fatalf("logged %d ticks", len(log))
	}
	if len(log[0].Joins) != 1 || log[0].Joins[0].SessionID != h.DefaultSessionID {
		t.Fatalf("join not logged with first tick: %+v", log[0].Joins)
	}

	r := world.New(testConfig())
	r.Initialize(1, block.Air)
	for _, e := range log {
		tick, digest := r.StepOnce(e.Joins, e.Leaves, e.Actions)
		if tick != e.Tick {
			t.Fatalf("stepped tick %d, logged %d", tick, e.Tick)
		}
		if digest != e.Digest {
			t.Fatalf("digest mismatch at tick %d", tick)
		}
	}
	if r.StateDigest() != w.StateDigest() {
		t.Fatalf("final digest differs")
	}
	if r.SessionCount() != 1 {
		t.Fatalf("sessions=%d", r.SessionCount())
	}
}
