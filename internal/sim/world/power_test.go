package world

import (
	"testing"

	"blec.dev/internal/sim/world/block"
	"blec.dev/internal/sim/world/logic/power"
)

func place(w *World, x, y, z int, t block.Type) {
	b := block.New(t)
	if t == block.PowerSource {
		b.SetPowered(true)
		b.Active = true
	}
	w.SetBlock(x, y, z, b)
}

func powered(t *testing.T, w *World, x, y, z int) bool {
	t.Helper()
	b := w.GetBlock(x, y, z)
	if b == nil {
		t.Fatalf("no block at %d,%d,%d", x, y, z)
	}
	return b.Powered
}

func poweredSet(w *World) map[Vec3i]bool {
	out := map[Vec3i]bool{}
	w.forEachBlock(func(_ *Chunk, p power.Pos, b *block.Block) {
		if b.Powered {
			out[Vec3i{X: p.X, Y: p.Y, Z: p.Z}] = true
		}
	})
	return out
}

func TestWireLineConducts(t *testing.T) {
	w := newTestWorld(t)
	const n = 10
	place(w, 0, 0, 0, block.PowerSource)
	for x := 1; x <= n; x++ {
		place(w, x, 0, 0, block.CopperWire)
	}
	place(w, n+1, 0, 0, block.Light)

	w.runTick()

	for x := 0; x <= n+1; x++ {
		if !powered(t, w, x, 0, 0) {
			t.Fatalf("x=%d not powered", x)
		}
	}
	if b := w.GetBlock(n+1, 0, 0); b.PowerLevel != 1 {
		t.Fatalf("light level=%d want 1", b.PowerLevel)
	}
	if powered(t, w, 0, 1, 0) {
		t.Fatalf("air above source powered")
	}
}

func TestInsulatorBlocks(t *testing.T) {
	w := newTestWorld(t)
	place(w, 0, 0, 0, block.PowerSource)
	for x := 1; x <= 10; x++ {
		place(w, x, 0, 0, block.CopperWire)
	}
	place(w, 5, 0, 0, block.Insulator)
	place(w, 11, 0, 0, block.Light)

	w.runTick()

	for x := 1; x < 5; x++ {
		if !powered(t, w, x, 0, 0) {
			t.Fatalf("x=%d before insulator not powered", x)
		}
	}
	for x := 5; x <= 11; x++ {
		if powered(t, w, x, 0, 0) {
			t.Fatalf("x=%d past insulator powered", x)
		}
	}
}

func TestSwitchGatesUntilToggled(t *testing.T) {
	w := newTestWorld(t)
	place(w, 0, 0, 0, block.PowerSource)
	place(w, 1, 0, 0, block.CopperWire)
	place(w, 2, 0, 0, block.Switch)
	place(w, 3, 0, 0, block.CopperWire)
	place(w, 4, 0, 0, block.Light)

	w.runTick()
	if !powered(t, w, 1, 0, 0) {
		t.Fatalf("feeding wire not powered")
	}
	if powered(t, w, 3, 0, 0) || powered(t, w, 4, 0, 0) {
		t.Fatalf("off switch relayed power")
	}

	w.GetBlock(2, 0, 0).Active = true
	w.runTick()
	if !powered(t, w, 2, 0, 0) || !powered(t, w, 3, 0, 0) || !powered(t, w, 4, 0, 0) {
		t.Fatalf("on switch did not act as a source")
	}

	w.GetBlock(2, 0, 0).Active = false
	w.runTick()
	if powered(t, w, 3, 0, 0) || powered(t, w, 4, 0, 0) {
		t.Fatalf("power persisted after switching off")
	}
}

func TestButtonPulseDecays(t *testing.T) {
	w := newTestWorld(t)
	w.SetBlock(0, 0, 0, block.Block{Type: block.Button, Active: true, TicksRemaining: 4})
	place(w, 1, 0, 0, block.Light)

	for i := 1; i <= 4; i++ {
		w.runTick()
		b := w.GetBlock(0, 0, 0)
		if !b.Active {
			t.Fatalf("tick %d: button inactive", i)
		}
		if int(b.TicksRemaining) != 4-i {
			t.Fatalf("tick %d: remaining=%d want %d", i, b.TicksRemaining, 4-i)
		}
		if !powered(t, w, 1, 0, 0) {
			t.Fatalf("tick %d: light not powered", i)
		}
	}
	w.runTick()
	if w.GetBlock(0, 0, 0).Active {
		t.Fatalf("button still active after pulse")
	}
	if powered(t, w, 1, 0, 0) {
		t.Fatalf("light powered after pulse")
	}
}

func TestRepeaterDelayAndImmediateDrop(t *testing.T) {
	w := newTestWorld(t)
	place(w, 0, 0, 0, block.PowerSource)
	place(w, 1, 0, 0, block.Repeater)
	if got := w.GetBlock(1, 0, 0).DelayTicks; got != 2 {
		t.Fatalf("default delay=%d want 2", got)
	}

	w.runTick()
	if w.GetBlock(1, 0, 0).Active {
		t.Fatalf("repeater active after 1 tick")
	}
	w.runTick()
	if !w.GetBlock(1, 0, 0).Active {
		t.Fatalf("repeater inactive after 2 ticks")
	}
	w.runTick()
	if !w.GetBlock(1, 0, 0).Active {
		t.Fatalf("repeater dropped while input persists")
	}

	w.SetBlock(0, 0, 0, block.New(block.Air))
	w.runTick()
	r := w.GetBlock(1, 0, 0)
	if r.Active || r.TicksRemaining != 0 {
		t.Fatalf("repeater after input loss: %+v", *r)
	}
	if r.Powered {
		t.Fatalf("repeater still powered with no source")
	}
}

func TestRepeaterZeroDelayActsAsOne(t *testing.T) {
	w := newTestWorld(t)
	place(w, 0, 0, 0, block.PowerSource)
	w.SetBlock(1, 0, 0, block.Block{Type: block.Repeater})

	w.runTick()
	if !w.GetBlock(1, 0, 0).Active {
		t.Fatalf("zero delay repeater should turn on after one tick")
	}
}

func TestPropagationIsIdempotent(t *testing.T) {
	w := newTestWorld(t)
	place(w, 0, 0, 0, block.PowerSource)
	for x := 1; x <= 5; x++ {
		place(w, x, 0, 0, block.CopperWire)
	}
	place(w, 3, 1, 0, block.Sensor)
	place(w, 6, 0, 0, block.Insulator)
	place(w, 7, 0, 0, block.Light)
	w.runTick()

	first := poweredSet(w)
	w.runTick()
	second := poweredSet(w)
	if len(first) != len(second) {
		t.Fatalf("powered set changed: %d vs %d", len(first), len(second))
	}
	for p := range first {
		if !second[p] {
			t.Fatalf("%+v lost power on second tick", p)
		}
	}
	if !first[Vec3i{X: 3, Y: 1}] {
		t.Fatalf("sensor next to wire not powered")
	}
	if first[Vec3i{X: 7}] {
		t.Fatalf("light behind insulator powered")
	}
}

func TestMissingNeighborChunkIsAir(t *testing.T) {
	w := newTestWorld(t)
	place(w, 15, 0, 0, block.PowerSource)
	place(w, 14, 0, 0, block.Repeater)
	w.runTick()
	w.runTick()
	if w.LoadedChunks() != 1 {
		t.Fatalf("propagation created chunks: %d", w.LoadedChunks())
	}
	if !powered(t, w, 14, 0, 0) {
		t.Fatalf("repeater not powered")
	}
}

func TestPropagationCrossesNegativeChunkBoundary(t *testing.T) {
	w := newTestWorld(t)
	place(w, -3, -1, -1, block.PowerSource)
	for x := -2; x <= 2; x++ {
		place(w, x, -1, -1, block.CopperWire)
	}
	place(w, 3, -1, -1, block.Light)
	if w.LoadedChunks() != 2 {
		t.Fatalf("loaded=%d want 2", w.LoadedChunks())
	}

	w.runTick()
	for x := -3; x <= 3; x++ {
		if !powered(t, w, x, -1, -1) {
			t.Fatalf("x=%d not powered", x)
		}
	}
}

func TestPowerChangeMarksChunkDirty(t *testing.T) {
	w := newTestWorld(t)
	place(w, 0, 0, 0, block.PowerSource)
	place(w, 1, 0, 0, block.CopperWire)
	ch := w.GetChunk(0, 0, 0)
	ch.MarkClean()

	w.runTick()
	if !ch.IsDirty() {
		t.Fatalf("power change did not mark chunk dirty")
	}
	ch.MarkClean()
	w.runTick()
	if ch.IsDirty() {
		t.Fatalf("steady state marked chunk dirty")
	}
}
