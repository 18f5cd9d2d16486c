package world

import (
	"blec.dev/internal/sim/world/block"
	"blec.dev/internal/sim/world/logic/power"
)

// powerEnv adapts the chunk map to the propagation rules. Missing chunks read as air.
type powerEnv struct{ w *World }

func (e powerEnv) Conducts(p power.Pos) bool {
	b := e.w.GetBlock(p.X, p.Y, p.Z)
	return b != nil && b.ConductsElectricity()
}

func (e powerEnv) Feeds(p power.Pos) bool {
	b := e.w.GetBlock(p.X, p.Y, p.Z)
	return b != nil && (b.Powered || b.IsActiveSource())
}

// forEachBlock visits every loaded block in chunk key order with its world position.
func (w *World) forEachBlock(fn func(ch *Chunk, p power.Pos, b *block.Block)) {
	for _, k := range w.LoadedChunkKeys() {
		ch := w.chunks[k]
		bx, by, bz := k.CX*ChunkSize, k.CY*ChunkSize, k.CZ*ChunkSize
		for i := range ch.Blocks {
			lx := i % ChunkSize
			ly := (i / ChunkSize) % ChunkSize
			lz := i / (ChunkSize * ChunkSize)
			fn(ch, power.Pos{X: bx + lx, Y: by + ly, Z: bz + lz}, &ch.Blocks[i])
		}
	}
}

// runTick advances the power simulation by exactly one tick.
func (w *World) runTick() {
	w.stepComponents()
	reached := w.propagate()
	w.applyPower(reached)
}

type repeaterInput struct {
	pos   power.Pos
	b     *block.Block
	input bool
}

// stepComponents advances buttons and repeaters. Repeater inputs are all read
// before any component changes, so the result does not depend on visit order.
func (w *World) stepComponents() {
	env := powerEnv{w: w}
	var buttons []*block.Block
	var buttonPos []power.Pos
	var repeaters []repeaterInput

	w.forEachBlock(func(_ *Chunk, p power.Pos, b *block.Block) {
		bh := block.BehaviorOf(b.Type)
		switch {
		case bh.Pulsed:
			buttons = append(buttons, b)
			buttonPos = append(buttonPos, p)
		case bh.Delayed:
			repeaters = append(repeaters, repeaterInput{pos: p, b: b, input: power.HasInput(env, p)})
		}
	})

	for i, b := range buttons {
		was := b.Active
		s := power.StepButton(power.ButtonState{Active: b.Active, TicksRemaining: b.TicksRemaining})
		b.Active, b.TicksRemaining = s.Active, s.TicksRemaining
		if was != b.Active {
			w.markChanged(buttonPos[i])
		}
	}
	for _, r := range repeaters {
		was := r.b.Active
		s := power.StepRepeater(power.RepeaterState{
			Active:         r.b.Active,
			TicksRemaining: r.b.TicksRemaining,
			DelayTicks:     r.b.DelayTicks,
		}, r.input)
		r.b.Active, r.b.TicksRemaining = s.Active, s.TicksRemaining
		if was != r.b.Active {
			w.markChanged(r.pos)
		}
	}
}

// propagate returns every position reached by current from an active source.
func (w *World) propagate() map[power.Pos]struct{} {
	var seeds []power.Pos
	w.forEachBlock(func(_ *Chunk, p power.Pos, b *block.Block) {
		if b.IsActiveSource() {
			seeds = append(seeds, p)
		}
	})
	w.lastActiveSources = len(seeds)
	return power.Reach(powerEnv{w: w}, seeds)
}

// applyPower writes the powered state of every loaded block. Reached blocks are
// powered, and so are consumers touching a reached block.
func (w *World) applyPower(reached map[power.Pos]struct{}) {
	powered := 0
	w.forEachBlock(func(ch *Chunk, p power.Pos, b *block.Block) {
		_, on := reached[p]
		if !on && b.IsConsumer() {
			on = power.Touches(reached, p)
		}
		if on {
			powered++
		}
		level := uint8(0)
		if on {
			level = 1
		}
		if b.Powered == on && b.PowerLevel == level {
			return
		}
		b.SetPowered(on)
		ch.MarkDirty()
		w.markChanged(p)
	})
	w.lastPowered = powered
}

func (w *World) markChanged(p power.Pos) {
	w.changed[Vec3i{X: p.X, Y: p.Y, Z: p.Z}] = struct{}{}
}
