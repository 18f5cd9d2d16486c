package main

import (
	"testing"

	"blec.dev/internal/protocol"
	"blec.dev/internal/sim/encoding"
	"blec.dev/internal/sim/world"
	"blec.dev/internal/sim/world/block"
)

func TestCircuitBuildsInWorld(t *testing.T) {
	w := world.New(world.WorldConfig{ID: "bot"})
	w.Initialize(0, block.Air)

	out := make(chan []byte, 8)
	resp := make(chan world.JoinResponse, 1)
	w.StepFrame([]world.JoinRequest{{Name: "bot", Out: out, Resp: resp}}, nil, nil, 0)
	id := (<-resp).Welcome.SessionID

	c := newCircuit([3]int{2, 1, 2})
	act := func(actions []protocol.Action) world.ActionEnvelope {
		return world.ActionEnvelope{SessionID: id, Act: protocol.ActMsg{
			Type: protocol.TypeAct, ProtocolVersion: protocol.Version, Actions: actions,
		}}
	}
	interval := w.Config().TickInterval()
	w.StepFrame(nil, nil, []world.ActionEnvelope{act(c.build())}, interval)

	if got := w.GetBlock(6, 1, 2).Type; got != block.Repeater {
		t.Fatalf("repeater missing: %s", got)
	}
	if got := w.GetBlock(6, 1, 2).DelayTicks; got != 4 {
		t.Fatalf("delay=%d want 4", got)
	}
	if w.GetBlock(8, 1, 2).Powered {
		t.Fatalf("light powered before switch is on")
	}

	// Switch on.
	w.StepFrame(nil, nil, []world.ActionEnvelope{act(c.interact())}, interval)
	if !w.GetBlock(8, 1, 2).Powered {
		t.Fatalf("light not powered after switch on")
	}
	// Button press.
	w.StepFrame(nil, nil, []world.ActionEnvelope{act(c.interact())}, interval)
	if !w.GetBlock(3, 1, 4).Powered {
		t.Fatalf("button light not powered")
	}
}

func TestCircuitObserve(t *testing.T) {
	c := newCircuit([3]int{})
	c.build()
	lit, seen := c.observe([]protocol.BlockChange{{Pos: [3]int{6, 0, 0}, Powered: true}})
	if !seen || lit != 1 {
		t.Fatalf("lit=%d seen=%v", lit, seen)
	}
	if _, seen := c.observe([]protocol.BlockChange{{Pos: [3]int{9, 9, 9}}}); seen {
		t.Fatalf("unrelated change reported")
	}
}

func TestCircuitLoadChunks(t *testing.T) {
	c := newCircuit([3]int{-2, 0, 0})
	c.build()

	states := make([]uint16, chunkBlocks)
	// (4,0,0) lives in chunk (0,0,0); (-1,0,2) in chunk (-1,0,0) at local x=15.
	states[4] = encoding.PackState(uint8(block.Light), true, false)
	states[5] = encoding.PackState(uint8(block.CopperWire), true, false)
	other := make([]uint16, chunkBlocks)
	other[15+2*chunkSize*chunkSize] = encoding.PackState(uint8(block.Light), true, false)

	solid, err := c.loadChunks([]protocol.ChunkData{
		{Pos: [3]int{0, 0, 0}, States: encoding.EncodeRLE(states)},
		{Pos: [3]int{-1, 0, 0}, States: encoding.EncodeRLE(other)},
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if solid != 3 {
		t.Fatalf("solid=%d want 3", solid)
	}
	if !c.lights[[3]int{4, 0, 0}] || !c.lights[[3]int{-1, 0, 2}] {
		t.Fatalf("lights=%v", c.lights)
	}

	if _, err := c.loadChunks([]protocol.ChunkData{{States: encoding.EncodeRLE(states[:10])}}); err == nil {
		t.Fatalf("expected error for short chunk")
	}
}
