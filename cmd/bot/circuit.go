package main

import (
	"fmt"

	"blec.dev/internal/protocol"
	"blec.dev/internal/sim/encoding"
)

const (
	chunkSize   = 16
	chunkBlocks = chunkSize * chunkSize * chunkSize
)

// circuit is a demo layout along +X from origin:
//
//	SWITCH  WIRE WIRE WIRE  REPEATER  WIRE  LIGHT
//	BUTTON  LIGHT            (second row, z+2)
//
// The switch row shows conduction and repeater delay, the button row a pulse.
type circuit struct {
	origin [3]int
	seq    int

	switchPos [3]int
	buttonPos [3]int
	lights    map[[3]int]bool
	phase     int
}

func newCircuit(origin [3]int) *circuit {
	return &circuit{origin: origin, lights: map[[3]int]bool{}}
}

func (c *circuit) at(dx, dy, dz int) [3]int {
	return [3]int{c.origin[0] + dx, c.origin[1] + dy, c.origin[2] + dz}
}

func (c *circuit) nextID() string {
	c.seq++
	return fmt.Sprintf("K%04d", c.seq)
}

func (c *circuit) place(p [3]int, blockName string) protocol.Action {
	return protocol.Action{ID: c.nextID(), Type: protocol.ActionPlace, Pos: p, Block: blockName}
}

// build returns the actions that lay the circuit down.
func (c *circuit) build() []protocol.Action {
	c.switchPos = c.at(0, 0, 0)
	c.buttonPos = c.at(0, 0, 2)
	row := []struct {
		dx    int
		block string
	}{
		{0, "SWITCH"},
		{1, "COPPER_WIRE"},
		{2, "COPPER_WIRE"},
		{3, "COPPER_WIRE"},
		{4, "REPEATER"},
		{5, "COPPER_WIRE"},
		{6, "LIGHT"},
	}
	out := []protocol.Action{{ID: c.nextID(), Type: protocol.ActionView, Pos: c.origin}}
	for _, r := range row {
		out = append(out, c.place(c.at(r.dx, 0, 0), r.block))
	}
	out = append(out,
		c.place(c.buttonPos, "BUTTON"),
		c.place(c.at(1, 0, 2), "LIGHT"),
		protocol.Action{ID: c.nextID(), Type: protocol.ActionSetDelay, Pos: c.at(4, 0, 0), Delay: 4},
	)
	c.lights[c.at(6, 0, 0)] = false
	c.lights[c.at(1, 0, 2)] = false
	return out
}

// interact alternates between flipping the switch and pressing the button.
func (c *circuit) interact() []protocol.Action {
	c.phase++
	target := c.switchPos
	if c.phase%2 == 0 {
		target = c.buttonPos
	}
	return []protocol.Action{{ID: c.nextID(), Type: protocol.ActionUse, Pos: target}}
}

// observe folds block changes into the light states and reports how many are
// lit. seen is false when no light changed.
func (c *circuit) observe(changes []protocol.BlockChange) (lit int, seen bool) {
	for _, ch := range changes {
		if _, ok := c.lights[ch.Pos]; ok {
			c.lights[ch.Pos] = ch.Powered
			seen = true
		}
	}
	for _, on := range c.lights {
		if on {
			lit++
		}
	}
	return lit, seen
}

// loadChunks decodes full chunk states and seeds the tracked lights that fall
// inside them. It returns the number of non-air blocks received.
func (c *circuit) loadChunks(chunks []protocol.ChunkData) (solid int, err error) {
	for _, cd := range chunks {
		states, err := encoding.DecodeRLE(cd.States, chunkBlocks)
		if err != nil {
			return solid, fmt.Errorf("chunk %v: %w", cd.Pos, err)
		}
		if len(states) != chunkBlocks {
			return solid, fmt.Errorf("chunk %v: %d states", cd.Pos, len(states))
		}
		for _, s := range states {
			if t, _, _ := encoding.UnpackState(s); t != 0 {
				solid++
			}
		}
		for p := range c.lights {
			var local [3]int
			inside := true
			for i := 0; i < 3; i++ {
				if floorDiv(p[i], chunkSize) != cd.Pos[i] {
					inside = false
					break
				}
				local[i] = p[i] - cd.Pos[i]*chunkSize
			}
			if !inside {
				continue
			}
			_, powered, _ := encoding.UnpackState(states[local[0]+local[1]*chunkSize+local[2]*chunkSize*chunkSize])
			c.lights[p] = powered
		}
	}
	return solid, nil
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}
