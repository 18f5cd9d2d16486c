package worldtest

import (
	"fmt"
	"testing"

	"blec.dev/internal/protocol"
	world "blec.dev/internal/sim/world"
)

var seq int

func nextRef(prefix string) string {
	seq++
	return fmt.Sprintf("%s%d", prefix, seq)
}

func placeAct(pos [3]int, blockName string) protocol.Action {
	return protocol.Action{ID: nextRef("P"), Type: protocol.ActionPlace, Pos: pos, Block: blockName}
}

func useAct(pos [3]int) protocol.Action {
	return protocol.Action{ID: nextRef("U"), Type: protocol.ActionUse, Pos: pos}
}

func viewAct(pos [3]int) protocol.Action {
	return protocol.Action{ID: nextRef("V"), Type: protocol.ActionView, Pos: pos}
}

func testConfig() world.WorldConfig {
	return world.WorldConfig{ID: "test", TickRateHz: 20, LoadDistanceChunks: 2}
}

// requireOK fails unless every action got a successful ACTION_RESULT.
func requireOK(t *testing.T, h *Harness, actions ...protocol.Action) {
	t.Helper()
	for _, a := range actions {
		ok, code, found := h.Result(a.ID)
		if !found {
			t.Fatalf("no result for %s (%s)", a.ID, a.Type)
		}
		if !ok {
			t.Fatalf("%s %s at %v failed: %s", a.Type, a.Block, a.Pos, code)
		}
	}
}

// requireMirrorMatches checks that what the session was told about every
// position in box agrees with the world.
func requireMirrorMatches(t *testing.T, h *Harness, id string, min, max [3]int) {
	t.Helper()
	for x := min[0]; x <= max[0]; x++ {
		for y := min[1]; y <= max[1]; y++ {
			for z := min[2]; z <= max[2]; z++ {
				b := h.W.GetBlock(x, y, z)
				if b == nil {
					continue
				}
				seen, ok := h.Seen(id, [3]int{x, y, z})
				if !ok {
					t.Fatalf("session never saw %v", [3]int{x, y, z})
				}
				if seen.Block != b.Type.String() || seen.Powered != b.Powered || seen.Active != b.Active {
					t.Fatalf("at %v session sees %s powered=%v active=%v, world has %s powered=%v active=%v",
						[3]int{x, y, z}, seen.Block, seen.Powered, seen.Active, b.Type, b.Powered, b.Active)
				}
			}
		}
	}
}
