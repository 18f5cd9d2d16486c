package worldtest

import (
	"encoding/json"
	"testing"

	"blec.dev/internal/protocol"
	"blec.dev/internal/sim/encoding"
	world "blec.dev/internal/sim/world"
	"blec.dev/internal/sim/world/block"
)

// Harness is a small black-box test helper for driving a world via exported APIs:
// - Join() issues a JoinRequest through StepFrame
// - Step()/StepFor() send ACT and advance exactly one tick
// - Each client keeps a mirror of the blocks it was told about, built only from
//   TICK chunk data and changes
//
// It avoids world internals so tests can live outside the world package.
type Harness struct {
	T *testing.T
	W *world.World

	DefaultSessionID string

	clients map[string]*client
}

func NewHarness(t *testing.T, cfg world.WorldConfig, spawnRadius int, name string) *Harness {
	t.Helper()
	w := world.New(cfg)
	w.Initialize(spawnRadius, block.Air)
	return NewHarnessWithWorld(t, w, name)
}

// NewHarnessWithWorld is like NewHarness, but uses an already-constructed world.
// Snapshot tests import before the first join.
func NewHarnessWithWorld(t *testing.T, w *world.World, name string) *Harness {
	t.Helper()
	if w == nil {
		t.Fatalf("NewHarnessWithWorld: nil world")
	}
	h := &Harness{T: t, W: w, clients: map[string]*client{}}
	h.DefaultSessionID = h.Join(name)
	return h
}

type client struct {
	SessionID string
	Out       chan []byte

	last   protocol.TickMsg
	events []protocol.Event
	mirror map[[3]int]protocol.BlockChange
	chunks map[[3]int]struct{}
}

func (h *Harness) Join(name string) string {
	h.T.Helper()
	out := make(chan []byte, 64)
	resp := make(chan world.JoinResponse, 1)
	h.W.StepFrame([]world.JoinRequest{{Name: name, Out: out, Resp: resp}}, nil, nil, 0)
	jr := <-resp
	if jr.Welcome.SessionID == "" {
		h.T.Fatalf("join returned empty session id")
	}
	c := &client{
		SessionID: jr.Welcome.SessionID,
		Out:       out,
		mirror:    map[[3]int]protocol.BlockChange{},
		chunks:    map[[3]int]struct{}{},
	}
	h.clients[c.SessionID] = c
	h.drainAll()
	return c.SessionID
}

func (h *Harness) Leave(id string) {
	h.T.Helper()
	h.W.StepFrame(nil, []string{id}, nil, 0)
	delete(h.clients, id)
	h.drainAll()
}

// Step sends actions for the default session and runs one tick.
func (h *Harness) Step(actions ...protocol.Action) protocol.TickMsg {
	return h.StepFor(h.DefaultSessionID, actions...)
}

func (h *Harness) StepFor(id string, actions ...protocol.Action) protocol.TickMsg {
	h.T.Helper()
	var envs []world.ActionEnvelope
	if len(actions) > 0 {
		envs = append(envs, world.ActionEnvelope{SessionID: id, Act: protocol.ActMsg{
			Type:            protocol.TypeAct,
			ProtocolVersion: protocol.Version,
			Actions:         actions,
		}})
	}
	h.StepMulti(envs)
	return h.LastTickFor(id)
}

func (h *Harness) StepMulti(envs []world.ActionEnvelope) {
	h.T.Helper()
	for _, c := range h.clients {
		c.last = protocol.TickMsg{}
	}
	if n := h.W.StepFrame(nil, nil, envs, h.W.Config().TickInterval()); n != 1 {
		h.T.Fatalf("frame ran %d ticks, want 1", n)
	}
	h.drainAll()
}

func (h *Harness) StepNoop() protocol.TickMsg {
	h.T.Helper()
	return h.Step()
}

// StepN runs n ticks without input.
func (h *Harness) StepN(n int) {
	h.T.Helper()
	for i := 0; i < n; i++ {
		h.StepMulti(nil)
	}
}

// LastTick is the latest TICK the default session got during the last step. It
// is zero when nothing was sent.
func (h *Harness) LastTick() protocol.TickMsg { return h.LastTickFor(h.DefaultSessionID) }

func (h *Harness) LastTickFor(id string) protocol.TickMsg {
	h.T.Helper()
	return h.client(id).last
}

// Result finds the ACTION_RESULT for ref among every event the session has
// received since it joined.
func (h *Harness) Result(ref string) (ok bool, code string, found bool) {
	h.T.Helper()
	for _, e := range h.client(h.DefaultSessionID).events {
		if typ, _ := e["type"].(string); typ != "ACTION_RESULT" {
			continue
		}
		if r, _ := e["ref"].(string); r != ref {
			continue
		}
		ok, _ = e["ok"].(bool)
		code, _ = e["code"].(string)
		return ok, code, true
	}
	return false, "", false
}

// Seen returns the session's view of pos. ok is false when the session was
// never told about it.
func (h *Harness) Seen(id string, pos [3]int) (protocol.BlockChange, bool) {
	h.T.Helper()
	c := h.client(id)
	if bc, ok := c.mirror[pos]; ok {
		return bc, true
	}
	if _, ok := c.chunks[chunkOf(pos)]; ok {
		return protocol.BlockChange{Pos: pos, Block: block.Air.String()}, true
	}
	return protocol.BlockChange{}, false
}

// ReceivedChunks lists the chunks the session got whole.
func (h *Harness) ReceivedChunks(id string) map[[3]int]struct{} {
	h.T.Helper()
	return h.client(id).chunks
}

func (h *Harness) client(id string) *client {
	h.T.Helper()
	c := h.clients[id]
	if c == nil {
		h.T.Fatalf("unknown session id: %q", id)
	}
	return c
}

func (h *Harness) drainAll() {
	h.T.Helper()
	for _, c := range h.clients {
		h.drainOne(c)
	}
}

func (h *Harness) drainOne(c *client) {
	h.T.Helper()
	for {
		select {
		case b := <-c.Out:
			var msg protocol.TickMsg
			if err := json.Unmarshal(b, &msg); err != nil {
				h.T.Fatalf("unmarshal TICK: %v", err)
			}
			h.apply(c, msg)
			continue
		default:
		}
		return
	}
}

// apply folds one TICK into the client mirror. Chunk data replaces the whole
// chunk before the changes are laid over it.
func (h *Harness) apply(c *client, msg protocol.TickMsg) {
	h.T.Helper()
	for _, cd := range msg.Chunks {
		states, err := encoding.DecodeRLE(cd.States, world.ChunkVolume)
		if err != nil || len(states) != world.ChunkVolume {
			h.T.Fatalf("chunk %v: len=%d err=%v", cd.Pos, len(states), err)
		}
		for p := range c.mirror {
			if chunkOf(p) == cd.Pos {
				delete(c.mirror, p)
			}
		}
		for i, s := range states {
			typ, powered, active := encoding.UnpackState(s)
			if block.Type(typ) == block.Air {
				continue
			}
			p := [3]int{
				cd.Pos[0]*world.ChunkSize + i%world.ChunkSize,
				cd.Pos[1]*world.ChunkSize + (i/world.ChunkSize)%world.ChunkSize,
				cd.Pos[2]*world.ChunkSize + i/(world.ChunkSize*world.ChunkSize),
			}
			c.mirror[p] = protocol.BlockChange{Pos: p, Block: block.Type(typ).String(), Powered: powered, Active: active}
		}
		c.chunks[cd.Pos] = struct{}{}
	}
	for _, ch := range msg.Changes {
		c.mirror[ch.Pos] = ch
	}
	c.events = append(c.events, msg.Events...)
	c.last = msg
}

func chunkOf(p [3]int) [3]int {
	return [3]int{
		world.WorldToChunkCoord(p[0]),
		world.WorldToChunkCoord(p[1]),
		world.WorldToChunkCoord(p[2]),
	}
}
