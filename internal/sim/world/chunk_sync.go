package world

import (
	"sort"

	"blec.dev/internal/protocol"
	"blec.dev/internal/sim/encoding"
	"blec.dev/internal/sim/world/logic/mathx"
)

// maxChunksPerMessage bounds how many whole chunks one TICK carries.
const maxChunksPerMessage = 8

// queueChunkSync recomputes which loaded chunks the session still needs after
// its view moved, nearest first. Chunks that left the view are forgotten so
// they are sent again when they come back.
func (w *World) queueChunkSync(s *session) {
	if s.out == nil || s.view == nil {
		return
	}
	if s.sent == nil {
		s.sent = map[ChunkKey]struct{}{}
	}
	for k := range s.sent {
		if _, ok := w.chunks[k]; !ok || !w.chunkInView(s, k) {
			delete(s.sent, k)
		}
	}

	vk := chunkKeyOf(s.view.X, s.view.Y, s.view.Z)
	queue := s.chunkQueue[:0]
	for _, k := range w.LoadedChunkKeys() {
		if _, ok := s.sent[k]; ok {
			continue
		}
		if w.chunkInView(s, k) {
			queue = append(queue, k)
		}
	}
	// Stable on top of the key order, so ties stay deterministic.
	sort.SliceStable(queue, func(i, j int) bool {
		a, b := queue[i], queue[j]
		return mathx.DistSq3(a.CX, a.CY, a.CZ, vk.CX, vk.CY, vk.CZ) < mathx.DistSq3(b.CX, b.CY, b.CZ, vk.CX, vk.CY, vk.CZ)
	})
	s.chunkQueue = queue
}

func (w *World) chunkInView(s *session, k ChunkKey) bool {
	if s.view == nil {
		return false
	}
	vk := chunkKeyOf(s.view.X, s.view.Y, s.view.Z)
	d := w.cfg.LoadDistanceChunks
	return mathx.DistSq3(k.CX, k.CY, k.CZ, vk.CX, vk.CY, vk.CZ) <= d*d
}

// nextChunks encodes up to maxChunksPerMessage queued chunks. It returns how
// many queue entries they used up, including entries whose chunk was evicted.
func (w *World) nextChunks(s *session) ([]protocol.ChunkData, int) {
	var out []protocol.ChunkData
	used := 0
	for _, k := range s.chunkQueue {
		if len(out) == maxChunksPerMessage {
			break
		}
		used++
		ch := w.chunks[k]
		if ch == nil {
			continue
		}
		out = append(out, protocol.ChunkData{
			Pos:    [3]int{k.CX, k.CY, k.CZ},
			States: encodeChunkStates(ch),
		})
	}
	return out, used
}

// commitChunks marks the first used queue entries as delivered.
func (s *session) commitChunks(used int) {
	for _, k := range s.chunkQueue[:used] {
		s.sent[k] = struct{}{}
	}
	s.chunkQueue = s.chunkQueue[used:]
}

func encodeChunkStates(ch *Chunk) string {
	states := make([]uint16, ChunkVolume)
	for i, b := range ch.Blocks {
		states[i] = encoding.PackState(uint8(b.Type), b.Powered, b.Active)
	}
	return encoding.EncodeRLE(states)
}
