package world

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"blec.dev/internal/persistence/snapshot"
	"blec.dev/internal/sim/world/block"
	"blec.dev/internal/sim/world/logic/mathx"
)

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg WorldConfig

	tick        atomic.Uint64
	accumulator time.Duration

	chunks map[ChunkKey]*Chunk

	sessions map[string]*session

	// Positions whose visible state changed since the last broadcast.
	changed map[Vec3i]struct{}
	// Stats of the most recent tick.
	lastPowered       int
	lastActiveSources int
	evictedTotal      uint64

	// Joins, leaves and actions applied since the last tick log entry.
	recJoins   []RecordedJoin
	recLeaves  []string
	recActions []RecordedAction

	inbox   chan ActionEnvelope
	join    chan JoinRequest
	leave   chan string
	snapReq chan snapshotReq
	stop    chan struct{}

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- snapshot.SnapshotV1

	metrics atomic.Value

	now   func() time.Time
	newID func() string
}

func New(cfg WorldConfig) *World {
	cfg.applyDefaults()
	w := &World{
		cfg:      cfg,
		chunks:   map[ChunkKey]*Chunk{},
		sessions: map[string]*session{},
		changed:  map[Vec3i]struct{}{},
		inbox:    make(chan ActionEnvelope, 1024),
		join:     make(chan JoinRequest, 64),
		leave:    make(chan string, 64),
		snapReq:  make(chan snapshotReq, 4),
		stop:     make(chan struct{}),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	w.metrics.Store(WorldMetrics{})
	return w
}

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)                  { w.auditLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) Inbox() chan<- ActionEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest     { return w.join }
func (w *World) Leave() chan<- string         { return w.leave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) Config() WorldConfig { return w.cfg }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

// WorldToChunkCoord maps a world coordinate to the coordinate of its chunk,
// rounding toward negative infinity.
func WorldToChunkCoord(v int) int { return mathx.FloorDiv(v, ChunkSize) }

// WorldToLocalCoord maps a world coordinate to its offset inside its chunk, always in [0,16).
func WorldToLocalCoord(v int) int { return mathx.Mod(v, ChunkSize) }

func chunkKeyOf(x, y, z int) ChunkKey {
	return ChunkKey{CX: WorldToChunkCoord(x), CY: WorldToChunkCoord(y), CZ: WorldToChunkCoord(z)}
}

// GetBlock returns the live block at world coordinates, or nil when its chunk is
// not loaded. It never creates chunks.
func (w *World) GetBlock(x, y, z int) *block.Block {
	ch := w.chunks[chunkKeyOf(x, y, z)]
	if ch == nil {
		return nil
	}
	return ch.GetBlock(WorldToLocalCoord(x), WorldToLocalCoord(y), WorldToLocalCoord(z))
}

// SetBlock writes b at world coordinates, creating the chunk if needed.
func (w *World) SetBlock(x, y, z int, b block.Block) {
	k := chunkKeyOf(x, y, z)
	ch := w.GetOrCreateChunk(k.CX, k.CY, k.CZ)
	ch.SetBlock(WorldToLocalCoord(x), WorldToLocalCoord(y), WorldToLocalCoord(z), b)
	w.changed[Vec3i{X: x, Y: y, Z: z}] = struct{}{}
}

func (w *World) GetOrCreateChunk(cx, cy, cz int) *Chunk {
	k := ChunkKey{CX: cx, CY: cy, CZ: cz}
	if ch, ok := w.chunks[k]; ok {
		return ch
	}
	ch := NewChunk(cx, cy, cz)
	w.chunks[k] = ch
	return ch
}

func (w *World) GetChunk(cx, cy, cz int) *Chunk {
	return w.chunks[ChunkKey{CX: cx, CY: cy, CZ: cz}]
}

func (w *World) LoadedChunks() int { return len(w.chunks) }

// LoadedChunkKeys returns every loaded chunk key ordered by CX, CY, CZ.
func (w *World) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(w.chunks))
	for k := range w.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		if keys[i].CY != keys[j].CY {
			return keys[i].CY < keys[j].CY
		}
		return keys[i].CZ < keys[j].CZ
	})
	return keys
}

// GetAllChunks returns every loaded chunk in LoadedChunkKeys order.
func (w *World) GetAllChunks() []*Chunk {
	keys := w.LoadedChunkKeys()
	out := make([]*Chunk, 0, len(keys))
	for _, k := range keys {
		out = append(out, w.chunks[k])
	}
	return out
}

// UnloadDistantChunks drops every chunk farther than loadDistance chunks from
// center (world coordinates). Dropped chunks are not persisted.
func (w *World) UnloadDistantChunks(center Vec3i, loadDistance int) int {
	return w.UnloadDistantChunksAround([]Vec3i{center}, loadDistance)
}

// UnloadDistantChunksAround keeps chunks within loadDistance of any center and
// drops the rest. With no centers nothing is dropped.
func (w *World) UnloadDistantChunksAround(centers []Vec3i, loadDistance int) int {
	if len(centers) == 0 {
		return 0
	}
	limit := loadDistance * loadDistance
	cs := make([]ChunkKey, 0, len(centers))
	for _, c := range centers {
		cs = append(cs, chunkKeyOf(c.X, c.Y, c.Z))
	}
	removed := 0
	for k := range w.chunks {
		keep := false
		for _, c := range cs {
			if mathx.DistSq3(k.CX, k.CY, k.CZ, c.CX, c.CY, c.CZ) <= limit {
				keep = true
				break
			}
		}
		if !keep {
			delete(w.chunks, k)
			removed++
		}
	}
	w.evictedTotal += uint64(removed)
	return removed
}

// Initialize creates the spawn area: chunks in [-r,r] on X and Z at chunk Y 0,
// filled with fill.
func (w *World) Initialize(radiusChunks int, fill block.Type) {
	if radiusChunks < 0 {
		radiusChunks = 0
	}
	for cx := -radiusChunks; cx <= radiusChunks; cx++ {
		for cz := -radiusChunks; cz <= radiusChunks; cz++ {
			w.GetOrCreateChunk(cx, 0, cz).Fill(fill)
		}
	}
}

// SpawnPoint is where new players start.
func (w *World) SpawnPoint() mgl32.Vec3 { return mgl32.Vec3{0, 32, 0} }
