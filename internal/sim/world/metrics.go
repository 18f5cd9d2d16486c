package world

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Sessions      int `json:"sessions"`
	LoadedChunks  int `json:"loaded_chunks"`
	PoweredBlocks int `json:"powered_blocks"`
	ActiveSources int `json:"active_sources"`

	EvictedChunksTotal uint64 `json:"evicted_chunks_total"`
	TicksTotal         uint64 `json:"ticks_total"`
	LastFrameTicks     int    `json:"last_frame_ticks"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) publishMetrics(frameTicks int, stepMS float64) {
	tick := w.tick.Load()
	w.metrics.Store(WorldMetrics{
		Tick:               tick,
		Sessions:           len(w.sessions),
		LoadedChunks:       len(w.chunks),
		PoweredBlocks:      w.lastPowered,
		ActiveSources:      w.lastActiveSources,
		EvictedChunksTotal: w.evictedTotal,
		TicksTotal:         tick,
		LastFrameTicks:     frameTicks,
		QueueDepths: QueueDepths{
			Inbox: len(w.inbox),
			Join:  len(w.join),
			Leave: len(w.leave),
		},
		StepMS: stepMS,
	})
}
