package world

import "time"

// Update advances the simulation by dt of wall time and returns how many ticks
// ran. Time is accumulated and consumed in whole tick intervals, so several
// ticks may run in one call and a short dt may run none.
func (w *World) Update(dt time.Duration) int {
	if dt > 0 {
		w.accumulator += dt
	}
	interval := w.cfg.TickInterval()
	n := 0
	for w.accumulator >= interval {
		if w.cfg.MaxTicksPerUpdate > 0 && n >= w.cfg.MaxTicksPerUpdate {
			// Drop the backlog but keep the partial interval.
			w.accumulator %= interval
			break
		}
		w.accumulator -= interval
		w.stepTick()
		n++
	}
	return n
}

// stepTick runs one tick plus its bookkeeping: tick log, periodic chunk
// unloading and periodic snapshots.
func (w *World) stepTick() {
	nowTick := w.tick.Load()
	w.runTick()
	nextTick := w.tick.Add(1)

	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:          nowTick,
			Joins:         w.recJoins,
			Leaves:        w.recLeaves,
			Actions:       w.recActions,
			Powered:       w.lastPowered,
			ActiveSources: w.lastActiveSources,
			Digest:        w.StateDigest(),
		})
	}
	w.recJoins = nil
	w.recLeaves = nil
	w.recActions = nil

	if every := uint64(w.cfg.UnloadEveryTicks); every > 0 && nextTick%every == 0 {
		w.unloadOutsideViews()
	}

	// Snapshot every N ticks, starting after tick 0.
	if w.snapshotSink != nil && w.cfg.SnapshotEveryTicks > 0 {
		if every := uint64(w.cfg.SnapshotEveryTicks); nextTick%every == 0 {
			w.emitSnapshot()
		}
	}
}

func (w *World) emitSnapshot() {
	if w.snapshotSink == nil {
		return
	}
	select {
	case w.snapshotSink <- w.ExportSnapshot():
	default:
		// Drop snapshot if sink is backed up.
	}
}

// unloadOutsideViews evicts chunks that no session is looking at. Sessions
// without a view centre do not pin anything.
func (w *World) unloadOutsideViews() int {
	var centers []Vec3i
	for _, id := range w.sessionIDs() {
		if v := w.sessions[id].view; v != nil {
			centers = append(centers, *v)
		}
	}
	return w.UnloadDistantChunksAround(centers, w.cfg.LoadDistanceChunks)
}
