package world

import (
	"context"
	"time"
)

// Run drives the world from a frame ticker until ctx is cancelled or Stop is
// called. Joins, leaves and actions received between frames are applied at the
// start of the next frame, then the clock advances by the measured frame time.
func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(w.cfg.FrameRateHz))
	defer ticker.Stop()

	var pendingActions []ActionEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string
	var pendingSnap []snapshotReq

	last := w.now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case req := <-w.snapReq:
			pendingSnap = append(pendingSnap, req)
		case env := <-w.inbox:
			pendingActions = append(pendingActions, env)
		case <-ticker.C:
			now := w.now()
			dt := now.Sub(last)
			last = now
			w.StepFrame(pendingJoins, pendingLeaves, pendingActions, dt)
			w.handleSnapshotRequests(pendingSnap)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActions = pendingActions[:0]
			pendingSnap = pendingSnap[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepFrame applies one frame of input and advances the clock by dt. It uses the
// same ordering as Run and is meant for tests. It returns the number of ticks
// that ran.
func (w *World) StepFrame(joins []JoinRequest, leaves []string, actions []ActionEnvelope, dt time.Duration) int {
	start := time.Now()
	nowTick := w.tick.Load()
	now := w.simTime(nowTick)

	for _, id := range leaves {
		w.handleLeave(id)
	}
	for _, req := range joins {
		resp := w.handleJoin(req)
		if req.Resp != nil {
			select {
			case req.Resp <- resp:
			default:
			}
		}
	}
	for _, env := range actions {
		s := w.sessions[env.SessionID]
		if s == nil {
			continue
		}
		for _, a := range env.Act.Actions {
			w.recActions = append(w.recActions, RecordedAction{SessionID: s.id, Action: a})
			w.applyAction(s, a, nowTick, now)
		}
	}

	n := w.Update(dt)
	w.broadcast()
	w.publishMetrics(n, float64(time.Since(start).Microseconds())/1000.0)
	return n
}

// StepOnce applies the input recorded for one tick and runs exactly that tick.
// Joins keep their recorded session ids. Input is applied as joins, then
// actions, then leaves. It returns the tick the input landed on and the state
// digest after the tick.
func (w *World) StepOnce(joins []RecordedJoin, leaves []string, actions []RecordedAction) (uint64, string) {
	nowTick := w.tick.Load()
	now := w.simTime(nowTick)

	for _, j := range joins {
		if _, ok := w.sessions[j.SessionID]; ok {
			continue
		}
		w.addSession(j.SessionID, j.Name, nil)
	}
	for _, ra := range actions {
		s := w.sessions[ra.SessionID]
		if s == nil {
			continue
		}
		w.recActions = append(w.recActions, RecordedAction{SessionID: s.id, Action: ra.Action})
		w.applyAction(s, ra.Action, nowTick, now)
	}
	for _, id := range leaves {
		w.handleLeave(id)
	}

	w.stepTick()
	w.broadcast()
	return nowTick, w.StateDigest()
}

// simTime is the simulated instant at which tick starts. Cooldowns are measured
// against it so a replay sees the same timings as the live run.
func (w *World) simTime(tick uint64) time.Time {
	return time.Unix(0, 0).Add(time.Duration(tick) * w.cfg.TickInterval())
}
