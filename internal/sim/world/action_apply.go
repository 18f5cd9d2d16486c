package world

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"blec.dev/internal/protocol"
	"blec.dev/internal/sim/world/block"
	"blec.dev/internal/sim/world/interact"
)

func actionResult(tick uint64, ref string, ok bool, code string, message string) protocol.Event {
	if !protocol.IsKnownCode(code) {
		code = protocol.ErrInternal
		if message == "" {
			message = "unknown error code"
		}
	}
	e := protocol.Event{
		"t":    tick,
		"type": "ACTION_RESULT",
		"ref":  ref,
		"ok":   ok,
	}
	if code != "" {
		e["code"] = code
	}
	if message != "" {
		e["message"] = message
	}
	return e
}

// errorCode maps interaction errors onto protocol codes.
func errorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, interact.ErrInvalidPlacement),
		errors.Is(err, interact.ErrCannotDestroy),
		errors.Is(err, interact.ErrNotInteractive):
		return protocol.ErrInvalidTarget
	case errors.Is(err, interact.ErrCooldown):
		return protocol.ErrCooldown
	case errors.Is(err, errRateLimited):
		return protocol.ErrRateLimited
	case errors.Is(err, interact.ErrNoTarget):
		return protocol.ErrNoTarget
	case errors.Is(err, interact.ErrBadDelay),
		errors.Is(err, interact.ErrNothingSelected),
		errors.Is(err, errBadAction):
		return protocol.ErrBadRequest
	default:
		return protocol.ErrInternal
	}
}

var (
	errBadAction   = errors.New("bad action")
	errRateLimited = errors.New("rate limited")
)

func (w *World) applyAction(s *session, a protocol.Action, nowTick uint64, now time.Time) {
	var err error
	next, ok, retryIn := s.rate.Allow(nowTick, uint64(w.cfg.ActionWindowTicks), w.cfg.MaxActionsPerWindow)
	s.rate = next
	if !ok {
		err = fmt.Errorf("%w: retry in %d ticks", errRateLimited, retryIn)
		s.addEvent(actionResult(nowTick, a.ID, false, errorCode(err), err.Error()))
		return
	}
	switch a.Type {
	case protocol.ActionPlace:
		err = w.actPlace(s, a, nowTick, now)
	case protocol.ActionDestroy:
		err = w.actDestroy(s, a, nowTick, now)
	case protocol.ActionUse:
		err = w.actUse(s, Vec3iFromArray(a.Pos), nowTick)
	case protocol.ActionSetDelay:
		err = w.actSetDelay(s, a, nowTick)
	case protocol.ActionClick:
		err = w.actClick(s, a, nowTick, now)
	case protocol.ActionSelect:
		if !s.selector.SelectByHotbar(a.Slot) {
			err = fmt.Errorf("%w: slot %d", errBadAction, a.Slot)
		}
		s.syncSelection()
	case protocol.ActionSelectType:
		err = w.selectType(s, a.Block)
	case protocol.ActionCycle:
		if a.Step < 0 {
			s.selector.CyclePrevious()
		} else {
			s.selector.CycleNext()
		}
		s.syncSelection()
	case protocol.ActionView:
		v := Vec3iFromArray(a.Pos)
		s.view = &v
		w.queueChunkSync(s)
	default:
		err = fmt.Errorf("%w: unknown action type %q", errBadAction, a.Type)
	}

	if err != nil {
		s.addEvent(actionResult(nowTick, a.ID, false, errorCode(err), err.Error()))
		return
	}
	s.addEvent(actionResult(nowTick, a.ID, true, "", ""))
}

func (w *World) selectType(s *session, name string) error {
	t, ok := block.ParseType(name)
	if !ok {
		return fmt.Errorf("%w: unknown block %q", errBadAction, name)
	}
	if !s.selector.SelectFromMenu(t) {
		return fmt.Errorf("%w: %s cannot be selected", errBadAction, t)
	}
	s.syncSelection()
	return nil
}

func (w *World) actPlace(s *session, a protocol.Action, nowTick uint64, now time.Time) error {
	if a.Block != "" {
		if err := w.selectType(s, a.Block); err != nil {
			return err
		}
	}
	return w.placeAt(s, Vec3iFromArray(a.Pos), nowTick, now)
}

func (w *World) placeAt(s *session, p Vec3i, nowTick uint64, now time.Time) error {
	if err := s.ia.PlaceBlock(w, toInteractPos(p), now); err != nil {
		return err
	}
	w.auditSetBlock(nowTick, s.id, p, block.Air, s.ia.SelectedBlock(), "PLACE")
	return nil
}

func (w *World) actDestroy(s *session, a protocol.Action, nowTick uint64, now time.Time) error {
	return w.destroyAt(s, Vec3iFromArray(a.Pos), nowTick, now)
}

func (w *World) destroyAt(s *session, p Vec3i, nowTick uint64, now time.Time) error {
	from := block.Air
	if b := w.GetBlock(p.X, p.Y, p.Z); b != nil {
		from = b.Type
	}
	if err := s.ia.DestroyBlock(w, toInteractPos(p), now); err != nil {
		return err
	}
	w.auditSetBlock(nowTick, s.id, p, from, block.Air, "DESTROY")
	return nil
}

func (w *World) actUse(s *session, p Vec3i, nowTick uint64) error {
	if err := s.ia.Use(w, toInteractPos(p)); err != nil {
		return err
	}
	b := w.GetBlock(p.X, p.Y, p.Z)
	reason := "PRESS"
	if block.BehaviorOf(b.Type).Toggleable {
		reason = "TOGGLE_OFF"
		if b.Active {
			reason = "TOGGLE_ON"
		}
	}
	w.touch(p)
	w.auditEvent(nowTick, s.id, "USE", p, b.Type, reason)
	return nil
}

func (w *World) actSetDelay(s *session, a protocol.Action, nowTick uint64) error {
	p := Vec3iFromArray(a.Pos)
	if err := s.ia.SetDelay(w, toInteractPos(p), a.Delay); err != nil {
		return err
	}
	w.touch(p)
	w.auditEvent(nowTick, s.id, "SET_DELAY", p, block.Repeater, fmt.Sprintf("delay=%d", a.Delay))
	return nil
}

// actClick resolves a ray click. Clicks run the same paths as the explicit
// actions so audits look the same either way.
func (w *World) actClick(s *session, a protocol.Action, nowTick uint64, now time.Time) error {
	var button interact.ClickButton
	switch a.Button {
	case protocol.ButtonLeft:
		button = interact.ClickLeft
	case protocol.ButtonRight:
		button = interact.ClickRight
	default:
		return fmt.Errorf("%w: unknown button %q", errBadAction, a.Button)
	}
	origin := mgl32.Vec3{a.Origin[0], a.Origin[1], a.Origin[2]}
	dir := mgl32.Vec3{a.Dir[0], a.Dir[1], a.Dir[2]}
	hit, ok := interact.Raycast(w, origin, dir, s.ia.Config().MaxReach)
	if !ok {
		return interact.ErrNoTarget
	}
	target := fromInteractPos(hit.Block)
	if button == interact.ClickLeft {
		return w.destroyAt(s, target, nowTick, now)
	}
	if b := w.GetBlock(target.X, target.Y, target.Z); b != nil && b.IsSwitch() {
		return w.actUse(s, target, nowTick)
	}
	return w.placeAt(s, fromInteractPos(hit.Adjacent), nowTick, now)
}

// touch records an in-place edit made through a block pointer.
func (w *World) touch(p Vec3i) {
	if ch := w.chunks[chunkKeyOf(p.X, p.Y, p.Z)]; ch != nil {
		ch.MarkDirty()
	}
	w.changed[p] = struct{}{}
}

func (w *World) auditSetBlock(tick uint64, actor string, pos Vec3i, from, to block.Type, reason string) {
	if w.auditLogger == nil {
		return
	}
	_ = w.auditLogger.WriteAudit(AuditEntry{
		Tick:   tick,
		Actor:  actor,
		Action: "SET_BLOCK",
		Pos:    pos.ToArray(),
		From:   from.String(),
		To:     to.String(),
		Reason: reason,
	})
}

func (w *World) auditEvent(tick uint64, actor string, action string, pos Vec3i, t block.Type, reason string) {
	if w.auditLogger == nil {
		return
	}
	_ = w.auditLogger.WriteAudit(AuditEntry{
		Tick:   tick,
		Actor:  actor,
		Action: action,
		Pos:    pos.ToArray(),
		From:   t.String(),
		To:     t.String(),
		Reason: reason,
	})
}

func toInteractPos(p Vec3i) interact.Pos { return interact.Pos{X: p.X, Y: p.Y, Z: p.Z} }

func fromInteractPos(p interact.Pos) Vec3i { return Vec3i{X: p.X, Y: p.Y, Z: p.Z} }
