// Package rates limits how often something may happen per window of ticks.
package rates

// Window counts events in fixed windows of Size ticks. A window opens on the
// first event at or after the previous window ended.
type Window struct {
	Start uint64
	Count int
}

// Allow records one event at tick now. It reports whether the event fits in
// max per size ticks and, when it does not, how many ticks remain until the
// window resets. A zero size or max allows everything.
func (w Window) Allow(now uint64, size uint64, max int) (next Window, ok bool, retryIn uint64) {
	if size == 0 || max <= 0 {
		return w, true, 0
	}
	if w.Count == 0 || now < w.Start || now-w.Start >= size {
		w = Window{Start: now}
	}
	if w.Count >= max {
		return w, false, w.Start + size - now
	}
	w.Count++
	return w, true, 0
}
