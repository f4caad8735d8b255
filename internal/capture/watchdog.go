package capture

// Watchdog declares a timeout when a free-running counter advances a full
// window past its last reset. It is level-triggered: once expired it stays
// expired until Reset.
type Watchdog struct {
	window uint64
	base   uint64
	armed  bool
}

// Arm starts the watchdog with the given window, counted from now.
// A zero window disables expiry.
func (w *Watchdog) Arm(window, now uint64) {
	w.window = window
	w.base = now
	w.armed = true
}

// Reset restarts the window from now. Called on every edge.
func (w *Watchdog) Reset(now uint64) {
	w.base = now
}

// Expired reports whether now is at least one window past the last reset.
func (w *Watchdog) Expired(now uint64) bool {
	if !w.armed || w.window == 0 {
		return false
	}
	if now < w.base {
		return false
	}
	return now-w.base >= w.window
}

// Window returns the configured window in counter ticks.
func (w *Watchdog) Window() uint64 {
	return w.window
}
