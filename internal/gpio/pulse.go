package gpio

import (
	"log"
	"sync"
	"time"
)

// Pulser turns an output on briefly without blocking the caller. A pulse
// requested while one is in progress extends it.
type Pulser struct {
	out      Output
	duration time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewPulser creates a Pulser driving out high for duration per pulse.
func NewPulser(out Output, duration time.Duration) *Pulser {
	return &Pulser{out: out, duration: duration}
}

// Pulse sets the output on and schedules it off.
func (p *Pulser) Pulse() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timer != nil {
		p.timer.Stop()
	}
	if err := p.out.Set(true); err != nil {
		log.Printf("pulse on error: %v", err)
		return
	}
	p.timer = time.AfterFunc(p.duration, p.off)
}

func (p *Pulser) off() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.out.Set(false); err != nil {
		log.Printf("pulse off error: %v", err)
	}
	p.timer = nil
}

// Stop cancels any pending pulse and leaves the output off.
func (p *Pulser) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.out.Set(false)
}
