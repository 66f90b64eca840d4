package stage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TickFunc receives the remaining seconds and the expired flag once per
// second while the timer is running.
type TickFunc func(remaining int, expired bool)

// Timer is the advisory substage countdown. It ticks once per second in the
// owning (host) process, flips an expired flag at zero, and never forces an
// advance; moving on is always an explicit host action.
type Timer struct {
	mu        sync.Mutex
	remaining int
	running   bool
	expired   bool
	cancel    context.CancelFunc
	done      chan struct{}
	onTick    TickFunc
	logger    *zap.Logger
}

// NewTimer creates a countdown timer. onTick may be nil.
func NewTimer(onTick TickFunc, logger *zap.Logger) *Timer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Timer{onTick: onTick, logger: logger}
}

// Start launches the tick loop. Call Stop to release it.
func (t *Timer) Start() {
	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	t.mu.Unlock()

	go t.run(ctx)
}

// Stop halts the tick loop and releases resources.
func (t *Timer) Stop() {
	t.mu.Lock()
	if t.cancel == nil {
		t.mu.Unlock()
		return
	}
	cancel := t.cancel
	done := t.done
	t.cancel = nil
	t.running = false
	t.mu.Unlock()
	cancel()
	<-done
}

// Reset arms the timer with a new duration and starts counting down.
func (t *Timer) Reset(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	t.mu.Lock()
	t.remaining = seconds
	t.expired = seconds == 0
	t.running = true
	t.mu.Unlock()
}

// Pause freezes the countdown, keeping the remaining time.
func (t *Timer) Pause() {
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
}

// Resume continues the countdown from the remaining time.
func (t *Timer) Resume() {
	t.mu.Lock()
	t.running = true
	t.mu.Unlock()
}

// AddSeconds extends (or with a negative n shortens) the remaining time.
func (t *Timer) AddSeconds(n int) {
	t.mu.Lock()
	t.remaining += n
	if t.remaining < 0 {
		t.remaining = 0
	}
	t.expired = t.remaining == 0
	t.mu.Unlock()
}

// SetRemaining overwrites the remaining time.
func (t *Timer) SetRemaining(n int) {
	if n < 0 {
		n = 0
	}
	t.mu.Lock()
	t.remaining = n
	t.expired = n == 0
	t.mu.Unlock()
}

// Remaining returns the seconds left.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Expired reports whether the countdown reached zero.
func (t *Timer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

func (t *Timer) run(ctx context.Context) {
	defer close(t.done)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.mu.Lock()
			if !t.running {
				t.mu.Unlock()
				continue
			}
			if t.remaining > 0 {
				t.remaining--
			}
			if t.remaining == 0 && !t.expired {
				t.expired = true
				t.logger.Debug("substage timer expired")
			}
			remaining, expired, onTick := t.remaining, t.expired, t.onTick
			t.mu.Unlock()
			if onTick != nil {
				onTick(remaining, expired)
			}
		}
	}
}
