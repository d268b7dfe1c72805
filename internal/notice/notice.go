package notice

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcncl/gotyper-live/internal/scheduler"
)

// DefaultDelay is how long a copy confirmation stays visible
const DefaultDelay = 5 * time.Second

// Notice is a flag that clears itself a fixed delay after the most recent
// activation
type Notice struct {
	mu     sync.Mutex
	active bool
	// activation identifies the latest Activate call; an expiry scheduled by
	// an earlier one never clears the flag
	activation uint64
	expiry     *scheduler.Debouncer
	onChange   func(active bool)
}

// Option configures a Notice
type Option func(*config)

type config struct {
	clock    clockwork.Clock
	onChange func(bool)
}

// WithClock sets the clock driving the expiry
func WithClock(clock clockwork.Clock) Option {
	return func(c *config) { c.clock = clock }
}

// OnChange registers fn to be told whenever the flag flips
func OnChange(fn func(active bool)) Option {
	return func(c *config) { c.onChange = fn }
}

// New creates an inactive Notice that expires delay after activation
func New(delay time.Duration, opts ...Option) *Notice {
	cfg := config{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Notice{
		expiry:   scheduler.NewDebouncer(cfg.clock, delay),
		onChange: cfg.onChange,
	}
}

// Activate sets the flag and restarts the countdown
func (n *Notice) Activate() {
	n.mu.Lock()
	n.activation++
	id := n.activation
	wasActive := n.active
	n.active = true
	n.expiry.Schedule(func() { n.expire(id) })
	n.mu.Unlock()

	if !wasActive {
		n.notify(true)
	}
}

// IsActive reports whether the flag is set
func (n *Notice) IsActive() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}

// Stop clears the flag and drops the pending expiry
func (n *Notice) Stop() {
	n.mu.Lock()
	n.activation++
	n.expiry.Cancel()
	wasActive := n.active
	n.active = false
	n.mu.Unlock()

	if wasActive {
		n.notify(false)
	}
}

func (n *Notice) expire(id uint64) {
	n.mu.Lock()
	if id != n.activation || !n.active {
		n.mu.Unlock()
		return
	}
	n.active = false
	n.mu.Unlock()

	n.notify(false)
}

func (n *Notice) notify(active bool) {
	if n.onChange != nil {
		n.onChange(active)
	}
}
