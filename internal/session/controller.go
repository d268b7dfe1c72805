// Package session implements the edit session controller: it validates every
// edit, debounces conversion requests, and applies a conversion outcome only
// while the text that produced it is still the current text.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcncl/gotyper-live/internal/gateway"
	"github.com/mcncl/gotyper-live/internal/logging"
	"github.com/mcncl/gotyper-live/internal/metrics"
	"github.com/mcncl/gotyper-live/internal/models"
	"github.com/mcncl/gotyper-live/internal/scheduler"
	"github.com/mcncl/gotyper-live/internal/validator"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period after the last edit before a
// conversion request is sent
const DefaultDebounce = 300 * time.Millisecond

// Observer receives every new snapshot, in Version order. It must not call
// OnTextChanged synchronously.
type Observer func(models.EditSession)

// Controller owns one EditSession. All transitions run under a single lock,
// so they are applied in the order the edits arrive.
type Controller struct {
	mu        sync.Mutex
	state     models.EditSession
	closed    bool
	observers map[int]Observer
	nextID    int

	// outstanding counts dispatched requests per text whose outcome has not
	// come back yet
	outstanding map[string]int

	// notifyMu is taken before mu is released so snapshots reach observers
	// in the order they were produced
	notifyMu sync.Mutex

	converter gateway.Converter
	debouncer *scheduler.Debouncer
	logger    *zap.SugaredLogger
	metrics   *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
}

type options struct {
	clock    clockwork.Clock
	debounce time.Duration
	logger   *zap.SugaredLogger
	metrics  *metrics.Metrics
	seed     Seed
}

// Option configures a Controller
type Option func(*options)

// WithClock sets the clock driving the debounce timer
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithDebounce sets the debounce window
func WithDebounce(d time.Duration) Option {
	return func(o *options) { o.debounce = d }
}

// WithLogger sets the logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records dispatches and discarded outcomes in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithSeed replaces the starter document
func WithSeed(seed Seed) Option {
	return func(o *options) { o.seed = seed }
}

// New creates a Controller that converts through converter
func New(converter gateway.Converter, opts ...Option) *Controller {
	o := options{
		clock:    clockwork.NewRealClock(),
		debounce: DefaultDebounce,
		seed:     DefaultSeed(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		state: models.EditSession{
			RawText: o.seed.Text,
			IsValid: validator.IsValid(o.seed.Text),
			Result:  o.seed.Result,
		},
		observers: make(map[int]Observer),
		converter: converter,
		debouncer: scheduler.NewDebouncer(o.clock, o.debounce),
		logger:    logging.OrNop(o.logger),
		metrics:   o.metrics,
		ctx:       ctx,
		cancel:    cancel,

		outstanding: make(map[string]int),
	}
}

// Snapshot returns a copy of the current session state
func (c *Controller) Snapshot() models.EditSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn for future snapshots and returns a function that
// removes it
func (c *Controller) Subscribe(fn Observer) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.observers[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

// OnTextChanged records an edit. Valid text schedules a conversion; invalid
// text keeps the previous result or error on display and sends nothing.
func (c *Controller) OnTextChanged(text string) {
	c.mu.Lock()
	if c.closed || text == c.state.RawText {
		c.mu.Unlock()
		return
	}

	c.state.RawText = text
	if err := validator.Validate(text); err != nil {
		c.state.IsValid = false
		c.state.IsRequestInFlight = false
		c.debouncer.Cancel()
		c.logger.Debugw("Edit is not valid JSON", "bytes", len(text), "reason", err.Error())
	} else {
		c.state.IsValid = true
		c.state.IsRequestInFlight = true
		c.debouncer.Schedule(func() { c.dispatch(text) })
	}
	c.publishLocked()
}

// Close stops the debounce timer and cancels requests in flight. Outcomes
// arriving afterwards are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.debouncer.Cancel()
	c.cancel()
}

// dispatch runs on the debounce timer goroutine
func (c *Controller) dispatch(text string) {
	c.mu.Lock()
	if c.closed || c.state.RawText != text {
		c.mu.Unlock()
		return
	}
	c.outstanding[text]++
	if c.state.IsRequestInFlight {
		c.mu.Unlock()
	} else {
		// an earlier outcome for the same text already settled the session
		c.state.IsRequestInFlight = true
		c.publishLocked()
	}

	c.metrics.IncDispatched()
	c.logger.Debugw("Dispatching conversion", "bytes", len(text))

	outcome := c.converter.Convert(c.ctx, text)
	c.apply(text, outcome)
}

// apply installs outcome if text is still the current text
func (c *Controller) apply(text string, outcome models.Outcome) {
	c.mu.Lock()
	c.outstanding[text]--
	if c.outstanding[text] <= 0 {
		delete(c.outstanding, text)
	}
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.state.RawText != text {
		c.mu.Unlock()
		c.metrics.IncStale()
		c.logger.Debugw("Discarding stale conversion outcome", "outcome", outcome.Label())
		return
	}

	if outcome.OK() {
		c.state.Result = outcome.Payload
		c.state.ErrorMessage = ""
	} else {
		c.state.Result = ""
		c.state.ErrorMessage = outcome.Message
	}
	// the same text may have been edited away and back, leaving another
	// request sent or scheduled
	c.state.IsRequestInFlight = c.outstanding[text] > 0 || c.debouncer.Pending()
	c.publishLocked()
}

// publishLocked bumps the version and hands the snapshot to observers. It
// must be called with mu held and returns with mu released.
func (c *Controller) publishLocked() {
	c.state.Version++
	snapshot := c.state
	observers := make([]Observer, 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}

	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	for _, fn := range observers {
		fn(snapshot)
	}
}
