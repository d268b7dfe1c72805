package notice

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

const (
	delay   = 5 * time.Second
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

// settle gives expiry goroutines started by the fake clock a chance to run
func settle() {
	time.Sleep(20 * time.Millisecond)
}

func TestNotice_ExpiresAfterDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	n := New(delay, WithClock(clock))
	assert.False(t, n.IsActive())

	n.Activate()
	assert.True(t, n.IsActive())

	clock.Advance(delay - time.Millisecond)
	settle()
	assert.True(t, n.IsActive())

	clock.Advance(time.Millisecond)
	assert.Eventually(t, func() bool { return !n.IsActive() }, waitFor, tick)
}

func TestNotice_ReactivationRestartsDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	n := New(delay, WithClock(clock))

	n.Activate()
	clock.Advance(3 * time.Second)
	n.Activate()

	// the first countdown would have ended here
	clock.Advance(3 * time.Second)
	settle()
	assert.True(t, n.IsActive(), "earlier activation must not clear a later one")

	clock.Advance(2 * time.Second)
	assert.Eventually(t, func() bool { return !n.IsActive() }, waitFor, tick)
}

func TestNotice_OnChange(t *testing.T) {
	clock := clockwork.NewFakeClock()

	var mu sync.Mutex
	var changes []bool
	n := New(delay, WithClock(clock), OnChange(func(active bool) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, active)
	}))

	n.Activate()
	n.Activate()
	clock.Advance(delay)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) == 2
	}, waitFor, tick)

	settle()
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, changes)
}

func TestNotice_Stop(t *testing.T) {
	clock := clockwork.NewFakeClock()

	var mu sync.Mutex
	var changes []bool
	n := New(delay, WithClock(clock), OnChange(func(active bool) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, active)
	}))

	n.Activate()
	n.Stop()
	assert.False(t, n.IsActive())

	clock.Advance(2 * delay)
	settle()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, changes)
}

func TestNotice_RealClock(t *testing.T) {
	n := New(20 * time.Millisecond)
	n.Activate()
	assert.True(t, n.IsActive())
	assert.Eventually(t, func() bool { return !n.IsActive() }, waitFor, tick)
}
