package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

const (
	delay   = 100 * time.Millisecond
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func TestDebouncer_RunsAfterDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := NewDebouncer(clock, delay)

	var calls atomic.Int32
	d.Schedule(func() { calls.Add(1) })
	assert.True(t, d.Pending())

	clock.Advance(delay - time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())

	clock.Advance(time.Millisecond)
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, waitFor, tick)
	assert.False(t, d.Pending())
}

func TestDebouncer_CoalescesBurst(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := NewDebouncer(clock, delay)

	var mu sync.Mutex
	var ran []string
	record := func(v string) func() {
		return func() {
			mu.Lock()
			defer mu.Unlock()
			ran = append(ran, v)
		}
	}

	d.Schedule(record("first"))
	clock.Advance(delay / 2)
	d.Schedule(record("second"))
	clock.Advance(delay / 2)
	d.Schedule(record("third"))

	// delay measured from the last Schedule
	clock.Advance(delay - time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Empty(t, ran)
	mu.Unlock()

	clock.Advance(time.Millisecond)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ran) == 1
	}, waitFor, tick)

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"third"}, ran)
}

func TestDebouncer_Cancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := NewDebouncer(clock, delay)

	var calls atomic.Int32
	d.Schedule(func() { calls.Add(1) })

	assert.True(t, d.Cancel())
	assert.False(t, d.Cancel())
	assert.False(t, d.Pending())

	clock.Advance(2 * delay)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestDebouncer_RescheduleAfterRun(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := NewDebouncer(clock, delay)

	var calls atomic.Int32
	d.Schedule(func() { calls.Add(1) })
	clock.Advance(delay)
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, waitFor, tick)

	d.Schedule(func() { calls.Add(1) })
	clock.Advance(delay)
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, waitFor, tick)
}

func TestNewDebouncer_DefaultsToRealClock(t *testing.T) {
	d := NewDebouncer(nil, 10*time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, d.Delay())

	done := make(chan struct{})
	d.Schedule(func() { close(done) })

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("callback did not run on the real clock")
	}
}
