package scheduler_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/pkg/scheduler"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestManual_After(t *testing.T) {
	t.Parallel()

	m := scheduler.NewManual(epoch)
	var fired int32
	m.After(5*time.Second, func() { atomic.AddInt32(&fired, 1) })
	require.Equal(t, 1, m.Pending())

	m.Advance(4 * time.Second)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))

	m.Advance(time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))
	assert.Equal(t, 0, m.Pending())
	assert.Equal(t, epoch.Add(5*time.Second), m.Now())

	m.Advance(time.Hour)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired), "one-shot task fires once")
}

func TestManual_Every(t *testing.T) {
	t.Parallel()

	m := scheduler.NewManual(epoch)
	var ticks int32
	task := m.Every(30*time.Second, func() { atomic.AddInt32(&ticks, 1) })

	m.Advance(95 * time.Second)
	assert.Equal(t, int32(3), atomic.LoadInt32(&ticks))

	assert.True(t, task.Cancel())
	assert.False(t, task.Cancel())
	m.Advance(time.Hour)
	assert.Equal(t, int32(3), atomic.LoadInt32(&ticks))
}

func TestManual_Order(t *testing.T) {
	t.Parallel()

	m := scheduler.NewManual(epoch)
	var order []string
	m.After(2*time.Second, func() { order = append(order, "b") })
	m.After(time.Second, func() { order = append(order, "a") })
	m.After(2*time.Second, func() { order = append(order, "c") })

	m.Advance(3 * time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestManual_CallbackSchedulesMore(t *testing.T) {
	t.Parallel()

	m := scheduler.NewManual(epoch)
	var fired []time.Time
	m.After(time.Second, func() {
		fired = append(fired, m.Now())
		m.After(time.Second, func() { fired = append(fired, m.Now()) })
	})

	m.Advance(10 * time.Second)
	require.Len(t, fired, 2)
	assert.Equal(t, epoch.Add(time.Second), fired[0])
	assert.Equal(t, epoch.Add(2*time.Second), fired[1])
	assert.Equal(t, epoch.Add(10*time.Second), m.Now())
}

func TestTimer(t *testing.T) {
	t.Parallel()

	s := scheduler.NewTimer()
	done := make(chan struct{})
	s.After(10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "delayed task did not run")
	}

	cancelled := s.After(time.Hour, func() {})
	assert.True(t, cancelled.Cancel())

	var ticks int32
	every := s.Every(5*time.Millisecond, func() { atomic.AddInt32(&ticks, 1) })
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&ticks) >= 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, every.Cancel())
	assert.False(t, every.Cancel())
}
