package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncer_OnlyLastCallbackRuns(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)
	var first, last atomic.Int32

	d.schedule(func() { first.Add(1) })
	d.schedule(func() { last.Add(1) })

	assert.Eventually(t, func() bool { return last.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), first.Load())
	assert.False(t, d.pending())
}

func TestDebouncer_Stop(t *testing.T) {
	d := newDebouncer(10 * time.Millisecond)
	var calls atomic.Int32

	d.schedule(func() { calls.Add(1) })
	assert.True(t, d.pending())
	d.stop()
	assert.False(t, d.pending())

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}
