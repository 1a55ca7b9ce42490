package game

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerRegistryFiresOnExpiry(t *testing.T) {
	reg := newTimerRegistry()
	var fired int32

	reg.Start("room-1", 30*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&fired) == 1 }, time.Second, 5*time.Millisecond)
}

func TestTimerRegistryCancelPreventsExpiry(t *testing.T) {
	reg := newTimerRegistry()
	var fired int32

	reg.Start("room-1", 30*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	reg.Cancel("room-1")

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestTimerRegistryStartReplacesPriorTimer(t *testing.T) {
	reg := newTimerRegistry()
	var firstFired, secondFired int32

	reg.Start("room-1", 20*time.Millisecond, func() { atomic.AddInt32(&firstFired, 1) })
	reg.Start("room-1", 20*time.Millisecond, func() { atomic.AddInt32(&secondFired, 1) })

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&secondFired) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&firstFired))
}
