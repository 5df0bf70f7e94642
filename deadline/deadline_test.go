package deadline

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_fires(t *testing.T) {
	c := Controller{}
	fired := make(chan struct{})
	c.Arm(10*time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("deadline did not fire")
	}
}

func TestController_cancelStopsExpiry(t *testing.T) {
	c := Controller{}
	fired := int32(0)
	c.Arm(20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	c.Cancel()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestController_atMostOneOutstanding(t *testing.T) {
	c := Controller{}
	firstFired := int32(0)
	secondFired := make(chan struct{})

	// Arming a new deadline supersedes the prior unfired one; only the
	// latest deadline's expiry runs.
	c.Arm(20*time.Millisecond, func() { atomic.AddInt32(&firstFired, 1) })
	c.Arm(10*time.Millisecond, func() { close(secondFired) })

	select {
	case <-secondFired:
	case <-time.After(time.Second):
		t.Fatal("superseding deadline did not fire")
	}
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&firstFired))
}

func TestController_cancelIdempotent(t *testing.T) {
	c := Controller{}

	// Cancelling a never-armed controller is a no-op.
	c.Cancel()
	c.Cancel()

	fired := make(chan struct{})
	c.Arm(10*time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("deadline did not fire")
	}

	// Cancelling after the deadline fired is a no-op too.
	c.Cancel()
	c.Cancel()
}

func TestController_rearmAfterFire(t *testing.T) {
	c := Controller{}
	fired := make(chan struct{}, 2)
	c.Arm(10*time.Millisecond, func() { fired <- struct{}{} })
	require.Eventually(t, func() bool { return len(fired) == 1 }, time.Second, time.Millisecond)

	c.Arm(10*time.Millisecond, func() { fired <- struct{}{} })
	require.Eventually(t, func() bool { return len(fired) == 2 }, time.Second, time.Millisecond)
}
