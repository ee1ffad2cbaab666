package input

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitUntilSucceedsImmediately(t *testing.T) {
	ok := WaitUntil(context.Background(), time.Second, func() bool { return true })
	assert.True(t, ok)
}

func TestWaitUntilTimesOut(t *testing.T) {
	start := time.Now()
	ok := WaitUntil(context.Background(), 150*time.Millisecond, func() bool { return false })
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestWaitUntilHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok := WaitUntil(ctx, time.Minute, func() bool { return false })
	assert.False(t, ok)
}

func TestSleepReturnsEarlyOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	ok := Sleep(ctx, time.Minute)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 10*time.Second)
}
