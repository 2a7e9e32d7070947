package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStepClock_StartsAtEpoch(t *testing.T) {
	clock := NewStepClock(time.Time{}, 0)
	assert.Equal(t, Epoch, clock.Now())
	assert.Equal(t, Epoch.Add(time.Second), clock.Now())
}

func TestStepClock_CustomStep(t *testing.T) {
	start := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := NewStepClock(start, time.Minute)

	assert.Equal(t, start, clock.Peek())
	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start.Add(time.Minute), clock.Now())
	assert.Equal(t, start.Add(2*time.Minute), clock.Peek())
}

func TestStepClock_Reset(t *testing.T) {
	clock := NewStepClock(time.Time{}, 0)
	clock.Now()
	clock.Now()
	clock.Reset()
	assert.Equal(t, Epoch, clock.Now())
}

func TestStepClock_ThreadSafe(t *testing.T) {
	clock := NewStepClock(time.Time{}, 0)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				clock.Now()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, Epoch.Add(1000*time.Second), clock.Peek())
}
