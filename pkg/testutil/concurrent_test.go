package testutil

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"kycproxy/pkg/platform/sentinel"
)

func TestRunConcurrent(t *testing.T) {
	boom := errors.New("boom")

	out := RunConcurrent(30, func(i int) error {
		switch i % 3 {
		case 0:
			return nil
		case 1:
			return fmt.Errorf("insert: %w", sentinel.ErrConflict)
		}
		return boom
	})

	assert.Equal(t, 10, out.Successes)
	assert.Equal(t, 10, out.Conflicts)
	assert.Equal(t, 10, out.Errors)
	assert.Equal(t, 30, out.Total())
	assert.ErrorIs(t, out.FirstErr, boom)
}

func TestRunConcurrent_AllStartBeforeAnyFinishes(t *testing.T) {
	var running, peak atomic.Int32
	release := make(chan struct{})
	done := make(chan Outcome)

	go func() {
		done <- RunConcurrent(8, func(int) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-release
			running.Add(-1)
			return nil
		})
	}()

	assert.Eventually(t, func() bool { return peak.Load() == 8 }, 2*time.Second, 10*time.Millisecond)
	close(release)
	assert.Equal(t, 8, (<-done).Successes)
}
