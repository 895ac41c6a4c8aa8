package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/bookshelf/internal/logger"
)

func TestGateReleasesOnce(t *testing.T) {
	g := NewGate()
	assert.Nil(t, g.Err())

	first := errors.New("first")
	assert.True(t, g.Release(first))
	assert.False(t, g.Release(nil))
	assert.Equal(t, first, g.Err())
	assert.NoError(t, g.Wait(context.Background()))
}

func TestGateWakesAllWaiters(t *testing.T) {
	g := NewGate()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- g.Wait(context.Background())
		}()
	}

	g.Release(nil)
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestGateWaitHonoursContext(t *testing.T) {
	g := NewGate()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, g.Wait(ctx), context.DeadlineExceeded)
}

func TestSchemaManagerRetriesWithLinearBackoff(t *testing.T) {
	var slept []time.Duration
	calls := 0
	m := &SchemaManager{
		Retries: 3,
		Delay:   100 * time.Millisecond,
		Sleep:   func(d time.Duration) { slept = append(slept, d) },
		Log:     logger.Nop(),
		Migrate: func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("database is locked")
			}
			return nil
		},
	}

	require.NoError(t, m.Run(context.Background()))
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, slept)
}

func TestSchemaManagerGivesUp(t *testing.T) {
	var slept []time.Duration
	calls := 0
	m := &SchemaManager{
		Retries: 3,
		Delay:   10 * time.Millisecond,
		Sleep:   func(d time.Duration) { slept = append(slept, d) },
		Log:     logger.Nop(),
		Migrate: func(context.Context) error {
			calls++
			return errors.New("disk I/O error")
		},
	}

	err := m.Run(context.Background())
	assert.ErrorIs(t, err, ErrSchemaUnavailable)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}, slept)
}
