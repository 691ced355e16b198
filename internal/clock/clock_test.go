package clock_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/mutker/chargectl/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := clock.Real().Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRealSleepElapses(t *testing.T) {
	start := time.Now()
	require.NoError(t, clock.Real().Sleep(context.Background(), 5*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestFakeRecordsSleeps(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	fake := clock.NewFake(start)

	var seen []time.Duration
	fake.OnSleep(func(d time.Duration) { seen = append(seen, d) })

	require.NoError(t, fake.Sleep(context.Background(), 100*time.Millisecond))
	require.NoError(t, fake.Sleep(context.Background(), time.Second))

	assert.Equal(t, []time.Duration{100 * time.Millisecond, time.Second}, fake.Sleeps())
	assert.Equal(t, seen, fake.Sleeps())
	assert.Equal(t, start.Add(1100*time.Millisecond), fake.Now())
}

func TestFakeSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := clock.NewFake(time.Time{})
	assert.ErrorIs(t, fake.Sleep(ctx, time.Second), context.Canceled)
	assert.Empty(t, fake.Sleeps())
}
