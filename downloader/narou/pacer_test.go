package narou

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	f.sleeps = append(f.sleeps, d)
	f.now = f.now.Add(d)
	return nil
}

func newFakePacer(steps int, stepsWait time.Duration) (*Pacer, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := NewPacer(0, steps, stepsWait)
	p.now = clock.Now
	p.sleep = clock.Sleep
	return p, clock
}

func TestPacerLongWaitEveryStep(t *testing.T) {
	p, clock := newFakePacer(3, 5*time.Second)

	for i := 0; i < 7; i++ {
		require.NoError(t, p.Wait(context.Background()))
	}
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, clock.sleeps)
}

func TestPacerIdleResetsBurst(t *testing.T) {
	p, clock := newFakePacer(2, 5*time.Second)

	require.NoError(t, p.Wait(context.Background()))
	require.NoError(t, p.Wait(context.Background()))
	clock.now = clock.now.Add(time.Minute)
	require.NoError(t, p.Wait(context.Background()))

	assert.Empty(t, clock.sleeps)
}

func TestPacerInterval(t *testing.T) {
	p := NewPacer(20*time.Millisecond, 0, 0)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Wait(context.Background()))
	}
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestPacerCancelled(t *testing.T) {
	p := NewPacer(time.Hour, 0, 0)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, p.Wait(ctx))
}
