package jobs_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mtsched/internal/jobs"
)

func TestValidateSpec(t *testing.T) {
	assert.NoError(t, jobs.ValidateSpec("*/10 * * * *"))
	assert.NoError(t, jobs.ValidateSpec("@hourly"))
	assert.Error(t, jobs.ValidateSpec("every ten minutes"))
	assert.Error(t, jobs.ValidateSpec("* * * * * *"))
}

func TestScheduler_runNowPassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "sweep")
	s := jobs.New(ctx)

	var got any
	require.NoError(t, s.Add("sweep", "*/10 * * * *", func(ctx context.Context) error {
		got = ctx.Value(key{})
		return nil
	}))
	require.NoError(t, s.RunNow("sweep"))
	assert.Equal(t, "sweep", got)
}

func TestScheduler_runNowReturnsJobError(t *testing.T) {
	s := jobs.New(context.Background())
	boom := errors.New("boom")
	require.NoError(t, s.Add("refresh", "@every 1h", func(context.Context) error { return boom }))
	assert.ErrorIs(t, s.RunNow("refresh"), boom)
}

func TestScheduler_runNowSkipsWhileRunning(t *testing.T) {
	s := jobs.New(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	require.NoError(t, s.Add("refresh", "@every 1h", func(context.Context) error {
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
		return nil
	}))

	first := make(chan error, 1)
	go func() { first <- s.RunNow("refresh") }()
	<-started

	assert.ErrorIs(t, s.RunNow("refresh"), jobs.ErrStillRunning)
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	require.NoError(t, <-first)

	require.NoError(t, s.RunNow("refresh"))
	assert.Equal(t, int32(2), calls.Load())
}

func TestScheduler_tickSkippedWhileRunNowActive(t *testing.T) {
	s := jobs.New(context.Background())
	release := make(chan struct{})
	var calls atomic.Int32
	require.NoError(t, s.Add("refresh", "@every 1s", func(context.Context) error {
		calls.Add(1)
		<-release
		return nil
	}))

	first := make(chan error, 1)
	go func() { first <- s.RunNow("refresh") }()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 10*time.Millisecond)

	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	}()

	// Let at least two ticks pass while the first run is still blocked.
	time.Sleep(2500 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	require.NoError(t, <-first)
}

func TestScheduler_rejectsBadScheduleAndDuplicates(t *testing.T) {
	s := jobs.New(context.Background())
	noop := func(context.Context) error { return nil }

	require.Error(t, s.Add("bad", "not a schedule", noop))
	require.Error(t, s.RunNow("bad"))

	require.NoError(t, s.Add("ok", "@daily", noop))
	require.Error(t, s.Add("ok", "@daily", noop))
	require.Error(t, s.RunNow("missing"))
}

func TestScheduler_firesOnSchedule(t *testing.T) {
	s := jobs.New(context.Background())
	fired := make(chan struct{}, 1)
	require.NoError(t, s.Add("tick", "@every 1s", func(context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}))

	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	}()

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not fire")
	}
}
