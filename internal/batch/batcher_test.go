package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBatcher(size int, failFast bool) *Batcher {
	return New(Options{
		Name:            "test",
		BatchSize:       size,
		InterBatchDelay: time.Millisecond,
		MaxAttempts:     3,
		BaseDelay:       time.Millisecond,
		MaxDelay:        4 * time.Millisecond,
		FailFast:        failFast,
	})
}

func TestRun_ResultsArePositional(t *testing.T) {
	b := fastBatcher(3, false)
	items := []int{1, 2, 3, 4, 5, 6, 7}

	results, err := Run(context.Background(), b, items, func(_ context.Context, v int) (int, error) {
		// Finish in reverse order within a batch
		time.Sleep(time.Duration(10-v) * time.Millisecond)
		return v * 10, nil
	})
	require.NoError(t, err)
	require.Len(t, results, len(items))

	for i, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, items[i]*10, r.Value)
		assert.Equal(t, 1, r.Attempts)
	}
}

func TestRun_ConcurrencyBoundedByBatchSize(t *testing.T) {
	b := fastBatcher(2, false)
	var inFlight, peak atomic.Int32

	_, err := Run(context.Background(), b, make([]struct{}, 9), func(_ context.Context, _ struct{}) (struct{}, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return struct{}{}, nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRun_BatchesAreSequentialWithDelay(t *testing.T) {
	b := fastBatcher(2, false)

	var mu sync.Mutex
	var events []string
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}
	b.sleep = func(_ context.Context, d time.Duration) error {
		record(fmt.Sprintf("sleep %v", d))
		return nil
	}

	_, err := Run(context.Background(), b, []int{0, 1, 2, 3, 4}, func(_ context.Context, v int) (int, error) {
		record(fmt.Sprintf("start %d", v))
		time.Sleep(time.Millisecond)
		record(fmt.Sprintf("end %d", v))
		return v, nil
	})
	require.NoError(t, err)

	indexOf := func(e string) int {
		for i, got := range events {
			if got == e {
				return i
			}
		}
		t.Fatalf("event %q not recorded: %v", e, events)
		return -1
	}

	// Batches: [0,1] sleep [2,3] sleep [4]
	sleeps := []int{}
	for i, e := range events {
		if e == "sleep 1ms" {
			sleeps = append(sleeps, i)
		}
	}
	require.Len(t, sleeps, 2, "no sleep after the last batch")

	assert.Less(t, indexOf("end 0"), sleeps[0])
	assert.Less(t, indexOf("end 1"), sleeps[0])
	assert.Greater(t, indexOf("start 2"), sleeps[0])
	assert.Greater(t, indexOf("start 3"), sleeps[0])
	assert.Less(t, indexOf("end 2"), sleeps[1])
	assert.Less(t, indexOf("end 3"), sleeps[1])
	assert.Greater(t, indexOf("start 4"), sleeps[1])
}

func TestRun_RetriesThenSucceeds(t *testing.T) {
	b := fastBatcher(5, false)
	var calls atomic.Int32

	results, err := Run(context.Background(), b, []string{"a"}, func(_ context.Context, _ string) (string, error) {
		if calls.Add(1) < 3 {
			return "", errors.New("rate limited")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "ok", results[0].Value)
	assert.Equal(t, 3, results[0].Attempts)
}

func TestRun_BackoffDoublesBaseDelay(t *testing.T) {
	b := New(Options{BatchSize: 1, MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second})

	start := time.Now()
	results, err := Run(context.Background(), b, []int{1}, func(_ context.Context, _ int) (int, error) {
		return 0, errors.New("boom")
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Error(t, results[0].Err)
	assert.Equal(t, 3, results[0].Attempts)
	// 10ms + 20ms between the three attempts
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestRun_ExhaustedItemDoesNotAbortBatch(t *testing.T) {
	b := fastBatcher(2, false)

	results, err := Run(context.Background(), b, []int{1, 2, 3}, func(_ context.Context, v int) (int, error) {
		if v == 2 {
			return 0, errors.New("upstream 503")
		}
		return v, nil
	})
	require.NoError(t, err)

	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.Equal(t, 3, results[1].Attempts)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, 3, results[2].Value)

	s := Summarize(results)
	assert.Equal(t, Summary{Succeeded: 2, Failed: 1}, s)
	assert.False(t, s.AllFailed())
}

func TestRun_FailFastStopsLaterBatches(t *testing.T) {
	b := fastBatcher(2, true)
	var calledLater atomic.Bool

	_, err := Run(context.Background(), b, []int{1, 2, 3, 4}, func(_ context.Context, v int) (int, error) {
		if v > 2 {
			calledLater.Store(true)
		}
		if v == 1 {
			return 0, errors.New("api outage")
		}
		return v, nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetryExhausted)
	assert.False(t, calledLater.Load(), "batch 2 must not start after fail-fast abort")
}

func TestRun_PermanentErrorNotRetried(t *testing.T) {
	b := fastBatcher(1, false)
	sentinel := errors.New("not found")

	results, err := Run(context.Background(), b, []int{1}, func(_ context.Context, _ int) (int, error) {
		return 0, Permanent(sentinel)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, results[0].Attempts)
	assert.ErrorIs(t, results[0].Err, sentinel)
}

func TestRun_Empty(t *testing.T) {
	results, err := Run(context.Background(), fastBatcher(3, true), nil, func(_ context.Context, v int) (int, error) {
		return v, nil
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSummary_AllFailed(t *testing.T) {
	assert.True(t, Summary{Failed: 2}.AllFailed())
	assert.False(t, Summary{}.AllFailed())
}
