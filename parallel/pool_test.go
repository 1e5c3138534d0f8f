package parallel

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_DefaultsToCPUCount(t *testing.T) {
	assert.Equal(t, runtime.NumCPU(), NewPool(0).Workers())
	assert.Equal(t, 3, NewPool(3).Workers())
}

func TestPool_RunIsolatesFailures(t *testing.T) {
	var ran atomic.Int32
	errs := NewPool(4).Run(context.Background(), 10, func(_ context.Context, i int) error {
		ran.Add(1)
		if i%3 == 0 {
			return fmt.Errorf("task %d", i)
		}
		return nil
	})

	assert.Equal(t, int32(10), ran.Load())
	require.Len(t, errs, 10)
	for i, err := range errs {
		if i%3 == 0 {
			assert.EqualError(t, err, fmt.Sprintf("task %d", i))
		} else {
			assert.NoError(t, err)
		}
	}
}

func TestPool_RunBoundsConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	block := make(chan struct{})
	done := make(chan []error)

	go func() {
		done <- NewPool(2).Run(context.Background(), 6, func(context.Context, int) error {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-block
			active.Add(-1)
			return nil
		})
	}()

	for range 6 {
		block <- struct{}{}
	}
	<-done
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPool_RunStopsDispatchOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	errs := NewPool(1).Run(ctx, 5, func(_ context.Context, i int) error {
		if i == 1 {
			cancel()
		}
		return nil
	})

	require.Len(t, errs, 5)
	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	// The single worker may have received task 2 before the cancel was observed
	assert.ErrorIs(t, errs[4], context.Canceled)
	assert.ErrorIs(t, errs[3], context.Canceled)
}

func TestPool_RunEmpty(t *testing.T) {
	assert.Empty(t, NewPool(2).Run(context.Background(), 0, func(context.Context, int) error {
		return errors.New("never called")
	}))
}

func TestMap_PreservesOrder(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	results, errs := Map(context.Background(), NewPool(3), items, func(_ context.Context, v int) (int, error) {
		if v == 4 {
			return 0, errors.New("four")
		}
		return v * v, nil
	})

	assert.Equal(t, []int{1, 4, 9, 0, 25}, results)
	assert.Error(t, errs[3])
	assert.NoError(t, errs[0])
}
