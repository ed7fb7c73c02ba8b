// SPDX-License-Identifier: MPL-2.0

package workpool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestDefaultSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cpus, want int
	}{
		{cpus: 0, want: 1},
		{cpus: 1, want: 1},
		{cpus: 2, want: 1},
		{cpus: 8, want: 7},
	}
	for _, tt := range tests {
		if got := DefaultSize(tt.cpus); got != tt.want {
			t.Errorf("DefaultSize(%d) = %d, want %d", tt.cpus, got, tt.want)
		}
	}
	if got := New(-3).Size(); got != 1 {
		t.Errorf("New(-3).Size() = %d, want 1", got)
	}
}

func TestMap_PreservesOrder(t *testing.T) {
	t.Parallel()

	inputs := make([]int, 100)
	for i := range inputs {
		inputs[i] = i
	}

	out, err := Map(t.Context(), New(4), inputs, func(_ context.Context, n int) (string, error) {
		return fmt.Sprintf("item-%d", n), nil
	})
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	for i, s := range out {
		if want := fmt.Sprintf("item-%d", i); s != want {
			t.Fatalf("out[%d] = %q, want %q", i, s, want)
		}
	}
}

func TestMap_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	const size = 3
	var running, peak atomic.Int32
	inputs := make([]int, 30)

	_, err := Map(t.Context(), New(size), inputs, func(_ context.Context, _ int) (struct{}, error) {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if got := peak.Load(); got > size {
		t.Errorf("peak concurrency = %d, want <= %d", got, size)
	}
}

func TestMap_FirstErrorWins(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	var calls atomic.Int32
	inputs := make([]int, 1000)
	for i := range inputs {
		inputs[i] = i
	}

	out, err := Map(t.Context(), New(2), inputs, func(_ context.Context, n int) (int, error) {
		calls.Add(1)
		if n == 3 {
			return 0, boom
		}
		return n, nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Map() error = %v, want %v", err, boom)
	}
	if out != nil {
		t.Errorf("Map() returned partial results %v", out)
	}
	if calls.Load() == int32(len(inputs)) {
		t.Errorf("Map() ran every task despite an early failure")
	}
}

func TestMap_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := Map(ctx, New(2), []int{1, 2, 3}, func(_ context.Context, n int) (int, error) {
		return n, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Map(canceled) error = %v, want context.Canceled", err)
	}
}

func TestMap_Empty(t *testing.T) {
	t.Parallel()

	out, err := Map(t.Context(), New(2), nil, func(_ context.Context, n int) (int, error) {
		return n, nil
	})
	if err != nil || len(out) != 0 {
		t.Errorf("Map(nil) = %v, %v; want empty, nil", out, err)
	}
}
