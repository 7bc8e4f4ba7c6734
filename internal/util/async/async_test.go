package async

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunParallel_Empty(t *testing.T) {
	t.Parallel()
	assert.Nil(t, RunParallel(context.Background(), nil))
}

func TestRunParallel_AllSucceed(t *testing.T) {
	t.Parallel()
	var count atomic.Int32
	tasks := []Task{
		{Name: "a", Func: func(context.Context) error { count.Add(1); return nil }},
		{Name: "b", Func: func(context.Context) error { count.Add(1); return nil }},
		{Name: "c", Func: func(context.Context) error { count.Add(1); return nil }},
	}

	results := RunParallel(context.Background(), tasks)

	require.Len(t, results, 3)
	assert.NoError(t, FirstError(results))
	assert.Equal(t, int32(3), count.Load())
}

func TestRunParallel_FailureIsolation(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	tasks := []Task{
		{Name: "ok-1", Func: func(context.Context) error { return nil }},
		{Name: "bad", Func: func(context.Context) error { return boom }},
		{Name: "ok-2", Func: func(context.Context) error {
			// Slow sibling must still run to completion
			time.Sleep(20 * time.Millisecond)
			return nil
		}},
	}

	results := RunParallel(context.Background(), tasks)
	require.Len(t, results, 3)

	byName := map[string]error{}
	for _, res := range results {
		byName[res.Name] = res.Err
	}
	assert.NoError(t, byName["ok-1"])
	assert.NoError(t, byName["ok-2"])
	assert.ErrorIs(t, byName["bad"], boom)
	assert.ErrorIs(t, FirstError(results), boom)
}

func TestRunParallel_ReturnsAllNames(t *testing.T) {
	t.Parallel()
	tasks := []Task{
		{Name: "w-0", Func: func(context.Context) error { return nil }},
		{Name: "w-1", Func: func(context.Context) error { return nil }},
	}

	results := RunParallel(context.Background(), tasks)
	names := make([]string, 0, len(results))
	for _, res := range results {
		names = append(names, res.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"w-0", "w-1"}, names)
}
