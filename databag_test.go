package agentflow

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDataBag_Seed(t *testing.T) {
	bag := NewDataBag(map[string]any{"topic": "go", "depth": 2})

	val, ok := bag.Get("topic")
	require.True(t, ok)
	assert.Equal(t, "go", val)

	assert.True(t, bag.Has("depth"))
	assert.False(t, bag.Has("missing"))
	assert.Equal(t, 2, bag.Len())
}

func TestNewDataBag_SeedIsCopied(t *testing.T) {
	seed := map[string]any{"key": "original"}
	bag := NewDataBag(seed)

	seed["key"] = "mutated"

	val, _ := bag.Get("key")
	assert.Equal(t, "original", val)
}

func TestDataBag_SetAndMerge(t *testing.T) {
	bag := NewDataBag(nil)

	bag.Set("a", 1)
	bag.Merge(map[string]any{"b": 2, "c": 3})

	assert.Equal(t, 3, bag.Len())
	assert.Equal(t, []string{"a", "b", "c"}, bag.Keys())
}

func TestDataBag_NilValueIsPresent(t *testing.T) {
	bag := NewDataBag(nil)
	bag.Set("empty", nil)

	// A nil value still counts as defined
	assert.True(t, bag.Has("empty"))
	val, ok := bag.Get("empty")
	assert.True(t, ok)
	assert.Nil(t, val)
}

func TestDataBag_SnapshotIsolation(t *testing.T) {
	bag := NewDataBag(map[string]any{"a": 1})

	snap := bag.Snapshot()
	bag.Set("b", 2)

	assert.Len(t, snap, 1)
	assert.Equal(t, 2, bag.Len())

	snap["c"] = 3
	assert.False(t, bag.Has("c"))
}

func TestDataBag_ConcurrentWrites(t *testing.T) {
	bag := NewDataBag(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			bag.Merge(map[string]any{fmt.Sprintf("key-%d", n): n})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, bag.Len())
}
