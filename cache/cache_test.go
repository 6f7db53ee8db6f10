package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPutGetHit(t *testing.T) {
	c := New(4, time.Hour)
	c.Put("p", "src1", "reg1", "output")
	v, ok := c.Get("p", "src1", "reg1")
	assert.True(t, ok)
	assert.Equal(t, "output", v)
	assert.Equal(t, uint64(1), c.Stats().Hits)
}

func TestGetHashMismatchEvictsAndCountsMiss(t *testing.T) {
	c := New(4, time.Hour)
	c.Put("p", "src1", "reg1", "output")
	_, ok := c.Get("p", "src2", "reg1")
	assert.False(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Misses)
	assert.Equal(t, uint64(1), c.Stats().Evictions)
	assert.Equal(t, 0, c.Size())
}

func TestGetExpiredEntryMisses(t *testing.T) {
	c := New(4, time.Millisecond)
	c.Put("p", "src1", "reg1", "output")
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("p", "src1", "reg1")
	assert.False(t, ok)
}

func TestPutAtCapacityEvictsOldestByLastAccess(t *testing.T) {
	c := New(2, time.Hour)
	c.Put("a", "s", "r", 1)
	time.Sleep(time.Millisecond)
	c.Put("b", "s", "r", 2)
	_, _ = c.Get("b", "s", "r") // touch b so a is strictly oldest
	time.Sleep(time.Millisecond)
	c.Put("c", "s", "r", 3)

	_, aOK := c.Get("a", "s", "r")
	_, bOK := c.Get("b", "s", "r")
	_, cOK := c.Get("c", "s", "r")
	assert.False(t, aOK)
	assert.True(t, bOK)
	assert.True(t, cOK)
}

func TestInvalidateAndInvalidateAll(t *testing.T) {
	c := New(4, time.Hour)
	c.Put("a", "s", "r", 1)
	c.Put("b", "s", "r", 2)
	c.Invalidate("a")
	assert.Equal(t, 1, c.Size())
	c.InvalidateAll()
	assert.Equal(t, 0, c.Size())
}

func TestHashSourceDeterministic(t *testing.T) {
	assert.Equal(t, HashSource("abc"), HashSource("abc"))
	assert.NotEqual(t, HashSource("abc"), HashSource("abd"))
}

func TestHashRegistryOrderIndependent(t *testing.T) {
	assert.Equal(t, HashRegistry([]string{"a", "b"}), HashRegistry([]string{"b", "a"}))
	assert.NotEqual(t, HashRegistry([]string{"a", "b"}), HashRegistry([]string{"a", "b", "c"}))
}
