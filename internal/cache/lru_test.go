package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestLRU_GetPut(t *testing.T) {
	c := NewLRU[string, string](10, time.Minute)

	c.Put("0xc1@D1", "Water Well")
	v, ok := c.Get("0xc1@D1")
	require.True(t, ok)
	assert.Equal(t, "Water Well", v)

	_, ok = c.Get("0xc1@D2")
	assert.False(t, ok)
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []string
	c := NewLRU[string, int](3, time.Minute, WithEvictHook[string, int](func(k string, _ int) {
		evicted = append(evicted, k)
	}))

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)
	c.Get("a")
	c.Put("d", 4)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"b"}, evicted)
}

func TestLRU_TTLExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := NewLRU[string, int](4, 10*time.Second, WithClock[string, int](clock.Now))

	c.Put("k", 1)
	clock.Advance(9 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestLRU_ZeroTTLNeverExpires(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	c := NewLRU[string, int](2, 0, WithClock[string, int](clock.Now))

	c.Put("k", 1)
	clock.Advance(1000 * time.Hour)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestLRU_PutRefreshesValue(t *testing.T) {
	c := NewLRU[string, int](2, time.Minute)
	c.Put("k", 1)
	c.Put("k", 2)
	v, _ := c.Get("k")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_RemoveAndPurge(t *testing.T) {
	evictions := 0
	c := NewLRU[string, int](4, time.Minute, WithEvictHook[string, int](func(string, int) { evictions++ }))
	c.Put("a", 1)
	c.Put("b", 2)

	c.Remove("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, evictions)

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestLRU_MinimumCapacity(t *testing.T) {
	c := NewLRU[string, int](0, time.Minute)
	c.Put("a", 1)
	c.Put("b", 2)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_ConcurrentAccess(t *testing.T) {
	c := NewLRU[string, int](64, time.Minute)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("%d-%d", g, i%32)
				c.Put(key, i)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 64)
}
