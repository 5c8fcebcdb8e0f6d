package cache

import (
	"testing"
	"time"

	"payback/internal/core"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[core.Period, string], *clock) {
	c := NewLRUCache[core.Period, string](size, ttl)
	clk := &clock{t: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	c.now = clk.now
	return c, clk
}

var (
	may  = core.Period{Month: 5, Year: 2024}
	june = core.Period{Month: 6, Year: 2024}
	july = core.Period{Month: 7, Year: 2024}
)

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)

	c.Set(may, "may")
	c.Set(june, "june")
	_, _ = c.Get(may)
	c.Set(july, "july")

	_, ok := c.Get(june)
	assert.False(t, ok, "june should have been evicted")
	v, ok := c.Get(may)
	assert.True(t, ok)
	assert.Equal(t, "may", v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCacheExpiry(t *testing.T) {
	c, clk := newTestCache(4, time.Minute)

	c.Set(may, "may")
	clk.t = clk.t.Add(30 * time.Second)
	c.Set(june, "june")

	clk.t = clk.t.Add(45 * time.Second)
	_, ok := c.Get(may)
	assert.False(t, ok, "expired entry returned")

	assert.Equal(t, 0, c.CleanExpired())
	clk.t = clk.t.Add(time.Minute)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 0, c.Size())
}

func TestLRUCacheOverwriteAndPurge(t *testing.T) {
	c, _ := newTestCache(4, time.Minute)

	c.Set(june, "old")
	c.Set(june, "new")
	v, _ := c.Get(june)
	assert.Equal(t, "new", v)

	c.Set(july, "july")
	c.Delete(july)
	assert.Equal(t, 1, c.Size())

	c.Purge()
	assert.Equal(t, 0, c.Size())
	_, ok := c.Get(june)
	assert.False(t, ok)
}

func TestManagerCleansAndStops(t *testing.T) {
	c, clk := newTestCache(4, time.Minute)
	c.Set(june, "june")
	clk.t = clk.t.Add(2 * time.Minute)

	m := NewManager()
	m.Register(c)
	assert.Equal(t, 1, m.CleanAll())

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := NewManager()
	m.Stop()
}
