package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateCachesWithinTTL(t *testing.T) {
	c := New(time.Minute)
	calls := 0
	load := func() (interface{}, error) {
		calls++
		return "value", nil
	}

	v, err := c.GetOrCreate("stats", load)
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	v, err = c.GetOrCreate("stats", load)
	require.NoError(t, err)
	assert.Equal(t, "value", v)
	assert.Equal(t, 1, calls)
}

func TestGetOrCreateReloadsAfterExpiry(t *testing.T) {
	c := New(-time.Second)
	calls := 0
	load := func() (interface{}, error) {
		calls++
		return calls, nil
	}

	_, err := c.GetOrCreate("stats", load)
	require.NoError(t, err)
	v, err := c.GetOrCreate("stats", load)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestInvalidateByPrefix(t *testing.T) {
	c := New(time.Minute)
	calls := map[string]int{}
	load := func(key string) func() (interface{}, error) {
		return func() (interface{}, error) {
			calls[key]++
			return key, nil
		}
	}

	_, _ = c.GetOrCreate("vulns:all", load("vulns:all"))
	_, _ = c.GetOrCreate("stats", load("stats"))

	c.Invalidate("vulns:")

	_, _ = c.GetOrCreate("vulns:all", load("vulns:all"))
	_, _ = c.GetOrCreate("stats", load("stats"))

	assert.Equal(t, 2, calls["vulns:all"])
	assert.Equal(t, 1, calls["stats"])
}

func TestNilCachePassesThrough(t *testing.T) {
	var c *Cache
	calls := 0
	load := func() (interface{}, error) {
		calls++
		return "value", nil
	}

	for i := 0; i < 2; i++ {
		v, err := c.GetOrCreate("stats", load)
		require.NoError(t, err)
		assert.Equal(t, "value", v)
	}
	assert.Equal(t, 2, calls)
	c.Invalidate("")
}
