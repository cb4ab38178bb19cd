package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeletionCache_TakeWithinWindow(t *testing.T) {
	// Given: one pending file deletion
	c := newDeletionCache(500 * time.Millisecond)
	t0 := time.Now()
	c.add("/r/a.txt", t0, false, nil)

	// When: an appearance elsewhere arrives 100ms later
	d := c.take("/r/b.txt", t0.Add(100*time.Millisecond), false)

	// Then: it consumes the deletion
	require.NotNil(t, d)
	assert.Equal(t, "/r/a.txt", d.path)
	assert.Equal(t, 0, c.count())
}

func TestDeletionCache_TakeOutsideWindow(t *testing.T) {
	c := newDeletionCache(500 * time.Millisecond)
	t0 := time.Now()
	c.add("/r/a.txt", t0, false, nil)

	assert.Nil(t, c.take("/r/b.txt", t0.Add(501*time.Millisecond), false))
	assert.Equal(t, 1, c.count())
}

func TestDeletionCache_KindMustMatch(t *testing.T) {
	c := newDeletionCache(500 * time.Millisecond)
	t0 := time.Now()
	c.add("/r/dir", t0, true, nil)

	assert.Nil(t, c.take("/r/file", t0.Add(time.Millisecond), false))
	assert.NotNil(t, c.take("/r/dir2", t0.Add(time.Millisecond), true))
}

func TestDeletionCache_SamePathWinsOverEarliest(t *testing.T) {
	// Given: two pending deletions
	c := newDeletionCache(500 * time.Millisecond)
	t0 := time.Now()
	c.add("/r/first", t0, false, nil)
	c.add("/r/second", t0.Add(10*time.Millisecond), false, nil)

	// When: /r/second reappears
	d := c.take("/r/second", t0.Add(20*time.Millisecond), false)

	// Then: the same-path entry is used and the other stays pending
	require.NotNil(t, d)
	assert.Equal(t, "/r/second", d.path)
	require.Equal(t, 1, c.count())

	// And: an unrelated appearance takes the earliest remaining
	d = c.take("/r/third", t0.Add(30*time.Millisecond), false)
	require.NotNil(t, d)
	assert.Equal(t, "/r/first", d.path)
}

func TestDeletionCache_ExpiredAndDrain(t *testing.T) {
	c := newDeletionCache(100 * time.Millisecond)
	t0 := time.Now()
	size := int64(42)
	c.add("/r/b", t0.Add(50*time.Millisecond), false, nil)
	c.add("/r/a", t0, false, &size)

	out := c.expired(t0.Add(100 * time.Millisecond))
	require.Len(t, out, 1)
	assert.Equal(t, "/r/a", out[0].path)
	assert.Equal(t, int64(42), *out[0].size)

	rest := c.drain()
	require.Len(t, rest, 1)
	assert.Equal(t, "/r/b", rest[0].path)
	assert.Equal(t, 0, c.count())
}
