package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemory_SetGet(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	c.Set(ctx, "token:revoked:abc", "1", time.Minute)

	value, ok := c.Get(ctx, "token:revoked:abc")
	assert.True(t, ok)
	assert.Equal(t, "1", value)

	_, ok = c.Get(ctx, "token:revoked:missing")
	assert.False(t, ok)
}

func TestMemory_Expiry(t *testing.T) {
	now := time.Now()
	c := NewMemory()
	c.nowF = func() time.Time { return now }
	ctx := context.Background()

	c.Set(ctx, "key", "value", time.Minute)

	_, ok := c.Get(ctx, "key")
	assert.True(t, ok)

	now = now.Add(59 * time.Second)
	_, ok = c.Get(ctx, "key")
	assert.True(t, ok, "entry should still be live just before its TTL")

	now = now.Add(2 * time.Second)
	_, ok = c.Get(ctx, "key")
	assert.False(t, ok, "entry should expire once its TTL elapses")

	// The expired entry is dropped on read, not kept around.
	assert.NotContains(t, c.m, "key")
}

func TestMemory_NonPositiveTTLDropped(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	c.Set(ctx, "zero", "value", 0)
	c.Set(ctx, "negative", "value", -time.Second)

	_, ok := c.Get(ctx, "zero")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "negative")
	assert.False(t, ok)
}

func TestMemory_Overwrite(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	c.Set(ctx, "key", "first", time.Minute)
	c.Set(ctx, "key", "second", time.Minute)

	value, ok := c.Get(ctx, "key")
	assert.True(t, ok)
	assert.Equal(t, "second", value)
}
