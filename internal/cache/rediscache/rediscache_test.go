package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetSet(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	ctx := context.Background()

	_, ok, err := c.Get(ctx, "quote:cust-1:2")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "quote:cust-1:2", []byte("90.00"), time.Minute))

	b, ok, err := c.Get(ctx, "quote:cust-1:2")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("90.00"), b)
}

func TestRedisCache_Invalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "quote:cust-1:2", []byte("90.00"), time.Minute))
	require.NoError(t, c.Set(ctx, "quote:cust-1:5", []byte("150.00"), time.Minute))
	require.NoError(t, c.Set(ctx, "quote:cust-2:2", []byte("80.00"), time.Minute))

	require.NoError(t, c.Invalidate(ctx, "quote:cust-1:*"))

	_, ok, err := c.Get(ctx, "quote:cust-1:2")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = c.Get(ctx, "quote:cust-2:2")
	require.NoError(t, err)
	require.True(t, ok)
}
