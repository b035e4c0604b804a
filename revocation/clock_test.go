package revocation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaharov-labs/stackhub/driver/memdriver"
)

func TestGet_DefaultsToZeroWhenUnset(t *testing.T) {
	c, err := New(memdriver.New("", 0), 16)
	require.NoError(t, err)

	ts, err := c.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 0, ts)
}

func TestSetThenGet_RoundTrips(t *testing.T) {
	c, err := New(memdriver.New("", 0), 16)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "alice", 1000))
	ts, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1000, ts)
}

func TestSet_IsMonotonic(t *testing.T) {
	c, err := New(memdriver.New("", 0), 16)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "alice", 1000))
	require.NoError(t, c.Set(ctx, "alice", 500)) // lower value must be ignored

	ts, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1000, ts)
}

func TestGet_PersistsAcrossNewClockInstances(t *testing.T) {
	drv := memdriver.New("", 0)
	ctx := context.Background()

	c1, err := New(drv, 16)
	require.NoError(t, err)
	require.NoError(t, c1.Set(ctx, "alice", 42))

	c2, err := New(drv, 16)
	require.NoError(t, err)
	ts, err := c2.Get(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 42, ts, "value must be read back from the driver, not only from the first clock's cache")
}

func TestGet_CachesIndependentlyPerPrincipal(t *testing.T) {
	c, err := New(memdriver.New("", 0), 16)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "alice", 10))
	require.NoError(t, c.Set(ctx, "bob", 20))

	aliceTS, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	bobTS, err := c.Get(ctx, "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 10, aliceTS)
	assert.EqualValues(t, 20, bobTS)
}
