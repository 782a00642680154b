package redisclient

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	opts, err := Options("redis://:secret@cache.internal:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	opts, err = Options("localhost:6379")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)

	_, err = Options("redis://host:notaport")
	assert.Error(t, err)
}

func TestConnect(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := Connect(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()

	assert.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	mr.CheckGet(t, "k", "v")
}

func TestConnect_Empty(t *testing.T) {
	client, err := Connect(context.Background(), "  ")
	assert.NoError(t, err)
	assert.Nil(t, client)
}

func TestConnect_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	client, err := Connect(context.Background(), addr)
	assert.Error(t, err)
	assert.Nil(t, client)
}
