package kv_test

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/mkrupp/storefront/internal/repo/kv"
)

func TestRedisStore_Get(t *testing.T) {
	t.Parallel()

	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, "test:")
	ctx := context.Background()

	mock.ExpectGet("test:storefront:products:v1").SetVal(`[{"id":"p1"}]`)
	mock.ExpectGet("test:storefront:session:v1").RedisNil()
	mock.ExpectGet("test:storefront:users:v1").SetErr(errors.New("connection reset"))

	value, ok, err := store.Get(ctx, "storefront:products:v1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"p1"}]`, string(value))

	_, ok, err = store.Get(ctx, "storefront:session:v1")
	require.NoError(t, err, "redis.Nil must read as absent")
	assert.False(t, ok)

	_, _, err = store.Get(ctx, "storefront:users:v1")
	require.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_SetRemove(t *testing.T) {
	t.Parallel()

	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, "")
	ctx := context.Background()

	value := []byte(`"u-admin"`)

	mock.ExpectSet("storefront:session:v1", value, 0).SetVal("OK")
	mock.ExpectDel("storefront:session:v1").SetVal(1)

	require.NoError(t, store.Set(ctx, "storefront:session:v1", value))
	require.NoError(t, store.Remove(ctx, "storefront:session:v1"))
	require.NoError(t, store.Close())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_DegradesThroughAdapter(t *testing.T) {
	t.Parallel()

	db, mock := redismock.NewClientMock()
	adapter := NewAdapter(NewRedisStore(db, ""))

	mock.ExpectGet("storefront:orders:v1").SetErr(errors.New("LOADING Redis is loading the dataset in memory"))

	res := Load(context.Background(), adapter, "storefront:orders:v1", []string{})
	assert.True(t, res.Degraded())
	assert.Equal(t, []string{}, res.Value)

	require.NoError(t, mock.ExpectationsWereMet())
}
