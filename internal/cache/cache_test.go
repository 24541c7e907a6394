package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

// newMiniCache поднимает miniredis и возвращает кэш поверх него.
func newMiniCache(t *testing.T) (RevocationCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := NewRedisCache("redis://"+mr.Addr(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c, mr
}

func TestMarkConsumed_ThenIsConsumed(t *testing.T) {
	c, _ := newMiniCache(t)
	ctx := context.Background()

	ok, err := c.IsConsumed(ctx, "h1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.MarkConsumed(ctx, "h1", time.Hour))

	ok, err = c.IsConsumed(ctx, "h1")
	require.NoError(t, err)
	require.True(t, ok)

	// Другой хэш не затронут.
	ok, err = c.IsConsumed(ctx, "h2")
	require.NoError(t, err)
	require.False(t, ok)
}

// TestMarkConsumed_TTLExpires — надгробие живёт не дольше остатка TTL токена.
func TestMarkConsumed_TTLExpires(t *testing.T) {
	c, mr := newMiniCache(t)
	ctx := context.Background()

	require.NoError(t, c.MarkConsumed(ctx, "h1", time.Minute))

	mr.FastForward(2 * time.Minute)

	ok, err := c.IsConsumed(ctx, "h1")
	require.NoError(t, err)
	require.False(t, ok)
}

// TestMarkConsumed_NonPositiveTTL_NoOp — просроченный токен не помечается:
// он и так не пройдёт логическую проверку в БД.
func TestMarkConsumed_NonPositiveTTL_NoOp(t *testing.T) {
	c, _ := newMiniCache(t)
	ctx := context.Background()

	require.NoError(t, c.MarkConsumed(ctx, "h1", 0))
	require.NoError(t, c.MarkConsumed(ctx, "h2", -time.Minute))

	ok, err := c.IsConsumed(ctx, "h1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNewRedisCache_DefaultPrefix_And_BadURL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	c, err := NewRedisCache("redis://"+mr.Addr(), "")
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	require.NoError(t, c.MarkConsumed(context.Background(), "abc", time.Hour))
	require.True(t, mr.Exists("auth:rt:consumed:abc"))

	_, err = NewRedisCache("::broken::", "")
	require.Error(t, err)
}

// TestIsConsumed_ErrorAfterClose — после закрытия клиента ошибки отдаются
// наружу, а не маскируются под промах.
func TestIsConsumed_ErrorAfterClose(t *testing.T) {
	c, mr := newMiniCache(t)
	mr.Close()

	_, err := c.IsConsumed(context.Background(), "h1")
	require.Error(t, err)
}
