package store

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/holiman/uint256"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stablecoin-swap/domain"
)

var (
	usdc  = domain.ID{0x01}
	usdt  = domain.ID{0x02}
	alice = domain.ID{0xa1}
)

func newRedisStore(t *testing.T) (*Redis, *redis.Client) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, "swap:"), client
}

// stores returns every Store implementation under test
func stores(t *testing.T) map[string]Store {
	rs, _ := newRedisStore(t)
	return map[string]Store{
		"memory": NewMemory(),
		"redis":  rs,
	}
}

func TestStore_AbsentEntries(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.View(context.Background(), func(tx Tx) error {
				_, ok, err := tx.Rate(context.Background(), usdc, usdt)
				require.NoError(t, err)
				assert.False(t, ok)

				b, err := tx.Balance(context.Background(), alice)
				require.NoError(t, err)
				assert.True(t, b.IsZero())
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestStore_UpdateCommits(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Update(ctx, func(tx Tx) error {
				if err := tx.SetRate(ctx, usdc, usdt, *uint256.NewInt(1_100_000)); err != nil {
					return err
				}
				if err := tx.SetBalance(ctx, alice, *uint256.NewInt(500)); err != nil {
					return err
				}
				// pending writes are visible inside the same transaction
				b, err := tx.Balance(ctx, alice)
				require.NoError(t, err)
				assert.Equal(t, uint64(500), b.Uint64())
				return nil
			})
			require.NoError(t, err)

			err = s.View(ctx, func(tx Tx) error {
				r, ok, err := tx.Rate(ctx, usdc, usdt)
				require.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, uint64(1_100_000), r.Uint64())

				// rates are directional
				_, ok, err = tx.Rate(ctx, usdt, usdc)
				require.NoError(t, err)
				assert.False(t, ok)

				b, err := tx.Balance(ctx, alice)
				require.NoError(t, err)
				assert.Equal(t, uint64(500), b.Uint64())
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestStore_UpdateRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Update(ctx, func(tx Tx) error {
				if err := tx.SetBalance(ctx, alice, *uint256.NewInt(42)); err != nil {
					return err
				}
				return boom
			})
			assert.ErrorIs(t, err, boom)

			err = s.View(ctx, func(tx Tx) error {
				b, err := tx.Balance(ctx, alice)
				require.NoError(t, err)
				assert.True(t, b.IsZero())
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestStore_ViewIsReadOnly(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.View(ctx, func(tx Tx) error {
				return tx.SetBalance(ctx, alice, *uint256.NewInt(1))
			})
			assert.ErrorIs(t, err, ErrReadOnly)

			err = s.View(ctx, func(tx Tx) error {
				return tx.SetRate(ctx, usdc, usdt, *uint256.NewInt(1))
			})
			assert.ErrorIs(t, err, ErrReadOnly)
		})
	}
}

func TestRedis_RetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	s, client := newRedisStore(t)

	attempts := 0
	err := s.Update(ctx, func(tx Tx) error {
		attempts++
		b, err := tx.Balance(ctx, alice)
		if err != nil {
			return err
		}
		if attempts == 1 {
			// a competing writer touches the watched key before EXEC
			require.NoError(t, client.Set(ctx, s.balanceKey(alice), "10", 0).Err())
		}
		var next domain.Amount
		next.Add(&b, uint256.NewInt(5))
		return tx.SetBalance(ctx, alice, next)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	v, err := client.Get(ctx, s.balanceKey(alice)).Result()
	require.NoError(t, err)
	assert.Equal(t, "15", v)
}

func TestRedis_GivesUpAfterRetries(t *testing.T) {
	ctx := context.Background()
	s, client := newRedisStore(t)
	s.retries = 2

	err := s.Update(ctx, func(tx Tx) error {
		if _, err := tx.Balance(ctx, alice); err != nil {
			return err
		}
		require.NoError(t, client.Incr(ctx, s.balanceKey(alice)).Err())
		return tx.SetBalance(ctx, alice, *uint256.NewInt(1))
	})
	assert.ErrorIs(t, err, ErrConflict)
}
