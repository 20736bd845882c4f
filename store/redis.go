package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"stablecoin-swap/domain"
)

// DefaultRedisRetries how many times Update re-runs after losing an optimistic race
const DefaultRedisRetries = 16

// Redis is a Store backed by a Redis server. Updates use WATCH/MULTI/EXEC: every key
// read inside fn is watched, writes are queued and applied in one EXEC, and the whole
// update is re-run if a watched key changed in the meantime.
type Redis struct {
	client  redis.UniversalClient
	prefix  string
	retries int
}

// NewRedis returns a Redis store. All keys are namespaced by prefix.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{
		client:  client,
		prefix:  prefix,
		retries: DefaultRedisRetries,
	}
}

func (s *Redis) rateKey(from, to domain.ID) string {
	return fmt.Sprintf("%srate:%v:%v", s.prefix, from, to)
}

func (s *Redis) balanceKey(id domain.ID) string {
	return fmt.Sprintf("%sbalance:%v", s.prefix, id)
}

func (s *Redis) View(ctx context.Context, fn func(tx Tx) error) error {
	return fn(&redisTx{s: s, cmd: s.client, readOnly: true})
}

func (s *Redis) Update(ctx context.Context, fn func(tx Tx) error) error {
	for i := 0; i < s.retries; i++ {
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			tx := &redisTx{s: s, cmd: rtx, watch: rtx, writes: map[string]string{}}
			if err := fn(tx); err != nil {
				return err
			}
			if len(tx.order) == 0 {
				return nil
			}
			_, err := rtx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				for _, key := range tx.order {
					p.Set(ctx, key, tx.writes[key], 0)
				}
				return nil
			})
			return err
		})
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrConflict
}

// getter is satisfied by both the client and a watched *redis.Tx
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// redisTx buffers writes in memory until the surrounding Update commits them
type redisTx struct {
	s        *Redis
	cmd      getter
	watch    *redis.Tx
	readOnly bool

	writes map[string]string
	order  []string
}

// get reads key, preferring a pending write, and reports whether it exists
func (tx *redisTx) get(ctx context.Context, key string) (string, bool, error) {
	if v, ok := tx.writes[key]; ok {
		return v, true, nil
	}
	if tx.watch != nil {
		if err := tx.watch.Watch(ctx, key).Err(); err != nil {
			return "", false, fmt.Errorf("watch %v: %w", key, err)
		}
	}
	v, err := tx.cmd.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %v: %w", key, err)
	}
	return v, true, nil
}

func (tx *redisTx) set(key, value string) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	if _, ok := tx.writes[key]; !ok {
		tx.order = append(tx.order, key)
	}
	tx.writes[key] = value
	return nil
}

func (tx *redisTx) Rate(ctx context.Context, from, to domain.ID) (domain.Rate, bool, error) {
	var r domain.Rate
	v, ok, err := tx.get(ctx, tx.s.rateKey(from, to))
	if err != nil || !ok {
		return r, false, err
	}
	if err := r.SetFromDecimal(v); err != nil {
		return r, false, fmt.Errorf("decoding rate [%v -> %v]: %w", from, to, err)
	}
	return r, true, nil
}

func (tx *redisTx) SetRate(_ context.Context, from, to domain.ID, rate domain.Rate) error {
	return tx.set(tx.s.rateKey(from, to), rate.Dec())
}

func (tx *redisTx) Balance(ctx context.Context, id domain.ID) (domain.Amount, error) {
	var b domain.Amount
	v, ok, err := tx.get(ctx, tx.s.balanceKey(id))
	if err != nil || !ok {
		return b, err
	}
	if err := b.SetFromDecimal(v); err != nil {
		return b, fmt.Errorf("decoding balance [%v]: %w", id, err)
	}
	return b, nil
}

func (tx *redisTx) SetBalance(_ context.Context, id domain.ID, amount domain.Amount) error {
	return tx.set(tx.s.balanceKey(id), amount.Dec())
}
