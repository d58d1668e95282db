package redisad

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"hoshizora/internal/adapters/observability"
	"hoshizora/internal/adapters/upstream"
)

// Quota is a fixed one-second window counter shared by every process that
// talks to the same redis. It limits calls per provider credential.
type Quota struct {
	c      *redis.Client
	prefix string
	limits map[string]int
	now    func() time.Time
}

func New(addr, pass string, db int, limits map[string]int) *Quota {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}), limits)
}

func NewWithClient(c *redis.Client, limits map[string]int) *Quota {
	return &Quota{c: c, prefix: "hoshizora:quota", limits: limits, now: time.Now}
}

// Admit counts one call for service. Services without a limit pass freely.
// Redis failures admit the call so the shared store is never a hard dependency.
func (q *Quota) Admit(ctx context.Context, service string) error {
	limit, ok := q.limits[service]
	if !ok || limit <= 0 {
		return nil
	}
	key := fmt.Sprintf("%s:%s:%d", q.prefix, service, q.now().Unix())

	pipe := q.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		observability.ObserveQuota(service, "error")
		log.Warn().Err(err).Str("service", service).Msg("quota store unavailable, admitting")
		return nil
	}
	if incr.Val() > int64(limit) {
		observability.ObserveQuota(service, "reject")
		return upstream.ErrQuotaExceeded
	}
	observability.ObserveQuota(service, "admit")
	return nil
}

// Wait blocks until Admit lets one call through or ctx ends. A rejected call
// sleeps to the start of the next window and tries again.
func (q *Quota) Wait(ctx context.Context, service string) error {
	for {
		err := q.Admit(ctx, service)
		if !errors.Is(err, upstream.ErrQuotaExceeded) {
			return err
		}
		now := q.now()
		pause := now.Truncate(time.Second).Add(time.Second).Sub(now)
		log.Debug().Str("service", service).Dur("pause", pause).Msg("quota window full, waiting")
		t := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (q *Quota) Ping(ctx context.Context) error { return q.c.Ping(ctx).Err() }

func (q *Quota) Close() error { return q.c.Close() }
