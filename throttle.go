package account

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
)

// Registration throttle defaults: more than MaxRegisterAttempts from one IP
// inside RegisterThrottleWindow trips the throttle.
var (
	MaxRegisterAttempts    = 3
	RegisterThrottleWindow = "1h"
)

// RegisterThrottle answers whether an IP exceeded the registration policy.
// The manager only consumes the boolean; counting state belongs to the
// implementation.
type RegisterThrottle interface {
	IsThrottled(ctx context.Context, ip string) (bool, error)
	Record(ctx context.Context, ip string) error
}

// DBRegisterThrottle keeps one RegisterAttempt row per IP.
type DBRegisterThrottle struct {
	db     *bun.DB
	limit  int
	window string
}

func NewDBRegisterThrottle(db *bun.DB) *DBRegisterThrottle {
	return &DBRegisterThrottle{
		db:     db,
		limit:  MaxRegisterAttempts,
		window: RegisterThrottleWindow,
	}
}

func (t *DBRegisterThrottle) WithLimit(limit int, window string) *DBRegisterThrottle {
	t.limit = limit
	t.window = window
	return t
}

func (t *DBRegisterThrottle) IsThrottled(ctx context.Context, ip string) (bool, error) {
	if ip == "" {
		return false, nil
	}

	record := &RegisterAttempt{}
	err := t.db.NewSelect().
		Model(record).
		Where("?TableAlias.ip_address = ?", ip).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read register attempts")
	}

	if record.LastAttemptAt == nil {
		return false, nil
	}

	expired, err := IsOutsideThresholdPeriod(*record.LastAttemptAt, t.window)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to evaluate throttle window")
	}

	if expired {
		return false, nil
	}

	return record.Attempts >= t.limit, nil
}

func (t *DBRegisterThrottle) Record(ctx context.Context, ip string) error {
	if ip == "" {
		return nil
	}

	now := time.Now()
	record := &RegisterAttempt{
		IPAddress:     ip,
		Attempts:      1,
		LastAttemptAt: &now,
	}
	prepareRegisterAttemptDefaults(record)

	_, err := t.db.NewInsert().
		Model(record).
		On("CONFLICT (ip_address) DO UPDATE").
		Set("attempts = CASE WHEN last_attempt_at < ? THEN 1 ELSE attempts + 1 END", windowStart(t.window, now)).
		Set("last_attempt_at = ?", now).
		Set("updated_at = ?", now).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record register attempt")
	}

	return nil
}

func windowStart(window string, now time.Time) time.Time {
	duration, err := time.ParseDuration(window)
	if err != nil {
		duration = time.Hour
	}
	return now.Add(-duration)
}

// RedisRegisterThrottle counts attempts in Redis with a TTL per IP. Useful
// when registrations are served by more than one process and the database
// should not absorb the write traffic.
type RedisRegisterThrottle struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRedisRegisterThrottle(client *redis.Client) *RedisRegisterThrottle {
	window, err := time.ParseDuration(RegisterThrottleWindow)
	if err != nil {
		window = time.Hour
	}

	return &RedisRegisterThrottle{
		client: client,
		limit:  MaxRegisterAttempts,
		window: window,
		prefix: "account:register:",
	}
}

func (t *RedisRegisterThrottle) WithLimit(limit int, window time.Duration) *RedisRegisterThrottle {
	t.limit = limit
	t.window = window
	return t
}

func (t *RedisRegisterThrottle) IsThrottled(ctx context.Context, ip string) (bool, error) {
	if ip == "" {
		return false, nil
	}

	count, err := t.client.Get(ctx, t.prefix+ip).Int()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read register throttle counter")
	}

	return count >= t.limit, nil
}

func (t *RedisRegisterThrottle) Record(ctx context.Context, ip string) error {
	if ip == "" {
		return nil
	}

	key := t.prefix + ip
	pipe := t.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, t.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record register attempt")
	}

	return nil
}
