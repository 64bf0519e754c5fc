// Package publish broadcasts accepted deals over Redis.
package publish

import (
	"context"
	"fmt"

	redis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/sugawarayuuta/sonnet"

	"btrader/internal/arbitrage"
	"btrader/internal/config"
)

// redisClient is the subset of *redis.Client used here.
type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Publisher sends every deal to a channel and keeps the latest deal per
// relationship in a hash.
type Publisher struct {
	client  redisClient
	channel string
	key     string
	logger  zerolog.Logger
}

func New(cfg config.Config, logger zerolog.Logger) *Publisher {
	r := cfg.Redis
	logger.Info().Str("addr", r.Addr).Int("db", r.DB).Msg("initializing Redis client")
	rdb := redis.NewClient(&redis.Options{
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,
	})
	return newPublisher(rdb, r.Channel, r.Key, logger)
}

func newPublisher(c redisClient, channel, key string, logger zerolog.Logger) *Publisher {
	return &Publisher{client: c, channel: channel, key: key, logger: logger}
}

func (p *Publisher) Name() string { return "redis" }

// Ping checks connectivity.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Publisher) Record(ctx context.Context, d arbitrage.Deal) error {
	payload, err := sonnet.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal deal: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("PUBLISH %s: %w", p.channel, err)
	}
	if p.key != "" {
		if err := p.client.HSet(ctx, p.key, d.Relationship, payload).Err(); err != nil {
			return fmt.Errorf("HSET %s: %w", p.key, err)
		}
	}
	p.logger.Debug().Str("relationship", d.Relationship).Str("channel", p.channel).Msg("deal published")
	return nil
}

func (p *Publisher) Close() error { return p.client.Close() }
