package stream

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLog implements Log on Redis Streams.
type RedisLog struct {
	client *redis.Client
	block  time.Duration
	logger *zap.Logger
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	URL          string // redis:// URL; takes precedence over Addr
	Addr         string
	BlockTimeout time.Duration // server-side XREADGROUP block
	Logger       *zap.Logger
}

// NewRedisLog connects to Redis and verifies the connection.
func NewRedisLog(ctx context.Context, cfg *RedisConfig) (*RedisLog, error) {
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: cfg.Addr}
	}

	client := redis.NewClient(opts)

	err := client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	block := cfg.BlockTimeout
	if block <= 0 {
		block = 2 * time.Second
	}

	cfg.Logger.Info("redis-log-connected", zap.String("addr", opts.Addr))

	return &RedisLog{
		client: client,
		block:  block,
		logger: cfg.Logger,
	}, nil
}

// Append adds a record via XADD. Network errors are logged and returned; the
// caller decides whether its own layer retries.
func (l *RedisLog) Append(ctx context.Context, stream string, values map[string]string) error {
	args := make(map[string]interface{}, len(values))
	for k, v := range values {
		args[k] = v
	}

	err := l.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: args,
	}).Err()
	if err != nil {
		AppendErrorsTotal.WithLabelValues(stream).Inc()
		l.logger.Error("stream-append-failed", zap.String("stream", stream), zap.Error(err))
		return fmt.Errorf("xadd %s: %w", stream, err)
	}

	RecordsAppendedTotal.WithLabelValues(stream).Inc()
	return nil
}

// CreateGroup issues XGROUP CREATE with MKSTREAM, treating BUSYGROUP as
// success.
func (l *RedisLog) CreateGroup(ctx context.Context, stream, group string) error {
	err := l.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			l.logger.Debug("consumer-group-exists",
				zap.String("stream", stream),
				zap.String("group", group))
			return nil
		}
		return fmt.Errorf("xgroup create %s/%s: %w", stream, group, err)
	}

	l.logger.Info("consumer-group-created",
		zap.String("stream", stream),
		zap.String("group", group))
	return nil
}

// ReadGroup reads undelivered records (">") for the group, blocking at most
// the configured server-side timeout.
func (l *RedisLog) ReadGroup(ctx context.Context, stream, group, consumer string, count int64) ([]Message, error) {
	res, err := l.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    l.block,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("xreadgroup %s/%s: %w", stream, group, err)
	}

	var messages []Message
	for _, s := range res {
		for _, m := range s.Messages {
			values := make(map[string]string, len(m.Values))
			for k, v := range m.Values {
				str, ok := v.(string)
				if !ok {
					str = fmt.Sprintf("%v", v)
				}
				values[k] = str
			}
			messages = append(messages, Message{ID: m.ID, Values: values})
		}
	}

	RecordsReadTotal.WithLabelValues(stream, group).Add(float64(len(messages)))
	return messages, nil
}

// Ack acknowledges a processed record via XACK.
func (l *RedisLog) Ack(ctx context.Context, stream, group, id string) error {
	err := l.client.XAck(ctx, stream, group, id).Err()
	if err != nil {
		return fmt.Errorf("xack %s/%s/%s: %w", stream, group, id, err)
	}
	RecordsAckedTotal.WithLabelValues(stream, group).Inc()
	return nil
}

// Close closes the Redis connection.
func (l *RedisLog) Close() error {
	return l.client.Close()
}
