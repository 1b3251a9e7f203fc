package eventlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hilthontt/interchange/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	fieldNode       = "node"
	fieldRoom       = "room"
	fieldKind       = "kind"
	fieldEvent      = "event"
	fieldConnection = "conn"
	fieldPayload    = "payload"

	retryDelay = time.Second
)

type RedisStreamOptions struct {
	Stream       string
	MaxLen       int64
	BlockTimeout time.Duration
	BatchSize    int64
}

// RedisStream is a Log on a single Redis stream. Each node reads the whole
// stream with XREAD (no consumer group), so every node sees every record.
type RedisStream struct {
	client redis.UniversalClient
	opts   RedisStreamOptions
	logger *zap.SugaredLogger

	mu     sync.Mutex
	cancel []context.CancelFunc
	wg     sync.WaitGroup
}

func NewRedisStream(client redis.UniversalClient, opts RedisStreamOptions, logger *zap.SugaredLogger) *RedisStream {
	if opts.Stream == "" {
		opts.Stream = "interchange"
	}
	if opts.BlockTimeout <= 0 {
		opts.BlockTimeout = 5 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}

	return &RedisStream{
		client: client,
		opts:   opts,
		logger: logger,
	}
}

func (s *RedisStream) Append(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: s.opts.Stream,
		Values: map[string]any{
			fieldNode:       rec.Node,
			fieldRoom:       rec.Room,
			fieldKind:       string(rec.Kind),
			fieldEvent:      rec.Event,
			fieldConnection: rec.Connection,
			fieldPayload:    rec.Payload,
		},
	}
	if s.opts.MaxLen > 0 {
		args.MaxLen = s.opts.MaxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", s.opts.Stream, err)
	}
	return nil
}

func (s *RedisStream) Subscribe(ctx context.Context, handler Handler) error {
	lastID, err := s.tail(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLogUnavailable, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = append(s.cancel, cancel)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.consume(ctx, lastID, handler)
	}()

	return nil
}

// tail returns the id of the newest entry so consumption starts right after it.
func (s *RedisStream) tail(ctx context.Context) (string, error) {
	entries, err := s.client.XRevRangeN(ctx, s.opts.Stream, "+", "-", 1).Result()
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "0-0", nil
	}
	return entries[0].ID, nil
}

func (s *RedisStream) consume(ctx context.Context, lastID string, handler Handler) {
	for ctx.Err() == nil {
		streams, err := s.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{s.opts.Stream, lastID},
			Count:   s.opts.BatchSize,
			Block:   s.opts.BlockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			s.logger.Warnw("shared log read failed", "stream", s.opts.Stream, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				lastID = msg.ID

				rec, err := recordFromValues(msg.ID, msg.Values)
				if err != nil {
					s.logger.Warnw("skipping malformed log entry", "id", msg.ID, "error", err)
					continue
				}
				if err := handler(ctx, rec); err != nil {
					s.logger.Warnw("log entry handler failed", "id", msg.ID, "error", err)
				}
			}
		}
	}
}

func recordFromValues(id string, values map[string]any) (Record, error) {
	str := func(key string) string {
		v, _ := values[key].(string)
		return v
	}

	rec := Record{
		ID:         id,
		Node:       str(fieldNode),
		Room:       str(fieldRoom),
		Kind:       Kind(str(fieldKind)),
		Event:      str(fieldEvent),
		Connection: str(fieldConnection),
	}
	if payload := str(fieldPayload); payload != "" {
		rec.Payload = []byte(payload)
	}

	return rec, rec.Validate()
}

func (s *RedisStream) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close stops consumption. The Redis client belongs to the caller.
func (s *RedisStream) Close() error {
	s.mu.Lock()
	for _, cancel := range s.cancel {
		cancel()
	}
	s.cancel = nil
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}
