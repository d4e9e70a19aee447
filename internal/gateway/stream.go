package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nidhogg/tappy/internal/store"
)

// DefaultStream is the Redis stream notifications are appended to.
const DefaultStream = "tappy:notifications"

// StreamRelay appends notifications to a capped Redis stream so other
// processes can follow the inbox.
type StreamRelay struct {
	rdb    *redis.Client
	stream string
	maxLen int64
	logger *zap.Logger
}

// NewStreamRelay connects to redisURL and verifies the server responds.
func NewStreamRelay(ctx context.Context, redisURL, stream string, maxLen int64, logger *zap.Logger) (*StreamRelay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if stream == "" {
		stream = DefaultStream
	}
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &StreamRelay{rdb: rdb, stream: stream, maxLen: maxLen, logger: logger}, nil
}

func (s *StreamRelay) Name() string { return "stream" }

// Deliver appends n as a JSON "data" field.
func (s *StreamRelay) Deliver(ctx context.Context, n *store.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	id, err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":   n.ID,
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	s.logger.Debug("appended notification", zap.String("stream", s.stream), zap.String("entry", id))
	return nil
}

// Tail follows the stream from after lastID ("$" for new entries only,
// "0" for everything retained). The channel closes when ctx ends.
func (s *StreamRelay) Tail(ctx context.Context, lastID string) <-chan *store.Notification {
	ch := make(chan *store.Notification, 16)
	if lastID == "" {
		lastID = "$"
	}

	go func() {
		defer close(ch)
		for {
			if ctx.Err() != nil {
				return
			}

			results, err := s.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{s.stream, lastID},
				Count:   10,
				Block:   2 * time.Second,
			}).Result()
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				if !errors.Is(err, redis.Nil) {
					s.logger.Debug("xread failed", zap.Error(err))
					time.Sleep(200 * time.Millisecond)
				}
				continue
			}

			for _, r := range results {
				for _, msg := range r.Messages {
					lastID = msg.ID
					data, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					var n store.Notification
					if json.Unmarshal([]byte(data), &n) != nil {
						continue
					}
					select {
					case ch <- &n:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch
}

// Close shuts down the Redis connection.
func (s *StreamRelay) Close() error {
	return s.rdb.Close()
}
