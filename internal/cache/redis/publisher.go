package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Eternal-Darkness-07/GoQuant/internal/domain"
)

// publishQueueSize bounds the number of results waiting to be mirrored.
// Results beyond this are dropped rather than stalling the tick pipeline.
const publishQueueSize = 128

// PublisherConfig holds the destination channel and latest-result key.
type PublisherConfig struct {
	Channel   string
	LatestKey string
	LatestTTL time.Duration
}

// DropCounter is notified whenever a result is discarded because the publish
// queue is full.
type DropCounter interface {
	PublishDropped()
}

// Publisher mirrors simulation results into Redis: each result is published
// on a pub/sub channel for external consumers and the most recent one is kept
// under a fixed key with a short TTL.
//
// OnResult never blocks; results are queued and written by Run on its own
// goroutine so a slow Redis cannot back-pressure the market data path.
type Publisher struct {
	rdb     *redis.Client
	cfg     PublisherConfig
	queue   chan domain.SimulationResult
	dropped DropCounter
	logger  *slog.Logger
}

// NewPublisher creates a Publisher backed by the given Client. dropped may be
// nil when drop accounting is not needed.
func NewPublisher(c *Client, cfg PublisherConfig, dropped DropCounter, logger *slog.Logger) *Publisher {
	return &Publisher{
		rdb:     c.Underlying(),
		cfg:     cfg,
		queue:   make(chan domain.SimulationResult, publishQueueSize),
		dropped: dropped,
		logger:  logger.With("component", "redis_publisher"),
	}
}

// OnResult enqueues a result for mirroring. When the queue is full the result
// is dropped and counted; the live pipeline is never blocked.
func (p *Publisher) OnResult(res domain.SimulationResult) {
	select {
	case p.queue <- res:
	default:
		if p.dropped != nil {
			p.dropped.PublishDropped()
		}
	}
}

// Run drains the queue until ctx is cancelled. Publish failures are logged
// and the loop continues; the mirror is best-effort.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-p.queue:
			if err := p.publish(ctx, res); err != nil {
				p.logger.Warn("publish failed", "error", err)
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, res domain.SimulationResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("redis: marshal result: %w", err)
	}

	_, err = p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, p.cfg.Channel, payload)
		pipe.Set(ctx, p.cfg.LatestKey, payload, p.cfg.LatestTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: publish result: %w", err)
	}
	return nil
}

// QueueLen reports the number of results waiting to be published.
func (p *Publisher) QueueLen() int {
	return len(p.queue)
}
