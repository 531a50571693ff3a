package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultRedisChannel     = "sentinel:findings"
	defaultRedisBufferSize  = 256
	defaultRedisSendTimeout = 5 * time.Second
)

// publisher is the subset of *redis.Client the sender needs.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisSenderConfig holds the configuration for creating a RedisSender.
type RedisSenderConfig struct {
	Addr        string
	Password    string
	DB          int
	Channel     string
	MinSeverity string

	// PerStationChannels additionally publishes to "<channel>:<station>".
	PerStationChannels bool

	// SendTimeout bounds each publish. Defaults to 5s.
	SendTimeout time.Duration
}

// RedisSender publishes each notification as JSON on a Redis channel.
// Send only enqueues; a single worker publishes in order.
type RedisSender struct {
	severityGate

	client     publisher
	logger     *zap.Logger
	channel    string
	perStation bool
	timeout    time.Duration
	sendCh     chan Notification
	wg         sync.WaitGroup
}

// NewRedisSender connects to Redis and verifies the connection with PING.
func NewRedisSender(ctx context.Context, logger *zap.Logger, cfg RedisSenderConfig) (*RedisSender, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return newRedisSender(rdb, logger, cfg)
}

func newRedisSender(client publisher, logger *zap.Logger, cfg RedisSenderConfig) (*RedisSender, error) {
	minSev, err := ParseSeverity(cfg.MinSeverity)
	if err != nil {
		return nil, err
	}
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = defaultRedisChannel
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = defaultRedisSendTimeout
	}
	return &RedisSender{
		severityGate: severityGate{min: minSev},
		client:       client,
		logger:       logger.Named("redis-sender"),
		channel:      channel,
		perStation:   cfg.PerStationChannels,
		timeout:      timeout,
		sendCh:       make(chan Notification, defaultRedisBufferSize),
	}, nil
}

// Name implements Sender.
func (rs *RedisSender) Name() string { return "redis" }

// Start implements Sender. Launches the publishing worker.
func (rs *RedisSender) Start(ctx context.Context) {
	rs.wg.Add(1)
	go rs.worker(ctx)
	rs.logger.Info("Redis sender started",
		zap.String("channel", rs.channel),
		zap.Bool("per_station", rs.perStation),
		zap.String("min_severity", string(rs.min)),
	)
}

// Send implements Sender. Enqueues the notification; a full buffer drops it.
func (rs *RedisSender) Send(ctx context.Context, n Notification) error {
	select {
	case rs.sendCh <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		senderResults.WithLabelValues(rs.Name(), "dropped").Inc()
		rs.logger.Warn("Redis send buffer full, dropping notification",
			zap.String("event_id", n.EventID))
		return fmt.Errorf("redis send buffer full")
	}
}

// worker publishes queued notifications. After ctx ends it drains what is
// already buffered, each publish bounded by the send timeout.
func (rs *RedisSender) worker(ctx context.Context) {
	defer rs.wg.Done()
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case n := <-rs.sendCh:
					rs.deliver(context.Background(), n)
				default:
					return
				}
			}
		case n := <-rs.sendCh:
			rs.deliver(ctx, n)
		}
	}
}

func (rs *RedisSender) deliver(ctx context.Context, n Notification) {
	ctx, cancel := context.WithTimeout(ctx, rs.timeout)
	defer cancel()
	if err := rs.publish(ctx, n); err != nil {
		rs.logger.Error("Redis publish failed",
			zap.String("event_id", n.EventID),
			zap.Error(err))
	}
}

func (rs *RedisSender) publish(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		senderResults.WithLabelValues(rs.Name(), "error").Inc()
		return fmt.Errorf("marshal notification %s: %w", n.EventID, err)
	}

	channels := []string{rs.channel}
	if rs.perStation && n.Finding.StationID != "" {
		channels = append(channels, rs.channel+":"+n.Finding.StationID)
	}
	for _, ch := range channels {
		if err := rs.client.Publish(ctx, ch, payload).Err(); err != nil {
			senderResults.WithLabelValues(rs.Name(), "error").Inc()
			return fmt.Errorf("publish %s to %s: %w", n.EventID, ch, err)
		}
	}
	senderResults.WithLabelValues(rs.Name(), "success").Inc()
	return nil
}

// Close waits for the worker to drain, then releases the connection pool.
// Call after the context passed to Start is cancelled.
func (rs *RedisSender) Close() error {
	rs.wg.Wait()
	return rs.client.Close()
}
