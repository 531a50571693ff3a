package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/potooio/sentinel/internal/normalizer"
)

// maxLineBytes bounds a single envelope line.
const maxLineBytes = 1 << 20

// ClientOptions configures the stream client.
type ClientOptions struct {
	// Address is the host:port of the telemetry server.
	Address string

	// ReconnectInterval is the base interval between reconnection attempts
	ReconnectInterval time.Duration

	// MaxReconnectInterval is the maximum interval between reconnection attempts
	MaxReconnectInterval time.Duration

	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration

	// BufferSize is the size of the envelope channel buffer
	BufferSize int

	// Logger for the client
	Logger *zap.Logger
}

// DefaultClientOptions returns default options for the stream client.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Address:              "localhost:8765",
		ReconnectInterval:    time.Second,
		MaxReconnectInterval: time.Minute,
		DialTimeout:          5 * time.Second,
		BufferSize:           1000,
		Logger:               zap.NewNop(),
	}
}

// Client connects to the telemetry server and streams newline-delimited
// JSON envelopes. It reconnects with exponential backoff until closed.
type Client struct {
	opts   ClientOptions
	logger *zap.Logger

	state   ConnectionState
	stateMu sync.RWMutex

	envelopes chan normalizer.Envelope
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	reconnects uint64
	received   uint64
	malformed  uint64
	dropped    uint64
}

// NewClient creates a new stream client and starts the connection loop.
func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	defaults := DefaultClientOptions()
	if opts.Logger == nil {
		opts.Logger = defaults.Logger
	}
	if opts.Address == "" {
		opts.Address = defaults.Address
	}
	if opts.ReconnectInterval == 0 {
		opts.ReconnectInterval = defaults.ReconnectInterval
	}
	if opts.MaxReconnectInterval == 0 {
		opts.MaxReconnectInterval = defaults.MaxReconnectInterval
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = defaults.DialTimeout
	}
	if opts.BufferSize == 0 {
		opts.BufferSize = defaults.BufferSize
	}
	if _, _, err := net.SplitHostPort(opts.Address); err != nil {
		return nil, fmt.Errorf("invalid stream address %q: %w", opts.Address, err)
	}

	c := &Client{
		opts:      opts,
		logger:    opts.Logger.Named("stream"),
		envelopes: make(chan normalizer.Envelope, opts.BufferSize),
		stopCh:    make(chan struct{}),
		state:     StateDisconnected,
	}

	c.wg.Add(1)
	go c.connectionLoop(ctx)

	return c, nil
}

// Envelopes returns the channel of received envelopes.
// The channel is closed when the client stops.
func (c *Client) Envelopes() <-chan normalizer.Envelope {
	return c.envelopes
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// IsConnected returns true if currently connected to the server.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Stats returns client statistics.
func (c *Client) Stats() ClientStats {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return ClientStats{
		State:      c.state,
		Reconnects: c.reconnects,
		Received:   c.received,
		Malformed:  c.malformed,
		Dropped:    c.dropped,
	}
}

// Close stops the client and waits for the connection loop to exit.
func (c *Client) Close() error {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	c.wg.Wait()
	return nil
}

// connectionLoop manages the connection with reconnection.
func (c *Client) connectionLoop(ctx context.Context) {
	defer c.wg.Done()
	defer close(c.envelopes)
	defer c.setState(StateDisconnected)

	reconnectInterval := c.opts.ReconnectInterval

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("context cancelled, stopping connection loop")
			return
		case <-c.stopCh:
			c.logger.Info("stop signal received, stopping connection loop")
			return
		default:
		}

		c.setState(StateConnecting)

		conn, err := c.connect(ctx)
		if err != nil {
			c.logger.Warn("failed to connect to telemetry server",
				zap.String("address", c.opts.Address),
				zap.Error(err),
				zap.Duration("retry_in", reconnectInterval))

			select {
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			case <-time.After(reconnectInterval):
				reconnectInterval = c.nextReconnectInterval(reconnectInterval)
			}
			continue
		}

		reconnectInterval = c.opts.ReconnectInterval

		c.setState(StateConnected)
		c.logger.Info("connected to telemetry server", zap.String("address", c.opts.Address))

		err = c.readLines(ctx, conn)
		if err != nil {
			c.logger.Warn("telemetry stream disconnected", zap.Error(err))
		} else {
			c.logger.Info("telemetry server closed the stream")
		}

		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		default:
		}

		c.stateMu.Lock()
		c.state = StateReconnecting
		c.reconnects++
		c.stateMu.Unlock()
		streamReconnects.Inc()
	}
}

// connect dials the telemetry server.
func (c *Client) connect(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: c.opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.opts.Address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.opts.Address, err)
	}
	return conn, nil
}

// readLines decodes envelopes until the connection ends. The connection is
// closed when the context ends or the client stops, which unblocks the read.
func (c *Client) readLines(ctx context.Context, conn net.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-c.stopCh:
		case <-done:
		}
		_ = conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var env normalizer.Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			c.recordMalformed(err)
			continue
		}
		if !c.deliver(ctx, env) {
			return nil
		}
	}

	err := scanner.Err()
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("reading stream: %w", err)
}

// deliver hands an envelope to the consumer. A full buffer drops the
// envelope rather than stalling the socket. Returns false once stopping.
func (c *Client) deliver(ctx context.Context, env normalizer.Envelope) bool {
	select {
	case <-ctx.Done():
		return false
	case <-c.stopCh:
		return false
	default:
	}

	select {
	case c.envelopes <- env:
		c.stateMu.Lock()
		c.received++
		c.stateMu.Unlock()
		streamLines.WithLabelValues("received").Inc()
	default:
		c.stateMu.Lock()
		c.dropped++
		c.stateMu.Unlock()
		streamLines.WithLabelValues("dropped").Inc()
		c.logger.Warn("envelope channel full, dropping record",
			zap.String("dataset", string(env.Dataset)),
			zap.String("station", env.Event.StationID))
	}
	return true
}

func (c *Client) recordMalformed(err error) {
	c.stateMu.Lock()
	c.malformed++
	c.stateMu.Unlock()
	streamLines.WithLabelValues("malformed").Inc()
	c.logger.Warn("failed to parse stream line", zap.Error(err))
}

// setState updates the connection state.
func (c *Client) setState(state ConnectionState) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state = state
}

// nextReconnectInterval calculates the next reconnect interval with exponential backoff.
func (c *Client) nextReconnectInterval(current time.Duration) time.Duration {
	next := current * 2
	if next > c.opts.MaxReconnectInterval {
		return c.opts.MaxReconnectInterval
	}
	return next
}
