package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultWebhookTimeout     = 10 * time.Second
	defaultWebhookBufferSize  = 100
	defaultWebhookMaxAttempts = 3
	userAgent                 = "retail-sentinel/v1"

	webhookEnvelopeType = "sentinel.finding"
)

// WebhookEnvelope is the JSON payload POSTed to webhook endpoints.
type WebhookEnvelope struct {
	// ID is "<run id>:<event id>". Retries reuse it so receivers can dedupe.
	ID            string       `json:"id"`
	Type          string       `json:"type"`
	SchemaVersion string       `json:"schemaVersion"`
	Timestamp     string       `json:"timestamp"`
	Data          Notification `json:"data"`
}

// WebhookSenderConfig holds the configuration for creating a WebhookSender.
type WebhookSenderConfig struct {
	URL         string
	Timeout     time.Duration
	MinSeverity string
	AuthToken   string

	// MaxAttempts caps deliveries per notification. Defaults to 3.
	MaxAttempts int

	// RetryBackoff is the first retry delay; it doubles per attempt. Defaults to 1s.
	RetryBackoff time.Duration
}

// WebhookSender POSTs findings to an HTTP endpoint. A single worker
// delivers them in the order they were logged.
type WebhookSender struct {
	severityGate

	httpClient  *http.Client
	logger      *zap.Logger
	url         string
	authToken   string
	maxAttempts int
	backoff     time.Duration
	sendCh      chan Notification
	wg          sync.WaitGroup
	now         func() time.Time
}

// NewWebhookSender creates a WebhookSender. Returns an error if the URL is invalid.
func NewWebhookSender(logger *zap.Logger, cfg WebhookSenderConfig) (*WebhookSender, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("webhook URL must include a host")
	}
	minSev, err := ParseSeverity(cfg.MinSeverity)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultWebhookMaxAttempts
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	return &WebhookSender{
		severityGate: severityGate{min: minSev},
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger.Named("webhook-sender"),
		url:          cfg.URL,
		authToken:    cfg.AuthToken,
		maxAttempts:  attempts,
		backoff:      backoff,
		sendCh:       make(chan Notification, defaultWebhookBufferSize),
		now:          time.Now,
	}, nil
}

// Name implements Sender.
func (ws *WebhookSender) Name() string { return "webhook" }

// Start implements Sender. Launches the delivery worker.
func (ws *WebhookSender) Start(ctx context.Context) {
	ws.wg.Add(1)
	go ws.worker(ctx)
	ws.logger.Info("Webhook sender started",
		zap.String("url", RedactURL(ws.url)),
		zap.Int("max_attempts", ws.maxAttempts),
		zap.String("min_severity", string(ws.min)),
	)
}

// Close waits for the worker to drain queued notifications.
// Call after the context passed to Start is cancelled.
func (ws *WebhookSender) Close() error {
	ws.wg.Wait()
	return nil
}

// Send implements Sender. Enqueues the notification; a full buffer drops it.
func (ws *WebhookSender) Send(ctx context.Context, n Notification) error {
	select {
	case ws.sendCh <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		senderResults.WithLabelValues(ws.Name(), "dropped").Inc()
		ws.logger.Warn("Webhook send buffer full, dropping notification",
			zap.String("event_id", n.EventID))
		return fmt.Errorf("webhook send buffer full")
	}
}

// worker delivers queued notifications. After ctx ends it makes one
// attempt for each notification still buffered, then exits.
func (ws *WebhookSender) worker(ctx context.Context) {
	defer ws.wg.Done()
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case n := <-ws.sendCh:
					drainCtx, cancel := context.WithTimeout(context.Background(), ws.httpClient.Timeout)
					ws.report(n, ws.post(drainCtx, ws.envelope(n)))
					cancel()
				default:
					return
				}
			}
		case n := <-ws.sendCh:
			ws.report(n, ws.deliver(ctx, ws.envelope(n)))
		}
	}
}

func (ws *WebhookSender) envelope(n Notification) WebhookEnvelope {
	return WebhookEnvelope{
		ID:            n.RunID + ":" + n.EventID,
		Type:          webhookEnvelopeType,
		SchemaVersion: SchemaVersion,
		Timestamp:     ws.now().UTC().Format(time.RFC3339),
		Data:          n,
	}
}

func (ws *WebhookSender) report(n Notification, err error) {
	if err == nil {
		senderResults.WithLabelValues(ws.Name(), "success").Inc()
		return
	}
	senderResults.WithLabelValues(ws.Name(), "error").Inc()
	ws.logger.Error("Webhook delivery failed",
		zap.String("url", RedactURL(ws.url)),
		zap.String("event_id", n.EventID),
		zap.String("station", n.Finding.StationID),
		zap.Error(err),
	)
}

// deliver posts env, retrying transport errors, 429 and 5xx with
// doubling backoff.
func (ws *WebhookSender) deliver(ctx context.Context, env WebhookEnvelope) error {
	var err error
	for attempt := range ws.maxAttempts {
		if attempt > 0 {
			timer := time.NewTimer(ws.backoff << (attempt - 1))
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("cancelled before attempt %d: %w", attempt+1, ctx.Err())
			}
			senderResults.WithLabelValues(ws.Name(), "retry").Inc()
		}
		err = ws.post(ctx, env)
		if err == nil {
			return nil
		}
		var status statusError
		if errors.As(err, &status) && !status.retryable() {
			return err
		}
		ws.logger.Debug("Webhook attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return fmt.Errorf("giving up after %d attempts: %w", ws.maxAttempts, err)
}

// post makes a single POST of env.
func (ws *WebhookSender) post(ctx context.Context, env WebhookEnvelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if ws.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+ws.authToken)
	}

	start := time.Now()
	resp, err := ws.httpClient.Do(req)
	if err != nil {
		webhookSendDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		webhookSendDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
		return nil
	}
	webhookSendDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
	return statusError(resp.StatusCode)
}

// statusError is a non-2xx response code.
type statusError int

func (e statusError) Error() string { return fmt.Sprintf("webhook returned HTTP %d", int(e)) }

func (e statusError) retryable() bool {
	return e == http.StatusTooManyRequests || e >= 500
}

// RedactURL reduces a URL to scheme, host and path for logging. Userinfo
// and the query string may carry secrets and are dropped.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}).String()
}
