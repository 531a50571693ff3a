package pipeline

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/potooio/sentinel/internal/archive"
	"github.com/potooio/sentinel/internal/catalog"
	"github.com/potooio/sentinel/internal/config"
	"github.com/potooio/sentinel/internal/correlator"
	"github.com/potooio/sentinel/internal/detection"
	"github.com/potooio/sentinel/internal/eventlog"
	"github.com/potooio/sentinel/internal/notifier"
	"github.com/potooio/sentinel/internal/types"
)

// Build assembles a System from configuration: it loads the reference
// catalog, creates the store, engine and event log, and opens every enabled
// sender. Call Start before processing and Close when done.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*System, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cat := catalog.New(logger)
	if err := cat.Load(cfg.Data.ProductsCSV, cfg.Data.CustomersCSV); err != nil {
		return nil, fmt.Errorf("loading reference data: %w", err)
	}

	store := correlator.NewStore(correlator.StoreOptions{
		Window:             cfg.Store.Window,
		InventoryRetention: cfg.Store.InventoryRetention,
		MaxBucketSize:      cfg.Store.MaxBucketSize,
		Logger:             logger,
	})
	engine := detection.NewDefaultEngine(evalContext(store, cat, cfg), logger)

	events, err := eventlog.New(eventlog.Options{
		Path:   cfg.Data.EventsPath,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	senders, err := BuildSenders(ctx, cfg.Notifier, logger)
	if err != nil {
		events.Close()
		return nil, err
	}
	var dispatcher *notifier.Dispatcher
	if len(senders) > 0 {
		dispatcher = notifier.NewDispatcher(logger, notifier.DispatcherOptions{
			RateLimitPerMinute: cfg.Notifier.RateLimitPerMinute,
			Senders:            senders,
		})
	}

	return New(store, engine, events, dispatcher, Options{
		GlobalInterval:        cfg.Detection.GlobalInterval,
		EmitSuccessOperations: cfg.Detection.EmitSuccessOperations,
		Logger:                logger,
	}), nil
}

// BuildSenders opens the senders enabled in cfg. On error every sender
// opened so far is closed.
func BuildSenders(ctx context.Context, cfg config.NotifierConfig, logger *zap.Logger) ([]notifier.Sender, error) {
	var senders []notifier.Sender
	fail := func(err error) ([]notifier.Sender, error) {
		for _, s := range senders {
			if c, ok := s.(io.Closer); ok {
				c.Close()
			}
		}
		return nil, err
	}

	if cfg.Webhook.Enabled {
		ws, err := notifier.NewWebhookSender(logger, notifier.WebhookSenderConfig{
			URL:         cfg.Webhook.URL,
			Timeout:     cfg.Webhook.Timeout,
			MinSeverity: cfg.Webhook.MinSeverity,
			AuthToken:   cfg.Webhook.AuthToken,
			MaxAttempts: cfg.Webhook.MaxAttempts,
		})
		if err != nil {
			return fail(fmt.Errorf("webhook sender: %w", err))
		}
		senders = append(senders, ws)
	}
	if cfg.Redis.Enabled {
		rs, err := notifier.NewRedisSender(ctx, logger, notifier.RedisSenderConfig{
			Addr:               cfg.Redis.Addr,
			Password:           cfg.Redis.Password,
			DB:                 cfg.Redis.DB,
			Channel:            cfg.Redis.Channel,
			MinSeverity:        cfg.Redis.MinSeverity,
			PerStationChannels: cfg.Redis.PerStationChannels,
		})
		if err != nil {
			return fail(fmt.Errorf("redis sender: %w", err))
		}
		senders = append(senders, rs)
	}
	if cfg.Archive.Enabled {
		store, err := archive.Open(cfg.Archive.Path)
		if err != nil {
			return fail(fmt.Errorf("archive sender: %w", err))
		}
		as, err := notifier.NewArchiveSender(logger, store, cfg.Archive.MinSeverity)
		if err != nil {
			store.Close()
			return fail(fmt.Errorf("archive sender: %w", err))
		}
		senders = append(senders, as)
	}
	return senders, nil
}

// Start launches the senders' background workers.
func (s *System) Start(ctx context.Context) {
	if s.dispatcher != nil {
		s.dispatcher.Start(ctx)
	}
}

func evalContext(store *correlator.Store, cat *catalog.Catalog, cfg *config.Config) types.EvalContext {
	return types.EvalContext{
		Store:      store,
		Catalog:    cat,
		Thresholds: cfg.Detection.Thresholds(),
	}
}
