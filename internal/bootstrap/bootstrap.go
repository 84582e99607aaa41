package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/kirillkom/docqa-client/internal/config"
	"github.com/kirillkom/docqa-client/internal/core/domain"
	"github.com/kirillkom/docqa-client/internal/core/usecase"
	"github.com/kirillkom/docqa-client/internal/infrastructure/backend"
	natsevents "github.com/kirillkom/docqa-client/internal/infrastructure/events/nats"
	"github.com/kirillkom/docqa-client/internal/infrastructure/resilience"
	"github.com/kirillkom/docqa-client/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/docqa-client/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Metrics   *metrics.ClientMetrics
	Backend   *backend.Client
	Publisher *natsevents.Publisher

	Ingestion     *usecase.IngestionMachine
	KnowledgeBase *usecase.AvailabilityTracker
	Chat          *usecase.ChatSession
	Inbox         *usecase.Inbox

	closeFn func()
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientMetrics := metrics.NewClientMetrics("docqa")

	resilienceCfg := resilience.DefaultConfig()
	resilienceCfg.Breaker.Enabled = cfg.BreakerEnabled
	resilienceCfg.OnStateChange = clientMetrics.SetCircuitOpen
	executor := resilience.NewExecutor(resilienceCfg, logger)

	client := backend.NewWithOptions(cfg.BaseURL, backend.Options{
		RequestTimeout: cfg.RequestTimeout,
		UploadTimeout:  cfg.UploadTimeout,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Transport:      clientMetrics.Transport(nil),
		Executor:       executor,
		Logger:         logger,
	})

	var publisher *natsevents.Publisher
	if cfg.NATSURL != "" {
		var err error
		publisher, err = natsevents.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsevents.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
	}

	tracker := usecase.NewAvailabilityTracker(client, clientMetrics, logger)
	poller := usecase.NewReadinessPoller(client, cfg.PollInterval, clientMetrics, logger)

	opts := []usecase.IngestionOption{
		usecase.WithCompletionPolicy(usecase.CompletionPolicy{RequireTarget: cfg.RequireTargetCount}),
		usecase.WithFileInspector(localfs.NewInspector(logger)),
		usecase.WithIngestionMetrics(clientMetrics),
		usecase.WithIngestionLogger(logger),
		usecase.OnReady(tracker.Refresh),
		usecase.OnUploadComplete(func(domain.UploadResult) { tracker.Refresh() }),
	}
	if publisher != nil {
		opts = append(opts, usecase.WithEventPublisher(publisher))
	}
	machine := usecase.NewIngestionMachine(client, poller, opts...)

	chat := usecase.NewChatSession(client, tracker, clientMetrics, logger)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Metrics:   clientMetrics,
		Backend:   client,
		Publisher: publisher,

		Ingestion:     machine,
		KnowledgeBase: tracker,
		Chat:          chat,
		Inbox:         usecase.NewInbox(machine, logger),

		closeFn: func() {
			machine.Close()
			chat.Close()
			tracker.Close()
			machine.Wait()
			tracker.Wait()
			chat.Wait()
			if publisher != nil {
				publisher.Close()
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
