package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/slack-go/slack"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ops-ticket-bot/internal/api/http"
	"github.com/spec-kit/ops-ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ops-ticket-bot/internal/auth"
	"github.com/spec-kit/ops-ticket-bot/internal/config"
	"github.com/spec-kit/ops-ticket-bot/internal/correlation"
	"github.com/spec-kit/ops-ticket-bot/internal/events"
	"github.com/spec-kit/ops-ticket-bot/internal/ledger"
	"github.com/spec-kit/ops-ticket-bot/internal/observability"
	"github.com/spec-kit/ops-ticket-bot/internal/reminder"
	"github.com/spec-kit/ops-ticket-bot/internal/service"
	"github.com/spec-kit/ops-ticket-bot/internal/slackbot"
	"github.com/spec-kit/ops-ticket-bot/internal/worker"
)

// Runtime is the fully wired bot.
type Runtime struct {
	cfg       *config.Config
	logger    *zap.Logger
	storage   *Storage
	metrics   *observability.Metrics
	scheduler *reminder.Scheduler
	lifecycle *service.LifecycleService
	auth      *service.AuthService
	bot       *slackbot.Bot
	http      *fiber.App
}

// Build wires services on top of storage and the given Slack API. The
// socket mode loop is only attached to a real *slack.Client.
func Build(cfg *config.Config, logger *zap.Logger, storage *Storage, client slackbot.SlackAPI) (*Runtime, error) {
	codec, err := correlation.NewCodec(cfg.Registry.TokenDelimiter, 0)
	if err != nil {
		return nil, fmt.Errorf("TOKEN_DELIMITER: %w", err)
	}
	dispatcher := events.NewInMemoryDispatcher(logger)
	metrics := observability.NewMetrics()
	loc := cfg.App.Location()
	messenger := slackbot.NewMessenger(client, logger)

	recorder := ledger.NewRecorder(storage.Ledger, dispatcher, loc, logger)
	worker.StartSubscribers(recorder, worker.SubscriberFunc(func() { metrics.Subscribe(dispatcher) }))

	escalation := service.NewEscalation(messenger, dispatcher, cfg.Routing)
	scheduler := reminder.NewScheduler(storage.Registry, storage.Queue, escalation, cfg.Reminder.SweepInterval, logger)

	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		Store:      storage.Registry,
		Actions:    storage.Actions,
		Reminders:  scheduler,
		Messenger:  messenger,
		Directory:  messenger,
		Dispatcher: dispatcher,
		Codec:      codec,
		Routing:    cfg.Routing,
		Logger:     logger,
	}, service.LifecycleOptions{
		DisplayBudget:  cfg.Registry.DisplayBudget,
		ReminderDelay:  cfg.Reminder.Delay,
		EmergencyDelay: cfg.Reminder.EmergencyDelay,
		ActionTTL:      cfg.Registry.ActionTTL,
		Location:       loc,
	})

	r := &Runtime{
		cfg:       cfg,
		logger:    logger,
		storage:   storage,
		metrics:   metrics,
		scheduler: scheduler,
		lifecycle: lifecycle,
		auth:      service.NewAuthService(*cfg),
	}

	handler := slackbot.NewHandler(slackbot.HandlerDependencies{
		Lifecycle: lifecycle,
		Intake:    service.NewIntakeService(lifecycle, messenger),
		Chat:      service.NewChatService(lifecycle, messenger, messenger, dispatcher, cfg.Routing.BotName, logger),
		Messenger: messenger,
		Directory: messenger,
		Codec:     codec,
		Logger:    logger,
	})
	if sc, ok := client.(*slack.Client); ok {
		r.bot = slackbot.NewBot(sc, handler, cfg.Slack, logger)
	}
	r.http = r.newHTTP()
	return r, nil
}

func (r *Runtime) newHTTP() *fiber.App {
	app := fiber.New(fiber.Config{AppName: r.cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, r.logger, r.metrics, r.cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(r.cfg.App.Name, r.cfg.App.Version, r.storage.Pingers()),
		Auth:           handlers.NewAuthHandler(r.auth),
		Tickets:        handlers.NewTicketsHandler(r.lifecycle),
		Ops:            handlers.NewOpsHandler(r.metrics, r.scheduler, r.logger),
		AuthMiddleware: auth.NewAuthMiddleware(r.auth.TokenManager()),
	})
	return app
}

// HTTP exposes the admin API app.
func (r *Runtime) HTTP() *fiber.App { return r.http }

// Lifecycle exposes the ticket service.
func (r *Runtime) Lifecycle() *service.LifecycleService { return r.lifecycle }

// Sweep fires due reminders once.
func (r *Runtime) Sweep(ctx context.Context) (int, error) {
	return r.scheduler.Sweep(ctx, time.Now())
}

// Run starts the Slack bot, the reminder sweeper, registry eviction and the
// admin API. It returns when ctx is cancelled or a component fails.
func (r *Runtime) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 4)
	if r.bot != nil {
		go func() { errCh <- r.bot.Run(ctx) }()
	} else {
		r.logger.Warn("slack client unavailable; bot disabled")
	}
	go func() { errCh <- r.scheduler.Run(ctx) }()
	if r.storage.Evictor != nil {
		go func() {
			errCh <- worker.RunEvictor(ctx, r.storage.Evictor, time.Hour, r.cfg.Registry.EvictAfter, r.logger)
		}()
	}
	go func() {
		r.logger.Info("admin api listening", zap.String("addr", r.cfg.App.Addr()))
		errCh <- r.http.Listen(r.cfg.App.Addr())
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		if errors.Is(runErr, context.Canceled) {
			runErr = nil
		}
	}
	cancel()
	if err := r.http.ShutdownWithTimeout(5 * time.Second); err != nil {
		r.logger.Warn("admin api shutdown", zap.Error(err))
	}
	return runErr
}
