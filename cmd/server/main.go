package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	notifmodule "github.com/farmdesk/notify/modules/notifications"
	"github.com/farmdesk/notify/modules/realtime"
	"github.com/farmdesk/notify/pkg/broker"
	"github.com/farmdesk/notify/pkg/config"
	"github.com/farmdesk/notify/pkg/gateway"
	"github.com/farmdesk/notify/pkg/httpserver"
	"github.com/farmdesk/notify/pkg/logger"
	"github.com/farmdesk/notify/pkg/mongo"
	"github.com/farmdesk/notify/pkg/notifications"
	"github.com/farmdesk/notify/pkg/pg"
)

type appConfig struct {
	Env           string `env:"APP_ENV" envDefault:"development"`          // Env selects the logger preset.
	StorageDriver string `env:"NOTIFY_STORAGE_DRIVER" envDefault:"memory"` // StorageDriver is one of memory, mongo, postgres.
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"farmdesk"`    // MongoDatabase holds the notifications collection.
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var appCfg appConfig
	config.MustLoad(&appCfg)

	log := logger.New(logger.WithEnvironment(appCfg.Env, "notify"))
	logger.SetAsDefault(log)

	var brokerCfg broker.Config
	config.MustLoad(&brokerCfg)
	b := broker.NewFromConfig(brokerCfg, broker.WithLogger(log))
	defer b.Close()

	var gwCfg gateway.Config
	config.MustLoad(&gwCfg)
	verifier := gateway.NewVerifier(gwCfg.JWTSecret)
	gw := gateway.New(b, gateway.WithLogger(log), gateway.WithVerifier(verifier))

	storage, healthchecks, cleanup, err := newStorage(ctx, appCfg, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize notification storage", logger.Error(err))
		os.Exit(1)
	}
	defer cleanup()

	manager := notifications.NewManager(storage,
		notifications.NewBrokerDeliverer(b),
		notifications.WithManagerLogger(log),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", httpserver.HealthCheckHandler(ctx, log, healthchecks...))
	r.Mount("/notifications", notifmodule.Router(
		notifmodule.NewService(manager, verifier, notifmodule.WithLogger(log)),
	))
	r.Mount("/realtime", realtime.Router(
		realtime.NewService(gw, realtime.WithLogger(log)),
	))

	var httpCfg httpserver.Config
	config.MustLoad(&httpCfg)
	srv := httpserver.NewFromConfig(httpCfg,
		httpserver.WithLogger(log),
		httpserver.WithStartHook(func(l *slog.Logger) {
			l.InfoContext(ctx, "Notification server listening", slog.String("addr", httpCfg.Addr))
		}),
		httpserver.WithStopHook(func(l *slog.Logger) {
			l.InfoContext(ctx, "Notification server stopped")
		}),
	)

	if err := srv.Run(ctx, r); err != nil {
		log.ErrorContext(ctx, "Server exited with error", logger.Error(err))
		os.Exit(1)
	}
}

// newStorage builds the configured storage backend along with its readiness
// checks and a cleanup function releasing its connections.
func newStorage(ctx context.Context, cfg appConfig, log *slog.Logger) (notifications.Storage, []func(context.Context) error, func(), error) {
	switch cfg.StorageDriver {
	case "mongo":
		var mongoCfg mongo.Config
		config.MustLoad(&mongoCfg)

		client, err := mongo.New(ctx, mongoCfg)
		if err != nil {
			return nil, nil, func() {}, err
		}
		cleanup := func() { _ = client.Disconnect(context.Background()) }

		storage := notifications.NewMongoStorage(client.Database(cfg.MongoDatabase))
		if err := storage.EnsureIndexes(ctx); err != nil {
			cleanup()
			return nil, nil, func() {}, err
		}
		return storage, []func(context.Context) error{mongo.Healthcheck(client)}, cleanup, nil

	case "postgres":
		var pgCfg pg.Config
		config.MustLoad(&pgCfg)

		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return nil, nil, func() {}, err
		}
		cleanup := func() { pool.Close() }

		if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
			cleanup()
			return nil, nil, func() {}, err
		}
		return notifications.NewPostgresStorage(pool), []func(context.Context) error{pg.Healthcheck(pool)}, cleanup, nil

	default:
		// In-memory storage keeps local development dependency-free.
		return notifications.NewMemoryStorage(), nil, func() {}, nil
	}
}
