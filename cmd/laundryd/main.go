package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"laundry-booking-backend/config"
	"laundry-booking-backend/internal/api"
	"laundry-booking-backend/internal/booking"
	"laundry-booking-backend/internal/db"
	"laundry-booking-backend/internal/logging"
	"laundry-booking-backend/internal/model"
	"laundry-booking-backend/internal/mq"
	"laundry-booking-backend/internal/mw"
	"laundry-booking-backend/internal/notification"
	"laundry-booking-backend/internal/schedule"
	"laundry-booking-backend/internal/store"
	"laundry-booking-backend/internal/sweeper"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("configuration loaded", zap.String("path", configPath))

	if err := run(cfg, logger); err != nil {
		logger.Fatal("laundryd stopped with error", zap.Error(err))
	}
	logger.Info("server gracefully stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	// Initialize database
	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	logger.Info("database initialized", zap.String("driver", cfg.Database.Driver))

	appStore := store.NewGormStore(gormDB)
	policy := schedule.PolicyFromConfig(&cfg.Schedule)
	engine := schedule.NewEngine(appStore, policy, logger.Named("schedule"))

	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	}

	var publisher *mq.Publisher
	if cfg.Notification.Backend == "amqp" || cfg.AMQP.EventsEnabled {
		publisher, err = mq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return fmt.Errorf("failed to connect to broker: %w", err)
		}
		defer publisher.Close()
		logger.Info("broker connected", zap.String("exchange", cfg.AMQP.Exchange))
	}

	var sender notification.Sender
	switch cfg.Notification.Backend {
	case "webpush":
		sender = notification.NewWebPushSender(appStore, webpushOptions, logger.Named("webpush"))
	case "amqp":
		sender = notification.NewBrokerSender(publisher)
	default:
		sender = notification.NewLogSender(logger.Named("outbox"))
	}

	lang, ok := model.ParseLanguage(cfg.Notification.DefaultLanguage)
	if !ok {
		lang = model.LanguageRU
	}
	catalog := notification.NewCatalog(policy.Location, lang)
	notifier := notification.NewNotifier(appStore, sender, catalog, &cfg.Notification, logger.Named("notifier"))

	// Jobs keep running while the pool drains after shutdown starts.
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()
	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, logger.Named("pool"))
	pool.Start(workCtx)

	manager := booking.NewManager(appStore, policy,
		notification.NewService(pool, notifier, appStore, logger.Named("notify")),
		booking.ThresholdsFromConfig(&cfg.Sweep), logger.Named("booking"))
	if cfg.AMQP.EventsEnabled {
		manager.WithEvents(publisher)
	}
	responses := api.NewResponseCache(&cfg.Server)
	manager.OnSlotFreed(responses.Flush)

	sweeps := sweeper.NewService(&cfg.Sweep, manager, logger.Named("sweep"))

	handler := api.NewHandler(api.Deps{
		Store:      appStore,
		Engine:     engine,
		Manager:    manager,
		Sweeps:     sweeps,
		Pool:       pool,
		Requesters: mw.NewRequesters(appStore, time.Duration(cfg.Server.CacheTTLSeconds)*time.Second, logger.Named("requester")),
		Webpush:    webpushOptions,
		Cache:      responses,
		Log:        logger.Named("api"),
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(handler, &cfg.Server, logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sweeps.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server ListenAndServe: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received, stopping services")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	runErr := g.Wait()

	pool.Close()
	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pool.Wait(drainCtx); err != nil {
		logger.Warn("notification queue not drained", zap.Error(err), zap.Int("queued", pool.Stats().Queued))
	}
	return runErr
}
