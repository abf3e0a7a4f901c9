package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/course-commerce/internal/config"
	"github.com/iliyamo/course-commerce/internal/database"
	"github.com/iliyamo/course-commerce/internal/handler"
	"github.com/iliyamo/course-commerce/internal/middleware"
	"github.com/iliyamo/course-commerce/internal/queue"
	"github.com/iliyamo/course-commerce/internal/repository"
	"github.com/iliyamo/course-commerce/internal/router"
	"github.com/iliyamo/course-commerce/internal/scheduler"
	"github.com/iliyamo/course-commerce/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	opts.Level = slog.LevelDebug
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Options{
		User:            cfg.DBUser,
		Pass:            cfg.DBPass,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		PingTimeout:     cfg.DBPingTimeout,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.DBAutoMigrate {
		if err := database.EnsureSchema(ctx, db); err != nil {
			return err
		}
		logger.Info("schema ensured")
	}

	rdb, err := config.NewRedisClient(config.LoadRedisConfig())
	if err != nil {
		return err
	}
	defer rdb.Close()

	// repositories
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	catalog := repository.NewCatalogRepo(db)
	orders := repository.NewOrderRepo(db)
	enrollments := repository.NewEnrollmentRepo(db)
	memberships := repository.NewMembershipRepo(db)
	coupons := repository.NewCouponRepo(db)
	reviews := repository.NewReviewRepo(db)
	carts := repository.NewCartStore(rdb, "cc:cart", cfg.CartTTL)
	tx := database.NewTxRunner(db)

	// task queue
	dispatcher := queue.NewDispatcher()
	var tasks service.Enqueuer
	var inline *queue.Inline
	var publisher *queue.Publisher
	workerDone := make(chan struct{})
	if cfg.TaskQueueMode == config.QueueInline {
		inline = queue.NewInline(ctx, dispatcher, cfg.TaskMaxAttempts, cfg.TaskRetryBase, logger)
		tasks = inline
		close(workerDone)
	} else {
		publisher = queue.NewPublisher(cfg.AMQPURL, logger)
		tasks = publisher
		consumer := queue.NewConsumer(cfg.AMQPURL, dispatcher, cfg.TaskMaxAttempts, cfg.TaskRetryBase, logger)
		go func() {
			defer close(workerDone)
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("task consumer stopped", "error", err)
			}
		}()
	}

	// services
	notifier := service.NewWebhookNotifier(cfg.NotifyWebhookURL, logger)
	enrollmentSvc := service.NewEnrollmentService(tx, enrollments, memberships, logger)
	membershipSvc := service.NewMembershipService(tx, users, memberships, enrollments, catalog, notifier, logger)
	finalizer := service.NewOrderFinalizer(orders, enrollmentSvc, membershipSvc, notifier, cfg.FanoutConcurrency, logger)
	orderSvc := service.NewOrderService(tx, orders, coupons, tasks, logger)
	couponSvc := service.NewCouponService(coupons, catalog, cfg.CouponEnforceRestrictions)
	reviewSvc := service.NewReviewService(reviews, catalog, tasks, logger)
	cartSvc := service.NewCartService(catalog, carts, logger)
	contactSvc := service.NewContactService(cfg.SendGridAPIKey, cfg.ContactSender, cfg.ContactRecipient, logger)
	paymentSvc := service.NewPaymentService(cfg.PaymentAPIURL, cfg.PaymentUser, cfg.PaymentPassword, cfg.PaymentHMACKey, orderSvc, logger)

	dispatcher.Handle(queue.TaskOrderCompleted, func(ctx context.Context, payload json.RawMessage) error {
		var t queue.OrderCompletedTask
		if err := queue.Decode(payload, &t); err != nil {
			return err
		}
		if t.Resume {
			return finalizer.Resume(ctx, t.OrderID)
		}
		return finalizer.Finalize(ctx, t.OrderID, t.PreviousState)
	})
	dispatcher.Handle(queue.TaskReviewChanged, func(ctx context.Context, payload json.RawMessage) error {
		var t queue.ReviewChangedTask
		if err := queue.Decode(payload, &t); err != nil {
			return err
		}
		return reviewSvc.Refresh(ctx, t.TargetKind, t.TargetID)
	})

	// scheduled expiration sweep
	sweeper := service.NewExpirationSweeper(enrollments, memberships, logger)
	sched, err := scheduler.New(cfg.SweepSchedule, sweeper, logger)
	if err != nil {
		return err
	}
	sched.Start()

	// http
	e := echo.New()
	e.HideBanner = true
	e.Validator = middleware.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowCredentials: true,
	}))

	cache := middleware.NewCatalogCache(config.LoadCacheConfig(), rdb)
	router.Register(e, router.Handlers{
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"mysql": db.PingContext,
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}),
		Auth:        handler.NewAuthHandler(cfg, users, tokens, logger),
		Catalog:     handler.NewCatalogHandler(catalog, tx, cache, logger),
		Reviews:     handler.NewReviewHandler(reviewSvc, users, logger),
		Coupons:     handler.NewCouponHandler(couponSvc, logger),
		Carts:       handler.NewCartHandler(cartSvc, cfg.CartTTL, logger),
		Orders:      handler.NewOrderHandler(orderSvc, logger),
		Enrollments: handler.NewEnrollmentHandler(enrollmentSvc, membershipSvc, logger),
		Contact:     handler.NewContactHandler(contactSvc, logger),
		Payments:    handler.NewPaymentHandler(paymentSvc, logger),
	}, router.Middleware{
		Cache:     cache.Middleware(),
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger),
	}, cfg.JWTSecret)

	srvErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info("listening", "addr", addr, "env", cfg.Env, "task_queue", cfg.TaskQueueMode)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-srvErr:
		if err != nil {
			stop()
			return err
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	sched.Stop(shutdownCtx)
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
	}
	if inline != nil {
		inline.Wait()
	}
	if publisher != nil {
		_ = publisher.Close()
	}
	return nil
}
