package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-admin/internal/domain/auth"
	"github.com/xenking/storefront-admin/internal/domain/coupon"
	"github.com/xenking/storefront-admin/internal/domain/notify"
	"github.com/xenking/storefront-admin/internal/domain/order"
	"github.com/xenking/storefront-admin/internal/domain/product"
	"github.com/xenking/storefront-admin/internal/events"
	"github.com/xenking/storefront-admin/internal/handler"
	"github.com/xenking/storefront-admin/internal/mail"
	"github.com/xenking/storefront-admin/internal/storage/blob"
	"github.com/xenking/storefront-admin/internal/storage/postgres"
	"github.com/xenking/storefront-admin/pkg/health"
	"github.com/xenking/storefront-admin/pkg/httpmiddleware"
)

const serviceName = "storefront-admin"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("mail", cfg.Mail.Driver),
		zap.String("events", cfg.Events.Driver),
	)

	pricing, err := cfg.Pricing()
	if err != nil {
		return err
	}

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, lg, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))

	// Repositories.
	tx := postgres.NewTransactor(pool)
	productRepo := postgres.NewProductRepository(pool)
	imageRepo := postgres.NewImageRepository(pool)
	refRepo := postgres.NewReferenceRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	userRepo := postgres.NewUserRepository(pool)

	store, err := newBlobStore(ctx, cfg.Storage)
	if err != nil {
		return errors.Wrap(err, "create blob store")
	}
	sender, err := newSender(lg, cfg)
	if err != nil {
		return errors.Wrap(err, "create mail sender")
	}
	templates, err := mail.NewTemplates()
	if err != nil {
		return errors.Wrap(err, "parse mail templates")
	}

	dispatcher := notify.NewDispatcher(lg.Named("notify"), orderRepo, userRepo, templates, sender, notify.Config{
		OrdersEmail:   cfg.Notify.OrdersEmail,
		DefaultEmail:  cfg.Notify.DefaultEmail,
		Shipping:      pricing.Shipping,
		MeterProvider: m.MeterProvider(),
	})

	g, ctx := errgroup.WithContext(ctx)

	// Event delivery: in-process worker pool, or Kafka producer plus a
	// consumer group feeding the dispatcher.
	var (
		publisher order.Publisher
		closeBus  func(ctx context.Context) error
	)
	switch cfg.Events.Driver {
	case "kafka":
		kcfg := events.KafkaConfig{Brokers: cfg.Events.Brokers, Topic: cfg.Events.Topic, Group: cfg.Events.Group}
		producer, err := events.NewKafkaPublisher(kcfg)
		if err != nil {
			return err
		}
		consumer, err := events.NewKafkaConsumer(lg.Named("events"), kcfg, dispatcher.OrderSubmitted)
		if err != nil {
			producer.Close()
			return err
		}
		healthSvc.AddReadinessCheck("kafka", 5*time.Second, health.PingCheck("kafka", producer))
		g.Go(func() error {
			return consumer.Run(ctx)
		})
		publisher = producer
		closeBus = func(context.Context) error {
			producer.Close()
			return nil
		}
	default:
		bus := events.NewBus(lg.Named("events"), dispatcher.OrderSubmitted, cfg.Notify.Workers)
		publisher = bus
		closeBus = bus.Close
	}

	// Domain services.
	catalog := product.NewService(productRepo, imageRepo, refRepo, store, tx, m.MeterProvider())
	orders := order.NewService(productRepo, coupon.NewLookup(couponRepo), orderRepo, tx, publisher, order.Config{
		Pricing:        pricing,
		MeterProvider:  m.MeterProvider(),
		TracerProvider: m.TracerProvider(),
	})
	authn := auth.NewService(userRepo, auth.NewTokens([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL))

	// HTTP handlers.
	h := handler.NewHandler(handler.Config{
		LoginLimit: httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		Shipping: pricing.Shipping,
	}, catalog, orders, authn)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	if local, ok := store.(*blob.Local); ok {
		mux.Handle("GET /media/", http.StripPrefix("/media/", http.FileServer(http.Dir(local.Root()))))
	}
	h.Register(mux)

	routeFinder := httpmiddleware.MakeRouteFinder(mux)
	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.RequestID(),
			httpmiddleware.Instrument(serviceName, routeFinder, m.MeterProvider(), m.TracerProvider()),
			httpmiddleware.LogRequests(routeFinder),
		),
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	g.Go(func() error {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		if err := closeBus(shutdownCtx); err != nil {
			lg.Error("Event bus drain error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}

func newBlobStore(ctx context.Context, cfg StorageConfig) (blob.Store, error) {
	if cfg.Driver == "s3" {
		return blob.NewS3(ctx, s3Config(cfg))
	}
	return blob.NewLocal(cfg.Root, cfg.BaseURL)
}

func s3Config(cfg StorageConfig) blob.S3Config {
	return blob.S3Config{
		Bucket:          cfg.Bucket,
		Region:          cfg.Region,
		Prefix:          cfg.Prefix,
		Endpoint:        cfg.Endpoint,
		BaseURL:         cfg.BaseURL,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	}
}

func newSender(lg *zap.Logger, cfg *Config) (mail.Sender, error) {
	if cfg.Mail.Driver == "smtp" {
		return mail.NewSMTP(mail.SMTPConfig{
			Host:       cfg.Mail.Host,
			Port:       cfg.Mail.Port,
			Username:   cfg.Mail.Username,
			Password:   cfg.Mail.Password,
			RequireTLS: cfg.Mail.TLS,
			From:       mail.Address{Name: cfg.Notify.FromName, Email: cfg.Notify.FromEmail},
		})
	}
	return mail.NewLog(lg.Named("mail")), nil
}
