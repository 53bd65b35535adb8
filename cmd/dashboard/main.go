package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"energy-dashboard/config"
	"energy-dashboard/internal/auth"
	"energy-dashboard/internal/events"
	"energy-dashboard/internal/gateway"
	"energy-dashboard/internal/logger"
	"energy-dashboard/internal/marketdata/refresh"
	"energy-dashboard/internal/metrics"
	"energy-dashboard/internal/notification"
	"energy-dashboard/internal/resilience"
	"energy-dashboard/pkg/bbce"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[dashboard] starting...")

	// ---- Config & logging ----
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[dashboard] %v", err)
	}
	lg := logger.Init("dashboard", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Error("dashboard stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Println("[dashboard] shutdown complete.")
}

func run(ctx context.Context, cfg *config.Config, lg *slog.Logger) error {
	// ---- Metrics & health ----
	prom := metrics.NewMetrics(prometheus.DefaultRegisterer)
	health := metrics.NewHealthStatus()
	health.MaxAge = cfg.MaxSnapshotAge
	health.SetRedisEnabled(cfg.RedisEnabled())

	// ---- Dashboard access ----
	authn, err := auth.NewAuthenticator(auth.Credentials{
		Login:        cfg.Secrets.DashboardLogin,
		Password:     cfg.Secrets.DashboardPassword,
		PasswordHash: cfg.Secrets.DashboardPasswordBcrypt,
		TOTPSecret:   cfg.Secrets.DashboardTOTPSecret,
	})
	if err != nil {
		return err
	}
	sessions := auth.NewSessions(cfg.SessionTTL)

	// ---- Upstream client & refresher ----
	client := bbce.New(bbce.Config{
		APIKey:      cfg.Secrets.APIKey,
		CompanyCode: cfg.Secrets.CompanyCode,
		Email:       cfg.Secrets.Email,
		Password:    cfg.Secrets.Password,
		BaseURL:     cfg.BBCEBaseURL,
		RateLimit:   cfg.BBCERateLimit,
		Logger:      lg,
	})
	store := refresh.NewStore()
	refresher := refresh.New(client, store, refresh.Config{
		Interval:   cfg.RefreshInterval,
		DealsFrom:  cfg.DealsFromTime(),
		Location:   cfg.Location(),
		AlertAfter: cfg.AlertAfterFailures,
	}, lg)
	refresher.Metrics = prom
	refresher.Health = health
	refresher.Notifier = notifiers(cfg, lg)

	// ---- Push channel ----
	hub := gateway.NewHub(lg, prom, gateway.DefaultReplaySize, nil)

	var (
		rdb *goredis.Client
		bus *events.RedisBus
	)
	if cfg.RedisEnabled() {
		rdb, err = events.Dial(ctx, events.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Printf("[dashboard] WARNING: redis init failed: %v (events stay in-process)", err)
		} else {
			defer rdb.Close()
			health.SetRedisConnected(true)
			log.Printf("[dashboard] redis connected at %s", cfg.RedisAddr)
			bus = newRedisBus(rdb, prom, lg)
		}
	}
	if bus != nil {
		// every instance, this one included, receives events through the relay
		refresher.Publisher = bus
	} else {
		refresher.Publisher = hub
	}

	// ---- HTTP ----
	srv := gateway.NewServer(gateway.Deps{
		Snapshots:      store,
		Refresher:      refresher,
		Auth:           authn,
		Sessions:       sessions,
		Hub:            hub,
		Health:         health,
		Metrics:        prom,
		Gatherer:       prometheus.DefaultGatherer,
		Location:       cfg.Location(),
		RequestTimeout: cfg.RequestTimeout,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         lg,
	})
	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ---- Run ----
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return refresher.Run(gctx) })
	g.Go(func() error { return hub.Run(gctx) })
	if bus != nil {
		health.StartLivenessChecker(gctx, rdb, 10*time.Second)
		g.Go(func() error { return hub.Relay(gctx, bus) })
	}
	g.Go(func() error {
		log.Printf("[dashboard] listening on %s", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("[dashboard] shutdown signal received, cleaning up...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// notifiers always logs alerts and adds the remote channels that are
// configured.
func notifiers(cfg *config.Config, lg *slog.Logger) notification.Notifier {
	multi := notification.Multi{notification.NewLogNotifier(lg)}
	if cfg.WebhookURL != "" {
		multi = append(multi, notification.NewWebhookNotifier(cfg.WebhookURL))
		log.Println("[dashboard] webhook alerts enabled")
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		multi = append(multi, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
		log.Println("[dashboard] telegram alerts enabled")
	}
	return multi
}

func newRedisBus(rdb *goredis.Client, prom *metrics.Metrics, lg *slog.Logger) *events.RedisBus {
	cb := resilience.NewBreaker("redis", 5, 10*time.Second)
	cb.OnStateChange = func(name string, from, to resilience.State) {
		prom.ObserveBreaker(name, int(to))
		lg.Warn("circuit breaker transition",
			slog.String("breaker", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	}
	bus := events.NewRedisBus(rdb, cb, 64, lg)
	bus.OnPublish = func(err error) {
		result := "ok"
		if err != nil {
			result = "error"
		}
		prom.EventsPublished.WithLabelValues("redis", result).Inc()
	}
	bus.OnBuffer = func() { prom.EventsBuffered.Inc() }
	bus.OnFlush = func(n int) {
		prom.EventsPublished.WithLabelValues("redis", "flushed").Add(float64(n))
	}
	return bus
}
