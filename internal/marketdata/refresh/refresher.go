package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"energy-dashboard/internal/events"
	"energy-dashboard/internal/logger"
	"energy-dashboard/internal/marketdata/ingest"
	"energy-dashboard/internal/metrics"
	"energy-dashboard/internal/model"
	"energy-dashboard/internal/notification"
	"energy-dashboard/internal/resilience"
	"energy-dashboard/internal/spread"
	"energy-dashboard/pkg/bbce"
)

// Source is the subset of the marketplace client the refresher needs.
type Source interface {
	Login(ctx context.Context) (*bbce.Session, error)
	Wallets(ctx context.Context, token string) ([]bbce.Wallet, error)
	NegotiableTickers(ctx context.Context, token string, walletID bbce.ID) ([]bbce.Ticker, error)
	Deals(ctx context.Context, token string, from, to time.Time) ([]bbce.Deal, error)
}

var _ Source = (*bbce.Client)(nil)

// ErrNoWallet is returned when the company has no wallet to list tickers for.
var ErrNoWallet = errors.New("refresh: no wallet available")

// Config controls the refresh loop.
type Config struct {
	Interval     time.Duration  // default 20m
	DealsFrom    time.Time      // first day of the deal window
	Location     *time.Location // dashboard zone; default UTC
	ActiveStatus string         // default ingest.DefaultActiveStatus

	AlertAfter      int           // consecutive failures before alerting, default 3
	BreakerFailures int           // default 3
	BreakerReset    time.Duration // default 2m
	Retry           resilience.RetryConfig
}

func (c *Config) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = 20 * time.Minute
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.DealsFrom.IsZero() {
		c.DealsFrom = time.Date(2025, 1, 1, 0, 0, 0, 0, c.Location)
	}
	if c.ActiveStatus == "" {
		c.ActiveStatus = ingest.DefaultActiveStatus
	}
	if c.AlertAfter <= 0 {
		c.AlertAfter = 3
	}
	if c.BreakerFailures <= 0 {
		c.BreakerFailures = 3
	}
	if c.BreakerReset <= 0 {
		c.BreakerReset = 2 * time.Minute
	}
	if c.Retry.Name == "" {
		c.Retry = resilience.DefaultRetryConfig("bbce")
	}
}

// Status describes the refresher for the status endpoint.
type Status struct {
	Seq          int64     `json:"seq"`
	LastRefresh  time.Time `json:"last_refresh"`
	LastAttempt  time.Time `json:"last_attempt"`
	LastError    string    `json:"last_error,omitempty"`
	Failures     int       `json:"consecutive_failures"`
	Deals        int       `json:"deals"`
	Tickers      int       `json:"tickers"`
	From         time.Time `json:"from"`
	To           time.Time `json:"to"`
	BreakerState string    `json:"breaker_state"`
}

// Refresher owns the upstream session and the refresh schedule.
//
// Metrics, Health, Publisher and Notifier are optional and must be set
// before Run.
type Refresher struct {
	src    Source
	store  *Store
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	breaker *resilience.Breaker
	retry   *resilience.Retryer
	trigger chan struct{}

	Metrics   *metrics.Metrics
	Health    *metrics.HealthStatus
	Publisher events.Publisher
	Notifier  notification.Notifier

	run sync.Mutex // serializes refresh cycles

	mu      sync.Mutex
	session *bbce.Session
	status  Status
}

// New creates a refresher publishing into store.
func New(src Source, store *Store, cfg Config, log *slog.Logger) *Refresher {
	cfg.setDefaults()
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "refresh")

	r := &Refresher{
		src:     src,
		store:   store,
		cfg:     cfg,
		logger:  log,
		now:     time.Now,
		breaker: resilience.NewBreaker("bbce", cfg.BreakerFailures, cfg.BreakerReset),
		trigger: make(chan struct{}, 1),
	}

	retryCfg := cfg.Retry
	retryCfg.Retryable = func(err error) bool {
		return !errors.Is(err, ingest.ErrMalformedDeal) &&
			!errors.Is(err, ErrNoWallet) &&
			!errors.Is(err, resilience.ErrCircuitOpen) &&
			!errors.Is(err, context.Canceled) &&
			!errors.Is(err, context.DeadlineExceeded)
	}
	r.retry = resilience.NewRetryer(retryCfg, log)

	r.breaker.OnStateChange = func(name string, from, to resilience.State) {
		r.logger.Warn("circuit breaker transition",
			slog.String("breaker", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
		if r.Metrics != nil {
			r.Metrics.ObserveBreaker(name, int(to))
		}
		if r.Health != nil {
			r.Health.SetBreakerState(to.String())
		}
	}
	return r
}

// Breaker exposes the upstream circuit breaker.
func (r *Refresher) Breaker() *resilience.Breaker { return r.breaker }

// Status returns a copy of the current status.
func (r *Refresher) Status() Status {
	r.mu.Lock()
	st := r.status
	r.mu.Unlock()
	st.BreakerState = r.breaker.CurrentState().String()
	return st
}

// Run refreshes once, then every Interval and on Trigger, until ctx is
// cancelled. Refresh failures are logged and never stop the loop.
func (r *Refresher) Run(ctx context.Context) error {
	r.logger.Info("refresher started",
		slog.Duration("interval", r.cfg.Interval),
		slog.String("deals_from", r.cfg.DealsFrom.Format(bbce.DateLayout)),
	)
	r.Refresh(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresher stopped")
			return nil
		case <-ticker.C:
			r.Refresh(ctx)
		case <-r.trigger:
			r.Refresh(ctx)
		}
	}
}

// Trigger requests an immediate refresh. It reports false when a request
// is already pending.
func (r *Refresher) Trigger() bool {
	select {
	case r.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Refresh runs one cycle. On failure the previous snapshot stays published.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.run.Lock()
	defer r.run.Unlock()

	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID())
	start := r.now()

	var batch *model.Batch
	err := r.retry.Execute(ctx, func(ctx context.Context) error {
		return r.breaker.Execute(ctx, func(ctx context.Context) error {
			b, err := r.fetch(ctx)
			if err != nil {
				return err
			}
			batch = b
			return nil
		})
	})
	elapsed := r.now().Sub(start)

	if err != nil {
		r.onFailure(ctx, start, err)
		return err
	}
	r.onSuccess(ctx, start, elapsed, batch)
	return nil
}

func (r *Refresher) fetch(ctx context.Context) (*model.Batch, error) {
	sess, err := r.currentSession(ctx)
	if err != nil {
		return nil, err
	}
	b, err := r.fetchWith(ctx, sess.IDToken)
	if errors.Is(err, bbce.ErrUnauthorized) {
		r.logger.Info("token rejected, logging in again", logger.LogWithTrace(ctx)...)
		if r.Metrics != nil {
			r.Metrics.UpstreamRelogin.Inc()
		}
		r.dropSession()
		if sess, err = r.currentSession(ctx); err != nil {
			return nil, err
		}
		b, err = r.fetchWith(ctx, sess.IDToken)
	}
	return b, err
}

func (r *Refresher) currentSession(ctx context.Context) (*bbce.Session, error) {
	r.mu.Lock()
	sess := r.session
	r.mu.Unlock()
	if sess != nil {
		return sess, nil
	}

	sess, err := r.src.Login(ctx)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	r.mu.Lock()
	r.session = sess
	r.mu.Unlock()
	return sess, nil
}

func (r *Refresher) dropSession() {
	r.mu.Lock()
	r.session = nil
	r.mu.Unlock()
}

func (r *Refresher) fetchWith(ctx context.Context, token string) (*model.Batch, error) {
	wallets, err := r.src.Wallets(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("wallets: %w", err)
	}
	if len(wallets) == 0 {
		return nil, ErrNoWallet
	}

	raw, err := r.src.NegotiableTickers(ctx, token, wallets[0].ID)
	if err != nil {
		return nil, fmt.Errorf("tickers: %w", err)
	}
	tickers := make([]model.Ticker, 0, len(raw))
	for _, t := range raw {
		tickers = append(tickers, model.Ticker{ID: t.ID.String(), Description: t.Description})
	}

	now := r.now()
	from := r.cfg.DealsFrom
	to := now.In(r.cfg.Location)
	deals, err := r.src.Deals(ctx, token, from, to)
	if err != nil {
		return nil, fmt.Errorf("deals: %w", err)
	}

	trades, err := ingest.Normalize(deals, ingest.Options{
		ActiveStatus: r.cfg.ActiveStatus,
		Location:     r.cfg.Location,
	})
	if err != nil {
		return nil, err
	}

	return &model.Batch{
		Trades:    trades,
		Tickers:   spread.ValidTickers(tickers),
		FetchedAt: now.UTC(),
		From:      from,
		To:        to,
	}, nil
}

func (r *Refresher) onSuccess(ctx context.Context, start time.Time, elapsed time.Duration, b *model.Batch) {
	r.store.Swap(b)
	products := len(spread.RankProducts(b.Trades, b.Tickers))

	r.mu.Lock()
	r.status.Seq++
	seq := r.status.Seq
	recovered := r.status.Failures >= r.cfg.AlertAfter
	r.status.LastRefresh = b.FetchedAt
	r.status.LastAttempt = start
	r.status.LastError = ""
	r.status.Failures = 0
	r.status.Deals = b.Len()
	r.status.Tickers = len(b.Tickers)
	r.status.From = b.From
	r.status.To = b.To
	r.mu.Unlock()

	r.logger.Info("snapshot refreshed", append(logger.LogWithTrace(ctx),
		slog.Int64("seq", seq),
		slog.Int("deals", b.Len()),
		slog.Int("tickers", len(b.Tickers)),
		slog.Int("products", products),
		slog.Duration("took", elapsed),
	)...)

	if r.Metrics != nil {
		r.Metrics.RefreshTotal.WithLabelValues("ok").Inc()
		r.Metrics.RefreshDur.Observe(elapsed.Seconds())
		r.Metrics.SnapshotDeals.Set(float64(b.Len()))
		r.Metrics.SnapshotTime.Set(float64(b.FetchedAt.Unix()))
	}
	if r.Health != nil {
		r.Health.SetRefreshed(b.FetchedAt, b.Len())
	}

	r.publish(ctx, events.Event{
		Type:     events.TypeRefresh,
		Seq:      seq,
		TS:       b.FetchedAt,
		Deals:    b.Len(),
		Products: products,
	})

	if recovered {
		r.alert(ctx, notification.Alert{
			Level:   notification.AlertInfo,
			Title:   "Deals refresh recovered",
			Message: fmt.Sprintf("Snapshot refreshed with %d deals.", b.Len()),
		})
	}
}

func (r *Refresher) onFailure(ctx context.Context, start time.Time, err error) {
	r.mu.Lock()
	r.status.Failures++
	failures := r.status.Failures
	seq := r.status.Seq
	r.status.LastAttempt = start
	r.status.LastError = err.Error()
	r.mu.Unlock()

	result := "error"
	if errors.Is(err, resilience.ErrCircuitOpen) {
		result = "skipped"
	}
	r.logger.Error("refresh failed", append(logger.LogWithTrace(ctx),
		slog.String("error", err.Error()),
		slog.Int("consecutive_failures", failures),
	)...)

	if r.Metrics != nil {
		r.Metrics.RefreshTotal.WithLabelValues(result).Inc()
		if errors.Is(err, ingest.ErrMalformedDeal) {
			r.Metrics.MalformedDeals.Inc()
		}
	}
	if r.Health != nil {
		r.Health.SetRefreshFailed(err)
	}

	r.publish(ctx, events.Event{
		Type:  events.TypeRefreshFailed,
		Seq:   seq,
		TS:    r.now().UTC(),
		Error: err.Error(),
	})

	if failures == r.cfg.AlertAfter {
		r.alert(ctx, notification.Alert{
			Level:   notification.AlertCritical,
			Title:   "Deals refresh failing",
			Message: fmt.Sprintf("%d consecutive refresh failures; serving the previous snapshot. Last error: %v", failures, err),
		})
	}
}

func (r *Refresher) publish(ctx context.Context, e events.Event) {
	if r.Publisher == nil {
		return
	}
	if err := r.Publisher.Publish(ctx, e); err != nil {
		r.logger.Warn("event publish failed", append(logger.LogWithTrace(ctx), slog.String("error", err.Error()))...)
	}
}

func (r *Refresher) alert(ctx context.Context, a notification.Alert) {
	if r.Notifier == nil {
		return
	}
	a.TS = r.now().UTC()
	err := r.Notifier.Send(ctx, a)
	if r.Metrics != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		r.Metrics.AlertsSent.WithLabelValues(result).Inc()
	}
	if err != nil {
		r.logger.Warn("alert delivery failed", slog.String("error", err.Error()))
	}
}
