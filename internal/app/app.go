// Package app builds the long-lived services of a verification run and tears
// them down in reverse order.
package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/titlecheck/internal/api"
	chromedpbrowser "github.com/JakeFAU/titlecheck/internal/browser/chromedp"
	rodbrowser "github.com/JakeFAU/titlecheck/internal/browser/rod"
	staticbrowser "github.com/JakeFAU/titlecheck/internal/browser/static"
	"github.com/JakeFAU/titlecheck/internal/clock/system"
	"github.com/JakeFAU/titlecheck/internal/config"
	iduuid "github.com/JakeFAU/titlecheck/internal/id/uuid"
	"github.com/JakeFAU/titlecheck/internal/input"
	"github.com/JakeFAU/titlecheck/internal/logging"
	"github.com/JakeFAU/titlecheck/internal/policy/ratelimit"
	"github.com/JakeFAU/titlecheck/internal/progress"
	progresssinks "github.com/JakeFAU/titlecheck/internal/progress/sinks"
	"github.com/JakeFAU/titlecheck/internal/publisher"
	gcppublisher "github.com/JakeFAU/titlecheck/internal/publisher/pubsub"
	"github.com/JakeFAU/titlecheck/internal/recorder"
	"github.com/JakeFAU/titlecheck/internal/scheduler"
	gcsstorage "github.com/JakeFAU/titlecheck/internal/storage/gcs"
	localstorage "github.com/JakeFAU/titlecheck/internal/storage/local"
	memorystorage "github.com/JakeFAU/titlecheck/internal/storage/memory"
	pgstore "github.com/JakeFAU/titlecheck/internal/storage/postgres"
	"github.com/JakeFAU/titlecheck/internal/telemetry"
	"github.com/JakeFAU/titlecheck/internal/verify"
)

// ServiceName identifies the process in traces.
const ServiceName = "titlecheck"

// Overrides replaces selected dependencies. Zero fields are built from config.
type Overrides struct {
	Browser verify.Browser
	Shots   verify.ScreenshotStore
	// Registerer defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// App contains the dependencies of one verification run.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	runID    uuid.UUID
	checker  *verify.Checker
	recorder recorder.Recorder
	shots    verify.ScreenshotStore
	hub      *progress.Hub
	summary  *progresssinks.SummarySink
	ops      *api.Server
	pool     *pgxpool.Pool
	closers  []closer
}

// Build creates the run's dependencies. On failure everything already opened
// is closed again.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, ov Overrides) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID, err := iduuid.New().NewRunID()
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	a := &App{
		cfg:    cfg,
		logger: logging.ForRun(logger, runID.String()),
		runID:  runID,
	}
	if err := a.build(ctx, ov); err != nil {
		if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil {
			a.logger.Warn("cleanup after failed build", zap.Error(cerr))
		}
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, ov Overrides) error {
	tp, err := telemetry.InitTracerProvider(ctx, ServiceName)
	if err != nil {
		return fmt.Errorf("tracer init failed: %w", err)
	}
	a.addCloser("tracer", tp.Shutdown)

	browser := ov.Browser
	if browser == nil {
		browser, err = newBrowser(a.cfg, a.logger)
		if err != nil {
			return err
		}
	}
	a.addCloser("browser", func(context.Context) error { return browser.Close() })

	checkerCfg := verify.CheckerConfig{
		NavigationTimeout: a.cfg.Checker.NavTimeout,
		HeadingTimeout:    a.cfg.Checker.HeadingTimeout,
		ScreenshotTimeout: a.cfg.Checker.ScreenshotTimeout,
		Retry: verify.RetryPolicy{
			MaxRetries: a.cfg.Checker.MaxRetries,
			BaseDelay:  a.cfg.Checker.RetryBackoff,
			MaxDelay:   a.cfg.Checker.RetryBackoffMax,
		},
		Clock: system.New(),
	}
	if a.cfg.Checker.DomainQPS > 0 {
		checkerCfg.Limiter = ratelimit.New(ratelimit.Config{
			DefaultRPS:   a.cfg.Checker.DomainQPS,
			DefaultBurst: 1,
		})
	}
	a.checker, err = verify.NewChecker(browser, checkerCfg, a.logger)
	if err != nil {
		return fmt.Errorf("checker init failed: %w", err)
	}

	a.shots = ov.Shots
	if a.shots == nil {
		if a.shots, err = a.setupScreenshots(ctx); err != nil {
			return err
		}
	}

	if err := a.setupDatabase(ctx); err != nil {
		return err
	}
	if err := a.setupRecorder(ctx); err != nil {
		return err
	}
	if err := a.setupProgress(ov.Registerer); err != nil {
		return err
	}

	if a.cfg.Metrics.ListenAddr != "" {
		a.ops = api.NewServer(api.Config{
			Runs:   a.summary,
			Ready:  a.ready,
			APIKey: a.cfg.Metrics.APIKey,
		}, a.logger.Named("api"))
	}
	return nil
}

func newBrowser(cfg config.Config, logger *zap.Logger) (verify.Browser, error) {
	logger = logger.Named("browser")
	switch cfg.Browser.Backend {
	case config.BackendRod:
		b, err := rodbrowser.New(rodbrowser.Config{
			Headless:  cfg.Browser.Headless,
			BinPath:   cfg.Browser.Bin,
			NoSandbox: cfg.Browser.NoSandbox,
			UserAgent: cfg.Checker.UserAgent,
			Stealth:   cfg.Browser.Stealth,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("launch rod browser: %w", err)
		}
		return b, nil
	case config.BackendStatic:
		return staticbrowser.New(staticbrowser.Config{
			UserAgent: cfg.Checker.UserAgent,
			Timeout:   cfg.Checker.NavTimeout,
		}, logger), nil
	default:
		b, err := chromedpbrowser.New(chromedpbrowser.Config{
			Headless:  cfg.Browser.Headless,
			BinPath:   cfg.Browser.Bin,
			NoSandbox: cfg.Browser.NoSandbox,
			UserAgent: cfg.Checker.UserAgent,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("launch chromedp browser: %w", err)
		}
		return b, nil
	}
}

func (a *App) setupScreenshots(ctx context.Context) (verify.ScreenshotStore, error) {
	switch a.cfg.Screenshots.Backend {
	case config.ShotsGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.addCloser("gcs client", func(context.Context) error { return client.Close() })
		store, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket: a.cfg.Screenshots.GCSBucket,
			Prefix: a.cfg.Screenshots.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs screenshot store: %w", err)
		}
		return store, nil
	case config.ShotsMemory:
		return memorystorage.NewScreenshotStore(), nil
	default:
		store, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Screenshots.Dir})
		if err != nil {
			return nil, fmt.Errorf("local screenshot store: %w", err)
		}
		return store, nil
	}
}

func (a *App) setupDatabase(ctx context.Context) error {
	if a.cfg.DB.DSN == "" {
		return nil
	}
	pool, err := pgstore.NewPool(ctx, pgstore.PoolConfig{
		DSN:      a.cfg.DB.DSN,
		MaxConns: int32(a.cfg.DB.MaxConns), //nolint:gosec // validated small value
	})
	if err != nil {
		return err
	}
	a.pool = pool
	a.addCloser("postgres pool", func(context.Context) error {
		pool.Close()
		return nil
	})
	return nil
}

func (a *App) setupRecorder(ctx context.Context) error {
	csv, err := recorder.New(a.Paths())
	if err != nil {
		return fmt.Errorf("open sinks: %w", err)
	}
	mirrors := make(map[string]recorder.Recorder)

	if a.pool != nil {
		outcomes, err := pgstore.NewOutcomeStoreWithPool(a.pool, a.cfg.DB.Table, a.runID)
		if err != nil {
			return fmt.Errorf("outcome store: %w", err)
		}
		mirrors["postgres"] = outcomes
	}

	if a.cfg.PubSub.TopicName != "" {
		pub, closeFn, err := gcppublisher.Open(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
		if err != nil {
			return err
		}
		a.addCloser("pubsub", func(context.Context) error { return closeFn() })
		notifier, err := publisher.NewNotifier(pub, a.cfg.PubSub.TopicName, a.runID.String())
		if err != nil {
			return fmt.Errorf("notifier: %w", err)
		}
		mirrors["pubsub"] = notifier
	}

	if len(mirrors) == 0 {
		a.recorder = csv
		return nil
	}
	a.recorder = recorder.NewFanout(csv, mirrors, a.logger.Named("recorder"))
	return nil
}

func (a *App) setupProgress(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	promSink, err := progresssinks.NewPrometheusSink(reg)
	if err != nil {
		return fmt.Errorf("prometheus sink: %w", err)
	}
	a.summary = progresssinks.NewSummarySink()
	sinkList := []progress.Sink{
		progresssinks.NewLogSink(a.logger.Named("progress")),
		promSink,
		a.summary,
	}
	if a.pool != nil {
		runs, err := pgstore.NewRunStoreWithPool(a.pool)
		if err != nil {
			return fmt.Errorf("run store: %w", err)
		}
		sinkList = append(sinkList, progresssinks.NewStoreSink(runs, a.logger.Named("runs")))
	}
	a.hub = progress.NewHub(progress.Config{Logger: a.logger.Named("hub")}, sinkList...)
	a.addCloser("progress hub", a.hub.Close)
	return nil
}

func (a *App) ready(ctx context.Context) error {
	if a.pool == nil {
		return nil
	}
	if err := a.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

func (a *App) addCloser(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// RunID identifies this run in logs, rows and notifications.
func (a *App) RunID() uuid.UUID {
	return a.runID
}

// Logger returns the run-scoped logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Paths returns the configured sink files.
func (a *App) Paths() recorder.Paths {
	return recorder.Paths{
		Matched:    a.cfg.Output.MatchedPath,
		Failed:     a.cfg.Output.FailedPath,
		BotBlocked: a.cfg.Output.BotBlockedPath,
	}
}

// Checker returns the configured checker.
func (a *App) Checker() *verify.Checker {
	return a.checker
}

// Scheduler wires the checker to the run's sinks, screenshot store and
// progress hub.
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	sched, err := scheduler.New(a.checker, a.recorder, a.shots, scheduler.Config{
		Concurrency: a.cfg.Checker.Concurrency,
		Naming:      verify.Naming(a.cfg.Screenshots.Naming),
		RunID:       a.runID,
		Emitter:     a.hub,
		Clock:       system.New(),
	}, a.logger.Named("scheduler"))
	if err != nil {
		return nil, fmt.Errorf("scheduler init failed: %w", err)
	}
	return sched, nil
}

// Run reads the input list and checks every item. The ops server, when
// configured, stays up for the duration of the run.
func (a *App) Run(ctx context.Context) (scheduler.Summary, error) {
	res, err := input.ReadFile(a.cfg.Input.Path, input.Columns{
		URL:   a.cfg.Input.URLColumn,
		Title: a.cfg.Input.TitleColumn,
	})
	if err != nil {
		return scheduler.Summary{}, err
	}
	if res.Skipped > 0 {
		a.logger.Warn("skipped incomplete input rows", zap.Int("skipped", res.Skipped))
	}
	a.logger.Info("input loaded",
		zap.String("path", a.cfg.Input.Path),
		zap.Int("items", len(res.Items)),
	)

	sched, err := a.Scheduler()
	if err != nil {
		return scheduler.Summary{}, err
	}

	opsDone := make(chan error, 1)
	opsCtx, stopOps := context.WithCancel(ctx)
	if a.ops != nil {
		go func() { opsDone <- a.ops.Serve(opsCtx, a.cfg.Metrics.ListenAddr) }()
	} else {
		opsDone <- nil
	}

	summary, runErr := sched.Run(ctx, res.Items)

	stopOps()
	if err := <-opsDone; err != nil {
		a.logger.Warn("ops server stopped with error", zap.Error(err))
	}
	return summary, runErr
}

// Close releases everything Build opened, newest first.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			a.logger.Warn("close failed", zap.String("component", c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	a.closers = nil
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	return errors.Join(errs...)
}
