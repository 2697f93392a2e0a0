package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/maildispatch/cache"
	"github.com/jonwraymond/maildispatch/config"
	"github.com/jonwraymond/maildispatch/dispatch"
	"github.com/jonwraymond/maildispatch/email"
	"github.com/jonwraymond/maildispatch/health"
	"github.com/jonwraymond/maildispatch/observe"
	"github.com/jonwraymond/maildispatch/provider"
	"github.com/jonwraymond/maildispatch/queue"
	"github.com/jonwraymond/maildispatch/resilience"
	"github.com/jonwraymond/maildispatch/secret"
	"github.com/jonwraymond/maildispatch/server"
)

// App is a fully wired dispatch service.
type App struct {
	config     *config.Config
	observer   observe.Observer
	logger     observe.Logger
	pool       *provider.Pool
	limiter    *resilience.SlidingWindowLimiter
	cache      *cache.MemoryCache[email.Result]
	dispatcher *dispatch.Dispatcher
	health     *health.Aggregator
	server     *server.Server

	shutdownOnce sync.Once
	shutdownErr  error
}

// Option customizes New.
type Option func(*options)

type options struct {
	clock     clockwork.Clock
	providers []provider.Provider
	resolver  *secret.Resolver
}

// WithClock replaces the real clock.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithProviders uses the given providers instead of building them from the
// configuration.
func WithProviders(providers ...provider.Provider) Option {
	return func(o *options) { o.providers = providers }
}

// WithResolver sets the resolver for provider credentials.
// Default: secret.DefaultResolver()
func WithResolver(r *secret.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// New wires an App from cfg. Nothing runs until Run.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clockwork.NewRealClock()
	}
	if o.resolver == nil {
		o.resolver = secret.DefaultResolver()
	}

	obs, err := observe.NewObserver(ctx, cfg.Observe.ToObserve())
	if err != nil {
		return nil, fmt.Errorf("observer: %w", err)
	}
	a := &App{config: cfg, observer: obs, logger: obs.Logger()}

	if err := a.build(ctx, o); err != nil {
		_ = a.release(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, o options) error {
	cfg := a.config
	d := cfg.Dispatch

	mw, metrics, err := observe.MiddlewareFromObserver(a.observer)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	providers := o.providers
	if providers == nil {
		providers, err = buildProviders(ctx, cfg.Providers, o.resolver, o.clock)
		if err != nil {
			return err
		}
	}

	a.pool, err = provider.NewPool(providers, provider.PoolConfig{
		Breaker: resilience.CircuitBreakerConfig{
			FailureThreshold:  d.FailureThreshold,
			ResetTimeout:      config.Millis(d.ResetTimeoutMs),
			MonitoringPeriod:  config.Millis(d.MonitoringPeriodMs),
			HalfOpenMaxTrials: d.HalfOpenMaxTrials,
		},
		Retry: resilience.RetryConfig{
			MaxAttempts:  d.Retry.MaxAttempts,
			InitialDelay: config.Millis(d.Retry.InitialDelayMs),
			MaxDelay:     config.Millis(d.Retry.MaxDelayMs),
			Multiplier:   d.Retry.Multiplier,
			Jitter:       true,
		},
		AttemptTimeout: config.Millis(d.AttemptTimeoutMs),
		Middleware:     mw,
		Logger:         a.logger,
		Clock:          o.clock,
	})
	if err != nil {
		return fmt.Errorf("provider pool: %w", err)
	}

	window := config.Millis(d.RateLimit.WindowMs)
	a.limiter = resilience.NewSlidingWindowLimiter(resilience.SlidingWindowConfig{
		MaxRequests:   d.RateLimit.MaxRequests,
		Window:        window,
		PruneInterval: window,
		Clock:         o.clock,
	})
	a.cache = cache.NewMemoryCache[email.Result](cache.Policy{
		TTL:           config.Millis(d.Idempotency.TTLMs),
		MaxEntries:    d.Idempotency.MaxEntries,
		SweepInterval: time.Minute,
	}, cache.WithClock(o.clock))

	a.dispatcher, err = dispatch.New(a.pool,
		dispatch.WithCache(a.cache),
		dispatch.WithLimiter(a.limiter),
		dispatch.WithQueue(queue.New(queue.Config{MaxDepth: d.Queue.MaxDepth})),
		dispatch.WithClock(o.clock),
		dispatch.WithLogger(a.logger),
		dispatch.WithPollInterval(config.Millis(d.PollIntervalMs)),
	)
	if err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}
	a.dispatcher.Subscribe(dispatch.MetricsListener(metrics))

	a.health = health.NewAggregator()
	a.health.Register("providers", dispatch.ProviderChecker(a.pool))
	a.health.Register("queue", dispatch.QueueChecker(a.dispatcher.Queue()))
	a.health.Register("runtime", health.NewRuntimeChecker(health.RuntimeCheckerConfig{}))

	a.server, err = server.New(a.dispatcher, server.Config{
		Addr:         cfg.Server.Addr(),
		SendPath:     cfg.Server.SendPath,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Ingress: server.IngressConfig{
			Rate:  cfg.Server.Ingress.Rate,
			Burst: cfg.Server.Ingress.Burst,
		},
		Health: a.health,
		Logger: a.logger,
	})
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// Dispatcher returns the dispatch core.
func (a *App) Dispatcher() *dispatch.Dispatcher { return a.dispatcher }

// Health returns the health aggregator.
func (a *App) Health() *health.Aggregator { return a.health }

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler { return a.server.Handler() }

// Run starts the dispatcher and serves HTTP until ctx is done or the server
// fails, then shuts everything down within the configured shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	a.dispatcher.Start(context.WithoutCancel(ctx))

	members := a.pool.Members()
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Name())
	}
	a.logger.Info(ctx, "email dispatch service starting",
		observe.Field{Key: "addr", Value: a.server.Addr()},
		observe.Field{Key: "send_path", Value: a.config.Server.SendPath},
		observe.Field{Key: "providers", Value: names},
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(a.server.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.config.Server.ShutdownTimeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Shutdown stops the server, then the dispatcher, then releases providers
// and telemetry. It is safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		a.logger.Info(ctx, "email dispatch service stopping")

		var errs []error
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
		}
		if err := a.dispatcher.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop dispatcher: %w", err))
		}
		if err := a.release(ctx); err != nil {
			errs = append(errs, err)
		}
		a.shutdownErr = errors.Join(errs...)
	})
	return a.shutdownErr
}

func (a *App) release(ctx context.Context) error {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.cache != nil {
		a.cache.Close()
	}
	if err := a.observer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown telemetry: %w", err)
	}
	return nil
}
