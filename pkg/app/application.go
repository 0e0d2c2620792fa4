package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"medilink/pkg/auth"
	"medilink/pkg/config"
	"medilink/pkg/contracts"
	"medilink/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

type worker struct {
	name string
	run  func(ctx context.Context)
}

type closer struct {
	name string
	fn   func() error
}

type Application struct {
	cfg              *config.Config
	server           *http.Server
	handler          http.Handler
	idempotencyStore middleware.IdempotencyStore
	rateLimiter      *middleware.UserRateLimiter
	workers          []worker
	closers          []closer
}

func NewApplication() *Application {
	return &Application{}
}

// SetApp mounts the handlers. Handlers in api sit behind authentication and
// the full middleware stack; handlers in public (health, the websocket) only
// get recovery and request logging.
func (a *Application) SetApp(cfg *config.Config, tokens *auth.TokenService, api []contracts.Handler, public []contracts.Handler) {
	a.cfg = cfg
	apiHandler := a.apiHandler(cfg, tokens, api)
	a.handler = a.publicHandler(cfg, public, apiHandler)
	a.setAppServer()
}

// AddWorker registers a background loop that runs until shutdown.
func (a *Application) AddWorker(name string, run func(ctx context.Context)) {
	a.workers = append(a.workers, worker{name: name, run: run})
}

// AddCloser registers a resource released after the server stopped.
func (a *Application) AddCloser(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

func (a *Application) Handler() http.Handler {
	return a.handler
}

func (a *Application) healthChecks(cfg *config.Config) map[string]Check {
	checks := map[string]Check{}
	if cfg.Client != nil && cfg.Client.Mongo != nil {
		mongoClient := cfg.Client.Mongo
		checks["database"] = func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) }
	}
	if cfg.Client != nil && cfg.Client.Redis != nil {
		redisClient := cfg.Client.Redis
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	return checks
}

func (a *Application) publicHandler(cfg *config.Config, public []contracts.Handler, fallback http.Handler) http.Handler {
	router := httprouter.New()
	router.HandleMethodNotAllowed = false
	router.RedirectTrailingSlash = false
	router.NotFound = fallback

	NewHealthHandler(a.healthChecks(cfg), cfg.Log).RegisterRoutes(router)
	for _, h := range public {
		h.RegisterRoutes(router)
	}

	var handler http.Handler = router
	handler = middleware.RequestLogging(cfg.Log)(handler)
	handler = middleware.Recovery(cfg.Log)(handler)
	cfg.Log.Info("Public endpoints configured with minimal middleware (Recovery + Logging only)")
	return handler
}

func (a *Application) apiHandler(cfg *config.Config, tokens *auth.TokenService, api []contracts.Handler) http.Handler {
	router := httprouter.New()
	for _, h := range api {
		h.RegisterRoutes(router)
	}

	if cfg.Client != nil && cfg.Client.Redis != nil {
		a.idempotencyStore = middleware.NewRedisIdempotencyStore(cfg.Client.Redis, cfg.IdempotencyTTL, cfg.ReadTimeout, cfg.Log)
	} else {
		a.idempotencyStore = middleware.NewInMemoryIdempotencyStore(cfg.IdempotencyTTL)
	}
	a.rateLimiter = middleware.NewUserRateLimiter(
		cfg.RateLimitRequests,
		cfg.RateLimitWindow,
		middleware.IdentityKey,
		cfg.Log,
	)

	// Wrapped inside out: requests pass Recovery first and the router last.
	var handler http.Handler = router
	handler = middleware.Idempotency(a.idempotencyStore, middleware.DefaultIdempotencyHeader)(handler)
	handler = middleware.RequestTimeout(cfg.RequestTimeout)(handler)
	handler = middleware.UserRateLimit(a.rateLimiter)(handler)
	handler = middleware.Authenticate(tokens, cfg.Log)(handler)
	handler = middleware.ContentTypeValidation(cfg.Log)(handler)
	handler = middleware.MaxRequestSize(int64(cfg.MaxRequestSize))(handler)
	cfg.Log.Info("Application endpoints configured with full security middleware stack")
	return handler
}

func (a *Application) setAppServer() {
	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      a.handler,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

func (a *Application) Run() {
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, w := range a.workers {
		wg.Add(1)
		go func(w worker) {
			defer wg.Done()
			a.cfg.Log.Info("Starting background worker", "worker", w.name)
			w.run(workerCtx)
		}(w)
	}

	serverErrors := make(chan error, 1)
	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			stopWorkers()
			a.cfg.Log.Fatal("HTTP server failed", "error", err)
		}

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
	}

	a.gracefulShutdown(stopWorkers, &wg)
}

func (a *Application) gracefulShutdown(stopWorkers context.CancelFunc, wg *sync.WaitGroup) {
	a.cfg.Log.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Error("Could not stop server gracefully", "error", err)
		}
	}

	a.cfg.Log.Info("Stopping background workers...")
	stopWorkers()
	wg.Wait()
	a.idempotencyStore.Stop()
	a.rateLimiter.Stop()
	a.cfg.Log.Info("Background workers stopped")

	for _, c := range a.closers {
		if err := c.fn(); err != nil {
			a.cfg.Log.Error("Failed to close resource", "resource", c.name, "error", err)
		}
	}

	a.cfg.Log.Info("Server stopped gracefully")
}
