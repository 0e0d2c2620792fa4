package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"medilink/pkg/auth"
	"medilink/pkg/config"
	"medilink/pkg/contracts"
	httputil "medilink/pkg/http"
	"medilink/pkg/logger"
	"medilink/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type echoHandler struct{}

func (echoHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/whoami", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		id, _ := auth.FromContext(r.Context())
		_ = httputil.WriteSuccess(w, map[string]string{"userId": id.UserID, "role": id.Role})
	})
}

type publicHandler struct{}

func (publicHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/ws", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusTeapot)
	})
}

func testConfig() *config.Config {
	return &config.Config{
		Log:               logger.Discard(),
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    5 * time.Second,
		IdempotencyTTL:    time.Minute,
		MaxRequestSize:    1 << 20,
		ShutdownTimeout:   time.Second,
	}
}

func newTestApp(t *testing.T) (*Application, *auth.TokenService) {
	t.Helper()
	tokens := auth.NewTokenService("test-secret", "medilink")
	a := NewApplication()
	a.SetApp(testConfig(), tokens, []contracts.Handler{echoHandler{}}, []contracts.Handler{publicHandler{}})
	t.Cleanup(func() {
		a.idempotencyStore.Stop()
		a.rateLimiter.Stop()
	})
	return a, tokens
}

func TestApplicationRouting(t *testing.T) {
	a, tokens := newTestApp(t)
	token, err := tokens.Issue("p1", model.RolePatient, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	tests := []struct {
		name       string
		path       string
		token      string
		wantStatus int
	}{
		{name: "health is public", path: "/health", wantStatus: http.StatusOK},
		{name: "ready without dependencies", path: "/ready", wantStatus: http.StatusOK},
		{name: "public handler skips auth", path: "/ws", wantStatus: http.StatusTeapot},
		{name: "api requires token", path: "/api/v1/whoami", wantStatus: http.StatusUnauthorized},
		{name: "api rejects bad token", path: "/api/v1/whoami", token: "nope", wantStatus: http.StatusUnauthorized},
		{name: "api with token", path: "/api/v1/whoami", token: token, wantStatus: http.StatusOK},
		{name: "unknown path behind auth", path: "/api/v1/missing", token: token, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			a.Handler().ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestReadyReportsFailingDependency(t *testing.T) {
	h := NewHealthHandler(map[string]Check{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}, logger.Discard())

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil), nil)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "unavailable" {
		t.Errorf("Status = %q", body.Status)
	}
	if body.Dependencies["database"] != "ok" || body.Dependencies["redis"] != "error" {
		t.Errorf("Dependencies = %v", body.Dependencies)
	}
}

func TestWorkersStopOnShutdown(t *testing.T) {
	a, _ := newTestApp(t)
	stopped := make(chan struct{})
	a.AddWorker("sweeper", func(ctx context.Context) {
		<-ctx.Done()
		close(stopped)
	})
	closed := false
	a.AddCloser("bus", func() error {
		closed = true
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.workers[0].run(ctx)
	}()

	a.gracefulShutdown(cancel, &wg)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("worker did not observe shutdown")
	}
	if !closed {
		t.Error("closer was not run")
	}
}
