package app

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"animbridge/pkg/api/handlers"
	"animbridge/pkg/auth"
	"animbridge/pkg/orchestrator"
	"animbridge/pkg/retry"
	"animbridge/pkg/telemetry"
)

// retryFromConfig maps the YAML retry block onto the executor config; zero
// fields fall back to defaults inside the executor.
func (a *App) retryFromConfig() retry.Config {
	rc := a.eff.Config.Backend.Retry
	return retry.Config{
		MaxAttempts:   rc.MaxAttempts,
		InitialDelay:  rc.InitialDelay.Duration(),
		MaxDelay:      rc.MaxDelay.Duration(),
		BackoffFactor: rc.BackoffFactor,
	}
}

// buildHandler assembles the router: thread and generate routes, admin
// routes behind the admin gate, probes, metrics and docs, all wrapped by the
// auth gateway and the metrics middleware.
func (a *App) buildHandler() http.Handler {
	retryCfg := a.retryFromConfig()
	orch := &orchestrator.Orchestrator{
		Store:         a.store,
		Retry:         retryCfg,
		StageInterval: a.eff.Config.Stream.StageInterval.Duration(),
	}
	h := &handlers.H{
		Store:     a.store,
		Retry:     retryCfg,
		Orch:      orch,
		Retention: a.eff.Config.Retention,
		MaxBody:   a.eff.Config.Server.MaxBody.Int64(),
	}
	// A nil *Client inside the Generator interface would not compare equal
	// to nil, so only assign when the backend is actually configured.
	if a.bc != nil {
		orch.Gen = a.bc
		h.Backend = a.bc
	}

	secCfg := auth.FromConfig(a.eff.Config)

	r := mux.NewRouter()
	r.Use(telemetry.Middleware)

	h.RegisterThreads(r)
	h.RegisterGenerate(r)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(auth.RequireAdmin(secCfg))
	h.RegisterAdmin(admin)

	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	r.HandleFunc("/readyz", a.readyzHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/docs/").Handler(httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	r.Handle("/openapi.yaml", http.FileServer(http.Dir("./docs")))

	return auth.Gateway(secCfg)(r)
}

// startHTTP starts the HTTP server in a goroutine and returns a channel that
// will receive any fatal server error.
func (a *App) startHTTP() <-chan error {
	a.srv = &http.Server{
		Addr:    a.eff.Addr,
		Handler: a.buildHandler(),
		// No WriteTimeout: SSE responses stay open for the whole generation.
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		cert := a.eff.Config.Server.TLS.CertFile
		key := a.eff.Config.Server.TLS.KeyFile
		if cert != "" && key != "" {
			errCh <- a.srv.ListenAndServeTLS(cert, key)
		} else {
			errCh <- a.srv.ListenAndServe()
		}
	}()
	return errCh
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !a.store.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","version":"` + ver + `"}`))
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
