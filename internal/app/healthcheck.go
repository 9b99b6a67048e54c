package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vk/benchgrid/internal/scheduler"
)

// healthHandler answers liveness probes.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// progressHandler serves the job counts of the current run as JSON.
func (a *App) progressHandler(w http.ResponseWriter, _ *http.Request) {
	a.mu.Lock()
	progress := a.progress
	a.mu.Unlock()

	var p scheduler.Progress
	if progress != nil {
		p = progress()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(p); err != nil {
		a.logger.Warn("Failed to encode progress.", "error", err)
	}
}

func (a *App) healthMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.HandleFunc("/progress", a.progressHandler)
	return mux
}

// startHealthcheckServer runs the health check HTTP server in the background
// and returns a function shutting it down.
func (a *App) startHealthcheckServer(port int) func() {
	a.logger.Debug("Configuring health check server.")
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{Addr: addr, Handler: a.healthMux(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.logger.Info("🩺 Health check server starting", "address", fmt.Sprintf("http://localhost%s/health", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Health check server failed unexpectedly", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.Debug("Shutting down health check server...")
		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Error("Health check server shutdown failed", "error", err)
		}
	}
}
