package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fieldtoalert/field-to-alert/internal/config"
	"github.com/fieldtoalert/field-to-alert/internal/services/gateway/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg config.Gateway
	if err := config.Load("GATEWAY", &cfg); err != nil {
		log.Fatalf("gateway: config: %v", err)
	}

	g := app.NewGateway(app.Config{
		PersistenceBaseURL: cfg.PersistenceURL,
		EventBaseURL:       cfg.EventURL,
		HTTPTimeout:        cfg.Timeout,
		BreakerFailures:    cfg.BreakerFailures,
		BreakerOpenFor:     cfg.BreakerOpenFor,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/dashboard/data", g.HandleDashboard)
	mux.HandleFunc("/healthz", g.HandleHealthz)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("gateway: listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("gateway: http server: %v", err)
		}
	}()

	<-ctx.Done()
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	log.Println("gateway: shutdown complete")
}
