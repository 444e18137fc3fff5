package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fieldtoalert/field-to-alert/internal/config"
	"github.com/fieldtoalert/field-to-alert/internal/engine"
	"github.com/fieldtoalert/field-to-alert/internal/model"
	"github.com/fieldtoalert/field-to-alert/internal/model/entities"
	"github.com/fieldtoalert/field-to-alert/internal/observability"
	"github.com/fieldtoalert/field-to-alert/internal/services/controller"
	"github.com/fieldtoalert/field-to-alert/internal/waterbalance"
	"github.com/fieldtoalert/field-to-alert/internal/weather"
	"github.com/fieldtoalert/field-to-alert/pkg/mqttbus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var mqttCfg config.MQTT
	if err := config.Load("MQTT", &mqttCfg); err != nil {
		log.Fatalf("controller: mqtt config: %v", err)
	}
	var cfg config.Controller
	if err := config.Load("CONTROLLER", &cfg); err != nil {
		log.Fatalf("controller: config: %v", err)
	}

	zones, err := entities.LoadZones(cfg.ZonesPath)
	if err != nil {
		log.Fatalf("controller: load zones: %v", err)
	}
	log.Printf("controller: loaded %d zone(s) from %s", len(zones), cfg.ZonesPath)

	if mqttCfg.ClientID == "" {
		mqttCfg.ClientID = "irrigationController"
	}
	client, err := mqttbus.NewConn(ctx, mqttbus.Config{
		Host: mqttCfg.Host, Port: mqttCfg.Port,
		User: mqttCfg.User, Password: mqttCfg.Password,
		ClientID: mqttCfg.ClientID,
	})
	if err != nil {
		log.Fatal(err)
	}

	var estimator waterbalance.ETEstimator
	if cfg.OWMAPIKey != "" {
		estimator = weather.NewOWMEstimator(cfg.OWMAPIKey)
		log.Println("controller: using OpenWeatherMap ET estimator")
	} else {
		estimator = weather.FixedRate{MMPerDay: cfg.FixedETMMPerDay}
		log.Printf("controller: no OWM key, using fixed ET %.1f mm/day", cfg.FixedETMMPerDay)
	}

	metrics := observability.NewMetrics()
	publisher := mqttbus.NewPublisher(client, "")
	dispatcher := controller.NewMQTTDispatcher(publisher, cfg.DecisionTopicTmpl, zones)

	eng, err := engine.New(zones, estimator,
		engine.WithDispatcher(dispatcher),
		engine.WithMetrics(metrics),
	)
	if err != nil {
		log.Fatalf("controller: engine: %v", err)
	}

	observations := mqttbus.NewConsumer[model.RawObservation](client, cfg.ObservationTopic, nil)
	results := mqttbus.NewConsumer[model.IrrigationEvent](client, cfg.ResultTopic, nil)

	ctrl, err := controller.NewController(observations, results, eng)
	if err != nil {
		log.Fatalf("controller: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.HTTPPort), Handler: mux}
	go func() {
		log.Printf("controller: http listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("controller: http server: %v", err)
		}
	}()

	ctrl.Start(ctx)

	_ = srv.Shutdown(context.Background())
	publisher.Close()
	log.Println("controller: stopped")
}
