package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/fieldtoalert/field-to-alert/internal/config"
	"github.com/fieldtoalert/field-to-alert/internal/model"
	"github.com/fieldtoalert/field-to-alert/internal/services/persistence"
	"github.com/fieldtoalert/field-to-alert/pkg/mqttbus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var mqttCfg config.MQTT
	if err := config.Load("MQTT", &mqttCfg); err != nil {
		log.Fatalf("persistence: mqtt config: %v", err)
	}
	var influxCfg config.Influx
	if err := config.Load("INFLUX", &influxCfg); err != nil {
		log.Fatalf("persistence: influx config: %v", err)
	}
	var cfg config.Persistence
	if err := config.Load("PERSISTENCE", &cfg); err != nil {
		log.Fatalf("persistence: config: %v", err)
	}

	if mqttCfg.ClientID == "" {
		mqttCfg.ClientID = "persistenceService"
	}
	client, err := mqttbus.NewConn(ctx, mqttbus.Config{
		Host: mqttCfg.Host, Port: mqttCfg.Port,
		User: mqttCfg.User, Password: mqttCfg.Password,
		ClientID: mqttCfg.ClientID,
	})
	if err != nil {
		log.Fatal(err)
	}
	consumer := mqttbus.NewConsumer[model.RawObservation](client, cfg.ObservationTopic, nil)

	influxClient := influxdb2.NewClient(influxCfg.URL, influxCfg.Token)
	defer influxClient.Close()

	svc, err := persistence.NewService(consumer, influxClient, persistence.InfluxConfig{
		URL:         influxCfg.URL,
		Token:       influxCfg.Token,
		Org:         influxCfg.Org,
		Bucket:      influxCfg.Bucket,
		Measurement: cfg.Measurement,
	})
	if err != nil {
		log.Fatalf("persistence: init: %v", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           persistence.NewHTTPMux(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("persistence: http listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("persistence: http server: %v", err)
		}
	}()

	go svc.Start(ctx)

	<-ctx.Done()
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	log.Println("persistence: shutdown complete")
}
