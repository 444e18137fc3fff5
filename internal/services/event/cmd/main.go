package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/fieldtoalert/field-to-alert/internal/config"
	"github.com/fieldtoalert/field-to-alert/internal/services/event"
	"github.com/fieldtoalert/field-to-alert/pkg/dedup"
	"github.com/fieldtoalert/field-to-alert/pkg/mqttbus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var mqttCfg config.MQTT
	if err := config.Load("MQTT", &mqttCfg); err != nil {
		log.Fatalf("event: mqtt config: %v", err)
	}
	var influxCfg config.Influx
	if err := config.Load("INFLUX", &influxCfg); err != nil {
		log.Fatalf("event: influx config: %v", err)
	}
	var cfg config.Event
	if err := config.Load("EVENT", &cfg); err != nil {
		log.Fatalf("event: config: %v", err)
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(cfg.BatchSize)).
		SetFlushInterval(uint(cfg.FlushInterval.Milliseconds()))
	influx := influxdb2.NewClientWithOptions(influxCfg.URL, influxCfg.Token, opts)
	defer influx.Close()
	writeAPI := influx.WriteAPI(influxCfg.Org, influxCfg.Bucket)
	writer := event.NewWriter(writeAPI)

	if mqttCfg.ClientID == "" {
		mqttCfg.ClientID = "eventService"
	}
	client, err := mqttbus.NewConn(ctx, mqttbus.Config{
		Host: mqttCfg.Host, Port: mqttCfg.Port,
		User: mqttCfg.User, Password: mqttCfg.Password,
		ClientID: mqttCfg.ClientID,
	})
	if err != nil {
		log.Fatal(err)
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", event.NewHealthHandler(client, influx, writer))
	mux.Handle("/readyz", event.NewReadyHandler(client, influx, writer, 2*time.Second))
	mux.Handle("/events/decisions/latest", event.NewDecisionLatestHandler(influx, influxCfg.Org, influxCfg.Bucket))
	mux.Handle("/events/irrigation/latest", event.NewIrrigationLatestHandler(influx, influxCfg.Org, influxCfg.Bucket))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("event: http listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("event: http server: %v", err)
		}
	}()

	h := event.NewMQTTHandler(func(evt event.CommonEvent) {
		writeAPI.WritePoint(event.EventToPoint(evt))
		writer.MarkIngest(evt.EventType)
	})

	// Both subscribed topics are QoS 1, so redeliveries are dropped by
	// payload hash before decoding.
	d := dedup.New(10*time.Minute, 20000)
	consumer := mqttbus.NewMultiConsumer[event.CommonEvent](client, cfg.Topics, func(topic string, m mqtt.Message) error {
		hh := sha256.Sum256(m.Payload())
		if !d.ShouldProcess(hex.EncodeToString(hh[:])) {
			return nil
		}
		return h.Handle(topic, m)
	})
	go consumer.Consume(ctx)

	<-ctx.Done()
	log.Println("event: shutting down")

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.ReadinessGrace)
	defer cancel()
	_ = srv.Shutdown(shCtx)

	// allow a final async flush
	time.Sleep(cfg.FlushInterval + 100*time.Millisecond)
}
