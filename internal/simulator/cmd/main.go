package main

import (
	"context"
	"encoding/json"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fieldtoalert/field-to-alert/internal/config"
	"github.com/fieldtoalert/field-to-alert/internal/model/entities"
	"github.com/fieldtoalert/field-to-alert/internal/simulator"
	"github.com/fieldtoalert/field-to-alert/pkg/mqttbus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var mqttCfg config.MQTT
	if err := config.Load("MQTT", &mqttCfg); err != nil {
		log.Fatalf("simulator: mqtt config: %v", err)
	}
	var cfg config.Simulator
	if err := config.Load("SIMULATOR", &cfg); err != nil {
		log.Fatalf("simulator: config: %v", err)
	}

	zones, err := entities.LoadZones(cfg.ZonesPath)
	if err != nil {
		log.Fatalf("simulator: load zones: %v", err)
	}

	if mqttCfg.ClientID == "" {
		mqttCfg.ClientID = "sensorSimulator"
	}
	client, err := mqttbus.NewConn(ctx, mqttbus.Config{
		Host: mqttCfg.Host, Port: mqttCfg.Port,
		User: mqttCfg.User, Password: mqttCfg.Password,
		ClientID: mqttCfg.ClientID,
	})
	if err != nil {
		log.Fatal(err)
	}
	pub := mqttbus.NewPublisher(client, "")
	defer pub.Close()

	rainChance := float64(cfg.RainChancePct) / 100
	gens := make(map[string]*simulator.Generator, len(zones))
	for id, z := range zones {
		gens[id] = simulator.NewGenerator(z, nil, time.Now().UnixNano()+int64(len(id)), rainChance)
	}
	log.Printf("simulator: publishing %d zone(s) every %s", len(gens), cfg.Interval)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("simulator: shutting down")
			return
		case <-ticker.C:
			for id, g := range gens {
				obs := g.Next()
				payload, err := json.Marshal(obs)
				if err != nil {
					log.Printf("simulator: marshal zone %s: %v", id, err)
					continue
				}
				topic := topicFor(cfg.TopicTmpl, zones[id].FieldID, id)
				if err := pub.PublishToQoS(topic, 0, false, string(payload)); err != nil {
					log.Printf("simulator: publish zone %s: %v", id, err)
				}
			}
		}
	}
}

func topicFor(tmpl, fieldID, zoneID string) string {
	t := strings.ReplaceAll(tmpl, "{field}", fieldID)
	return strings.ReplaceAll(t, "{zone}", zoneID)
}
