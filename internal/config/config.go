// Package config loads service configuration from the environment.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// MQTT holds the shared broker settings (prefix MQTT_).
type MQTT struct {
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     int    `envconfig:"PORT" default:"1883"`
	User     string `envconfig:"USER" default:"guest"`
	Password string `envconfig:"PASSWORD" default:"guest"`
	ClientID string `envconfig:"CLIENT_ID"`
}

// Influx holds the shared InfluxDB settings (prefix INFLUX_).
type Influx struct {
	URL    string `envconfig:"URL" default:"http://localhost:8086"`
	Token  string `envconfig:"TOKEN"`
	Org    string `envconfig:"ORG" default:"fieldtoalert"`
	Bucket string `envconfig:"BUCKET" default:"field_data"`
}

// Controller configures the decision controller service (prefix CONTROLLER_).
type Controller struct {
	ZonesPath         string  `envconfig:"ZONES_PATH" default:"config/zones.json"`
	ObservationTopic  string  `envconfig:"OBSERVATION_TOPIC" default:"sensor/observation/#"`
	ResultTopic       string  `envconfig:"RESULT_TOPIC" default:"event/irrigationResult/#"`
	DecisionTopicTmpl string  `envconfig:"DECISION_TOPIC_TMPL" default:"event/irrigationDecision/{field}/{zone}"`
	OWMAPIKey         string  `envconfig:"OWM_API_KEY"`
	FixedETMMPerDay   float64 `envconfig:"FIXED_ET_MM_PER_DAY" default:"5"`
	HTTPPort          int     `envconfig:"HTTP_PORT" default:"8083"`
}

// Persistence configures the observation store service (prefix PERSISTENCE_).
type Persistence struct {
	ObservationTopic string `envconfig:"OBSERVATION_TOPIC" default:"sensor/observation/#"`
	Measurement      string `envconfig:"MEASUREMENT" default:"soil_observation"`
	HTTPPort         int    `envconfig:"HTTP_PORT" default:"8081"`
}

// Event configures the event store service (prefix EVENT_).
type Event struct {
	Topics         []string      `envconfig:"SUB_TOPICS" default:"event/irrigationDecision/#,event/irrigationResult/#"`
	BatchSize      int           `envconfig:"WRITE_BATCH_SIZE" default:"10"`
	FlushInterval  time.Duration `envconfig:"WRITE_FLUSH_INTERVAL" default:"200ms"`
	HTTPPort       int           `envconfig:"HTTP_PORT" default:"8082"`
	ReadinessGrace time.Duration `envconfig:"READINESS_GRACE" default:"5s"`
}

// Gateway configures the dashboard gateway (prefix GATEWAY_).
type Gateway struct {
	PersistenceURL  string        `envconfig:"PERSISTENCE_URL" default:"http://localhost:8081"`
	EventURL        string        `envconfig:"EVENT_URL" default:"http://localhost:8082"`
	HTTPPort        int           `envconfig:"HTTP_PORT" default:"8080"`
	Timeout         time.Duration `envconfig:"TIMEOUT" default:"2s"`
	BreakerFailures int           `envconfig:"BREAKER_FAILURES" default:"3"`
	BreakerOpenFor  time.Duration `envconfig:"BREAKER_OPEN_FOR" default:"10s"`
}

// Simulator configures the synthetic sensor publisher (prefix SIMULATOR_).
type Simulator struct {
	ZonesPath     string        `envconfig:"ZONES_PATH" default:"config/zones.json"`
	Interval      time.Duration `envconfig:"INTERVAL" default:"1m"`
	TopicTmpl     string        `envconfig:"TOPIC_TMPL" default:"sensor/observation/{field}/{zone}"`
	RainChancePct int           `envconfig:"RAIN_CHANCE_PCT" default:"2"`
}

// Load fills cfg from the environment under the given prefix.
func Load(prefix string, cfg any) error {
	return envconfig.Process(prefix, cfg)
}
