// Package app aggregates the persistence and event services into the
// single payload the dashboard polls, shielding it from upstream outages
// with per-upstream circuit breakers and a last-good cache.
package app

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/fieldtoalert/field-to-alert/internal/model"
)

type Config struct {
	PersistenceBaseURL string
	EventBaseURL       string
	HTTPTimeout        time.Duration

	BreakerFailures int
	BreakerOpenFor  time.Duration
}

type Gateway struct {
	cfg         Config
	persistence *Upstream
	events      *Upstream

	mu           sync.RWMutex
	lastGood     DashboardData
	lastGoodTime time.Time
}

func NewGateway(cfg Config) *Gateway {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 2 * time.Second
	}
	return &Gateway{
		cfg:         cfg,
		persistence: NewUpstream("persistence", cfg.PersistenceBaseURL, cfg.HTTPTimeout, cfg.BreakerFailures, cfg.BreakerOpenFor),
		events:      NewUpstream("event", cfg.EventBaseURL, cfg.HTTPTimeout, cfg.BreakerFailures, cfg.BreakerOpenFor),
	}
}

// HandleDashboard fetches all three upstream views in parallel and merges
// them. A failed fetch leaves its section from the last good payload.
func (g *Gateway) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.HTTPTimeout)
	defer cancel()

	var (
		wg          sync.WaitGroup
		latest      []model.RawObservation
		decisions   []Decision
		irrigations []Irrigation
		latestErr   error
		decErr      error
		irrErr      error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		latestErr = g.persistence.GetJSON(ctx, "/data/latest", &latest)
	}()
	go func() {
		defer wg.Done()
		decErr = g.events.GetJSON(ctx, "/events/decisions/latest", &decisions)
	}()
	go func() {
		defer wg.Done()
		irrErr = g.events.GetJSON(ctx, "/events/irrigation/latest", &irrigations)
	}()
	wg.Wait()

	g.mu.RLock()
	data := g.lastGood
	g.mu.RUnlock()

	if latestErr == nil {
		zones := make([]ZoneLatest, 0, len(latest))
		for _, obs := range latest {
			zones = append(zones, zoneLatestFrom(obs))
		}
		sort.Slice(zones, func(i, j int) bool { return zones[i].ZoneID < zones[j].ZoneID })
		data.Zones = zones
		data.Stats = statsFor(zones)
	}
	if decErr == nil {
		data.Decisions = decisions
	}
	if irrErr == nil {
		data.Irrigations = irrigations
	}
	if data.Zones == nil {
		data.Zones = []ZoneLatest{}
	}
	if data.Decisions == nil {
		data.Decisions = []Decision{}
	}
	if data.Irrigations == nil {
		data.Irrigations = []Irrigation{}
	}

	if latestErr == nil && decErr == nil && irrErr == nil {
		g.mu.Lock()
		g.lastGood = data
		g.lastGoodTime = time.Now()
		g.mu.Unlock()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)

	log.Printf("gateway: GET /dashboard/data [%dms] cb[pers]=%v cb[event]=%v zones=%d decisions=%d",
		time.Since(start).Milliseconds(), g.persistence.State(), g.events.State(),
		len(data.Zones), len(data.Decisions))
}

// HandleHealthz reports breaker states and cache age.
func (g *Gateway) HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	g.mu.RLock()
	age := time.Since(g.lastGoodTime)
	g.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":            "ok",
		"persistence_state": g.persistence.State().String(),
		"event_state":       g.events.State().String(),
		"last_good_age_sec": math.Round(age.Seconds()),
	})
}

func statsFor(zones []ZoneLatest) Stats {
	if len(zones) == 0 {
		return Stats{}
	}
	s := Stats{MinVWC: math.MaxFloat64}
	sum := 0.0
	for _, z := range zones {
		sum += z.MeanVWC
		if z.MeanVWC < s.MinVWC {
			s.MinVWC = z.MeanVWC
		}
		if z.MeanVWC > s.MaxVWC {
			s.MaxVWC = z.MeanVWC
		}
	}
	s.MeanVWC = sum / float64(len(zones))
	return s
}
