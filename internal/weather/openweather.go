// Package weather provides ET estimators for the water balance tracker.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/fieldtoalert/field-to-alert/internal/model/entities"
)

type owmDaily struct {
	Dt   int64 `json:"dt"`
	Temp struct {
		Min float64 `json:"min"`
		Max float64 `json:"max"`
	} `json:"temp"`
}

type owmResp struct {
	Daily []owmDaily `json:"daily"`
}

// OWMEstimator derives a daily reference ET rate from the OpenWeather
// one-call forecast using the Hargreaves equation. It implements
// waterbalance.ETEstimator.
type OWMEstimator struct {
	apiKey  string
	client  *http.Client
	baseURL string

	// ra is the simplified extraterrestrial radiation coefficient used to
	// express Hargreaves output in mm/day.
	ra float64
}

func NewOWMEstimator(apiKey string) *OWMEstimator {
	return &OWMEstimator{
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 8 * time.Second},
		baseURL: "https://api.openweathermap.org/data/3.0",
		ra:      0.408,
	}
}

// EstimateET returns the Hargreaves ET0 (mm/day) for the day containing the
// end of the range, at the zone's coordinates.
func (e *OWMEstimator) EstimateET(ctx context.Context, zone entities.Zone, _, to time.Time) (float64, error) {
	if e.apiKey == "" {
		return 0, fmt.Errorf("openweather: missing api key")
	}
	url := fmt.Sprintf(
		"%s/onecall?lat=%f&lon=%f&exclude=current,minutely,hourly,alerts&units=metric&appid=%s",
		e.baseURL, zone.Latitude, zone.Longitude, e.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return 0, fmt.Errorf("openweather: status %d: %s", resp.StatusCode, string(b))
	}
	var out owmResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	if len(out.Daily) == 0 {
		return 0, fmt.Errorf("openweather: no daily data")
	}

	chosen := closestDay(out.Daily, to)
	return HargreavesET0(chosen.Temp.Min, chosen.Temp.Max, e.ra), nil
}

// closestDay picks the forecast day nearest the target date (UTC).
func closestDay(daily []owmDaily, target time.Time) owmDaily {
	want := truncateDay(target.UTC())
	chosen := daily[0]
	minDelta := time.Duration(math.MaxInt64)
	for _, d := range daily {
		date := truncateDay(time.Unix(d.Dt, 0).UTC())
		delta := want.Sub(date)
		if delta < 0 {
			delta = -delta
		}
		if delta < minDelta {
			minDelta = delta
			chosen = d
		}
	}
	return chosen
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// HargreavesET0 is the simplified Hargreaves reference evapotranspiration
// (mm/day) from daily min/max air temperature.
func HargreavesET0(tminC, tmaxC, ra float64) float64 {
	tmean := (tminC + tmaxC) / 2
	return 0.0023 * (tmean + 17.8) * math.Sqrt(math.Max(tmaxC-tminC, 0)) * ra
}
