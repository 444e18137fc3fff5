package entities

import (
	"encoding/json"
	"fmt"
	"os"
)

// Zone is an independently monitored and irrigated field subunit. Static
// for a session; reloading requires re-initializing the zone's state.
type Zone struct {
	ID         string       `json:"id"`
	FieldID    string       `json:"field_id"`
	Crop       string       `json:"crop"`
	Latitude   float64      `json:"latitude"`
	Longitude  float64      `json:"longitude"`
	Soil       SoilProfile  `json:"soil"`
	Baseline   CropBaseline `json:"cwsi_baseline"`
	Thresholds Thresholds   `json:"thresholds"`
}

// Validate fails closed on any incomplete or inconsistent zone
// configuration.
func (z Zone) Validate() error {
	if z.ID == "" {
		return &ConfigError{Reason: "zone without id"}
	}
	if err := z.Soil.Validate(); err != nil {
		return annotate(err, z.ID)
	}
	if err := z.Baseline.Validate(); err != nil {
		return annotate(err, z.ID)
	}
	if z.Baseline.Crop != z.Crop {
		return &ConfigError{ZoneID: z.ID, Reason: fmt.Sprintf("baseline crop %q does not match zone crop %q", z.Baseline.Crop, z.Crop)}
	}
	if err := z.Thresholds.Validate(); err != nil {
		return annotate(err, z.ID)
	}
	return nil
}

func annotate(err error, zoneID string) error {
	if ce, ok := err.(*ConfigError); ok && ce.ZoneID == "" {
		return &ConfigError{ZoneID: zoneID, Reason: ce.Reason}
	}
	return err
}

// LoadZones reads the zone configuration file (a JSON array of zones) and
// validates every entry.
func LoadZones(path string) (map[string]Zone, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read zones: %w", err)
	}
	var list []Zone
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("parse zones: %w", err)
	}
	out := make(map[string]Zone, len(list))
	for _, z := range list {
		if err := z.Validate(); err != nil {
			return nil, err
		}
		if _, dup := out[z.ID]; dup {
			return nil, &ConfigError{ZoneID: z.ID, Reason: "duplicate zone id"}
		}
		out[z.ID] = z
	}
	if len(out) == 0 {
		return nil, &ConfigError{Reason: "zones file is empty"}
	}
	return out, nil
}
