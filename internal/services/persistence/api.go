package persistence

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fieldtoalert/field-to-alert/internal/model"
)

// NewHTTPMux exposes the read side of the store.
//
// GET /data/latest
//   source=auto|influx|cache  (default auto: try Influx, fall back to cache)
//   minutes=<int>             (Influx lookback window, default 1440)
func NewHTTPMux(svc *Service) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })

	mux.HandleFunc("/data/latest", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		source := strings.ToLower(q.Get("source"))
		if source == "" {
			source = "auto"
		}
		minutes := 60 * 24
		if s := q.Get("minutes"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				minutes = n
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		var list []model.RawObservation
		used := ""
		if source == "influx" || source == "auto" {
			if fromInflux, err := svc.QueryLatestFromInflux(ctx, minutes); err == nil && len(fromInflux) > 0 {
				list, used = fromInflux, "influx"
			}
		}
		if used == "" {
			list, used = svc.LatestCache(), "cache"
		}
		sort.Slice(list, func(i, j int) bool { return list[i].ZoneID < list[j].ZoneID })

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Data-Source", used)
		_ = json.NewEncoder(w).Encode(list)
	})

	return mux
}
