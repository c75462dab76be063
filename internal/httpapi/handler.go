package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"blewatch/internal/continuity"
	"blewatch/internal/db"
	"blewatch/internal/metrics"
	"blewatch/internal/naming"
	"blewatch/internal/session"
	"blewatch/internal/tagging"
)

type Handler struct {
	log       zerolog.Logger
	agg       *session.Aggregator
	pool      *db.Pool
	metrics   *metrics.Metrics
	sessionID string
	startedAt time.Time
}

func NewHandler(log zerolog.Logger, agg *session.Aggregator, pool *db.Pool, m *metrics.Metrics, sessionID string) *Handler {
	return &Handler{
		log:       log,
		agg:       agg,
		pool:      pool,
		metrics:   m,
		sessionID: sessionID,
		startedAt: time.Now(),
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(h.accessLog)

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)

	// Observability
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	// API
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", h.handleListDevices)
				r.Get("/{address}", h.handleGetDevice)
			})

			r.Route("/scan", func(r chi.Router) {
				r.Get("/status", h.handleScanStatus)
			})
		})
	})

	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http_request")

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = r.URL.Path
		}
		h.metrics.ObserveHTTPRequest(r.Method, pattern, ww.Status(), time.Since(start))
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	if h.agg == nil {
		h.writeError(w, http.StatusServiceUnavailable, "not_ready", "scan session not started", nil)
		return
	}

	// Persistence is optional; when configured it must be reachable.
	if h.pool != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pool.Ping(ctx); err != nil {
			h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not ready", map[string]any{"error": err.Error()})
			return
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

type deviceResponse struct {
	Address      string    `json:"address"`
	DisplayName  string    `json:"display_name,omitempty"`
	Name         string    `json:"name,omitempty"`
	Manufacturer string    `json:"manufacturer,omitempty"`
	RSSI         int16     `json:"rssi"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
	Sightings    int       `json:"sightings"`
	Messages     []string  `json:"messages,omitempty"`
	SeenTypes    []string  `json:"seen_types,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
}

func toDeviceResponse(dev session.AggregatedDevice) deviceResponse {
	resp := deviceResponse{
		Address:      dev.Address,
		Name:         dev.Latest.Name,
		Manufacturer: dev.ManufacturerName(),
		RSSI:         dev.Latest.RSSI,
		FirstSeen:    dev.FirstSeen,
		LastSeen:     dev.LastSeen,
		Sightings:    dev.Sightings,
	}

	candidates := []naming.Candidate{
		{Name: dev.Latest.Name, Source: "advertised"},
		{Name: dev.ManufacturerName(), Source: "manufacturer"},
	}
	for _, m := range dev.Latest.Messages {
		resp.Messages = append(resp.Messages, m.String())
		if audio, ok := m.(continuity.AudioAccessoryStatus); ok {
			if model := audio.ModelName(); model != "" {
				candidates = append(candidates, naming.Candidate{Name: model, Source: "model"})
			}
		}
	}
	if name, ok := naming.ChooseBestDisplayName(candidates); ok {
		resp.DisplayName = name
	}

	for _, code := range dev.SeenTypes {
		resp.SeenTypes = append(resp.SeenTypes, continuity.TypeName(code))
	}

	resp.Tags = tagging.Tags(dev.Latest.Name, dev.Latest.Messages)
	return resp
}

func (h *Handler) handleListDevices(w http.ResponseWriter, r *http.Request) {
	if h.agg == nil {
		h.writeError(w, http.StatusServiceUnavailable, "not_ready", "scan session not started", nil)
		return
	}

	q := r.URL.Query()
	opts := session.ReportOptions{
		Order:      session.ParseOrder(q.Get("sort")),
		Grouped:    parseBool(q.Get("group")),
		NameFilter: q.Get("filter"),
	}

	devices := h.agg.Report(opts)
	resp := make([]deviceResponse, 0, len(devices))
	for _, dev := range devices {
		resp = append(resp, toDeviceResponse(dev))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	if h.agg == nil {
		h.writeError(w, http.StatusServiceUnavailable, "not_ready", "scan session not started", nil)
		return
	}

	address := strings.ToLower(chi.URLParam(r, "address"))
	dev, ok := h.agg.Get(address)
	if !ok {
		h.writeError(w, http.StatusNotFound, "not_found", "device not observed this session", map[string]any{"address": address})
		return
	}

	h.writeJSON(w, http.StatusOK, toDeviceResponse(dev))
}

func (h *Handler) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"session_id": h.sessionID,
		"devices":    h.agg.Len(),
		"started_at": h.startedAt,
		"persisting": h.pool != nil,
	})
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "1" || v == "true" || v == "yes"
}
