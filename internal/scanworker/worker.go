package scanworker

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"blewatch/internal/classify"
	"blewatch/internal/continuity"
	"blewatch/internal/metrics"
	"blewatch/internal/session"
)

// Recorder persists classified sightings. *store.Store satisfies this; a nil
// Recorder means the session is in-memory only.
type Recorder interface {
	RecordSighting(ctx context.Context, sessionID string, snap classify.DeviceSnapshot, seenAt time.Time) error
}

// Worker drains the advertisement stream, classifies each broadcast and feeds
// the session aggregator plus the optional persistence layer.
type Worker struct {
	log             zerolog.Logger
	src             <-chan classify.RawAdvertisement
	agg             *session.Aggregator
	rec             Recorder
	sessionID       string
	recordTimeout   time.Duration
	summaryInterval time.Duration
	metrics         *metrics.Metrics
}

type Options struct {
	// SessionID labels every persisted sighting. Empty generates a fresh one.
	SessionID string
	// RecordTimeout bounds each Recorder call so a slow database cannot
	// stall the scan stream.
	RecordTimeout time.Duration
	// SummaryInterval paces the periodic session summary log line.
	SummaryInterval time.Duration
}

func New(log zerolog.Logger, src <-chan classify.RawAdvertisement, agg *session.Aggregator, rec Recorder, opts Options, m *metrics.Metrics) *Worker {
	sessionID := strings.TrimSpace(opts.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	recordTimeout := opts.RecordTimeout
	if recordTimeout <= 0 {
		recordTimeout = 2 * time.Second
	}
	summaryInterval := opts.SummaryInterval
	if summaryInterval <= 0 {
		summaryInterval = 30 * time.Second
	}

	return &Worker{
		log:             log,
		src:             src,
		agg:             agg,
		rec:             rec,
		sessionID:       sessionID,
		recordTimeout:   recordTimeout,
		summaryInterval: summaryInterval,
		metrics:         m,
	}
}

// SessionID reports the identifier stamped on this worker's sightings.
func (w *Worker) SessionID() string {
	if w == nil {
		return ""
	}
	return w.sessionID
}

// Run consumes the stream until it closes or the context is canceled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.src == nil || w.agg == nil {
		return
	}

	w.log.Info().Str("session_id", w.sessionID).Msg("scan worker started")

	summary := time.NewTicker(w.summaryInterval)
	defer summary.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-summary.C:
			w.log.Info().
				Str("session_id", w.sessionID).
				Int("devices", w.agg.Len()).
				Msg("scan session summary")
		case adv, ok := <-w.src:
			if !ok {
				w.log.Info().Str("session_id", w.sessionID).Msg("advertisement stream closed")
				return
			}
			w.handle(ctx, adv)
		}
	}
}

func (w *Worker) handle(ctx context.Context, adv classify.RawAdvertisement) {
	snap := classify.Classify(adv)
	seenAt := time.Now()

	w.metrics.IncAdvertisement()
	for _, m := range snap.Messages {
		w.metrics.IncContinuityMessage(continuity.TypeName(m.TypeCode()))
	}

	w.agg.Observe(snap)
	w.metrics.SetSessionDevices(w.agg.Len())

	if w.rec == nil {
		return
	}
	recCtx, cancel := context.WithTimeout(ctx, w.recordTimeout)
	defer cancel()
	if err := w.rec.RecordSighting(recCtx, w.sessionID, snap, seenAt); err != nil {
		w.log.Warn().Err(err).Str("address", snap.Address).Msg("failed to persist sighting")
	}
}
