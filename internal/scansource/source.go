package scansource

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"blewatch/internal/classify"
	"blewatch/internal/metrics"
)

// Replay feeds a recorded capture dump back through the pipeline as if the
// advertisements were being observed live.
type Replay struct {
	log      zerolog.Logger
	path     string
	interval time.Duration
	loop     bool
	out      chan classify.RawAdvertisement
	metrics  *metrics.Metrics
}

type Options struct {
	// Path of the capture dump to replay.
	Path string
	// Interval between emitted advertisements. Zero replays as fast as the
	// consumer drains.
	Interval time.Duration
	// Loop restarts the dump from the top after the last line.
	Loop bool
}

func New(log zerolog.Logger, opts Options, m *metrics.Metrics) *Replay {
	path := strings.TrimSpace(opts.Path)
	interval := opts.Interval
	if interval < 0 {
		interval = 0
	}

	return &Replay{
		log:      log,
		path:     path,
		interval: interval,
		loop:     opts.Loop,
		out:      make(chan classify.RawAdvertisement),
		metrics:  m,
	}
}

// Advertisements is the stream the worker consumes. It is closed when Run
// returns.
func (r *Replay) Advertisements() <-chan classify.RawAdvertisement {
	if r == nil {
		return nil
	}
	return r.out
}

// Run replays the dump until it is exhausted (or forever when looping) or the
// context is canceled.
func (r *Replay) Run(ctx context.Context) {
	if r == nil {
		return
	}
	defer close(r.out)

	for {
		advs, malformed, err := ReadDumpFile(r.path)
		if err != nil {
			r.log.Error().Err(err).Str("path", r.path).Msg("capture replay failed to read dump")
			return
		}
		if malformed > 0 {
			r.log.Warn().Int("lines", malformed).Str("path", r.path).Msg("capture replay skipped malformed lines")
			for i := 0; i < malformed; i++ {
				r.metrics.IncMalformedLine()
			}
		}

		for _, adv := range advs {
			select {
			case <-ctx.Done():
				return
			case r.out <- adv:
			}

			if r.interval > 0 {
				t := time.NewTimer(r.interval)
				select {
				case <-ctx.Done():
					t.Stop()
					return
				case <-t.C:
				}
			}
		}

		if !r.loop {
			return
		}
	}
}
