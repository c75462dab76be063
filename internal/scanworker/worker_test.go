package scanworker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"blewatch/internal/classify"
	"blewatch/internal/session"
)

type recordedSighting struct {
	SessionID string
	Snap      classify.DeviceSnapshot
	SeenAt    time.Time
}

type fakeRecorder struct {
	mu        sync.Mutex
	sightings []recordedSighting
	err       error
}

func (f *fakeRecorder) RecordSighting(_ context.Context, sessionID string, snap classify.DeviceSnapshot, seenAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sightings = append(f.sightings, recordedSighting{SessionID: sessionID, Snap: snap, SeenAt: seenAt})
	return nil
}

func (f *fakeRecorder) all() []recordedSighting {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedSighting, len(f.sightings))
	copy(out, f.sightings)
	return out
}

func appleAdv(address string, rssi int16) classify.RawAdvertisement {
	return classify.RawAdvertisement{
		Address: address,
		RSSI:    rssi,
		Blocks: []classify.ManufacturerBlock{
			{CompanyID: 0x004C, Data: []byte{0x0C, 0x02, 0x01, 0x00}},
		},
	}
}

func runWorkerOver(t *testing.T, advs []classify.RawAdvertisement, rec Recorder, opts Options) *session.Aggregator {
	t.Helper()

	src := make(chan classify.RawAdvertisement, len(advs))
	for _, adv := range advs {
		src <- adv
	}
	close(src)

	agg := session.New()
	w := New(zerolog.Nop(), src, agg, rec, opts, nil)

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not finish draining a closed stream")
	}
	return agg
}

func TestWorker_classifiesAndAggregates(t *testing.T) {
	agg := runWorkerOver(t, []classify.RawAdvertisement{
		appleAdv("e4:5f:01:aa:bb:cc", -62),
		appleAdv("e4:5f:01:aa:bb:cc", -58),
		{Address: "11:22:33:44:55:66", RSSI: -80},
	}, nil, Options{})

	if agg.Len() != 2 {
		t.Fatalf("expected 2 devices, got %d", agg.Len())
	}
	dev, ok := agg.Get("e4:5f:01:aa:bb:cc")
	if !ok {
		t.Fatal("expected aggregate for apple device")
	}
	if dev.Sightings != 2 {
		t.Fatalf("expected 2 sightings, got %d", dev.Sightings)
	}
	if dev.Latest.RSSI != -58 {
		t.Fatalf("expected latest rssi -58, got %d", dev.Latest.RSSI)
	}
	if dev.Latest.Manufacturer == nil || dev.Latest.Manufacturer.Name != "Apple, Inc." {
		t.Fatalf("expected Apple manufacturer, got %+v", dev.Latest.Manufacturer)
	}
	if len(dev.Latest.Messages) != 1 {
		t.Fatalf("expected 1 continuity message, got %d", len(dev.Latest.Messages))
	}
}

func TestWorker_recordsSightings(t *testing.T) {
	rec := &fakeRecorder{}
	runWorkerOver(t, []classify.RawAdvertisement{
		appleAdv("e4:5f:01:aa:bb:cc", -62),
		{Address: "11:22:33:44:55:66", RSSI: -80},
	}, rec, Options{SessionID: "test-session"})

	got := rec.all()
	if len(got) != 2 {
		t.Fatalf("expected 2 recorded sightings, got %d", len(got))
	}
	for _, s := range got {
		if s.SessionID != "test-session" {
			t.Fatalf("unexpected session id %q", s.SessionID)
		}
		if s.SeenAt.IsZero() {
			t.Fatal("expected seen_at to be stamped")
		}
	}
	if got[0].Snap.Address != "e4:5f:01:aa:bb:cc" {
		t.Fatalf("unexpected first address %q", got[0].Snap.Address)
	}
}

func TestWorker_recorderErrorDoesNotStopStream(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("db down")}
	agg := runWorkerOver(t, []classify.RawAdvertisement{
		appleAdv("e4:5f:01:aa:bb:cc", -62),
		{Address: "11:22:33:44:55:66", RSSI: -80},
	}, rec, Options{})

	if agg.Len() != 2 {
		t.Fatalf("expected both devices aggregated despite recorder errors, got %d", agg.Len())
	}
}

func TestWorker_generatesSessionID(t *testing.T) {
	w := New(zerolog.Nop(), nil, nil, nil, Options{}, nil)
	if w.SessionID() == "" {
		t.Fatal("expected a generated session id")
	}
	w2 := New(zerolog.Nop(), nil, nil, nil, Options{}, nil)
	if w.SessionID() == w2.SessionID() {
		t.Fatal("expected distinct session ids")
	}
}

func TestWorker_cancelStops(t *testing.T) {
	src := make(chan classify.RawAdvertisement)
	w := New(zerolog.Nop(), src, session.New(), nil, Options{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}
