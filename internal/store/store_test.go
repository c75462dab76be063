package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"blewatch/internal/classify"
	"blewatch/internal/continuity"
	"blewatch/internal/manufacturer"
)

type execCall struct {
	SQL  string
	Args []any
}

type fakeExecer struct {
	calls []execCall
	err   error
}

func (f *fakeExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	f.calls = append(f.calls, execCall{SQL: sql, Args: args})
	return pgconn.CommandTag{}, nil
}

func TestRecordSighting_writesDeviceAndSighting(t *testing.T) {
	db := &fakeExecer{}
	s := New(zerolog.Nop(), db)

	rec := manufacturer.Record{ID: 0x004C, Name: "Apple, Inc."}
	snap := classify.DeviceSnapshot{
		Address:      "e4:5f:01:aa:bb:cc",
		Name:         "Dana's AirTag",
		RSSI:         -62,
		Manufacturer: &rec,
		Messages: []continuity.Message{
			continuity.FindMy{Ownership: continuity.OwnershipOwned, Phase: continuity.PhaseMaintained, StatusRaw: 0x01},
		},
	}

	seenAt := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	if err := s.RecordSighting(context.Background(), "sess-1", snap, seenAt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(db.calls) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(db.calls))
	}
	if !strings.Contains(db.calls[0].SQL, "INSERT INTO devices") {
		t.Fatalf("expected device upsert first, got %q", db.calls[0].SQL)
	}
	if !strings.Contains(db.calls[1].SQL, "INSERT INTO sightings") {
		t.Fatalf("expected sighting insert second, got %q", db.calls[1].SQL)
	}

	sighting := db.calls[1].Args
	if sighting[0] != "sess-1" || sighting[1] != "e4:5f:01:aa:bb:cc" {
		t.Fatalf("unexpected sighting args: %v", sighting)
	}
	summary, _ := sighting[5].(string)
	if !strings.Contains(summary, "FindMy") {
		t.Fatalf("expected message summary in sighting, got %q", summary)
	}
}

func TestRecordSighting_noManufacturer(t *testing.T) {
	db := &fakeExecer{}
	s := New(zerolog.Nop(), db)

	snap := classify.DeviceSnapshot{Address: "11:22:33:44:55:66", RSSI: -80}
	if err := s.RecordSighting(context.Background(), "sess-1", snap, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	device := db.calls[0].Args
	cid, ok := device[2].(*int32)
	if !ok || cid != nil {
		t.Fatalf("expected nil company id, got %v", device[2])
	}
}

func TestRecordSighting_propagatesError(t *testing.T) {
	db := &fakeExecer{err: errors.New("connection refused")}
	s := New(zerolog.Nop(), db)

	err := s.RecordSighting(context.Background(), "sess-1", classify.DeviceSnapshot{Address: "a"}, time.Now())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestNilStoreIsNoop(t *testing.T) {
	var s *Store
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.RecordSighting(context.Background(), "x", classify.DeviceSnapshot{Address: "a"}, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
