package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"blewatch/internal/classify"
	"blewatch/internal/continuity"
)

// Schema is the store's backing tables. EnsureSchema applies it idempotently
// on startup so a fresh database works without a separate migration step.
const Schema = `
CREATE TABLE IF NOT EXISTS devices (
    address       TEXT PRIMARY KEY,
    display_name  TEXT,
    company_id    INTEGER,
    company_name  TEXT,
    last_rssi     SMALLINT NOT NULL,
    first_seen    TIMESTAMPTZ NOT NULL,
    last_seen     TIMESTAMPTZ NOT NULL,
    sightings     BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sightings (
    id          BIGSERIAL PRIMARY KEY,
    session_id  TEXT NOT NULL,
    address     TEXT NOT NULL,
    rssi        SMALLINT NOT NULL,
    local_name  TEXT,
    company_id  INTEGER,
    messages    TEXT,
    seen_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS sightings_session_idx ON sightings (session_id, seen_at);
CREATE INDEX IF NOT EXISTS sightings_address_idx ON sightings (address, seen_at);
`

// Execer is the slice of the pgx pool the store needs. *db.Pool satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Store struct {
	log zerolog.Logger
	db  Execer
}

func New(log zerolog.Logger, db Execer) *Store {
	return &Store{log: log, db: db}
}

// EnsureSchema creates the backing tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.Exec(ctx, Schema)
	return err
}

const upsertDeviceSQL = `
INSERT INTO devices (address, display_name, company_id, company_name, last_rssi, first_seen, last_seen, sightings)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $6, 1)
ON CONFLICT (address) DO UPDATE SET
    display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), devices.display_name),
    company_id   = COALESCE(EXCLUDED.company_id, devices.company_id),
    company_name = COALESCE(EXCLUDED.company_name, devices.company_name),
    last_rssi    = EXCLUDED.last_rssi,
    last_seen    = EXCLUDED.last_seen,
    sightings    = devices.sightings + 1
`

const insertSightingSQL = `
INSERT INTO sightings (session_id, address, rssi, local_name, company_id, messages, seen_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), $7)
`

// RecordSighting persists one classified advertisement: the per-device row is
// upserted (a nameless sighting never erases a learned name) and the raw
// sighting is appended for the session history.
func (s *Store) RecordSighting(ctx context.Context, sessionID string, snap classify.DeviceSnapshot, seenAt time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	if seenAt.IsZero() {
		seenAt = time.Now()
	}

	var companyID *int32
	var companyName *string
	if snap.Manufacturer != nil {
		id := int32(snap.Manufacturer.ID)
		companyID = &id
		companyName = &snap.Manufacturer.Name
	}

	if _, err := s.db.Exec(ctx, upsertDeviceSQL,
		snap.Address, snap.Name, companyID, companyName, snap.RSSI, seenAt,
	); err != nil {
		return err
	}

	_, err := s.db.Exec(ctx, insertSightingSQL,
		sessionID, snap.Address, snap.RSSI, snap.Name, companyID,
		continuity.Summarize(snap.Messages), seenAt,
	)
	return err
}
