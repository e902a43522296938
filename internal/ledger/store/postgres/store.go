package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"seedtrace/internal/ledger"
	"seedtrace/pkg/jsonutil"
	txcontext "seedtrace/pkg/platform/tx"
)

const eventColumns = `id, seq, lot_id, plant_id, event_type, timestamp, operator,
	location_name, latitude, longitude, details, verified, recorded_at`

// Store implements ledger.Store on the events table. seq is a BIGSERIAL and
// provides the insertion order.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, event *ledger.Event) error {
	details, err := encodeDetails(event.Details)
	if err != nil {
		return err
	}
	err = txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO events (id, lot_id, plant_id, event_type, timestamp, operator,
			location_name, latitude, longitude, details, verified, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING seq
	`,
		event.ID,
		nullString(event.LotID),
		nullString(event.PlantID),
		event.EventType,
		event.Timestamp,
		event.Operator,
		event.Location.Name,
		event.Location.Latitude,
		event.Location.Longitude,
		details,
		event.Verified,
		event.RecordedAt,
	).Scan(&event.Seq)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *Store) ListBySubject(ctx context.Context, subjectID string) ([]*ledger.Event, error) {
	return s.query(ctx, `SELECT `+eventColumns+` FROM events
		WHERE lot_id = $1 OR plant_id = $1
		ORDER BY timestamp ASC, seq ASC`, subjectID)
}

// ListBySubjects uses a plain IN list so the query works under both drivers.
func (s *Store) ListBySubjects(ctx context.Context, subjectIDs []string) ([]*ledger.Event, error) {
	if len(subjectIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(subjectIDs))
	args := make([]any, len(subjectIDs))
	for i, id := range subjectIDs {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}
	in := strings.Join(placeholders, ", ")
	return s.query(ctx, `SELECT `+eventColumns+` FROM events
		WHERE lot_id IN (`+in+`) OR plant_id IN (`+in+`)
		ORDER BY timestamp ASC, seq ASC`, args...)
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*ledger.Event, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := make([]*ledger.Event, 0)
	for rows.Next() {
		var (
			e       ledger.Event
			lotID   sql.NullString
			plantID sql.NullString
			lat     sql.NullFloat64
			lon     sql.NullFloat64
			details sql.NullString
		)
		if err := rows.Scan(
			&e.ID, &e.Seq, &lotID, &plantID, &e.EventType, &e.Timestamp, &e.Operator,
			&e.Location.Name, &lat, &lon, &details, &e.Verified, &e.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.LotID, e.PlantID = lotID.String, plantID.String
		if lat.Valid && lon.Valid {
			e.Location.Latitude, e.Location.Longitude = &lat.Float64, &lon.Float64
		}
		if details.Valid {
			if e.Details, err = decodeDetails(details.String); err != nil {
				return nil, err
			}
		}
		e.Timestamp, e.RecordedAt = e.Timestamp.UTC(), e.RecordedAt.UTC()
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func encodeDetails(details map[string]any) (sql.NullString, error) {
	if len(details) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := jsonutil.CanonicalMarshal(details)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode event details: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func decodeDetails(raw string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var details map[string]any
	if err := dec.Decode(&details); err != nil {
		return nil, fmt.Errorf("decode event details: %w", err)
	}
	return details, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
