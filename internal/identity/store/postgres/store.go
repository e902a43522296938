package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"seedtrace/internal/identity"
	pgplatform "seedtrace/internal/platform/postgres"
	"seedtrace/pkg/jsonutil"
	"seedtrace/pkg/platform/sentinel"
	txcontext "seedtrace/pkg/platform/tx"
)

// Store implements identity.Store on the qr_codes table.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Save(ctx context.Context, qr *identity.QRIdentity) error {
	payload, err := jsonutil.CanonicalMarshal(qr.Payload)
	if err != nil {
		return fmt.Errorf("encode qr payload: %w", err)
	}
	_, err = txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO qr_codes (id, entity_type, entity_id, payload, payload_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, qr.ID, qr.EntityType, qr.EntityID, string(payload), qr.PayloadHash, qr.CreatedAt)
	if err != nil {
		if pgplatform.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert qr code: %w", err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*identity.QRIdentity, error) {
	var (
		qr      identity.QRIdentity
		payload string
	)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, entity_type, entity_id, payload, payload_hash, created_at
		FROM qr_codes WHERE id = $1
	`, id).Scan(&qr.ID, &qr.EntityType, &qr.EntityID, &payload, &qr.PayloadHash, &qr.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select qr code: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &qr.Payload); err != nil {
		return nil, fmt.Errorf("decode qr payload: %w", err)
	}
	qr.CreatedAt = qr.CreatedAt.UTC()
	return &qr, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM qr_codes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count qr codes: %w", err)
	}
	return n, nil
}
