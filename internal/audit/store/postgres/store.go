package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"seedtrace/internal/audit"
	"seedtrace/pkg/platform/sentinel"
	txcontext "seedtrace/pkg/platform/tx"
)

// appendLockKey names the advisory lock that serializes chain appends.
const appendLockKey = "seedtrace.audit_log.append"

const recordColumns = `id, entity_type, entity_id, operation, actor_id, actor_role,
	timestamp, old_value, new_value, signature, chain_hash`

// Store implements audit.Store on the audit_log table.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append takes a transaction-scoped advisory lock before reading the chain
// tail, so concurrent writers queue until the holder commits or rolls back.
// It joins the caller's transaction when ctx carries one.
func (s *Store) Append(ctx context.Context, build func(prevSignature string) (*audit.Record, error)) (*audit.Record, error) {
	if tx, ok := txcontext.From(ctx); ok {
		return s.appendTx(ctx, tx, build)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin audit append: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	rec, err := s.appendTx(ctx, tx, build)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit audit append: %w", err)
	}
	return rec, nil
}

func (s *Store) appendTx(ctx context.Context, tx *sql.Tx, build func(prevSignature string) (*audit.Record, error)) (*audit.Record, error) {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, appendLockKey); err != nil {
		return nil, fmt.Errorf("lock audit chain: %w", err)
	}

	var prev string
	err := tx.QueryRowContext(ctx, `SELECT signature FROM audit_log ORDER BY id DESC LIMIT 1`).Scan(&prev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read audit chain tail: %w", err)
	}

	rec, err := build(prev)
	if err != nil {
		return nil, err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO audit_log (entity_type, entity_id, operation, actor_id, actor_role,
			timestamp, old_value, new_value, signature, chain_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`,
		rec.EntityType,
		rec.EntityID,
		string(rec.Operation),
		rec.ActorID,
		rec.ActorRole,
		rec.Timestamp,
		nullableText(rec.OldValue),
		nullableText(rec.NewValue),
		rec.Signature,
		rec.ChainHash,
	).Scan(&rec.ID)
	if err != nil {
		return nil, fmt.Errorf("insert audit record: %w", err)
	}
	return rec, nil
}

func (s *Store) Previous(ctx context.Context, id int64) (*audit.Record, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM audit_log WHERE id < $1 ORDER BY id DESC LIMIT 1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read previous audit record: %w", err)
	}
	return rec, nil
}

func (s *Store) Range(ctx context.Context, afterID, endID int64, limit int) ([]*audit.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM audit_log WHERE id > $1`
	args := []any{afterID}
	if endID > 0 {
		args = append(args, endID)
		query += fmt.Sprintf(" AND id <= $%d", len(args))
	}
	query += " ORDER BY id ASC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return s.query(ctx, query, args...)
}

func (s *Store) LastID(ctx context.Context) (int64, error) {
	var id int64
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM audit_log`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("read last audit id: %w", err)
	}
	return id, nil
}

func (s *Store) ListByEntity(ctx context.Context, entityType, entityID string, filter audit.TrailFilter) ([]*audit.Record, error) {
	conds := []string{"entity_type = $1", "entity_id = $2"}
	args := []any{entityType, entityID}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conds = append(conds, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conds = append(conds, fmt.Sprintf("timestamp < $%d", len(args)))
	}
	if filter.Operation != "" {
		args = append(args, string(filter.Operation))
		conds = append(conds, fmt.Sprintf("operation = $%d", len(args)))
	}
	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		conds = append(conds, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	query := `SELECT ` + recordColumns + ` FROM audit_log WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY timestamp DESC, id DESC`
	return s.query(ctx, query, args...)
}

func (s *Store) ListBetween(ctx context.Context, from, to time.Time) ([]*audit.Record, error) {
	return s.query(ctx, `SELECT `+recordColumns+` FROM audit_log
		WHERE timestamp >= $1 AND timestamp < $2 ORDER BY id ASC`, from, to)
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit records: %w", err)
	}
	return n, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*audit.Record, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	out := make([]*audit.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit log: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*audit.Record, error) {
	var (
		rec       audit.Record
		operation string
		oldValue  sql.NullString
		newValue  sql.NullString
	)
	err := row.Scan(
		&rec.ID,
		&rec.EntityType,
		&rec.EntityID,
		&operation,
		&rec.ActorID,
		&rec.ActorRole,
		&rec.Timestamp,
		&oldValue,
		&newValue,
		&rec.Signature,
		&rec.ChainHash,
	)
	if err != nil {
		return nil, err
	}
	rec.Operation = audit.Operation(operation)
	rec.Timestamp = rec.Timestamp.UTC()
	if oldValue.Valid {
		rec.OldValue = []byte(oldValue.String)
	}
	if newValue.Valid {
		rec.NewValue = []byte(newValue.String)
	}
	return &rec, nil
}

func nullableText(raw []byte) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
