package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"seedtrace/internal/lifecycle"
	pgplatform "seedtrace/internal/platform/postgres"
	"seedtrace/pkg/domain"
	"seedtrace/pkg/platform/sentinel"
	txcontext "seedtrace/pkg/platform/tx"
)

const lotColumns = `id, lot_number, type, species, variety, quantity, unit,
	location_name, latitude, longitude, parent_lot_id, metadata, status, qr_id,
	created_at, updated_at, version`

const plantColumns = `id, tag, lot_id, species, variety, location_name, latitude,
	longitude, stage, planted_at, operator, qr_id, created_at, updated_at, version`

// Store implements lifecycle.Store on the lots and plants tables.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateLot(ctx context.Context, lot *lifecycle.Lot) error {
	meta, err := encodeMetadata(lot.Metadata)
	if err != nil {
		return err
	}
	_, err = txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO lots (`+lotColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`,
		lot.ID, lot.LotNumber, string(lot.Type), lot.Species, lot.Variety, lot.Quantity, lot.Unit,
		lot.Location.Name, lot.Location.Latitude, lot.Location.Longitude,
		nullString(lot.ParentLotID), meta, string(lot.Status), lot.QRID,
		lot.CreatedAt, lot.UpdatedAt, lot.Version,
	)
	return translateInsert(err, "insert lot")
}

func (s *Store) FindLot(ctx context.Context, id string) (*lifecycle.Lot, error) {
	return s.findLot(ctx, `SELECT `+lotColumns+` FROM lots WHERE id = $1`, id)
}

func (s *Store) FindLotByNumber(ctx context.Context, lotNumber string) (*lifecycle.Lot, error) {
	return s.findLot(ctx, `SELECT `+lotColumns+` FROM lots WHERE lot_number = $1`, lotNumber)
}

func (s *Store) findLot(ctx context.Context, query string, arg string) (*lifecycle.Lot, error) {
	lot, err := scanLot(txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find lot: %w", err)
	}
	return lot, nil
}

func (s *Store) UpdateLot(ctx context.Context, lot *lifecycle.Lot, expectedVersion int64) error {
	meta, err := encodeMetadata(lot.Metadata)
	if err != nil {
		return err
	}
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE lots
		SET quantity = $2, location_name = $3, latitude = $4, longitude = $5,
			metadata = $6, status = $7, updated_at = $8, version = $9
		WHERE id = $1 AND version = $10
	`,
		lot.ID, lot.Quantity, lot.Location.Name, lot.Location.Latitude, lot.Location.Longitude,
		meta, string(lot.Status), lot.UpdatedAt, lot.Version, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update lot: %w", err)
	}
	return s.checkVersionedUpdate(ctx, res, "lots", lot.ID)
}

func (s *Store) SearchLots(ctx context.Context, filter lifecycle.LotFilter, offset, limit int) ([]*lifecycle.Lot, int, error) {
	where, args := lotConditions(filter)

	var total int
	if err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lots`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count lots: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM lots%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		lotColumns, where, len(args)-1, len(args),
	), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search lots: %w", err)
	}
	defer rows.Close()

	lots := make([]*lifecycle.Lot, 0)
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan lot: %w", err)
		}
		lots = append(lots, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate lots: %w", err)
	}
	return lots, total, nil
}

func lotConditions(f lifecycle.LotFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Species != "" {
		add("lower(species) = lower($%d)", f.Species)
	}
	if f.Location != "" {
		add("location_name ILIKE '%%' || $%d || '%%'", f.Location)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Type != "" {
		add("type = $%d", string(f.Type))
	}
	if !f.CreatedFrom.IsZero() {
		add("created_at >= $%d", f.CreatedFrom)
	}
	if !f.CreatedTo.IsZero() {
		add("created_at < $%d", f.CreatedTo)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *Store) CountLots(ctx context.Context) (int, error) {
	var n int
	if err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM lots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count lots: %w", err)
	}
	return n, nil
}

func (s *Store) CreatePlant(ctx context.Context, p *lifecycle.Plant) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO plants (`+plantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		p.ID, p.Tag, p.LotID, p.Species, p.Variety,
		p.Location.Name, p.Location.Latitude, p.Location.Longitude,
		string(p.Stage), p.PlantedAt, p.Operator, p.QRID,
		p.CreatedAt, p.UpdatedAt, p.Version,
	)
	return translateInsert(err, "insert plant")
}

func (s *Store) FindPlant(ctx context.Context, id string) (*lifecycle.Plant, error) {
	p, err := scanPlant(txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+plantColumns+` FROM plants WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find plant: %w", err)
	}
	return p, nil
}

func (s *Store) UpdatePlant(ctx context.Context, p *lifecycle.Plant, expectedVersion int64) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE plants
		SET stage = $2, location_name = $3, latitude = $4, longitude = $5,
			updated_at = $6, version = $7
		WHERE id = $1 AND version = $8
	`,
		p.ID, string(p.Stage), p.Location.Name, p.Location.Latitude, p.Location.Longitude,
		p.UpdatedAt, p.Version, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update plant: %w", err)
	}
	return s.checkVersionedUpdate(ctx, res, "plants", p.ID)
}

func (s *Store) ListPlantsByLot(ctx context.Context, lotID string) ([]*lifecycle.Plant, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx,
		`SELECT `+plantColumns+` FROM plants WHERE lot_id = $1 ORDER BY planted_at ASC, created_at ASC, id ASC`, lotID)
	if err != nil {
		return nil, fmt.Errorf("list plants: %w", err)
	}
	defer rows.Close()

	plants := make([]*lifecycle.Plant, 0)
	for rows.Next() {
		p, err := scanPlant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plant: %w", err)
		}
		plants = append(plants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plants: %w", err)
	}
	return plants, nil
}

func (s *Store) CountPlants(ctx context.Context) (int, error) {
	var n int
	if err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM plants`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count plants: %w", err)
	}
	return n, nil
}

func (s *Store) CountPlantsByStage(ctx context.Context) (map[domain.LifecycleStage]int, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `SELECT stage, COUNT(*) FROM plants GROUP BY stage`)
	if err != nil {
		return nil, fmt.Errorf("count plants by stage: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.LifecycleStage]int)
	for rows.Next() {
		var (
			stage string
			n     int
		)
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, fmt.Errorf("scan stage count: %w", err)
		}
		counts[domain.LifecycleStage(stage)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stage counts: %w", err)
	}
	return counts, nil
}

// checkVersionedUpdate tells a missing row apart from a version mismatch
// when an update touched nothing.
func (s *Store) checkVersionedUpdate(ctx context.Context, res sql.Result, table, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}
	var exists bool
	if err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check %s row: %w", table, err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrStaleVersion
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLot(row rowScanner) (*lifecycle.Lot, error) {
	var (
		lot      lifecycle.Lot
		lotType  string
		status   string
		lat, lon sql.NullFloat64
		parentID sql.NullString
		meta     sql.NullString
	)
	if err := row.Scan(
		&lot.ID, &lot.LotNumber, &lotType, &lot.Species, &lot.Variety, &lot.Quantity, &lot.Unit,
		&lot.Location.Name, &lat, &lon, &parentID, &meta, &status, &lot.QRID,
		&lot.CreatedAt, &lot.UpdatedAt, &lot.Version,
	); err != nil {
		return nil, err
	}
	lot.Type = domain.LotType(lotType)
	lot.Status = domain.LotStatus(status)
	lot.ParentLotID = parentID.String
	if lat.Valid && lon.Valid {
		lot.Location.Latitude, lot.Location.Longitude = &lat.Float64, &lon.Float64
	}
	if meta.Valid {
		if err := json.Unmarshal([]byte(meta.String), &lot.Metadata); err != nil {
			return nil, fmt.Errorf("decode lot metadata: %w", err)
		}
	}
	lot.CreatedAt, lot.UpdatedAt = lot.CreatedAt.UTC(), lot.UpdatedAt.UTC()
	return &lot, nil
}

func scanPlant(row rowScanner) (*lifecycle.Plant, error) {
	var (
		p        lifecycle.Plant
		stage    string
		lat, lon sql.NullFloat64
	)
	if err := row.Scan(
		&p.ID, &p.Tag, &p.LotID, &p.Species, &p.Variety,
		&p.Location.Name, &lat, &lon, &stage, &p.PlantedAt, &p.Operator, &p.QRID,
		&p.CreatedAt, &p.UpdatedAt, &p.Version,
	); err != nil {
		return nil, err
	}
	p.Stage = domain.LifecycleStage(stage)
	if lat.Valid && lon.Valid {
		p.Location.Latitude, p.Location.Longitude = &lat.Float64, &lon.Float64
	}
	p.PlantedAt, p.CreatedAt, p.UpdatedAt = p.PlantedAt.UTC(), p.CreatedAt.UTC(), p.UpdatedAt.UTC()
	return &p, nil
}

func encodeMetadata(meta map[string]string) (sql.NullString, error) {
	if len(meta) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode lot metadata: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func translateInsert(err error, op string) error {
	if err == nil {
		return nil
	}
	if pgplatform.IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, sentinel.ErrAlreadyUsed)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
