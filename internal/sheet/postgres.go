package sheet

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the rows of one named sheet in the sheet_rows table.
type PostgresStore struct {
	pool  *pgxpool.Pool
	sheet string
}

// NewPostgresStore returns a store for sheetName and writes header as row 1
// when the sheet is empty.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, sheetName string, header []string) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("sheet: postgres pool is required")
	}
	store := &PostgresStore{pool: pool, sheet: sheetName}
	if len(header) > 0 {
		const query = `
INSERT INTO sheet_rows (sheet, row_index, cells)
VALUES ($1, 1, $2)
ON CONFLICT (sheet, row_index) DO NOTHING`
		if _, err := pool.Exec(ctx, query, sheetName, header); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	return store, nil
}

// Header implements RowStore.
func (s *PostgresStore) Header(ctx context.Context) ([]string, error) {
	var cells []string
	err := s.pool.QueryRow(ctx,
		`SELECT cells FROM sheet_rows WHERE sheet = $1 AND row_index = 1`, s.sheet).Scan(&cells)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	return cells, nil
}

// Records implements RowStore.
func (s *PostgresStore) Records(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT cells FROM sheet_rows WHERE sheet = $1 ORDER BY row_index`, s.sheet)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	all, err := pgx.CollectRows(rows, pgx.RowTo[[]string])
	if err != nil {
		return nil, fmt.Errorf("scan rows: %w", err)
	}
	if len(all) < 2 {
		return nil, nil
	}
	header := all[0]
	records := make([]Record, 0, len(all)-1)
	for _, row := range all[1:] {
		records = append(records, toRecord(header, row))
	}
	return records, nil
}

// ColumnValues implements RowStore.
func (s *PostgresStore) ColumnValues(ctx context.Context, col int) ([]string, error) {
	if err := validCoordinate(1, col); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT COALESCE(cells[$2], '') FROM sheet_rows WHERE sheet = $1 ORDER BY row_index`, s.sheet, col)
	if err != nil {
		return nil, fmt.Errorf("read column %d: %w", col, err)
	}
	values, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan column %d: %w", col, err)
	}
	return values, nil
}

// UpdateCell implements RowStore.
func (s *PostgresStore) UpdateCell(ctx context.Context, row, col int, value string) error {
	if err := validCoordinate(row, col); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE sheet_rows SET cells[$3] = $4, updated_at = NOW() WHERE sheet = $1 AND row_index = $2`,
		s.sheet, row, col, value)
	if err != nil {
		return fmt.Errorf("update cell (%d,%d): %w", row, col, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrRowNotFound, row)
	}
	return nil
}

// AppendRow implements RowStore. Appends to one sheet are serialized with a
// transaction-scoped advisory lock so row indexes stay contiguous.
func (s *PostgresStore) AppendRow(ctx context.Context, values []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, s.sheet); err != nil {
		return fmt.Errorf("lock sheet: %w", err)
	}
	const query = `
INSERT INTO sheet_rows (sheet, row_index, cells)
SELECT $1, COALESCE(MAX(row_index), 0) + 1, $2
FROM sheet_rows WHERE sheet = $1`
	if _, err := tx.Exec(ctx, query, s.sheet, values); err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	return tx.Commit(ctx)
}

// Ping implements RowStore.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
