package sheet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"
)

// XLSXStore keeps rows in one worksheet of an .xlsx workbook and saves the
// file after every write. Operations are serialized by a mutex; sequences of
// calls are not.
type XLSXStore struct {
	mu    sync.Mutex
	file  *excelize.File
	path  string
	sheet string
}

// OpenXLSX opens the workbook at path, creating it with header when absent.
// An existing worksheet without a header row gets one.
func OpenXLSX(path, sheetName string, header []string) (*XLSXStore, error) {
	store := &XLSXStore{path: path, sheet: sheetName}

	f, err := excelize.OpenFile(path)
	switch {
	case err == nil:
		store.file = f
	case errors.Is(err, os.ErrNotExist):
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create workbook dir: %w", err)
			}
		}
		store.file = excelize.NewFile()
		if err := store.file.SetSheetName(store.file.GetSheetName(0), sheetName); err != nil {
			return nil, fmt.Errorf("rename default sheet: %w", err)
		}
	default:
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}

	idx, err := store.file.GetSheetIndex(sheetName)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheetName, err)
	}
	if idx < 0 {
		if _, err := store.file.NewSheet(sheetName); err != nil {
			return nil, fmt.Errorf("create sheet %q: %w", sheetName, err)
		}
	}

	rows, err := store.file.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
	}
	if len(rows) == 0 && len(header) > 0 {
		values := append([]string(nil), header...)
		if err := store.file.SetSheetRow(sheetName, "A1", &values); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	if err := store.file.SaveAs(path); err != nil {
		return nil, fmt.Errorf("save workbook: %w", err)
	}
	return store, nil
}

// Header implements RowStore.
func (s *XLSXStore) Header(ctx context.Context) ([]string, error) {
	rows, err := s.rows(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Records implements RowStore.
func (s *XLSXStore) Records(ctx context.Context) ([]Record, error) {
	rows, err := s.rows(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, nil
	}
	header := rows[0]
	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		records = append(records, toRecord(header, row))
	}
	return records, nil
}

// ColumnValues implements RowStore.
func (s *XLSXStore) ColumnValues(ctx context.Context, col int) ([]string, error) {
	if err := validCoordinate(1, col); err != nil {
		return nil, err
	}
	rows, err := s.rows(ctx)
	if err != nil {
		return nil, err
	}
	values := make([]string, len(rows))
	for i, row := range rows {
		if col-1 < len(row) {
			values[i] = row[col-1]
		}
	}
	return values, nil
}

// UpdateCell implements RowStore.
func (s *XLSXStore) UpdateCell(ctx context.Context, row, col int, value string) error {
	if err := validCoordinate(row, col); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkCellLengths(excelize.TotalCellChars, value); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.file.GetRows(s.sheet)
	if err != nil {
		return fmt.Errorf("read sheet: %w", err)
	}
	if row > len(rows) {
		return fmt.Errorf("%w: %d", ErrRowNotFound, row)
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := s.file.SetCellStr(s.sheet, cell, value); err != nil {
		return fmt.Errorf("set %s: %w", cell, err)
	}
	return s.save()
}

// AppendRow implements RowStore.
func (s *XLSXStore) AppendRow(ctx context.Context, values []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkCellLengths(excelize.TotalCellChars, values...); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.file.GetRows(s.sheet)
	if err != nil {
		return fmt.Errorf("read sheet: %w", err)
	}
	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return err
	}
	row := append([]string(nil), values...)
	if err := s.file.SetSheetRow(s.sheet, cell, &row); err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	return s.save()
}

// MaxCellChars reports the xlsx cell limit. Longer values are rejected
// rather than truncated by excelize.
func (s *XLSXStore) MaxCellChars() int {
	return excelize.TotalCellChars
}

// Ping checks that the workbook is still writable.
func (s *XLSXStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("workbook: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("workbook %s is a directory", s.path)
	}
	return nil
}

// Close releases the workbook.
func (s *XLSXStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

func (s *XLSXStore) rows(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.file.GetRows(s.sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	return rows, nil
}

func (s *XLSXStore) save() error {
	if err := s.file.SaveAs(s.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
