// Package sheet provides flat, spreadsheet-like row stores. Rows and columns
// are 1-based and row 1 is the header.
package sheet

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrRowNotFound is returned when updating a row that does not exist.
var ErrRowNotFound = errors.New("sheet: row not found")

// ErrInvalidCoordinate is returned for row or column indexes below 1.
var ErrInvalidCoordinate = errors.New("sheet: invalid coordinate")

// ErrCellTooLong is returned when a value exceeds the backend's cell limit.
var ErrCellTooLong = errors.New("sheet: cell value too long")

// Record is a data row keyed by header name.
type Record map[string]string

// RowStore is the minimal API of a spreadsheet-like store.
type RowStore interface {
	// Header returns row 1.
	Header(ctx context.Context) ([]string, error)
	// Records returns every data row below the header.
	Records(ctx context.Context) ([]Record, error)
	// ColumnValues returns column col for every row, header included, so
	// index i holds row i+1.
	ColumnValues(ctx context.Context, col int) ([]string, error)
	UpdateCell(ctx context.Context, row, col int, value string) error
	AppendRow(ctx context.Context, values []string) error
	Ping(ctx context.Context) error
}

// CellLimiter is implemented by stores that cap the characters per cell.
type CellLimiter interface {
	MaxCellChars() int
}

// CheckCellLengths returns ErrCellTooLong when store caps cell size and any
// value exceeds it. Stores without a cap accept everything.
func CheckCellLengths(store RowStore, values ...string) error {
	limiter, ok := store.(CellLimiter)
	if !ok {
		return nil
	}
	return checkCellLengths(limiter.MaxCellChars(), values...)
}

func checkCellLengths(limit int, values ...string) error {
	for i, v := range values {
		if n := utf8.RuneCountInString(v); n > limit {
			return fmt.Errorf("%w: value %d has %d characters, limit %d", ErrCellTooLong, i+1, n, limit)
		}
	}
	return nil
}

func toRecord(header, row []string) Record {
	rec := make(Record, len(header))
	for i, name := range header {
		if i < len(row) {
			rec[name] = row[i]
		} else {
			rec[name] = ""
		}
	}
	return rec
}

func validCoordinate(row, col int) error {
	if row < 1 || col < 1 {
		return ErrInvalidCoordinate
	}
	return nil
}
