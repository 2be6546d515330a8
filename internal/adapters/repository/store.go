// Package repository defines the sheet store interface and its typed table
// accessors. The store keeps five row-oriented sheets with last-writer-wins
// semantics and no transactional guarantees across sheets.
package repository

import "context"

// Sheet names.
const (
	SheetClicks         Sheet = "click_db"
	SheetPairScores     Sheet = "rel_score_db"
	SheetPersonalScores Sheet = "prel_score_db"
	SheetConfirmScores  Sheet = "confirm_score_db"
	SheetNames          Sheet = "name_db"
)

// Sheets lists every known sheet.
var Sheets = []Sheet{
	SheetClicks,
	SheetPairScores,
	SheetPersonalScores,
	SheetConfirmScores,
	SheetNames,
}

// Sheet identifies one stored table.
type Sheet string

func (s Sheet) valid() bool {
	for _, known := range Sheets {
		if s == known {
			return true
		}
	}
	return false
}

// Store provides whole-sheet read/write access plus row append for the
// append-only click log. Rows are fixed at three string cells; codecs pad
// and trim as needed.
type Store interface {
	// ReadAll returns every row of the sheet in insertion order.
	ReadAll(ctx context.Context, sheet Sheet) ([][]string, error)

	// WriteAll replaces the sheet's contents.
	WriteAll(ctx context.Context, sheet Sheet, rows [][]string) error

	// Append adds one row to the end of the sheet.
	Append(ctx context.Context, sheet Sheet, row []string) error

	// Close releases the underlying storage.
	Close() error
}

// rowWidth is the fixed cell count per stored row.
const rowWidth = 3

// padRow normalizes a row to the fixed width.
func padRow(row []string) []string {
	out := make([]string, rowWidth)
	copy(out, row)
	return out
}
