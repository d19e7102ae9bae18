package ingest

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dataglance/dataglance/internal/dataset"
)

// Assemble combines upload metadata with parse and inference output into
// the final descriptor. It is pure: given parsed rows and profiles it
// cannot fail, and the descriptor is born ready.
func Assemble(up Upload, rows []dataset.RawRow, columns []dataset.ColumnProfile) *dataset.Dataset {
	now := time.Now().UTC()
	return &dataset.Dataset{
		ID:          uuid.New().String(),
		Name:        DisplayName(up.Filename),
		Filename:    up.Filename,
		Size:        up.Size,
		RowCount:    len(rows),
		ColumnCount: len(columns),
		Columns:     columns,
		Status:      dataset.StatusReady,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// DisplayName derives a dataset name from a filename by dropping any
// directory part and the extension: "data/Q3 sales.csv" -> "Q3 sales".
func DisplayName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
