// Package dataset defines the data model shared across the ingestion
// pipeline and the HTTP layer: tagged cell values, per-column profiles,
// the dataset descriptor, and the in-memory dataset slot.
package dataset

import "time"

// ColumnType classifies a column after inference.
type ColumnType string

const (
	TypeString   ColumnType = "string"
	TypeBoolean  ColumnType = "boolean"
	TypeInteger  ColumnType = "integer"
	TypeFloat    ColumnType = "float"
	TypeDate     ColumnType = "date"
	TypeDatetime ColumnType = "datetime"
	TypeCategory ColumnType = "category"
)

// StatusReady marks a dataset whose pipeline run completed.
const StatusReady = "ready"

// RawRow is one parsed record prior to type inference, keyed by column name.
type RawRow map[string]Value

// ColumnProfile is the inferred schema and summary statistics for one column.
type ColumnProfile struct {
	// Name is the column header as it appeared in the file (trimmed).
	Name string `json:"name"`

	// Type is the inferred column type.
	Type ColumnType `json:"type"`

	// Nullable is true iff at least one value was missing or empty.
	Nullable bool `json:"nullable"`

	// Unique counts distinct non-null values (string-coerced).
	// Nulls are excluded from the uniqueness set; they are tallied in Missing.
	Unique int `json:"unique"`

	// Missing counts null and empty-string values.
	Missing int `json:"missing"`

	// Sample holds the first few raw values in original row order,
	// including any nulls present in that prefix.
	Sample []Value `json:"sample"`
}

// Dataset is the finalized, displayable summary of an uploaded file.
// Invariants: ColumnCount == len(Columns) and RowCount equals the number
// of parsed data rows.
type Dataset struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Filename    string          `json:"filename"`
	Size        int64           `json:"size"`
	RowCount    int             `json:"row_count"`
	ColumnCount int             `json:"column_count"`
	Columns     []ColumnProfile `json:"columns"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
