package dataset

// DefaultPreviewRows is how many rows a preview returns when the caller
// does not ask for a specific count.
const DefaultPreviewRows = 10

// Preview is a bounded, read-only slice of a dataset's rows.
type Preview struct {
	Columns     []string `json:"columns"`
	Rows        []RawRow `json:"rows"`
	TotalRows   int      `json:"total_rows"`
	PreviewRows int      `json:"preview_rows"`
}

// BuildPreview returns the first limit rows in original column order.
// A non-positive limit falls back to DefaultPreviewRows.
func BuildPreview(headers []string, rows []RawRow, limit int) Preview {
	if limit <= 0 {
		limit = DefaultPreviewRows
	}
	if limit > len(rows) {
		limit = len(rows)
	}

	return Preview{
		Columns:     headers,
		Rows:        rows[:limit],
		TotalRows:   len(rows),
		PreviewRows: limit,
	}
}
