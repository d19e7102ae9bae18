package ingest

// xlsx.go parses spreadsheet workbooks via excelize. Only the first
// sheet is ingested. Cell values stay as the strings excelize renders
// (no coercion), so "00123" keeps its leading zeros; empty and missing
// cells become nulls.

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/dataglance/dataglance/internal/dataset"
)

// ExcelParser parses xlsx and xls workbooks.
type ExcelParser struct{}

// Extensions implements Parser.
func (p *ExcelParser) Extensions() []string { return []string{"xlsx", "xls"} }

// Parse implements Parser. Workbooks are loaded whole (the zip container
// needs random access), so byte progress jumps to complete once the file
// is open and row progress takes over from there.
func (p *ExcelParser) Parse(ctx context.Context, r io.Reader, size int64, onProgress func(read, total int64)) (*ParseResult, error) {
	counting := NewCountingReader(r, size)

	f, err := excelize.OpenReader(counting)
	if err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("could not read spreadsheet: %v", err), Err: err}
	}
	defer f.Close()

	if onProgress != nil {
		onProgress(counting.BytesRead, counting.Total)
	}

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errEmptyData()
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("could not read sheet %q: %v", sheet, err), Err: err}
	}

	headerIdx := -1
	for i, row := range rows {
		if !isBlankRecord(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, errEmptyData()
	}
	headers := normalizeHeaders(rows[headerIdx])

	result := &ParseResult{
		Headers: dedupeHeaders(headers),
		Rows:    make([]dataset.RawRow, 0, len(rows)-headerIdx-1),
	}

	for i, record := range rows[headerIdx+1:] {
		if i%rowCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}
		if isBlankRecord(record) {
			continue
		}

		row := make(dataset.RawRow, len(headers))
		for j, name := range headers {
			row[name] = excelCell(record, j)
		}
		result.Rows = append(result.Rows, row)
	}

	if len(result.Rows) == 0 {
		return nil, errEmptyData()
	}
	return result, nil
}

// excelCell maps one cell to a Value. GetRows trims trailing empty cells
// from each row, so a short record means the cells were absent.
func excelCell(record []string, idx int) dataset.Value {
	if idx >= len(record) || strings.TrimSpace(record[idx]) == "" {
		return dataset.NullValue()
	}
	return dataset.StringValue(record[idx])
}
