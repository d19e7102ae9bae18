package ingest

// csv.go parses delimiter-separated text. The delimiter is guessed from
// a sample of the stream, headers come from the first non-blank record,
// and every cell is coerced opportunistically so numeric and boolean
// text arrives typed. Structural irregularities (ragged rows) produce
// warnings, not failures; only a malformed stream aborts the parse.

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dataglance/dataglance/internal/dataset"
)

// candidateDelimiters are tried during guessing, most common first. The
// first candidate wins ties, so plain comma CSV never misdetects.
var candidateDelimiters = []rune{',', '\t', '|', ';'}

const (
	// delimiterSampleSize is how many bytes are inspected when guessing
	// the delimiter.
	delimiterSampleSize = 64 * 1024

	// rowCheckInterval is how many records pass between context checks
	// and progress callbacks while parsing.
	rowCheckInterval = 100

	// maxParseWarnings caps per-row warnings so a uniformly ragged file
	// does not produce one warning per row.
	maxParseWarnings = 20
)

// CSVParser parses comma, tab, pipe, or semicolon separated files.
type CSVParser struct{}

// Extensions implements Parser.
func (p *CSVParser) Extensions() []string { return []string{"csv"} }

// Parse implements Parser. It streams the input record by record so
// cancellation and progress work on arbitrarily large files.
func (p *CSVParser) Parse(ctx context.Context, r io.Reader, size int64, onProgress func(read, total int64)) (*ParseResult, error) {
	counting := NewCountingReader(r, size)
	buffered := bufio.NewReaderSize(DecodeReader(counting), 64*1024)

	sample, err := buffered.Peek(delimiterSampleSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, &ParseError{Message: "could not read file", Err: err}
	}
	if len(sample) == 0 {
		return nil, errEmptyData()
	}

	reader := csv.NewReader(buffered)
	reader.Comma = GuessDelimiter(sample)
	reader.FieldsPerRecord = -1 // ragged rows are handled below, not rejected
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	rawHeaders, err := readHeaderRecord(reader)
	if err != nil {
		return nil, err
	}
	headers := normalizeHeaders(rawHeaders)

	result := &ParseResult{
		Headers: dedupeHeaders(headers),
		Rows:    make([]dataset.RawRow, 0, 128),
	}

	suppressed := 0
	warn := func(format string, args ...any) {
		if len(result.Warnings) >= maxParseWarnings {
			suppressed++
			return
		}
		result.Warnings = append(result.Warnings, fmt.Sprintf(format, args...))
	}

	record := 1 // 1-based, counting the header
	for {
		if len(result.Rows)%rowCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			if onProgress != nil {
				onProgress(counting.BytesRead, counting.Total)
			}
		}

		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{
				Message: fmt.Sprintf("malformed CSV near record %d: %v", record+1, err),
				Err:     err,
			}
		}
		record++

		if isBlankRecord(fields) {
			continue
		}

		row := make(dataset.RawRow, len(headers))
		for i, name := range headers {
			if i < len(fields) {
				row[name] = dataset.CoerceValue(fields[i])
			} else {
				row[name] = dataset.NullValue()
			}
		}
		if extra := len(fields) - len(headers); extra > 0 {
			warn("record %d has %d values for %d columns, extras discarded", record, len(fields), len(headers))
		}
		result.Rows = append(result.Rows, row)
	}

	if suppressed > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d similar warnings suppressed", suppressed))
	}
	if len(result.Rows) == 0 {
		return nil, errEmptyData()
	}

	if onProgress != nil {
		onProgress(counting.BytesRead, counting.Total)
	}
	return result, nil
}

// readHeaderRecord returns the first non-blank record.
func readHeaderRecord(reader *csv.Reader) ([]string, error) {
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			return nil, errEmptyData()
		}
		if err != nil {
			return nil, &ParseError{Message: fmt.Sprintf("malformed CSV header: %v", err), Err: err}
		}
		if isBlankRecord(fields) {
			continue
		}
		out := make([]string, len(fields))
		copy(out, fields)
		return out, nil
	}
}

// GuessDelimiter picks the candidate that most plausibly structures the
// sample: highest average fields per line, requiring a consistent field
// count across the sampled lines to win over an earlier candidate.
func GuessDelimiter(sample []byte) rune {
	text := string(sample)
	best := candidateDelimiters[0]
	bestScore := -1.0

	for _, delim := range candidateDelimiters {
		score := scoreDelimiter(text, delim)
		if score > bestScore {
			best = delim
			bestScore = score
		}
	}
	return best
}

// scoreDelimiter parses the sample with the candidate and scores it by
// mean field count, halved when lines disagree on their field count.
func scoreDelimiter(sample string, delim rune) float64 {
	reader := csv.NewReader(strings.NewReader(sample))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	lines := 0
	fields := 0
	counts := make(map[int]int)
	for lines < 10 {
		record, err := reader.Read()
		if err != nil {
			break
		}
		lines++
		fields += len(record)
		counts[len(record)]++
	}
	if lines == 0 || fields <= lines {
		// Every line had one field: the delimiter never appeared.
		return 0
	}

	score := float64(fields) / float64(lines)
	if len(counts) > 1 {
		score /= 2
	}
	return score
}

// normalizeHeaders trims each header cell and substitutes column_N
// (1-based) for blank ones.
func normalizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		headers[i] = h
	}
	return headers
}

// dedupeHeaders keeps the first occurrence of each name, preserving
// order. Duplicate headers collapse to a single column; the rightmost
// cell wins because row maps assign positionally left to right.
func dedupeHeaders(headers []string) []string {
	seen := make(map[string]struct{}, len(headers))
	out := make([]string, 0, len(headers))
	for _, h := range headers {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

// isBlankRecord reports whether every field is empty or whitespace.
func isBlankRecord(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
