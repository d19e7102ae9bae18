package ingest

// infer.go classifies columns from their parsed values. Rules run in a
// fixed priority order (boolean, numeric, date, category, string) and
// each rule inspects the string form of every non-null value, so the
// result is deterministic for a given input regardless of how cells were
// coerced at parse time.

import (
	"regexp"
	"strings"

	"github.com/dataglance/dataglance/internal/dataset"
)

const (
	// DefaultSampleSize is how many leading values each column profile
	// carries when no explicit size is configured.
	DefaultSampleSize = 5

	// dateMatchThreshold is the fraction of non-null values that must be
	// date-shaped, exclusive, before a column classifies as date.
	dateMatchThreshold = 0.8

	// categoryMaxDistinct is the absolute cardinality ceiling for
	// category columns, exclusive.
	categoryMaxDistinct = 20
)

// Date shapes are matched as prefixes so trailing time components still
// count (the ':' check then upgrades the column to datetime).
var (
	isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	usDatePattern  = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}`)
)

// Profiler derives column profiles from parsed rows.
type Profiler struct {
	sampleSize int
}

// NewProfiler creates a profiler keeping sampleSize leading values per
// column. Non-positive sizes fall back to DefaultSampleSize.
func NewProfiler(sampleSize int) *Profiler {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &Profiler{sampleSize: sampleSize}
}

// ProfileColumns profiles every column in header order. onColumn, when
// non-nil, is invoked after each column completes with (done, total).
func (p *Profiler) ProfileColumns(headers []string, rows []dataset.RawRow, onColumn func(done, total int)) []dataset.ColumnProfile {
	profiles := make([]dataset.ColumnProfile, 0, len(headers))
	for i, name := range headers {
		profiles = append(profiles, p.profileColumn(name, rows))
		if onColumn != nil {
			onColumn(i+1, len(headers))
		}
	}
	return profiles
}

// profileColumn walks one column: collects the leading sample (nulls
// included), counts missing values, and gathers the distinct non-null
// string forms classification and the uniqueness count both need.
func (p *Profiler) profileColumn(name string, rows []dataset.RawRow) dataset.ColumnProfile {
	sample := make([]dataset.Value, 0, p.sampleSize)
	values := make([]dataset.Value, 0, len(rows))
	distinct := make(map[string]struct{})
	missing := 0

	for _, row := range rows {
		v, ok := row[name]
		if !ok {
			v = dataset.NullValue()
		}
		if len(sample) < p.sampleSize {
			sample = append(sample, v)
		}
		if v.IsMissing() {
			missing++
			continue
		}
		values = append(values, v)
		distinct[v.String()] = struct{}{}
	}

	return dataset.ColumnProfile{
		Name:     name,
		Type:     classify(values, len(distinct)),
		Nullable: missing > 0,
		Unique:   len(distinct),
		Missing:  missing,
		Sample:   sample,
	}
}

// classify applies the detection rules in priority order; the first rule
// that matches wins. values holds only non-null entries.
func classify(values []dataset.Value, distinct int) dataset.ColumnType {
	if len(values) == 0 {
		return dataset.TypeString
	}

	if allBoolean(values) {
		return dataset.TypeBoolean
	}

	if numeric, isFloat := allNumeric(values); numeric {
		if isFloat {
			return dataset.TypeFloat
		}
		return dataset.TypeInteger
	}

	if matched, withTime := countDateShaped(values); float64(matched) > dateMatchThreshold*float64(len(values)) {
		if withTime {
			return dataset.TypeDatetime
		}
		return dataset.TypeDate
	}

	if distinct*2 < len(values) && distinct < categoryMaxDistinct {
		return dataset.TypeCategory
	}

	return dataset.TypeString
}

// allBoolean reports whether every value reads as a boolean. The check
// runs on string forms, so the numerals 0 and 1 qualify alongside
// literal true/false.
func allBoolean(values []dataset.Value) bool {
	for _, v := range values {
		switch v.String() {
		case "true", "false", "0", "1":
		default:
			return false
		}
	}
	return true
}

// allNumeric reports whether every value coerces to a number, and
// whether any original text carries a decimal point. Exponent notation
// without a point ("1e-7") therefore stays integer.
func allNumeric(values []dataset.Value) (numeric, isFloat bool) {
	for _, v := range values {
		if _, ok := v.Number(); !ok {
			return false, false
		}
		if strings.Contains(v.String(), ".") {
			isFloat = true
		}
	}
	return true, isFloat
}

// countDateShaped counts values whose string form starts with an ISO
// (2024-01-15) or US (1/15/2024) date, and whether any of those carry a
// time component.
func countDateShaped(values []dataset.Value) (matched int, withTime bool) {
	for _, v := range values {
		s := v.String()
		if !isoDatePattern.MatchString(s) && !usDatePattern.MatchString(s) {
			continue
		}
		matched++
		if strings.Contains(s, ":") {
			withTime = true
		}
	}
	return matched, withTime
}
