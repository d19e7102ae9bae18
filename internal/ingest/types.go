package ingest

import (
	"io"
	"time"

	"github.com/dataglance/dataglance/internal/dataset"
)

// Upload describes a file handed to the pipeline. It is ephemeral and only
// lives through validation and parsing; the reader is consumed exactly once.
type Upload struct {
	Filename    string
	Size        int64
	ContentType string
	Reader      io.Reader
}

// Phase indicates the current stage of ingestion processing.
type Phase string

const (
	PhaseStarting   Phase = "starting"
	PhaseValidating Phase = "validating"
	PhaseParsing    Phase = "parsing"
	PhaseInferring  Phase = "inferring"
	PhaseAssembling Phase = "assembling"
	PhaseComplete   Phase = "complete"
	PhaseFailed     Phase = "failed"
	PhaseCancelled  Phase = "cancelled"
)

// Terminal reports whether the phase is an end state.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed || p == PhaseCancelled
}

// Progress represents the current state of an ingestion.
type Progress struct {
	IngestID  string `json:"ingest_id"`
	Phase     Phase  `json:"phase"`
	Filename  string `json:"filename"`
	TotalRows int    `json:"total_rows,omitempty"`
	DatasetID string `json:"dataset_id,omitempty"`
	Error     string `json:"error,omitempty"`
	// Byte-based progress while parsing (row totals are unknown until the
	// full file has been read).
	BytesRead  int64 `json:"bytes_read,omitempty"`
	BytesTotal int64 `json:"bytes_total,omitempty"`
	// Column-based progress while inferring.
	ColumnsProfiled int `json:"columns_profiled,omitempty"`
	TotalColumns    int `json:"total_columns,omitempty"`
}

// Percent maps the phase and its in-phase counters onto a monotonic
// 0-100 scale: parsing covers 10-70 by bytes read, inference covers
// 70-90 by columns profiled.
func (p Progress) Percent() int {
	switch p.Phase {
	case PhaseStarting:
		return 0
	case PhaseValidating:
		return 5
	case PhaseParsing:
		return 10 + scalePercent(p.BytesRead, p.BytesTotal, 60)
	case PhaseInferring:
		return 70 + scalePercent(int64(p.ColumnsProfiled), int64(p.TotalColumns), 20)
	case PhaseAssembling:
		return 95
	case PhaseComplete:
		return 100
	}
	return 0
}

// scalePercent maps done/total onto [0, span], clamping overshoot.
func scalePercent(done, total int64, span int) int {
	if total <= 0 {
		return 0
	}
	s := int(done * int64(span) / total)
	if s > span {
		s = span
	}
	if s < 0 {
		s = 0
	}
	return s
}

// Result contains the final outcome of an ingestion.
type Result struct {
	IngestID string
	Filename string
	Dataset  *dataset.Dataset
	Warnings []string
	Duration time.Duration
	Err      error // Non-nil if the ingestion failed
}

// ParseResult is the output of a format parser: ordered column names and
// the full row sequence. Warnings carry per-row irregularities that did
// not abort the parse.
type ParseResult struct {
	Headers  []string
	Rows     []dataset.RawRow
	Warnings []string
}
