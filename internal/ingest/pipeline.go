package ingest

// pipeline.go chains the ingestion steps into one sequential run:
// validate, parse, infer, assemble. The pipeline itself is synchronous
// and stateless; Service wraps it with job tracking and concurrency
// control. Parsing is the cancellation point because it is the only
// step whose cost scales with file size unboundedly.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dataglance/dataglance/internal/dataset"
)

// Pipeline runs one upload end to end.
type Pipeline struct {
	validator *Validator
	profiler  *Profiler
}

// NewPipeline wires a pipeline from its two configurable stages. Nil
// arguments get defaults.
func NewPipeline(validator *Validator, profiler *Profiler) *Pipeline {
	if validator == nil {
		validator = NewValidator(0, nil)
	}
	if profiler == nil {
		profiler = NewProfiler(0)
	}
	return &Pipeline{
		validator: validator,
		profiler:  profiler,
	}
}

// PipelineResult carries everything a successful run produces. Headers
// and Rows are retained alongside the descriptor so previews can be
// served without re-parsing.
type PipelineResult struct {
	Dataset  *dataset.Dataset
	Headers  []string
	Rows     []dataset.RawRow
	Warnings []string
}

// parserFor resolves the parser for filename, mapping a missing parser to
// the validation error shown to uploaders. The validator allowlist and the
// parser registry can diverge when operators extend one without the other.
func parserFor(filename string) (Parser, error) {
	parser, ok := ParserFor(filename)
	if !ok {
		return nil, &ValidationError{
			Field:   "extension",
			Value:   NormalizeExtension(filename),
			Message: fmt.Sprintf("no parser available (supported: %s)", strings.Join(SupportedExtensions(), ", ")),
		}
	}
	return parser, nil
}

// Validate runs the pre-parse checks only: the validator's name and size
// rules plus parser availability. Everything it needs is known before any
// file bytes are read, so callers can reject bad uploads synchronously.
func (p *Pipeline) Validate(filename string, size int64) error {
	if err := p.validator.Validate(filename, size); err != nil {
		return err
	}
	_, err := parserFor(filename)
	return err
}

// Run executes the pipeline for one upload. onProgress, when non-nil,
// receives phase transitions and in-phase updates; it is called on the
// calling goroutine and must not block.
func (p *Pipeline) Run(ctx context.Context, up Upload, onProgress func(Progress)) (*PipelineResult, error) {
	notify := func(pr Progress) {
		if onProgress != nil {
			onProgress(pr)
		}
	}

	notify(Progress{Phase: PhaseValidating, Filename: up.Filename})
	if err := p.validator.Validate(up.Filename, up.Size); err != nil {
		return nil, err
	}

	parser, err := parserFor(up.Filename)
	if err != nil {
		return nil, err
	}

	notify(Progress{Phase: PhaseParsing, Filename: up.Filename, BytesTotal: up.Size})
	parsed, err := parser.Parse(ctx, up.Reader, up.Size, func(read, total int64) {
		notify(Progress{
			Phase:      PhaseParsing,
			Filename:   up.Filename,
			BytesRead:  read,
			BytesTotal: total,
		})
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if IsParse(err) || IsValidation(err) {
			return nil, err
		}
		return nil, &UnexpectedError{Op: "parse", Err: err}
	}

	notify(Progress{
		Phase:        PhaseInferring,
		Filename:     up.Filename,
		TotalRows:    len(parsed.Rows),
		TotalColumns: len(parsed.Headers),
	})
	columns := p.profiler.ProfileColumns(parsed.Headers, parsed.Rows, func(done, total int) {
		notify(Progress{
			Phase:           PhaseInferring,
			Filename:        up.Filename,
			TotalRows:       len(parsed.Rows),
			ColumnsProfiled: done,
			TotalColumns:    total,
		})
	})

	notify(Progress{Phase: PhaseAssembling, Filename: up.Filename, TotalRows: len(parsed.Rows)})
	ds := Assemble(up, parsed.Rows, columns)

	return &PipelineResult{
		Dataset:  ds,
		Headers:  parsed.Headers,
		Rows:     parsed.Rows,
		Warnings: parsed.Warnings,
	}, nil
}
