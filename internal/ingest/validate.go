package ingest

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultMaxFileSize is the upload size ceiling when none is configured.
const DefaultMaxFileSize int64 = 50 * 1024 * 1024

// DefaultExtensions are the file extensions accepted when none are configured.
var DefaultExtensions = []string{"csv", "xlsx", "xls"}

// Validator checks an upload's metadata before any bytes are parsed.
// Pure and synchronous; a failure short-circuits the pipeline.
type Validator struct {
	maxSize    int64
	extensions map[string]bool
}

// NewValidator creates a validator for the given size limit and extension
// allowlist. Extensions are matched case-insensitively, with or without a
// leading dot.
func NewValidator(maxSize int64, extensions []string) *Validator {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}

	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			allowed[ext] = true
		}
	}

	return &Validator{
		maxSize:    maxSize,
		extensions: allowed,
	}
}

// Validate checks the declared filename and size. Returns nil when the
// file may be parsed, or a ValidationError describing the rejection.
func (v *Validator) Validate(filename string, size int64) error {
	if strings.TrimSpace(filename) == "" {
		return &ValidationError{
			Field:   "filename",
			Message: "no filename provided",
		}
	}

	ext := NormalizeExtension(filename)
	if ext == "" {
		return &ValidationError{
			Field:   "extension",
			Value:   filename,
			Message: fmt.Sprintf("file has no extension (allowed: %s)", strings.Join(v.Allowed(), ", ")),
		}
	}
	if !v.extensions[ext] {
		return &ValidationError{
			Field:   "extension",
			Value:   ext,
			Message: fmt.Sprintf("file type %q is not supported (allowed: %s)", ext, strings.Join(v.Allowed(), ", ")),
		}
	}

	if size > v.maxSize {
		return &ValidationError{
			Field:   "size",
			Value:   fmt.Sprintf("%d", size),
			Message: fmt.Sprintf("file exceeds the %dMB limit", v.maxSize/(1024*1024)),
		}
	}

	return nil
}

// MaxSize returns the configured size ceiling in bytes.
func (v *Validator) MaxSize() int64 {
	return v.maxSize
}

// Allowed returns the sorted extension allowlist.
func (v *Validator) Allowed() []string {
	out := make([]string, 0, len(v.extensions))
	for ext := range v.extensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// NormalizeExtension extracts the lowercase extension without the dot.
func NormalizeExtension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}
