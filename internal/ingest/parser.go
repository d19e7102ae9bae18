package ingest

import (
	"context"
	"io"
	"sort"
	"sync"
)

// Parser converts file bytes into the raw row sequence. Implementations
// are registered per extension and must honor context cancellation while
// reading. Parsers never produce a zero-row result: inputs without data
// rows fail with a ParseError instead.
type Parser interface {
	// Parse consumes the reader and returns headers plus rows. size is the
	// declared byte length, used for progress reporting (0 if unknown).
	Parse(ctx context.Context, r io.Reader, size int64, onProgress func(read, total int64)) (*ParseResult, error)

	// Extensions lists the file extensions (without dot) this parser handles.
	Extensions() []string
}

var (
	parsers   = make(map[string]Parser)
	parsersMu sync.RWMutex
)

// RegisterParser adds a parser for each of its extensions.
// Panics if an extension is already claimed.
func RegisterParser(p Parser) {
	parsersMu.Lock()
	defer parsersMu.Unlock()

	for _, ext := range p.Extensions() {
		if _, exists := parsers[ext]; exists {
			panic("parser already registered for extension: " + ext)
		}
		parsers[ext] = p
	}
}

// ParserFor returns the parser responsible for the filename's extension.
// Returns false if no parser claims it.
func ParserFor(filename string) (Parser, bool) {
	parsersMu.RLock()
	defer parsersMu.RUnlock()

	p, ok := parsers[NormalizeExtension(filename)]
	return p, ok
}

// SupportedExtensions returns all registered extensions, sorted.
func SupportedExtensions() []string {
	parsersMu.RLock()
	defer parsersMu.RUnlock()

	exts := make([]string, 0, len(parsers))
	for ext := range parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func init() {
	RegisterParser(&CSVParser{})
	RegisterParser(&ExcelParser{})
}
