package ingest

// streaming.go provides the readers CSV input is parsed through.
//
//   - DecodeReader: strips a UTF-8 BOM, transcodes UTF-16 files (common
//     Excel "Unicode Text" exports) to UTF-8, and replaces invalid byte
//     sequences with U+FFFD, all on the fly.
//   - CountingReader: tracks raw bytes consumed for progress reporting.
//
// The counting reader wraps the raw stream and the decoder wraps the
// counter, so progress is measured against the declared upload size even
// when transcoding changes the byte count.

import (
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DecodeReader wraps r with BOM handling and lenient UTF-8 decoding.
// UTF-16 streams carrying a BOM are transcoded; everything else is
// treated as UTF-8 with invalid sequences replaced, never failed.
func DecodeReader(r io.Reader) io.Reader {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	return transform.NewReader(r, decoder)
}

// CountingReader wraps an io.Reader and tracks bytes read. It is not
// safe for concurrent use; progress callbacks run on the parse goroutine.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
	Total     int64 // declared size, 0 if unknown
}

// NewCountingReader creates a counting reader with an optional total size.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{
		reader: r,
		Total:  total,
	}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// Progress returns the read progress as a percentage (0-100).
// Returns 0 if the total is unknown.
func (r *CountingReader) Progress() int {
	if r.Total <= 0 {
		return 0
	}
	pct := int(r.BytesRead * 100 / r.Total)
	if pct > 100 {
		pct = 100
	}
	return pct
}
