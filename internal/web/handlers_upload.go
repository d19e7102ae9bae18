package web

// handlers_upload.go hosts the ingestion endpoints: multipart upload,
// SSE progress with resumption, cancellation, the blocking result, and
// the limiter queue snapshot.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dataglance/dataglance/internal/dataset"
	"github.com/dataglance/dataglance/internal/ingest"
	"github.com/dataglance/dataglance/internal/logging"
)

// handleUpload accepts a multipart file and starts an asynchronous
// ingestion. The response carries the ingest id; progress streams from
// the progress endpoint. The file stays owned by the pipeline once the
// ingestion starts, so it is only closed here on rejection.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	// maxSize as the memory limit keeps accepted files off the disk, so
	// the pipeline can keep reading after this handler returns.
	if err := r.ParseMultipartForm(maxSize); err != nil {
		s.respondError(w, r, fmt.Errorf("invalid multipart form: %w", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, errors.New("no file provided"))
		return
	}

	ingestID, err := s.ingests.Start(r.Context(), ingest.Upload{
		Filename:    header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Reader:      file,
	})
	if err != nil {
		file.Close()
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("upload accepted",
		"ingest_id", ingestID,
		"filename", header.Filename,
		"size", header.Size,
	)

	writeData(w, http.StatusAccepted, map[string]string{"ingest_id": ingestID}, "upload accepted")
}

// handleIngestProgress streams ingestion progress via Server-Sent Events.
// Supports resumption via the Last-Event-ID header or the lastEventId
// query parameter: the event id is the progress percent, so reconnecting
// clients skip percents they already saw. Terminal updates are never
// skipped because a failure or cancellation reports percent zero.
func (s *Server) handleIngestProgress(w http.ResponseWriter, r *http.Request) {
	ingestID := chi.URLParam(r, "ingestID")

	lastEventRaw := r.Header.Get("Last-Event-ID")
	if lastEventRaw == "" {
		lastEventRaw = r.URL.Query().Get("lastEventId")
	}
	lastEventID := -1
	if lastEventRaw != "" {
		if n, err := strconv.Atoi(lastEventRaw); err == nil {
			lastEventID = n
		}
	}

	updates, unsubscribe, err := s.ingests.SubscribeProgress(ingestID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer unsubscribe()

	flusher, ok := setupSSE(w)
	if !ok {
		return
	}

	for {
		select {
		case progress, ok := <-updates:
			if !ok {
				// Channel closed: the ingestion settled and the final
				// update was delivered.
				fmt.Fprint(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}

			percent := progress.Percent()
			if lastEventID >= 0 && !progress.Phase.Terminal() && percent <= lastEventID {
				continue
			}

			data, err := json.Marshal(progress)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", percent, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleIngestCancel requests cancellation of a running ingestion. The
// pipeline stops at its next checkpoint, so the progress stream reports
// the cancelled phase slightly later.
func (s *Server) handleIngestCancel(w http.ResponseWriter, r *http.Request) {
	ingestID := chi.URLParam(r, "ingestID")

	if err := s.ingests.Cancel(ingestID); err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("ingestion cancel requested", "ingest_id", ingestID)
	writeData(w, http.StatusOK, map[string]string{"status": "cancelling"}, "cancellation requested")
}

// ingestResultResponse wraps the ingestion result for JSON encoding.
type ingestResultResponse struct {
	IngestID   string           `json:"ingest_id"`
	Filename   string           `json:"filename"`
	Dataset    *dataset.Dataset `json:"dataset,omitempty"`
	Warnings   []string         `json:"warnings,omitempty"`
	DurationMS int64            `json:"duration_ms"`
}

// handleIngestResult blocks until the ingestion finishes. When the
// request deadline fires while the job is still running, the current
// progress snapshot is returned with 202 instead of an error.
func (s *Server) handleIngestResult(w http.ResponseWriter, r *http.Request) {
	ingestID := chi.URLParam(r, "ingestID")

	result, err := s.ingests.Result(r.Context(), ingestID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if progress, ok := s.ingests.Progress(ingestID); ok {
				writeData(w, http.StatusAccepted, progress, "ingestion still running")
				return
			}
		}
		s.respondError(w, r, err)
		return
	}

	if result.Err != nil {
		s.respondError(w, r, result.Err)
		return
	}

	writeData(w, http.StatusOK, ingestResultResponse{
		IngestID:   result.IngestID,
		Filename:   result.Filename,
		Dataset:    result.Dataset,
		Warnings:   result.Warnings,
		DurationMS: result.Duration.Milliseconds(),
	}, "")
}

// handleIngestQueue returns the limiter state and every tracked
// ingestion. Clients use it to decide whether an upload would wait.
func (s *Server) handleIngestQueue(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]any{
		"limiter": s.ingests.LimiterStatus(),
		"ingests": s.ingests.Queue(),
	}, "")
}
