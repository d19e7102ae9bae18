package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/dataglance/dataglance/internal/event"
	"github.com/dataglance/dataglance/internal/ingest"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{
			name:       "oversize validation",
			err:        &ingest.ValidationError{Field: "size", Value: "99", Message: "file exceeds the limit"},
			wantCode:   CodeFileTooLarge,
			wantStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name:       "extension validation",
			err:        &ingest.ValidationError{Field: "extension", Value: "txt", Message: "unsupported file type"},
			wantCode:   CodeInvalidFile,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "wrapped validation error",
			err:        fmt.Errorf("start upload: %w", &ingest.ValidationError{Field: "filename", Message: "filename required"}),
			wantCode:   CodeInvalidFile,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty file parse error",
			err:        &ingest.ParseError{Message: ingest.EmptyDataMessage, Empty: true},
			wantCode:   CodeValidationError,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "malformed parse error",
			err:        &ingest.ParseError{Message: "row 7 has 3 fields, expected 5"},
			wantCode:   CodeValidationError,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "unknown ingestion",
			err:        ingest.ErrIngestNotFound,
			wantCode:   CodeNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "slots exhausted",
			err:        ingest.ErrTooManyIngests,
			wantCode:   CodeTooManyUploads,
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "cancelled run",
			err:        context.Canceled,
			wantCode:   CodeUploadCancelled,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "timed out run",
			err:        context.DeadlineExceeded,
			wantCode:   CodeProcessingError,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "bus closed during shutdown",
			err:        event.ErrBusClosed,
			wantCode:   CodeProcessingError,
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "finished ingestion",
			err:        ingest.ErrIngestFinished,
			wantCode:   CodeValidationError,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "missing multipart file",
			err:        errors.New("no file provided"),
			wantCode:   CodeInvalidFile,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "body cap tripped",
			err:        errors.New("invalid multipart form: http: request body too large"),
			wantCode:   CodeFileTooLarge,
			wantStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name:       "unreadable form",
			err:        errors.New("invalid multipart form: malformed MIME header"),
			wantCode:   CodeInvalidFile,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "analysis failure text",
			err:        errors.New("analysis submission failed: connect refused"),
			wantCode:   CodeAnalysisError,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "analysis disabled",
			err:        errors.New("analysis service is not configured"),
			wantCode:   CodeAnalysisError,
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "generic not found text",
			err:        errors.New("dataset not found"),
			wantCode:   CodeNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "unrecognized error",
			err:        errors.New("something exploded"),
			wantCode:   CodeProcessingError,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := MapError(tt.err)
			if msg.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", msg.Code, tt.wantCode)
			}
			if msg.Status != tt.wantStatus {
				t.Errorf("status = %d, want %d", msg.Status, tt.wantStatus)
			}
			if msg.Message == "" {
				t.Error("user message must not be empty")
			}
		})
	}
}

func TestMapErrorNil(t *testing.T) {
	if msg := MapError(nil); msg.Code != "" || msg.Status != 0 {
		t.Errorf("MapError(nil) = %+v, want zero value", msg)
	}
}

func TestMapErrorPrefersValidationMessage(t *testing.T) {
	ve := &ingest.ValidationError{Field: "extension", Value: "pdf", Message: "file type .pdf is not supported"}
	msg := MapError(ve)
	if msg.Message != ve.Message {
		t.Errorf("message = %q, want the validation text %q", msg.Message, ve.Message)
	}
	if msg.Action == "" {
		t.Error("expected a suggested action")
	}
}
