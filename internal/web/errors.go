package web

// errors.go maps technical errors onto the product's error codes and the
// JSON error envelope {"success": false, "error": {code, message, action}}.
//
// # Error Codes Reference
//
// When users report an error, the code identifies the category:
//
//	INVALID_FILE        400 - upload rejected before parsing
//	                          (bad extension, missing file, unreadable form)
//	FILE_TOO_LARGE      413 - declared or actual size exceeds the limit
//	VALIDATION_ERROR    422 - file accepted but no dataset could be built
//	                          (malformed content, no data rows)
//	NOT_FOUND           404 - unknown ingestion, dataset, or analysis
//	TOO_MANY_UPLOADS    429 - every ingestion slot stayed occupied
//	RATE_LIMIT_EXCEEDED 429 - per-IP request budget exhausted
//	UPLOAD_CANCELLED    409 - the ingestion was cancelled before finishing
//	PROCESSING_ERROR    500 - pipeline failure outside the categories above
//	ANALYSIS_ERROR      500 - analysis service failed (503 when not configured)
//
// Typed errors from the ingest package are matched first; the string
// pattern table catches errors that arrive as bare text. Patterns are
// matched case-insensitively with strings.Contains and the first match
// wins, so specific patterns come before general ones.

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dataglance/dataglance/internal/event"
	"github.com/dataglance/dataglance/internal/ingest"
	"github.com/dataglance/dataglance/internal/logging"
)

// Error codes returned in the error envelope.
const (
	CodeInvalidFile     = "INVALID_FILE"
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeTooManyUploads  = "TOO_MANY_UPLOADS"
	CodeRateLimited     = "RATE_LIMIT_EXCEEDED"
	CodeUploadCancelled = "UPLOAD_CANCELLED"
	CodeProcessingError = "PROCESSING_ERROR"
	CodeAnalysisError   = "ANALYSIS_ERROR"
)

// UserMessage is the client-facing rendering of an error: what happened,
// what to do about it, the support code, and the HTTP status to use.
type UserMessage struct {
	Message string
	Action  string
	Code    string
	Status  int
}

// errorPattern pairs a lowercase substring with its user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Choose a CSV or Excel file to upload",
			Code:    CodeInvalidFile,
			Status:  http.StatusBadRequest,
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "The upload exceeds the size limit",
			Action:  "Upload a smaller file or split it into chunks",
			Code:    CodeFileTooLarge,
			Status:  http.StatusRequestEntityTooLarge,
		},
	},
	{
		pattern: "multipart",
		msg: UserMessage{
			Message: "The upload form could not be read",
			Action:  "Send the file as multipart form data in the \"file\" field",
			Code:    CodeInvalidFile,
			Status:  http.StatusBadRequest,
		},
	},
	{
		pattern: "file is empty",
		msg: UserMessage{
			Message: "The file is empty or has no valid data",
			Action:  "Add at least one data row below the header",
			Code:    CodeValidationError,
			Status:  http.StatusUnprocessableEntity,
		},
	},
	{
		pattern: "already finished",
		msg: UserMessage{
			Message: "The ingestion already finished",
			Action:  "Fetch the upload result instead",
			Code:    CodeValidationError,
			Status:  http.StatusUnprocessableEntity,
		},
	},
	{
		pattern: "upload not found",
		msg: UserMessage{
			Message: "Upload not found",
			Action:  "The upload may have expired. Start a new upload",
			Code:    CodeNotFound,
			Status:  http.StatusNotFound,
		},
	},
	{
		pattern: "dataset not found",
		msg: UserMessage{
			Message: "No dataset is available",
			Action:  "Upload a file first",
			Code:    CodeNotFound,
			Status:  http.StatusNotFound,
		},
	},
	{
		pattern: "no analysis",
		msg: UserMessage{
			Message: "No analysis is tracked for this dataset",
			Action:  "Upload a dataset to trigger analysis",
			Code:    CodeNotFound,
			Status:  http.StatusNotFound,
		},
	},
	{
		pattern: "not configured",
		msg: UserMessage{
			Message: "The analysis service is not configured",
			Action:  "Set the analysis service URL to enable analysis",
			Code:    CodeAnalysisError,
			Status:  http.StatusServiceUnavailable,
		},
	},
	{
		pattern: "analysis",
		msg: UserMessage{
			Message: "The analysis could not be completed",
			Action:  "Re-upload the dataset to retry",
			Code:    CodeAnalysisError,
			Status:  http.StatusInternalServerError,
		},
	},
	{
		pattern: "too many",
		msg: UserMessage{
			Message: "System is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    CodeTooManyUploads,
			Status:  http.StatusTooManyRequests,
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    CodeRateLimited,
			Status:  http.StatusTooManyRequests,
		},
	},
	{
		pattern: "cancelled",
		msg: UserMessage{
			Message: "The upload was cancelled",
			Action:  "Start a new upload when ready",
			Code:    CodeUploadCancelled,
			Status:  http.StatusConflict,
		},
	},
	{
		pattern: "canceled", // context.Canceled spells it with one l
		msg: UserMessage{
			Message: "The upload was cancelled",
			Action:  "Start a new upload when ready",
			Code:    CodeUploadCancelled,
			Status:  http.StatusConflict,
		},
	},
	{
		pattern: "timed out",
		msg: UserMessage{
			Message: "The operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    CodeProcessingError,
			Status:  http.StatusInternalServerError,
		},
	},
	{
		pattern: "deadline exceeded",
		msg: UserMessage{
			Message: "The operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    CodeProcessingError,
			Status:  http.StatusInternalServerError,
		},
	},
	{
		pattern: "not found",
		msg: UserMessage{
			Message: "The requested resource was not found",
			Action:  "Check the identifier and try again",
			Code:    CodeNotFound,
			Status:  http.StatusNotFound,
		},
	},
}

// defaultMessage is the fallback when nothing matches. Support staff
// should check the logs for the original technical error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    CodeProcessingError,
	Status:  http.StatusInternalServerError,
}

// MapError converts a technical error to its user message. Typed errors
// from the pipeline are matched first, then the pattern table.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ve *ingest.ValidationError
	if errors.As(err, &ve) {
		if ve.Field == "size" {
			return UserMessage{
				Message: ve.Message,
				Action:  "Upload a smaller file or split it into chunks",
				Code:    CodeFileTooLarge,
				Status:  http.StatusRequestEntityTooLarge,
			}
		}
		return UserMessage{
			Message: ve.Message,
			Action:  "Upload a CSV or Excel file",
			Code:    CodeInvalidFile,
			Status:  http.StatusBadRequest,
		}
	}

	var pe *ingest.ParseError
	if errors.As(err, &pe) {
		action := "Check the file for formatting problems and try again"
		if pe.Empty {
			action = "Add at least one data row below the header"
		}
		return UserMessage{
			Message: pe.Message,
			Action:  action,
			Code:    CodeValidationError,
			Status:  http.StatusUnprocessableEntity,
		}
	}

	switch {
	case errors.Is(err, ingest.ErrIngestNotFound):
		return UserMessage{
			Message: "Upload not found",
			Action:  "The upload may have expired. Start a new upload",
			Code:    CodeNotFound,
			Status:  http.StatusNotFound,
		}
	case errors.Is(err, ingest.ErrTooManyIngests):
		return UserMessage{
			Message: "System is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    CodeTooManyUploads,
			Status:  http.StatusTooManyRequests,
		}
	case errors.Is(err, context.Canceled):
		return UserMessage{
			Message: "The upload was cancelled",
			Action:  "Start a new upload when ready",
			Code:    CodeUploadCancelled,
			Status:  http.StatusConflict,
		}
	case errors.Is(err, context.DeadlineExceeded):
		return UserMessage{
			Message: "The operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    CodeProcessingError,
			Status:  http.StatusInternalServerError,
		}
	case errors.Is(err, event.ErrBusClosed):
		return UserMessage{
			Message: "The server is shutting down",
			Action:  "Retry in a few moments",
			Code:    CodeProcessingError,
			Status:  http.StatusServiceUnavailable,
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// respondError logs the technical error with request context and writes
// the mapped user message as the error envelope.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	msg := MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"method", r.Method,
		"path", r.URL.Path,
		"status", msg.Status,
		"code", msg.Code,
		"error", err.Error(),
	)

	writeUserError(w, msg)
}
