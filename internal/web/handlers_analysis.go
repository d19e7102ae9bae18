package web

// handlers_analysis.go exposes the poller's view of the remote analysis
// job attached to a dataset.

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

var (
	errAnalysisDisabled = errors.New("analysis service is not configured")
	errNoAnalysis       = errors.New("no analysis tracked for this dataset")
)

// handleAnalysisState returns the tracked analysis job for the dataset:
// pending, processing, or terminal with the result or failure reason
// attached. Only the most recent dataset has a tracked job.
func (s *Server) handleAnalysisState(w http.ResponseWriter, r *http.Request) {
	if s.poller == nil {
		s.respondError(w, r, errAnalysisDisabled)
		return
	}

	state, ok := s.poller.State(chi.URLParam(r, "datasetID"))
	if !ok {
		s.respondError(w, r, errNoAnalysis)
		return
	}

	writeData(w, http.StatusOK, state, "")
}
