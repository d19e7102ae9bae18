package web

// handlers_dataset.go serves the dataset slot: the current descriptor,
// lookups by id, previews and column profiles built from the retained
// rows, and deletion.

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dataglance/dataglance/internal/dataset"
	"github.com/dataglance/dataglance/internal/event"
	"github.com/dataglance/dataglance/internal/logging"
)

var errNoDataset = errors.New("dataset not found")

// handleCurrentDataset returns the dataset occupying the slot.
func (s *Server) handleCurrentDataset(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.store.Current()
	if !ok {
		s.respondError(w, r, errNoDataset)
		return
	}
	writeData(w, http.StatusOK, ds, "")
}

// handleGetDataset returns the descriptor for a specific dataset id.
// Only the slot occupant resolves; replaced datasets are gone.
func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.store.Get(chi.URLParam(r, "datasetID"))
	if !ok {
		s.respondError(w, r, errNoDataset)
		return
	}
	writeData(w, http.StatusOK, ds, "")
}

// handleDatasetPreview returns the header plus the first rows of the
// dataset. The rows query parameter adjusts the count, capped by the
// configured maximum.
func (s *Server) handleDatasetPreview(w http.ResponseWriter, r *http.Request) {
	headers, rows, ok := s.store.Rows(chi.URLParam(r, "datasetID"))
	if !ok {
		s.respondError(w, r, errNoDataset)
		return
	}

	limit := parseIntParam(r, "rows", dataset.DefaultPreviewRows)
	if max := s.cfg.Upload.MaxPreviewRows; max > 0 && limit > max {
		limit = max
	}

	writeData(w, http.StatusOK, dataset.BuildPreview(headers, rows, limit), "")
}

// handleDatasetColumns returns the inferred column profiles.
func (s *Server) handleDatasetColumns(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.store.Get(chi.URLParam(r, "datasetID"))
	if !ok {
		s.respondError(w, r, errNoDataset)
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"dataset_id": ds.ID,
		"columns":    ds.Columns,
	}, "")
}

// handleDeleteDataset clears the slot when it holds the given dataset
// and announces the removal so a tracked analysis stops.
func (s *Server) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "datasetID")

	if !s.store.Clear(datasetID) {
		s.respondError(w, r, errNoDataset)
		return
	}

	s.publish(event.Event{Type: event.TypeDatasetCleared, DatasetID: datasetID})
	logging.FromContext(r.Context()).Info("dataset cleared", "dataset_id", datasetID)

	writeData(w, http.StatusOK, map[string]string{"dataset_id": datasetID}, "dataset deleted")
}
