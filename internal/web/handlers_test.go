package web

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dataglance/dataglance/internal/analysis"
	"github.com/dataglance/dataglance/internal/config"
	"github.com/dataglance/dataglance/internal/dataset"
	"github.com/dataglance/dataglance/internal/event"
	"github.com/dataglance/dataglance/internal/ingest"
)

// acceptUpload posts content and returns the ingest id from the 202
// response.
func acceptUpload(t *testing.T, env *testEnv, filename, content string) string {
	t.Helper()

	resp := postUpload(t, env.srv.URL, "file", filename, content)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("upload status = %d, want 202", resp.StatusCode)
	}

	envl := decodeEnvelope(t, resp)
	var data struct {
		IngestID string `json:"ingest_id"`
	}
	unmarshalData(t, envl, &data)
	if data.IngestID == "" {
		t.Fatal("expected an ingest id")
	}
	return data.IngestID
}

// fetchResult blocks on the result endpoint and returns the decoded
// envelope with its status code.
func fetchResult(t *testing.T, env *testEnv, ingestID string) (int, testEnvelope) {
	t.Helper()
	resp := httpGet(t, env.srv.URL+"/api/v1/upload/"+ingestID)
	status := resp.StatusCode
	return status, decodeEnvelope(t, resp)
}

// ----------------------------------------------------------------------------
// Upload lifecycle
// ----------------------------------------------------------------------------

func TestUploadLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	ingestID := acceptUpload(t, env, "orders.csv", sampleCSV)

	// Block on the result.
	status, envl := fetchResult(t, env, ingestID)
	if status != http.StatusOK {
		t.Fatalf("result status = %d, want 200", status)
	}
	var res struct {
		IngestID string           `json:"ingest_id"`
		Filename string           `json:"filename"`
		Dataset  *dataset.Dataset `json:"dataset"`
	}
	unmarshalData(t, envl, &res)
	if res.IngestID != ingestID {
		t.Errorf("ingest_id = %q, want %q", res.IngestID, ingestID)
	}
	if res.Dataset == nil {
		t.Fatal("expected a dataset in the result")
	}
	if res.Dataset.RowCount != 3 || res.Dataset.ColumnCount != 5 {
		t.Errorf("dataset = %dx%d, want 3x5", res.Dataset.RowCount, res.Dataset.ColumnCount)
	}
	if res.Dataset.Status != dataset.StatusReady {
		t.Errorf("dataset status = %q, want %q", res.Dataset.Status, dataset.StatusReady)
	}
	datasetID := res.Dataset.ID

	// The slot now holds the dataset.
	resp := httpGet(t, env.srv.URL+"/api/v1/datasets/current")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("current status = %d, want 200", resp.StatusCode)
	}
	var current dataset.Dataset
	unmarshalData(t, decodeEnvelope(t, resp), &current)
	if current.ID != datasetID {
		t.Errorf("current id = %q, want %q", current.ID, datasetID)
	}

	// Lookup by id.
	resp = httpGet(t, env.srv.URL+"/api/v1/datasets/"+datasetID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	// Preview respects the rows parameter.
	resp = httpGet(t, env.srv.URL+"/api/v1/datasets/"+datasetID+"/preview?rows=2")
	var preview dataset.Preview
	unmarshalData(t, decodeEnvelope(t, resp), &preview)
	if len(preview.Columns) != 5 {
		t.Errorf("preview columns = %d, want 5", len(preview.Columns))
	}
	if preview.PreviewRows != 2 || len(preview.Rows) != 2 {
		t.Errorf("preview rows = %d (%d listed), want 2", preview.PreviewRows, len(preview.Rows))
	}
	if preview.TotalRows != 3 {
		t.Errorf("total rows = %d, want 3", preview.TotalRows)
	}

	// Column profiles.
	resp = httpGet(t, env.srv.URL+"/api/v1/datasets/"+datasetID+"/columns")
	var cols struct {
		DatasetID string                  `json:"dataset_id"`
		Columns   []dataset.ColumnProfile `json:"columns"`
	}
	unmarshalData(t, decodeEnvelope(t, resp), &cols)
	if cols.DatasetID != datasetID {
		t.Errorf("columns dataset_id = %q, want %q", cols.DatasetID, datasetID)
	}
	if len(cols.Columns) != 5 {
		t.Errorf("columns = %d, want 5", len(cols.Columns))
	}

	// Delete clears the slot.
	resp = httpDo(t, http.MethodDelete, env.srv.URL+"/api/v1/datasets/"+datasetID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	resp = httpGet(t, env.srv.URL+"/api/v1/datasets/current")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("current after delete = %d, want 404", resp.StatusCode)
	}
	envl = decodeEnvelope(t, resp)
	if envl.Success || envl.Error == nil || envl.Error.Code != CodeNotFound {
		t.Errorf("expected NOT_FOUND envelope, got %+v", envl.Error)
	}
}

func TestUploadPreviewCapsRows(t *testing.T) {
	env := newTestEnv(t, nil) // MaxPreviewRows is 3 in the test config

	ingestID := acceptUpload(t, env, "orders.csv", sampleCSV)
	status, envl := fetchResult(t, env, ingestID)
	if status != http.StatusOK {
		t.Fatalf("result status = %d, want 200", status)
	}
	var res struct {
		Dataset *dataset.Dataset `json:"dataset"`
	}
	unmarshalData(t, envl, &res)

	resp := httpGet(t, env.srv.URL+"/api/v1/datasets/"+res.Dataset.ID+"/preview?rows=99999")
	var preview dataset.Preview
	unmarshalData(t, decodeEnvelope(t, resp), &preview)
	if preview.PreviewRows > env.cfg.Upload.MaxPreviewRows {
		t.Errorf("preview rows = %d, want at most %d", preview.PreviewRows, env.cfg.Upload.MaxPreviewRows)
	}

	// Garbage values fall back to the default.
	resp = httpGet(t, env.srv.URL+"/api/v1/datasets/"+res.Dataset.ID+"/preview?rows=abc")
	unmarshalData(t, decodeEnvelope(t, resp), &preview)
	if preview.PreviewRows != 3 {
		// Three rows total, default of ten capped by the data.
		t.Errorf("preview rows = %d, want 3", preview.PreviewRows)
	}
}

// ----------------------------------------------------------------------------
// Upload rejections
// ----------------------------------------------------------------------------

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := postUpload(t, env.srv.URL, "file", "notes.txt", "hello")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	envl := decodeEnvelope(t, resp)
	if envl.Success || envl.Error == nil || envl.Error.Code != CodeInvalidFile {
		t.Errorf("expected INVALID_FILE envelope, got %+v", envl.Error)
	}

	// A rejected upload never enters the queue.
	resp = httpGet(t, env.srv.URL+"/api/v1/upload/queue")
	var queue struct {
		Ingests []ingest.Progress `json:"ingests"`
	}
	unmarshalData(t, decodeEnvelope(t, resp), &queue)
	if len(queue.Ingests) != 0 {
		t.Errorf("queue has %d entries, want 0", len(queue.Ingests))
	}
}

func TestUploadRejectsOversizedBody(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Upload.MaxFileSize = 256
	})

	resp := postUpload(t, env.srv.URL, "file", "big.csv", strings.Repeat("a,b,c\n", 500))
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", resp.StatusCode)
	}
	envl := decodeEnvelope(t, resp)
	if envl.Error == nil || envl.Error.Code != CodeFileTooLarge {
		t.Errorf("expected FILE_TOO_LARGE envelope, got %+v", envl.Error)
	}
}

func TestUploadRejectsMissingFileField(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := postUpload(t, env.srv.URL, "attachment", "orders.csv", sampleCSV)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	envl := decodeEnvelope(t, resp)
	if envl.Error == nil || envl.Error.Code != CodeInvalidFile {
		t.Errorf("expected INVALID_FILE envelope, got %+v", envl.Error)
	}
}

func TestUploadEmptyFileFailsValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	// Header only: accepted for processing, then rejected by the parser.
	ingestID := acceptUpload(t, env, "empty.csv", "id,name\n")

	status, envl := fetchResult(t, env, ingestID)
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("result status = %d, want 422", status)
	}
	if envl.Success || envl.Error == nil || envl.Error.Code != CodeValidationError {
		t.Errorf("expected VALIDATION_ERROR envelope, got %+v", envl.Error)
	}
}

// ----------------------------------------------------------------------------
// Cancellation
// ----------------------------------------------------------------------------

func TestCancelFinishedIngestion(t *testing.T) {
	env := newTestEnv(t, nil)

	ingestID := acceptUpload(t, env, "orders.csv", sampleCSV)
	if status, _ := fetchResult(t, env, ingestID); status != http.StatusOK {
		t.Fatalf("result status = %d, want 200", status)
	}

	resp := httpDo(t, http.MethodPost, env.srv.URL+"/api/v1/upload/"+ingestID+"/cancel")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("cancel status = %d, want 422", resp.StatusCode)
	}
	envl := decodeEnvelope(t, resp)
	if envl.Error == nil || envl.Error.Code != CodeValidationError {
		t.Errorf("expected VALIDATION_ERROR envelope, got %+v", envl.Error)
	}
}

func TestUnknownIdentifiersReturnNotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	cases := []struct {
		name   string
		method string
		path   string
	}{
		{"progress", http.MethodGet, "/api/v1/upload/nope/progress"},
		{"result", http.MethodGet, "/api/v1/upload/nope"},
		{"cancel", http.MethodPost, "/api/v1/upload/nope/cancel"},
		{"dataset", http.MethodGet, "/api/v1/datasets/nope"},
		{"preview", http.MethodGet, "/api/v1/datasets/nope/preview"},
		{"columns", http.MethodGet, "/api/v1/datasets/nope/columns"},
		{"delete", http.MethodDelete, "/api/v1/datasets/nope"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := httpDo(t, tc.method, env.srv.URL+tc.path)
			if resp.StatusCode != http.StatusNotFound {
				t.Fatalf("status = %d, want 404", resp.StatusCode)
			}
			envl := decodeEnvelope(t, resp)
			if envl.Success || envl.Error == nil || envl.Error.Code != CodeNotFound {
				t.Errorf("expected NOT_FOUND envelope, got %+v", envl.Error)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Queue
// ----------------------------------------------------------------------------

func TestIngestQueueSnapshot(t *testing.T) {
	env := newTestEnv(t, nil)

	ingestID := acceptUpload(t, env, "orders.csv", sampleCSV)
	if status, _ := fetchResult(t, env, ingestID); status != http.StatusOK {
		t.Fatalf("result status = %d, want 200", status)
	}

	resp := httpGet(t, env.srv.URL+"/api/v1/upload/queue")
	var queue struct {
		Limiter ingest.LimiterStatus `json:"limiter"`
		Ingests []ingest.Progress    `json:"ingests"`
	}
	unmarshalData(t, decodeEnvelope(t, resp), &queue)

	if queue.Limiter.MaxConcurrent != env.cfg.Upload.MaxConcurrent {
		t.Errorf("max_concurrent = %d, want %d", queue.Limiter.MaxConcurrent, env.cfg.Upload.MaxConcurrent)
	}
	if queue.Limiter.Active != 0 {
		t.Errorf("active = %d, want 0 after completion", queue.Limiter.Active)
	}
	if len(queue.Ingests) != 1 || queue.Ingests[0].IngestID != ingestID {
		t.Fatalf("queue = %+v, want the finished ingestion", queue.Ingests)
	}
	if queue.Ingests[0].Phase != ingest.PhaseComplete {
		t.Errorf("phase = %q, want complete", queue.Ingests[0].Phase)
	}
}

// ----------------------------------------------------------------------------
// SSE streams
// ----------------------------------------------------------------------------

func TestIngestProgressStream(t *testing.T) {
	env := newTestEnv(t, nil)

	ingestID := acceptUpload(t, env, "orders.csv", sampleCSV)
	if status, _ := fetchResult(t, env, ingestID); status != http.StatusOK {
		t.Fatalf("result status = %d, want 200", status)
	}

	// Subscribing after completion yields the terminal snapshot and the
	// completion marker, then the stream ends.
	resp := httpGet(t, env.srv.URL+"/api/v1/upload/"+ingestID+"/progress")
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	stream := string(body)

	if !strings.Contains(stream, "id: 100\nevent: progress") {
		t.Errorf("stream missing terminal progress event:\n%s", stream)
	}
	if !strings.Contains(stream, `"phase":"complete"`) {
		t.Errorf("stream missing complete phase:\n%s", stream)
	}
	if !strings.Contains(stream, "event: complete\ndata: {}") {
		t.Errorf("stream missing completion marker:\n%s", stream)
	}
}

func TestIngestProgressStreamResumesPastTerminal(t *testing.T) {
	env := newTestEnv(t, nil)

	// A failed ingestion reports percent zero, which must survive
	// resumption filtering no matter how large the last seen id is.
	ingestID := acceptUpload(t, env, "empty.csv", "id,name\n")
	if status, _ := fetchResult(t, env, ingestID); status != http.StatusUnprocessableEntity {
		t.Fatalf("result status = %d, want 422", status)
	}

	resp := httpGet(t, env.srv.URL+"/api/v1/upload/"+ingestID+"/progress?lastEventId=95")
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	stream := string(body)

	if !strings.Contains(stream, `"phase":"failed"`) {
		t.Errorf("stream missing terminal failure event:\n%s", stream)
	}
	if !strings.Contains(stream, "event: complete") {
		t.Errorf("stream missing completion marker:\n%s", stream)
	}
}

func TestEventsStream(t *testing.T) {
	env := newTestEnv(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/api/v1/events", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect stream: %v", err)
	}
	defer resp.Body.Close()

	// The handler subscribes asynchronously; wait for it before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for env.bus.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed to the bus")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := env.bus.Publish(event.Event{Type: event.TypeDatasetCreated, DatasetID: "ds-9"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	scanner := bufio.NewScanner(resp.Body)
	var sawEvent, sawData bool
	for scanner.Scan() {
		line := scanner.Text()
		if line == "event: "+event.TypeDatasetCreated {
			sawEvent = true
		}
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, `"ds-9"`) {
			sawData = true
		}
		if sawEvent && sawData {
			break
		}
	}
	if !sawEvent || !sawData {
		t.Fatalf("stream missing dataset.created event (event=%v data=%v)", sawEvent, sawData)
	}
}

// ----------------------------------------------------------------------------
// Analysis endpoint
// ----------------------------------------------------------------------------

func TestAnalysisStateDisabled(t *testing.T) {
	env := newTestEnv(t, nil) // wired without a poller

	resp := httpGet(t, env.srv.URL+"/api/v1/analysis/ds-1")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	envl := decodeEnvelope(t, resp)
	if envl.Error == nil || envl.Error.Code != CodeAnalysisError {
		t.Errorf("expected ANALYSIS_ERROR envelope, got %+v", envl.Error)
	}
}

func TestAnalysisState(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			fmt.Fprint(w, `{"success":true,"data":{"id":"job-1","status":"pending"}}`)
			return
		}
		fmt.Fprint(w, `{"success":true,"data":{"status":"processing"}}`)
	}))
	defer remote.Close()

	cfg := testConfig()
	bus := event.NewBus(16)
	defer bus.Close()
	store := dataset.NewStore()
	ingests := ingest.NewService(nil, store, bus, nil, cfg.Upload.Timeout, cfg.Upload.Retention)

	client := analysis.NewClient(remote.URL, time.Second)
	poller := analysis.NewPoller(client, bus, store, 10*time.Millisecond, time.Second)

	server := NewServer(cfg, ingests, store, poller, bus)
	srv := httptest.NewServer(server.Router())
	defer srv.Close()

	ds := &dataset.Dataset{ID: "ds-1", Name: "orders", Filename: "orders.csv", RowCount: 3, ColumnCount: 2}
	poller.Submit(ds)
	defer poller.Cancel("ds-1")

	// The job reaches processing once the first poll lands.
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp := httpGet(t, srv.URL+"/api/v1/analysis/ds-1")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var state analysis.JobState
		unmarshalData(t, decodeEnvelope(t, resp), &state)
		if state.Status == analysis.StatusProcessing {
			if state.AnalysisID != "job-1" {
				t.Errorf("analysis_id = %q, want job-1", state.AnalysisID)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never reached processing, last status %q", state.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Unknown datasets are not tracked.
	resp := httpGet(t, srv.URL+"/api/v1/analysis/ds-other")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	envl := decodeEnvelope(t, resp)
	if envl.Error == nil || envl.Error.Code != CodeNotFound {
		t.Errorf("expected NOT_FOUND envelope, got %+v", envl.Error)
	}
}
