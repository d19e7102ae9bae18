// Package analysis tracks the remote analysis job for the current dataset.
// The analysis service itself is an opaque HTTP collaborator: this package
// submits a dataset descriptor to it, polls the job status on an interval,
// and keeps the decoded result once the job reaches a terminal state.
package analysis

import "time"

// Status is the lifecycle state of a remote analysis job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ChartConfig is one recommended visualization, as produced by the analysis
// service. Axis and datum shapes vary by chart type, so they stay loosely
// typed.
type ChartConfig struct {
	ID          string           `json:"id"`
	Type        string           `json:"type"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	XAxis       map[string]any   `json:"x_axis,omitempty"`
	YAxis       map[string]any   `json:"y_axis,omitempty"`
	Data        []map[string]any `json:"data"`
	Colors      []string         `json:"colors,omitempty"`
}

// Insight is one generated finding about the dataset.
type Insight struct {
	ID             string   `json:"id"`
	Type           string   `json:"type"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Importance     string   `json:"importance"`
	RelatedColumns []string `json:"related_columns"`
	Value          string   `json:"value,omitempty"`
	Change         *float64 `json:"change,omitempty"`
}

// KPIMetric is one headline number computed from the dataset.
type KPIMetric struct {
	ID     string   `json:"id"`
	Label  string   `json:"label"`
	Value  float64  `json:"value"`
	Format string   `json:"format"`
	Change *float64 `json:"change,omitempty"`
	Trend  string   `json:"trend,omitempty"`
}

// Result is the full analysis record as returned by the service. Timestamps
// stay strings because the service's format is its own business.
type Result struct {
	ID        string        `json:"id"`
	DatasetID string        `json:"dataset_id"`
	Status    Status        `json:"status"`
	Charts    []ChartConfig `json:"charts"`
	Insights  []Insight     `json:"insights"`
	KPIs      []KPIMetric   `json:"kpis"`
	Summary   string        `json:"summary,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt string        `json:"created_at,omitempty"`
}

// JobState is the poller's view of one tracked analysis job.
type JobState struct {
	AnalysisID  string    `json:"analysis_id,omitempty"`
	DatasetID   string    `json:"dataset_id"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
	Result      *Result   `json:"result,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
