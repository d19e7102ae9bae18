package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dataglance/dataglance/internal/dataset"
)

// DefaultRequestTimeout bounds one HTTP exchange with the analysis service.
const DefaultRequestTimeout = 10 * time.Second

// Client talks to the remote analysis service. The exchange is small:
// submit a dataset descriptor to create a job, then read the job record
// back until it settles.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the service at baseURL (scheme://host, no
// trailing slash required). A non-positive timeout falls back to the default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// envelope is the service's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// submitData is the slice of the job record Submit cares about.
type submitData struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
}

// Submit creates an analysis job for the dataset and returns its job ID.
// The descriptor travels in the request body so the service can plan the
// analysis from the inferred schema.
func (c *Client) Submit(ctx context.Context, ds *dataset.Dataset) (string, error) {
	body, err := json.Marshal(ds)
	if err != nil {
		return "", fmt.Errorf("encode descriptor: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analysis/"+ds.ID, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var data submitData
	if err := c.do(req, &data); err != nil {
		return "", fmt.Errorf("submit analysis: %w", err)
	}
	if data.ID == "" {
		return "", fmt.Errorf("submit analysis: service returned no job id")
	}
	return data.ID, nil
}

// Status fetches the job record and returns its current status.
func (c *Client) Status(ctx context.Context, jobID string) (Status, error) {
	var data struct {
		Status Status `json:"status"`
	}
	if err := c.get(ctx, jobID, &data); err != nil {
		return "", err
	}
	if data.Status == "" {
		return "", fmt.Errorf("analysis status: service returned no status")
	}
	return data.Status, nil
}

// Result fetches the full job record, including charts, insights, and KPIs
// when the job has completed.
func (c *Client) Result(ctx context.Context, jobID string) (*Result, error) {
	var res Result
	if err := c.get(ctx, jobID, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) get(ctx context.Context, jobID string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/analysis/"+jobID, nil)
	if err != nil {
		return err
	}
	if err := c.do(req, out); err != nil {
		return fmt.Errorf("fetch analysis %s: %w", jobID, err)
	}
	return nil
}

// do executes the request and decodes the envelope's data into out. Error
// responses are reduced to the most specific message available.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("service returned status %d", resp.StatusCode)
		}
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || !env.Success {
		switch {
		case env.Error != nil && env.Error.Message != "":
			return fmt.Errorf("service error: %s", env.Error.Message)
		case env.Message != "":
			return fmt.Errorf("service error: %s", env.Message)
		default:
			return fmt.Errorf("service returned status %d", resp.StatusCode)
		}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}
