// Package compute is the REST client for the external GPU compute
// provider. The provider owns scheduling, images and hardware; this
// service only creates jobs and reads their state back.
package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the compute provider API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	// Timeouts are applied per call, not on the http.Client: a
	// client-level timeout would also cap provisioning, which is
	// allowed to run longer than reads
	readTimeout   time.Duration
	createTimeout time.Duration
}

// NewClient creates a compute provider client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:       baseURL,
		apiKey:        apiKey,
		httpClient:    &http.Client{},
		readTimeout:   10 * time.Second,
		createTimeout: 30 * time.Second,
	}
}

// HTTPError is returned for non-2xx provider responses
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("compute provider request failed: status=%d url=%s body=%s", e.StatusCode, e.URL, e.Body)
}

// CreateJobRequest is the provider-side job creation payload
type CreateJobRequest struct {
	Image         string            `json:"image"`
	GPUType       string            `json:"gpu_type"`
	Runtime       int               `json:"runtime"`
	Region        *string           `json:"region,omitempty"`
	Command       *string           `json:"command,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	Ports         map[string]int    `json:"ports,omitempty"`
	Auth          bool              `json:"auth,omitempty"`
	Interruptible bool              `json:"interruptible"`
}

// Job is the provider's view of a job
type Job struct {
	JobID    string `json:"job_id"`
	State    string `json:"state"`
	Hostname string `json:"hostname"`
}

// GPUMetrics is per-GPU telemetry
type GPUMetrics struct {
	Index       int     `json:"index"`
	Name        string  `json:"name"`
	Utilization float64 `json:"utilization"`
	MemoryUsed  int64   `json:"memory_used"`
	MemoryTotal int64   `json:"memory_total"`
	Temperature float64 `json:"temperature"`
	PowerDraw   float64 `json:"power_draw"`
}

// SystemMetrics is host-level telemetry
type SystemMetrics struct {
	CPUPercent  float64 `json:"cpu_percent"`
	MemoryUsed  int64   `json:"memory_used"`
	MemoryLimit int64   `json:"memory_limit"`
}

// Metrics is the full telemetry snapshot for a job
type Metrics struct {
	GPUs   []GPUMetrics   `json:"gpus"`
	System *SystemMetrics `json:"system,omitempty"`
}

// PriceTier is one pricing tier for a GPU offer
type PriceTier struct {
	OnDemand      *float64 `json:"on_demand,omitempty"`
	Interruptible *float64 `json:"interruptible,omitempty"`
}

// GPUOffer is one entry of the provider's price table
type GPUOffer struct {
	GPUType  string      `json:"gpu_type"`
	GPUCount int         `json:"gpu_count"`
	Tiers    []PriceTier `json:"tiers"`
}

// CreateJob asks the provider to provision a job
func (c *Client) CreateJob(ctx context.Context, req *CreateJobRequest) (*Job, error) {
	ctx, cancel := context.WithTimeout(ctx, c.createTimeout)
	defer cancel()

	var job Job
	if err := c.do(ctx, http.MethodPost, "/jobs", req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob fetches a job's current state
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	var job Job
	if err := c.do(ctx, http.MethodGet, "/jobs/"+jobID, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Logs fetches a job's log output
func (c *Client) Logs(ctx context.Context, jobID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	var out struct {
		Logs string `json:"logs"`
	}
	if err := c.do(ctx, http.MethodGet, "/jobs/"+jobID+"/logs", nil, &out); err != nil {
		return "", err
	}
	return out.Logs, nil
}

// Metrics fetches a job's telemetry snapshot
func (c *Client) Metrics(ctx context.Context, jobID string) (*Metrics, error) {
	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	var m Metrics
	if err := c.do(ctx, http.MethodGet, "/jobs/"+jobID+"/metrics", nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Pricing fetches the provider's current GPU price table
func (c *Client) Pricing(ctx context.Context) ([]GPUOffer, error) {
	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	var out struct {
		Offers []GPUOffer `json:"offers"`
	}
	if err := c.do(ctx, http.MethodGet, "/pricing", nil, &out); err != nil {
		return nil, err
	}
	return out.Offers, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("compute provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPError{StatusCode: resp.StatusCode, URL: c.baseURL + path, Body: string(raw)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}
