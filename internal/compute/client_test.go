package compute_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewhitmore/gpubill/internal/compute"
)

func TestClient_CreateJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/jobs", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req compute.CreateJobRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "A100", req.GPUType)
		assert.True(t, req.Interruptible)

		json.NewEncoder(w).Encode(compute.Job{JobID: "c3-123", State: "pending"})
	}))
	defer srv.Close()

	client := compute.NewClient(srv.URL, "test-key")
	job, err := client.CreateJob(context.Background(), &compute.CreateJobRequest{
		Image:         "pytorch/pytorch:latest",
		GPUType:       "A100",
		Runtime:       3600,
		Interruptible: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "c3-123", job.JobID)
}

func TestClient_CreateJob_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"no capacity"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := compute.NewClient(srv.URL, "test-key")
	_, err := client.CreateJob(context.Background(), &compute.CreateJobRequest{GPUType: "A100"})
	require.Error(t, err)

	var httpErr *compute.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
}

func TestClient_GetJobAndLogs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/jobs/c3-123":
			json.NewEncoder(w).Encode(compute.Job{JobID: "c3-123", State: "running", Hostname: "gpu-7.example.net"})
		case "/jobs/c3-123/logs":
			json.NewEncoder(w).Encode(map[string]string{"logs": "step 1/3 done"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := compute.NewClient(srv.URL, "test-key")

	job, err := client.GetJob(context.Background(), "c3-123")
	require.NoError(t, err)
	assert.Equal(t, "running", job.State)
	assert.Equal(t, "gpu-7.example.net", job.Hostname)

	logs, err := client.Logs(context.Background(), "c3-123")
	require.NoError(t, err)
	assert.Equal(t, "step 1/3 done", logs)
}

func TestClient_Pricing(t *testing.T) {
	interruptible := 1.1
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pricing", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"offers": []compute.GPUOffer{
				{GPUType: "A100", GPUCount: 1, Tiers: []compute.PriceTier{{Interruptible: &interruptible}}},
			},
		})
	}))
	defer srv.Close()

	client := compute.NewClient(srv.URL, "test-key")
	offers, err := client.Pricing(context.Background())
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "A100", offers[0].GPUType)
	require.NotNil(t, offers[0].Tiers[0].Interruptible)
	assert.Equal(t, 1.1, *offers[0].Tiers[0].Interruptible)
}
