package reconcile

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewhitmore/gpubill/internal/compute"
	"github.com/ewhitmore/gpubill/internal/notify"
	"github.com/ewhitmore/gpubill/pkg/types"
)

type fakeLister struct {
	debits []*types.Debit
	err    error
}

func (f *fakeLister) ListOpen(ctx context.Context, at time.Time, limit int) ([]*types.Debit, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.debits) > limit {
		return f.debits[:limit], nil
	}
	return f.debits, nil
}

type fakeGetter struct {
	jobs map[string]*compute.Job
	errs map[string]error
}

func (f *fakeGetter) GetJob(ctx context.Context, jobID string) (*compute.Job, error) {
	if err, ok := f.errs[jobID]; ok {
		return nil, err
	}
	if job, ok := f.jobs[jobID]; ok {
		return job, nil
	}
	return nil, &compute.HTTPError{StatusCode: http.StatusNotFound}
}

type sentEvent struct {
	category notify.Category
	severity notify.Severity
	message  string
	meta     map[string]interface{}
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (f *fakeNotifier) Send(category notify.Category, severity notify.Severity, message string, meta map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{category, severity, message, meta})
}

func (f *fakeNotifier) sent() []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEvent(nil), f.events...)
}

func openDebit(id, jobID string) *types.Debit {
	return &types.Debit{
		ID:              id,
		UserAddress:     "0zk1q2v7nd2exampleaddress",
		ProviderJobID:   jobID,
		GPUType:         "RTX_4090",
		DurationSeconds: 3600,
		CostSettlement:  0.02,
		CreatedAt:       time.Now().UTC(),
		Billed:          true,
	}
}

func TestReconcilerFlagsDeadJob(t *testing.T) {
	lister := &fakeLister{debits: []*types.Debit{openDebit("deb_1", "job-1")}}
	getter := &fakeGetter{jobs: map[string]*compute.Job{
		"job-1": {JobID: "job-1", State: "failed"},
	}}
	notifier := &fakeNotifier{}

	r := New(nil, lister, getter, notifier, nil)
	r.run(context.Background())

	events := notifier.sent()
	require.Len(t, events, 1)
	assert.Equal(t, notify.CategoryBilling, events[0].category)
	assert.Equal(t, notify.SeverityWarning, events[0].severity)
	assert.Equal(t, "deb_1", events[0].meta["debit_id"])
	assert.Equal(t, "failed", events[0].meta["state"])
}

func TestReconcilerFlagsMissingJob(t *testing.T) {
	lister := &fakeLister{debits: []*types.Debit{openDebit("deb_1", "job-gone")}}
	getter := &fakeGetter{}
	notifier := &fakeNotifier{}

	r := New(nil, lister, getter, notifier, nil)
	r.run(context.Background())

	events := notifier.sent()
	require.Len(t, events, 1)
	assert.Equal(t, "missing", events[0].meta["state"])
}

func TestReconcilerIgnoresRunningJob(t *testing.T) {
	lister := &fakeLister{debits: []*types.Debit{openDebit("deb_1", "job-1")}}
	getter := &fakeGetter{jobs: map[string]*compute.Job{
		"job-1": {JobID: "job-1", State: "running", Hostname: "gpu-7.example.net"},
	}}
	notifier := &fakeNotifier{}

	r := New(nil, lister, getter, notifier, nil)
	r.run(context.Background())

	assert.Empty(t, notifier.sent())
}

func TestReconcilerFlagsEachJobOnce(t *testing.T) {
	lister := &fakeLister{debits: []*types.Debit{openDebit("deb_1", "job-1")}}
	getter := &fakeGetter{jobs: map[string]*compute.Job{
		"job-1": {JobID: "job-1", State: "exited"},
	}}
	notifier := &fakeNotifier{}

	r := New(nil, lister, getter, notifier, nil)
	r.run(context.Background())
	r.run(context.Background())
	r.run(context.Background())

	assert.Len(t, notifier.sent(), 1)
}

func TestReconcilerDropsFlagsForClosedWindows(t *testing.T) {
	lister := &fakeLister{debits: []*types.Debit{openDebit("deb_1", "job-1")}}
	getter := &fakeGetter{jobs: map[string]*compute.Job{
		"job-1": {JobID: "job-1", State: "failed"},
	}}
	notifier := &fakeNotifier{}

	r := New(nil, lister, getter, notifier, nil)
	r.run(context.Background())
	require.Len(t, notifier.sent(), 1)

	// The window closes and the debit leaves the scan; its flag entry
	// must not be retained
	lister.debits = nil
	r.run(context.Background())
	assert.Empty(t, r.flagged)

	// Were it to reappear it would be treated as new
	lister.debits = []*types.Debit{openDebit("deb_1", "job-1")}
	r.run(context.Background())
	assert.Len(t, notifier.sent(), 2)
}

func TestReconcilerRetriesTransientProviderFailure(t *testing.T) {
	lister := &fakeLister{debits: []*types.Debit{openDebit("deb_1", "job-1")}}
	getter := &fakeGetter{errs: map[string]error{
		"job-1": &compute.HTTPError{StatusCode: http.StatusBadGateway},
	}}
	notifier := &fakeNotifier{}

	r := New(nil, lister, getter, notifier, nil)
	r.run(context.Background())

	// Not flagged, so a later run with the provider healthy checks again
	assert.Empty(t, notifier.sent())

	getter.errs = nil
	getter.jobs = map[string]*compute.Job{"job-1": {JobID: "job-1", State: "failed"}}
	r.run(context.Background())

	assert.Len(t, notifier.sent(), 1)
}

func TestReconcilerSurvivesListerFailure(t *testing.T) {
	lister := &fakeLister{err: errors.New("connection refused")}
	notifier := &fakeNotifier{}

	r := New(nil, lister, &fakeGetter{}, notifier, nil)
	r.run(context.Background())

	assert.Empty(t, notifier.sent())
}

func TestReconcilerStops(t *testing.T) {
	lister := &fakeLister{}
	r := New(&Config{CheckInterval: time.Hour, ScanLimit: 10}, lister, &fakeGetter{}, &fakeNotifier{}, nil)

	done := make(chan error, 1)
	go func() {
		done <- r.Start(context.Background())
	}()

	time.Sleep(50 * time.Millisecond)
	r.Stop()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("reconciler did not stop")
	}
}
