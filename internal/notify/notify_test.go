package notify_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewhitmore/gpubill/internal/notify"
)

func TestNotifier_SendDelivers(t *testing.T) {
	received := make(chan notify.Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))

		var event notify.Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&event))
		received <- event
	}))
	defer srv.Close()

	n := notify.New(srv.URL, "secret", nil)
	n.Send(notify.CategoryBilling, notify.SeverityInfo, "job launched", map[string]interface{}{
		"debit_id": "deb_123",
	})

	select {
	case event := <-received:
		assert.Equal(t, notify.CategoryBilling, event.Category)
		assert.Equal(t, notify.SeverityInfo, event.Severity)
		assert.Equal(t, "job launched", event.Message)
		assert.NotEmpty(t, event.ID)
		assert.Equal(t, "deb_123", event.Meta["debit_id"])
	case <-time.After(3 * time.Second):
		t.Fatal("notification never delivered")
	}
}

func TestNotifier_UnconfiguredIsNoop(t *testing.T) {
	// Must not panic or block
	n := notify.New("", "", nil)
	n.Send(notify.CategorySystem, notify.SeverityError, "ignored", nil)
}

func TestNotifier_DeliveryFailureDoesNotPropagate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	// Send never returns an error; failures only surface in logs
	n := notify.New(srv.URL, "", nil)
	n.Send(notify.CategoryJobs, notify.SeverityWarning, "something", nil)
	time.Sleep(100 * time.Millisecond)
}
