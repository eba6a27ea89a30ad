package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ca-risken/common/pkg/logging"
)

func TestNotifyProgress(t *testing.T) {
	var got envelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("Invalid body: %+v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(&Config{WebhookURL: srv.URL, Timeout: 5}, logging.NewLogger())
	n.NotifyProgress(context.Background(), &ProgressEvent{
		SessionID:       "s-1",
		RepositoryID:    1001,
		FilesAnalyzed:   3,
		TotalFiles:      12,
		PercentComplete: 25,
	})
	if got.Event != "analysis.progress" {
		t.Fatalf("Unexpected event: %s", got.Event)
	}
}

func TestNotifyFailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewNotifier(&Config{WebhookURL: srv.URL, Timeout: 5}, logging.NewLogger())
	// must not panic or return an error surface
	n.NotifyCompletion(context.Background(), &CompletionEvent{SessionID: "s-1", Status: "failed"})
}

func TestNewNotifierWithoutURL(t *testing.T) {
	n := NewNotifier(&Config{}, logging.NewLogger())
	if _, ok := n.(*nopNotifier); !ok {
		t.Fatalf("Expected nop notifier, got %T", n)
	}
}
