package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"context"
)

func TestReceiveSkipsMessagesWithoutText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"envelope": map[string]interface{}{"source": "+15550100", "timestamp": 1000}},
			{"envelope": map[string]interface{}{
				"source": "+15550101", "timestamp": 2000,
				"dataMessage": map[string]interface{}{"message": "hello"},
			}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	msgs, err := c.Receive(context.Background(), "+15550199")
	if err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Text != "hello" {
		t.Fatalf("expected 1 message with text, got %+v", msgs)
	}
}

func TestSendRetriesTransientFailure(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.Send(context.Background(), "+15550199", "+15550100", "hi", false)
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestSendPermanentFailureNotRetried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.Send(context.Background(), "+15550199", "+15550100", "hi", false)
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt for a permanent failure, got %d", attempts)
	}
}

func TestReceiverBackoffGrows(t *testing.T) {
	base := 100 * time.Millisecond
	if got := backoffFor(1, base); got != base {
		t.Fatalf("expected base backoff on first error, got %v", got)
	}
	if got := backoffFor(100, base); got != 30*base {
		t.Fatalf("expected capped backoff, got %v", got)
	}
}
