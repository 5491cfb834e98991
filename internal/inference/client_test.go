package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sipeed/picobridge/internal/conversation"
)

func TestChatWithToolsReturnsContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": "hello there"}, "finish_reason": "stop"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, NewAPIKey("test-key"))
	resp, err := c.ChatWithTools(context.Background(), []conversation.Message{conversation.UserMessage("hi")}, "test-model", 0.7, 256, nil)
	if err != nil {
		t.Fatalf("ChatWithTools error: %v", err)
	}
	if resp.Content != "hello there" {
		t.Fatalf("expected content %q, got %q", "hello there", resp.Content)
	}
}

func TestChatWithToolsEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []map[string]interface{}{}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, NewAPIKey(""))
	_, err := c.ChatWithTools(context.Background(), nil, "m", 0, 0, nil)
	var ierr *Error
	if err == nil {
		t.Fatal("expected error")
	}
	if !asInferenceError(err, &ierr) || ierr.Kind != KindEmptyResponse {
		t.Fatalf("expected KindEmptyResponse, got %v", err)
	}
}

func TestChatWithToolsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, NewAPIKey("bad-key"))
	_, err := c.ChatWithTools(context.Background(), nil, "m", 0, 0, nil)
	var ierr *Error
	if !asInferenceError(err, &ierr) || ierr.Kind != KindUnauthorized {
		t.Fatalf("expected KindUnauthorized, got %v", err)
	}
}

func TestAPIKeyNeverAppearsInLogString(t *testing.T) {
	k := NewAPIKey("super-secret-value")
	if k.String() == "super-secret-value" {
		t.Fatal("API key string representation leaked the raw secret")
	}
}

func asInferenceError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
