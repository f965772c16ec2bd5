package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bhai-cabal/tracker/internal/activity"
)

func newStubCompletionServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		response := map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{
						"role":    "assistant",
						"content": content,
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			t.Errorf("failed to encode response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestGateway(t *testing.T, baseURL string) *OpenAIGateway {
	t.Helper()
	gateway, err := NewOpenAIGateway(GatewayConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
	})
	if err != nil {
		t.Fatalf("failed to build gateway: %v", err)
	}
	return gateway
}

func TestClassifyAcceptsPrefixedVerdict(t *testing.T) {
	server := newStubCompletionServer(t, "GYM PIC: Strong set, keep going.", http.StatusOK)
	gateway := newTestGateway(t, server.URL+"/v1")

	verdict, err := gateway.Classify(context.Background(), activity.CategoryGym, []byte{0xff}, "Alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !verdict.Valid {
		t.Fatalf("expected a valid verdict")
	}
	if !strings.Contains(verdict.Feedback, "Alice") {
		t.Fatalf("expected feedback to address the member, got %q", verdict.Feedback)
	}
	if !strings.Contains(verdict.Feedback, "Strong set, keep going.") {
		t.Fatalf("expected the model's comment in the feedback, got %q", verdict.Feedback)
	}
}

func TestClassifyRejectsNonMatchingPrefix(t *testing.T) {
	server := newStubCompletionServer(t, "NOT GYM: That is a sandwich.", http.StatusOK)
	gateway := newTestGateway(t, server.URL+"/v1")

	verdict, err := gateway.Classify(context.Background(), activity.CategoryGym, []byte{0xff}, "Alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.Valid {
		t.Fatalf("expected an invalid verdict")
	}
	if !strings.Contains(verdict.Feedback, "That is a sandwich.") {
		t.Fatalf("expected the model's comment in the feedback, got %q", verdict.Feedback)
	}
}

func TestClassifyMapsServerErrorToFailure(t *testing.T) {
	server := newStubCompletionServer(t, "", http.StatusInternalServerError)
	gateway := newTestGateway(t, server.URL+"/v1")

	if _, err := gateway.Classify(context.Background(), activity.CategoryShipping, []byte{0xff}, "Alice"); err == nil {
		t.Fatalf("expected an error for a failing upstream")
	}
}

func TestClassifyRejectsEmptyImage(t *testing.T) {
	gateway := newTestGateway(t, "http://127.0.0.1:0/v1")

	if _, err := gateway.Classify(context.Background(), activity.CategoryGym, nil, "Alice"); err == nil {
		t.Fatalf("expected an error for an empty image payload")
	}
}

func TestParseVerdict(t *testing.T) {
	profile := profiles[activity.CategoryMindfulness]

	tests := []struct {
		name      string
		answer    string
		wantValid bool
		wantErr   bool
	}{
		{name: "accepted", answer: "ZEN PIC: A serene posture.", wantValid: true},
		{name: "accepted-lowercase", answer: "zen pic: calm indeed", wantValid: true},
		{name: "rejected", answer: "NOT ZEN: This is a laptop.", wantValid: false},
		{name: "empty", answer: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := parseVerdict(profile, tt.answer, "Alice")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if verdict.Valid != tt.wantValid {
				t.Fatalf("valid mismatch, want %v got %v", tt.wantValid, verdict.Valid)
			}
			if verdict.Feedback == "" {
				t.Fatalf("expected non-empty feedback")
			}
		})
	}
}

func TestNewOpenAIGatewayRequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAIGateway(GatewayConfig{}); err == nil {
		t.Fatalf("expected an error without an api key")
	}
}
