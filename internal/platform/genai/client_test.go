package genai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func newTestClient(url string) *Client {
	return NewClient(Config{APIURL: url, APIKey: "test-key", Model: "test-model"}, zerolog.Nop())
}

func TestClient_GenerateText(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Likely viral pharyngitis."}},
			},
		})
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL).GenerateText(context.Background(),
		"You are a clinical assistant.", "Sore throat, 2 days, no fever.")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if text != "Likely viral pharyngitis." {
		t.Errorf("unexpected text: %q", text)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("unexpected auth header: %q", gotAuth)
	}
	if gotReq.Model != "test-model" || len(gotReq.Messages) != 2 {
		t.Errorf("unexpected request: %+v", gotReq)
	}
	if gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Role != "user" {
		t.Errorf("unexpected roles: %+v", gotReq.Messages)
	}
}

func TestClient_GenerateJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("expected json_object response format, got %+v", req.ResponseFormat)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": `{"summary":"stable","urgency":"low"}`}},
			},
		})
	}))
	defer srv.Close()

	var out struct {
		Summary string `json:"summary"`
		Urgency string `json:"urgency"`
	}
	if err := newTestClient(srv.URL).GenerateJSON(context.Background(), "", "summarize", &out); err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if out.Summary != "stable" || out.Urgency != "low" {
		t.Errorf("unexpected output: %+v", out)
	}
}

func TestClient_UpstreamErrorsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GenerateText(context.Background(), "", "hi")
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
}

func TestClient_EmptyChoicesIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GenerateText(context.Background(), "", "hi")
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
}
