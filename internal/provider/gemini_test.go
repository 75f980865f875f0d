package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGemini_Complete(t *testing.T) {
	var gotPath, gotKey string
	var gotBody generateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{
					{"text": "part one "},
					{"text": "part two"},
				}}},
			},
			"usageMetadata": map[string]any{"totalTokenCount": 17},
		})
	}))
	defer srv.Close()

	c := NewGemini(srv.URL, "test-key", "gemini-1.5-pro")
	completion, err := c.Complete(context.Background(), CompletionRequest{Prompt: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/v1beta/models/gemini-1.5-pro:generateContent" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Fatalf("unexpected api key header: %q", gotKey)
	}
	if len(gotBody.Contents) != 1 || gotBody.Contents[0].Parts[0].Text != "hello" {
		t.Fatalf("unexpected request body: %+v", gotBody)
	}
	if completion.Text != "part one part two" {
		t.Fatalf("candidate parts must concatenate, got %q", completion.Text)
	}
	if completion.Tokens != 17 {
		t.Fatalf("expected reported token count 17, got %d", completion.Tokens)
	}
}

func TestGemini_CompleteWithImage(t *testing.T) {
	var gotBody generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "a cat"}}}},
			},
		})
	}))
	defer srv.Close()

	c := NewGemini(srv.URL, "k", "m")
	_, err := c.Complete(context.Background(), CompletionRequest{
		Prompt: "what is this",
		Image:  []byte{0x89, 0x50, 0x4e, 0x47},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parts := gotBody.Contents[0].Parts
	if len(parts) != 2 || parts[1].InlineData == nil {
		t.Fatalf("expected inline image part, got %+v", parts)
	}
	if parts[1].InlineData.MIMEType != "image/png" {
		t.Fatalf("unexpected mime type: %q", parts[1].InlineData.MIMEType)
	}
}

func TestGemini_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewGemini(srv.URL, "k", "m")
	if _, err := c.Complete(context.Background(), CompletionRequest{Prompt: "hi"}); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

func TestGemini_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer srv.Close()

	c := NewGemini(srv.URL, "k", "m")
	if _, err := c.Complete(context.Background(), CompletionRequest{Prompt: "hi"}); err == nil {
		t.Fatal("expected error on empty candidates")
	}
}
