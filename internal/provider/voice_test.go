package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVoice_Synthesize(t *testing.T) {
	var gotReq ttsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/tts" {
			t.Errorf("unexpected path: %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]string{
			"audio": base64.StdEncoding.EncodeToString([]byte("pcm-bytes")),
		})
	}))
	defer srv.Close()

	c := NewVoiceClient(srv.URL)
	audio, err := c.Synthesize(context.Background(), "hello world", "English-US.Female-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(audio) != "pcm-bytes" {
		t.Fatalf("unexpected audio: %q", audio)
	}
	if gotReq.Text != "hello world" || gotReq.Voice != "English-US.Female-1" {
		t.Fatalf("unexpected tts request: %+v", gotReq)
	}
}

func TestVoice_SynthesizeDegradesToSilence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "tts backend down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewVoiceClient(srv.URL)
	audio, err := c.Synthesize(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("synthesis must degrade, not fail: %v", err)
	}
	if len(audio) != len(SilentAudio("hello")) {
		t.Fatalf("expected silent placeholder of %d bytes, got %d", len(SilentAudio("hello")), len(audio))
	}
	for _, b := range audio {
		if b != 0 {
			t.Fatal("placeholder audio must be silent")
		}
	}
}

func TestVoice_Transcribe(t *testing.T) {
	var gotReq asrRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/asr" {
			t.Errorf("unexpected path: %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]string{"text": "generate code for a parser"})
	}))
	defer srv.Close()

	c := NewVoiceClient(srv.URL)
	text, err := c.Transcribe(context.Background(), []byte("raw-audio"), "en-US")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "generate code for a parser" {
		t.Fatalf("unexpected transcript: %q", text)
	}

	decoded, err := base64.StdEncoding.DecodeString(gotReq.Audio)
	if err != nil || string(decoded) != "raw-audio" {
		t.Fatalf("audio payload mismatch: %q (%v)", gotReq.Audio, err)
	}
	if gotReq.Language != "en-US" {
		t.Fatalf("unexpected language: %q", gotReq.Language)
	}
}

func TestVoice_TranscribeErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "asr backend down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewVoiceClient(srv.URL)
	if _, err := c.Transcribe(context.Background(), []byte("audio"), ""); err == nil {
		t.Fatal("expected recognition failure to surface")
	}
}
