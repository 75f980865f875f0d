package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"
)

const silenceSampleRate = 22050

// VoiceClient talks to a Riva-style speech HTTP API. It implements Voice.
// Synthesis degrades to silent placeholder audio when the upstream fails,
// so a broken TTS backend never fails a dispatch that only wants audio as
// a bonus. Recognition failures are surfaced as errors.
type VoiceClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewVoiceClient creates a VoiceClient for the given speech service URL.
func NewVoiceClient(baseURL string) *VoiceClient {
	return &VoiceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 0,
		},
	}
}

// ttsRequest is the JSON body for POST /v1/tts.
type ttsRequest struct {
	Text       string `json:"text"`
	Voice      string `json:"voice,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

type ttsResponse struct {
	Audio string `json:"audio"` // base64 PCM
}

// Synthesize converts text to audio bytes. On upstream failure it returns
// silent placeholder audio instead of an error.
func (c *VoiceClient) Synthesize(ctx context.Context, text, voiceProfile string) ([]byte, error) {
	audio, err := c.synthesize(ctx, text, voiceProfile)
	if err != nil {
		slog.Warn("speech synthesis failed, using silent placeholder", "error", err)
		return SilentAudio(text), nil
	}
	return audio, nil
}

func (c *VoiceClient) synthesize(ctx context.Context, text, voiceProfile string) ([]byte, error) {
	body, err := json.Marshal(ttsRequest{
		Text:       text,
		Voice:      voiceProfile,
		SampleRate: silenceSampleRate,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts: unexpected status %d", resp.StatusCode)
	}

	var result ttsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding tts response: %w", err)
	}

	audio, err := base64.StdEncoding.DecodeString(result.Audio)
	if err != nil {
		return nil, fmt.Errorf("decoding tts audio: %w", err)
	}
	return audio, nil
}

// asrRequest is the JSON body for POST /v1/asr.
type asrRequest struct {
	Audio    string `json:"audio"` // base64
	Language string `json:"language,omitempty"`
}

type asrResponse struct {
	Text string `json:"text"`
}

// Transcribe converts audio bytes to text.
func (c *VoiceClient) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	body, err := json.Marshal(asrRequest{
		Audio:    base64.StdEncoding.EncodeToString(audio),
		Language: language,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/asr", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating asr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("asr request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("asr: unexpected status %d", resp.StatusCode)
	}

	var result asrResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding asr response: %w", err)
	}
	return result.Text, nil
}

// SilentAudio generates zeroed 16-bit PCM at 22050 Hz, roughly 100ms per
// character, sized to stand in for real synthesized speech.
func SilentAudio(text string) []byte {
	samples := utf8.RuneCountInString(text) * silenceSampleRate / 10
	if samples == 0 {
		samples = silenceSampleRate / 10
	}
	return make([]byte, samples*2)
}
