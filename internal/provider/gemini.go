package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// GeminiClient talks to a Gemini-style generateContent HTTP API.
// It implements Completer.
type GeminiClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewGemini creates a GeminiClient for the given endpoint, key, and model.
func NewGemini(baseURL, apiKey, model string) *GeminiClient {
	return &GeminiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 0,
		},
	}
}

// generatePart is one part of a content entry: text or inline image data.
type generatePart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

// generateRequest is the JSON body for POST :generateContent.
type generateRequest struct {
	Contents         []generateContent `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

// generateResponse mirrors the JSON returned by generateContent.
type generateResponse struct {
	Candidates []struct {
		Content generateContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Complete sends the prompt (plus optional inline image) and returns the
// first candidate's text along with reported token usage.
func (c *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	parts := []generatePart{{Text: req.Prompt}}
	if len(req.Image) > 0 {
		parts = append(parts, generatePart{
			InlineData: &inlineData{
				MIMEType: "image/png",
				Data:     base64.StdEncoding.EncodeToString(req.Image),
			},
		})
	}

	body, err := json.Marshal(generateRequest{
		Contents: []generateContent{{Parts: parts}},
		GenerationConfig: &generationConfig{
			Temperature:     0.7,
			MaxOutputTokens: 8192,
		},
	})
	if err != nil {
		return Completion{}, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Completion{}, fmt.Errorf("creating completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Completion{}, fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Completion{}, fmt.Errorf("completion: unexpected status %d", resp.StatusCode)
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Completion{}, fmt.Errorf("decoding completion response: %w", err)
	}

	if len(result.Candidates) == 0 {
		return Completion{}, fmt.Errorf("completion: no candidates in response")
	}

	var sb strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}

	return Completion{
		Text:   sb.String(),
		Tokens: result.UsageMetadata.TotalTokenCount,
	}, nil
}
