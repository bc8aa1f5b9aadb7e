package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaConfig configures the Ollama adapter.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

type (
	ollamaRequest struct {
		Model   string         `json:"model"`
		System  string         `json:"system,omitempty"`
		Prompt  string         `json:"prompt"`
		Stream  bool           `json:"stream"`
		Format  string         `json:"format,omitempty"`
		Options *ollamaOptions `json:"options,omitempty"`
	}

	ollamaOptions struct {
		NumPredict  int     `json:"num_predict,omitempty"`
		Temperature float64 `json:"temperature"`
	}

	ollamaResponse struct {
		Model    string `json:"model"`
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
)

// Ollama asks a local Ollama server through its /api/generate endpoint.
type Ollama struct {
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

func NewOllama(cfg OllamaConfig, client *http.Client) *Ollama {
	if client == nil {
		client = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Ollama{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		timeout:    timeout,
		httpClient: client,
	}
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) Suggest(ctx context.Context, req Request) (Response, error) {
	prompt, err := RenderPrompt(req)
	if err != nil {
		return Response{}, err
	}
	payload, err := json.Marshal(ollamaRequest{
		Model:   o.model,
		System:  systemPrompt,
		Prompt:  prompt,
		Stream:  false,
		Format:  "json",
		Options: &ollamaOptions{NumPredict: 1024, Temperature: 0.2},
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal ollama request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("build ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	raw, err := o.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, upstreamErr(o.Name(), err)
	}
	defer raw.Body.Close()

	if raw.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(raw.Body, 4096))
		return Response{}, upstreamErr(o.Name(), fmt.Errorf("status %d - %s", raw.StatusCode, strings.TrimSpace(string(body))))
	}

	var resp ollamaResponse
	if err := json.NewDecoder(raw.Body).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("%w: decode ollama envelope: %v", ErrMalformedResponse, err)
	}
	return ParseSuggestions(resp.Response)
}
