package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// OllamaClient streams chat completions from a local Ollama server over its
// newline-delimited JSON protocol.
type OllamaClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
	logger     *zap.Logger
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatChunk struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// NewOllamaClient builds a client for the given server and model. baseURL may
// carry a trailing slash.
func NewOllamaClient(baseURL, model string, logger *zap.Logger) *OllamaClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OllamaClient{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		logger:     logger,
	}
}

func (o *OllamaClient) Name() string { return "ollama" }

// ChatStream posts to /api/chat with streaming enabled and relays each chunk's
// message content to onFragment. Each response line is a standalone JSON
// object; the stream ends with a line whose done field is true.
func (o *OllamaClient) ChatStream(ctx context.Context, messages []Message, onFragment func(string) error) error {
	payload := ollamaChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   true,
		Options:  map[string]any{"temperature": 0.2},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("llm: marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("llm: build ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		o.logger.Warn("ollama unreachable", zap.String("base_url", o.baseURL), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Backend: o.Name(), Code: resp.StatusCode, Body: strings.TrimSpace(string(errBody))}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return fmt.Errorf("llm: parse ollama chunk: %w", err)
		}
		if chunk.Error != "" {
			return fmt.Errorf("llm: ollama stream error: %s", chunk.Error)
		}
		if chunk.Message.Content != "" {
			if err := onFragment(chunk.Message.Content); err != nil {
				return err
			}
		}
		if chunk.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("llm: read ollama stream: %w", err)
	}
	return nil
}

// Health checks that the server answers at all, using the cheap /api/tags
// listing endpoint.
func (o *OllamaClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Backend: o.Name(), Code: resp.StatusCode}
	}
	return nil
}
