package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"folio/internal/logger"
)

// OpenAIChatEngine drives an OpenAI-compatible chat completions endpoint
// (/v1/chat/completions) as the reasoning engine. Works against OpenAI,
// DeepSeek, Grok and similar backends.
type OpenAIChatEngine struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	MaxHistory int

	httpClient *http.Client
}

func NewOpenAIChatEngine(baseURL, apiKey, model string, timeout time.Duration, maxRetries, maxHistory int) *OpenAIChatEngine {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIChatEngine{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Model:      model,
		Timeout:    timeout,
		MaxRetries: maxRetries,
		MaxHistory: maxHistory,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (e *OpenAIChatEngine) NextAction(ctx context.Context, req Request) (NextAction, error) {
	userPrompt := buildUserPrompt(req, e.MaxHistory)
	raw, err := e.call(ctx, systemPrompt, userPrompt)
	if err != nil {
		return NextAction{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	logger.LogLLMResponse("next-action", raw)
	return ParseAction(raw)
}

func (e *OpenAIChatEngine) call(ctx context.Context, system, user string) (string, error) {
	maxRetries := e.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	// Normalize the base URL so a configured ".../chat/completions" does not
	// produce a doubled path.
	url := e.BaseURL
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	url = strings.TrimRight(url, "/")
	url = strings.TrimSuffix(url, "/chat/completions")
	url = url + "/chat/completions"

	messages := []map[string]string{
		{"role": "system", "content": system},
		{"role": "user", "content": user},
	}
	body := map[string]any{"model": e.Model, "messages": messages, "temperature": 0.1}
	b, _ := json.Marshal(body)
	logger.LogLLMRequest("next-action", system, user, string(b))

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		if e.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+e.APIKey)
		}

		resp, err := e.httpClient.Do(req)
		if err != nil {
			return "", err
		}
		if resp.StatusCode/100 == 2 {
			var r struct {
				Choices []struct {
					Message struct {
						Content string `json:"content"`
					} `json:"message"`
				} `json:"choices"`
			}
			derr := json.NewDecoder(resp.Body).Decode(&r)
			resp.Body.Close()
			if derr != nil {
				return "", derr
			}
			if len(r.Choices) == 0 {
				return "", fmt.Errorf("empty choices")
			}
			return strings.TrimSpace(r.Choices[0].Message.Content), nil
		}

		var eresp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&eresp)
		resp.Body.Close()
		msg := strings.TrimSpace(eresp.Error.Message)
		if msg == "" {
			msg = resp.Status
		}
		lastErr = fmt.Errorf("status=%d: %s", resp.StatusCode, msg)

		if retriable(resp.StatusCode) && attempt < maxRetries {
			wait := retryAfter(resp)
			if wait == 0 {
				wait = (800 * time.Millisecond) << attempt
				if wait > 8*time.Second {
					wait = 8 * time.Second
				}
			}
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		break
	}
	return "", lastErr
}

func retriable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func retryAfter(resp *http.Response) time.Duration {
	ra := resp.Header.Get("Retry-After")
	if ra == "" {
		return 0
	}
	secs, err := strconv.Atoi(ra)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
