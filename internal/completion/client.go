package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Hanishchow/Biocore-agent/config"
	"github.com/Hanishchow/Biocore-agent/internal/metrics"
	"github.com/Hanishchow/Biocore-agent/internal/parsing"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []Message `json:"messages"`
}

type ChatCompletionResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type Client struct {
	cfg    config.CompletionConfig
	client *http.Client
	log    *zap.Logger
}

func NewClient(cfg config.CompletionConfig, log *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log.Named("completion"),
	}
}

// Model is the model identifier requests are sent to.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Complete sends the payload with the analysis protocol and returns the
// first choice's text. Every failure is one of TransportError, StatusError
// or MalformedResponseError.
func (c *Client) Complete(ctx context.Context, payload parsing.AnalysisPayload) (string, error) {
	payloadJSON, err := payload.IndentJSON()
	if err != nil {
		return "", fmt.Errorf("render payload: %w", err)
	}

	reqBody := ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Messages: []Message{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: UserMessage(payloadJSON)},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	c.log.Info("calling completion service", zap.String("model", c.cfg.Model), zap.Int("payload_bytes", len(payloadJSON)))

	start := time.Now()
	text, err := c.do(req)
	metrics.CompletionDuration.WithLabelValues(metrics.Outcome(err == nil)).Observe(time.Since(start).Seconds())
	if err != nil {
		c.log.Error("completion failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return "", err
	}

	c.log.Info("completion received", zap.Duration("elapsed", time.Since(start)), zap.Int("report_bytes", len(text)))
	return text, nil
}

func (c *Client) do(req *http.Request) (string, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.log.Debug("error closing completion response body", zap.Error(err))
		}
	}(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var completionResp ChatCompletionResponse
	if err := json.Unmarshal(body, &completionResp); err != nil {
		return "", &MalformedResponseError{Reason: err.Error(), Body: string(body)}
	}
	if len(completionResp.Choices) == 0 {
		return "", &MalformedResponseError{Reason: "no choices returned", Body: string(body)}
	}
	msg := completionResp.Choices[0].Message
	if msg == nil || msg.Content == nil {
		return "", &MalformedResponseError{Reason: "first choice has no message content", Body: string(body)}
	}

	return *msg.Content, nil
}
