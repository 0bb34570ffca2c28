package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"booklens/internal/metrics"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama3-8b-8192"
)

// ErrProviderCall wraps every failure talking to the completion provider.
var ErrProviderCall = errors.New("provider call failed")

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration // bounds Complete and the wait for stream headers
	HTTPClient *http.Client  // Optional (tests)
	Metrics    *metrics.Metrics
}

// Client talks to an OpenAI-compatible chat completion endpoint. It does not
// retry; failures surface to the caller.
type Client struct {
	sdk          openai.Client
	streamClient *http.Client
	apiKey       string
	baseURL      string
	model        string
	metrics      *metrics.Metrics
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	httpClient := cfg.HTTPClient
	streamClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}

		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = cfg.Timeout
		streamClient = &http.Client{Transport: transport}
	}

	sdk := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)

	return &Client{
		sdk:          sdk,
		streamClient: streamClient,
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		model:        cfg.Model,
		metrics:      cfg.Metrics,
	}
}

// Complete sends prompt with the system instruction and returns the text of
// the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.sdk.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemInstruction),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		c.metrics.IncProviderCall("complete", "error")
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%w: status %d: %w", ErrProviderCall, apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("%w: %w", ErrProviderCall, err)
	}
	if len(resp.Choices) == 0 {
		c.metrics.IncProviderCall("complete", "error")
		return "", fmt.Errorf("%w: empty choices", ErrProviderCall)
	}
	c.metrics.IncProviderCall("complete", "ok")
	return resp.Choices[0].Message.Content, nil
}

// Analyze runs one named analysis over text.
func (c *Client) Analyze(ctx context.Context, kind Kind, text string) (string, error) {
	return c.Complete(ctx, kind.Prompt(text))
}

// SummarizeChunk condenses one chunk of a book.
func (c *Client) SummarizeChunk(ctx context.Context, text string) (string, error) {
	return c.Complete(ctx, ChunkSummaryPrompt(text))
}

// AnalyzeStream runs one named analysis and returns the raw event stream.
func (c *Client) AnalyzeStream(ctx context.Context, kind Kind, text string) (io.ReadCloser, error) {
	return c.Stream(ctx, kind.Prompt(text))
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// Stream requests a streamed completion and returns the provider's
// server-sent event body unparsed. The caller must close it.
func (c *Client) Stream(ctx context.Context, prompt string) (io.ReadCloser, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemInstruction},
			{Role: "user", Content: prompt},
		},
		Stream: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %w", ErrProviderCall, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderCall, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		c.metrics.IncProviderCall("stream", "error")
		return nil, fmt.Errorf("%w: %w", ErrProviderCall, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.metrics.IncProviderCall("stream", "error")
		return nil, fmt.Errorf("%w: status %d: %s", ErrProviderCall, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	c.metrics.IncProviderCall("stream", "ok")
	return resp.Body, nil
}
