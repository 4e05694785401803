package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/prometric-ai/prometric/internal/domain"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.AdaEmbeddingV2
	// DefaultEmbeddingDimensions is the expected dimension of embeddings from ada-002
	DefaultEmbeddingDimensions = 1536

	defaultRequestTimeout = 30 * time.Second
	maxAttempts           = 2
	initialBackoff        = 500 * time.Millisecond
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has unexpected dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoAPIKey is returned when the OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
)

// ChatMessage is one turn handed to the generation capability.
type ChatMessage struct {
	Role    string
	Content string
}

// ToolSpec describes a named tool the model may request, with a JSON-schema
// parameter contract.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ToolCallRequest is a structured tool invocation requested by the model.
type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// GenerationRequest is the input to the generation port.
type GenerationRequest struct {
	Model    string
	Messages []ChatMessage
	Tools    []ToolSpec
}

// GenerationResult is the output of the generation port.
type GenerationResult struct {
	Text      string
	ToolCalls []ToolCallRequest
	Model     string
	Tokens    int
}

// api is the slice of the OpenAI SDK the client depends on, kept narrow for testing.
type api interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config holds client configuration.
type Config struct {
	APIKey              string
	EmbeddingModel      string
	EmbeddingDimensions int
	RequestTimeout      time.Duration
	RatePerSecond       float64
}

// Client adapts the OpenAI SDK into the embedding and generation ports.
// Every call gets a per-request timeout, a client-side rate limit, and a
// bounded retry with exponential backoff. Core services never import the
// vendor SDK; they consume this adapter through small interfaces.
type Client struct {
	api        api
	model      openai.EmbeddingModel
	dimensions int
	timeout    time.Duration
	limiter    *rate.Limiter
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	model := openai.EmbeddingModel(cfg.EmbeddingModel)
	if model == "" {
		model = DefaultEmbeddingModel
	}
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 5
	}
	return &Client{
		api:        openai.NewClient(cfg.APIKey),
		model:      model,
		dimensions: dimensions,
		timeout:    timeout,
		limiter:    rate.NewLimiter(rate.Limit(perSecond), int(perSecond)+1),
	}
}

// NewClientFromEnv creates a new OpenAI client using the OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// Embed generates an embedding for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for a batch of texts, preserving order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyText
	}
	for _, t := range texts {
		if t == "" {
			return nil, ErrEmptyText
		}
	}

	var resp openai.EmbeddingResponse
	err := c.withRetry(ctx, func(callCtx context.Context) error {
		var callErr error
		resp, callErr = c.api.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
			Input: texts,
			Model: c.model,
		})
		return callErr
	})
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeExternalService, "embedding request failed", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeExternalService, "embedding request failed",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeExternalService, "embedding request failed",
				fmt.Errorf("embedding index %d out of range", d.Index))
		}
		if len(d.Embedding) != c.dimensions {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, c.dimensions, len(d.Embedding))
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// Generate invokes the chat completion capability, optionally exposing tools.
func (c *Client) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	if len(req.Messages) == 0 {
		return nil, ErrEmptyText
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		chatReq.Messages = append(chatReq.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	for _, t := range req.Tools {
		chatReq.Tools = append(chatReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	var resp openai.ChatCompletionResponse
	err := c.withRetry(ctx, func(callCtx context.Context) error {
		var callErr error
		resp, callErr = c.api.CreateChatCompletion(callCtx, chatReq)
		return callErr
	})
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeExternalService, "generation request failed", err)
	}

	if len(resp.Choices) == 0 {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeExternalService, "generation request failed",
			errors.New("no completion choices returned"))
	}

	choice := resp.Choices[0]
	result := &GenerationResult{
		Text:   choice.Message.Content,
		Model:  resp.Model,
		Tokens: resp.Usage.TotalTokens,
	}
	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCallRequest{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return result, nil
}

// withRetry runs fn with rate limiting, a per-attempt timeout, and exponential
// backoff between attempts. Context cancellation stops retrying immediately.
func (c *Client) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return lastErr
}
