package gateway

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/ultrai-run/ultrai/pkg/config"
)

// Client is the LLM Gateway Client (spec section 4.2): a single
// OpenAI-compatible chat-completions endpoint reached through a
// go-openai client whose transport injects OpenRouter attribution
// headers, generalizing the reference model-gateway's
// openai.NewClientWithConfig setup to the scheduler's per-call
// retry/timeout contract.
type Client struct {
	oai         *openai.Client
	readTimeout time.Duration
}

// NewClient builds a Client from gateway configuration. The API key is
// read from the environment variable named by cfg.APIKeyEnv.
func NewClient(cfg *config.GatewayConfig) *Client {
	apiKey := os.Getenv(cfg.APIKeyEnv)

	inner := http.DefaultTransport.(*http.Transport).Clone()
	inner.DialContext = (&net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}).DialContext
	inner.TLSHandshakeTimeout = cfg.ConnectTimeout
	transport := newAttributionTransport(os.Getenv(cfg.SiteURLEnv), os.Getenv(cfg.SiteNameEnv)).(*attributionTransport)
	transport.inner = inner

	oaiCfg := openai.DefaultConfig(apiKey)
	oaiCfg.BaseURL = cfg.BaseURL
	oaiCfg.HTTPClient = &http.Client{Transport: transport}

	return &Client{oai: openai.NewClientWithConfig(oaiCfg), readTimeout: cfg.ReadTimeout}
}

// Call performs a single POST to the upstream chat-completions endpoint,
// applying the section 4.2 retry policy: one retry on connect failure or
// 5xx with capped exponential backoff, one retry on 429, no retry on any
// other 4xx. The timeout budget applies to each individual attempt.
func (c *Client) Call(ctx context.Context, model string, messages []Message, timeout time.Duration) (*CallResult, error) {
	callID := uuid.New().String()
	log := slog.With("model", model, "call_id", callID)

	req := toRequest(model, messages)

	result, err := c.attempt(ctx, req, timeout)
	if err == nil {
		return result, nil
	}

	if !retryable(err) {
		return nil, err
	}

	delay := backoffDelay(0)
	log.Debug("gateway call failed, retrying", "error", err, "delay", delay)
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return nil, newCallError(model, ErrTimeout, ctx.Err())
	}

	return c.attempt(ctx, req, timeout)
}

func toRequest(model string, messages []Message) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return openai.ChatCompletionRequest{Model: model, Messages: msgs}
}

func (c *Client) attempt(ctx context.Context, req openai.ChatCompletionRequest, timeout time.Duration) (*CallResult, error) {
	if timeout <= 0 {
		timeout = c.readTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.oai.CreateChatCompletion(callCtx, req)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, newCallError(req.Model, ErrTimeout, err)
		}
		return nil, newCallError(req.Model, classify(err), err)
	}

	if len(resp.Choices) == 0 {
		return nil, newCallError(req.Model, ErrUpstreamError, errors.New("empty choices"))
	}

	choice := resp.Choices[0]
	if string(choice.FinishReason) == "error" {
		return nil, newCallError(req.Model, ErrMidStreamError, errors.New("finish_reason=error"))
	}

	return &CallResult{
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Ms:           elapsed,
	}, nil
}

// classify maps a go-openai error into the section 4.2 failure taxonomy.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden:
			return ErrAuthError
		case apiErr.HTTPStatusCode == http.StatusPaymentRequired:
			return ErrPaymentRequired
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return ErrRateLimited
		case apiErr.HTTPStatusCode >= 500:
			return ErrUpstreamError
		case apiErr.HTTPStatusCode >= 400:
			return ErrUpstreamError
		}
	}
	return ErrTransport
}

// retryable reports whether the classified error warrants the single
// retry the client performs itself (connect failures, 5xx, and 429).
// AuthError, PaymentRequired, and other 4xx are not retried here; the
// caller (scheduler) decides whether to fall back.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 &&
		apiErr.HTTPStatusCode != http.StatusTooManyRequests {
		return false
	}
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrUpstreamError) || errors.Is(err, ErrRateLimited)
}

func backoffDelay(attempt int) time.Duration {
	base := 200 * time.Millisecond
	capped := 2 * time.Second
	d := time.Duration(math.Pow(2, float64(attempt))) * base
	if d > capped {
		return capped
	}
	return d
}

// ListModels fetches the upstream model catalog, returning the set of
// model IDs currently reported. Used by the Readiness Prober.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	list, err := c.oai.ListModels(ctx)
	if err != nil {
		return nil, newCallError("", classify(err), err)
	}

	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}
