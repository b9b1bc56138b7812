package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nyxforge/concord/pkg/adapter"
	"github.com/nyxforge/concord/pkg/availcache"
	"github.com/nyxforge/concord/pkg/coreerr"
	"github.com/nyxforge/concord/pkg/log"
	"github.com/nyxforge/concord/pkg/retry"
)

// HTTPSpec describes one OpenAI-compatible HTTP backend.
type HTTPSpec struct {
	Name        string
	DisplayName string
	Icon        string
	Color       string
	BaseURL     string
	DefaultModel string
}

// HTTPAdapter implements pkg/adapter.Adapter over an OpenAI-compatible
// chat completions endpoint, using go-openai's client instead of the
// teacher's hand-rolled SSE scanner (pkg/client/openai_compat.go) for
// the wire protocol, while keeping the teacher's retry/backoff and
// structured-logging shape via pkg/retry and pkg/log.
type HTTPAdapter struct {
	spec    HTTPSpec
	cfg     adapter.Config
	apiKey  string
	client  *openai.Client
	cache   *availcache.Cache
	breaker *retry.Breaker
}

// NewHTTPAdapter builds an adapter for an OpenAI-compatible endpoint.
// apiKey may be empty for backends (e.g. local servers) that don't
// require one.
func NewHTTPAdapter(spec HTTPSpec, cfg adapter.Config, apiKey string, cache *availcache.Cache) *HTTPAdapter {
	clientCfg := openai.DefaultConfig(apiKey)
	if spec.BaseURL != "" {
		clientCfg.BaseURL = spec.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &HTTPAdapter{
		spec:    spec,
		cfg:     cfg,
		apiKey:  apiKey,
		client:  openai.NewClientWithConfig(clientCfg),
		cache:   cache,
		breaker: retry.NewBreaker(spec.Name, 5, 30*time.Second, 1),
	}
}

func (h *HTTPAdapter) Name() string        { return h.spec.Name }
func (h *HTTPAdapter) DisplayName() string { return h.spec.DisplayName }
func (h *HTTPAdapter) Icon() string        { return h.spec.Icon }
func (h *HTTPAdapter) Color() string       { return h.spec.Color }

// CheckAvailability issues a minimal request to confirm the endpoint and
// credentials work.
func (h *HTTPAdapter) CheckAvailability(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := h.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     h.model(),
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "ping"}},
		MaxTokens: 1,
	})
	return err == nil
}

func (h *HTTPAdapter) IsAvailable(ctx context.Context) bool {
	if present, fresh := h.cache.Get(ctx, h.spec.Name); fresh {
		return present
	}
	present := h.CheckAvailability(ctx)
	h.cache.Put(ctx, h.spec.Name, present)
	return present
}

func (h *HTTPAdapter) GetVersion(ctx context.Context) string {
	if h.model() != "" {
		return h.model()
	}
	return "unknown"
}

func (h *HTTPAdapter) HealthCheck(ctx context.Context) adapter.Status {
	available := h.IsAvailable(ctx)
	status := adapter.Status{Name: h.spec.Name, DisplayName: h.spec.DisplayName, Available: available}
	if !available {
		status.StatusTag = "unavailable"
		status.Error = fmt.Sprintf("%s endpoint unreachable or unauthorized", h.spec.DisplayName)
		return status
	}
	status.Version = h.model()
	status.StatusTag = "ok"
	return status
}

func (h *HTTPAdapter) model() string {
	if h.cfg.Model != "" {
		return h.cfg.Model
	}
	return h.spec.DefaultModel
}

// Send streams the chat completion response, retrying retriable failures
// under the shared backoff policy before giving up.
func (h *HTTPAdapter) Send(ctx context.Context, prompt string) <-chan adapter.Chunk {
	out := make(chan adapter.Chunk, 4)

	go func() {
		defer close(out)

		if !h.breaker.CanExecute() {
			out <- adapter.Chunk{Err: coreerr.New(coreerr.KindCircuitOpen, h.spec.Name, nil)}
			return
		}

		cfg := retry.DefaultConfig()
		err := retry.Do(ctx, h.spec.Name, cfg, func(ctx context.Context, attempt int) error {
			return h.stream(ctx, prompt, out)
		})

		if err != nil {
			h.breaker.RecordFailure()
			return
		}
		h.breaker.RecordSuccess()
	}()

	return out
}

func (h *HTTPAdapter) stream(ctx context.Context, prompt string, out chan<- adapter.Chunk) error {
	req := openai.ChatCompletionRequest{
		Model:     h.model(),
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		MaxTokens: h.cfg.MaxTokens,
		Stream:    true,
	}

	log.WithFields(map[string]interface{}{
		"adapter": h.spec.Name,
		"model":   req.Model,
	}).Debug("sending chat completion request")

	stream, err := h.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return classifyHTTPError(h.spec.Name, err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			wrapped := classifyHTTPError(h.spec.Name, err)
			out <- adapter.Chunk{Err: wrapped}
			return wrapped
		}
		if len(resp.Choices) > 0 && resp.Choices[0].Delta.Content != "" {
			out <- adapter.Chunk{Text: resp.Choices[0].Delta.Content}
		}
	}
}

// classifyHTTPError maps a go-openai error onto the shared taxonomy.
func classifyHTTPError(name string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return coreerr.New(coreerr.KindRateLimit, name, err)
		case apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden:
			return coreerr.New(coreerr.KindAuthentication, name, err)
		case apiErr.HTTPStatusCode >= 500:
			return coreerr.New(coreerr.KindConnection, name, err)
		default:
			return coreerr.New(coreerr.KindValidation, name, err)
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return coreerr.New(coreerr.KindConnection, name, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return coreerr.New(coreerr.KindTimeout, name, err)
	case strings.Contains(msg, "connection") || strings.Contains(msg, "eof"):
		return coreerr.New(coreerr.KindConnection, name, err)
	default:
		return coreerr.New(coreerr.KindInternal, name, err)
	}
}
