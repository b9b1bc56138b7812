package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nyxforge/concord/pkg/adapter"
	"github.com/nyxforge/concord/pkg/availcache"
)

func ssePayload(contents []string) string {
	var sb strings.Builder
	for _, c := range contents {
		sb.WriteString(fmt.Sprintf(`data: {"id":"1","object":"chat.completion.chunk","created":1,"model":"test","choices":[{"index":0,"delta":{"content":%q},"finish_reason":null}]}`+"\n\n", c))
	}
	sb.WriteString("data: [DONE]\n\n")
	return sb.String()
}

func newStreamingTestServer(t *testing.T, chunks []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, ssePayload(chunks))
	}))
}

func TestHTTPAdapterSendStreamsContent(t *testing.T) {
	srv := newStreamingTestServer(t, []string{"hello ", "world"})
	defer srv.Close()

	cfg := adapter.DefaultConfig()
	cfg.Timeout = 5 * time.Second
	a := NewHTTPAdapter(HTTPSpec{Name: "test-http", DisplayName: "Test", DefaultModel: "gpt-test", BaseURL: srv.URL}, cfg, "", availcache.New(time.Minute))

	var sb strings.Builder
	for chunk := range a.Send(context.Background(), "hi") {
		if chunk.Err != nil {
			t.Fatalf("unexpected error: %v", chunk.Err)
		}
		sb.WriteString(chunk.Text)
	}

	if sb.String() != "hello world" {
		t.Errorf("expected concatenated streamed content, got %q", sb.String())
	}
}

func TestHTTPAdapterIdentity(t *testing.T) {
	a := NewHTTPAdapter(HTTPSpec{Name: "openrouter", DisplayName: "OpenRouter", Icon: "🟣", Color: "purple"}, adapter.DefaultConfig(), "key", availcache.New(time.Minute))
	if a.Name() != "openrouter" || a.Icon() != "🟣" {
		t.Errorf("unexpected identity: %+v", a)
	}
}
