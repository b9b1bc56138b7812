// Package adapters holds the concrete backend implementations of
// pkg/adapter.Adapter: one generalized subprocess adapter parameterized
// per backend (claude.go's and factory.go's per-CLI duplication in the
// teacher collapsed into a single Spec-driven type), and an HTTP/SSE
// adapter for OpenAI-compatible endpoints (api.go/openai_compat.go
// generalized).
package adapters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nyxforge/concord/pkg/adapter"
	"github.com/nyxforge/concord/pkg/availcache"
	"github.com/nyxforge/concord/pkg/coreerr"
	"github.com/nyxforge/concord/pkg/log"
	"github.com/nyxforge/concord/pkg/procsession"
	"github.com/nyxforge/concord/pkg/retry"
)

// Spec describes one CLI backend's identity and argument schema. Each
// known backend (claude, codex, gemini, ...) is one Spec value rather
// than its own type, since the only thing that varies between them is
// data, not behavior.
type Spec struct {
	Name        string
	DisplayName string
	Icon        string
	Color       string
	Command     string
	VersionArgs []string
	// BuildArgs returns the CLI args for sending prompt under cfg. Most
	// backends take the prompt as a flag or positional argument; a few
	// (Claude) take it on stdin instead, signaled by returning true for
	// useStdin.
	BuildArgs func(cfg adapter.Config, prompt string) (args []string, useStdin bool)
}

// knownSpecs is the backend registry, grounded on the per-adapter
// classes observed across shawkym-agentpipe/pkg/adapters/*.go and
// original_source's adapters/{claude,codex,gemini}.py.
var knownSpecs = map[string]Spec{
	"claude": {
		Name: "claude", DisplayName: "Claude", Icon: "🔵", Color: "bright_blue",
		Command:     "claude",
		VersionArgs: []string{"--version"},
		BuildArgs: func(cfg adapter.Config, prompt string) ([]string, bool) {
			args := []string{}
			if cfg.Model != "" {
				args = append(args, "--model", cfg.Model)
			}
			return args, true
		},
	},
	"codex": {
		Name: "codex", DisplayName: "Codex", Icon: "🟢", Color: "bright_green",
		Command:     "codex",
		VersionArgs: []string{"--version"},
		BuildArgs: func(cfg adapter.Config, prompt string) ([]string, bool) {
			args := []string{"exec", "--skip-git-repo-check"}
			if cfg.Model != "" {
				args = append(args, "--model", cfg.Model)
			}
			args = append(args, prompt)
			return args, false
		},
	},
	"gemini": {
		Name: "gemini", DisplayName: "Gemini", Icon: "🟡", Color: "bright_yellow",
		Command:     "gemini",
		VersionArgs: []string{"--version"},
		BuildArgs: func(cfg adapter.Config, prompt string) ([]string, bool) {
			args := []string{"-p", prompt}
			if cfg.Model != "" {
				args = append(args, "--model", cfg.Model)
			}
			return args, false
		},
	},
}

// KnownBackends lists the names registered in knownSpecs.
func KnownBackends() []string {
	names := make([]string, 0, len(knownSpecs))
	for name := range knownSpecs {
		names = append(names, name)
	}
	return names
}

// SubprocessAdapter implements pkg/adapter.Adapter by shelling out to a
// CLI backend described by a Spec.
type SubprocessAdapter struct {
	spec    Spec
	cfg     adapter.Config
	cache   *availcache.Cache
	breaker *retry.Breaker
}

// NewSubprocessAdapter constructs the adapter for a registered backend
// name. Returns an error if name isn't in knownSpecs.
func NewSubprocessAdapter(name string, cfg adapter.Config, cache *availcache.Cache) (*SubprocessAdapter, error) {
	spec, ok := knownSpecs[name]
	if !ok {
		return nil, fmt.Errorf("unknown subprocess backend %q", name)
	}
	return &SubprocessAdapter{
		spec:    spec,
		cfg:     cfg,
		cache:   cache,
		breaker: retry.NewBreaker(name, 5, 30*time.Second, 1),
	}, nil
}

func (s *SubprocessAdapter) Name() string        { return s.spec.Name }
func (s *SubprocessAdapter) DisplayName() string { return s.spec.DisplayName }
func (s *SubprocessAdapter) Icon() string        { return s.spec.Icon }
func (s *SubprocessAdapter) Color() string       { return s.spec.Color }

func (s *SubprocessAdapter) CheckAvailability(ctx context.Context) bool {
	_, err := procsession.Resolve(s.spec.Command)
	return err == nil
}

func (s *SubprocessAdapter) IsAvailable(ctx context.Context) bool {
	if present, fresh := s.cache.Get(ctx, s.spec.Name); fresh {
		return present
	}
	present := s.CheckAvailability(ctx)
	s.cache.Put(ctx, s.spec.Name, present)
	return present
}

func (s *SubprocessAdapter) GetVersion(ctx context.Context) string {
	path, err := procsession.Resolve(s.spec.Command)
	if err != nil {
		return "unknown"
	}

	var out strings.Builder
	for chunk := range procsession.Run(ctx, procsession.Options{
		Path:         path,
		Args:         s.spec.VersionArgs,
		Timeout:      5 * time.Second,
		ReadDeadline: 5 * time.Second,
	}) {
		if chunk.Err != nil {
			break
		}
		out.WriteString(chunk.Text)
	}

	version := strings.TrimSpace(out.String())
	if version == "" {
		return "unknown"
	}
	return version
}

func (s *SubprocessAdapter) HealthCheck(ctx context.Context) adapter.Status {
	available := s.IsAvailable(ctx)
	status := adapter.Status{
		Name:        s.spec.Name,
		DisplayName: s.spec.DisplayName,
		Available:   available,
	}
	if !available {
		status.StatusTag = "unavailable"
		status.Error = fmt.Sprintf("%s not found on PATH", s.spec.Command)
		return status
	}
	status.Version = s.GetVersion(ctx)
	status.StatusTag = "ok"
	return status
}

// Send streams the backend's response, classifying failures into the
// coreerr taxonomy and recording them against the circuit breaker.
func (s *SubprocessAdapter) Send(ctx context.Context, prompt string) <-chan adapter.Chunk {
	out := make(chan adapter.Chunk, 4)

	go func() {
		defer close(out)

		if !s.breaker.CanExecute() {
			out <- adapter.Chunk{Err: coreerr.New(coreerr.KindCircuitOpen, s.spec.Name, nil)}
			return
		}

		if !s.IsAvailable(ctx) {
			s.breaker.RecordFailure()
			out <- adapter.Chunk{Err: coreerr.New(coreerr.KindNotAvailable, s.spec.Name, fmt.Errorf("%s not on PATH", s.spec.Command))}
			return
		}

		path, err := procsession.Resolve(s.spec.Command)
		if err != nil {
			s.breaker.RecordFailure()
			out <- adapter.Chunk{Err: coreerr.New(coreerr.KindNotAvailable, s.spec.Name, err)}
			return
		}

		args, useStdin := s.spec.BuildArgs(s.cfg, prompt)
		opts := procsession.Options{
			Path:         path,
			Args:         args,
			Timeout:      s.cfg.Timeout,
			ReadDeadline: 20 * time.Second,
		}
		if useStdin {
			opts.Stdin = prompt
		}

		log.WithFields(map[string]interface{}{
			"adapter": s.spec.Name,
			"model":   s.cfg.Model,
		}).Debug("sending prompt to subprocess adapter")

		failed := false
		for chunk := range procsession.Run(ctx, opts) {
			if chunk.Err != nil {
				failed = true
				out <- adapter.Chunk{Err: classifyProcessError(s.spec.Name, chunk.Err)}
				continue
			}
			out <- adapter.Chunk{Text: chunk.Text}
		}

		if failed {
			s.breaker.RecordFailure()
		} else {
			s.breaker.RecordSuccess()
		}
	}()

	return out
}

// classifyProcessError maps a procsession failure onto the shared error
// taxonomy by inspecting its text, since os/exec errors carry no
// structured kind of their own.
func classifyProcessError(name string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "deadline") || strings.Contains(msg, "unresponsive") || strings.Contains(msg, "context deadline exceeded"):
		return coreerr.New(coreerr.KindTimeout, name, err)
	case strings.Contains(msg, "not found") || strings.Contains(msg, "no such file"):
		return coreerr.New(coreerr.KindNotAvailable, name, err)
	case strings.Contains(msg, "context canceled"):
		return coreerr.New(coreerr.KindConnection, name, err)
	default:
		return coreerr.New(coreerr.KindInternal, name, err)
	}
}
