// Package imagegen is the Image Generator Port: a uniform interface over
// pluggable backends that distinguishes content-policy rejection from
// transient failure and supports fallback chaining, grounded on the
// teacher's habit of keeping small interface-backed subsystems (the
// internal/utils helper package) and the corpus's provider SDKs
// (sashabaranov/go-openai).
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmacnamara/prompt-guessr/internal"
)

// ContentPolicyError signals a provider's terminal verdict that a prompt
// is disallowed. It is never retried on the same provider and, per spec
// §4.4, any fallback content-policy verdict is also final.
type ContentPolicyError struct {
	Provider internal.ImageProvider
	Reason   string
}

func (e *ContentPolicyError) Error() string {
	return fmt.Sprintf("%s: content policy violation: %s", e.Provider, e.Reason)
}

// TransientError signals a retryable failure: timeouts, rate limits,
// transport errors.
type TransientError struct {
	Provider internal.ImageProvider
	Cause    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient failure: %v", e.Provider, e.Cause)
}
func (e *TransientError) Unwrap() error { return e.Cause }

// Backend is the uniform operation every provider implements.
type Backend interface {
	Name() internal.ImageProvider
	Generate(ctx context.Context, prompt string, count int, ownerPlayerId string) ([]internal.GeneratedImage, error)
}

// Config selects the primary backend and an optional fallback, per spec
// §4.4's enumerated configuration.
type Config struct {
	Provider         internal.ImageProvider
	EnableFallback   bool
	FallbackProvider internal.ImageProvider
}

// Port wires a primary backend and an optional fallback behind the
// configured policy.
type Port struct {
	primary  Backend
	fallback Backend
	cfg      Config
}

// NewPort builds a Port from a registry of available backends (by name)
// and a Config naming which ones to use.
func NewPort(backends map[internal.ImageProvider]Backend, cfg Config) (*Port, error) {
	primary, ok := backends[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("imagegen: unknown provider %q", cfg.Provider)
	}
	p := &Port{primary: primary, cfg: cfg}
	if cfg.EnableFallback {
		fb, ok := backends[cfg.FallbackProvider]
		if !ok {
			return nil, fmt.Errorf("imagegen: unknown fallback provider %q", cfg.FallbackProvider)
		}
		p.fallback = fb
	}
	return p, nil
}

// Generate renders up to count images for prompt, owned by ownerPlayerId.
// On any error from the primary other than a ContentPolicyError, and only
// if fallback is enabled, it retries once on the fallback backend. A ContentPolicyError from
// either provider is returned immediately — it is not retried — per spec
// §4.4 ("a content-policy verdict from either provider is final").
func (p *Port) Generate(ctx context.Context, prompt string, count int, ownerPlayerId string) ([]internal.GeneratedImage, error) {
	images, err := p.primary.Generate(ctx, prompt, count, ownerPlayerId)
	if err == nil {
		return images, nil
	}

	var policyErr *ContentPolicyError
	if errors.As(err, &policyErr) {
		return nil, err
	}

	if !p.cfg.EnableFallback || p.fallback == nil {
		return nil, err
	}

	images, fbErr := p.fallback.Generate(ctx, prompt, count, ownerPlayerId)
	if fbErr == nil {
		return images, nil
	}
	return nil, fbErr
}

// IsContentPolicyError reports whether err (or anything it wraps) is a
// ContentPolicyError, returning the concrete error for inspection.
func IsContentPolicyError(err error) (*ContentPolicyError, bool) {
	var policyErr *ContentPolicyError
	if errors.As(err, &policyErr) {
		return policyErr, true
	}
	return nil, false
}

// sleepPacing waits d or returns early with ctx's error if ctx is done —
// shared helper so every backend that wants to simulate provider latency
// (MockBackend's 0.5–1.5s delay) calls through one place.
func sleepPacing(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
