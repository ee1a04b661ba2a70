package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/bizmatters/agent-builder/code-editor/internal/models"
)

// Gateway sends chat requests to the configured LLM providers
type Gateway struct {
	profiles   map[string]Profile
	order      []string
	baseURLs   map[string]string
	httpClient *http.Client
	timeout    time.Duration
	tracer     trace.Tracer
	breakers   map[string]*gobreaker.CircuitBreaker
}

// Option configures a Gateway
type Option func(*Gateway)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		g.httpClient = client
	}
}

// WithTimeout bounds each Send call. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.timeout = d
	}
}

// WithBaseURL overrides the endpoint host for one provider
func WithBaseURL(providerID, baseURL string) Option {
	return func(g *Gateway) {
		if baseURL != "" {
			g.baseURLs[providerID] = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithProfiles replaces the built-in provider profiles
func WithProfiles(profiles ...Profile) Option {
	return func(g *Gateway) {
		g.profiles = make(map[string]Profile, len(profiles))
		g.order = g.order[:0]
		for _, p := range profiles {
			g.profiles[p.ID] = p
			g.order = append(g.order, p.ID)
		}
	}
}

// NewGateway creates a gateway for the default provider profiles
func NewGateway(opts ...Option) *Gateway {
	// No client-level timeout: a call is bounded only by WithTimeout or the caller's context.
	g := &Gateway{
		baseURLs:   make(map[string]string),
		httpClient: &http.Client{},
		tracer:     otel.Tracer("provider-gateway"),
	}
	WithProfiles(DefaultProfiles()...)(g)
	for _, opt := range opts {
		opt(g)
	}

	g.breakers = make(map[string]*gobreaker.CircuitBreaker, len(g.profiles))
	for id := range g.profiles {
		g.breakers[id] = newBreaker(id)
	}
	return g
}

func newBreaker(providerID string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "provider-" + providerID,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// Client errors (bad key, bad request) say nothing about provider health.
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var perr *ProviderError
			return errors.As(err, &perr) && perr.StatusCode > 0 && perr.StatusCode < 500
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf(`{"level":"warn","message":"Circuit breaker state changed","breaker":"%s","from":"%s","to":"%s"}`, name, from, to)
		},
	})
}

// Profiles lists the configured providers in display order
func (g *Gateway) Profiles() []Profile {
	out := make([]Profile, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.profiles[id])
	}
	return out
}

// Profile looks up a provider by id
func (g *Gateway) Profile(providerID string) (Profile, bool) {
	p, ok := g.profiles[providerID]
	return p, ok
}

// Send posts messages to the provider and returns the assistant text.
// An empty model selects the profile default.
func (g *Gateway) Send(ctx context.Context, providerID string, messages []models.ChatMessage, apiKey, model string) (string, error) {
	profile, ok := g.profiles[providerID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, providerID)
	}
	if strings.TrimSpace(apiKey) == "" {
		return "", fmt.Errorf("%w for %s", ErrMissingCredential, profile.DisplayName)
	}
	if model == "" {
		model = profile.DefaultModel
	}

	ctx, span := g.tracer.Start(ctx, "provider.send")
	defer span.End()

	span.SetAttributes(
		attribute.String("provider.id", providerID),
		attribute.String("provider.model", model),
		attribute.Int("provider.messages", len(messages)),
	)

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	result, err := g.breakers[providerID].Execute(func() (interface{}, error) {
		return g.sendInternal(callCtx, profile, messages, apiKey, model)
	})
	if err != nil {
		if g.timeout > 0 && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = &TimeoutError{Provider: profile.DisplayName, After: g.timeout}
		} else if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%s is temporarily unavailable: %w", profile.DisplayName, err)
		}
		span.RecordError(err)
		return "", err
	}

	text := result.(string)
	span.SetAttributes(attribute.Int("provider.response_chars", len(text)))
	return text, nil
}

func (g *Gateway) sendInternal(ctx context.Context, profile Profile, messages []models.ChatMessage, apiKey, model string) (string, error) {
	jsonData, err := json.Marshal(profile.BuildBody(messages, model))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	baseURL := profile.DefaultBaseURL
	if override, ok := g.baseURLs[profile.ID]; ok {
		baseURL = override
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, profile.Endpoint(baseURL, apiKey, model), bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range profile.AuthHeaders(apiKey) {
		httpReq.Header.Set(k, v)
	}

	// Inject trace context
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to reach %s: %w", profile.DisplayName, redactURLError(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read %s response: %w", profile.DisplayName, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &ProviderError{Provider: profile.DisplayName, StatusCode: resp.StatusCode, Body: string(body)}
	}

	text, ok, err := profile.ExtractText(body)
	if err != nil {
		return "", &ProviderError{Provider: profile.DisplayName, StatusCode: resp.StatusCode, Body: string(body), Err: err}
	}
	if !ok {
		return Placeholder, nil
	}
	return text, nil
}

// redactedParams are query parameters that carry credentials
var redactedParams = []string{"key", "api_key"}

// redactURLError masks credentials in the request URL that *url.Error prints
func redactURLError(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	u, parseErr := url.Parse(urlErr.URL)
	if parseErr != nil {
		return &url.Error{Op: urlErr.Op, URL: "(redacted)", Err: urlErr.Err}
	}
	q := u.Query()
	for _, p := range redactedParams {
		if q.Has(p) {
			q.Set(p, "REDACTED")
		}
	}
	u.RawQuery = q.Encode()
	return &url.Error{Op: urlErr.Op, URL: u.String(), Err: urlErr.Err}
}
