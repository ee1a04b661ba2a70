package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/agent-builder/code-editor/internal/models"
)

var testMessages = []models.ChatMessage{
	{Role: models.RoleSystem, Content: "You edit code."},
	{Role: models.RoleUser, Content: "Add a header"},
	{Role: models.RoleAssistant, Content: "Sure"},
	{Role: models.RoleUser, Content: "Go ahead"},
}

func TestNewGateway(t *testing.T) {
	g := NewGateway()

	assert.NotNil(t, g.httpClient)
	assert.NotNil(t, g.tracer)
	require.Len(t, g.Profiles(), 3)
	assert.Equal(t, []string{OpenAI, Anthropic, Gemini}, []string{g.Profiles()[0].ID, g.Profiles()[1].ID, g.Profiles()[2].ID})
	for _, p := range g.Profiles() {
		assert.NotNil(t, g.breakers[p.ID], p.ID)
	}
}

func TestGateway_MissingCredentialMakesNoRequest(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	for _, id := range []string{OpenAI, Anthropic, Gemini} {
		t.Run(id, func(t *testing.T) {
			g := NewGateway(WithBaseURL(id, server.URL))

			for _, key := range []string{"", "   "} {
				_, err := g.Send(context.Background(), id, testMessages, key, "some-model")
				assert.ErrorIs(t, err, ErrMissingCredential)
			}
		})
	}

	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestGateway_UnknownProvider(t *testing.T) {
	_, err := NewGateway().Send(context.Background(), "mystery", testMessages, "key", "")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestGateway_Send(t *testing.T) {
	tests := []struct {
		name           string
		provider       string
		model          string
		serverResponse func(t *testing.T, w http.ResponseWriter, r *http.Request)
		expectedText   string
	}{
		{
			name:     "openai_chat_completions",
			provider: OpenAI,
			model:    "gpt-test",
			serverResponse: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var body struct {
					Model    string               `json:"model"`
					Messages []models.ChatMessage `json:"messages"`
				}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "gpt-test", body.Model)
				assert.Equal(t, testMessages, body.Messages)

				w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello from openai"}}]}`))
			},
			expectedText: "hello from openai",
		},
		{
			name:     "anthropic_hoists_system_message",
			provider: Anthropic,
			serverResponse: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/messages", r.URL.Path)
				assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
				assert.NotEmpty(t, r.Header.Get("anthropic-version"))
				assert.Empty(t, r.Header.Get("Authorization"))

				var body struct {
					Model     string               `json:"model"`
					System    string               `json:"system"`
					MaxTokens int                  `json:"max_tokens"`
					Messages  []models.ChatMessage `json:"messages"`
				}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "claude-3-5-sonnet-20241022", body.Model)
				assert.Equal(t, "You edit code.", body.System)
				assert.Positive(t, body.MaxTokens)
				require.Len(t, body.Messages, 3)
				for _, m := range body.Messages {
					assert.NotEqual(t, models.RoleSystem, m.Role)
				}

				w.Write([]byte(`{"content":[{"type":"text","text":"hello from claude"}]}`))
			},
			expectedText: "hello from claude",
		},
		{
			name:     "gemini_key_in_query_string",
			provider: Gemini,
			model:    "gemini-test",
			serverResponse: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
				assert.Equal(t, "sk-test", r.URL.Query().Get("key"))
				assert.Empty(t, r.Header.Get("Authorization"))

				var body struct {
					SystemInstruction struct {
						Parts []struct {
							Text string `json:"text"`
						} `json:"parts"`
					} `json:"systemInstruction"`
					Contents []struct {
						Role string `json:"role"`
					} `json:"contents"`
				}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				require.Len(t, body.SystemInstruction.Parts, 1)
				assert.Equal(t, "You edit code.", body.SystemInstruction.Parts[0].Text)
				require.Len(t, body.Contents, 3)
				assert.Equal(t, "user", body.Contents[0].Role)
				assert.Equal(t, "model", body.Contents[1].Role)

				w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"hello from gemini"}]}}]}`))
			},
			expectedText: "hello from gemini",
		},
		{
			name:     "missing_text_field_returns_placeholder",
			provider: OpenAI,
			serverResponse: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"choices":[]}`))
			},
			expectedText: Placeholder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				tt.serverResponse(t, w, r)
			}))
			defer server.Close()

			g := NewGateway(WithBaseURL(tt.provider, server.URL))
			text, err := g.Send(context.Background(), tt.provider, testMessages, "sk-test", tt.model)

			require.NoError(t, err)
			assert.Equal(t, tt.expectedText, text)
		})
	}
}

func TestGateway_ProviderErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "unauthorized",
			status:     http.StatusUnauthorized,
			body:       `{"error":{"message":"invalid api key"}}`,
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"error":{"message":"invalid api key"}}`,
		},
		{
			name:       "server_error",
			status:     http.StatusInternalServerError,
			body:       "upstream exploded",
			wantStatus: http.StatusInternalServerError,
			wantBody:   "upstream exploded",
		},
		{
			name:       "malformed_envelope",
			status:     http.StatusOK,
			body:       "not json",
			wantStatus: http.StatusOK,
			wantBody:   "not json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			g := NewGateway(WithBaseURL(OpenAI, server.URL))
			_, err := g.Send(context.Background(), OpenAI, testMessages, "sk-test", "")

			var perr *ProviderError
			require.True(t, errors.As(err, &perr), "expected ProviderError, got %v", err)
			assert.Equal(t, tt.wantStatus, perr.StatusCode)
			assert.Equal(t, tt.wantBody, perr.Body)
			assert.Equal(t, "OpenAI", perr.Provider)
		})
	}
}

func TestGateway_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	g := NewGateway(WithBaseURL(OpenAI, server.URL), WithTimeout(50*time.Millisecond))
	_, err := g.Send(context.Background(), OpenAI, testMessages, "sk-test", "")

	var terr *TimeoutError
	require.True(t, errors.As(err, &terr), "expected TimeoutError, got %v", err)
	assert.Equal(t, 50*time.Millisecond, terr.After)
}

func TestGateway_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := NewGateway(WithBaseURL(OpenAI, server.URL)).Send(ctx, OpenAI, testMessages, "sk-test", "")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	var terr *TimeoutError
	assert.False(t, errors.As(err, &terr))
}

func TestGateway_BreakerIgnoresClientErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	g := NewGateway(WithBaseURL(OpenAI, server.URL))
	for i := 0; i < 10; i++ {
		_, err := g.Send(context.Background(), OpenAI, testMessages, "sk-test", "")
		var perr *ProviderError
		require.True(t, errors.As(err, &perr))
	}
	assert.Equal(t, int32(10), atomic.LoadInt32(&hits))
}

func TestGateway_BreakerOpensOnServerErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	g := NewGateway(WithBaseURL(OpenAI, server.URL))
	var lastErr error
	for i := 0; i < 8; i++ {
		_, lastErr = g.Send(context.Background(), OpenAI, testMessages, "sk-test", "")
	}

	assert.Equal(t, int32(6), atomic.LoadInt32(&hits))
	assert.Contains(t, lastErr.Error(), "temporarily unavailable")
}

func TestGateway_TransportErrorHidesQueryKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closedURL := server.URL
	server.Close()

	_, err := NewGateway(WithBaseURL(Gemini, closedURL)).Send(context.Background(), Gemini, testMessages, "SECRET-KEY-123", "")

	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET-KEY-123")
	assert.Contains(t, err.Error(), "key=REDACTED")
	assert.Contains(t, err.Error(), "Google Gemini")
}

func TestRedactURLError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    string
		notWant string
	}{
		{
			name:    "query key masked",
			err:     &url.Error{Op: "Post", URL: "http://host/v1beta/models/m:generateContent?key=abc123", Err: errors.New("refused")},
			want:    "key=REDACTED",
			notWant: "abc123",
		},
		{
			name: "url without credentials unchanged",
			err:  &url.Error{Op: "Post", URL: "http://host/v1/messages", Err: errors.New("refused")},
			want: `Post "http://host/v1/messages": refused`,
		},
		{
			name: "other errors pass through",
			err:  errors.New("plain failure"),
			want: "plain failure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := redactURLError(tt.err)
			assert.Contains(t, got.Error(), tt.want)
			if tt.notWant != "" {
				assert.NotContains(t, got.Error(), tt.notWant)
			}
		})
	}
}

func TestRedactURLError_KeepsCause(t *testing.T) {
	err := redactURLError(&url.Error{Op: "Post", URL: "http://host/?key=abc", Err: context.Canceled})
	assert.ErrorIs(t, err, context.Canceled)
}
