package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/agent-builder/code-editor/internal/auth"
	"github.com/bizmatters/agent-builder/code-editor/internal/conversation"
	"github.com/bizmatters/agent-builder/code-editor/internal/models"
	"github.com/bizmatters/agent-builder/code-editor/internal/orchestration"
	"github.com/bizmatters/agent-builder/code-editor/internal/pipeline"
	"github.com/bizmatters/agent-builder/code-editor/internal/provider"
)

const testSecret = "test-secret-key-for-testing"

type testAPI struct {
	router   *gin.Engine
	sessions *orchestration.Service
	jwt      *auth.JWTManager
}

// newTestAPI wires the routes against an OpenAI-compatible mock that always answers reply
func newTestAPI(t *testing.T, reply string) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}))
	t.Cleanup(llm.Close)

	gw := provider.NewGateway(provider.WithBaseURL(provider.OpenAI, llm.URL))
	sessions := orchestration.NewService(orchestration.Config{}, gw, nil, nil, pipeline.NewSimulated([]string{"build"}, 0))
	t.Cleanup(sessions.Shutdown)

	jm, err := auth.NewJWTManager(testSecret)
	require.NoError(t, err)

	router := gin.New()
	RegisterRoutes(router.Group("/api"), NewHandler(sessions, jm, time.Hour), NewSessionStream(sessions, nil))

	return &testAPI{router: router, sessions: sessions, jwt: jm}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) createSession(t *testing.T, files map[string]string) CreateSessionResponse {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/sessions", "", CreateSessionRequest{APIKey: "sk-test", Files: files})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp CreateSessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestListProviders(t *testing.T) {
	api := newTestAPI(t, "ok")

	w := api.do(t, http.MethodGet, "/api/providers", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var providers []ProviderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &providers))
	require.Len(t, providers, 3)
	assert.Equal(t, provider.OpenAI, providers[0].ID)
	assert.NotEmpty(t, providers[0].DefaultModel)
}

func TestCreateSession(t *testing.T) {
	api := newTestAPI(t, "ok")

	t.Run("returns a token scoped to the session", func(t *testing.T) {
		resp := api.createSession(t, map[string]string{"index.html": "<html></html>"})
		assert.NotEmpty(t, resp.SessionID)
		assert.True(t, resp.ExpiresAt.After(time.Now()))

		claims, err := api.jwt.ValidateToken(t.Context(), resp.Token)
		require.NoError(t, err)
		assert.Equal(t, resp.SessionID, claims.SessionID)
		assert.Contains(t, claims.Roles, auth.RoleEditor)
	})

	t.Run("unknown provider", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/sessions", "", CreateSessionRequest{Provider: "mystery"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, models.ErrCodeUnknownProvider, decodeError(t, w).Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewBufferString("{"))
		w := httptest.NewRecorder()
		api.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSessionRoutesRequireScopedToken(t *testing.T) {
	api := newTestAPI(t, "ok")
	first := api.createSession(t, nil)
	second := api.createSession(t, nil)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"missing token", "/api/sessions/" + first.SessionID, "", http.StatusUnauthorized},
		{"garbage token", "/api/sessions/" + first.SessionID, "not-a-jwt", http.StatusUnauthorized},
		{"other session's token", "/api/sessions/" + first.SessionID, second.Token, http.StatusForbidden},
		{"own token", "/api/sessions/" + first.SessionID, first.Token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, http.MethodGet, tt.path, tt.token, nil)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestGetSession(t *testing.T) {
	api := newTestAPI(t, "ok")
	sess := api.createSession(t, map[string]string{"a.js": "1", "b.js": "2"})

	w := api.do(t, http.MethodGet, "/api/sessions/"+sess.SessionID, sess.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "sk-test")

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(conversation.StateIdle), resp.State)
	assert.Equal(t, provider.OpenAI, resp.Provider)
	assert.True(t, resp.HasAPIKey)
	assert.Equal(t, 2, resp.FileCount)
}

func TestGetSession_DeletedSession(t *testing.T) {
	api := newTestAPI(t, "ok")
	sess := api.createSession(t, nil)
	require.NoError(t, api.sessions.DeleteSession(sess.SessionID))

	w := api.do(t, http.MethodGet, "/api/sessions/"+sess.SessionID, sess.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, models.ErrCodeNotFound, decodeError(t, w).Code)
}

func TestFiles(t *testing.T) {
	api := newTestAPI(t, "ok")
	sess := api.createSession(t, map[string]string{"src/App.jsx": "export default 1"})
	base := "/api/sessions/" + sess.SessionID + "/files"

	t.Run("list", func(t *testing.T) {
		w := api.do(t, http.MethodGet, base, sess.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var files []FileInfo
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &files))
		require.Len(t, files, 1)
		assert.Equal(t, "src/App.jsx", files[0].Path)
		assert.Equal(t, len("export default 1"), files[0].Size)
	})

	t.Run("read with etag", func(t *testing.T) {
		w := api.do(t, http.MethodGet, base+"/src/App.jsx", sess.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var rec models.FileRecord
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
		assert.Equal(t, "export default 1", rec.Content)

		etag := w.Header().Get("ETag")
		require.NotEmpty(t, etag)

		req := httptest.NewRequest(http.MethodGet, base+"/src/App.jsx", nil)
		req.Header.Set("Authorization", "Bearer "+sess.Token)
		req.Header.Set("If-None-Match", etag)
		cached := httptest.NewRecorder()
		api.router.ServeHTTP(cached, req)
		assert.Equal(t, http.StatusNotModified, cached.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		w := api.do(t, http.MethodGet, base+"/nope.js", sess.Token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("write", func(t *testing.T) {
		w := api.do(t, http.MethodPut, base+"/src/App.jsx", sess.Token, map[string]string{"content": "export default 2"})
		require.Equal(t, http.StatusOK, w.Code)

		got, err := api.sessions.GetSession(sess.SessionID)
		require.NoError(t, err)
		rec, ok := got.Store.Get("src/App.jsx")
		require.True(t, ok)
		assert.Equal(t, "export default 2", rec.Content)
		assert.Equal(t, `"`+rec.Hash+`"`, w.Header().Get("ETag"))
	})

	t.Run("write empty content is allowed", func(t *testing.T) {
		w := api.do(t, http.MethodPut, base+"/empty.txt", sess.Token, map[string]string{"content": ""})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("write without content", func(t *testing.T) {
		w := api.do(t, http.MethodPut, base+"/src/App.jsx", sess.Token, map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("upload replaces project", func(t *testing.T) {
		w := api.do(t, http.MethodPost, base, sess.Token, UploadFilesRequest{Files: map[string]string{"main.py": "print(1)"}})
		require.Equal(t, http.StatusNoContent, w.Code)

		got, err := api.sessions.GetSession(sess.SessionID)
		require.NoError(t, err)
		assert.Equal(t, []string{"main.py"}, got.Store.Keys())
	})
}

func TestGetAnalysis(t *testing.T) {
	api := newTestAPI(t, "ok")
	sess := api.createSession(t, map[string]string{
		"package.json": `{"dependencies":{"react":"^18.0.0"},"devDependencies":{"vite":"^5.0.0"}}`,
	})

	w := api.do(t, http.MethodGet, "/api/sessions/"+sess.SessionID+"/analysis", sess.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var snap models.AnalysisSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "react", snap.Framework)
	assert.Contains(t, snap.Dependencies, "react")
}

func TestSubmitMessage_AppliesChanges(t *testing.T) {
	reply := "Adding a footer.\nFILE_CHANGES_START\n```filepath:src/Footer.jsx\nexport default 2\n```\nFILE_CHANGES_END"
	api := newTestAPI(t, reply)
	sess := api.createSession(t, nil)
	base := "/api/sessions/" + sess.SessionID

	w := api.do(t, http.MethodPost, base+"/messages", sess.Token, SubmitMessageRequest{Message: "add a footer"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result conversation.TurnResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, conversation.OutcomeApplied, result.Outcome)
	assert.Equal(t, 1, result.Applied)

	w = api.do(t, http.MethodGet, base+"/messages", sess.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var messages []models.ConversationMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &messages))
	require.Len(t, messages, 3)
	assert.Equal(t, models.RoleUser, messages[0].Role)

	w = api.do(t, http.MethodGet, base+"/proposals", sess.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var proposals []models.Proposal
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &proposals))
	require.Len(t, proposals, 1)
	assert.Equal(t, models.ProposalStatusApplied, proposals[0].Status)
}

func TestApprovalGate(t *testing.T) {
	reply := "I will add a footer. Would you like me to proceed?\nFILE_CHANGES_START\n```filepath:src/Footer.jsx\nexport default 2\n```\nFILE_CHANGES_END"
	api := newTestAPI(t, reply)
	base := func(id string) string { return "/api/sessions/" + id }

	t.Run("approve", func(t *testing.T) {
		sess := api.createSession(t, nil)

		w := api.do(t, http.MethodPost, base(sess.SessionID)+"/messages", sess.Token, SubmitMessageRequest{Message: "add a footer"})
		require.Equal(t, http.StatusOK, w.Code)
		var result conversation.TurnResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, conversation.OutcomeAwaitingApproval, result.Outcome)

		w = api.do(t, http.MethodPost, base(sess.SessionID)+"/approve", sess.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, conversation.OutcomeApplied, result.Outcome)

		w = api.do(t, http.MethodPost, base(sess.SessionID)+"/approve", sess.Token, nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, models.ErrCodeNoPendingChanges, decodeError(t, w).Code)
	})

	t.Run("reject", func(t *testing.T) {
		sess := api.createSession(t, nil)

		w := api.do(t, http.MethodPost, base(sess.SessionID)+"/messages", sess.Token, SubmitMessageRequest{Message: "add a footer"})
		require.Equal(t, http.StatusOK, w.Code)

		w = api.do(t, http.MethodPost, base(sess.SessionID)+"/reject", sess.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		got, err := api.sessions.GetSession(sess.SessionID)
		require.NoError(t, err)
		assert.False(t, got.Store.Has("src/Footer.jsx"))
		assert.Equal(t, conversation.StateIdle, got.Controller.State())
	})
}

func TestSubmitMessage_EmptyMessage(t *testing.T) {
	api := newTestAPI(t, "ok")
	sess := api.createSession(t, nil)

	w := api.do(t, http.MethodPost, "/api/sessions/"+sess.SessionID+"/messages", sess.Token, SubmitMessageRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateSettings(t *testing.T) {
	api := newTestAPI(t, "ok")
	sess := api.createSession(t, nil)
	path := "/api/sessions/" + sess.SessionID + "/settings"

	w := api.do(t, http.MethodPut, path, sess.Token, UpdateSettingsRequest{Provider: provider.Anthropic, APIKey: "sk-ant"})
	require.Equal(t, http.StatusNoContent, w.Code)

	got, err := api.sessions.GetSession(sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, provider.Anthropic, got.Controller.Settings().Provider)

	w = api.do(t, http.MethodPut, path, sess.Token, UpdateSettingsRequest{Provider: "mystery"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.ErrCodeUnknownProvider, decodeError(t, w).Code)
}

func TestResetSession(t *testing.T) {
	api := newTestAPI(t, "ok")
	sess := api.createSession(t, map[string]string{"a.js": "1"})

	w := api.do(t, http.MethodDelete, "/api/sessions/"+sess.SessionID, sess.Token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	got, err := api.sessions.GetSession(sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Store.Len())
}

func TestRefreshToken(t *testing.T) {
	api := newTestAPI(t, "ok")
	sess := api.createSession(t, nil)

	w := api.do(t, http.MethodPost, "/api/sessions/"+sess.SessionID+"/token", sess.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	claims, err := api.jwt.ValidateToken(t.Context(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.SessionID, claims.SessionID)
}

func TestRunPreview(t *testing.T) {
	api := newTestAPI(t, "ok")
	sess := api.createSession(t, map[string]string{"index.html": "<html><head></head><body>hi</body></html>"})
	path := "/api/sessions/" + sess.SessionID + "/preview"

	t.Run("simulated by default", func(t *testing.T) {
		w := api.do(t, http.MethodPost, path, sess.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var result pipeline.PreviewResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, pipeline.ModeSimulated, result.Mode)
		assert.Contains(t, result.HTML, "hi")
	})

	t.Run("unknown mode", func(t *testing.T) {
		w := api.do(t, http.MethodPost, path+"?mode=quantum", sess.Token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("runtime not configured", func(t *testing.T) {
		w := api.do(t, http.MethodPost, path+"?mode=runtime", sess.Token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
