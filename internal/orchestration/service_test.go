package orchestration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/agent-builder/code-editor/internal/conversation"
	"github.com/bizmatters/agent-builder/code-editor/internal/models"
	"github.com/bizmatters/agent-builder/code-editor/internal/pipeline"
	"github.com/bizmatters/agent-builder/code-editor/internal/provider"
)

func newOpenAIServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestService(t *testing.T, reply string) *Service {
	t.Helper()
	server := newOpenAIServer(t, reply)
	gw := provider.NewGateway(provider.WithBaseURL(provider.OpenAI, server.URL))
	return NewService(Config{IdleTimeout: time.Minute}, gw, nil, nil, pipeline.NewSimulated([]string{"build"}, 0))
}

func TestService_CreateSession(t *testing.T) {
	svc := newTestService(t, "ok")

	t.Run("defaults to configured provider", func(t *testing.T) {
		sess, err := svc.CreateSession(context.Background(), CreateSessionRequest{
			APIKey: "sk-test",
			Files:  map[string]string{"src/App.jsx": "export default 1"},
		})
		require.NoError(t, err)

		assert.NotEmpty(t, sess.ID)
		assert.Equal(t, provider.OpenAI, sess.Controller.Settings().Provider)
		assert.Equal(t, 1, sess.Store.Len())

		mirrored, err := sess.Sandbox.ReadFile("src/App.jsx")
		require.NoError(t, err)
		assert.Equal(t, "export default 1", mirrored)

		got, err := svc.GetSession(sess.ID)
		require.NoError(t, err)
		assert.Same(t, sess, got)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := svc.CreateSession(context.Background(), CreateSessionRequest{Provider: "mystery"})
		assert.ErrorIs(t, err, provider.ErrUnknownProvider)
	})

	t.Run("invalid file path", func(t *testing.T) {
		_, err := svc.CreateSession(context.Background(), CreateSessionRequest{Files: map[string]string{"": "x"}})
		assert.Error(t, err)
	})
}

func TestService_TurnAppliesAndRecordsProposal(t *testing.T) {
	reply := "Adding a footer.\nFILE_CHANGES_START\n```filepath:src/Footer.jsx\nexport default 2\n```\nFILE_CHANGES_END"
	svc := newTestService(t, reply)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, CreateSessionRequest{APIKey: "sk-test"})
	require.NoError(t, err)

	result, err := sess.Controller.Submit(ctx, "add a footer")
	require.NoError(t, err)
	assert.Equal(t, conversation.OutcomeApplied, result.Outcome)

	mirrored, err := sess.Sandbox.ReadFile("src/Footer.jsx")
	require.NoError(t, err)
	assert.Equal(t, "export default 2", mirrored)

	proposals, err := svc.ListProposals(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, models.ProposalStatusApplied, proposals[0].Status)
}

func TestService_ResetAndDelete(t *testing.T) {
	svc := newTestService(t, "ok")
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, CreateSessionRequest{Files: map[string]string{"a.js": "1"}})
	require.NoError(t, err)

	require.NoError(t, svc.ResetSession(ctx, sess.ID))
	assert.Equal(t, 0, sess.Store.Len())
	_, err = sess.Sandbox.ReadFile("a.js")
	assert.Error(t, err)

	events, _ := sess.Controller.Subscribe()
	require.NoError(t, svc.DeleteSession(sess.ID))

	_, err = svc.GetSession(sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, svc.DeleteSession(sess.ID), ErrSessionNotFound)
	assert.ErrorIs(t, svc.ResetSession(ctx, sess.ID), ErrSessionNotFound)

	_, open := <-events
	assert.False(t, open)
}

func TestService_UpdateSettingsKeepsKey(t *testing.T) {
	svc := newTestService(t, "ok")
	sess, err := svc.CreateSession(context.Background(), CreateSessionRequest{APIKey: "sk-original"})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateSettings(sess.ID, conversation.Settings{Provider: provider.OpenAI, Model: "gpt-test"}))
	settings := sess.Controller.Settings()
	assert.Equal(t, "gpt-test", settings.Model)
	assert.Equal(t, "sk-original", settings.APIKey)

	require.NoError(t, svc.UpdateSettings(sess.ID, conversation.Settings{Provider: provider.Anthropic}))
	assert.Empty(t, sess.Controller.Settings().APIKey)

	err = svc.UpdateSettings(sess.ID, conversation.Settings{Provider: "mystery"})
	assert.ErrorIs(t, err, provider.ErrUnknownProvider)
}

func TestService_Files(t *testing.T) {
	svc := newTestService(t, "ok")
	ctx := context.Background()
	sess, err := svc.CreateSession(ctx, CreateSessionRequest{Files: map[string]string{"old.js": "x"}})
	require.NoError(t, err)

	rec, err := svc.WriteFile(ctx, sess.ID, "src/new.js", "console.log(1)")
	require.NoError(t, err)
	assert.Equal(t, "src/new.js", rec.Path)
	assert.NotEmpty(t, rec.Hash)

	_, err = svc.WriteFile(ctx, sess.ID, "", "x")
	assert.Error(t, err)

	require.NoError(t, svc.UploadFiles(ctx, sess.ID, map[string]string{"package.json": `{"dependencies":{"react":"18"}}`}))
	assert.Equal(t, []string{"package.json"}, sess.Store.Keys())
	_, err = sess.Sandbox.ReadFile("old.js")
	assert.Error(t, err)

	snap, err := svc.Analyze(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "react", snap.Framework)
}

func TestService_RunPreview(t *testing.T) {
	svc := newTestService(t, "ok")
	ctx := context.Background()
	sess, err := svc.CreateSession(ctx, CreateSessionRequest{Files: map[string]string{"index.html": "<h1>hi</h1>"}})
	require.NoError(t, err)

	events, cancel := sess.Controller.Subscribe()
	defer cancel()

	result, err := svc.RunPreview(ctx, sess.ID, "")
	require.NoError(t, err)
	assert.Equal(t, pipeline.ModeSimulated, result.Mode)
	assert.Equal(t, "<h1>hi</h1>", result.HTML)

	ev := <-events
	assert.Equal(t, models.EventTypePipelineLog, ev.EventType)

	_, err = svc.RunPreview(ctx, sess.ID, pipeline.ModeRuntime)
	assert.ErrorIs(t, err, pipeline.ErrUnknownMode)
}

func TestService_ExpireIdle(t *testing.T) {
	svc := newTestService(t, "ok")
	current := time.Now()
	svc.now = func() time.Time { return current }

	stale, err := svc.CreateSession(context.Background(), CreateSessionRequest{})
	require.NoError(t, err)

	current = current.Add(50 * time.Second)
	fresh, err := svc.CreateSession(context.Background(), CreateSessionRequest{})
	require.NoError(t, err)

	current = current.Add(20 * time.Second)
	assert.Equal(t, 1, svc.expireIdle())

	_, err = svc.GetSession(stale.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.GetSession(fresh.ID)
	assert.NoError(t, err)

	svc.Shutdown()
	_, err = svc.GetSession(fresh.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestService_ResetRejectsHeldProposal(t *testing.T) {
	reply := "This rewrites App. Would you like me to proceed?\nFILE_CHANGES_START\n```filepath:src/App.jsx\nexport default 2\n```\nFILE_CHANGES_END"
	svc := newTestService(t, reply)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, CreateSessionRequest{APIKey: "sk-test", Files: map[string]string{"src/App.jsx": "export default 1"}})
	require.NoError(t, err)

	result, err := sess.Controller.Submit(ctx, "rewrite App")
	require.NoError(t, err)
	require.Equal(t, conversation.OutcomeAwaitingApproval, result.Outcome)

	require.NoError(t, svc.ResetSession(ctx, sess.ID))
	assert.Equal(t, 0, sess.Store.Len())
	_, err = sess.Sandbox.ReadFile("src/App.jsx")
	assert.Error(t, err)

	proposals, err := svc.ListProposals(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, models.ProposalStatusRejected, proposals[0].Status)
	assert.NotNil(t, proposals[0].ResolvedAt)
}
