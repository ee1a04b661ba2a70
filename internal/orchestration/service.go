package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bizmatters/agent-builder/code-editor/internal/analysis"
	"github.com/bizmatters/agent-builder/code-editor/internal/applier"
	"github.com/bizmatters/agent-builder/code-editor/internal/conversation"
	"github.com/bizmatters/agent-builder/code-editor/internal/filestore"
	"github.com/bizmatters/agent-builder/code-editor/internal/metrics"
	"github.com/bizmatters/agent-builder/code-editor/internal/models"
	"github.com/bizmatters/agent-builder/code-editor/internal/pipeline"
	"github.com/bizmatters/agent-builder/code-editor/internal/provider"
	"github.com/bizmatters/agent-builder/code-editor/internal/sandbox"
)

var ErrSessionNotFound = errors.New("session not found")

// Config holds the per-session defaults applied by the Service
type Config struct {
	DefaultProvider string
	DefaultModel    string
	MaxFiles        int
	MaxChars        int
	HistoryMessages int
	ChangeDelay     time.Duration
	IdleTimeout     time.Duration
}

// CreateSessionRequest seeds a new editing session
type CreateSessionRequest struct {
	Provider string
	Model    string
	APIKey   string
	Files    map[string]string
}

// Session is one project being edited: its files, sandbox mirror and conversation
type Session struct {
	ID        string
	CreatedAt time.Time

	Store      *filestore.Store
	Context    *analysis.Builder
	Sandbox    *sandbox.Runtime
	Controller *conversation.Controller

	mu         sync.Mutex
	lastActive time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
}

// LastActive is the time of the most recent lookup of this session
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Service handles session lifecycle and wires each session's components
type Service struct {
	cfg       Config
	gateway   *provider.Gateway
	proposals ProposalStore
	metrics   *metrics.TurnMetrics
	pipelines map[string]pipeline.Strategy

	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewService creates a new session service. A nil proposal store keeps proposals in memory.
func NewService(cfg Config, gateway *provider.Gateway, proposals ProposalStore, turnMetrics *metrics.TurnMetrics, strategies ...pipeline.Strategy) *Service {
	if proposals == nil {
		proposals = NewMemoryProposalStore()
	}
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = provider.OpenAI
	}

	pipelines := make(map[string]pipeline.Strategy, len(strategies))
	for _, s := range strategies {
		pipelines[s.Mode()] = s
	}

	return &Service{
		cfg:       cfg,
		gateway:   gateway,
		proposals: proposals,
		metrics:   turnMetrics,
		pipelines: pipelines,
		sessions:  make(map[string]*Session),
		now:       time.Now,
	}
}

// Providers lists the available provider profiles
func (s *Service) Providers() []provider.Profile {
	return s.gateway.Profiles()
}

// CreateSession registers a session with the uploaded project files
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	settings := conversation.Settings{
		Provider: req.Provider,
		Model:    req.Model,
		APIKey:   req.APIKey,
	}
	if settings.Provider == "" {
		settings.Provider = s.cfg.DefaultProvider
		if settings.Model == "" {
			settings.Model = s.cfg.DefaultModel
		}
	}
	if _, ok := s.gateway.Profile(settings.Provider); !ok {
		return nil, fmt.Errorf("%w: %s", provider.ErrUnknownProvider, settings.Provider)
	}

	store := filestore.New()
	if err := store.Load(req.Files); err != nil {
		return nil, fmt.Errorf("failed to load project files: %w", err)
	}

	id := uuid.NewString()
	events := conversation.NewBroadcaster(id)
	builder := analysis.NewBuilder(s.cfg.MaxFiles, s.cfg.MaxChars)
	mirror := sandbox.NewMemory()
	if err := mirrorAll(ctx, mirror, store); err != nil {
		log.Printf(`{"level":"warn","message":"Failed to mirror project into sandbox","session_id":"%s","error":"%v"}`, id, err)
	}

	var ctrl *conversation.Controller
	changeApplier := applier.New(store,
		applier.WithSandbox(mirror),
		applier.WithDelay(s.cfg.ChangeDelay),
		applier.WithLogSink(func(entry models.LogEntry) {
			ctrl.PublishLog(entry)
		}),
	)
	ctrl = conversation.NewController(conversation.Config{
		SessionID:       id,
		Store:           store,
		Context:         builder,
		Gateway:         s.gateway,
		Applier:         changeApplier,
		Proposals:       s.proposals,
		Metrics:         s.metrics,
		Events:          events,
		HistoryMessages: s.cfg.HistoryMessages,
		Settings:        settings,
	})

	now := s.now()
	sess := &Session{
		ID:         id,
		CreatedAt:  now.UTC(),
		Store:      store,
		Context:    builder,
		Sandbox:    mirror,
		Controller: ctrl,
		lastActive: now,
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	log.Printf(`{"level":"info","message":"Session created","session_id":"%s","provider":"%s","files":%d}`, id, settings.Provider, store.Len())
	return sess, nil
}

// GetSession looks up a session and marks it active
func (s *Service) GetSession(sessionID string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	sess.touch(s.now())
	return sess, nil
}

// ResetSession discards the session's files and conversation
func (s *Service) ResetSession(ctx context.Context, sessionID string) error {
	sess, err := s.GetSession(sessionID)
	if err != nil {
		return err
	}
	err = sess.Controller.Reset(ctx, func() {
		sess.Store.Clear()
		if err := sess.Sandbox.Clear(); err != nil {
			log.Printf(`{"level":"warn","message":"Failed to clear sandbox","session_id":"%s","error":"%v"}`, sessionID, err)
		}
	})
	if err != nil {
		return err
	}

	s.stopPipelines(sessionID)
	sess.Controller.PublishFilesChanged(nil)
	return nil
}

// DeleteSession removes a session and releases its subscribers
func (s *Service) DeleteSession(sessionID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	s.stopPipelines(sessionID)
	sess.Controller.Close()
	return nil
}

// UpdateSettings changes the provider, model or key used by later turns
func (s *Service) UpdateSettings(sessionID string, settings conversation.Settings) error {
	sess, err := s.GetSession(sessionID)
	if err != nil {
		return err
	}
	if _, ok := s.gateway.Profile(settings.Provider); !ok {
		return fmt.Errorf("%w: %s", provider.ErrUnknownProvider, settings.Provider)
	}

	current := sess.Controller.Settings()
	if settings.APIKey == "" && settings.Provider == current.Provider {
		settings.APIKey = current.APIKey
	}
	sess.Controller.SetSettings(settings)
	return nil
}

// UploadFiles replaces the whole project
func (s *Service) UploadFiles(ctx context.Context, sessionID string, files map[string]string) error {
	sess, err := s.GetSession(sessionID)
	if err != nil {
		return err
	}
	if err := sess.Store.Load(files); err != nil {
		return err
	}

	if err := sess.Sandbox.Clear(); err != nil {
		log.Printf(`{"level":"warn","message":"Failed to clear sandbox","session_id":"%s","error":"%v"}`, sessionID, err)
	}
	if err := mirrorAll(ctx, sess.Sandbox, sess.Store); err != nil {
		log.Printf(`{"level":"warn","message":"Failed to mirror project into sandbox","session_id":"%s","error":"%v"}`, sessionID, err)
	}
	sess.Controller.PublishFilesChanged(sess.Store.Keys())
	return nil
}

// WriteFile stores an editor change. It may race with an apply in progress;
// the later write wins.
func (s *Service) WriteFile(ctx context.Context, sessionID, path, content string) (models.FileRecord, error) {
	sess, err := s.GetSession(sessionID)
	if err != nil {
		return models.FileRecord{}, err
	}
	if err := sess.Store.Set(path, content); err != nil {
		return models.FileRecord{}, err
	}
	if err := sess.Sandbox.WriteFile(ctx, path, content); err != nil {
		log.Printf(`{"level":"warn","message":"Failed to mirror file into sandbox","session_id":"%s","path":"%s","error":"%v"}`, sessionID, path, err)
	}

	sess.Controller.PublishFilesChanged([]string{path})
	rec, _ := sess.Store.Get(path)
	return rec, nil
}

// Analyze returns the analysis snapshot for the session's project
func (s *Service) Analyze(sessionID string) (models.AnalysisSnapshot, error) {
	sess, err := s.GetSession(sessionID)
	if err != nil {
		return models.AnalysisSnapshot{}, err
	}
	return sess.Context.Analyze(sess.Store), nil
}

// ListProposals returns the proposal history of a session
func (s *Service) ListProposals(ctx context.Context, sessionID string) ([]models.Proposal, error) {
	if _, err := s.GetSession(sessionID); err != nil {
		return nil, err
	}
	return s.proposals.ListProposals(ctx, sessionID)
}

// RunPreview runs the pipeline registered for mode, streaming its log to subscribers
func (s *Service) RunPreview(ctx context.Context, sessionID, mode string) (*pipeline.PreviewResult, error) {
	sess, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if mode == "" {
		mode = pipeline.ModeSimulated
	}
	strategy, ok := s.pipelines[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrUnknownMode, mode)
	}

	return strategy.Run(ctx, pipeline.Request{SessionID: sessionID, Files: sess.Store}, sess.Controller.PublishLog)
}

// StartJanitor removes sessions idle for longer than the configured timeout
// until ctx is cancelled. It does nothing when no timeout is configured.
func (s *Service) StartJanitor(ctx context.Context, interval time.Duration) {
	if s.cfg.IdleTimeout <= 0 || interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.expireIdle()
			}
		}
	}()
}

func (s *Service) expireIdle() int {
	cutoff := s.now().Add(-s.cfg.IdleTimeout)

	s.mu.RLock()
	var expired []string
	for id, sess := range s.sessions {
		if sess.LastActive().Before(cutoff) && sess.Controller.State() == conversation.StateIdle {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range expired {
		if err := s.DeleteSession(id); err == nil {
			log.Printf(`{"level":"info","message":"Session expired","session_id":"%s"}`, id)
		}
	}
	return len(expired)
}

// Shutdown removes every session
func (s *Service) Shutdown() {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		_ = s.DeleteSession(id)
	}
}

type stopper interface {
	Stop(sessionID string)
}

func (s *Service) stopPipelines(sessionID string) {
	for _, p := range s.pipelines {
		if st, ok := p.(stopper); ok {
			st.Stop(sessionID)
		}
	}
}

func mirrorAll(ctx context.Context, rt *sandbox.Runtime, store *filestore.Store) error {
	for _, p := range store.Keys() {
		rec, _ := store.Get(p)
		if err := rt.WriteFile(ctx, p, rec.Content); err != nil {
			return fmt.Errorf("failed to mirror %s: %w", p, err)
		}
	}
	return nil
}
