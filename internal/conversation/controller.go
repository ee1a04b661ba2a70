package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bizmatters/agent-builder/code-editor/internal/analysis"
	"github.com/bizmatters/agent-builder/code-editor/internal/applier"
	"github.com/bizmatters/agent-builder/code-editor/internal/filestore"
	"github.com/bizmatters/agent-builder/code-editor/internal/metrics"
	"github.com/bizmatters/agent-builder/code-editor/internal/models"
	"github.com/bizmatters/agent-builder/code-editor/internal/parser"
	"github.com/bizmatters/agent-builder/code-editor/internal/provider"
)

var (
	ErrBusy             = errors.New("a turn is already in progress")
	ErrNoPendingChanges = errors.New("no changes are awaiting approval")
	ErrEmptyMessage     = errors.New("message is empty")
)

// State of the conversation turn machine
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingModel    State = "awaiting_model"
	StateAwaitingApproval State = "awaiting_approval"
	StateApplying         State = "applying"
)

var validTransitions = map[State][]State{
	StateIdle:             {StateAwaitingModel},
	StateAwaitingModel:    {StateIdle, StateAwaitingApproval, StateApplying},
	StateAwaitingApproval: {StateApplying, StateIdle, StateAwaitingModel},
	StateApplying:         {StateIdle},
}

// Turn outcomes
const (
	OutcomeNoChanges        = "no_changes"
	OutcomeAwaitingApproval = "awaiting_approval"
	OutcomeApplied          = "applied"
	OutcomeApplyFailed      = "apply_failed"
	OutcomeError            = "error"
)

const rejectionMessage = "Okay, I discarded the proposed changes. Your files were not modified."

// Gateway sends a prompt to a model provider
type Gateway interface {
	Send(ctx context.Context, providerID string, messages []models.ChatMessage, apiKey, model string) (string, error)
}

// Applier writes a batch of changes into the file store
type Applier interface {
	Apply(ctx context.Context, changes []models.ChangeRecord, onProgress applier.ProgressFunc) (int, error)
}

// ProposalRecorder keeps an audit trail of proposed change batches
type ProposalRecorder interface {
	CreateProposal(ctx context.Context, sessionID string, changes []models.ChangeRecord) (string, error)
	UpdateProposalStatus(ctx context.Context, proposalID string, status models.ProposalStatus) error
}

// Settings selects the provider used for the next turn
type Settings struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	APIKey   string `json:"-"`
}

// Config wires a Controller to its collaborators. Proposals, Metrics and
// Events are optional.
type Config struct {
	SessionID       string
	Store           *filestore.Store
	Context         *analysis.Builder
	Gateway         Gateway
	Applier         Applier
	Proposals       ProposalRecorder
	Metrics         *metrics.TurnMetrics
	Events          *Broadcaster
	HistoryMessages int
	Settings        Settings
}

// TurnResult summarizes how a submitted turn or an approval ended
type TurnResult struct {
	Outcome    string                     `json:"outcome"`
	Message    models.ConversationMessage `json:"message"`
	Changes    []models.ChangeRecord      `json:"changes,omitempty"`
	Applied    int                        `json:"applied"`
	ProposalID string                     `json:"proposal_id,omitempty"`
	Error      string                     `json:"error,omitempty"`
}

type pendingChanges struct {
	proposalID string
	changes    []models.ChangeRecord
}

// Controller runs one conversation: prompt, parse, approval gate and apply
type Controller struct {
	sessionID string
	store     *filestore.Store
	context   *analysis.Builder
	gateway   Gateway
	applier   Applier
	proposals ProposalRecorder
	metrics   *metrics.TurnMetrics
	events    *Broadcaster
	history   int
	tracer    trace.Tracer

	log *MessageLog

	mu       sync.Mutex
	state    State
	settings Settings
	pending  *pendingChanges
}

// NewController creates a controller in the Idle state
func NewController(cfg Config) *Controller {
	events := cfg.Events
	if events == nil {
		events = NewBroadcaster(cfg.SessionID)
	}
	builder := cfg.Context
	if builder == nil {
		builder = analysis.NewBuilder(0, 0)
	}
	history := cfg.HistoryMessages
	if history < 0 {
		history = 0
	}

	return &Controller{
		sessionID: cfg.SessionID,
		store:     cfg.Store,
		context:   builder,
		gateway:   cfg.Gateway,
		applier:   cfg.Applier,
		proposals: cfg.Proposals,
		metrics:   cfg.Metrics,
		events:    events,
		history:   history,
		tracer:    otel.Tracer("conversation-controller"),
		log:       NewMessageLog(),
		state:     StateIdle,
		settings:  cfg.Settings,
	}
}

// State returns the current turn state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Settings returns the provider settings
func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// SetSettings replaces the provider settings used by later turns
func (c *Controller) SetSettings(s Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = s
}

// Messages returns the conversation log
func (c *Controller) Messages() []models.ConversationMessage {
	return c.log.Messages()
}

// Subscribe streams session events until the returned cancel is called
func (c *Controller) Subscribe() (<-chan models.StreamEvent, func()) {
	return c.events.Subscribe()
}

// PublishLog forwards a log entry to subscribers
func (c *Controller) PublishLog(entry models.LogEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	c.events.Publish(models.EventTypePipelineLog, entry)
}

// PublishFilesChanged tells subscribers which paths were written
func (c *Controller) PublishFilesChanged(paths []string) {
	c.events.Publish(models.EventTypeFilesChanged, map[string]interface{}{"paths": paths})
}

// Reset discards the conversation and any held changes, marking them rejected.
// wipe, if set, runs before any new turn can start, so it can clear project
// state that a following Submit would otherwise read.
func (c *Controller) Reset(ctx context.Context, wipe func()) error {
	c.mu.Lock()
	if c.state == StateAwaitingModel || c.state == StateApplying {
		c.mu.Unlock()
		return ErrBusy
	}

	var rejected string
	if c.pending != nil {
		rejected = c.pending.proposalID
	}
	c.log.Reset()
	c.pending = nil
	c.state = StateIdle
	if wipe != nil {
		wipe()
	}
	c.events.Publish(models.EventTypeStateChanged, map[string]string{"state": string(StateIdle)})
	c.mu.Unlock()

	c.recordStatus(ctx, rejected, models.ProposalStatusRejected)
	return nil
}

// Close releases event subscribers
func (c *Controller) Close() {
	c.events.Close()
}

// Submit runs one user turn. Pre-turn rejections (busy, empty input) are
// returned as errors; provider and apply failures end the turn with an error
// message in the log and are reported through TurnResult.
func (c *Controller) Submit(ctx context.Context, text string) (*TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	c.mu.Lock()
	var rejected string
	switch c.state {
	case StateIdle:
	case StateAwaitingApproval:
		rejected = c.discardPendingLocked()
	default:
		c.mu.Unlock()
		return nil, ErrBusy
	}
	settings := c.settings
	history := c.log.Recent(c.history)
	c.appendLocked(models.ConversationMessage{Role: models.RoleUser, Content: text})
	c.transitionLocked(StateAwaitingModel)
	c.mu.Unlock()

	if rejected != "" {
		c.recordStatus(ctx, rejected, models.ProposalStatusRejected)
	}

	ctx, span := c.tracer.Start(ctx, "conversation.submit",
		trace.WithAttributes(
			attribute.String("session.id", c.sessionID),
			attribute.String("provider.id", settings.Provider),
		),
	)
	defer span.End()

	started := time.Now()
	c.metrics.RecordTurnStarted(ctx, settings.Provider)

	snap := c.context.Analyze(c.store)
	files := c.context.SelectRelevantFiles(c.store, text, 0)
	prompt := analysis.BuildPrompt(snap, files, history, text)

	raw, err := c.gateway.Send(ctx, settings.Provider, prompt, settings.APIKey, settings.Model)
	if err != nil {
		span.RecordError(err)
		log.Printf(`{"level":"error","message":"Provider request failed","session_id":"%s","provider":"%s","error":"%v"}`,
			c.sessionID, settings.Provider, err)
		c.metrics.RecordTurnFailed(ctx, settings.Provider, errorType(err), time.Since(started))

		c.mu.Lock()
		msg := c.appendLocked(models.ConversationMessage{
			Role:    models.RoleAssistant,
			Content: err.Error(),
			IsError: true,
		})
		c.transitionLocked(StateIdle)
		c.mu.Unlock()

		return &TurnResult{Outcome: OutcomeError, Message: msg, Error: err.Error()}, nil
	}

	parsed := parser.Parse(raw, c.store.PathSet())
	attachDiffs(parsed.Changes, func(p string) (string, bool) {
		rec, ok := c.store.Get(p)
		return rec.Content, ok
	})
	span.SetAttributes(
		attribute.Int("changes.count", len(parsed.Changes)),
		attribute.Bool("changes.needs_permission", parsed.NeedsPermission),
	)

	if !parsed.HasChanges {
		c.mu.Lock()
		msg := c.appendLocked(models.ConversationMessage{Role: models.RoleAssistant, Content: parsed.Explanation})
		c.transitionLocked(StateIdle)
		c.mu.Unlock()

		c.metrics.RecordTurnCompleted(ctx, settings.Provider, OutcomeNoChanges, time.Since(started))
		return &TurnResult{Outcome: OutcomeNoChanges, Message: msg}, nil
	}

	proposalID := c.recordProposal(ctx, parsed.Changes)
	proposal := models.ConversationMessage{
		Role:       models.RoleAssistant,
		Content:    parsed.Explanation,
		HasChanges: true,
		Changes:    parsed.Changes,
	}

	if parsed.NeedsPermission {
		c.mu.Lock()
		msg := c.appendLocked(proposal)
		c.pending = &pendingChanges{proposalID: proposalID, changes: parsed.Changes}
		c.transitionLocked(StateAwaitingApproval)
		c.mu.Unlock()

		c.metrics.RecordTurnCompleted(ctx, settings.Provider, OutcomeAwaitingApproval, time.Since(started))
		return &TurnResult{
			Outcome:    OutcomeAwaitingApproval,
			Message:    msg,
			Changes:    parsed.Changes,
			ProposalID: proposalID,
		}, nil
	}

	c.mu.Lock()
	c.appendLocked(proposal)
	c.transitionLocked(StateApplying)
	c.mu.Unlock()

	result := c.apply(ctx, proposalID, parsed.Changes)
	if result.Outcome == OutcomeApplied {
		c.metrics.RecordTurnCompleted(ctx, settings.Provider, result.Outcome, time.Since(started))
	} else {
		c.metrics.RecordTurnFailed(ctx, settings.Provider, "apply_failure", time.Since(started))
	}
	return result, nil
}

// Approve applies the changes held for approval
func (c *Controller) Approve(ctx context.Context) (*TurnResult, error) {
	c.mu.Lock()
	if c.state != StateAwaitingApproval || c.pending == nil {
		c.mu.Unlock()
		return nil, ErrNoPendingChanges
	}
	pending := c.pending
	c.pending = nil
	c.transitionLocked(StateApplying)
	c.mu.Unlock()

	ctx, span := c.tracer.Start(ctx, "conversation.approve",
		trace.WithAttributes(
			attribute.String("session.id", c.sessionID),
			attribute.Int("changes.count", len(pending.changes)),
		),
	)
	defer span.End()

	return c.apply(ctx, pending.proposalID, pending.changes), nil
}

// Reject discards the changes held for approval
func (c *Controller) Reject(ctx context.Context) (models.ConversationMessage, error) {
	c.mu.Lock()
	if c.state != StateAwaitingApproval || c.pending == nil {
		c.mu.Unlock()
		return models.ConversationMessage{}, ErrNoPendingChanges
	}
	proposalID := c.discardPendingLocked()
	msgs := c.log.Recent(1)
	c.transitionLocked(StateIdle)
	c.mu.Unlock()

	c.recordStatus(ctx, proposalID, models.ProposalStatusRejected)
	return msgs[0], nil
}

// discardPendingLocked drops held changes and acknowledges the rejection.
// It returns the proposal id to mark rejected.
func (c *Controller) discardPendingLocked() string {
	proposalID := c.pending.proposalID
	c.pending = nil
	c.appendLocked(models.ConversationMessage{Role: models.RoleAssistant, Content: rejectionMessage})
	return proposalID
}

// apply runs the applier from the Applying state and always returns to Idle
func (c *Controller) apply(ctx context.Context, proposalID string, changes []models.ChangeRecord) *TurnResult {
	c.recordStatus(ctx, proposalID, models.ProposalStatusApplying)

	progressID := uuid.NewString()
	c.upsert(progressID, models.ConversationMessage{
		Role:       models.RoleAssistant,
		Content:    fmt.Sprintf("Applying %d changes...", len(changes)),
		IsProgress: true,
	})

	applied, err := c.applier.Apply(ctx, changes, func(ev models.ProgressEvent) {
		content := fmt.Sprintf("%s %s (%d/%d)", ev.Action, ev.CurrentFile, ev.Current, ev.Total)
		if ev.Action == models.ProgressComplete {
			content = fmt.Sprintf("Finishing up (%d/%d)", ev.Current, ev.Total)
		}
		c.upsert(progressID, models.ConversationMessage{
			Role:       models.RoleAssistant,
			Content:    content,
			IsProgress: true,
		})
	})
	c.metrics.RecordChangesApplied(ctx, applied)

	paths := make([]string, 0, applied)
	for _, ch := range changes[:applied] {
		paths = append(paths, ch.Path)
	}
	if applied > 0 {
		c.PublishFilesChanged(paths)
	}

	if err != nil {
		log.Printf(`{"level":"error","message":"Failed to apply changes","session_id":"%s","applied":%d,"total":%d,"error":"%v"}`,
			c.sessionID, applied, len(changes), err)
		c.recordStatus(ctx, proposalID, models.ProposalStatusFailed)

		msg := c.finish(progressID, models.ConversationMessage{
			Role:    models.RoleAssistant,
			Content: fmt.Sprintf("Failed to apply changes: %d of %d succeeded before the error. %v", applied, len(changes), err),
			IsError: true,
		})
		return &TurnResult{
			Outcome:    OutcomeApplyFailed,
			Message:    msg,
			Changes:    changes,
			Applied:    applied,
			ProposalID: proposalID,
			Error:      err.Error(),
		}
	}

	c.recordStatus(ctx, proposalID, models.ProposalStatusApplied)
	msg := c.finish(progressID, models.ConversationMessage{
		Role:    models.RoleAssistant,
		Content: fmt.Sprintf("Applied %d changes: %s", applied, strings.Join(uniquePaths(paths), ", ")),
	})
	return &TurnResult{
		Outcome:    OutcomeApplied,
		Message:    msg,
		Changes:    changes,
		Applied:    applied,
		ProposalID: proposalID,
	}
}

// finish replaces the progress message with msg and returns to Idle
func (c *Controller) finish(progressID string, msg models.ConversationMessage) models.ConversationMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	out, replaced := c.log.Upsert(progressID, msg)
	c.publishMessage(out, replaced)
	c.transitionLocked(StateIdle)
	return out
}

func (c *Controller) upsert(progressID string, msg models.ConversationMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out, replaced := c.log.Upsert(progressID, msg)
	c.publishMessage(out, replaced)
}

func (c *Controller) appendLocked(msg models.ConversationMessage) models.ConversationMessage {
	out := c.log.Append(msg)
	c.publishMessage(out, false)
	return out
}

func (c *Controller) publishMessage(msg models.ConversationMessage, replaced bool) {
	eventType := models.EventTypeMessageAppended
	if replaced {
		eventType = models.EventTypeMessageUpdated
	}
	c.events.Publish(eventType, msg)
}

// transitionLocked moves to next; an invalid move is a programming error and is logged
func (c *Controller) transitionLocked(next State) {
	if !validTransition(c.state, next) {
		log.Printf(`{"level":"error","message":"Invalid conversation state transition","session_id":"%s","from":"%s","to":"%s"}`,
			c.sessionID, c.state, next)
	}
	c.state = next
	c.events.Publish(models.EventTypeStateChanged, map[string]string{"state": string(next)})
}

func validTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (c *Controller) recordProposal(ctx context.Context, changes []models.ChangeRecord) string {
	if c.proposals == nil {
		return ""
	}
	id, err := c.proposals.CreateProposal(ctx, c.sessionID, changes)
	if err != nil {
		log.Printf(`{"level":"warn","message":"Failed to record proposal","session_id":"%s","error":"%v"}`, c.sessionID, err)
		return ""
	}
	return id
}

func (c *Controller) recordStatus(ctx context.Context, proposalID string, status models.ProposalStatus) {
	if c.proposals == nil || proposalID == "" {
		return
	}
	if err := c.proposals.UpdateProposalStatus(ctx, proposalID, status); err != nil {
		log.Printf(`{"level":"warn","message":"Failed to update proposal status","session_id":"%s","proposal_id":"%s","status":"%s","error":"%v"}`,
			c.sessionID, proposalID, status, err)
	}
}

func errorType(err error) string {
	var providerErr *provider.ProviderError
	var timeoutErr *provider.TimeoutError
	switch {
	case errors.Is(err, provider.ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, provider.ErrUnknownProvider):
		return "unknown_provider"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &providerErr):
		return "provider_error"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "unavailable"
	}
}

func uniquePaths(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
