package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bizmatters/agent-builder/code-editor/internal/models"
)

var (
	ErrInvalidTransition = errors.New("invalid proposal status transition")
	ErrProposalNotFound  = errors.New("proposal not found")
)

// ProposalStore records proposed change batches and their outcome
type ProposalStore interface {
	CreateProposal(ctx context.Context, sessionID string, changes []models.ChangeRecord) (string, error)
	UpdateProposalStatus(ctx context.Context, proposalID string, status models.ProposalStatus) error
	ListProposals(ctx context.Context, sessionID string) ([]models.Proposal, error)
}

// validateProposalTransition validates if a status transition is allowed
func validateProposalTransition(currentStatus, newStatus models.ProposalStatus) error {
	validTransitions := map[models.ProposalStatus][]models.ProposalStatus{
		models.ProposalStatusPending:  {models.ProposalStatusApplying, models.ProposalStatusRejected},
		models.ProposalStatusApplying: {models.ProposalStatusApplied, models.ProposalStatusFailed},
		models.ProposalStatusApplied:  {}, // Terminal state
		models.ProposalStatusFailed:   {}, // Terminal state
		models.ProposalStatusRejected: {}, // Terminal state
	}

	allowedNext, exists := validTransitions[currentStatus]
	if !exists {
		return fmt.Errorf("%w: unknown current status %s", ErrInvalidTransition, currentStatus)
	}

	for _, allowed := range allowedNext {
		if allowed == newStatus {
			return nil
		}
	}

	return fmt.Errorf("%w: from %s to %s", ErrInvalidTransition, currentStatus, newStatus)
}

func isTerminal(status models.ProposalStatus) bool {
	switch status {
	case models.ProposalStatusApplied, models.ProposalStatusFailed, models.ProposalStatusRejected:
		return true
	}
	return false
}

// MemoryProposalStore keeps proposals for the lifetime of the process
type MemoryProposalStore struct {
	mu        sync.RWMutex
	proposals map[string]*models.Proposal
	now       func() time.Time
}

// NewMemoryProposalStore creates an empty in-memory store
func NewMemoryProposalStore() *MemoryProposalStore {
	return &MemoryProposalStore{
		proposals: make(map[string]*models.Proposal),
		now:       time.Now,
	}
}

// CreateProposal stores a pending proposal
func (m *MemoryProposalStore) CreateProposal(ctx context.Context, sessionID string, changes []models.ChangeRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := &models.Proposal{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Status:    models.ProposalStatusPending,
		Changes:   append([]models.ChangeRecord(nil), changes...),
		CreatedAt: m.now().UTC(),
	}
	m.proposals[p.ID] = p
	return p.ID, nil
}

// UpdateProposalStatus moves a proposal to status
func (m *MemoryProposalStore) UpdateProposalStatus(ctx context.Context, proposalID string, status models.ProposalStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.proposals[proposalID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProposalNotFound, proposalID)
	}
	if err := validateProposalTransition(p.Status, status); err != nil {
		return err
	}

	p.Status = status
	if isTerminal(status) {
		resolved := m.now().UTC()
		p.ResolvedAt = &resolved
	}
	return nil
}

// ListProposals returns a session's proposals, oldest first
func (m *MemoryProposalStore) ListProposals(ctx context.Context, sessionID string) ([]models.Proposal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Proposal
	for _, p := range m.proposals {
		if p.SessionID == sessionID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// PostgresProposalStore persists proposals with a JSONB audit trail
type PostgresProposalStore struct {
	pool *pgxpool.Pool
}

// NewPostgresProposalStore creates a store on an existing pool
func NewPostgresProposalStore(pool *pgxpool.Pool) *PostgresProposalStore {
	return &PostgresProposalStore{pool: pool}
}

// EnsureSchema creates the proposals table if it does not exist
func (s *PostgresProposalStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS editor_proposals (
			id          UUID PRIMARY KEY,
			session_id  TEXT NOT NULL,
			status      TEXT NOT NULL,
			changes     JSONB NOT NULL,
			audit_trail JSONB NOT NULL DEFAULT '[]'::jsonb,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			resolved_at TIMESTAMPTZ
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create proposals table: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS editor_proposals_session_idx
			ON editor_proposals (session_id, created_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to create proposals index: %w", err)
	}
	return nil
}

// CreateProposal inserts a pending proposal
func (s *PostgresProposalStore) CreateProposal(ctx context.Context, sessionID string, changes []models.ChangeRecord) (string, error) {
	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return "", fmt.Errorf("failed to encode changes: %w", err)
	}

	var proposalID uuid.UUID
	err = s.pool.QueryRow(ctx,
		`INSERT INTO editor_proposals (id, session_id, status, changes)
		 VALUES ($1, $2, $3, $4::jsonb)
		 RETURNING id`,
		uuid.New(), sessionID, string(models.ProposalStatusPending), string(changesJSON),
	).Scan(&proposalID)

	if err != nil {
		return "", fmt.Errorf("failed to create proposal: %w", err)
	}

	return proposalID.String(), nil
}

// UpdateProposalStatus moves a proposal to status inside a row-locking transaction
func (s *PostgresProposalStore) UpdateProposalStatus(ctx context.Context, proposalID string, status models.ProposalStatus) error {
	id, err := uuid.Parse(proposalID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrProposalNotFound, proposalID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	currentStatus, err := s.lockProposalForUpdate(ctx, tx, id)
	if err != nil {
		return err
	}

	if err := validateProposalTransition(currentStatus, status); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE editor_proposals
		SET status = $1,
		    resolved_at = CASE WHEN $2::boolean THEN NOW() ELSE resolved_at END
		WHERE id = $3
	`, string(status), isTerminal(status), id)

	if err != nil {
		return fmt.Errorf("failed to update proposal status: %w", err)
	}

	if err := s.appendAuditTrail(ctx, tx, id, currentStatus, status); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListProposals returns a session's proposals, oldest first
func (s *PostgresProposalStore) ListProposals(ctx context.Context, sessionID string) ([]models.Proposal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, status, changes, created_at, resolved_at
		FROM editor_proposals
		WHERE session_id = $1
		ORDER BY created_at, id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	defer rows.Close()

	var proposals []models.Proposal
	for rows.Next() {
		var (
			p           models.Proposal
			id          uuid.UUID
			status      string
			changesJSON []byte
		)
		if err := rows.Scan(&id, &p.SessionID, &status, &changesJSON, &p.CreatedAt, &p.ResolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		if err := json.Unmarshal(changesJSON, &p.Changes); err != nil {
			return nil, fmt.Errorf("failed to decode proposal changes: %w", err)
		}
		p.ID = id.String()
		p.Status = models.ProposalStatus(status)
		proposals = append(proposals, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read proposals: %w", err)
	}

	return proposals, nil
}

// lockProposalForUpdate locks a proposal row for the rest of the transaction
func (s *PostgresProposalStore) lockProposalForUpdate(ctx context.Context, tx pgx.Tx, proposalID uuid.UUID) (models.ProposalStatus, error) {
	var status string

	err := tx.QueryRow(ctx, `
		SELECT status FROM editor_proposals
		WHERE id = $1
		FOR UPDATE
	`, proposalID).Scan(&status)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrProposalNotFound, proposalID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to lock proposal: %w", err)
	}

	return models.ProposalStatus(status), nil
}

func (s *PostgresProposalStore) appendAuditTrail(ctx context.Context, tx pgx.Tx, proposalID uuid.UUID, from, to models.ProposalStatus) error {
	entry, err := json.Marshal(map[string]string{
		"from":      string(from),
		"to":        string(to),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE editor_proposals
		SET audit_trail = audit_trail || jsonb_build_array($1::jsonb)
		WHERE id = $2
	`, string(entry), proposalID)

	if err != nil {
		return fmt.Errorf("failed to create audit trail: %w", err)
	}

	return nil
}
