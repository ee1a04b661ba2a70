package models

import (
	"time"
)

// Role of a conversation participant
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationMessage is one entry in a session's chat log
type ConversationMessage struct {
	ID         string         `json:"id"`
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	Timestamp  time.Time      `json:"timestamp"`
	HasChanges bool           `json:"has_changes,omitempty"`
	Changes    []ChangeRecord `json:"changes,omitempty"`
	IsError    bool           `json:"is_error,omitempty"`
	IsProgress bool           `json:"is_progress,omitempty"`
	ProgressID string         `json:"progress_id,omitempty"`
}

// ChatMessage is the provider-neutral {role, content} pair sent to a model
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ProposalStatus tracks a batch of proposed changes
type ProposalStatus string

const (
	ProposalStatusPending  ProposalStatus = "pending"
	ProposalStatusApplying ProposalStatus = "applying"
	ProposalStatusApplied  ProposalStatus = "applied"
	ProposalStatusFailed   ProposalStatus = "failed"
	ProposalStatusRejected ProposalStatus = "rejected"
)

// Proposal is the audit record of one set of model-proposed changes
type Proposal struct {
	ID         string         `json:"id" db:"id"`
	SessionID  string         `json:"session_id" db:"session_id"`
	Status     ProposalStatus `json:"status" db:"status"`
	Changes    []ChangeRecord `json:"changes" db:"changes"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty" db:"resolved_at"`
}
