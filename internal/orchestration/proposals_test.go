package orchestration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/agent-builder/code-editor/internal/models"
)

func TestValidateProposalTransition(t *testing.T) {
	tests := []struct {
		from, to models.ProposalStatus
		wantErr  bool
	}{
		{models.ProposalStatusPending, models.ProposalStatusApplying, false},
		{models.ProposalStatusPending, models.ProposalStatusRejected, false},
		{models.ProposalStatusPending, models.ProposalStatusApplied, true},
		{models.ProposalStatusApplying, models.ProposalStatusApplied, false},
		{models.ProposalStatusApplying, models.ProposalStatusFailed, false},
		{models.ProposalStatusApplying, models.ProposalStatusRejected, true},
		{models.ProposalStatusApplied, models.ProposalStatusRejected, true},
		{models.ProposalStatusRejected, models.ProposalStatusApplying, true},
		{"bogus", models.ProposalStatusApplying, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := validateProposalTransition(tt.from, tt.to)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMemoryProposalStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryProposalStore()
	changes := []models.ChangeRecord{{Path: "a.js", Content: "1", Action: models.ChangeActionCreate}}

	id, err := store.CreateProposal(ctx, "s1", changes)
	require.NoError(t, err)
	_, err = store.CreateProposal(ctx, "s2", changes)
	require.NoError(t, err)

	require.NoError(t, store.UpdateProposalStatus(ctx, id, models.ProposalStatusApplying))
	require.NoError(t, store.UpdateProposalStatus(ctx, id, models.ProposalStatusApplied))

	err = store.UpdateProposalStatus(ctx, id, models.ProposalStatusRejected)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	proposals, err := store.ListProposals(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, id, proposals[0].ID)
	assert.Equal(t, models.ProposalStatusApplied, proposals[0].Status)
	assert.NotNil(t, proposals[0].ResolvedAt)
	assert.Equal(t, changes, proposals[0].Changes)
}

func TestMemoryProposalStore_UnknownProposal(t *testing.T) {
	err := NewMemoryProposalStore().UpdateProposalStatus(context.Background(), "missing", models.ProposalStatusApplying)
	assert.ErrorIs(t, err, ErrProposalNotFound)
}
