package approval_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltgrid/shift-engine/approval"
	"github.com/voltgrid/shift-engine/reconcile"
	"github.com/voltgrid/shift-engine/reconcile/store"
)

// seedOvertime creates one pending overtime record and returns its ID.
func seedOvertime(t *testing.T, mem *store.Memory) string {
	t.Helper()

	overtime := &reconcile.Overtime{
		WorkerID:      5,
		TeamID:        10,
		ReferenceDate: reconcile.NewRefDate(2024, time.March, 1),
		Kind:          reconcile.UnscheduledExtra,
		HoursWorked:   decimal.NewFromInt(8),
		Status:        reconcile.StatusPending,
	}
	_, err := mem.Apply(context.Background(), []reconcile.Intent{
		{Kind: reconcile.IntentOvertime, Op: reconcile.OpCreate, Overtime: overtime},
	})
	require.NoError(t, err)

	records := mem.Overtimes()
	require.Len(t, records, 1)
	return records[0].ID
}

func TestDecide_Approve(t *testing.T) {
	// GIVEN: A pending overtime record
	mem := store.NewMemory()
	id := seedOvertime(t, mem)
	workflow := approval.NewWorkflow(mem)

	// WHEN: A supervisor approves it
	decidedAt := time.Date(2024, time.March, 2, 9, 0, 0, 0, time.UTC)
	updated, err := workflow.Decide(context.Background(), id, approval.Decision{
		Action:  approval.ActionApprove,
		Notes:   "confirmed with dispatch",
		ActorID: "supervisor-12",
		At:      decidedAt,
	})

	// THEN: The record is approved with the audit fields set
	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusApproved, updated.Status)
	assert.Equal(t, "confirmed with dispatch", updated.Notes)
	assert.Equal(t, "supervisor-12", updated.DecidedBy)
	require.NotNil(t, updated.DecidedAt)
	assert.True(t, updated.DecidedAt.Equal(decidedAt))
}

func TestDecide_Reject(t *testing.T) {
	mem := store.NewMemory()
	id := seedOvertime(t, mem)
	workflow := approval.NewWorkflow(mem)

	updated, err := workflow.Decide(context.Background(), id, approval.Decision{
		Action: approval.ActionReject, ActorID: "supervisor-12",
	})

	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusRejected, updated.Status)
}

func TestDecide_SecondDecision_Rejected(t *testing.T) {
	// GIVEN: A record already approved
	mem := store.NewMemory()
	id := seedOvertime(t, mem)
	workflow := approval.NewWorkflow(mem)

	_, err := workflow.Decide(context.Background(), id, approval.Decision{
		Action: approval.ActionApprove, ActorID: "supervisor-12",
	})
	require.NoError(t, err)

	// WHEN: A second decision targets the same record
	_, err = workflow.Decide(context.Background(), id, approval.Decision{
		Action: approval.ActionReject, ActorID: "supervisor-99",
	})

	// THEN: It fails with the current status and the record is unchanged
	require.Error(t, err)
	assert.True(t, reconcile.IsInvalidState(err))

	var stateErr *reconcile.InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, reconcile.StatusApproved, stateErr.Current)

	got, err := mem.GetOvertime(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusApproved, got.Status)
	assert.Equal(t, "supervisor-12", got.DecidedBy)
}

func TestDecide_UnknownRecord(t *testing.T) {
	workflow := approval.NewWorkflow(store.NewMemory())

	_, err := workflow.Decide(context.Background(), "no-such-id", approval.Decision{
		Action: approval.ActionApprove,
	})

	require.Error(t, err)
	assert.True(t, reconcile.IsNotFound(err))
}

func TestDecide_Validation(t *testing.T) {
	mem := store.NewMemory()
	id := seedOvertime(t, mem)
	workflow := approval.NewWorkflow(mem)

	t.Run("unknown action", func(t *testing.T) {
		_, err := workflow.Decide(context.Background(), id, approval.Decision{Action: "escalate"})
		require.Error(t, err)
		assert.True(t, reconcile.IsClientError(err))
	})

	t.Run("notes too long", func(t *testing.T) {
		_, err := workflow.Decide(context.Background(), id, approval.Decision{
			Action: approval.ActionApprove,
			Notes:  strings.Repeat("x", approval.MaxNotesLength+1),
		})
		require.Error(t, err)
		assert.True(t, reconcile.IsClientError(err))
	})

	t.Run("notes length counts characters not bytes", func(t *testing.T) {
		other := store.NewMemory()
		otherID := seedOvertime(t, other)
		otherWorkflow := approval.NewWorkflow(other)

		_, err := otherWorkflow.Decide(context.Background(), otherID, approval.Decision{
			Action: approval.ActionReject,
			Notes:  strings.Repeat("ç", approval.MaxNotesLength+1),
		})
		require.Error(t, err)
		assert.True(t, reconcile.IsClientError(err))

		// 1000 two-byte characters are within the bound.
		updated, err := otherWorkflow.Decide(context.Background(), otherID, approval.Decision{
			Action: approval.ActionApprove,
			Notes:  strings.Repeat("ç", approval.MaxNotesLength),
		})
		require.NoError(t, err)
		assert.Equal(t, reconcile.StatusApproved, updated.Status)
	})

	// Validation failures never mutate the record.
	got, err := mem.GetOvertime(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusPending, got.Status)
}
