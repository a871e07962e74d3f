package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorkOrderTransitions(t *testing.T) {
	require.True(t, WorkOrderStatusAvailable.CanTransitionTo(WorkOrderStatusInProgress))
	require.True(t, WorkOrderStatusAvailable.CanTransitionTo(WorkOrderStatusCancelled))
	require.False(t, WorkOrderStatusAvailable.CanTransitionTo(WorkOrderStatusCompleted))
	require.True(t, WorkOrderStatusInProgress.CanTransitionTo(WorkOrderStatusCompleted))
	require.False(t, WorkOrderStatusCompleted.CanTransitionTo(WorkOrderStatusCancelled))
	require.False(t, WorkOrderStatusCancelled.CanTransitionTo(WorkOrderStatusInProgress))
}

func TestWorkOrderOverdue(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	order := WorkOrder{Status: WorkOrderStatusInProgress, Deadline: now.Add(-time.Second)}
	require.True(t, order.IsOverdue(now))

	order.Status = WorkOrderStatusCompleted
	require.False(t, order.IsOverdue(now))

	order.Status = WorkOrderStatusAvailable
	order.Deadline = now
	require.False(t, order.IsOverdue(now))
}

func TestAllCompleted(t *testing.T) {
	require.False(t, AllCompleted(nil))
	team := []WorkOrderTechnician{
		{TechnicianID: "a", Status: TechnicianStatusCompleted},
		{TechnicianID: "b", Status: TechnicianStatusInProgress},
	}
	require.False(t, AllCompleted(team))

	member, ok := FindMember(team, "b")
	require.True(t, ok)
	member.Status = TechnicianStatusCompleted
	require.True(t, AllCompleted(team))

	_, ok = FindMember(team, "c")
	require.False(t, ok)
}
