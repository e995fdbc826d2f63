package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is waiting for an agent.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusAssigned indicates an agent slot has been reserved for the task.
	TaskStatusAssigned TaskStatus = "assigned"
	// TaskStatusInProgress indicates the assigned agent is executing the task.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCollaborating indicates the task is suspended waiting for its
	// sub-tasks to finish.
	TaskStatusCollaborating TaskStatus = "collaborating"
	// TaskStatusCancelling indicates cancellation was requested and the owning
	// agent has not yet observed it.
	TaskStatusCancelling TaskStatus = "cancelling"
	// TaskStatusCompleted indicates the task finished with a result.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task finished with an error.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusCancelled indicates the task was cancelled before completing.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusAssigned, TaskStatusInProgress,
		TaskStatusCollaborating, TaskStatusCancelling,
		TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transitions are allowed from the status.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// transitions is the set of allowed status edges. A task's status is
// monotonic along these edges; terminal states have no outgoing edges.
var transitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:       {TaskStatusAssigned, TaskStatusFailed, TaskStatusCancelled},
	TaskStatusAssigned:      {TaskStatusInProgress, TaskStatusCancelling},
	TaskStatusInProgress:    {TaskStatusCollaborating, TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelling},
	TaskStatusCollaborating: {TaskStatusInProgress, TaskStatusCancelling},
	TaskStatusCancelling:    {TaskStatusCancelled},
}

// CanTransition reports whether moving from s to next is an allowed edge.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Task represents a unit of work flowing through the delegation engine.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// ParentTaskID is the ID of the parent task, set for sub-tasks spawned
	// during collaboration.
	ParentTaskID string `json:"parent_task_id,omitempty"`
	// Description is the free-form task request.
	Description string `json:"description"`
	// RequiredCapabilities is the ordered capability tag set produced by
	// classification, most specific first.
	RequiredCapabilities []CapabilityTag `json:"required_capabilities,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// AssignedAgentID is the ID of the agent holding the reservation.
	AssignedAgentID string `json:"assigned_agent_id,omitempty"`
	// CreatedAt is when the task was submitted.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the task reached a terminal state, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Result is the structured payload produced by the agent.
	Result map[string]any `json:"result,omitempty"`
	// Error contains the failure reason if the task failed.
	Error string `json:"error,omitempty"`
	// Attempts is the number of assignment attempts made for the task.
	Attempts int `json:"attempts,omitempty"`
}

// SubTaskRequest describes a sub-task an agent wants delegated while
// collaborating on a parent task.
type SubTaskRequest struct {
	// Description is the sub-task request text.
	Description string `json:"description"`
	// Capabilities optionally pins the capability tags for the sub-task,
	// bypassing classification.
	Capabilities []CapabilityTag `json:"capabilities,omitempty"`
}

// SubTaskResult carries a terminal sub-task outcome back to the parent
// agent's resume call. A failed sub-task is data, not an error: the parent
// decides how to proceed.
type SubTaskResult struct {
	// TaskID is the sub-task's ID.
	TaskID string `json:"task_id"`
	// Description is the sub-task request text.
	Description string `json:"description"`
	// Status is the terminal status the sub-task reached.
	Status TaskStatus `json:"status"`
	// Result is the sub-task's payload, if it completed.
	Result map[string]any `json:"result,omitempty"`
	// Error is the sub-task's failure reason, if it failed.
	Error string `json:"error,omitempty"`
}
