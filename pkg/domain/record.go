package domain

import (
	"encoding/json"
	"time"
)

// ExecutionStatus is the lifecycle status of a persisted run record.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "Pending"
	ExecutionRunning   ExecutionStatus = "Running"
	ExecutionCompleted ExecutionStatus = "Completed"
	ExecutionFailed    ExecutionStatus = "Failed"
	ExecutionCancelled ExecutionStatus = "Cancelled"
	ExecutionTimeout   ExecutionStatus = "Timeout"
)

// Terminal reports whether the status is final.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionCompleted, ExecutionFailed, ExecutionCancelled, ExecutionTimeout:
		return true
	}
	return false
}

// ExecutionStatusFor maps a run outcome onto a record status.
func ExecutionStatusFor(s RunStatus) ExecutionStatus {
	switch s {
	case RunStatusSuccess:
		return ExecutionCompleted
	case RunStatusFailed:
		return ExecutionFailed
	case RunStatusStopped:
		return ExecutionCancelled
	}
	return ExecutionRunning
}

// RunMode is how the host dispatched a stored run.
type RunMode string

const (
	RunModeLocal  RunMode = "Local"
	RunModeHTTP   RunMode = "Http"
	RunModeQueued RunMode = "Queued"
)

// RunRecord is the persisted state of a run, as tracked by execution hosts.
type RunRecord struct {
	ID               string          `json:"id"`
	BoardID          string          `json:"board_id"`
	Version          string          `json:"version,omitempty"`
	EventID          string          `json:"event_id,omitempty"`
	NodeID           string          `json:"node_id,omitempty"`
	Status           ExecutionStatus `json:"status"`
	Mode             RunMode         `json:"mode"`
	InputPayloadLen  int64           `json:"input_payload_len"`
	OutputPayloadLen int64           `json:"output_payload_len"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	Progress         int32           `json:"progress"`
	CurrentStep      string          `json:"current_step,omitempty"`
	StartedAt        *time.Time      `json:"started_at,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	ExpiresAt        *time.Time      `json:"expires_at,omitempty"`
	UserID           string          `json:"user_id,omitempty"`
	AppID            string          `json:"app_id"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// RunUpdate is a partial update of a RunRecord. Nil fields are left unchanged.
type RunUpdate struct {
	Status           *ExecutionStatus
	Progress         *int32
	CurrentStep      *string
	OutputPayloadLen *int64
	ErrorMessage     *string
	StartedAt        *time.Time
	CompletedAt      *time.Time
}

// Apply writes the set fields of u into r and bumps UpdatedAt.
func (u RunUpdate) Apply(r *RunRecord, now time.Time) {
	if u.Status != nil {
		r.Status = *u.Status
	}
	if u.Progress != nil {
		r.Progress = *u.Progress
	}
	if u.CurrentStep != nil {
		r.CurrentStep = *u.CurrentStep
	}
	if u.OutputPayloadLen != nil {
		r.OutputPayloadLen = *u.OutputPayloadLen
	}
	if u.ErrorMessage != nil {
		r.ErrorMessage = *u.ErrorMessage
	}
	if u.StartedAt != nil {
		t := *u.StartedAt
		r.StartedAt = &t
	}
	if u.CompletedAt != nil {
		t := *u.CompletedAt
		r.CompletedAt = &t
	}
	r.UpdatedAt = now
}

// EventRecord is a persisted stream event of a run, ordered by Sequence.
type EventRecord struct {
	ID        string          `json:"id"`
	RunID     string          `json:"run_id"`
	Sequence  int64           `json:"sequence"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	Delivered bool            `json:"delivered"`
	ExpiresAt time.Time       `json:"expires_at"`
	CreatedAt time.Time       `json:"created_at"`
}

// EventQuery selects events of one run.
type EventQuery struct {
	RunID           string
	AfterSequence   int64
	Limit           int
	OnlyUndelivered bool
}
