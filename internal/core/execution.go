// Package core defines the durable-workflow domain model: the two persisted
// entities (Execution, Call), the interfaces components are built against
// (Interpreter, Storage, Executor), and the error and event vocabulary
// shared across the rest of the tree.
package core

import "time"

// Status is the lifecycle state of an Execution.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusWaiting   Status = "waiting"
	StatusResuming  Status = "resuming"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is ever valid from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Execution is one durable run of a workflow program. It is the unit of
// scheduling, suspension, and resumption.
type Execution struct {
	ID                  string     `gorm:"primaryKey;size:64"`
	Code                []byte     `gorm:"not null"`
	ExternalFunctions   []byte     `gorm:"column:external_functions"`
	Inputs              []byte     `gorm:"column:inputs"`
	Output              []byte     `gorm:"column:output"`
	State               []byte     `gorm:"column:state"`
	Status              Status     `gorm:"size:16;not null;index"`
	CurrentResumeGroupID *string   `gorm:"column:current_resume_group_id;size:64;index"`
	Error               string     `gorm:"column:error"`
	CreatedAt           time.Time  `gorm:"index"`
	UpdatedAt           time.Time
	CompletedAt         *time.Time
}

// TableName pins the GORM table name so renaming the Go type never moves data.
func (Execution) TableName() string { return "executions" }
