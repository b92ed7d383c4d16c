package core

import "time"

// CallStatus is the lifecycle state of a single pending external call
// within a resume group.
type CallStatus string

const (
	CallPending   CallStatus = "pending"
	CallRunning   CallStatus = "running"
	CallCompleted CallStatus = "completed"
	CallFailed    CallStatus = "failed"
)

// Call is one external function invocation requested by a suspended
// Execution. Every row in a given resume group was produced by the same
// Suspended outcome and the Execution only resumes once all of them reach a
// terminal status.
type Call struct {
	ID            string `gorm:"primaryKey;size:64"`
	ExecutionID   string `gorm:"size:64;not null;index:idx_calls_resume_group,priority:1"`
	ResumeGroupID string `gorm:"size:64;not null;index:idx_calls_resume_group,priority:2"`
	CallID        string `gorm:"column:call_id;size:128;not null"`
	FunctionName  string `gorm:"size:255;not null"`
	Args          []byte
	Status        CallStatus `gorm:"size:16;not null;index:idx_calls_resume_group,priority:3"`
	JobHandle     string     `gorm:"column:job_handle;size:255;index"`
	Result        []byte
	Error         string
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

func (Call) TableName() string { return "calls" }
