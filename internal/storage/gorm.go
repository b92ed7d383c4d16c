// Package storage implements the durable Store against GORM, following the
// transactional-claim and ownership-checked-update patterns the teacher
// repository uses for its job queue (internal/storage/pool.go carries the
// connection-pool tuning knobs; this file carries the state machine's
// conditional transitions).
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdziat/durableflow/internal/core"
	"github.com/jdziat/durableflow/internal/security"
)

// GormStorage implements core.Storage using GORM.
type GormStorage struct {
	db   *gorm.DB
	pool []PoolOption
}

// NewGormStorage wraps an already-opened *gorm.DB. Callers typically open db
// with gorm.io/driver/sqlite or another database/sql-compatible driver.
func NewGormStorage(db *gorm.DB, opts ...PoolOption) *GormStorage {
	return &GormStorage{db: db, pool: opts}
}

// DB exposes the underlying *gorm.DB for callers that need raw query access.
func (s *GormStorage) DB() *gorm.DB { return s.db }

func (s *GormStorage) Start(ctx context.Context) error {
	return ConfigurePool(s.db, s.pool...)
}

func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&core.Execution{}, &core.Call{})
}

func (s *GormStorage) CreateExecution(ctx context.Context, exec *core.Execution) error {
	if exec.ID == "" {
		exec.ID = uuid.New().String()
	}
	if exec.Status == "" {
		exec.Status = core.StatusScheduled
	}
	return s.db.WithContext(ctx).Create(exec).Error
}

func (s *GormStorage) ClaimScheduled(ctx context.Context) (*core.Execution, error) {
	var exec core.Execution
	claimed := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Where("status = ?", core.StatusScheduled).
			Order("created_at ASC").
			First(&exec)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return nil
			}
			return result.Error
		}

		res := tx.Model(&core.Execution{}).
			Where("id = ? AND status = ?", exec.ID, core.StatusScheduled).
			Updates(map[string]any{"status": core.StatusRunning, "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Another worker claimed it between our read and our update.
			exec = core.Execution{}
			return nil
		}
		exec.Status = core.StatusRunning
		claimed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, nil
	}
	return &exec, nil
}

func (s *GormStorage) SaveSuspension(ctx context.Context, exec *core.Execution, calls []core.Call, callerStatus core.Status) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&core.Execution{}).
			Where("id = ? AND status = ?", exec.ID, callerStatus).
			Updates(map[string]any{
				"status":                  core.StatusWaiting,
				"current_resume_group_id": exec.CurrentResumeGroupID,
				"state":                   exec.State,
				"updated_at":              time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &core.ConflictError{Kind: "claim", Detail: "execution status changed before suspension could be recorded"}
		}

		for i := range calls {
			if calls[i].ID == "" {
				calls[i].ID = uuid.New().String()
			}
			if calls[i].Status == "" {
				calls[i].Status = core.CallPending
			}
		}
		if len(calls) == 0 {
			return nil
		}
		return tx.Create(&calls).Error
	})
}

func (s *GormStorage) CompleteCall(ctx context.Context, executionID, resumeGroupID, callID string, result []byte, callErr string) error {
	callErr = security.SanitizeErrorMessage(callErr)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var call core.Call
		err := tx.Where("execution_id = ? AND resume_group_id = ? AND call_id = ?",
			executionID, resumeGroupID, callID).First(&call).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &core.NotFoundError{Kind: "call", ID: callID}
			}
			return err
		}

		newStatus := core.CallCompleted
		if callErr != "" {
			newStatus = core.CallFailed
		}

		if call.Status == core.CallCompleted || call.Status == core.CallFailed {
			return idempotencyCheck(call, newStatus, result, callErr)
		}

		now := time.Now()
		res := tx.Model(&core.Call{}).
			Where("id = ? AND status IN ?", call.ID, []core.CallStatus{core.CallPending, core.CallRunning}).
			Updates(map[string]any{
				"status":       newStatus,
				"result":       result,
				"error":        callErr,
				"completed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race to another completion; re-read and apply the
			// same idempotency rule as if we'd seen it terminal up front.
			var latest core.Call
			if err := tx.First(&latest, "id = ?", call.ID).Error; err != nil {
				return err
			}
			return idempotencyCheck(latest, newStatus, result, callErr)
		}
		return nil
	})
}

func idempotencyCheck(existing core.Call, newStatus core.CallStatus, result []byte, callErr string) error {
	if existing.Status != newStatus || existing.Error != callErr || string(existing.Result) != string(result) {
		return &core.ConflictError{Kind: "completion", Detail: "call already completed with a different result"}
	}
	return nil
}

func (s *GormStorage) BatchStatus(ctx context.Context, executionID, resumeGroupID string) (bool, []core.Call, error) {
	var calls []core.Call
	err := s.db.WithContext(ctx).
		Where("execution_id = ? AND resume_group_id = ?", executionID, resumeGroupID).
		Find(&calls).Error
	if err != nil {
		return false, nil, err
	}
	done := true
	for _, c := range calls {
		if c.Status != core.CallCompleted && c.Status != core.CallFailed {
			done = false
			break
		}
	}
	return done, calls, nil
}

func (s *GormStorage) ClaimResume(ctx context.Context, executionID, resumeGroupID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&core.Execution{}).
		Where("id = ? AND status = ? AND current_resume_group_id = ?",
			executionID, core.StatusWaiting, resumeGroupID).
		Updates(map[string]any{"status": core.StatusResuming, "updated_at": time.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStorage) LoadForResume(ctx context.Context, executionID string) (*core.Execution, []core.CallResult, error) {
	var exec core.Execution
	if err := s.db.WithContext(ctx).First(&exec, "id = ?", executionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, &core.NotFoundError{Kind: "execution", ID: executionID}
		}
		return nil, nil, err
	}
	if exec.CurrentResumeGroupID == nil {
		return &exec, nil, nil
	}

	var calls []core.Call
	if err := s.db.WithContext(ctx).
		Where("execution_id = ? AND resume_group_id = ?", executionID, *exec.CurrentResumeGroupID).
		Find(&calls).Error; err != nil {
		return nil, nil, err
	}

	results := make([]core.CallResult, len(calls))
	for i, c := range calls {
		results[i] = core.CallResult{CallID: c.CallID, Result: c.Result, Error: c.Error}
	}
	return &exec, results, nil
}

func (s *GormStorage) Finish(ctx context.Context, executionID string, status core.Status, output []byte, errMsg string) error {
	errMsg = security.SanitizeErrorMessage(errMsg)
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&core.Execution{}).
		Where("id = ? AND status IN ?", executionID, []core.Status{core.StatusRunning, core.StatusResuming}).
		Updates(map[string]any{
			"status":       status,
			"output":       output,
			"error":        errMsg,
			"completed_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &core.ConflictError{Kind: "claim", Detail: "execution was not in a finishable state"}
	}
	return nil
}

func (s *GormStorage) GetExecution(ctx context.Context, id string) (*core.Execution, error) {
	var exec core.Execution
	err := s.db.WithContext(ctx).First(&exec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &exec, err
}

func (s *GormStorage) ListExecutions(ctx context.Context, status core.Status, limit int) ([]*core.Execution, error) {
	var execs []*core.Execution
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&execs).Error
	return execs, err
}

func (s *GormStorage) GetPendingCalls(ctx context.Context, executionID string) ([]core.Call, error) {
	var exec core.Execution
	if err := s.db.WithContext(ctx).First(&exec, "id = ?", executionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &core.NotFoundError{Kind: "execution", ID: executionID}
		}
		return nil, err
	}
	if exec.CurrentResumeGroupID == nil {
		return nil, nil
	}
	var calls []core.Call
	err := s.db.WithContext(ctx).
		Where("execution_id = ? AND resume_group_id = ? AND status IN ?",
			executionID, *exec.CurrentResumeGroupID, []core.CallStatus{core.CallPending, core.CallRunning}).
		Find(&calls).Error
	return calls, err
}

func (s *GormStorage) GetCallByJobHandle(ctx context.Context, jobHandle string) (*core.Call, error) {
	var call core.Call
	err := s.db.WithContext(ctx).First(&call, "job_handle = ?", jobHandle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &call, err
}

func (s *GormStorage) MarkCallSubmitted(ctx context.Context, executionID, callID, jobHandle string) error {
	res := s.db.WithContext(ctx).Model(&core.Call{}).
		Where("execution_id = ? AND call_id = ? AND status = ?", executionID, callID, core.CallPending).
		Updates(map[string]any{"status": core.CallRunning, "job_handle": jobHandle})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &core.NotFoundError{Kind: "call", ID: callID}
	}
	return nil
}

func (s *GormStorage) ReleaseOverdue(ctx context.Context, olderThanSeconds int64) (int, error) {
	cutoff := time.Now().Add(-time.Duration(olderThanSeconds) * time.Second)
	res := s.db.WithContext(ctx).Model(&core.Execution{}).
		Where("status IN ? AND updated_at < ?", []core.Status{core.StatusRunning, core.StatusWaiting, core.StatusResuming}, cutoff).
		Updates(map[string]any{
			"status":       core.StatusFailed,
			"error":        "execution exceeded its deadline",
			"completed_at": time.Now(),
			"updated_at":   time.Now(),
		})
	return int(res.RowsAffected), res.Error
}
