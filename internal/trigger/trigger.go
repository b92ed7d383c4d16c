package trigger

import (
	"context"
	"log/slog"
	"time"

	"github.com/jdziat/durableflow/internal/orchestrator"
)

// Program is the fixed workflow a recurring trigger starts on each fire.
type Program struct {
	Name              string
	Code              []byte
	ExternalFunctions []byte
	Inputs            []byte
}

// entry pairs one Program with its Schedule and the last time it fired.
type entry struct {
	program  Program
	schedule Schedule
	lastRun  time.Time
}

// Runner periodically starts new Executions of registered Programs,
// following the teacher's pkg/worker.runScheduler loop (100ms ticker,
// per-name lastRun tracking).
type Runner struct {
	svc     *orchestrator.Service
	logger  *slog.Logger
	entries []*entry
}

func New(svc *orchestrator.Service) *Runner {
	return &Runner{svc: svc, logger: slog.Default()}
}

// Register adds a recurring trigger. Call before Run.
func (r *Runner) Register(program Program, schedule Schedule) {
	r.entries = append(r.entries, &entry{program: program, schedule: schedule, lastRun: time.Now()})
}

// Run blocks until ctx is cancelled, firing due triggers on a fixed tick.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, e := range r.entries {
				if !e.schedule.Next(e.lastRun).After(now) {
					e.lastRun = now
					if _, err := r.svc.StartExecution(ctx, e.program.Code, e.program.ExternalFunctions, e.program.Inputs); err != nil {
						r.logger.Error("start scheduled execution", "program", e.program.Name, "error", err)
					}
				}
			}
		}
	}
}
