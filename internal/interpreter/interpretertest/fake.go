// Package interpretertest provides a scriptable core.Interpreter double for
// exercising the orchestrator and worker without a real sandboxed language
// runtime, in the style of tombee-conductor's test/e2e/harness mock
// providers: a queue of pre-programmed responses rather than an actual
// interpreter.
package interpretertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/jdziat/durableflow/internal/core"
)

// Step is one scripted response: Start (or the n-th Resume) returns Outcome
// unless Err is set.
type Step struct {
	Outcome core.Outcome
	Err     error
}

// Fake is a core.Interpreter whose Start/Resume calls are driven by a
// pre-loaded script rather than executing any workflow language. Program
// selection is by the Inputs payload passed to Start, so a single Fake can
// back many concurrently-running executions in a test.
type Fake struct {
	mu      sync.Mutex
	scripts map[string][]Step // keyed by string(inputs)
	byState map[string][]Step // keyed by string(state)
}

func New() *Fake {
	return &Fake{
		scripts: make(map[string][]Step),
		byState: make(map[string][]Step),
	}
}

// Program registers the scripted step sequence Start should play back when
// given inputs. The first Step is consumed by Start; subsequent steps are
// consumed by Resume calls against the state that step's Outcome carried.
func (f *Fake) Program(inputs string, steps ...Step) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[inputs] = steps
}

func (f *Fake) Start(ctx context.Context, code, externalFunctions, inputs []byte) (core.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	steps, ok := f.scripts[string(inputs)]
	if !ok || len(steps) == 0 {
		return core.Outcome{}, fmt.Errorf("interpretertest: no program for inputs %q", string(inputs))
	}
	step := steps[0]
	if step.Err != nil {
		return core.Outcome{}, step.Err
	}
	if !step.Outcome.Complete {
		f.byState[string(step.Outcome.State)] = steps[1:]
	}
	return step.Outcome, nil
}

func (f *Fake) Resume(ctx context.Context, state []byte, results []core.CallResult) (core.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	steps, ok := f.byState[string(state)]
	if !ok || len(steps) == 0 {
		return core.Outcome{}, fmt.Errorf("interpretertest: no scripted resume for state %q", string(state))
	}
	step := steps[0]
	if step.Err != nil {
		return core.Outcome{}, step.Err
	}
	if !step.Outcome.Complete {
		f.byState[string(step.Outcome.State)] = steps[1:]
	}
	return step.Outcome, nil
}
