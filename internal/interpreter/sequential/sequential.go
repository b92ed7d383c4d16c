// Package sequential implements a minimal core.Interpreter suitable for
// running the durableflow CLI's serve command without a real sandboxed
// workflow language plugged in. It does not replace the sandboxed
// interpreter spec.md treats as an external dependency (see
// internal/core.Interpreter's doc comment) — it is a reference
// implementation of that same contract for programs that are just a fixed
// sequence of external calls, one call in flight at a time. Results are not
// passed to later steps; only the last step's result becomes the value.
//
// A program (the "code" the Execution stores) is a JSON array of steps:
//
//	[{"call_id": "a", "function": "fetch", "args": {...}},
//	 {"call_id": "b", "function": "transform", "args": {...}}]
//
// Start/Resume never inspect a step's args beyond forwarding them; there is
// no branching, looping, or per-step access to earlier results — a program
// needing those belongs to the real interpreter this package stands in for.
package sequential

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jdziat/durableflow/internal/core"
)

// Step is one element of a program.
type Step struct {
	CallID   string          `json:"call_id"`
	Function string          `json:"function"`
	Args     json.RawMessage `json:"args"`
}

// programState is what gets round-tripped through Execution.State between
// suspensions.
type programState struct {
	Steps []Step            `json:"steps"`
	Index int               `json:"index"`
}

// Interpreter runs sequential programs.
type Interpreter struct{}

func New() *Interpreter { return &Interpreter{} }

func (Interpreter) Start(ctx context.Context, code, externalFunctions, inputs []byte) (core.Outcome, error) {
	var steps []Step
	if len(code) > 0 {
		if err := json.Unmarshal(code, &steps); err != nil {
			return core.Outcome{}, fmt.Errorf("sequential: parse program: %w", err)
		}
	}
	return next(programState{Steps: steps, Index: 0})
}

func (Interpreter) Resume(ctx context.Context, state []byte, results []core.CallResult) (core.Outcome, error) {
	var st programState
	if err := json.Unmarshal(state, &st); err != nil {
		return core.Outcome{}, fmt.Errorf("sequential: parse state: %w", err)
	}
	if len(results) != 1 {
		return core.Outcome{}, fmt.Errorf("sequential: expected exactly one call result, got %d", len(results))
	}
	if results[0].Error != "" {
		return core.Outcome{}, fmt.Errorf("sequential: step %q failed: %s", results[0].CallID, results[0].Error)
	}

	st.Index++
	return next(st, results[0].Result)
}

// next either suspends on the next step or completes, carrying the most
// recent result forward as the program's eventual value if there are no
// more steps.
func next(st programState, lastResult ...[]byte) (core.Outcome, error) {
	if st.Index >= len(st.Steps) {
		var value []byte
		if len(lastResult) > 0 {
			value = lastResult[0]
		}
		return core.Outcome{Complete: true, Value: value}, nil
	}

	step := st.Steps[st.Index]
	state, err := json.Marshal(st)
	if err != nil {
		return core.Outcome{}, fmt.Errorf("sequential: marshal state: %w", err)
	}

	return core.Outcome{
		State: state,
		PendingCalls: []core.PendingCall{
			{CallID: step.CallID, FunctionName: step.Function, Args: step.Args},
		},
	}, nil
}
