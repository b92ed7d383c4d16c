package core

import "context"

// PendingCall is one external call a suspended Outcome is waiting on.
type PendingCall struct {
	CallID       string
	FunctionName string
	Args         []byte
}

// CallResult is fed back into Interpreter.Resume for one call in the batch
// being resumed. Error is set instead of Result when the call failed; the
// workflow program decides whether that is fatal.
type CallResult struct {
	CallID string
	Result []byte
	Error  string
}

// Outcome is what an Interpreter step produces: either the program ran to
// completion, or it suspended on a new batch of pending calls.
type Outcome struct {
	Complete     bool
	Value        []byte
	State        []byte
	PendingCalls []PendingCall
}

// Interpreter runs workflow programs up to their next suspension point. It
// is owned by the caller embedding this module; nothing in this repository
// implements the sandboxed language itself, only the contract the
// orchestrator drives it through.
type Interpreter interface {
	// Start begins a fresh Execution from its code, declared external
	// functions, and inputs.
	Start(ctx context.Context, code, externalFunctions, inputs []byte) (Outcome, error)

	// Resume continues a previously suspended Execution from its saved
	// state, supplying results (or errors) for every call in the resume
	// group that just finished.
	Resume(ctx context.Context, state []byte, results []CallResult) (Outcome, error)
}
