package client

import "context"

// ProcessClientInterface defines the interface for the process-legality
// authority client.
type ProcessClientInterface interface {
	// CheckTransition asks whether moving from currentState to nextState is a
	// structurally valid transition for the given role. Unknown or malformed
	// state pairs are a legitimate invalid result, not an error; an error means
	// the authority could not be reached.
	CheckTransition(ctx context.Context, currentState, nextState, role string) (*ProcessLegalityResult, error)
}
