package bridge

import "errors"

var (
	// ErrNoNewCommand indicates there is no unconsumed command to pull.
	ErrNoNewCommand = errors.New("no new command")
	// ErrCommandKindMismatch indicates the pending command is of another kind
	// than the one requested. The command stays pending.
	ErrCommandKindMismatch = errors.New("command kind mismatch")
	// ErrInvalidCommandKind indicates a pull for a kind that carries no
	// command payload.
	ErrInvalidCommandKind = errors.New("invalid command kind")
)
