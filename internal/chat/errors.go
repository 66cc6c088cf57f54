package chat

import "errors"

var (
	// ErrValidation indicates missing or invalid input; nothing was written.
	ErrValidation = errors.New("invalid input")

	// ErrNotFound indicates the target row does not exist or the caller is
	// not a member of it.
	ErrNotFound = errors.New("not found")

	// ErrPartialCreation indicates the conversation-creation transaction
	// failed; no partial rows survive it.
	ErrPartialCreation = errors.New("conversation creation failed")
)
