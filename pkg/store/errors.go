package store

import "errors"

// Sentinel errors shared by all store backends. Callers classify with
// errors.Is; backends wrap these with the offending name or ID.
var (
	// ErrFileNotFound means no metadata record matched the lookup.
	ErrFileNotFound = errors.New("file not found")

	// ErrFileExists means the target original name is already taken.
	ErrFileExists = errors.New("file already exists")

	// ErrBotNotFound means the referenced bot is absent from the roster.
	ErrBotNotFound = errors.New("bot not found")
)
