package domain

import "errors"

// Validation errors, returned before any remote call.
var (
	ErrInvalidArgs     = errors.New("invalid arguments")
	ErrUnknownColumn   = errors.New("unknown column")
	ErrUnknownPriority = errors.New("unknown priority")
	ErrNoProject       = errors.New("no project selected")
	ErrNoUser          = errors.New("no signed in user")
)

// Team errors.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrAlreadyMember = errors.New("user is already a member")
)

// ErrRemote wraps failures of the remote store.
var ErrRemote = errors.New("remote store failure")

// ErrUnknownProject is returned when selecting a project that is not listed.
var ErrUnknownProject = errors.New("unknown project")
