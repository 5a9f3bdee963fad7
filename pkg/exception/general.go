package exception

import "errors"

// General errors
var (
	ErrNilInstance     = errors.New("nil instance")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInternal        = errors.New("internal error")
	ErrValidation      = errors.New("command validation failed")
	ErrCollaborator    = errors.New("collaborator failure")
)
