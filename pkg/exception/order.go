package exception

import "errors"

var (
	ErrOrderDuplicate         = errors.New("order: already exists")
	ErrOrderUnknown           = errors.New("order: not found")
	ErrOrderInvalidTransition = errors.New("order: invalid state transition")
	ErrOrderOverfill          = errors.New("order: fill exceeds leaves quantity")
	ErrOrderTerminal          = errors.New("order: already in terminal state")
	ErrOrderInvalidQty        = errors.New("order: quantity must be positive")
	ErrOrderInvalidPrice      = errors.New("order: price must be positive")
	ErrOrderUnsupportedType   = errors.New("order: unsupported type")
	ErrOrderQueueFull         = errors.New("order: command queue full")
)

var ErrRiskDenied = errors.New("risk: command denied")
