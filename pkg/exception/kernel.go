package exception

import "errors"

// Bus errors
var (
	ErrBusQueueFull   = errors.New("bus: event queue full")
	ErrBusQueueClosed = errors.New("bus: event queue closed")
	ErrBusNilHandler  = errors.New("bus: nil handler")
)

// Clock errors
var (
	ErrClockNotVirtual     = errors.New("clock: operation requires a virtual clock")
	ErrClockTimeBackwards  = errors.New("clock: time must not move backwards")
	ErrClockDuplicateTimer = errors.New("clock: timer name already registered")
)

// Registry errors
var (
	ErrInstrumentUnknown   = errors.New("registry: instrument not found")
	ErrInstrumentDuplicate = errors.New("registry: instrument already registered")
	ErrVenueUnknown        = errors.New("registry: venue not found")
)

// Data errors
var (
	ErrDataStaleTimestamp = errors.New("data: timestamp not after last seen")
	ErrDataUnknownSymbol  = errors.New("data: unknown symbol")
	ErrDataInvalidPayload = errors.New("data: invalid payload")
)
