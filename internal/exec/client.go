package exec

import (
	"context"

	"github.com/alexanu/nautilus-trader/internal/events"
)

// Client is the execution-client collaborator contract. Submit, Cancel
// and Modify carry commands out of the process; execution reports come
// back asynchronously through Engine.HandleExecutionReport. The kernel
// treats response latency as opaque and assumes nothing beyond eventual
// delivery.
type Client interface {
	// Submit forwards a cleared order command to the venue.
	Submit(ctx context.Context, cmd events.SubmitOrder) error
	// Cancel forwards a cleared cancel command to the venue.
	Cancel(ctx context.Context, cmd events.CancelOrder) error
	// Modify forwards a cleared modify command to the venue.
	Modify(ctx context.Context, cmd events.ModifyOrder) error
}
