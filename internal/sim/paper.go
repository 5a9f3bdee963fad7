package sim

import (
	"context"
	"sync"

	"github.com/alexanu/nautilus-trader/internal/clock"
	"github.com/alexanu/nautilus-trader/internal/events"
	"github.com/alexanu/nautilus-trader/internal/identity"
)

// PaperClient wraps the simulated exchange behind the execution-client
// contract for live paper trading. The exchange emits reports
// synchronously inside each call; the client parks them in a buffer and
// hands them to the bound sink after the call returns, so the engine
// never re-enters itself through a venue response.
type PaperClient struct {
	exchange *Exchange
	buffer   *ReportBuffer

	mu   sync.Mutex
	sink ReportSink
}

// NewPaperClient creates a paper-trading client over a fresh simulated
// exchange.
func NewPaperClient(clk clock.Clock, reg *identity.Registry) (*PaperClient, error) {
	c := &PaperClient{buffer: NewReportBuffer()}
	exchange, err := NewExchange(clk, reg, c.buffer.Push)
	if err != nil {
		return nil, err
	}
	c.exchange = exchange
	return c, nil
}

// Bind sets the report sink and flushes anything queued before it was
// available. Typically wired to Kernel.OnExecutionReport.
func (c *PaperClient) Bind(sink ReportSink) {
	c.mu.Lock()
	c.sink = sink
	c.mu.Unlock()
	c.flush()
}

// Submit forwards the order to the simulated exchange.
func (c *PaperClient) Submit(ctx context.Context, cmd events.SubmitOrder) error {
	if err := c.exchange.Submit(ctx, cmd); err != nil {
		return err
	}
	c.flush()
	return nil
}

// Cancel forwards the cancel to the simulated exchange.
func (c *PaperClient) Cancel(ctx context.Context, cmd events.CancelOrder) error {
	if err := c.exchange.Cancel(ctx, cmd); err != nil {
		return err
	}
	c.flush()
	return nil
}

// Modify forwards the modify to the simulated exchange.
func (c *PaperClient) Modify(ctx context.Context, cmd events.ModifyOrder) error {
	if err := c.exchange.Modify(ctx, cmd); err != nil {
		return err
	}
	c.flush()
	return nil
}

// OnEvent feeds quote ticks to the exchange so resting orders can
// match. Meant as a bus handler on the quotes topic; other event types
// pass through untouched.
func (c *PaperClient) OnEvent(ev events.Event) {
	if q, ok := ev.(events.QuoteTick); ok {
		c.exchange.OnQuote(q)
		c.flush()
	}
}

// RestingCount reports resting orders on the underlying exchange.
func (c *PaperClient) RestingCount() int { return c.exchange.RestingCount() }

func (c *PaperClient) flush() {
	c.mu.Lock()
	sink := c.sink
	c.mu.Unlock()
	if sink == nil {
		return
	}
	c.buffer.Drain(sink)
}
