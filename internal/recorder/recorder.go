package recorder

import (
	"github.com/yanun0323/logs"

	"github.com/alexanu/nautilus-trader/internal/bus"
	"github.com/alexanu/nautilus-trader/internal/events"
)

// BusRecorder subscribes to every bus topic and appends each event to
// the log in publication order. It is the persistence hook the kernel
// offers to audit collaborators; the engines themselves never touch
// the filesystem.
type BusRecorder struct {
	writer *Writer
	sub    bus.Subscription
	bus    *bus.MessageBus
	err    error
}

// Attach creates a recorder writing to path and subscribes it to the
// whole bus.
func Attach(b *bus.MessageBus, path string) (*BusRecorder, error) {
	w, err := NewWriter(path)
	if err != nil {
		return nil, err
	}
	r := &BusRecorder{writer: w, bus: b}
	sub, err := b.Subscribe("*", r.onEvent)
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	r.sub = sub
	return r, nil
}

func (r *BusRecorder) onEvent(ev events.Event) {
	if r.err != nil {
		return
	}
	header, payload, err := Encode(ev)
	if err != nil {
		r.err = err
		logs.Errorf("recorder encode failed, seq: %d, err: %+v", ev.EventHeader().Seq, err)
		return
	}
	if err := r.writer.Append(header, payload); err != nil {
		r.err = err
		logs.Errorf("recorder append failed, seq: %d, err: %+v", header.Seq, err)
	}
}

// Err returns the first write error observed, if any.
func (r *BusRecorder) Err() error { return r.err }

// Close detaches from the bus and closes the log file.
func (r *BusRecorder) Close() error {
	r.bus.Unsubscribe(r.sub)
	if err := r.writer.Close(); err != nil {
		return err
	}
	return r.err
}
