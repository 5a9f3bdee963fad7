package sim

import (
	"bufio"
	"bytes"
	"context"
	"os"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"github.com/alexanu/nautilus-trader/internal/data"
	"github.com/alexanu/nautilus-trader/pkg/exception"
)

// SliceReplay replays an in-memory tick series. Mostly useful in tests
// and short experiments.
type SliceReplay struct {
	ticks []data.RawEvent
}

// NewSliceReplay wraps a tick series. The series must already be in
// nondecreasing timestamp order.
func NewSliceReplay(ticks []data.RawEvent) *SliceReplay {
	return &SliceReplay{ticks: ticks}
}

// Replay emits ticks within [from, to].
func (r *SliceReplay) Replay(ctx context.Context, from, to int64, emit func(data.RawEvent) error) error {
	for _, tick := range r.ticks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if tick.TsEvent < from {
			continue
		}
		if to > 0 && tick.TsEvent > to {
			return nil
		}
		if err := emit(tick); err != nil {
			return err
		}
	}
	return nil
}

// FileReplay replays a captured feed file: one JSON raw event per line,
// in nondecreasing timestamp order. Blank lines are skipped.
type FileReplay struct {
	path string
}

// NewFileReplay creates a replay source over a capture file.
func NewFileReplay(path string) (*FileReplay, error) {
	if path == "" {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "replay file path is empty")
	}
	return &FileReplay{path: path}, nil
}

// Replay streams the file, emitting events within [from, to].
func (r *FileReplay) Replay(ctx context.Context, from, to int64, emit func(data.RawEvent) error) error {
	file, err := os.Open(r.path)
	if err != nil {
		return errors.Wrapf(err, "open replay file: %s", r.path)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var tick data.RawEvent
		if err := sonic.Unmarshal(raw, &tick); err != nil {
			return errors.Wrapf(err, "decode replay file: %s, line: %d", r.path, line)
		}
		if tick.TsEvent < from {
			continue
		}
		if to > 0 && tick.TsEvent > to {
			return nil
		}
		if err := emit(tick); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan replay file: %s", r.path)
	}
	return nil
}
