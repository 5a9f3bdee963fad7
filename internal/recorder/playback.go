package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alexanu/nautilus-trader/internal/events"
)

// PlaybackConfig controls event log playback behavior.
type PlaybackConfig struct {
	Path            string
	Speed           float64
	DisableChecksum bool
	MaxPayloadSize  int
}

// Sleeper allows deterministic playback control in tests.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Playback replays a recorded event log in record order, optionally
// paced by the original inter-event gaps.
type Playback struct {
	cfg     PlaybackConfig
	sleeper Sleeper
}

// NewPlayback validates the config and creates a playback engine.
func NewPlayback(cfg PlaybackConfig) (*Playback, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("invalid playback config: Path is empty")
	}
	if cfg.Speed < 0 {
		return nil, fmt.Errorf("invalid playback config: Speed must be >= 0")
	}
	if cfg.MaxPayloadSize < 0 {
		return nil, fmt.Errorf("invalid playback config: MaxPayloadSize must be >= 0")
	}
	return &Playback{cfg: cfg, sleeper: realSleeper{}}, nil
}

// WithSleeper swaps the pacing implementation.
func (p *Playback) WithSleeper(s Sleeper) *Playback {
	if s != nil {
		p.sleeper = s
	}
	return p
}

// Run replays records and calls the handler for each decoded event.
func (p *Playback) Run(ctx context.Context, handler func(events.Header, []byte) error) error {
	if handler == nil {
		return errors.New("playback handler is nil")
	}
	file, err := os.Open(p.cfg.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := NewReader(file, ReaderOptions{
		DisableChecksum: p.cfg.DisableChecksum,
		MaxPayloadSize:  p.cfg.MaxPayloadSize,
	})

	var prevTS int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		header, payload, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read %s: %w", p.cfg.Path, err)
		}

		if err := p.pace(ctx, header.TsEvent, &prevTS); err != nil {
			return err
		}
		if err := handler(header, payload); err != nil {
			return err
		}
	}
}

func (p *Playback) pace(ctx context.Context, current int64, prevTS *int64) error {
	if p.cfg.Speed <= 0 || current <= 0 {
		return nil
	}
	if *prevTS > 0 {
		delta := current - *prevTS
		if delta > 0 {
			sleep := time.Duration(float64(delta) / p.cfg.Speed)
			if err := p.sleeper.Sleep(ctx, sleep); err != nil {
				return err
			}
		}
	}
	*prevTS = current
	return nil
}
