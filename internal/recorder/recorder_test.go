package recorder

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanu/nautilus-trader/internal/bus"
	"github.com/alexanu/nautilus-trader/internal/events"
)

func quoteEvent(seq uint64, ts int64) events.QuoteTick {
	return events.QuoteTick{
		Header:       events.Header{Type: events.TypeQuoteTick, Version: 1, Seq: seq, TsEvent: ts, TsInit: ts},
		InstrumentID: "BTCUSDT.SIM",
		BidPx:        decimal.NewFromInt(99),
		AskPx:        decimal.NewFromInt(101),
		BidSz:        decimal.NewFromInt(1),
		AskSz:        decimal.NewFromInt(1),
	}
}

func TestWriterReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	w, err := NewWriter(path)
	require.NoError(t, err)

	for seq := uint64(1); seq <= 3; seq++ {
		header, payload, err := Encode(quoteEvent(seq, int64(seq)*100))
		require.NoError(t, err)
		require.NoError(t, w.Append(header, payload))
	}
	require.NoError(t, w.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	r := NewReader(file, ReaderOptions{})
	for seq := uint64(1); seq <= 3; seq++ {
		header, payload, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, seq, header.Seq)
		assert.Equal(t, events.TypeQuoteTick, header.Type)

		ev, err := Decode(header, payload)
		require.NoError(t, err)
		q, ok := ev.(events.QuoteTick)
		require.True(t, ok)
		assert.True(t, q.BidPx.Equal(decimal.NewFromInt(99)))
	}
	_, _, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReaderDetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	w, err := NewWriter(path)
	require.NoError(t, err)
	header, payload, err := Encode(quoteEvent(1, 100))
	require.NoError(t, err)
	require.NoError(t, w.Append(header, payload))
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[recordHeaderSize+2] ^= 0xff
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	r := NewReader(file, ReaderOptions{})
	_, _, err = r.Next()
	assert.True(t, errors.Is(err, ErrChecksumMismatch))
}

func TestReaderChecksumCanBeDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	w, err := NewWriter(path)
	require.NoError(t, err)
	header, payload, err := Encode(quoteEvent(1, 100))
	require.NoError(t, err)
	require.NoError(t, w.Append(header, payload))
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	r := NewReader(file, ReaderOptions{DisableChecksum: true})
	_, _, err = r.Next()
	assert.NoError(t, err)
}

func TestReaderEnforcesMaxPayloadSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	w, err := NewWriter(path)
	require.NoError(t, err)
	header, payload, err := Encode(quoteEvent(1, 100))
	require.NoError(t, err)
	require.NoError(t, w.Append(header, payload))
	require.NoError(t, w.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	r := NewReader(file, ReaderOptions{MaxPayloadSize: 4})
	_, _, err = r.Next()
	assert.True(t, errors.Is(err, ErrPayloadTooLarge))
}

func TestDecodeUnknownTypeFails(t *testing.T) {
	_, err := Decode(events.Header{Type: events.Type(9999)}, []byte("{}"))
	assert.Error(t, err)
}

func TestWriterRejectsAppendsAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	err = w.Append(events.Header{}, nil)
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestBusRecorderCapturesPublicationOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	b := bus.New()
	rec, err := Attach(b, path)
	require.NoError(t, err)

	for seq := uint64(1); seq <= 5; seq++ {
		ev := quoteEvent(seq, int64(seq)*100)
		b.Publish(ev.EventTopic(), ev)
	}
	require.NoError(t, rec.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	r := NewReader(file, ReaderOptions{})
	var seqs []uint64
	for {
		header, _, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		seqs = append(seqs, header.Seq)
	}
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, seqs)
}

func TestBusRecorderDetachesOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	b := bus.New()
	rec, err := Attach(b, path)
	require.NoError(t, err)
	require.NoError(t, rec.Close())

	// Events after Close never reach the closed writer.
	ev := quoteEvent(1, 100)
	b.Publish(ev.EventTopic(), ev)
	assert.Equal(t, 0, b.SubscriberCount())
}

func TestPlaybackReplaysRecordsInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	w, err := NewWriter(path)
	require.NoError(t, err)
	for seq := uint64(1); seq <= 3; seq++ {
		header, payload, err := Encode(quoteEvent(seq, int64(seq)*100))
		require.NoError(t, err)
		require.NoError(t, w.Append(header, payload))
	}
	require.NoError(t, w.Close())

	pb, err := NewPlayback(PlaybackConfig{Path: path})
	require.NoError(t, err)

	var seqs []uint64
	require.NoError(t, pb.Run(context.Background(), func(header events.Header, payload []byte) error {
		seqs = append(seqs, header.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{1, 2, 3}, seqs)
}

type recordingSleeper struct {
	slept []time.Duration
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	return nil
}

func TestPlaybackPacesByEventGaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	w, err := NewWriter(path)
	require.NoError(t, err)
	timestamps := []int64{100, 300, 600}
	for i, ts := range timestamps {
		header, payload, err := Encode(quoteEvent(uint64(i+1), ts))
		require.NoError(t, err)
		require.NoError(t, w.Append(header, payload))
	}
	require.NoError(t, w.Close())

	pb, err := NewPlayback(PlaybackConfig{Path: path, Speed: 2})
	require.NoError(t, err)
	sleeper := &recordingSleeper{}
	pb.WithSleeper(sleeper)

	require.NoError(t, pb.Run(context.Background(), func(events.Header, []byte) error { return nil }))

	// Gaps 200ns and 300ns halve at 2x speed.
	assert.Equal(t, []time.Duration{100, 150}, sleeper.slept)
}

func TestPlaybackStopsOnHandlerError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	w, err := NewWriter(path)
	require.NoError(t, err)
	for seq := uint64(1); seq <= 3; seq++ {
		header, payload, err := Encode(quoteEvent(seq, int64(seq)))
		require.NoError(t, err)
		require.NoError(t, w.Append(header, payload))
	}
	require.NoError(t, w.Close())

	pb, err := NewPlayback(PlaybackConfig{Path: path})
	require.NoError(t, err)

	calls := 0
	wantErr := errors.New("stop here")
	err = pb.Run(context.Background(), func(events.Header, []byte) error {
		calls++
		if calls == 2 {
			return wantErr
		}
		return nil
	})
	assert.True(t, errors.Is(err, wantErr))
	assert.Equal(t, 2, calls)
}
