package recorder

import (
	"bufio"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"

	"github.com/alexanu/nautilus-trader/internal/events"
)

var (
	ErrClosed          = errors.New("event log writer closed")
	ErrPayloadTooLarge = errors.New("event log payload too large")
)

const maxPayloadLen = uint64(^uint32(0))

const defaultBufferSize = 256 * 1024

// Writer appends framed event records to one log file. Appends are
// synchronous and in call order, so two identical event streams produce
// byte-identical log files.
type Writer struct {
	file        *os.File
	buf         *bufio.Writer
	headerBuf   []byte
	checksumBuf [recordChecksumSize]byte
	closed      bool
}

// NewWriter creates the log file, truncating any previous content.
func NewWriter(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return &Writer{
		file:      file,
		buf:       bufio.NewWriterSize(file, defaultBufferSize),
		headerBuf: make([]byte, recordHeaderSize),
	}, nil
}

// Append writes one record.
func (w *Writer) Append(header events.Header, payload []byte) error {
	if w.closed {
		return ErrClosed
	}
	if uint64(len(payload)) > maxPayloadLen {
		return ErrPayloadTooLarge
	}

	encodeHeader(w.headerBuf, header, len(payload))
	sum := checksum(w.headerBuf, payload)
	binary.LittleEndian.PutUint32(w.checksumBuf[:], sum)

	if _, err := w.buf.Write(w.headerBuf); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.buf.Write(payload); err != nil {
			return err
		}
	}
	if _, err := w.buf.Write(w.checksumBuf[:]); err != nil {
		return err
	}
	return nil
}

// Flush pushes buffered records to the file.
func (w *Writer) Flush() error {
	if w.closed {
		return ErrClosed
	}
	return w.buf.Flush()
}

// Close flushes, syncs and closes the log file.
func (w *Writer) Close() error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true
	if err := w.buf.Flush(); err != nil {
		_ = w.file.Close()
		return err
	}
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}
