package persist

import (
	"sync"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"

	"github.com/alexanu/nautilus-trader/internal/bus"
	"github.com/alexanu/nautilus-trader/internal/events"
	"github.com/alexanu/nautilus-trader/pkg/conn"
	"github.com/alexanu/nautilus-trader/pkg/exception"
)

// EventRow is one published event persisted for post-run analysis. The
// payload column holds the full typed event as JSON.
type EventRow struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	Session string `gorm:"size:64;index"`
	Seq     uint64 `gorm:"index"`
	Type    uint16
	Topic   string `gorm:"size:128;index"`
	TsEvent int64
	TsInit  int64
	Payload []byte `gorm:"type:jsonb"`
}

// TableName keeps the table name stable across gorm naming strategies.
func (EventRow) TableName() string { return "kernel_events" }

// Store mirrors the published event stream into PostgreSQL. It is a
// live-mode collaborator: the backtest kernel relies on the event log
// file instead, so determinism never depends on a database. Writes are
// batched; a failed batch is logged and dropped, never fatal to the
// kernel.
type Store struct {
	mu        sync.Mutex
	client    *conn.Client
	session   string
	batchSize int
	pending   []EventRow
	sub       bus.Subscription
	bus       *bus.MessageBus
}

// NewStore connects, migrates the schema, and returns a store.
func NewStore(opt conn.Option, session string, batchSize int) (*Store, error) {
	if session == "" {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "persist session is empty")
	}
	if batchSize <= 0 {
		batchSize = 128
	}
	client, err := conn.New(opt)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	if err := client.DB().AutoMigrate(&EventRow{}); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "migrate kernel_events")
	}
	return &Store{client: client, session: session, batchSize: batchSize}, nil
}

// Attach subscribes the store to every published event.
func (s *Store) Attach(b *bus.MessageBus) error {
	if b == nil {
		return errors.Wrap(exception.ErrNilInstance, "persist bus")
	}
	sub, err := b.Subscribe("*", s.onEvent)
	if err != nil {
		return err
	}
	s.bus = b
	s.sub = sub
	return nil
}

func (s *Store) onEvent(ev events.Event) {
	topic := ev.EventTopic()
	payload, err := sonic.Marshal(ev)
	if err != nil {
		logs.Errorf("persist encode, topic: %s, err: %+v", topic, err)
		return
	}
	header := ev.EventHeader()

	s.mu.Lock()
	s.pending = append(s.pending, EventRow{
		Session: s.session,
		Seq:     header.Seq,
		Type:    uint16(header.Type),
		Topic:   topic,
		TsEvent: header.TsEvent,
		TsInit:  header.TsInit,
		Payload: payload,
	})
	var batch []EventRow
	if len(s.pending) >= s.batchSize {
		batch = s.pending
		s.pending = nil
	}
	s.mu.Unlock()

	if batch != nil {
		s.insert(batch)
	}
}

// Flush writes any buffered rows immediately.
func (s *Store) Flush() {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()
	if len(batch) != 0 {
		s.insert(batch)
	}
}

// Count returns the number of rows stored for this session.
func (s *Store) Count() (int64, error) {
	var n int64
	err := s.client.DB().Model(&EventRow{}).Where("session = ?", s.session).Count(&n).Error
	return n, err
}

// Close detaches from the bus, flushes, and closes the connection.
func (s *Store) Close() error {
	if s.bus != nil && s.sub != 0 {
		s.bus.Unsubscribe(s.sub)
		s.sub = 0
	}
	s.Flush()
	return s.client.Close()
}

func (s *Store) insert(batch []EventRow) {
	err := s.client.DB().Session(&gorm.Session{CreateBatchSize: s.batchSize}).Create(&batch).Error
	if err != nil {
		logs.Errorf("persist insert, rows: %d, err: %+v", len(batch), err)
	}
}
