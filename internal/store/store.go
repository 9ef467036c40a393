package store

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"

	"github.com/tallyhq/tally/internal/ledger"
	_ "modernc.org/sqlite"
)

type AccountFilter struct {
	Type   string
	Entity string
	Limit  int
	Offset int
}

type TxnFilter struct {
	AccountType string
	EntityID    string
	Type        ledger.TransactionType
	Limit       int
	Offset      int
}

type InvoiceFilter struct {
	Status     ledger.InvoiceStatus
	CustomerID string
	Limit      int
	Offset     int
}

// Store owns all persisted state. Every money-moving unit of work runs
// on the single-connection writer handle, so concurrent operations that
// touch overlapping accounts serialize in the database, not in process
// memory. Reads go through the pooled reader.
type Store struct {
	writer *sql.DB
	reader *sql.DB

	// onEvent, when set, receives domain events after a successful
	// commit. Failures there never affect the committed work.
	onEvent func(ledger.Event)
}

func Open(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", dbPath)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	writer.SetMaxOpenConns(1)

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}
	reader.SetMaxOpenConns(runtime.NumCPU())

	s := &Store{writer: writer, reader: reader}

	if err := s.migrate(context.Background()); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// SetEventSink wires the webhook dispatcher. Pass nil to disable.
func (s *Store) SetEventSink(fn func(ledger.Event)) {
	s.onEvent = fn
}

func (s *Store) emit(evt ledger.Event) {
	if s.onEvent != nil {
		s.onEvent(evt)
	}
}

func (s *Store) Close() error {
	err1 := s.writer.Close()
	err2 := s.reader.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
