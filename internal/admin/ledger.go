package admin

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Ledger remembers which action ids the server has already applied, independent
// of the executed flag in the queue file.
type Ledger interface {
	Seen(id string) (bool, error)
	Record(id string, at time.Time) error
}

// MemoryLedger forgets everything on restart.
type MemoryLedger struct {
	mu  sync.Mutex
	ids map[string]time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{ids: make(map[string]time.Time)}
}

func (l *MemoryLedger) Seen(id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.ids[id]
	return ok, nil
}

func (l *MemoryLedger) Record(id string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ids[id] = at
	return nil
}

// DefaultLedgerTTL bounds how long applied ids are kept on disk. It must stay far
// above the queue retention so an id cannot reappear after its ledger entry expires.
const DefaultLedgerTTL = 24 * time.Hour

const ledgerPrefix = "applied/"

// BadgerLedger persists applied ids in a badger directory owned by the server process.
type BadgerLedger struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenBadgerLedger opens the ledger at dir. An empty dir keeps it in memory.
func OpenBadgerLedger(dir string, ttl time.Duration) (*BadgerLedger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return &BadgerLedger{db: db, ttl: ttl}, nil
}

func (l *BadgerLedger) Seen(id string) (bool, error) {
	err := l.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(ledgerPrefix + id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger lookup %s: %w", id, err)
	}
	return true, nil
}

func (l *BadgerLedger) Record(id string, at time.Time) error {
	err := l.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(ledgerPrefix+id), []byte(strconv.FormatInt(at.UnixMilli(), 10)))
		if l.ttl > 0 {
			e = e.WithTTL(l.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("ledger record %s: %w", id, err)
	}
	return nil
}

func (l *BadgerLedger) Close() error {
	return l.db.Close()
}
