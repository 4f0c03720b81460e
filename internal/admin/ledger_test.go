package admin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLedgers_RecordThenSeen(t *testing.T) {
	badgerLedger, err := OpenBadgerLedger("", DefaultLedgerTTL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = badgerLedger.Close() })

	ledgers := map[string]Ledger{
		"memory": NewMemoryLedger(),
		"badger": badgerLedger,
	}
	for name, l := range ledgers {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			seen, err := l.Seen("a1")
			req.NoError(err)
			req.False(seen)

			req.NoError(l.Record("a1", time.Now()))

			seen, err = l.Seen("a1")
			req.NoError(err)
			req.True(seen)

			seen, err = l.Seen("a2")
			req.NoError(err)
			req.False(seen)
		})
	}
}

func TestBadgerLedger_PersistsAcrossReopen(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()

	l, err := OpenBadgerLedger(dir, DefaultLedgerTTL)
	req.NoError(err)
	req.NoError(l.Record("kick-1", time.Now()))
	req.NoError(l.Close())

	l, err = OpenBadgerLedger(dir, DefaultLedgerTTL)
	req.NoError(err)
	t.Cleanup(func() { _ = l.Close() })

	seen, err := l.Seen("kick-1")
	req.NoError(err)
	req.True(seen)
}
