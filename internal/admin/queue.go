package admin

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Queue is the durable mailbox between the admin process and the server.
type Queue interface {
	Append(a Action) error
	Pending() ([]Action, error)
	MarkExecuted(ids ...string) (int, error)
	Cleanup(now time.Time, retention time.Duration) (int, error)
}

// FileQueue stores one encoded Action per line in a flat file.
//
// Appends only add lines. MarkExecuted and Cleanup rewrite the whole file through
// a temp file and rename. Every operation holds the in-process mutex and an OS
// lock on a sibling ".lock" file, so a separate admin process using the same
// path never interleaves with a rewrite.
type FileQueue struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

// MaxLineLen is the longest line decoded as an action.
const MaxLineLen = 64 << 10

// entry keeps unparseable lines verbatim so rewrites never destroy them.
type entry struct {
	action Action
	raw    string
	ok     bool
}

func NewFileQueue(path string, logger *zap.Logger) (*FileQueue, error) {
	if path == "" {
		return nil, errors.New("queue path is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create queue dir: %w", err)
		}
	}
	return &FileQueue{path: path, logger: logger}, nil
}

func (q *FileQueue) Path() string { return q.path }

func (q *FileQueue) Append(a Action) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return q.withLock(true, func() error {
		f, err := os.OpenFile(q.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open queue: %w", err)
		}
		if _, err := f.WriteString(a.Encode() + "\n"); err != nil {
			_ = f.Close()
			return fmt.Errorf("append action: %w", err)
		}
		if err := f.Sync(); err != nil {
			_ = f.Close()
			return fmt.Errorf("sync queue: %w", err)
		}
		return f.Close()
	})
}

// All returns every parseable action in file order.
func (q *FileQueue) All() ([]Action, error) {
	var out []Action
	err := q.withLock(false, func() error {
		entries, err := q.load()
		if err != nil {
			return err
		}
		out = actions(entries)
		return nil
	})
	return out, err
}

func (q *FileQueue) Pending() ([]Action, error) {
	all, err := q.All()
	if err != nil {
		return nil, err
	}
	return lo.Filter(all, func(a Action, _ int) bool { return !a.Executed }), nil
}

// MarkExecuted flags the given ids and returns how many flipped from false to true.
func (q *FileQueue) MarkExecuted(ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	want := lo.SliceToMap(ids, func(id string) (string, struct{}) { return id, struct{}{} })

	changed := 0
	err := q.withLock(true, func() error {
		entries, err := q.load()
		if err != nil {
			return err
		}
		for i := range entries {
			if !entries[i].ok || entries[i].action.Executed {
				continue
			}
			if _, ok := want[entries[i].action.ID]; ok {
				entries[i].action.Executed = true
				changed++
			}
		}
		if changed == 0 {
			return nil
		}
		return q.rewrite(entries)
	})
	return changed, err
}

// Cleanup drops executed actions created strictly more than retention before now.
func (q *FileQueue) Cleanup(now time.Time, retention time.Duration) (int, error) {
	removed := 0
	err := q.withLock(true, func() error {
		entries, err := q.load()
		if err != nil {
			return err
		}
		kept := lo.Reject(entries, func(e entry, _ int) bool {
			return e.ok && e.action.Executed && now.Sub(e.action.CreatedAt) > retention
		})
		removed = len(entries) - len(kept)
		if removed == 0 {
			return nil
		}
		return q.rewrite(kept)
	})
	return removed, err
}

func (q *FileQueue) withLock(exclusive bool, fn func() error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	lf, err := os.OpenFile(q.path+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open queue lock: %w", err)
	}
	defer lf.Close()

	if err := lockFile(lf, exclusive); err != nil {
		return fmt.Errorf("lock queue: %w", err)
	}
	defer func() { _ = unlockFile(lf) }()

	return fn()
}

func (q *FileQueue) load() ([]entry, error) {
	f, err := os.Open(q.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open queue: %w", err)
	}
	defer f.Close()

	var entries []entry
	r := bufio.NewReader(f)
	lineNo := 0
	for {
		line, err := r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read queue: %w", err)
		}
		if line != "" {
			lineNo++
			entries = q.appendLine(entries, strings.TrimRight(line, "\r\n"), lineNo)
		}
		if err != nil {
			break
		}
	}
	return entries, nil
}

// appendLine decodes one line. Lines that fail, including over-long ones, are kept raw.
func (q *FileQueue) appendLine(entries []entry, line string, lineNo int) []entry {
	if strings.TrimSpace(line) == "" {
		return entries
	}
	if len(line) > MaxLineLen {
		q.logger.Warn("skipping over-long queue line",
			zap.String("path", q.path), zap.Int("line", lineNo), zap.Int("bytes", len(line)))
		return append(entries, entry{raw: line})
	}
	a, err := Decode(line)
	if err != nil {
		q.logger.Warn("skipping unparseable queue line",
			zap.String("path", q.path), zap.Int("line", lineNo), zap.Error(err))
		return append(entries, entry{raw: line})
	}
	return append(entries, entry{action: a, ok: true})
}

func (q *FileQueue) rewrite(entries []entry) error {
	tmp, err := os.CreateTemp(filepath.Dir(q.path), filepath.Base(q.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp queue: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, e := range entries {
		line := e.raw
		if e.ok {
			line = e.action.Encode()
		}
		if _, err := w.WriteString(line + "\n"); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("write temp queue: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush temp queue: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp queue: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp queue: %w", err)
	}
	if err := os.Rename(tmp.Name(), q.path); err != nil {
		return fmt.Errorf("replace queue: %w", err)
	}
	return nil
}

func actions(entries []entry) []Action {
	return lo.FilterMap(entries, func(e entry, _ int) (Action, bool) { return e.action, e.ok })
}
