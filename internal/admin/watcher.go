package admin

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Executor applies actions to live sessions. Kick and MovePlayer return false
// when no session has the given name.
type Executor interface {
	Kick(username, reason string) bool
	MovePlayer(username, roomID string) bool
	Announce(roomID, text string) int
}

// Outcomes recorded in ActionsTotal.
const (
	OutcomeApplied    = "applied"
	OutcomeUnresolved = "unresolved"
	OutcomeDuplicate  = "duplicate"
	OutcomeInvalid    = "invalid"
)

type WatcherConfig struct {
	// PollInterval is how often the queue is drained.
	PollInterval time.Duration

	// CleanupInterval is how often executed entries are purged.
	CleanupInterval time.Duration

	// Retention is how long an executed entry stays in the queue.
	Retention time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// Watcher drains a Queue on a timer and applies each pending action exactly once
// per Ledger. It records the id in the ledger, applies the action, then marks
// it executed in the queue; an id already in the ledger only gets its flag repaired.
type Watcher struct {
	queue  Queue
	ledger Ledger
	exec   Executor
	config WatcherConfig
	logger *zap.Logger

	mu          sync.Mutex
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	stopping    bool
	lastCleanup time.Time
}

func NewWatcher(queue Queue, ledger Ledger, exec Executor, config WatcherConfig, logger *zap.Logger) *Watcher {
	if ledger == nil {
		ledger = NewMemoryLedger()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}
	if config.Retention <= 0 {
		config.Retention = 5 * time.Minute
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Watcher{
		queue:       queue,
		ledger:      ledger,
		exec:        exec,
		config:      config,
		logger:      logger,
		lastCleanup: config.Now(),
	}
}

// Start runs the polling loop in a goroutine. Calling Start on a running watcher is a no-op.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.running || w.stopping {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.lastCleanup = w.config.Now()
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	go w.loop(stopCh, doneCh)
}

// Stop interrupts the loop and waits for the current poll to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running || w.stopping {
		w.mu.Unlock()
		return
	}
	w.stopping = true
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)
	<-doneCh

	w.mu.Lock()
	w.running = false
	w.stopping = false
	w.mu.Unlock()
}

func (w *Watcher) loop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.logger.Info("admin watcher started", zap.Duration("interval", w.config.PollInterval))
	for {
		select {
		case <-stopCh:
			w.logger.Info("admin watcher stopped")
			return
		case <-ticker.C:
			w.Poll()
		}
	}
}

// Poll runs one drain-apply-mark cycle and, when due, a cleanup.
func (w *Watcher) Poll() {
	now := w.config.Now()

	pending, err := w.queue.Pending()
	if err != nil {
		QueueErrors.WithLabelValues("pending").Inc()
		w.logger.Warn("admin queue read failed", zap.Error(err))
		return
	}
	QueuePending.Set(float64(len(pending)))

	var done []string
	for _, a := range pending {
		seen, err := w.ledger.Seen(a.ID)
		if err != nil {
			QueueErrors.WithLabelValues("ledger").Inc()
			w.logger.Warn("ledger lookup failed, retrying next poll", zap.String("action", a.ID), zap.Error(err))
			continue
		}
		if seen {
			ActionsTotal.WithLabelValues(string(a.Type), OutcomeDuplicate).Inc()
			w.logger.Info("action already applied, repairing executed flag", zap.String("action", a.ID))
			done = append(done, a.ID)
			continue
		}
		if err := w.ledger.Record(a.ID, now); err != nil {
			QueueErrors.WithLabelValues("ledger").Inc()
			w.logger.Warn("ledger write failed, retrying next poll", zap.String("action", a.ID), zap.Error(err))
			continue
		}
		outcome := w.apply(a)
		ActionsTotal.WithLabelValues(string(a.Type), outcome).Inc()
		done = append(done, a.ID)
	}

	if len(done) > 0 {
		if _, err := w.queue.MarkExecuted(done...); err != nil {
			QueueErrors.WithLabelValues("mark").Inc()
			w.logger.Warn("marking actions executed failed", zap.Strings("actions", done), zap.Error(err))
		}
	}

	w.mu.Lock()
	due := now.Sub(w.lastCleanup) >= w.config.CleanupInterval
	if due {
		w.lastCleanup = now
	}
	w.mu.Unlock()
	if due {
		w.Cleanup(now)
	}
}

// Cleanup purges executed entries older than the retention window.
func (w *Watcher) Cleanup(now time.Time) {
	removed, err := w.queue.Cleanup(now, w.config.Retention)
	if err != nil {
		QueueErrors.WithLabelValues("cleanup").Inc()
		w.logger.Warn("admin queue cleanup failed", zap.Error(err))
		return
	}
	if removed > 0 {
		w.logger.Info("admin queue cleaned", zap.Int("removed", removed))
	}
}

func (w *Watcher) apply(a Action) string {
	log := w.logger.With(zap.String("action", a.ID), zap.String("type", string(a.Type)))

	switch a.Type {
	case ActionKick:
		if !w.exec.Kick(a.Username, a.Reason) {
			log.Info("kick target not online", zap.String("username", a.Username))
			return OutcomeUnresolved
		}
		log.Info("player kicked", zap.String("username", a.Username), zap.String("reason", a.Reason))
	case ActionMovePlayer:
		if !w.exec.MovePlayer(a.Username, a.RoomID) {
			log.Info("move target not online", zap.String("username", a.Username))
			return OutcomeUnresolved
		}
		log.Info("player moved", zap.String("username", a.Username), zap.String("room", a.RoomID))
	case ActionAnnounce:
		n := w.exec.Announce(a.RoomID, a.Reason)
		log.Info("announcement sent", zap.String("room", a.RoomID), zap.Int("recipients", n))
	default:
		log.Warn("unknown action type")
		return OutcomeInvalid
	}
	return OutcomeApplied
}
