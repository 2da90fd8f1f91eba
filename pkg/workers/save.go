package workers

import (
	"context"
	"time"

	"github.com/cbodonnell/duelsync/pkg/game/types"
	"github.com/cbodonnell/duelsync/pkg/log"
	"github.com/cbodonnell/duelsync/pkg/messages"
	"github.com/cbodonnell/duelsync/pkg/repositories"
	"github.com/cbodonnell/duelsync/pkg/repositories/models"
	"github.com/cbodonnell/duelsync/pkg/state"
)

const (
	DefaultMatchLogBufferSize = 256
	DefaultMatchLogTimeout    = 5 * time.Second
)

// MatchLogWorker writes reconciled actions and snapshots to a repository
// off the consumer goroutine.
type MatchLogWorker struct {
	repository repositories.Repository
	store      *state.Store
	sessionID  string
	interval   time.Duration
	records    chan interface{}
	now        func() time.Time
	logger     *log.Logger
}

type NewMatchLogWorkerOptions struct {
	Repository repositories.Repository
	Store      *state.Store
	SessionID  string
	// Interval between periodic snapshots. Zero disables them.
	Interval   time.Duration
	BufferSize int
	Now        func() time.Time
	Logger     *log.Logger
}

// NewMatchLogWorker creates a new MatchLogWorker.
// Records are buffered; when the buffer is full they are dropped so the
// consumer never waits on the database.
func NewMatchLogWorker(opts NewMatchLogWorkerOptions) *MatchLogWorker {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultMatchLogBufferSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Default().With("matchlog")
	}
	return &MatchLogWorker{
		repository: opts.Repository,
		store:      opts.Store,
		sessionID:  opts.SessionID,
		interval:   opts.Interval,
		records:    make(chan interface{}, opts.BufferSize),
		now:        opts.Now,
		logger:     opts.Logger,
	}
}

func (w *MatchLogWorker) RecordAction(side types.Side, msg *messages.ActionMessage) {
	w.offer(&models.ActionRecord{
		SessionID: w.sessionID,
		Timestamp: w.now().UnixMilli(),
		PlayerID:  msg.PlayerID,
		Side:      side.String(),
		Action:    msg.Action,
		Hit:       bool(msg.Hit),
	})
}

// RecordSnapshot records the store as it is after the snapshot was merged.
func (w *MatchLogWorker) RecordSnapshot(*messages.GameStateSnapshot) {
	w.offer(w.snapshotRecord(w.now()))
}

func (w *MatchLogWorker) snapshotRecord(t time.Time) *models.SnapshotRecord {
	view := w.store.View()
	return &models.SnapshotRecord{
		SessionID:   w.sessionID,
		Timestamp:   t.UnixMilli(),
		Local:       view.Local,
		Remote:      view.Remote,
		LocalScore:  view.LocalScore,
		RemoteScore: view.RemoteScore,
	}
}

func (w *MatchLogWorker) offer(record interface{}) {
	select {
	case w.records <- record:
	default:
		w.logger.Warn("Match log buffer full, dropping %T", record)
	}
}

func (w *MatchLogWorker) Start(ctx context.Context) {
	var tick <-chan time.Time
	if w.interval > 0 {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case record := <-w.records:
			w.save(record)
		case t := <-tick:
			w.save(w.snapshotRecord(t))
		}
	}
}

// drain saves what is still buffered at shutdown.
func (w *MatchLogWorker) drain() {
	for {
		select {
		case record := <-w.records:
			w.save(record)
		default:
			return
		}
	}
}

func (w *MatchLogWorker) save(record interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultMatchLogTimeout)
	defer cancel()

	switch record := record.(type) {
	case *models.ActionRecord:
		if err := w.repository.SaveAction(ctx, record); err != nil {
			w.logger.Error("Failed to save action: %v", err)
		}
	case *models.SnapshotRecord:
		if err := w.repository.SaveSnapshot(ctx, record); err != nil {
			w.logger.Error("Failed to save snapshot: %v", err)
		}
	default:
		w.logger.Error("Unknown match log record type %T", record)
	}
}
