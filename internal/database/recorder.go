package database

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mossy-p/stranger-signaling/internal/matchmaking"
	"github.com/mossy-p/stranger-signaling/internal/models"
)

const (
	recorderBuffer = 512
	insertTimeout  = 5 * time.Second
)

// SessionWriter persists finished sessions.
type SessionWriter interface {
	InsertSession(ctx context.Context, record *models.SessionRecord) error
}

// Recorder writes every closed session to the history table. It only
// reacts to SessionClosed; records queue up in a buffer and are dropped
// when the database falls behind.
type Recorder struct {
	writer  SessionWriter
	log     *slog.Logger
	records chan models.SessionRecord
	dropped atomic.Uint64
}

func NewRecorder(writer SessionWriter, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		writer:  writer,
		log:     logger,
		records: make(chan models.SessionRecord, recorderBuffer),
	}
}

// Run drains the buffer until ctx is done and then writes what is still
// queued.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case rec := <-r.records:
			r.insert(rec)
		case <-ctx.Done():
			for {
				select {
				case rec := <-r.records:
					r.insert(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) insert(rec models.SessionRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()
	if err := r.writer.InsertSession(ctx, &rec); err != nil {
		r.log.Warn("Failed to record session", "session", rec.ID, "error", err)
		return
	}
	r.log.Debug("Session recorded", "session", rec.ID, "reason", rec.CloseReason)
}

func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *Recorder) SessionClosed(record models.SessionRecord) {
	select {
	case r.records <- record:
	default:
		r.dropped.Add(1)
		r.log.Warn("Session history buffer full", "session", record.ID)
	}
}

func (r *Recorder) CountsChanged(models.Stats)             {}
func (r *Recorder) SessionOpened(matchmaking.SessionInfo)  {}
func (r *Recorder) SessionStarted(matchmaking.SessionInfo) {}
