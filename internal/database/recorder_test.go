package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mossy-p/stranger-signaling/internal/matchmaking"
	"github.com/mossy-p/stranger-signaling/internal/models"
)

var _ matchmaking.Observer = (*Recorder)(nil)

type fakeWriter struct {
	mu      sync.Mutex
	records []models.SessionRecord
	fail    bool
}

func (f *fakeWriter) InsertSession(ctx context.Context, record *models.SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("db down")
	}
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeWriter) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.records {
		out = append(out, r.ID)
	}
	return out
}

func TestRecorderWritesClosedSessions(t *testing.T) {
	w := &fakeWriter{}
	r := NewRecorder(w, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	r.SessionOpened(matchmaking.SessionInfo{ID: "ignored"})
	r.CountsChanged(models.Stats{Online: 2})
	r.SessionClosed(models.SessionRecord{ID: "s1", CloseReason: "find_next", DurationMS: 1200})
	r.SessionClosed(models.SessionRecord{ID: "s2", CloseReason: "disconnect"})

	deadline := time.Now().Add(2 * time.Second)
	for len(w.ids()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	got := w.ids()
	if len(got) != 2 || got[0] != "s1" || got[1] != "s2" {
		t.Fatalf("recorded %v, want [s1 s2]", got)
	}
}

func TestRecorderFlushesOnShutdown(t *testing.T) {
	w := &fakeWriter{}
	r := NewRecorder(w, nil)
	r.SessionClosed(models.SessionRecord{ID: "s1"})
	r.SessionClosed(models.SessionRecord{ID: "s2"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Run(ctx)

	if got := w.ids(); len(got) != 2 {
		t.Fatalf("recorded %v after shutdown, want 2 records", got)
	}
}

func TestRecorderDropsWhenFull(t *testing.T) {
	r := NewRecorder(&fakeWriter{}, nil)
	for i := 0; i < recorderBuffer+3; i++ {
		r.SessionClosed(models.SessionRecord{ID: "s"})
	}
	if got := r.Dropped(); got != 3 {
		t.Errorf("Dropped() = %d, want 3", got)
	}
}

func TestRecorderKeepsGoingAfterWriteError(t *testing.T) {
	w := &fakeWriter{fail: true}
	r := NewRecorder(w, nil)
	r.SessionClosed(models.SessionRecord{ID: "lost"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Run(ctx)

	w.fail = false
	r.SessionClosed(models.SessionRecord{ID: "kept"})
	r.Run(ctx)

	if got := w.ids(); len(got) != 1 || got[0] != "kept" {
		t.Fatalf("recorded %v, want [kept]", got)
	}
}
