package matchmaking

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mossy-p/stranger-signaling/internal/clock"
	"github.com/mossy-p/stranger-signaling/internal/models"
)

type fakePeer struct {
	mu     sync.Mutex
	msgs   [][]byte
	closed bool
}

func (p *fakePeer) Send(data []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.msgs = append(p.msgs, append([]byte(nil), data...))
	return true
}

func (p *fakePeer) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePeer) raw() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.msgs...)
}

// ofType decodes every received message of the given type.
func (p *fakePeer) ofType(t *testing.T, typ models.MessageType) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, data := range p.raw() {
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("peer received invalid JSON %q: %v", data, err)
		}
		if m["type"] == string(typ) {
			out = append(out, m)
		}
	}
	return out
}

type recordingObserver struct {
	mu      sync.Mutex
	counts  []models.Stats
	opened  []SessionInfo
	started []SessionInfo
	closed  []models.SessionRecord
}

func (o *recordingObserver) CountsChanged(stats models.Stats) {
	o.mu.Lock()
	o.counts = append(o.counts, stats)
	o.mu.Unlock()
}

func (o *recordingObserver) SessionOpened(info SessionInfo) {
	o.mu.Lock()
	o.opened = append(o.opened, info)
	o.mu.Unlock()
}

func (o *recordingObserver) SessionStarted(info SessionInfo) {
	o.mu.Lock()
	o.started = append(o.started, info)
	o.mu.Unlock()
}

func (o *recordingObserver) SessionClosed(record models.SessionRecord) {
	o.mu.Lock()
	o.closed = append(o.closed, record)
	o.mu.Unlock()
}

func (o *recordingObserver) closedRecords() []models.SessionRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]models.SessionRecord(nil), o.closed...)
}

type testHub struct {
	*Hub
	clock    *clock.Fake
	observer *recordingObserver
}

func newTestHub(t *testing.T) *testHub {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	observer := &recordingObserver{}
	seq := 0
	hub := NewHub(HubConfig{
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:             fake,
		Observer:          observer,
		BroadcastInterval: 5 * time.Second,
		NewSessionID: func() string {
			seq++
			return fmt.Sprintf("session-%d", seq)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
	})
	return &testHub{Hub: hub, clock: fake, observer: observer}
}

func (h *testHub) register(t *testing.T, id string) *fakePeer {
	t.Helper()
	peer := &fakePeer{}
	if err := h.Register(context.Background(), id, peer); err != nil {
		t.Fatalf("Register(%s) error = %v", id, err)
	}
	return peer
}

func (h *testHub) search(t *testing.T, id string, filters models.Filters, profile models.Profile) {
	t.Helper()
	criteria, err := NewCriteria(&filters, &profile)
	if err != nil {
		t.Fatalf("NewCriteria() error = %v", err)
	}
	if err := h.Search(context.Background(), id, criteria); err != nil {
		t.Fatalf("Search(%s) error = %v", id, err)
	}
}

func (h *testHub) inspect(t *testing.T, id string) ConnectionInfo {
	t.Helper()
	info, err := h.Inspect(context.Background(), id)
	if err != nil {
		t.Fatalf("Inspect(%s) error = %v", id, err)
	}
	return info
}

// checkInvariants verifies the cross-structure invariants from inside the
// hub goroutine.
func (h *testHub) checkInvariants(t *testing.T) {
	t.Helper()
	var problems []string
	err := h.exec(context.Background(), func() error {
		membership := make(map[string]int)
		for id, s := range h.sessions {
			if id != s.ID {
				problems = append(problems, fmt.Sprintf("session keyed %s has id %s", id, s.ID))
			}
			if s.Status == SessionClosed {
				problems = append(problems, fmt.Sprintf("closed session %s still in table", s.ID))
			}
			if s.Initiator == s.Receiver {
				problems = append(problems, fmt.Sprintf("session %s pairs %s with itself", s.ID, s.Initiator))
			}
			initiators := 0
			for _, pid := range s.Participants() {
				membership[pid]++
				if s.IsInitiator(pid) {
					initiators++
				}
				c, ok := h.registry.Get(pid)
				if !ok {
					problems = append(problems, fmt.Sprintf("session %s references unregistered %s", s.ID, pid))
					continue
				}
				if c.SessionID != s.ID {
					problems = append(problems, fmt.Sprintf("%s in session %s but points at %q", pid, s.ID, c.SessionID))
				}
			}
			if initiators != 1 {
				problems = append(problems, fmt.Sprintf("session %s has %d initiators", s.ID, initiators))
			}
		}

		var searching int64
		h.registry.each(func(c *Connection) {
			if c.State == StateSearching {
				searching++
			}
			if (c.SessionID != "") != (membership[c.ID] == 1) {
				problems = append(problems, fmt.Sprintf("%s sessionId=%q but member of %d sessions", c.ID, c.SessionID, membership[c.ID]))
			}
			if c.State.InSession() != (c.SessionID != "") {
				problems = append(problems, fmt.Sprintf("%s state %s with sessionId %q", c.ID, c.State, c.SessionID))
			}
			if (c.State == StateSearching) != h.queue.Contains(c.ID) {
				problems = append(problems, fmt.Sprintf("%s state %s queued=%v", c.ID, c.State, h.queue.Contains(c.ID)))
			}
		})
		for _, e := range h.queue.Entries() {
			if _, ok := h.registry.Get(e.ConnectionID); !ok {
				problems = append(problems, fmt.Sprintf("queue holds unregistered %s", e.ConnectionID))
			}
		}
		if got := h.registry.SearchingCount(); got != searching {
			problems = append(problems, fmt.Sprintf("searching counter %d, scan %d", got, searching))
		}
		if got := h.registry.OnlineCount(); got != int64(len(h.registry.conns)) {
			problems = append(problems, fmt.Sprintf("online counter %d, scan %d", got, len(h.registry.conns)))
		}
		if got := h.sessionCount.Load(); got != int64(len(h.sessions)) {
			problems = append(problems, fmt.Sprintf("session counter %d, table %d", got, len(h.sessions)))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("checkInvariants: %v", err)
	}
	for _, p := range problems {
		t.Error(p)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

const testSDP = "v=0\r\no=- 4215775240449105457 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"

func offerBytes(sessionID string) []byte {
	data, _ := json.Marshal(map[string]any{
		"type":      models.TypeOffer,
		"sessionId": sessionID,
		"sdp":       map[string]string{"type": "offer", "sdp": testSDP},
	})
	return data
}

var anyone = models.Filters{Gender: models.GenderAny}
