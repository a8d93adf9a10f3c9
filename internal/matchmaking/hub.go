package matchmaking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mossy-p/stranger-signaling/internal/clock"
	"github.com/mossy-p/stranger-signaling/internal/models"
)

// DefaultBroadcastInterval bounds how often online_count is pushed to clients.
const DefaultBroadcastInterval = 5 * time.Second

// Peer is the outbound half of a client connection. Send must not block: it
// queues data for the connection's writer and reports false if it could not.
type Peer interface {
	Send(data []byte) bool
	Close()
}

type HubConfig struct {
	Logger            *slog.Logger
	Clock             clock.Clock
	Observer          Observer
	BroadcastInterval time.Duration
	NewSessionID      func() string
}

// Hub owns the registry, the queue and the session table.
type Hub struct {
	log          *slog.Logger
	clock        clock.Clock
	observer     Observer
	interval     time.Duration
	newSessionID func() string

	registry     *Registry
	queue        *Queue
	sessions     map[string]*Session
	sessionCount atomic.Int64

	cmds          chan command
	leaves        chan leave
	done          chan struct{}
	lastBroadcast models.Stats
}

type command struct {
	fn    func() error
	reply chan error
}

type leave struct {
	id   string
	peer Peer
	done chan struct{}
}

func NewHub(cfg HubConfig) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Observer == nil {
		cfg.Observer = Observers{}
	}
	if cfg.BroadcastInterval <= 0 {
		cfg.BroadcastInterval = DefaultBroadcastInterval
	}
	if cfg.NewSessionID == nil {
		cfg.NewSessionID = uuid.NewString
	}
	return &Hub{
		log:          cfg.Logger,
		clock:        cfg.Clock,
		observer:     cfg.Observer,
		interval:     cfg.BroadcastInterval,
		newSessionID: cfg.NewSessionID,
		registry:     NewRegistry(),
		queue:        NewQueue(),
		sessions:     make(map[string]*Session),
		cmds:         make(chan command),
		leaves:       make(chan leave, 64),
		done:         make(chan struct{}),
	}
}

// Run processes commands until ctx is cancelled. Pending disconnects are
// always drained before the next command.
func (h *Hub) Run(ctx context.Context) {
	ticker := h.clock.NewTicker(h.interval)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case l := <-h.leaves:
			h.handleLeave(l)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case l := <-h.leaves:
			h.handleLeave(l)
		case cmd := <-h.cmds:
			cmd.reply <- cmd.fn()
		case <-ticker.C:
			h.broadcastCounts()
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) exec(ctx context.Context, fn func() error) error {
	cmd := command{fn: fn, reply: make(chan error, 1)}
	select {
	case h.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrHubStopped
	}
	// Once accepted the command runs without blocking, so wait for it.
	select {
	case err := <-cmd.reply:
		return err
	case <-h.done:
		select {
		case err := <-cmd.reply:
			return err
		default:
			return ErrHubStopped
		}
	}
}

// Register adds a connection. A live registration under the same id is
// replaced: the stale socket is told why, torn down and closed.
func (h *Hub) Register(ctx context.Context, id string, peer Peer) error {
	return h.exec(ctx, func() error {
		if stale, ok := h.registry.Get(id); ok {
			h.log.Info("Replacing stale registration", "peer", id)
			h.sendError(stale, ErrDuplicateConnection, models.TypeRegister)
			h.detach(stale, CloseReplaced)
			stale.peer.Close()
		}

		c := &Connection{
			ID:           id,
			State:        StateIdle,
			RegisteredAt: h.clock.Now(),
			peer:         peer,
		}
		if err := h.registry.Add(c); err != nil {
			return err
		}
		h.send(c, models.RegisteredMessage{Type: models.TypeRegistered, ConnectionID: id})
		h.send(c, h.onlineCountMessage())
		h.log.Debug("Peer registered", "peer", id, "online", h.registry.OnlineCount())
		return nil
	})
}

// Unregister removes the connection registered by peer under id, cascading
// into queue removal and session teardown. It is a no-op when id now belongs
// to a newer registration.
func (h *Hub) Unregister(id string, peer Peer) {
	l := leave{id: id, peer: peer, done: make(chan struct{})}
	select {
	case h.leaves <- l:
	case <-h.done:
		return
	}
	select {
	case <-l.done:
	case <-h.done:
	}
}

func (h *Hub) handleLeave(l leave) {
	defer close(l.done)
	c, ok := h.registry.Get(l.id)
	if !ok || c.peer != l.peer {
		return
	}
	h.detach(c, CloseDisconnect)
	h.log.Debug("Peer unregistered", "peer", l.id, "online", h.registry.OnlineCount())
}

// detach removes c from every structure that references it.
func (h *Hub) detach(c *Connection, reason CloseReason) {
	if h.queue.Dequeue(c.ID) {
		h.transition(c, StateIdle)
	}
	if s, ok := h.sessions[c.SessionID]; ok {
		h.closeSession(s, reason, c, false)
	}
	h.queue.ForgetPeer(c.ID)
	h.registry.Remove(c.ID)
}

// Search enqueues id with the given criteria and tries to pair it.
func (h *Hub) Search(ctx context.Context, id string, criteria Criteria) error {
	return h.exec(ctx, func() error {
		c, err := h.lookup(id)
		if err != nil {
			return err
		}
		switch c.State {
		case StateSearching:
			return ErrAlreadyQueued
		case StateMatched, StateConnected:
			return ErrAlreadyMatched
		}
		c.Criteria = criteria
		c.searched = true
		h.forgetPeer(c)
		h.enqueue(c)
		return nil
	})
}

// StopSearch leaves the queue. Inside a session it ends the session; the
// peer is requeued and id goes idle.
func (h *Hub) StopSearch(ctx context.Context, id string) error {
	return h.exec(ctx, func() error {
		c, err := h.lookup(id)
		if err != nil {
			return err
		}
		switch c.State {
		case StateIdle:
		case StateSearching:
			h.queue.Dequeue(c.ID)
			h.transition(c, StateIdle)
		default:
			if s, ok := h.sessions[c.SessionID]; ok {
				h.closeSession(s, CloseStopSearch, c, false)
			} else {
				h.transition(c, StateIdle)
			}
		}
		return nil
	})
}

// FindNext ends the current session, if any, and searches again with the
// last used criteria. Both participants end up searching.
func (h *Hub) FindNext(ctx context.Context, id string) error {
	return h.exec(ctx, func() error {
		c, err := h.lookup(id)
		if err != nil {
			return err
		}
		switch c.State {
		case StateSearching:
			return ErrAlreadyQueued
		case StateIdle:
			if !c.searched {
				return fmt.Errorf("find_next before search: %w", ErrInvalidState)
			}
			h.enqueue(c)
		default:
			if s, ok := h.sessions[c.SessionID]; ok {
				h.closeSession(s, CloseFindNext, c, true)
			} else {
				h.transition(c, StateIdle)
				h.enqueue(c)
			}
		}
		return nil
	})
}

// Relay forwards data verbatim to the other participant of id's session.
// sessionID, when non-empty, must name the sender's current session.
func (h *Hub) Relay(ctx context.Context, id string, msgType models.MessageType, sessionID string, data []byte) error {
	if !msgType.IsRelayed() {
		return fmt.Errorf("%s is not relayed: %w", msgType, ErrInvalidState)
	}
	return h.exec(ctx, func() error {
		c, s, err := h.sessionOf(id, msgType, sessionID)
		if err != nil {
			return err
		}

		if s.Status == SessionNegotiating {
			switch {
			case msgType == models.TypeOffer && !s.IsInitiator(id):
				return fmt.Errorf("offer from receiver while negotiating: %w", ErrInvalidState)
			case msgType == models.TypeAnswer && s.IsInitiator(id):
				return fmt.Errorf("answer from initiator while negotiating: %w", ErrInvalidState)
			}
		}

		peerID, _ := s.PeerOf(c.ID)
		peer, ok := h.registry.Get(peerID)
		if !ok || peer.SessionID != s.ID {
			return fmt.Errorf("relay %s to %s: %w", msgType, peerID, ErrPeerGone)
		}
		if !peer.peer.Send(data) {
			return fmt.Errorf("relay %s to %s: %w", msgType, peerID, ErrPeerGone)
		}

		if msgType == models.TypeAnswer && s.Status == SessionNegotiating {
			s.Status = SessionActive
			h.transition(c, StateConnected)
			h.transition(peer, StateConnected)
			h.log.Debug("Session active", "session", s.ID)
		}
		return nil
	})
}

// ReportConnected records a client's claim that media is flowing. The first
// report stamps the session start used for duration display.
func (h *Hub) ReportConnected(ctx context.Context, id string, sessionID string) error {
	return h.exec(ctx, func() error {
		_, s, err := h.sessionOf(id, models.TypeSessionConnected, sessionID)
		if err != nil {
			return err
		}
		if !s.StartedAt.IsZero() {
			return nil
		}
		s.StartedAt = h.clock.Now()
		msg := models.SessionStartedMessage{
			Type:      models.TypeSessionStarted,
			SessionID: s.ID,
			StartedAt: s.StartedAt,
		}
		for _, pid := range s.Participants() {
			if p, ok := h.registry.Get(pid); ok {
				h.send(p, msg)
			}
		}
		h.observer.SessionStarted(s.info())
		return nil
	})
}

func (h *Hub) sessionOf(id string, msgType models.MessageType, sessionID string) (*Connection, *Session, error) {
	c, err := h.lookup(id)
	if err != nil {
		return nil, nil, err
	}
	switch c.State {
	case StateIdle:
		return nil, nil, fmt.Errorf("%s while %s: %w", msgType, c.State, ErrInvalidState)
	case StateSearching:
		if sessionID != "" {
			return nil, nil, fmt.Errorf("%s for session %s: %w", msgType, sessionID, ErrSessionClosed)
		}
		return nil, nil, ErrNotInSession
	}
	s, ok := h.sessions[c.SessionID]
	if !ok || !s.Has(c.ID) {
		return nil, nil, ErrNotInSession
	}
	if sessionID != "" && sessionID != s.ID {
		return nil, nil, fmt.Errorf("%s for session %s: %w", msgType, sessionID, ErrSessionClosed)
	}
	return c, s, nil
}

// Stats reads the counters without going through the hub goroutine.
func (h *Hub) Stats() models.Stats {
	return models.Stats{
		Online:    h.registry.OnlineCount(),
		Searching: h.registry.SearchingCount(),
		Sessions:  h.sessionCount.Load(),
	}
}

// Sessions lists live sessions, oldest first.
func (h *Hub) Sessions(ctx context.Context) ([]models.SessionSnapshot, error) {
	var out []models.SessionSnapshot
	err := h.exec(ctx, func() error {
		now := h.clock.Now()
		out = make([]models.SessionSnapshot, 0, len(h.sessions))
		for _, s := range h.sessions {
			out = append(out, s.snapshot(now))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

// ConnectionInfo is a copy of a connection's state.
type ConnectionInfo struct {
	ID        string
	State     State
	SessionID string
	Criteria  Criteria
	Queued    bool
}

// Inspect returns the current state of connection id.
func (h *Hub) Inspect(ctx context.Context, id string) (ConnectionInfo, error) {
	var info ConnectionInfo
	err := h.exec(ctx, func() error {
		c, err := h.lookup(id)
		if err != nil {
			return err
		}
		info = ConnectionInfo{
			ID:        c.ID,
			State:     c.State,
			SessionID: c.SessionID,
			Criteria:  c.Criteria,
			Queued:    h.queue.Contains(c.ID),
		}
		return nil
	})
	return info, err
}

func (h *Hub) lookup(id string) (*Connection, error) {
	c, ok := h.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownConnection)
	}
	return c, nil
}

func (h *Hub) enqueue(c *Connection) {
	if !h.transition(c, StateSearching) {
		return
	}
	entry := &QueueEntry{
		ConnectionID: c.ID,
		Criteria:     c.Criteria,
		EnqueuedAt:   h.clock.Now(),
		LastPeer:     c.lastPeer,
	}
	if err := h.queue.Enqueue(entry); err != nil {
		h.log.Error("Failed to enqueue", "peer", c.ID, "error", err)
		return
	}

	for {
		match, ok := h.queue.TryMatch(c.ID)
		if !ok {
			return
		}
		if receiver, ok := h.registry.Get(match.ConnectionID); ok {
			h.openSession(receiver, c)
			return
		}
		// An entry without a connection can never be served; drop it and
		// keep c waiting at the back where it just arrived.
		h.log.Error("Dropping queued peer missing from registry", "peer", match.ConnectionID)
		if err := h.queue.Enqueue(entry); err != nil {
			h.log.Error("Failed to requeue", "peer", c.ID, "error", err)
			return
		}
	}
}

func (h *Hub) openSession(receiver, initiator *Connection) {
	s := &Session{
		ID:        h.newSessionID(),
		Receiver:  receiver.ID,
		Initiator: initiator.ID,
		Status:    SessionNegotiating,
		CreatedAt: h.clock.Now(),
	}
	h.sessions[s.ID] = s
	h.sessionCount.Add(1)

	for _, c := range []*Connection{receiver, initiator} {
		h.transition(c, StateMatched)
		c.SessionID = s.ID
	}

	h.send(receiver, models.MatchedMessage{Type: models.TypeMatched, SessionID: s.ID, IsInitiator: false})
	h.send(initiator, models.MatchedMessage{Type: models.TypeMatched, SessionID: s.ID, IsInitiator: true})
	h.observer.SessionOpened(s.info())
	h.log.Debug("Session opened", "session", s.ID, "initiator", initiator.ID, "receiver", receiver.ID)
}

// closeSession ends s. The survivor is notified and requeued; closer is
// requeued only when requeueCloser is set. Closing twice is a no-op.
func (h *Hub) closeSession(s *Session, reason CloseReason, closer *Connection, requeueCloser bool) {
	if s.Status == SessionClosed {
		return
	}
	s.Status = SessionClosed
	s.ClosedAt = h.clock.Now()
	delete(h.sessions, s.ID)
	h.sessionCount.Add(-1)

	var survivor *Connection
	for _, id := range s.Participants() {
		c, ok := h.registry.Get(id)
		if !ok || c.SessionID != s.ID {
			continue
		}
		c.SessionID = ""
		h.transition(c, StateIdle)
		if c != closer {
			survivor = c
		}
	}

	if survivor != nil {
		h.send(survivor, models.PeerDisconnectedMessage{Type: models.TypePeerDisconnected, SessionID: s.ID})
	}
	h.observer.SessionClosed(s.record(reason))
	h.log.Debug("Session closed", "session", s.ID, "reason", reason, "duration", s.Duration(s.ClosedAt))

	// Only find_next keeps the two apart on requeue; every other ending
	// lets them meet again.
	if reason == CloseFindNext && survivor != nil && closer != nil {
		survivor.lastPeer = closer.ID
		closer.lastPeer = survivor.ID
	} else {
		for _, c := range []*Connection{survivor, closer} {
			if c != nil {
				c.lastPeer = ""
			}
		}
	}

	if survivor != nil && survivor.searched {
		h.enqueue(survivor)
	}
	if closer != nil && requeueCloser {
		h.enqueue(closer)
	}
}

// forgetPeer drops the find_next exclusion between c and its last partner.
func (h *Hub) forgetPeer(c *Connection) {
	c.lastPeer = ""
	h.queue.ForgetPeer(c.ID)
}

func (h *Hub) transition(c *Connection, to State) bool {
	if err := h.registry.Transition(c, to); err != nil {
		h.log.Error("Illegal state transition", "peer", c.ID, "error", err)
		return false
	}
	return true
}

func (h *Hub) broadcastCounts() {
	stats := h.Stats()
	if stats == h.lastBroadcast {
		return
	}
	h.lastBroadcast = stats

	data, err := json.Marshal(h.onlineCountMessage())
	if err != nil {
		h.log.Error("Failed to marshal online count", "error", err)
		return
	}
	h.registry.each(func(c *Connection) {
		c.peer.Send(data)
	})
	h.observer.CountsChanged(stats)
}

func (h *Hub) onlineCountMessage() models.OnlineCountMessage {
	return models.OnlineCountMessage{
		Type:      models.TypeOnlineCount,
		Count:     h.registry.OnlineCount(),
		Searching: h.registry.SearchingCount(),
	}
}

func (h *Hub) shutdown() {
	now := h.clock.Now()
	for id, s := range h.sessions {
		s.Status = SessionClosed
		s.ClosedAt = now
		h.observer.SessionClosed(s.record(CloseShutdown))
		delete(h.sessions, id)
		h.sessionCount.Add(-1)
	}
	h.registry.each(func(c *Connection) {
		c.peer.Close()
	})
	h.log.Info("Hub stopped", "online", h.registry.OnlineCount())
}

func (h *Hub) send(c *Connection, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("Failed to marshal message", "peer", c.ID, "error", err)
		return
	}
	if !c.peer.Send(data) {
		h.log.Debug("Failed to send message, buffer full or closed", "peer", c.ID)
	}
}

func (h *Hub) sendError(c *Connection, err error, request models.MessageType) {
	h.send(c, models.ErrorMessage{
		Type:    models.TypeError,
		Code:    Code(err),
		Error:   err.Error(),
		Request: request,
	})
}
