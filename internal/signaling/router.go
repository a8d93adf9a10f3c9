package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mossy-p/stranger-signaling/internal/matchmaking"
	"github.com/mossy-p/stranger-signaling/internal/models"
)

const (
	DefaultMaxMessageBytes = 64 << 10
	maxConnectionIDLength  = 128
	maxChatTextLength      = 4096
)

// Hub is the subset of *matchmaking.Hub the router drives.
type Hub interface {
	Register(ctx context.Context, id string, peer matchmaking.Peer) error
	Unregister(id string, peer matchmaking.Peer)
	Search(ctx context.Context, id string, criteria matchmaking.Criteria) error
	StopSearch(ctx context.Context, id string) error
	FindNext(ctx context.Context, id string) error
	Relay(ctx context.Context, id string, msgType models.MessageType, sessionID string, data []byte) error
	ReportConnected(ctx context.Context, id string, sessionID string) error
}

// Conn is the router's per-socket state. Messages for one Conn must be
// handled sequentially.
type Conn struct {
	peer       matchmaking.Peer
	fallbackID string
	id         string
}

// NewConn wraps peer. fallbackID names the connection when register does
// not supply an id.
func NewConn(peer matchmaking.Peer, fallbackID string) *Conn {
	return &Conn{peer: peer, fallbackID: fallbackID}
}

// ID is empty until the connection registers.
func (c *Conn) ID() string {
	return c.id
}

// Router decodes inbound envelopes and dispatches them to the hub.
type Router struct {
	hub      Hub
	log      *slog.Logger
	maxBytes int
}

func NewRouter(hub Hub, logger *slog.Logger, maxMessageBytes int) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if maxMessageBytes <= 0 {
		maxMessageBytes = DefaultMaxMessageBytes
	}
	return &Router{hub: hub, log: logger, maxBytes: maxMessageBytes}
}

// Handle processes one inbound message. Rejections the client has to act on
// are answered with an error envelope; relays that lost their session are
// dropped silently. The returned error is for logging only.
func (r *Router) Handle(ctx context.Context, c *Conn, data []byte) error {
	if len(data) > r.maxBytes {
		return r.reject(c, "", fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(data)))
	}

	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return r.reject(c, "", fmt.Errorf("%w: %v", ErrInvalidPayload, err))
	}

	err := r.dispatch(ctx, c, env, data)
	if err == nil {
		return nil
	}
	if matchmaking.IsDropped(err) {
		r.log.Debug("Dropped message", "peer", c.id, "type", env.Type, "error", err)
		return err
	}
	return r.reject(c, env.Type, err)
}

func (r *Router) dispatch(ctx context.Context, c *Conn, env models.Envelope, data []byte) error {
	if env.Type != models.TypeRegister && c.id == "" {
		return fmt.Errorf("%s before register: %w", env.Type, matchmaking.ErrInvalidState)
	}

	switch env.Type {
	case models.TypeRegister:
		return r.register(ctx, c, env)

	case models.TypeSearch:
		criteria, err := matchmaking.NewCriteria(env.Filters, env.Profile)
		if err != nil {
			return err
		}
		return r.hub.Search(ctx, c.id, criteria)

	case models.TypeStopSearch:
		return r.hub.StopSearch(ctx, c.id)

	case models.TypeFindNext:
		return r.hub.FindNext(ctx, c.id)

	case models.TypeOffer, models.TypeAnswer:
		if err := ValidateSDP(env.Type, env.SDP); err != nil {
			return err
		}
		return r.hub.Relay(ctx, c.id, env.Type, env.SessionID, data)

	case models.TypeICECandidate:
		if err := ValidateCandidate(env.Candidate); err != nil {
			return err
		}
		return r.hub.Relay(ctx, c.id, env.Type, env.SessionID, data)

	case models.TypeChatMessage:
		if strings.TrimSpace(env.Text) == "" {
			return fmt.Errorf("%w: empty chat message", ErrInvalidPayload)
		}
		if len(env.Text) > maxChatTextLength {
			return fmt.Errorf("%w: chat message over %d bytes", ErrInvalidPayload, maxChatTextLength)
		}
		return r.hub.Relay(ctx, c.id, env.Type, env.SessionID, data)

	case models.TypeSessionConnected:
		return r.hub.ReportConnected(ctx, c.id, env.SessionID)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func (r *Router) register(ctx context.Context, c *Conn, env models.Envelope) error {
	if c.id != "" {
		return fmt.Errorf("already registered as %s: %w", c.id, matchmaking.ErrInvalidState)
	}
	id := strings.TrimSpace(env.ConnectionID)
	if id == "" {
		id = c.fallbackID
	}
	if id == "" || len(id) > maxConnectionIDLength {
		return fmt.Errorf("%w: connection id must be 1-%d bytes", ErrInvalidPayload, maxConnectionIDLength)
	}
	if err := r.hub.Register(ctx, id, c.peer); err != nil {
		return err
	}
	c.id = id
	return nil
}

// Close unregisters the connection, tearing down its queue entry and session.
func (r *Router) Close(c *Conn) {
	if c.id == "" {
		return
	}
	r.hub.Unregister(c.id, c.peer)
}

func (r *Router) reject(c *Conn, request models.MessageType, err error) error {
	r.log.Info("Rejected message", "peer", c.id, "type", request, "error", err)
	msg := models.ErrorMessage{
		Type:    models.TypeError,
		Code:    Code(err),
		Error:   err.Error(),
		Request: request,
	}
	data, merr := json.Marshal(msg)
	if merr != nil {
		return errors.Join(err, merr)
	}
	c.peer.Send(data)
	return err
}

// Code extends matchmaking.Code with the router's own errors.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrUnknownType):
		return "unknown_type"
	case errors.Is(err, ErrMessageTooLarge):
		return "message_too_large"
	default:
		return matchmaking.Code(err)
	}
}
