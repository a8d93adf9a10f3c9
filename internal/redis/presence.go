package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/mossy-p/stranger-signaling/internal/matchmaking"
	"github.com/mossy-p/stranger-signaling/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	statsKey          = "presence:stats"
	activeSessionsKey = "sessions:active"
	presenceChannel   = "presence"
	sessionTTL        = 24 * time.Hour
	writeTimeout      = 2 * time.Second
	presenceBuffer    = 1024
)

func sessionKey(id string) string {
	return "session:" + id
}

// PresenceEvent is published on the presence channel
type PresenceEvent struct {
	Type      string    `json:"type"`
	Online    int64     `json:"online"`
	Searching int64     `json:"searching"`
	Sessions  int64     `json:"sessions"`
	SessionID string    `json:"sessionId,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

type write func(ctx context.Context, pipe redis.Pipeliner)

// Presence mirrors hub events into Redis so other services can read who is
// online without talking to the hub. It implements matchmaking.Observer;
// events are buffered and dropped when Redis falls behind.
type Presence struct {
	client  *redis.Client
	log     *slog.Logger
	writes  chan write
	dropped atomic.Uint64
}

func NewPresence(client *redis.Client, logger *slog.Logger) *Presence {
	if logger == nil {
		logger = slog.Default()
	}
	return &Presence{
		client: client,
		log:    logger,
		writes: make(chan write, presenceBuffer),
	}
}

// Run applies buffered writes until ctx is done, then flushes what is left.
func (p *Presence) Run(ctx context.Context) {
	for {
		select {
		case w := <-p.writes:
			p.apply(context.Background(), w)
		case <-ctx.Done():
			for {
				select {
				case w := <-p.writes:
					p.apply(context.Background(), w)
				default:
					return
				}
			}
		}
	}
}

func (p *Presence) apply(ctx context.Context, w write) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if _, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		w(ctx, pipe)
		return nil
	}); err != nil {
		p.log.Warn("Failed to write presence", "error", err)
	}
}

func (p *Presence) enqueue(w write) {
	select {
	case p.writes <- w:
	default:
		if n := p.dropped.Add(1); n%100 == 1 {
			p.log.Warn("Presence buffer full, dropping writes", "dropped", n)
		}
	}
}

// Dropped reports how many writes were discarded.
func (p *Presence) Dropped() uint64 {
	return p.dropped.Load()
}

func (p *Presence) CountsChanged(stats models.Stats) {
	payload := mustJSON(PresenceEvent{
		Type:      "counts",
		Online:    stats.Online,
		Searching: stats.Searching,
		Sessions:  stats.Sessions,
		At:        time.Now(),
	})
	p.enqueue(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.HSet(ctx, statsKey, statsFields(stats))
		pipe.Publish(ctx, presenceChannel, payload)
	})
}

func (p *Presence) SessionOpened(info matchmaking.SessionInfo) {
	p.enqueue(func(ctx context.Context, pipe redis.Pipeliner) {
		key := sessionKey(info.ID)
		pipe.HSet(ctx, key, sessionFields(info))
		pipe.Expire(ctx, key, sessionTTL)
		pipe.SAdd(ctx, activeSessionsKey, info.ID)
	})
}

func (p *Presence) SessionStarted(info matchmaking.SessionInfo) {
	p.enqueue(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.HSet(ctx, sessionKey(info.ID), "started_at", info.StartedAt.UTC().Format(time.RFC3339Nano))
	})
}

func (p *Presence) SessionClosed(record models.SessionRecord) {
	payload := mustJSON(PresenceEvent{
		Type:      "session_closed",
		SessionID: record.ID,
		Reason:    record.CloseReason,
		At:        record.EndedAt,
	})
	p.enqueue(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.Del(ctx, sessionKey(record.ID))
		pipe.SRem(ctx, activeSessionsKey, record.ID)
		pipe.Publish(ctx, presenceChannel, payload)
	})
}

func statsFields(stats models.Stats) map[string]any {
	return map[string]any{
		"online":    strconv.FormatInt(stats.Online, 10),
		"searching": strconv.FormatInt(stats.Searching, 10),
		"sessions":  strconv.FormatInt(stats.Sessions, 10),
	}
}

func sessionFields(info matchmaking.SessionInfo) map[string]any {
	return map[string]any{
		"initiator":  info.InitiatorID,
		"receiver":   info.ReceiverID,
		"created_at": info.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
