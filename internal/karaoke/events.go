package karaoke

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Publisher emits state-change events on the shared broadcast channel.
// Delivery is best-effort: a failed publish is logged and never fails the
// operation that triggered it.
type Publisher struct {
	rdb *redis.Client
	log zerolog.Logger
}

func NewPublisher(rdb *redis.Client, log zerolog.Logger) *Publisher {
	return &Publisher{rdb: rdb, log: log}
}

func (p *Publisher) Publish(ctx context.Context, eventType string, payload map[string]any) {
	if p.rdb == nil {
		return
	}
	data, err := json.Marshal(map[string]any{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		p.log.Error().Err(err).Str("type", eventType).Msg("marshal event")
		return
	}
	if err := p.rdb.Publish(ctx, "broadcast", string(data)).Err(); err != nil {
		p.log.Warn().Err(err).Str("type", eventType).Msg("publish event")
	}
}
