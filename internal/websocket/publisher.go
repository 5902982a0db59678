package websocket

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"yojana-backend/internal/models"
)

// Publisher pushes conversation and identity updates onto a user's Redis
// channel, where every Hub subscribed for that user picks them up.
type Publisher struct {
	redisClient *redis.Client
	logger      *zap.Logger
}

func NewPublisher(redisClient *redis.Client, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{redisClient: redisClient, logger: logger}
}

// Publish never blocks the caller on delivery failure; errors are logged.
func (p *Publisher) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("failed to encode update", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	// The conversation context ends when it is closed; the final updates
	// still need to go out.
	if err := p.redisClient.Publish(context.WithoutCancel(ctx), ChannelFor(userID), data).Err(); err != nil {
		p.logger.Warn("failed to publish update",
			zap.Stringer("user_id", userID), zap.String("type", msg.Type), zap.Error(err))
	}
}
