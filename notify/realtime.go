package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Channel is the pub/sub channel a connected client of userID listens on.
func Channel(userID string) string {
	return "user:" + userID
}

// RealtimeSink publishes messages to the recipient's Redis channel for the
// socket gateway to forward. Nobody listening is not an error.
type RealtimeSink struct {
	client *redis.Client
}

func NewRealtimeSink(client *redis.Client) *RealtimeSink {
	return &RealtimeSink{client: client}
}

func (s *RealtimeSink) Name() string { return "realtime" }

func (s *RealtimeSink) Deliver(ctx context.Context, msg Message) error {
	if msg.RecipientUserID == "" {
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}
	if err := s.client.Publish(ctx, Channel(msg.RecipientUserID), data).Err(); err != nil {
		return fmt.Errorf("notify: publish event: %w", err)
	}
	return nil
}
