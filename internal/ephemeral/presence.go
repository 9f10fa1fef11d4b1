package ephemeral

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// PresenceKey is the Redis hash holding user_id -> status.
	PresenceKey = "presence"

	// Presence vocabulary. Anything else maps to offline.
	StatusOnline  = "online"
	StatusAway    = "away"
	StatusDND     = "dnd"
	StatusOffline = "offline"
)

// NormalizeStatus coerces an arbitrary status string into the known
// vocabulary. Unknown values read as offline.
func NormalizeStatus(status string) string {
	switch status {
	case StatusOnline, StatusAway, StatusDND, StatusOffline:
		return status
	default:
		return StatusOffline
	}
}

// PresenceStore keeps the last known status per user in a single Redis
// hash. Presence is derivable state: it is never cached durably and a
// missing entry simply reads as offline.
type PresenceStore struct {
	client *redis.Client
}

// NewPresenceStore creates a presence store connected to Redis.
func NewPresenceStore(redisAddr string) (*PresenceStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ephemeral: redis connection failed: %w", err)
	}

	return &PresenceStore{client: client}, nil
}

// NewPresenceStoreWithClient wraps an existing Redis client. Used by tests.
func NewPresenceStoreWithClient(client *redis.Client) *PresenceStore {
	return &PresenceStore{client: client}
}

// SetStatus records a user's status, normalized to the known vocabulary.
func (s *PresenceStore) SetStatus(ctx context.Context, userID, status string) error {
	return s.client.HSet(ctx, PresenceKey, userID, NormalizeStatus(status)).Err()
}

// GetStatus returns a user's last known status, offline when unknown.
func (s *PresenceStore) GetStatus(ctx context.Context, userID string) (string, error) {
	status, err := s.client.HGet(ctx, PresenceKey, userID).Result()
	if err == redis.Nil {
		return StatusOffline, nil
	}
	if err != nil {
		return "", err
	}
	return NormalizeStatus(status), nil
}

// All returns the full presence map.
func (s *PresenceStore) All(ctx context.Context) (map[string]string, error) {
	return s.client.HGetAll(ctx, PresenceKey).Result()
}

// Clear wipes all presence state. Used by the recovery sweep: stale
// presence after a gap is worse than no presence.
func (s *PresenceStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, PresenceKey).Err()
}

// Close releases the underlying Redis connection.
func (s *PresenceStore) Close() error {
	return s.client.Close()
}
