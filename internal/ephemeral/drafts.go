package ephemeral

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DraftPrefix is the Redis key prefix for draft entries.
	DraftPrefix = "draft:"

	// DraftTTL bounds how long an untouched draft survives.
	DraftTTL = 7 * 24 * time.Hour
)

// DraftStore keeps per-channel (and per-thread) message drafts. A draft is
// keyed by its target: the channel plus the root post when replying in a
// thread.
type DraftStore struct {
	client *redis.Client
}

// NewDraftStore creates a draft store connected to Redis.
func NewDraftStore(redisAddr string) (*DraftStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ephemeral: redis connection failed: %w", err)
	}

	return &DraftStore{client: client}, nil
}

// NewDraftStoreWithClient wraps an existing Redis client. Used by tests.
func NewDraftStoreWithClient(client *redis.Client) *DraftStore {
	return &DraftStore{client: client}
}

func draftKey(channelID, rootID string) string {
	return DraftPrefix + channelID + ":" + rootID
}

// Set stores a draft as JSON and refreshes its TTL.
func (s *DraftStore) Set(ctx context.Context, channelID, rootID string, draft any) error {
	raw, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("ephemeral: marshal draft %s/%s: %w", channelID, rootID, err)
	}
	return s.client.Set(ctx, draftKey(channelID, rootID), raw, DraftTTL).Err()
}

// Get loads a draft into dst. Returns false if no draft exists.
func (s *DraftStore) Get(ctx context.Context, channelID, rootID string, dst any) (bool, error) {
	raw, err := s.client.Get(ctx, draftKey(channelID, rootID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("ephemeral: unmarshal draft %s/%s: %w", channelID, rootID, err)
	}
	return true, nil
}

// Delete removes a draft.
func (s *DraftStore) Delete(ctx context.Context, channelID, rootID string) error {
	return s.client.Del(ctx, draftKey(channelID, rootID)).Err()
}

// Close releases the underlying Redis connection.
func (s *DraftStore) Close() error {
	return s.client.Close()
}
