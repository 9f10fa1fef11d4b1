package ephemeral

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// TypingPrefix is the Redis key prefix for typing indicator entries.
	TypingPrefix = "typing:"

	// TypingTTL is a safety net: an entry the expiry pipeline never
	// cleared still disappears on its own.
	TypingTTL = 30 * time.Second
)

// TypingStore tracks who is currently typing where. Entries are written
// when a typing window opens and deleted when it expires, with a Redis TTL
// backstop in case the process dies mid-window.
type TypingStore struct {
	client *redis.Client
}

// NewTypingStore creates a typing store connected to Redis.
func NewTypingStore(redisAddr string) (*TypingStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ephemeral: redis connection failed: %w", err)
	}

	return &TypingStore{client: client}, nil
}

// NewTypingStoreWithClient wraps an existing Redis client. Used by tests.
func NewTypingStoreWithClient(client *redis.Client) *TypingStore {
	return &TypingStore{client: client}
}

func typingKey(channelID, userID, threadID string) string {
	return TypingPrefix + channelID + ":" + userID + ":" + threadID
}

// SetTyping records that a user is typing in a channel (or thread).
func (s *TypingStore) SetTyping(ctx context.Context, channelID, userID, threadID string) error {
	return s.client.Set(ctx, typingKey(channelID, userID, threadID), time.Now().Unix(), TypingTTL).Err()
}

// ClearTyping removes a typing entry once its window closes.
func (s *TypingStore) ClearTyping(ctx context.Context, channelID, userID, threadID string) error {
	return s.client.Del(ctx, typingKey(channelID, userID, threadID)).Err()
}

// TypingUsers lists users with an open typing window in a channel.
func (s *TypingStore) TypingUsers(ctx context.Context, channelID string) ([]string, error) {
	pattern := TypingPrefix + channelID + ":*"
	var users []string
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		rest := key[len(TypingPrefix)+len(channelID)+1:]
		for i := 0; i < len(rest); i++ {
			if rest[i] == ':' {
				users = append(users, rest[:i])
				break
			}
		}
	}
	return users, iter.Err()
}

// Close releases the underlying Redis connection.
func (s *TypingStore) Close() error {
	return s.client.Close()
}
