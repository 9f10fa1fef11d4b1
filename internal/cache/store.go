package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix is the Redis key prefix for all cache entries.
	KeyPrefix = "cache:"

	// EntryTTL bounds how long a cached entity survives without a refresh.
	EntryTTL = 24 * time.Hour

	// Domains group cache entries so a recovery sweep can invalidate one
	// kind of entity without touching the rest.
	DomainPosts          = "posts"
	DomainChannels       = "channels"
	DomainThreads        = "threads"
	DomainUsers          = "users"
	DomainTeams          = "teams"
	DomainPreferences    = "preferences"
	DomainSidebar        = "sidebar"
	DomainBookmarks      = "bookmarks"
	DomainGroups         = "groups"
	DomainRoles          = "roles"
	DomainScheduledPosts = "scheduled_posts"
)

// Store keeps JSON-serialized entities in Redis, keyed by domain and id,
// alongside per-container ordered lists (post order in a channel, category
// order in a sidebar).
type Store struct {
	client *redis.Client
}

// NewStore creates a cache store connected to Redis.
func NewStore(redisAddr string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	// Verify connection.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: redis connection failed: %w", err)
	}

	return &Store{client: client}, nil
}

// NewStoreWithClient wraps an existing Redis client. Used by tests.
func NewStoreWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

func entryKey(domain, id string) string {
	return KeyPrefix + domain + ":id:" + id
}

func listKey(domain, listID string) string {
	return KeyPrefix + domain + ":list:" + listID
}

// Set stores one entity as JSON and refreshes its TTL.
func (s *Store) Set(ctx context.Context, domain, id string, entity any) error {
	raw, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("cache: marshal %s/%s: %w", domain, id, err)
	}
	return s.client.Set(ctx, entryKey(domain, id), raw, EntryTTL).Err()
}

// Get loads one entity into dst. Returns false if the entry is absent.
func (s *Store) Get(ctx context.Context, domain, id string, dst any) (bool, error) {
	raw, err := s.client.Get(ctx, entryKey(domain, id)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("cache: unmarshal %s/%s: %w", domain, id, err)
	}
	return true, nil
}

// Exists reports whether an entry is present without loading it.
func (s *Store) Exists(ctx context.Context, domain, id string) (bool, error) {
	n, err := s.client.Exists(ctx, entryKey(domain, id)).Result()
	return n > 0, err
}

// Delete removes one entity.
func (s *Store) Delete(ctx context.Context, domain, id string) error {
	return s.client.Del(ctx, entryKey(domain, id)).Err()
}

// PrependToList pushes an id to the front of an ordered list, dropping any
// older occurrence so the list stays duplicate-free.
func (s *Store) PrependToList(ctx context.Context, domain, listID, id string) error {
	key := listKey(domain, listID)
	pipe := s.client.Pipeline()
	pipe.LRem(ctx, key, 0, id)
	pipe.LPush(ctx, key, id)
	pipe.Expire(ctx, key, EntryTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// RemoveFromList drops an id from an ordered list.
func (s *Store) RemoveFromList(ctx context.Context, domain, listID, id string) error {
	return s.client.LRem(ctx, listKey(domain, listID), 0, id).Err()
}

// ListMembers returns the ordered ids of a list, newest first.
func (s *Store) ListMembers(ctx context.Context, domain, listID string) ([]string, error) {
	return s.client.LRange(ctx, listKey(domain, listID), 0, -1).Result()
}

// Invalidate removes every entry and list under a domain. Used by the
// recovery sweep after a reconnect, when events may have been missed.
func (s *Store) Invalidate(ctx context.Context, domain string) error {
	pattern := KeyPrefix + domain + ":*"
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close releases the underlying Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
