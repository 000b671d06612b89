// Package sessionstore caches running remote sessions in redis so the
// stop webhook can correlate a partner session id with the charging
// hardware it runs on.
package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RemoteSession is the cached context of one partner-initiated session.
type RemoteSession struct {
	SessionID   string    `json:"session_id"`
	ConnectorID string    `json:"connector_id"`
	StationID   string    `json:"station_id"`
	TokenUID    string    `json:"token_uid"`
	StartedAt   time.Time `json:"started_at"`
}

// Store manages the remote session cache.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore returns a redis-backed store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) key(sessionID string) string {
	return fmt.Sprintf("bridge:sessions:%s", sessionID)
}

// Save caches a session under its partner session id.
func (s *Store) Save(ctx context.Context, session RemoteSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(session.SessionID), data, s.ttl).Err()
}

// Get returns the cached session, redis.Nil error if absent.
func (s *Store) Get(ctx context.Context, sessionID string) (*RemoteSession, error) {
	result, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	var session RemoteSession
	if err := json.Unmarshal([]byte(result), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Delete removes a cached session.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.key(sessionID)).Err()
}
