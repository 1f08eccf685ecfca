package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/filechat/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	historyCachePrefix = "history:"
	defaultHistoryTTL  = 2 * time.Minute
)

// HistoryCache is a read-through cache in front of another turn store.
// History pages are cached per session and limit; writes drop every page
// of the session. Cache failures are logged and never fail the request.
type HistoryCache struct {
	domain.TurnRepository
	client *Client
	ttl    time.Duration
}

// NewHistoryCache wraps next with a Redis-backed history cache
func NewHistoryCache(next domain.TurnRepository, client *Client, ttl time.Duration) *HistoryCache {
	if ttl <= 0 {
		ttl = defaultHistoryTTL
	}
	return &HistoryCache{TurnRepository: next, client: client, ttl: ttl}
}

func historyKey(sessionID string, limit int) string {
	return fmt.Sprintf("%s%s:%d", historyCachePrefix, sessionID, limit)
}

// History serves cached pages and fills the cache on miss
func (c *HistoryCache) History(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	key := historyKey(sessionID, limit)

	data, err := c.client.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var turns []domain.Turn
		if err := json.Unmarshal(data, &turns); err == nil {
			return turns, nil
		}
		log.Warn().Str("key", key).Msg("Discarding undecodable history cache entry")
	case !errors.Is(err, redis.Nil):
		log.Warn().Err(err).Str("key", key).Msg("History cache read failed")
	}

	turns, err := c.TurnRepository.History(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(turns); err == nil {
		if err := c.client.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("History cache write failed")
		}
	}

	return turns, nil
}

// Append stores the turn and invalidates the session's cached pages
func (c *HistoryCache) Append(ctx context.Context, turn domain.NewTurn) error {
	if err := c.TurnRepository.Append(ctx, turn); err != nil {
		return err
	}
	c.invalidate(ctx, turn.SessionID)
	return nil
}

// Clear deletes the session and its cached pages
func (c *HistoryCache) Clear(ctx context.Context, sessionID string) error {
	if err := c.TurnRepository.Clear(ctx, sessionID); err != nil {
		return err
	}
	c.invalidate(ctx, sessionID)
	return nil
}

// Flush removes every cached history page
func (c *HistoryCache) Flush(ctx context.Context) (int64, error) {
	return c.client.purge(ctx, historyCachePrefix+"*")
}

func (c *HistoryCache) invalidate(ctx context.Context, sessionID string) {
	if _, err := c.client.purge(ctx, historyCachePrefix+sessionID+":*"); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("History cache invalidation failed")
	}
}
