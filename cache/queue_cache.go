package cache

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"audiowave/logger"
	"audiowave/model"

	"github.com/go-redis/redis/v8"
)

const (
	queueKey   = "player:queue"
	sessionKey = "player:session"
)

// SessionSnapshot is the persisted playback state used to restore the
// queue across daemon restarts.
type SessionSnapshot struct {
	Current  int              `json:"current"`
	Repeat   model.RepeatMode `json:"repeat"`
	Shuffle  bool             `json:"shuffle"`
	Position float64          `json:"position"`
	Volume   int              `json:"volume"`
	SavedAt  time.Time        `json:"saved_at"`
}

// SaveQueue stores the queue track IDs as a sorted set scored by position.
func SaveQueue(trackIDs []int64) error {
	pipe := rdb.Pipeline()
	pipe.Del(ctx, queueKey)
	if len(trackIDs) > 0 {
		members := make([]*redis.Z, len(trackIDs))
		for i, id := range trackIDs {
			members[i] = &redis.Z{Score: float64(i), Member: strconv.FormatInt(id, 10)}
		}
		pipe.ZAdd(ctx, queueKey, members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save queue to cache: %w", err)
	}
	return nil
}

// LoadQueue returns the persisted queue track IDs in order.
func LoadQueue() ([]int64, error) {
	members, err := rdb.ZRange(ctx, queueKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load queue from cache: %w", err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			logger.Warn("[Cache] skipping malformed queue entry", logger.String("member", m))
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SaveSession stores the playback session snapshot.
func SaveSession(snap SessionSnapshot) error {
	snap.SavedAt = time.Now()
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal session snapshot: %w", err)
	}
	if err := rdb.Set(ctx, sessionKey, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save session to cache: %w", err)
	}
	return nil
}

// LoadSession returns the persisted session snapshot, or redis.Nil if none.
func LoadSession() (*SessionSnapshot, error) {
	data, err := rdb.Get(ctx, sessionKey).Bytes()
	if err != nil {
		return nil, err
	}
	var snap SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session snapshot: %w", err)
	}
	return &snap, nil
}

// ClearQueue removes the persisted queue and session.
func ClearQueue() error {
	if err := rdb.Del(ctx, queueKey, sessionKey).Err(); err != nil {
		return fmt.Errorf("failed to clear queue cache: %w", err)
	}
	return nil
}
