package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisHistory stores archived sessions in Redis so that history survives
// process restarts and can be shared across replicas.
//
// Layout (keyPrefix defaults to "callagent"):
//   <prefix>:session:<id>          JSON snapshot of the archived session
//   <prefix>:history               LPUSH'd ids, newest first
//   <prefix>:history:<status>      LPUSH'd ids per terminal status
//
// Sessions are immutable once archived, so values are written once and
// never touched again; no expiry is set.
type RedisHistory struct {
	rdb       *redis.Client
	keyPrefix string
}

func NewRedisHistory(rdb *redis.Client, keyPrefix string) (*RedisHistory, error) {
	if rdb == nil {
		return nil, errors.New("session: redis client is nil")
	}
	if keyPrefix == "" {
		keyPrefix = "callagent"
	}
	return &RedisHistory{rdb: rdb, keyPrefix: keyPrefix}, nil
}

func (h *RedisHistory) sessionKey(id string) string {
	return h.keyPrefix + ":session:" + id
}

func (h *RedisHistory) listKey(filter Status) string {
	if filter == "" {
		return h.keyPrefix + ":history"
	}
	return h.keyPrefix + ":history:" + string(filter)
}

func (h *RedisHistory) Append(ctx context.Context, s CallSession) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: marshal %s: %w", s.ID, err)
	}

	ok, err := h.rdb.SetNX(ctx, h.sessionKey(s.ID), raw, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyExists
	}

	pipe := h.rdb.Pipeline()
	pipe.LPush(ctx, h.listKey(""), s.ID)
	pipe.LPush(ctx, h.listKey(s.Status), s.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (h *RedisHistory) Get(ctx context.Context, id string) (CallSession, bool, error) {
	raw, err := h.rdb.Get(ctx, h.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return CallSession{}, false, nil
		}
		return CallSession{}, false, err
	}
	var s CallSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return CallSession{}, false, fmt.Errorf("session: unmarshal %s: %w", id, err)
	}
	return s, true, nil
}

func (h *RedisHistory) List(ctx context.Context, filter Status, limit int) ([]CallSession, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := h.rdb.LRange(ctx, h.listKey(filter), 0, stop).Result()
	if err != nil {
		return nil, err
	}

	out := make([]CallSession, 0, len(ids))
	for _, id := range ids {
		s, ok, err := h.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			// id lists and snapshots are written together; a missing
			// snapshot means an interrupted append and is skipped.
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
