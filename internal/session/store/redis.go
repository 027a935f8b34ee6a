package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"certledger/internal/session/models"
	"certledger/pkg/platform/sentinel"
)

const keyPrefix = "certledger:guest_session:"

// Redis stores each session as one TTL'd JSON value. Mutations run inside a
// WATCH transaction so concurrent appends from the same session cannot lose
// updates.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (s *Redis) Create(ctx context.Context, session *models.GuestSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, keyPrefix+session.ID, payload, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *Redis) Find(ctx context.Context, id string) (*models.GuestSession, error) {
	payload, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	var session models.GuestSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *Redis) AppendAttempt(ctx context.Context, id string, summary models.AttemptSummary) error {
	return s.mutate(ctx, id, func(session *models.GuestSession) error {
		if session.Ended {
			return sentinel.ErrInvalidState
		}
		session.Attempts = append(session.Attempts, summary)
		session.UpdatedAt = time.Now()
		return nil
	})
}

func (s *Redis) End(ctx context.Context, id string) error {
	return s.mutate(ctx, id, func(session *models.GuestSession) error {
		if session.Ended {
			return sentinel.ErrInvalidState
		}
		session.Ended = true
		session.UpdatedAt = time.Now()
		return nil
	})
}

// mutate applies fn to the stored session under WATCH, retrying on
// concurrent modification.
func (s *Redis) mutate(ctx context.Context, id string, fn func(*models.GuestSession) error) error {
	key := keyPrefix + id
	const maxRetries = 5

	for range maxRetries {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			payload, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return sentinel.ErrNotFound
				}
				return err
			}

			var session models.GuestSession
			if err := json.Unmarshal(payload, &session); err != nil {
				return fmt.Errorf("unmarshal session: %w", err)
			}
			if err := fn(&session); err != nil {
				return err
			}

			updated, err := json.Marshal(&session)
			if err != nil {
				return fmt.Errorf("marshal session: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, redis.KeepTTL)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return sentinel.ErrUnavailable
}
