package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/homesync/internal/models"
	"github.com/redis/go-redis/v9"
)

const sessionPrefix = "session:"
const accountSessionsPrefix = "account:%s:sessions"

// RedisSessionRepository stores sessions as TTL'd JSON values, with a
// per-account set as a secondary index so LogoutAll can find every
// device's session. Expired entries fall out of the value keys on their
// own; the index is cleaned lazily on reads.
type RedisSessionRepository struct {
	client *redis.Client
}

func NewRedisSessionRepository(client *redis.Client) *RedisSessionRepository {
	return &RedisSessionRepository{client: client}
}

func (r *RedisSessionRepository) Create(ctx context.Context, session *models.Session) error {
	jsonData, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// TTL matches the JWT expiry so the revocation check and the token
	// die together.
	ttl := time.Until(session.ExpiresAt)

	key := sessionPrefix + session.ID
	if err := r.client.Set(ctx, key, jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}

	accountKey := fmt.Sprintf(accountSessionsPrefix, session.AccountID)
	if err := r.client.SAdd(ctx, accountKey, session.ID).Err(); err != nil {
		return fmt.Errorf("failed to add session to account sessions: %w", err)
	}
	return nil
}

func (r *RedisSessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	jsonData, err := r.client.Get(ctx, sessionPrefix+id).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(jsonData), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (r *RedisSessionRepository) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Session, error) {
	accountKey := fmt.Sprintf(accountSessionsPrefix, accountID)
	sessionIDs, err := r.client.SMembers(ctx, accountKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get account sessions: %w", err)
	}

	var sessions []*models.Session
	var expiredIDs []interface{}

	for _, id := range sessionIDs {
		jsonData, err := r.client.Get(ctx, sessionPrefix+id).Result()
		if err == redis.Nil {
			// The value key expired; drop the stale index entry below.
			expiredIDs = append(expiredIDs, id)
			continue
		}
		if err != nil {
			log.Printf("failed to get session %s: %v", id, err)
			continue
		}

		var session models.Session
		if err := json.Unmarshal([]byte(jsonData), &session); err != nil {
			log.Printf("failed to unmarshal session %s: %v", id, err)
			continue
		}
		sessions = append(sessions, &session)
	}

	if len(expiredIDs) > 0 {
		if err := r.client.SRem(ctx, accountKey, expiredIDs...).Err(); err != nil {
			return nil, fmt.Errorf("failed to remove expired sessions: %w", err)
		}
	}
	return sessions, nil
}

func (r *RedisSessionRepository) Delete(ctx context.Context, id string) error {
	session, err := r.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	accountKey := fmt.Sprintf(accountSessionsPrefix, session.AccountID)
	if err := r.client.SRem(ctx, accountKey, id).Err(); err != nil {
		return fmt.Errorf("failed to remove session from account sessions: %w", err)
	}

	if err := r.client.Del(ctx, sessionPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *RedisSessionRepository) DeleteAllForAccount(ctx context.Context, accountID uuid.UUID) error {
	accountKey := fmt.Sprintf(accountSessionsPrefix, accountID)
	sessionIDs, err := r.client.SMembers(ctx, accountKey).Result()
	if err != nil {
		return fmt.Errorf("failed to get account sessions: %w", err)
	}

	for _, id := range sessionIDs {
		if err := r.Delete(ctx, id); err != nil {
			log.Printf("failed to delete session %s: %v", id, err)
		}
	}
	return nil
}
