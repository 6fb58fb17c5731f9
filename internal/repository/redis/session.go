package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/checkout-engine/internal/domain"
	apperrors "github.com/utafrali/checkout-engine/pkg/errors"
)

const sessionKeyPrefix = "checkout:"

// SessionRepository stores checkout sessions in Redis with a TTL, so an
// abandoned checkout disappears on its own.
type SessionRepository struct {
	client *redis.Client
}

// NewSessionRepository creates a new Redis-backed session repository.
func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{client: client}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// Save writes the session, resetting its TTL.
func (r *SessionRepository) Save(ctx context.Context, session *domain.CheckoutSession, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(session.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Get retrieves a session. A missing key maps to the session-expired error
// since Redis eviction is how abandonment manifests.
func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.Gone(fmt.Sprintf("checkout session %s not found or expired", id))
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session domain.CheckoutSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

// Delete removes a session.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
