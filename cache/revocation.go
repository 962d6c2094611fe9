package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedPrefix = "poimap:revoked:"

// Revocations remembers logged-out token ids until they would have expired anyway.
type Revocations struct {
	client *redis.Client
}

func NewRevocations(client *redis.Client) *Revocations {
	return &Revocations{client: client}
}

func (r *Revocations) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revokedPrefix+tokenID, 1, ttl).Err()
}

func (r *Revocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
