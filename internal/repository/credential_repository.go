package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/covenantkids/checkin-api/internal/models"
	appErrors "github.com/covenantkids/checkin-api/pkg/errors"
)

// CredentialRepository keeps ephemeral credentials in Redis. Each entry
// lives under two keys, one addressed by QR token and one by purpose and
// child, and Redis expiry enforces the TTL. Consuming a credential
// removes both keys.
type CredentialRepository struct {
	client *redis.Client
}

// NewCredentialRepository constructs a CredentialRepository.
func NewCredentialRepository(client *redis.Client) *CredentialRepository {
	return &CredentialRepository{client: client}
}

func tokenKey(token string) string {
	return "credential:token:" + token
}

func childKey(purpose models.CredentialPurpose, childID string) string {
	return fmt.Sprintf("credential:%s:child:%s", purpose, childID)
}

func pendingAuthKey(mfaToken string) string {
	return "auth:pending:" + mfaToken
}

// Store persists a credential under both its addressing keys with the
// given TTL.
func (r *CredentialRepository) Store(ctx context.Context, cred *models.PickupCredential, ttl time.Duration) error {
	payload, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}

	pipe := r.client.TxPipeline()
	if cred.QRToken != "" {
		pipe.Set(ctx, tokenKey(cred.QRToken), payload, ttl)
	}
	if cred.ChildID != "" {
		pipe.Set(ctx, childKey(cred.Purpose, cred.ChildID), payload, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

// FindByToken looks a credential up by its QR token.
func (r *CredentialRepository) FindByToken(ctx context.Context, token string) (*models.PickupCredential, error) {
	return r.get(ctx, tokenKey(token))
}

// FindByChild looks a credential up by purpose and child.
func (r *CredentialRepository) FindByChild(ctx context.Context, purpose models.CredentialPurpose, childID string) (*models.PickupCredential, error) {
	return r.get(ctx, childKey(purpose, childID))
}

// Consume deletes a credential's keys. Call after successful
// verification; credentials are single-use.
func (r *CredentialRepository) Consume(ctx context.Context, cred *models.PickupCredential) error {
	keys := make([]string, 0, 2)
	if cred.QRToken != "" {
		keys = append(keys, tokenKey(cred.QRToken))
	}
	if cred.ChildID != "" {
		keys = append(keys, childKey(cred.Purpose, cred.ChildID))
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("consume credential: %w", err)
	}
	return nil
}

// StorePendingAuth persists the state between password login and MFA
// verification.
func (r *CredentialRepository) StorePendingAuth(ctx context.Context, mfaToken string, pending *models.PendingAuth, ttl time.Duration) error {
	payload, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("marshal pending auth: %w", err)
	}
	if err := r.client.Set(ctx, pendingAuthKey(mfaToken), payload, ttl).Err(); err != nil {
		return fmt.Errorf("store pending auth: %w", err)
	}
	return nil
}

// FindPendingAuth retrieves a pending MFA authentication by its handle.
func (r *CredentialRepository) FindPendingAuth(ctx context.Context, mfaToken string) (*models.PendingAuth, error) {
	raw, err := r.client.Get(ctx, pendingAuthKey(mfaToken)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCodeExpired
		}
		return nil, fmt.Errorf("get pending auth: %w", err)
	}
	var pending models.PendingAuth
	if err := json.Unmarshal(raw, &pending); err != nil {
		return nil, fmt.Errorf("unmarshal pending auth: %w", err)
	}
	return &pending, nil
}

// DeletePendingAuth removes a pending MFA authentication.
func (r *CredentialRepository) DeletePendingAuth(ctx context.Context, mfaToken string) error {
	if err := r.client.Del(ctx, pendingAuthKey(mfaToken)).Err(); err != nil {
		return fmt.Errorf("delete pending auth: %w", err)
	}
	return nil
}

func (r *CredentialRepository) get(ctx context.Context, key string) (*models.PickupCredential, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCodeExpired
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	var cred models.PickupCredential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, fmt.Errorf("unmarshal credential: %w", err)
	}
	return &cred, nil
}
