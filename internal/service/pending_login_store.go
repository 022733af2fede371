package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/redis/go-redis/v9"

	"org-portal/internal/domain"
)

var ErrPendingLoginNotFound = errors.New("pending login not found")

// PendingLoginStore maps a login token to the account awaiting its second factor.
// Entries expire on their own once ExpiresAt passes.
type PendingLoginStore interface {
	Save(ctx context.Context, login domain.PendingLogin) error
	Resolve(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
}

type memoryPendingLoginStore struct {
	cache *ttlcache.Cache[string, string]
}

// NewMemoryPendingLoginStore keeps pending logins in process memory.
// The caller stops the janitor by cancelling ctx.
func NewMemoryPendingLoginStore(ctx context.Context, defaultTTL time.Duration) PendingLoginStore {
	if defaultTTL <= 0 {
		defaultTTL = DefaultPendingLoginTTL
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, string](defaultTTL),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go cache.Start()
	go func() {
		<-ctx.Done()
		cache.Stop()
	}()
	return &memoryPendingLoginStore{cache: cache}
}

func (s *memoryPendingLoginStore) Save(_ context.Context, login domain.PendingLogin) error {
	token := strings.TrimSpace(login.Token)
	if token == "" || login.AccountID == "" {
		return errors.New("pending login requires token and account id")
	}
	ttl := time.Until(login.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	s.cache.Set(token, login.AccountID, ttl)
	return nil
}

func (s *memoryPendingLoginStore) Resolve(_ context.Context, token string) (string, error) {
	item := s.cache.Get(strings.TrimSpace(token))
	if item == nil || item.IsExpired() {
		return "", ErrPendingLoginNotFound
	}
	return item.Value(), nil
}

func (s *memoryPendingLoginStore) Delete(_ context.Context, token string) error {
	s.cache.Delete(strings.TrimSpace(token))
	return nil
}

type redisPendingLoginClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisPendingLoginStore struct {
	client redisPendingLoginClient
	prefix string
}

func NewRedisPendingLoginStore(client *redis.Client) PendingLoginStore {
	if client == nil {
		return nil
	}
	return &redisPendingLoginStore{
		client: client,
		prefix: "auth:login:",
	}
}

func (s *redisPendingLoginStore) Save(ctx context.Context, login domain.PendingLogin) error {
	token := strings.TrimSpace(login.Token)
	if token == "" || login.AccountID == "" {
		return errors.New("pending login requires token and account id")
	}
	ttl := time.Until(login.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Set(ctx, s.prefix+token, login.AccountID, ttl).Err()
}

func (s *redisPendingLoginStore) Resolve(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrPendingLoginNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	accountID, err := s.client.Get(ctx, s.prefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrPendingLoginNotFound
	}
	if err != nil {
		return "", err
	}
	return accountID, nil
}

func (s *redisPendingLoginStore) Delete(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Del(ctx, s.prefix+token).Err()
}
