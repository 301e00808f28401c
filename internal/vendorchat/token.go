package vendorchat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/zoft-projects/OBbackend-sub002/internal/cache"

	"go.uber.org/zap"
)

const (
	tokenCacheNamespace = "chat-vendor-token"
	tokenCacheKey       = "root"

	// refreshSkew triggers a refresh this long before actual expiry so a
	// token never goes stale mid-operation.
	refreshSkew = 5 * time.Minute
)

// tokenIssuer is the raw issue call against the vendor; satisfied by the
// REST client.
type tokenIssuer interface {
	issueRootToken(ctx context.Context) (*RootToken, error)
}

// TokenSource hands out a valid root token, refreshing proactively and
// caching across process instances via the key-value cache.
type TokenSource struct {
	issuer tokenIssuer
	cache  cache.KeyValueCache
	log    *zap.Logger

	mu      sync.Mutex
	current *RootToken
}

func NewTokenSource(issuer tokenIssuer, kv cache.KeyValueCache, log *zap.Logger) *TokenSource {
	return &TokenSource{issuer: issuer, cache: kv, log: log}
}

func (s *TokenSource) Token(ctx context.Context) (*RootToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && time.Until(s.current.ExpiresOn) > refreshSkew {
		return s.current, nil
	}

	// Another instance may have refreshed already
	if cached, err := s.cache.Get(ctx, tokenCacheNamespace, tokenCacheKey); err == nil {
		var tok RootToken
		if err := json.Unmarshal([]byte(cached), &tok); err == nil && time.Until(tok.ExpiresOn) > refreshSkew {
			s.current = &tok
			return s.current, nil
		}
	}

	tok, err := s.issuer.issueRootToken(ctx)
	if err != nil {
		return nil, err
	}
	s.current = tok

	if raw, err := json.Marshal(tok); err == nil {
		ttl := time.Until(tok.ExpiresOn) - refreshSkew
		if ttl > 0 {
			if err := s.cache.Set(ctx, tokenCacheNamespace, tokenCacheKey, string(raw), ttl); err != nil {
				s.log.Warn("failed to cache vendor root token", zap.Error(err))
			}
		}
	}

	return s.current, nil
}
