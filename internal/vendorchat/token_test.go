package vendorchat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/zoft-projects/OBbackend-sub002/internal/cache"

	"go.uber.org/zap"
)

type stubIssuer struct {
	issued int
	ttl    time.Duration
}

func (s *stubIssuer) issueRootToken(ctx context.Context) (*RootToken, error) {
	s.issued++
	return &RootToken{
		Token:     fmt.Sprintf("tok-%d", s.issued),
		Identity:  "root",
		ExpiresOn: time.Now().Add(s.ttl),
	}, nil
}

type mapCache struct {
	mu sync.Mutex
	kv map[string]string
}

func newMapCache() *mapCache { return &mapCache{kv: map[string]string{}} }

func (c *mapCache) Get(ctx context.Context, ns, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.kv[ns+":"+key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return v, nil
}

func (c *mapCache) Set(ctx context.Context, ns, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kv[ns+":"+key] = value
	return nil
}

func (c *mapCache) Delete(ctx context.Context, ns, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.kv, ns+":"+key)
	return nil
}

func (c *mapCache) HGet(ctx context.Context, ns, key, field string) (string, error) {
	return "", cache.ErrCacheMiss
}

func (c *mapCache) HSet(ctx context.Context, ns, key, field, value string, ttl time.Duration) error {
	return nil
}

func TestTokenSourceReusesFreshToken(t *testing.T) {
	issuer := &stubIssuer{ttl: time.Hour}
	src := NewTokenSource(issuer, newMapCache(), zap.NewNop())
	ctx := context.Background()

	first, err := src.Token(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := src.Token(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first.Token != second.Token {
		t.Errorf("fresh token was reissued: %s vs %s", first.Token, second.Token)
	}
	if issuer.issued != 1 {
		t.Errorf("expected 1 issue call, got %d", issuer.issued)
	}
}

func TestTokenSourceRefreshesNearExpiry(t *testing.T) {
	// Expires inside the refresh skew, so every call must reissue
	issuer := &stubIssuer{ttl: time.Minute}
	src := NewTokenSource(issuer, newMapCache(), zap.NewNop())
	ctx := context.Background()

	if _, err := src.Token(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := src.Token(ctx); err != nil {
		t.Fatal(err)
	}
	if issuer.issued != 2 {
		t.Errorf("expected reissue near expiry, got %d issue calls", issuer.issued)
	}
}

func TestTokenSourceSharesViaCache(t *testing.T) {
	shared := newMapCache()
	issuerA := &stubIssuer{ttl: time.Hour}
	issuerB := &stubIssuer{ttl: time.Hour}
	ctx := context.Background()

	a := NewTokenSource(issuerA, shared, zap.NewNop())
	tok, err := a.Token(ctx)
	if err != nil {
		t.Fatal(err)
	}

	// A second instance must pick up the cached token, not reissue
	b := NewTokenSource(issuerB, shared, zap.NewNop())
	got, err := b.Token(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Token != tok.Token {
		t.Errorf("expected shared token %s, got %s", tok.Token, got.Token)
	}
	if issuerB.issued != 0 {
		t.Errorf("second instance reissued %d times", issuerB.issued)
	}
}
