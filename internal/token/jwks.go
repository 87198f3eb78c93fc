package token

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v3"

	apperrors "github.com/betterportal/gateway/internal/errors"
)

// keyCache holds the remote JWKS document for the process lifetime. The key
// set is fetched lazily on first use and refreshed at most once per lookup
// when an unknown key id is seen.
type keyCache struct {
	url    string
	client *http.Client

	mu   sync.RWMutex
	keys *jose.JSONWebKeySet
}

func newKeyCache(url string, timeout time.Duration) *keyCache {
	return &keyCache{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// keyFor returns the public key for the given key id, refreshing the cached
// set once when the id is unknown. An empty kid selects the first key in the
// set.
func (c *keyCache) keyFor(ctx context.Context, kid string) (any, error) {
	if key, ok := c.lookup(kid); ok {
		return key, nil
	}

	if err := c.refresh(ctx); err != nil {
		return nil, err
	}

	if key, ok := c.lookup(kid); ok {
		return key, nil
	}
	return nil, fmt.Errorf("no key with id %q in key set", kid)
}

func (c *keyCache) lookup(kid string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.keys == nil || len(c.keys.Keys) == 0 {
		return nil, false
	}
	if kid == "" {
		return c.keys.Keys[0].Key, true
	}
	for _, key := range c.keys.Keys {
		if key.KeyID == kid {
			return key.Key, true
		}
	}
	return nil, false
}

func (c *keyCache) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return apperrors.Wrap(ErrKeySetUnavailable, err.Error())
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.Wrap(ErrKeySetUnavailable, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return apperrors.Wrap(ErrKeySetUnavailable, fmt.Sprintf("key set endpoint returned %d", resp.StatusCode))
	}

	var keySet jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&keySet); err != nil {
		return apperrors.Wrap(ErrKeySetUnavailable, err.Error())
	}

	c.mu.Lock()
	c.keys = &keySet
	c.mu.Unlock()
	return nil
}
