package sso

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"ridehail-identity/internal/apperr"
)

const (
	defaultKeysTTL     = time.Hour
	minRefreshInterval = time.Minute
)

var errUnknownKey = errors.New("sso: signing key not found")

// KeySet caches a provider's JWKS document. A token signed with an unknown kid triggers one
// refetch, at most once per minRefreshInterval, to pick up key rotation.
type KeySet struct {
	url    string
	client *http.Client
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	set       jwk.Set
	fetchedAt time.Time
}

// NewKeySet returns a KeySet for the JWKS at url.
func NewKeySet(url string, client *http.Client) *KeySet {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &KeySet{url: url, client: client, ttl: defaultKeysTTL, now: time.Now}
}

// Key returns the raw public key (e.g. *rsa.PublicKey) for kid. The fetch runs without holding mu.
func (k *KeySet) Key(ctx context.Context, kid string) (interface{}, error) {
	k.mu.Lock()
	set, fetchedAt := k.set, k.fetchedAt
	k.mu.Unlock()

	var err error
	refreshed := false
	if set == nil || k.now().Sub(fetchedAt) > k.ttl {
		if set, err = k.refresh(ctx); err != nil {
			return nil, err
		}
		refreshed = true
	}
	key, ok := set.LookupKeyID(kid)
	if !ok && !refreshed && k.now().Sub(fetchedAt) > minRefreshInterval {
		if set, err = k.refresh(ctx); err != nil {
			return nil, err
		}
		key, ok = set.LookupKeyID(kid)
	}
	if !ok {
		return nil, errUnknownKey
	}
	var raw interface{}
	if err := jwk.Export(key, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (k *KeySet) refresh(ctx context.Context) (jwk.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: jwks fetch: %v", apperr.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: jwks fetch status=%d", apperr.ErrProviderUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: jwks read: %v", apperr.ErrProviderUnavailable, err)
	}
	set, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: jwks parse: %v", apperr.ErrProviderUnavailable, err)
	}
	k.mu.Lock()
	k.set = set
	k.fetchedAt = k.now()
	k.mu.Unlock()
	return set, nil
}
