package derive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"

	"romgen/internal/logging"
	"romgen/internal/modes"
	"romgen/internal/store"

	"go.uber.org/zap"
)

// Cached wraps a Deriver with a persistent cache keyed by the request and
// the identity of the deriver that answers it. Cache failures are logged and
// fall through to the wrapped deriver.
type Cached struct {
	Next  Deriver
	Cache *store.Store
	// Identity names the wrapped deriver, e.g. Fingerprint of its argv.
	// Entries written under one identity are never served for another.
	Identity string
}

// NewCached wraps next with cache.
func NewCached(next Deriver, cache *store.Store, identity string) *Cached {
	return &Cached{Next: next, Cache: cache, Identity: identity}
}

func (c *Cached) Streamfunction(ctx context.Context, set modes.Set, scale ScaleVector, dissipationFree bool) (RHS, error) {
	return c.derive(ctx, modes.Psi, set, scale, dissipationFree)
}

func (c *Cached) Temperature(ctx context.Context, set modes.Set, scale ScaleVector, dissipationFree bool) (RHS, error) {
	return c.derive(ctx, modes.Theta, set, scale, dissipationFree)
}

func (c *Cached) derive(ctx context.Context, family modes.Family, set modes.Set, scale ScaleVector, dissipationFree bool) (RHS, error) {
	log := logging.Get(logging.CategoryDerive)
	req := NewRequest(family, set, scale, dissipationFree)
	key, err := CacheKey(c.Identity, req)
	if err != nil {
		return nil, err
	}

	if entry, ok, err := c.Cache.Get(ctx, key); err != nil {
		log.Warn("cache lookup failed", zap.Error(err))
	} else if ok {
		log.Debug("cache hit", zap.String("family", req.Family), zap.String("key", key[:12]))
		return FromStrings(entry.Expressions), nil
	}

	rhs, err := Derive(ctx, c.Next, family, set, scale, dissipationFree)
	if err != nil {
		return nil, err
	}

	err = c.Cache.Put(ctx, store.Entry{
		Key:             key,
		Family:          req.Family,
		NumModes:        set.NumModes(),
		DissipationFree: dissipationFree,
		Expressions:     rhs.Strings(),
	})
	if err != nil {
		log.Warn("cache store failed", zap.Error(err))
	}
	return rhs, nil
}

// CacheKey is the hex SHA-256 of the deriver identity followed by the
// request's canonical JSON encoding.
func CacheKey(identity string, req Request) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(identity))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Fingerprint identifies an external deriver by its argv and the content of
// every argument that names a readable regular file, so editing the deriver
// script changes the identity as well.
func Fingerprint(argv []string) string {
	h := sha256.New()
	for _, arg := range argv {
		h.Write([]byte(arg))
		h.Write([]byte{0})
		if info, err := os.Stat(arg); err == nil && info.Mode().IsRegular() {
			if data, err := os.ReadFile(arg); err == nil {
				sum := sha256.Sum256(data)
				h.Write(sum[:])
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
