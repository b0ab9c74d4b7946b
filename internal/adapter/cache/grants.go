// Package cache keeps short-lived download grants in memory.
package cache

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"trimfit/internal/domain"

	"github.com/allegro/bigcache/v3"
	"github.com/cespare/xxhash/v2"
)

type xxHasher struct{}

func (xxHasher) Sum64(key string) uint64 {
	return xxhash.Sum64String(key)
}

// Grants records which user may download a generated file and until when.
type Grants struct {
	cache  *bigcache.BigCache
	maxTTL time.Duration
	now    func() time.Time
}

var _ domain.DownloadGrants = (*Grants)(nil)

// NewGrants creates a grant store. Entries are evicted after maxTTL, so Grant
// caps every TTL there.
func NewGrants(maxTTL time.Duration) (*Grants, error) {
	cfg := bigcache.DefaultConfig(maxTTL)
	cfg.Hasher = xxHasher{}
	cfg.Shards = 64
	cfg.MaxEntriesInWindow = 10000
	cfg.MaxEntrySize = 128
	cfg.Verbose = false
	cfg.CleanWindow = time.Minute
	c, err := bigcache.NewBigCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("create grant cache: %w", err)
	}
	return &Grants{cache: c, maxTTL: maxTTL, now: time.Now}, nil
}

// Grant allows userID to fetch fileID for ttl, at most the store's maxTTL.
func (g *Grants) Grant(fileID, userID string, ttl time.Duration) error {
	if fileID == "" || userID == "" {
		return errors.New("grant: empty file or user id")
	}
	if ttl <= 0 || ttl > g.maxTTL {
		ttl = g.maxTTL
	}
	exp := g.now().Add(ttl).Unix()
	return g.cache.Set(fileID, []byte(userID+"|"+strconv.FormatInt(exp, 10)))
}

// Allowed reports whether userID holds an unexpired grant for fileID.
func (g *Grants) Allowed(fileID, userID string) bool {
	buf, err := g.cache.Get(fileID)
	if err != nil {
		return false
	}
	owner, expStr, ok := strings.Cut(string(buf), "|")
	if !ok || owner != userID {
		return false
	}
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return false
	}
	return g.now().Unix() < exp
}

// Close releases the cache.
func (g *Grants) Close() error {
	return g.cache.Close()
}
