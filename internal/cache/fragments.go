// Package cache holds the in-process fragment cache used by rendered views.
// Keys are page paths or fragment identifiers; rendered fragments are keyed by
// the deployment release fingerprint so a deploy naturally starts cold.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const DefaultFragmentTTL = 15 * time.Minute

type FragmentStore struct {
	items *ttlcache.Cache[string, []byte]
}

func NewFragmentStore(ttl time.Duration) *FragmentStore {
	if ttl <= 0 {
		ttl = DefaultFragmentTTL
	}
	items := ttlcache.New(
		ttlcache.WithTTL[string, []byte](ttl),
	)
	go items.Start()
	return &FragmentStore{items: items}
}

func (s *FragmentStore) Put(key string, body []byte) {
	s.items.Set(key, body, ttlcache.DefaultTTL)
}

func (s *FragmentStore) Fetch(key string) ([]byte, bool) {
	item := s.items.Get(key)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (s *FragmentStore) Invalidate(_ context.Context, key string) error {
	s.items.Delete(key)
	return nil
}

// InvalidateMatching removes every entry whose key contains substr and
// returns how many entries were dropped. An empty substr matches nothing.
func (s *FragmentStore) InvalidateMatching(_ context.Context, substr string) (int, error) {
	if substr == "" {
		return 0, nil
	}
	removed := 0
	for _, key := range s.items.Keys() {
		if strings.Contains(key, substr) {
			s.items.Delete(key)
			removed++
		}
	}
	return removed, nil
}

func (s *FragmentStore) Stop() {
	s.items.Stop()
}
