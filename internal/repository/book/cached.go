package book

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
	"maktaba-storefront/internal/domain"
)

const sharedLookupTimeout = 5 * time.Second

// Cached fronts a Resolver with an expiring LRU. Concurrent lookups for the same
// set of missing ids share one backend call.
type Cached struct {
	next  Resolver
	cache *expirable.LRU[string, domain.Book]
	group singleflight.Group
}

func NewCached(next Resolver, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = 1024
	}
	return &Cached{
		next:  next,
		cache: expirable.NewLRU[string, domain.Book](size, nil, ttl),
	}
}

func (c *Cached) ResolveBooks(ctx context.Context, ids []string) (map[string]domain.Book, error) {
	out := make(map[string]domain.Book, len(ids))
	var missing []string
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if b, ok := c.cache.Get(id); ok {
			out[id] = b
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	sort.Strings(missing)
	// the shared call is detached from the first caller's cancellation
	ch := c.group.DoChan(strings.Join(missing, "\x00"), func() (interface{}, error) {
		sharedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLookupTimeout)
		defer cancel()
		return c.next.ResolveBooks(sharedCtx, missing)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	for id, b := range res.Val.(map[string]domain.Book) {
		c.cache.Add(id, b)
		out[id] = b
	}
	return out, nil
}

