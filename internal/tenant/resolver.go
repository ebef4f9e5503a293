// Package tenant expands a tenant identity into the set of tenants sharing
// one logical dataset.
package tenant

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Resolver returns the tenant scope of an identity. Implementations never
// fail: an unknown tenant resolves to itself.
type Resolver interface {
	Resolve(ctx context.Context, tenantID string) []string
}

// StaticResolver resolves scopes from a fixed group table.
type StaticResolver struct {
	groups map[string][]string
}

// NewStaticResolver builds a resolver over groups keyed by tenant.
func NewStaticResolver(groups map[string][]string) *StaticResolver {
	if groups == nil {
		groups = map[string][]string{}
	}
	return &StaticResolver{groups: groups}
}

// Resolve returns tenantID first followed by the rest of its group.
func (r *StaticResolver) Resolve(_ context.Context, tenantID string) []string {
	scope := []string{tenantID}
	for _, id := range r.groups[tenantID] {
		if id != "" && id != tenantID && !contains(scope, id) {
			scope = append(scope, id)
		}
	}
	return scope
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// ParseScopes parses "owner:member,member;owner:member" into a group table.
// Every member of a group shares the whole group.
func ParseScopes(raw string) (map[string][]string, error) {
	groups := map[string][]string{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return groups, nil
	}
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		owner, rest, ok := strings.Cut(part, ":")
		owner = strings.TrimSpace(owner)
		if !ok || owner == "" {
			return nil, fmt.Errorf("invalid tenant scope %q", part)
		}
		members := []string{owner}
		for _, m := range strings.Split(rest, ",") {
			if m = strings.TrimSpace(m); m != "" && !contains(members, m) {
				members = append(members, m)
			}
		}
		for _, m := range members {
			groups[m] = members
		}
	}
	return groups, nil
}

// CachedResolver memoizes another resolver's results.
type CachedResolver struct {
	next  Resolver
	cache *gocache.Cache
}

// NewCachedResolver caches results of next for ttl.
func NewCachedResolver(next Resolver, ttl time.Duration) *CachedResolver {
	return &CachedResolver{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (r *CachedResolver) Resolve(ctx context.Context, tenantID string) []string {
	if v, ok := r.cache.Get(tenantID); ok {
		return append([]string(nil), v.([]string)...)
	}
	scope := r.next.Resolve(ctx, tenantID)
	if len(scope) == 0 {
		scope = []string{tenantID}
	}
	r.cache.Set(tenantID, scope, gocache.DefaultExpiration)
	return append([]string(nil), scope...)
}
