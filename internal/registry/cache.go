package registry

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	defaultCacheTTL      = 5 * time.Minute
	defaultCacheInterval = 10 * time.Minute
)

// Cache holds resolved states, default branches and fetched manifests for
// the lifetime of a Client.
type Cache struct {
	c *gocache.Cache
}

// NewCache creates a cache with the given TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{c: gocache.New(ttl, defaultCacheInterval)}
}

func get[V any](c *Cache, key string) (V, bool) {
	var zero V
	v, ok := c.c.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(V)
	if !ok {
		return zero, false
	}
	return typed, true
}

// GetState returns the state previously resolved for a registry reference.
func (c *Cache) GetState(ref string) (State, bool) {
	return get[State](c, "state:"+ref)
}

// SetState caches a resolved state.
func (c *Cache) SetState(ref string, s State) {
	c.c.SetDefault("state:"+ref, s)
}

// GetBranch returns the cached default branch of a repository.
func (c *Cache) GetBranch(repo string) (string, bool) {
	return get[string](c, "branch:"+repo)
}

// SetBranch caches a repository's default branch.
func (c *Cache) SetBranch(repo, branch string) {
	c.c.SetDefault("branch:"+repo, branch)
}

// GetManifest returns the cached manifest of a registry URL.
func (c *Cache) GetManifest(registryURL string) (Manifest, bool) {
	return get[Manifest](c, "manifest:"+registryURL)
}

// SetManifest caches a manifest.
func (c *Cache) SetManifest(registryURL string, m Manifest) {
	c.c.SetDefault("manifest:"+registryURL, m)
}

// Flush drops every entry.
func (c *Cache) Flush() {
	c.c.Flush()
}
