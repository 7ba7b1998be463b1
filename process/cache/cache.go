// Package cache provides a read-through cache of processes and deployments.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/piecework/piecework/model"
	"github.com/piecework/piecework/process/storage"
)

// Cache caches processes and deployments retrieved from a process store.
type Cache struct {
	store       storage.ReadStorage
	processes   *ttlcache.Cache[string, *model.Process]
	deployments *ttlcache.Cache[string, *model.ProcessDeployment]
}

// New creates a cache in front of store.
// A ttl of zero or less disables caching.
func New(store storage.ReadStorage, ttl time.Duration) *Cache {
	c := &Cache{store: store}
	if ttl > 0 {
		c.processes = ttlcache.New(ttlcache.WithTTL[string, *model.Process](ttl))
		c.deployments = ttlcache.New(ttlcache.WithTTL[string, *model.ProcessDeployment](ttl))
	}
	return c
}

func deploymentKey(key, deploymentID string) string {
	return key + "/" + deploymentID
}

// Process returns the process for key.
func (c *Cache) Process(ctx context.Context, key string) (*model.Process, error) {
	if c.processes != nil {
		if item := c.processes.Get(key); item != nil {
			return item.Value(), nil
		}
	}
	p, err := c.store.RetrieveProcess(ctx, key)
	if err != nil {
		return nil, err
	}
	if c.processes != nil {
		c.processes.Set(key, p, ttlcache.DefaultTTL)
	}
	return p, nil
}

// Deployment returns the deployment deploymentID of process key.
func (c *Cache) Deployment(ctx context.Context, key, deploymentID string) (*model.ProcessDeployment, error) {
	dk := deploymentKey(key, deploymentID)
	if c.deployments != nil {
		if item := c.deployments.Get(dk); item != nil {
			return item.Value(), nil
		}
	}
	d, err := c.store.RetrieveDeployment(ctx, key, deploymentID)
	if err != nil {
		return nil, err
	}
	if c.deployments != nil {
		c.deployments.Set(dk, d, ttlcache.DefaultTTL)
	}
	return d, nil
}

// Invalidate drops the process key and its deployments from the cache.
func (c *Cache) Invalidate(key string) {
	if c.processes == nil {
		return
	}
	c.processes.Delete(key)
	pfx := deploymentKey(key, "")
	for _, dk := range c.deployments.Keys() {
		if strings.HasPrefix(dk, pfx) {
			c.deployments.Delete(dk)
		}
	}
}

// StartEviction evicts expired items until ctx is done.
func (c *Cache) StartEviction(ctx context.Context) {
	if c.processes == nil {
		return
	}
	go c.processes.Start()
	go c.deployments.Start()

	<-ctx.Done()

	c.processes.Stop()
	c.deployments.Stop()
}
