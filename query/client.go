package query

import (
	"context"

	"github.com/warp/dashboard-engine/generic"
)

// Client is generic.Resources with cached reads. Every successful mutation
// invalidates its type before returning, so the next read after a mutation
// completes always refetches.
type Client struct {
	src   generic.Resources
	cache *Cache
}

// NewClient wires a cache in front of src.
func NewClient(src generic.Resources, opts ...Option) *Client {
	return &Client{src: src, cache: NewCache(src, opts...)}
}

// Cache exposes the underlying cache (Peek, Clear).
func (c *Client) Cache() *Cache { return c.cache }

func (c *Client) List(ctx context.Context, t generic.EntityType, params generic.Params) (generic.Collection, error) {
	return c.cache.Get(ctx, t, params)
}

func (c *Client) Get(ctx context.Context, t generic.EntityType, id string) (generic.Entity, error) {
	return c.cache.GetOne(ctx, t, id)
}

func (c *Client) Create(ctx context.Context, t generic.EntityType, fields generic.Entity) (generic.Entity, error) {
	e, err := c.src.Create(ctx, t, fields)
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate(t)
	return e, nil
}

func (c *Client) Update(ctx context.Context, t generic.EntityType, id string, fields generic.Entity) (generic.Entity, error) {
	e, err := c.src.Update(ctx, t, id, fields)
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate(t)
	return e, nil
}

func (c *Client) Remove(ctx context.Context, t generic.EntityType, id string) error {
	if err := c.src.Remove(ctx, t, id); err != nil {
		return err
	}
	c.cache.Invalidate(t)
	return nil
}
