package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/peoplebook/peoplebook/internal/person"
	"github.com/peoplebook/peoplebook/pkg/logger"
	"github.com/peoplebook/peoplebook/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CachedRepo wraps another Repository with a Redis read-through cache for
// id lookups. Entries are JSON under "<prefix><hex id>" and expire after ttl.
// Every write that can touch an entry evicts it; bulk deletes flush the prefix.
type CachedRepo struct {
	Repository
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCachedRepo creates the cache decorator. Prefix may be empty.
func NewCachedRepo(inner Repository, client *redis.Client, prefix string, ttl time.Duration) *CachedRepo {
	if prefix == "" {
		prefix = "person:"
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedRepo{Repository: inner, client: client, prefix: prefix, ttl: ttl}
}

func (c *CachedRepo) key(id primitive.ObjectID) string {
	return c.prefix + id.Hex()
}

func (c *CachedRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*person.Person, error) {
	b, err := c.client.Get(ctx, c.key(id)).Bytes()
	switch {
	case err == nil:
		var p person.Person
		if uerr := json.Unmarshal(b, &p); uerr == nil {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return &p, nil
		}
		logger.Warnf("cache: dropping undecodable entry %s", c.key(id))
		_ = c.client.Del(ctx, c.key(id)).Err()
	case errors.Is(err, redis.Nil):
	default:
		// the store stays authoritative when Redis is unavailable
		logger.Warnf("cache: get %s: %v", c.key(id), err)
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	p, err := c.Repository.FindByID(ctx, id)
	if err != nil || p == nil {
		return p, err
	}
	c.store(ctx, p)
	return p, nil
}

func (c *CachedRepo) store(ctx context.Context, p *person.Person) {
	b, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(p.ID), b, c.ttl).Err(); err != nil {
		logger.Warnf("cache: set %s: %v", c.key(p.ID), err)
	}
}

func (c *CachedRepo) evict(ctx context.Context, id primitive.ObjectID) {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		logger.Warnf("cache: del %s: %v", c.key(id), err)
	}
}

// flush removes every entry under the prefix.
func (c *CachedRepo) flush(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.Warnf("cache: scan %s*: %v", c.prefix, err)
		return
	}
	if len(keys) > 0 {
		_ = c.client.Del(ctx, keys...).Err()
	}
}

// Save evicts after the write so a lookup racing the write cannot cache
// the old document again.
func (c *CachedRepo) Save(ctx context.Context, p *person.Person) (*person.Person, error) {
	existed := !p.ID.IsZero()
	out, err := c.Repository.Save(ctx, p)
	if err == nil && existed {
		c.evict(ctx, out.ID)
	}
	return out, err
}

func (c *CachedRepo) SetAgeByName(ctx context.Context, name string, age int) (*person.Person, error) {
	p, err := c.Repository.SetAgeByName(ctx, name, age)
	if p != nil {
		c.evict(ctx, p.ID)
	}
	return p, err
}

func (c *CachedRepo) DeleteByID(ctx context.Context, id primitive.ObjectID) (*person.Person, error) {
	p, err := c.Repository.DeleteByID(ctx, id)
	if err == nil {
		c.evict(ctx, id)
	}
	return p, err
}

func (c *CachedRepo) DeleteMany(ctx context.Context, f person.Filter) (*person.DeleteResult, error) {
	res, err := c.Repository.DeleteMany(ctx, f)
	if res != nil && res.DeletedCount > 0 {
		c.flush(ctx)
	}
	return res, err
}
