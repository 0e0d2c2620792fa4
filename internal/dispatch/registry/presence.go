package registry

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"medilink/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	presenceKeyPrefix = "dispatch:presence:"
	onlineDriversKey  = "dispatch:drivers:online"
)

// PresenceStore records which instance holds a driver's connection so any
// instance can answer "who is online".
type PresenceStore interface {
	MarkOnline(ctx context.Context, userID string) error
	Refresh(ctx context.Context, userID string) error
	MarkOffline(ctx context.Context, userID string) error
	OnlineDrivers(ctx context.Context) ([]string, error)
}

type RedisPresence struct {
	client     *redis.Client
	instanceID string
	ttl        time.Duration
	opTimeout  time.Duration
	log        *logger.Logger
}

func NewRedisPresence(client *redis.Client, instanceID string, ttl, opTimeout time.Duration, log *logger.Logger) *RedisPresence {
	return &RedisPresence{
		client:     client,
		instanceID: instanceID,
		ttl:        ttl,
		opTimeout:  opTimeout,
		log:        log,
	}
}

func (p *RedisPresence) MarkOnline(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, p.opTimeout)
	defer cancel()

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, presenceKeyPrefix+userID, p.instanceID, p.ttl)
	pipe.SAdd(ctx, onlineDriversKey, userID)
	_, err := pipe.Exec(ctx)
	return err
}

func (p *RedisPresence) Refresh(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, p.opTimeout)
	defer cancel()

	return p.client.Expire(ctx, presenceKeyPrefix+userID, p.ttl).Err()
}

// MarkOffline only clears the key when this instance still owns it, so a
// reconnect that landed on another instance is not erased.
func (p *RedisPresence) MarkOffline(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, p.opTimeout)
	defer cancel()

	owner, err := p.client.Get(ctx, presenceKeyPrefix+userID).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if err == nil && owner != p.instanceID {
		return nil
	}

	pipe := p.client.TxPipeline()
	pipe.Del(ctx, presenceKeyPrefix+userID)
	pipe.SRem(ctx, onlineDriversKey, userID)
	_, err = pipe.Exec(ctx)
	return err
}

// OnlineDrivers returns the set members whose presence key is still alive and
// prunes the ones that expired with a crashed instance.
func (p *RedisPresence) OnlineDrivers(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opTimeout)
	defer cancel()

	members, err := p.client.SMembers(ctx, onlineDriversKey).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []string{}, nil
	}

	pipe := p.client.Pipeline()
	checks := make([]*redis.IntCmd, len(members))
	for i, id := range members {
		checks[i] = pipe.Exists(ctx, presenceKeyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	online := make([]string, 0, len(members))
	var stale []any
	for i, id := range members {
		if checks[i].Val() > 0 {
			online = append(online, id)
		} else {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := p.client.SRem(ctx, onlineDriversKey, stale...).Err(); err != nil {
			p.log.Warn("Failed to prune stale driver presence", "error", err)
		}
	}

	sort.Strings(online)
	return online, nil
}

// LocalPresence is used when Redis is not configured; it only knows the
// drivers of this process.
type LocalPresence struct {
	mu      sync.RWMutex
	drivers map[string]struct{}
}

func NewLocalPresence() *LocalPresence {
	return &LocalPresence{drivers: make(map[string]struct{})}
}

func (p *LocalPresence) MarkOnline(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drivers[userID] = struct{}{}
	return nil
}

func (p *LocalPresence) Refresh(context.Context, string) error {
	return nil
}

func (p *LocalPresence) MarkOffline(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.drivers, userID)
	return nil
}

func (p *LocalPresence) OnlineDrivers(context.Context) ([]string, error) {
	p.mu.RLock()
	ids := make([]string, 0, len(p.drivers))
	for id := range p.drivers {
		ids = append(ids, id)
	}
	p.mu.RUnlock()

	sort.Strings(ids)
	return ids, nil
}
