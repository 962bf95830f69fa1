package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RegionLocker serializes manifest generation per region key so concurrent
// first requests for the same locality make a single oracle call.
type RegionLocker interface {
	Lock(ctx context.Context, regionKey string) (unlock func(), err error)
}

// LocalRegionLocker is an in-process keyed mutex.
type LocalRegionLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalRegionLocker() *LocalRegionLocker {
	return &LocalRegionLocker{locks: make(map[string]*keyLock)}
}

func (l *LocalRegionLocker) Lock(ctx context.Context, regionKey string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[regionKey]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[regionKey] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(regionKey, kl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			l.release(regionKey, kl)
		})
	}, nil
}

func (l *LocalRegionLocker) release(regionKey string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, regionKey)
	}
}

// compare-and-delete so a lease that expired and was re-acquired elsewhere is left alone
var redisUnlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRegionLocker holds a short Redis lease per region key, shared by all
// service instances.
type RedisRegionLocker struct {
	client *redis.Client
	ttl    time.Duration
	poll   time.Duration
}

// NewRedisRegionLocker connects to redisURL (redis://[:password@]host:port/db).
func NewRedisRegionLocker(ctx context.Context, redisURL string, ttl time.Duration) (*RedisRegionLocker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisRegionLockerWithClient(client, ttl), nil
}

func NewRedisRegionLockerWithClient(client *redis.Client, ttl time.Duration) *RedisRegionLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisRegionLocker{client: client, ttl: ttl, poll: 250 * time.Millisecond}
}

func (l *RedisRegionLocker) Lock(ctx context.Context, regionKey string) (func(), error) {
	key := "region-lock:" + regionKey
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("acquire region lock %s: %w", regionKey, err)
		}
		if ok {
			break
		}

		select {
		case <-time.After(l.poll):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return func() {
		// the request ctx may already be done; the lease must still be released
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = redisUnlockScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}, nil
}

func (l *RedisRegionLocker) Close() error {
	return l.client.Close()
}
