package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrSendInProgress = errors.New("a message is already being answered for this session")

// SessionGuard allows at most one in-flight send per session. Overlapping
// sends are rejected with ErrSendInProgress rather than queued.
type SessionGuard interface {
	Acquire(ctx context.Context, sessionID uuid.UUID) (release func(), err error)
}

type hold struct {
	expiresAt time.Time
}

// MemorySessionGuard keeps holds in process memory. Holds expire after ttl
// so a crashed request cannot lock a session forever.
type MemorySessionGuard struct {
	mu       sync.Mutex
	holds    map[uuid.UUID]*hold
	ttl      time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewMemorySessionGuard(ttl time.Duration) *MemorySessionGuard {
	g := &MemorySessionGuard{
		holds:    make(map[uuid.UUID]*hold),
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}

	// Cleanup goroutine
	go func() {
		ticker := time.NewTicker(ttl)
		defer ticker.Stop()
		for {
			select {
			case <-g.stopChan:
				return
			case <-ticker.C:
				g.sweep(time.Now())
			}
		}
	}()

	return g
}

func (g *MemorySessionGuard) Acquire(ctx context.Context, sessionID uuid.UUID) (func(), error) {
	now := time.Now()

	g.mu.Lock()
	if h, exists := g.holds[sessionID]; exists && now.Before(h.expiresAt) {
		g.mu.Unlock()
		return nil, ErrSendInProgress
	}
	h := &hold{expiresAt: now.Add(g.ttl)}
	g.holds[sessionID] = h
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			if g.holds[sessionID] == h {
				delete(g.holds, sessionID)
			}
			g.mu.Unlock()
		})
	}, nil
}

func (g *MemorySessionGuard) Stop() {
	g.stopOnce.Do(func() { close(g.stopChan) })
}

func (g *MemorySessionGuard) sweep(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, h := range g.holds {
		if !now.Before(h.expiresAt) {
			delete(g.holds, id)
		}
	}
}

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisSessionGuard shares holds between server replicas through SET NX.
type RedisSessionGuard struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisSessionGuard(redisClient *redis.Client, ttl time.Duration) *RedisSessionGuard {
	return &RedisSessionGuard{redis: redisClient, ttl: ttl}
}

func (g *RedisSessionGuard) Acquire(ctx context.Context, sessionID uuid.UUID) (func(), error) {
	key := sessionLockKey(sessionID)
	token := uuid.New().String()

	ok, err := g.redis.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire session lock: %w", err)
	}
	if !ok {
		return nil, ErrSendInProgress
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The request context may already be cancelled here.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, g.redis, []string{key}, token).Err(); err != nil {
				log.Printf("Failed to release session lock %s: %v", sessionID, err)
			}
		})
	}, nil
}

func sessionLockKey(sessionID uuid.UUID) string {
	return "session_lock:" + sessionID.String()
}
