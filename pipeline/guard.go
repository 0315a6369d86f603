package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLockTTL Redis 锁的过期时间，进程异常退出后锁会自动释放
const DefaultLockTTL = 10 * time.Minute

// Guard 保证同一智能账户同时只有一个尝试在进行
type Guard interface {
	// Acquire 成功时返回释放函数；已被占用时返回 ErrAttemptInFlight
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// GuardKey 锁的键
func GuardKey(chainID uint64, account common.Address) string {
	return fmt.Sprintf("batchmint:inflight:%d:%s", chainID, account.Hex())
}

// MemoryGuard 进程内的锁
type MemoryGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryGuard 创建进程内锁
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[string]struct{})}
}

// Acquire 见 Guard
func (g *MemoryGuard) Acquire(_ context.Context, key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.held[key]; ok {
		return nil, ErrAttemptInFlight
	}
	g.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, nil
}

// releaseScript 只删除自己持有的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard 多个服务实例共享的锁
type RedisGuard struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisGuard 创建 Redis 锁；ttl <= 0 时使用 DefaultLockTTL
func NewRedisGuard(client redis.UniversalClient, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisGuard{client: client, ttl: ttl}
}

// Acquire 见 Guard
func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("error acquiring lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrAttemptInFlight
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// 调用方的 ctx 可能已经取消，释放时使用独立的超时
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, g.client, []string{key}, token).Err()
		})
	}, nil
}
