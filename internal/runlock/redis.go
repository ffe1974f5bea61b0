package runlock

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still carries our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisOptions configures NewRedis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
	TTL      time.Duration
}

// RedisLock is a SET NX lease. The TTL bounds how long a crashed holder can
// block other hosts.
type RedisLock struct {
	client *goredis.Client
	key    string
	ttl    time.Duration
}

// NewRedis builds a lock client; connectivity is checked on first use.
func NewRedis(opts RedisOptions) *RedisLock {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisWithClient(client, opts.Key, opts.TTL)
}

// NewRedisWithClient uses an existing client.
func NewRedisWithClient(client *goredis.Client, key string, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisLock{client: client, key: key, ttl: ttl}
}

func (l *RedisLock) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
	}
	return release, true, nil
}

// Close releases the underlying connection pool.
func (l *RedisLock) Close() error {
	return l.client.Close()
}
