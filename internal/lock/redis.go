package lock

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	config "github.com/rainlanguage/orderbook-trades/configs"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DEFAULT_LOCK_TTL_SECONDS = 60

const keyPrefix = "orderbook-trades:lock:"

var ErrLockHeld = errors.New("another run holds the ledger lock")

var (
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// RedisLock guards one (ledger, contract) pair across processes. The lock is
// held under a random token so only its owner can refresh or release it.
type RedisLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration

	cancel   context.CancelFunc
	done     chan struct{}
	release  sync.Once
	lostOnce sync.Once
	lost     chan struct{}
}

// NewRedisClient builds a client from the lock configuration. TLS is used
// whenever credentials are configured.
func NewRedisClient(cfg config.RedisLockConfig) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.Password != "" {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opts)
}

// Key derives the lock key from the absolute ledger path and the contract.
func Key(ledgerPath, contract string) string {
	path := ledgerPath
	if abs, err := filepath.Abs(ledgerPath); err == nil {
		path = abs
	}
	return keyPrefix + strings.ToLower(contract) + ":" + filepath.Clean(path)
}

func TTL(seconds int) time.Duration {
	if seconds <= 0 {
		seconds = DEFAULT_LOCK_TTL_SECONDS
	}
	return time.Duration(seconds) * time.Second
}

// Acquire takes the lock with SET NX and keeps its TTL alive in the
// background until Release is called.
func Acquire(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (*RedisLock, error) {
	if ttl <= 0 {
		ttl = TTL(0)
	}
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	ok, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLockHeld, key)
	}

	refreshCtx, cancel := context.WithCancel(context.Background())
	l := &RedisLock{
		client: client,
		key:    key,
		token:  token,
		ttl:    ttl,
		cancel: cancel,
		done:   make(chan struct{}),
		lost:   make(chan struct{}),
	}
	go l.keepAlive(refreshCtx)

	log.Info().Str("key", key).Dur("ttl", ttl).Msg("Acquired run lock")
	return l, nil
}

// Lost is closed when the lock could not be refreshed and may now be held by
// someone else.
func (l *RedisLock) Lost() <-chan struct{} {
	return l.lost
}

func (l *RedisLock) keepAlive(ctx context.Context) {
	defer close(l.done)

	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refreshed, err := refreshScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn().Err(err).Str("key", l.key).Msg("Failed to refresh run lock")
				continue
			}
			if refreshed == 0 {
				log.Error().Str("key", l.key).Msg("Run lock was lost")
				l.lostOnce.Do(func() { close(l.lost) })
				return
			}
		}
	}
}

// Release stops the refresh loop and deletes the key if it is still ours.
func (l *RedisLock) Release(ctx context.Context) error {
	var err error
	l.release.Do(func() {
		l.cancel()
		<-l.done
		if _, runErr := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Result(); runErr != nil {
			err = fmt.Errorf("failed to release lock %s: %w", l.key, runErr)
			return
		}
		log.Info().Str("key", l.key).Msg("Released run lock")
	})
	return err
}

func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate lock token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
