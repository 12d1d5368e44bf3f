package lock

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	config "github.com/rainlanguage/orderbook-trades/configs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	dir := t.TempDir()
	ledgerPath := filepath.Join(dir, "trades.csv")

	key := Key(ledgerPath, "0xABCDEF")
	assert.Equal(t, keyPrefix+"0xabcdef:"+ledgerPath, key)

	// Test case: the same ledger reached through a different path shares the key
	assert.Equal(t, key, Key(filepath.Join(dir, ".", "trades.csv"), "0xabcdef"))

	// Test case: another contract gets its own key
	assert.NotEqual(t, key, Key(ledgerPath, "0x123456"))
}

func TestTTL(t *testing.T) {
	assert.Equal(t, DEFAULT_LOCK_TTL_SECONDS*time.Second, TTL(0))
	assert.Equal(t, 15*time.Second, TTL(15))
}

func TestAcquireFailsWhenRedisIsUnreachable(t *testing.T) {
	client := NewRedisClient(config.RedisLockConfig{Addr: "127.0.0.1:1"})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	l, err := Acquire(ctx, client, Key("trades.csv", "0xabcdef"), time.Second)
	require.Error(t, err)
	assert.Nil(t, l)
	assert.NotErrorIs(t, err, ErrLockHeld)
}
