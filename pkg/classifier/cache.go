package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "castex:classify:"

// CachedCompleter memoizes successful completions in Redis, keyed by model
// and prompt. Reclassification passes over unchanged episodes then cost
// nothing. Cache failures fall through to the wrapped completer.
type CachedCompleter struct {
	next      Completer
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// NewCachedCompleter wraps next. namespace should identify the model so that
// switching models does not serve stale answers.
func NewCachedCompleter(next Completer, client *redis.Client, namespace string, ttl time.Duration) *CachedCompleter {
	return &CachedCompleter{
		next:      next,
		client:    client,
		namespace: namespace,
		ttl:       ttl,
	}
}

// Complete implements Completer.
func (c *CachedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	key := c.key(prompt)

	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		return cached, nil
	case !errors.Is(err, redis.Nil):
		zap.L().Warn("classifier cache: get failed", zap.Error(err))
	}

	reply, err := c.next.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}

	// Only replies that carry a tag array are worth replaying.
	if _, perr := ExtractTags(reply); perr == nil {
		if err := c.client.Set(ctx, key, reply, c.ttl).Err(); err != nil {
			zap.L().Warn("classifier cache: set failed", zap.Error(err))
		}
	}
	return reply, nil
}

func (c *CachedCompleter) key(prompt string) string {
	sum := sha256.Sum256([]byte(c.namespace + "\x00" + prompt))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
