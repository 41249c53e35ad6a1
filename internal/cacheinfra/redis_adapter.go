package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/goliatone/go-customer-listing/pkg/logging"
)

const scanBatch = 256

// redisService stores msgpack encoded entries in redis so several service
// instances share one cache. Tag generations are redis counters and the
// storage keys filled under a tag are kept in a redis set.
//
// Reads and fills go through a circuit breaker. When redis misbehaves the
// service degrades to calling fetchFn directly. Invalidation bypasses the
// breaker and reports redis errors to the caller. Tags whose invalidation
// failed stay pending and are invalidated again before this instance serves
// another read from redis.
type redisService struct {
	rdb     redis.UniversalClient
	prefix  string
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker[any]
	pending *xsync.MapOf[string, struct{}]
	logger  logging.Logger
}

var _ Service = (*redisService)(nil)

// NewRedisService builds a redis backed cache over client. The service owns
// client and closes it on Close.
func NewRedisService(cfg Config, client redis.UniversalClient, logger logging.Logger) (*redisService, error) {
	if client == nil {
		return nil, &ConfigError{Field: "Redis", Message: "client cannot be nil"}
	}
	if cfg.TTL <= 0 {
		return nil, &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}

	var rc RedisConfig
	if cfg.Redis != nil {
		rc = *cfg.Redis
	}
	logger = logging.OrNop(logger)

	return &redisService{
		rdb:     client,
		prefix:  rc.KeyPrefix,
		ttl:     cfg.TTL,
		breaker: newBreaker("cache-redis", rc.Breaker, logger),
		pending: xsync.NewMapOf[string, struct{}](),
		logger:  logger,
	}, nil
}

func (s *redisService) dataKey(key string) string { return s.prefix + key }
func (s *redisService) genKey(tag string) string  { return s.prefix + "gen:" + tag }
func (s *redisService) tagKey(tag string) string  { return s.prefix + "tag:" + tag }

// GetOrFetch returns the entry for key or fills it from fetchFn.
func (s *redisService) GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error) {
	return s.GetOrFetchTagged(ctx, key, nil, fetchFn)
}

// GetOrFetchTagged is GetOrFetch for an entry grouped under tags.
func (s *redisService) GetOrFetchTagged(ctx context.Context, key string, tags []string, fetchFn any) (any, error) {
	if err := validateFetchFn(fetchFn); err != nil {
		return nil, err
	}
	tags = normalizeTags(tags)

	var gens []uint64
	var raw []byte
	_, err := s.breaker.Execute(func() (any, error) {
		if err := s.replayPending(ctx); err != nil {
			return nil, err
		}
		var err error
		if gens, err = s.generations(ctx, tags); err != nil {
			return nil, err
		}
		raw, err = s.rdb.Get(ctx, s.dataKey(versionedKey(key, tags, gens))).Bytes()
		return nil, err
	})

	switch {
	case err == nil:
		value, decodeErr := decodeValue(raw, fetchResultType(fetchFn))
		if decodeErr == nil {
			return value, nil
		}
		s.logger.Warn("cache entry decode failed", logging.Fields{"key": key, "error": decodeErr.Error()})
	case errors.Is(err, redis.Nil):
	default:
		s.logger.Warn("cache unavailable, reading through", logging.Fields{"key": key, "error": err.Error()})
		return callFetch(ctx, fetchFn)
	}

	value, err := callFetch(ctx, fetchFn)
	if err != nil || isNilResult(value) {
		return value, err
	}

	storageKey := versionedKey(key, tags, gens)
	if err := s.store(ctx, storageKey, tags, value); err != nil {
		s.logger.Warn("cache fill failed", logging.Fields{"key": key, "error": err.Error()})
		return value, nil
	}

	if len(tags) > 0 {
		current, err := s.generations(ctx, tags)
		if err != nil || !sameGenerations(gens, current) {
			// invalidated while filling; readers already moved to the new generation
			s.rdb.Unlink(ctx, s.dataKey(storageKey))
			s.logger.Debug("cache fill raced invalidation", logging.Fields{"key": key})
		}
	}

	return value, nil
}

func (s *redisService) store(ctx context.Context, storageKey string, tags []string, value any) error {
	payload, err := encodeValue(value)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	_, err = s.breaker.Execute(func() (any, error) {
		_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, s.dataKey(storageKey), payload, s.ttl)
			for _, tag := range tags {
				p.SAdd(ctx, s.tagKey(tag), storageKey)
			}
			return nil
		})
		return nil, err
	})
	return err
}

// generations reads the counters of tags with a single MGET. Missing counters are 0.
func (s *redisService) generations(ctx context.Context, tags []string) ([]uint64, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	keys := make([]string, len(tags))
	for i, tag := range tags {
		keys[i] = s.genKey(tag)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	gens := make([]uint64, len(tags))
	for i, v := range vals {
		var str string
		switch vv := v.(type) {
		case nil:
			continue
		case string:
			str = vv
		case []byte:
			str = string(vv)
		default:
			str = fmt.Sprint(vv)
		}
		u, err := strconv.ParseUint(str, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("redis gen parse at %s: %w", tags[i], err)
		}
		gens[i] = u
	}
	return gens, nil
}

// Delete removes key and any tagged variants of it.
func (s *redisService) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Unlink(ctx, s.dataKey(key)).Err(); err != nil {
		return err
	}
	return s.unlinkMatching(ctx, escapeGlob(s.dataKey(key+versionSeparator))+"*")
}

// DeleteByPrefix removes every entry whose key starts with prefix.
func (s *redisService) DeleteByPrefix(ctx context.Context, prefix string) error {
	return s.unlinkMatching(ctx, escapeGlob(s.dataKey(prefix))+"*")
}

// InvalidateKeys removes the given keys.
func (s *redisService) InvalidateKeys(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// InvalidateTags bumps every tag's counter, then evicts the entries filled under it.
// On error the tag and the ones after it are kept pending.
func (s *redisService) InvalidateTags(ctx context.Context, tags ...string) error {
	tags = normalizeTags(tags)
	for i, tag := range tags {
		if err := s.invalidateTag(ctx, tag); err != nil {
			for _, t := range tags[i:] {
				s.pending.Store(t, struct{}{})
			}
			return err
		}
		s.pending.Delete(tag)
	}
	return nil
}

// replayPending retries failed tag invalidations.
func (s *redisService) replayPending(ctx context.Context) error {
	if s.pending.Size() == 0 {
		return nil
	}
	var err error
	s.pending.Range(func(tag string, _ struct{}) bool {
		if err = s.invalidateTag(ctx, tag); err != nil {
			return false
		}
		s.pending.Delete(tag)
		s.logger.Info("pending cache tag invalidated", logging.Fields{"tag": tag})
		return true
	})
	return err
}

func (s *redisService) invalidateTag(ctx context.Context, tag string) error {
	if err := s.rdb.Incr(ctx, s.genKey(tag)).Err(); err != nil {
		return fmt.Errorf("bump tag %s: %w", tag, err)
	}

	members, err := s.rdb.SMembers(ctx, s.tagKey(tag)).Result()
	if err != nil {
		return fmt.Errorf("read tag %s: %w", tag, err)
	}

	keys := make([]string, 0, len(members)+1)
	for _, m := range members {
		keys = append(keys, s.dataKey(m))
	}
	keys = append(keys, s.tagKey(tag))
	if err := s.rdb.Unlink(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("evict tag %s: %w", tag, err)
	}

	s.logger.Debug("cache tag invalidated", logging.Fields{"tag": tag, "evicted": len(members)})
	return nil
}

func (s *redisService) unlinkMatching(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.rdb.Unlink(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Close releases the redis client.
func (s *redisService) Close() error {
	if err := s.rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// escapeGlob quotes redis SCAN MATCH metacharacters in s.
func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
