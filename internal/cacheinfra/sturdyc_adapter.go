package cacheinfra

import (
	"context"
	"strings"

	"github.com/viccon/sturdyc"

	"github.com/goliatone/go-customer-listing/pkg/logging"
)

// sturdycService keeps entries in process with a sturdyc client.
// Tag generations live in a tagIndex next to the client.
type sturdycService struct {
	client *sturdyc.Client[any]
	tags   *tagIndex
	logger logging.Logger
}

var _ Service = (*sturdycService)(nil)

// NewSturdycService validates cfg and builds an in-process cache.
// Capacity, NumShards, TTL and EvictionPercentage go to sturdyc.New,
// everything else through ToSturdycOptions.
func NewSturdycService(cfg Config, logger logging.Logger) (*sturdycService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &sturdycService{
		client: client,
		tags:   newTagIndex(),
		logger: logging.OrNop(logger),
	}, nil
}

// GetOrFetch returns the entry for key or fills it from fetchFn.
// Concurrent misses on the same key share a single fetch.
func (s *sturdycService) GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error) {
	if err := validateFetchFn(fetchFn); err != nil {
		return nil, err
	}

	return s.client.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return callFetch(ctx, fetchFn)
	})
}

// GetOrFetchTagged is GetOrFetch for an entry grouped under tags.
func (s *sturdycService) GetOrFetchTagged(ctx context.Context, key string, tags []string, fetchFn any) (any, error) {
	tags = normalizeTags(tags)
	if len(tags) == 0 {
		return s.GetOrFetch(ctx, key, fetchFn)
	}
	if err := validateFetchFn(fetchFn); err != nil {
		return nil, err
	}

	gens := s.tags.snapshot(tags)
	storageKey := versionedKey(key, tags, gens)

	value, err := s.client.GetOrFetch(ctx, storageKey, func(ctx context.Context) (any, error) {
		return callFetch(ctx, fetchFn)
	})
	if err != nil {
		return nil, err
	}

	s.tags.track(tags, storageKey)
	if !sameGenerations(gens, s.tags.snapshot(tags)) {
		// invalidated while filling; readers already moved to the new generation
		s.client.Delete(storageKey)
		s.logger.Debug("cache fill raced invalidation", logging.Fields{"key": key})
	}

	return value, nil
}

// Delete removes key and any tagged variants of it.
func (s *sturdycService) Delete(ctx context.Context, key string) error {
	s.client.Delete(key)
	tagged := key + versionSeparator
	for _, k := range s.client.ScanKeys() {
		if strings.HasPrefix(k, tagged) {
			s.client.Delete(k)
		}
	}
	return nil
}

// DeleteByPrefix removes every entry whose key starts with prefix.
func (s *sturdycService) DeleteByPrefix(ctx context.Context, prefix string) error {
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			s.client.Delete(key)
		}
	}
	return nil
}

// InvalidateKeys removes the given keys.
func (s *sturdycService) InvalidateKeys(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// InvalidateTags bumps every tag's generation and evicts the entries filled under it.
func (s *sturdycService) InvalidateTags(ctx context.Context, tags ...string) error {
	for _, tag := range normalizeTags(tags) {
		keys := s.tags.bump(tag)
		for _, key := range keys {
			s.client.Delete(key)
		}
		s.logger.Debug("cache tag invalidated", logging.Fields{"tag": tag, "evicted": len(keys)})
	}
	return nil
}

// Size reports the number of stored entries.
func (s *sturdycService) Size() int {
	return s.client.Size()
}

// Close is a no-op; sturdyc has nothing to release.
func (s *sturdycService) Close() error {
	return nil
}
