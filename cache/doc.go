// Package cache provides the caching interfaces and key serialization used by
// the customer listing service and the repository decorators.
//
// # Overview
//
// The package exports three pieces:
//
//   - CacheService: read-through GetOrFetch plus exact key deletion
//   - TagAwareCacheService: entries grouped under tags that can be invalidated together
//   - KeySerializer: builds stable cache keys from a method name and arguments
//
// Backends live in internal/cacheinfra. NewCacheService picks the in-process
// sturdyc backend or the shared redis backend from Config.Backend.
//
// # Basic Usage
//
//	svc, err := cache.NewCacheService(cache.DefaultConfig(), logger)
//	keys := cache.NewDefaultKeySerializer()
//	key := keys.SerializeKey("user_customers", userID, page, limit)
//
//	result, err := cache.GetOrFetchTagged(ctx, svc, key, []string{"customer-listing"},
//		func(ctx context.Context) (*model.Page, error) {
//			return store.FindCustomersByUserPaged(ctx, userID, page, limit)
//		})
//
// After any write that changes listing results:
//
//	err := svc.InvalidateTags(ctx, "customer-listing")
//
// # Tags and Concurrent Fills
//
// Every tag carries a generation counter. The storage key of a tagged entry
// embeds the generations observed when the fill started, and InvalidateTags
// bumps them before deleting tracked entries. A fill that was already running
// when the invalidation happened writes under a stale storage key that no
// later read will look up.
//
// # Key Serialization
//
//   - fmt.Stringer values (uuid.UUID, time.Time) use String()
//   - Basic types use their %v form
//   - Slices, arrays, maps and structs are serialized recursively; map pairs are sorted
//   - Functions and channels use %p
//   - Anything else falls back to JSON
//
// Function values are only stable within a process, and closures built from
// the same literal share a code pointer regardless of what they capture. Do
// not rely on closure arguments to make keys unique; pass the values instead.
//
// HashedKeySerializer wraps another serializer and replaces keys above a
// length limit with an xxhash digest, which keeps redis keys bounded.
package cache
