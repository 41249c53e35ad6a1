// Package repositorycache provides cached repository decorators for go-repository-bun.
//
// # Overview
//
// CachedRepository wraps a repository.Repository[T] and serves its read
// operations through a cache.TagAwareCacheService. Every cached read is
// tagged with the repository namespace, so a single tag invalidation evicts
// everything the repository cached without enumerating keys.
//
// # Basic Usage
//
//	base := store.NewUserRepository(db)
//	cached := repositorycache.New[*model.User](base, cacheService, nil)
//
//	user, err := cached.GetByID(ctx, id.String())
//
// The namespace defaults to the snake_case entity type name (*model.User
// becomes "user"). It prefixes every key, e.g. "user.GetByID::<id>::slice:nil".
//
// # Cached vs Pass-through Operations
//
// Cached: Get, GetByID, GetByIdentifier, List, Count.
//
// Pass-through: every *Tx method, Raw and RawTx. Reads inside a transaction
// must see uncommitted state, and writes inside a transaction are not
// visible to other readers until commit, so callers invalidate with
// InvalidateAll after committing.
//
// # Invalidation
//
// Successful non-transactional writes (Create, Update, Upsert, Delete and
// their bulk variants) invalidate the namespace tag plus any tags registered
// with WithInvalidationTags. Failed writes invalidate nothing. When the
// write succeeds but invalidation fails, the write result is returned
// together with an *InvalidationError.
//
// Reads made with a context from WithCacheTags carry those tags too, and
// writes made with such a context invalidate them:
//
//	ctx = repositorycache.WithCacheTags(ctx, "tenant:7")
//	customers, total, err := cached.List(ctx, criteria...)
//
// # Keys
//
// Keys are built by a cache.KeySerializer from the method name and all
// arguments. Criteria are functions and serialize by code pointer, so two
// closures from the same literal produce the same key regardless of what
// they capture. Queries whose criteria capture request values (such as a
// paged listing) belong in a dedicated cache entry keyed on those values,
// not behind this decorator.
package repositorycache
