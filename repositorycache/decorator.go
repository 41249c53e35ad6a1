package repositorycache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-customer-listing/cache"
	"github.com/goliatone/go-customer-listing/pkg/logging"
)

// Interface assertion to ensure CachedRepository implements Repository[T]
var _ repository.Repository[any] = (*CachedRepository[any])(nil)

// listResult wraps the tuple result from List operations for caching
type listResult[T any] struct {
	Records []T `json:"records" msgpack:"records"`
	Total   int `json:"total" msgpack:"total"`
}

// InvalidationError reports a write that reached the database but whose
// cache invalidation failed. Callers get the write result alongside it.
type InvalidationError struct {
	Op   string
	Tags []string
	Err  error
}

func (e *InvalidationError) Error() string {
	return fmt.Sprintf("repositorycache: %s succeeded but invalidating %s failed: %v", e.Op, strings.Join(e.Tags, ","), e.Err)
}

func (e *InvalidationError) Unwrap() error {
	return e.Err
}

// IsInvalidationError reports whether err only failed cache invalidation,
// meaning the underlying write was applied.
func IsInvalidationError(err error) bool {
	var invErr *InvalidationError
	return errors.As(err, &invErr)
}

// Option configures a CachedRepository.
type Option func(*options)

type options struct {
	namespace string
	tags      []string
	logger    logging.Logger
}

// WithNamespace overrides the namespace derived from the entity type name.
// The namespace prefixes every key and is the tag all reads carry.
func WithNamespace(namespace string) Option {
	return func(o *options) {
		if ns := strings.TrimSpace(namespace); ns != "" {
			o.namespace = ns
		}
	}
}

// WithInvalidationTags adds tags that every successful write invalidates
// in addition to the namespace tag.
func WithInvalidationTags(tags ...string) Option {
	return func(o *options) {
		o.tags = append(o.tags, tags...)
	}
}

// WithLogger sets the logger used for invalidation failures.
func WithLogger(logger logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// CachedRepository decorates a base repository with caching functionality
type CachedRepository[T any] struct {
	base          repository.Repository[T]
	cache         cache.TagAwareCacheService
	keySerializer cache.KeySerializer
	namespace     string
	writeTags     []string
	logger        logging.Logger
}

// New creates a new CachedRepository that wraps the base repository with caching.
// A nil keySerializer uses cache.NewDefaultKeySerializer.
func New[T any](base repository.Repository[T], cacheService cache.TagAwareCacheService, keySerializer cache.KeySerializer, opts ...Option) *CachedRepository[T] {
	o := options{namespace: namespaceFor[T]()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if keySerializer == nil {
		keySerializer = cache.NewDefaultKeySerializer()
	}

	return &CachedRepository[T]{
		base:          base,
		cache:         cacheService,
		keySerializer: keySerializer,
		namespace:     o.namespace,
		writeTags:     dedupeStrings(append([]string{o.namespace}, o.tags...)),
		logger:        logging.OrNop(o.logger),
	}
}

// Namespace returns the key prefix and read tag of this repository.
func (c *CachedRepository[T]) Namespace() string {
	return c.namespace
}

// Get retrieves a single record using the provided criteria, with caching
func (c *CachedRepository[T]) Get(ctx context.Context, criteria ...repository.SelectCriteria) (T, error) {
	key := c.key("Get", criteria)
	return cache.GetOrFetchTagged(ctx, c.cache, key, c.readTags(ctx), func(ctx context.Context) (T, error) {
		return c.base.Get(ctx, criteria...)
	})
}

// GetByID retrieves a record by ID with optional criteria, with caching
func (c *CachedRepository[T]) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error) {
	key := c.key("GetByID", id, criteria)
	return cache.GetOrFetchTagged(ctx, c.cache, key, c.readTags(ctx), func(ctx context.Context) (T, error) {
		return c.base.GetByID(ctx, id, criteria...)
	})
}

// List retrieves multiple records using the provided criteria, with caching
func (c *CachedRepository[T]) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error) {
	key := c.key("List", criteria)
	res, err := cache.GetOrFetchTagged(ctx, c.cache, key, c.readTags(ctx), func(ctx context.Context) (listResult[T], error) {
		records, total, err := c.base.List(ctx, criteria...)
		return listResult[T]{Records: records, Total: total}, err
	})
	if err != nil {
		return nil, 0, err
	}
	return res.Records, res.Total, nil
}

// Count returns the number of records matching the criteria, with caching
func (c *CachedRepository[T]) Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error) {
	key := c.key("Count", criteria)
	return cache.GetOrFetchTagged(ctx, c.cache, key, c.readTags(ctx), func(ctx context.Context) (int, error) {
		return c.base.Count(ctx, criteria...)
	})
}

// GetByIdentifier retrieves a record by identifier with optional criteria, with caching
func (c *CachedRepository[T]) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	key := c.key("GetByIdentifier", identifier, criteria)
	return cache.GetOrFetchTagged(ctx, c.cache, key, c.readTags(ctx), func(ctx context.Context) (T, error) {
		return c.base.GetByIdentifier(ctx, identifier, criteria...)
	})
}

// Create creates a new record and invalidates the namespace.
func (c *CachedRepository[T]) Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error) {
	result, err := c.base.Create(ctx, record, criteria...)
	return result, c.afterWrite(ctx, "Create", err)
}

// CreateTx creates a new record within a transaction
func (c *CachedRepository[T]) CreateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.InsertCriteria) (T, error) {
	return c.base.CreateTx(ctx, tx, record, criteria...)
}

// CreateMany creates multiple records
func (c *CachedRepository[T]) CreateMany(ctx context.Context, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	result, err := c.base.CreateMany(ctx, records, criteria...)
	return result, c.afterWrite(ctx, "CreateMany", err)
}

// CreateManyTx creates multiple records within a transaction
func (c *CachedRepository[T]) CreateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	return c.base.CreateManyTx(ctx, tx, records, criteria...)
}

// GetOrCreate gets a record or creates it if it doesn't exist
func (c *CachedRepository[T]) GetOrCreate(ctx context.Context, record T) (T, error) {
	result, err := c.base.GetOrCreate(ctx, record)
	return result, c.afterWrite(ctx, "GetOrCreate", err)
}

// GetOrCreateTx gets a record or creates it if it doesn't exist within a transaction
func (c *CachedRepository[T]) GetOrCreateTx(ctx context.Context, tx bun.IDB, record T) (T, error) {
	return c.base.GetOrCreateTx(ctx, tx, record)
}

// Update updates a record
func (c *CachedRepository[T]) Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.Update(ctx, record, criteria...)
	return result, c.afterWrite(ctx, "Update", err)
}

// UpdateTx updates a record within a transaction
func (c *CachedRepository[T]) UpdateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	return c.base.UpdateTx(ctx, tx, record, criteria...)
}

// UpdateMany updates multiple records
func (c *CachedRepository[T]) UpdateMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpdateMany(ctx, records, criteria...)
	return result, c.afterWrite(ctx, "UpdateMany", err)
}

// UpdateManyTx updates multiple records within a transaction
func (c *CachedRepository[T]) UpdateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	return c.base.UpdateManyTx(ctx, tx, records, criteria...)
}

// Upsert inserts or updates a record
func (c *CachedRepository[T]) Upsert(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.Upsert(ctx, record, criteria...)
	return result, c.afterWrite(ctx, "Upsert", err)
}

// UpsertTx inserts or updates a record within a transaction
func (c *CachedRepository[T]) UpsertTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	return c.base.UpsertTx(ctx, tx, record, criteria...)
}

// UpsertMany inserts or updates multiple records
func (c *CachedRepository[T]) UpsertMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpsertMany(ctx, records, criteria...)
	return result, c.afterWrite(ctx, "UpsertMany", err)
}

// UpsertManyTx inserts or updates multiple records within a transaction
func (c *CachedRepository[T]) UpsertManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	return c.base.UpsertManyTx(ctx, tx, records, criteria...)
}

// Delete deletes a record
func (c *CachedRepository[T]) Delete(ctx context.Context, record T) error {
	return c.afterWrite(ctx, "Delete", c.base.Delete(ctx, record))
}

// DeleteTx deletes a record within a transaction
func (c *CachedRepository[T]) DeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	return c.base.DeleteTx(ctx, tx, record)
}

// DeleteMany deletes multiple records based on criteria
func (c *CachedRepository[T]) DeleteMany(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	return c.afterWrite(ctx, "DeleteMany", c.base.DeleteMany(ctx, criteria...))
}

// DeleteManyTx deletes multiple records based on criteria within a transaction
func (c *CachedRepository[T]) DeleteManyTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	return c.base.DeleteManyTx(ctx, tx, criteria...)
}

// DeleteWhere deletes records based on criteria
func (c *CachedRepository[T]) DeleteWhere(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	return c.afterWrite(ctx, "DeleteWhere", c.base.DeleteWhere(ctx, criteria...))
}

// DeleteWhereTx deletes records based on criteria within a transaction
func (c *CachedRepository[T]) DeleteWhereTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	return c.base.DeleteWhereTx(ctx, tx, criteria...)
}

// ForceDelete force deletes a record (bypassing soft delete)
func (c *CachedRepository[T]) ForceDelete(ctx context.Context, record T) error {
	return c.afterWrite(ctx, "ForceDelete", c.base.ForceDelete(ctx, record))
}

// ForceDeleteTx force deletes a record within a transaction (bypassing soft delete)
func (c *CachedRepository[T]) ForceDeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	return c.base.ForceDeleteTx(ctx, tx, record)
}

// GetTx retrieves a single record using the provided criteria within a transaction
func (c *CachedRepository[T]) GetTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetTx(ctx, tx, criteria...)
}

// GetByIDTx retrieves a record by ID with optional criteria within a transaction
func (c *CachedRepository[T]) GetByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIDTx(ctx, tx, id, criteria...)
}

// ListTx retrieves multiple records using the provided criteria within a transaction
func (c *CachedRepository[T]) ListTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) ([]T, int, error) {
	return c.base.ListTx(ctx, tx, criteria...)
}

// CountTx returns the number of records matching the criteria within a transaction
func (c *CachedRepository[T]) CountTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (int, error) {
	return c.base.CountTx(ctx, tx, criteria...)
}

// GetByIdentifierTx retrieves a record by identifier with optional criteria within a transaction
func (c *CachedRepository[T]) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIdentifierTx(ctx, tx, identifier, criteria...)
}

// Raw executes a raw SQL query and returns the results
func (c *CachedRepository[T]) Raw(ctx context.Context, sql string, args ...any) ([]T, error) {
	return c.base.Raw(ctx, sql, args...)
}

// RawTx executes a raw SQL query within a transaction and returns the results
func (c *CachedRepository[T]) RawTx(ctx context.Context, tx bun.IDB, sql string, args ...any) ([]T, error) {
	return c.base.RawTx(ctx, tx, sql, args...)
}

// Handlers returns the model handlers from the base repository
func (c *CachedRepository[T]) Handlers() repository.ModelHandlers[T] {
	return c.base.Handlers()
}

// InvalidateAll evicts every cached read of this repository.
func (c *CachedRepository[T]) InvalidateAll(ctx context.Context) error {
	return c.invalidate(ctx, "InvalidateAll")
}

func (c *CachedRepository[T]) key(method string, args ...any) string {
	return c.keySerializer.SerializeKey(c.namespace+"."+method, args...)
}

func (c *CachedRepository[T]) readTags(ctx context.Context) []string {
	return dedupeStrings(append(cacheTagsFromContext(ctx), c.namespace))
}

// afterWrite invalidates only when the write itself succeeded.
func (c *CachedRepository[T]) afterWrite(ctx context.Context, op string, writeErr error) error {
	if writeErr != nil {
		return writeErr
	}
	return c.invalidate(ctx, op)
}

func (c *CachedRepository[T]) invalidate(ctx context.Context, op string) error {
	tags := c.writeTags
	if ctxTags := cacheTagsFromContext(ctx); len(ctxTags) > 0 {
		tags = dedupeStrings(append(ctxTags, tags...))
	}

	if err := c.cache.InvalidateTags(ctx, tags...); err != nil {
		c.logger.Error("repository cache invalidation failed", logging.Fields{
			"namespace": c.namespace,
			"op":        op,
			"tags":      tags,
			"error":     err.Error(),
		})
		return &InvalidationError{Op: op, Tags: tags, Err: err}
	}
	return nil
}
