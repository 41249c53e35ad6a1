// Package di wires configuration, storage, cache, services and the HTTP
// handler into one Container.
package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-customer-listing/cache"
	"github.com/goliatone/go-customer-listing/config"
	"github.com/goliatone/go-customer-listing/customers"
	"github.com/goliatone/go-customer-listing/httpapi"
	"github.com/goliatone/go-customer-listing/listing"
	"github.com/goliatone/go-customer-listing/model"
	"github.com/goliatone/go-customer-listing/pkg/logging"
	"github.com/goliatone/go-customer-listing/repositorycache"
	"github.com/goliatone/go-customer-listing/store"
)

// Container owns the singletons of one service instance.
type Container struct {
	config        config.Config
	logger        logging.Logger
	db            *bun.DB
	cacheService  cache.TagAwareCacheService
	keySerializer cache.KeySerializer

	users     *repositorycache.CachedRepository[*model.User]
	customers *repositorycache.CachedRepository[*model.Customer]
	store     *store.Store

	listing         *listing.Service
	customerService *customers.Service
	handler         http.Handler
}

// NewContainer opens and migrates the database, builds the cache backend and
// wires the services. A nil logger is built from cfg.Log.
func NewContainer(ctx context.Context, cfg config.Config, logger logging.Logger) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		l, err := logging.New(cfg.Log.Driver, cfg.Log.Level)
		if err != nil {
			return nil, err
		}
		logger = l
	}

	c := &Container{config: cfg, logger: logger}

	db, err := store.Open(ctx, cfg.DB, logger)
	if err != nil {
		return nil, err
	}
	c.db = db

	if err := store.Migrate(ctx, db); err != nil {
		_ = c.Close()
		return nil, err
	}

	cacheService, err := cache.NewCacheService(cfg.Cache, logger)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("cache: %w", err)
	}
	c.cacheService = cacheService
	c.keySerializer = newKeySerializer(cfg.Cache)

	c.users = NewCachedRepository[*model.User](c, store.NewUserRepository(db))
	c.customers = NewCachedRepository[*model.Customer](c, store.NewCustomerRepository(db))
	c.store = store.New(db, c.users, c.customers)

	c.listing = listing.NewService(c.store, c.cacheService, c.keySerializer, logger)
	c.customerService = customers.NewService(c.store, c.listing, logger)

	handler := httpapi.NewHandler(c.customerService, c.listing, cfg.HTTP.BaseURL, logger)
	c.handler = httpapi.NewRouter(handler, httpapi.RouterOptions{
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Logger:         logger,
	})

	logger.Info("container ready", logging.Fields{
		"db_driver":     cfg.DB.Driver,
		"cache_backend": cfg.Cache.Backend,
	})
	return c, nil
}

// NewContainerWithDefaults builds a container over config.Default().
func NewContainerWithDefaults(ctx context.Context) (*Container, error) {
	return NewContainer(ctx, config.Default(), nil)
}

// remote backends get bounded keys
func newKeySerializer(cfg cache.Config) cache.KeySerializer {
	if cfg.Backend == cache.BackendRedis {
		return cache.NewHashedKeySerializer(nil, 0)
	}
	return cache.NewDefaultKeySerializer()
}

// Config returns the configuration the container was built with.
func (c *Container) Config() config.Config {
	return c.config
}

func (c *Container) Logger() logging.Logger {
	return c.logger
}

func (c *Container) DB() *bun.DB {
	return c.db
}

// CacheService returns the singleton cache service instance.
func (c *Container) CacheService() cache.TagAwareCacheService {
	return c.cacheService
}

// KeySerializer returns the singleton key serializer instance.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// Users returns the cached user repository.
func (c *Container) Users() *repositorycache.CachedRepository[*model.User] {
	return c.users
}

// CustomerRepository returns the cached customer repository.
func (c *Container) CustomerRepository() *repositorycache.CachedRepository[*model.Customer] {
	return c.customers
}

func (c *Container) Store() *store.Store {
	return c.store
}

func (c *Container) Listing() *listing.Service {
	return c.listing
}

func (c *Container) Customers() *customers.Service {
	return c.customerService
}

// Handler returns the HTTP router.
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Close releases the cache backend and the database.
func (c *Container) Close() error {
	var errs []error
	if closer, ok := c.cacheService.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db: %w", err))
		}
	}
	return errors.Join(errs...)
}

// NewCachedRepository wraps base with the container cache and key serializer.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
// Example: NewCachedRepository[*model.User](container, store.NewUserRepository(db))
func NewCachedRepository[T any](c *Container, base repository.Repository[T], opts ...repositorycache.Option) *repositorycache.CachedRepository[T] {
	opts = append([]repositorycache.Option{repositorycache.WithLogger(c.logger)}, opts...)
	return repositorycache.New(base, c.cacheService, c.keySerializer, opts...)
}
