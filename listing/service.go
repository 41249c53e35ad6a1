// Package listing serves a user's customers page by page through the cache.
//
// Pages are cached under a key derived from the user, page and limit and
// tagged with CacheTag. Any write to the customer collection calls
// InvalidateAll, which drops every cached page of every user.
package listing

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/goliatone/go-customer-listing/cache"
	"github.com/goliatone/go-customer-listing/model"
	"github.com/goliatone/go-customer-listing/pkg/logging"
)

const (
	DefaultPage  = 1
	DefaultLimit = 5
	MaxLimit     = 100

	// CacheTag groups every cached listing page.
	CacheTag = "customer-listing"

	keyPrefix = "user_customers"
)

type UserFinder interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

type CustomerPager interface {
	FindCustomersByUserPaged(ctx context.Context, user *model.User, page, limit int) (*model.Page, error)
}

// Store is everything the service reads.
type Store interface {
	UserFinder
	CustomerPager
}

type Service struct {
	store  Store
	cache  cache.TagAwareCacheService
	keys   cache.KeySerializer
	logger logging.Logger
}

// NewService wires the listing service. A nil key serializer uses the default one.
func NewService(store Store, cacheService cache.TagAwareCacheService, keys cache.KeySerializer, logger logging.Logger) *Service {
	if keys == nil {
		keys = cache.NewDefaultKeySerializer()
	}
	return &Service{
		store:  store,
		cache:  cacheService,
		keys:   keys,
		logger: logging.OrNop(logger),
	}
}

// Normalize applies defaults to non-positive values, caps limit at MaxLimit
// and caps page so its offset (page-1)*limit fits in an int.
func Normalize(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if maxPage := math.MaxInt / limit; page > maxPage {
		page = maxPage
	}
	return page, limit
}

// Key is the cache key of one page. Callers pass normalized values.
func (s *Service) Key(userID uuid.UUID, page, limit int) string {
	return s.keys.SerializeKey(keyPrefix, userID, page, limit)
}

// GetPage returns one page of the user's customers, from cache when possible.
// An unknown user yields a NotFound error, which is not cached.
func (s *Service) GetPage(ctx context.Context, userID uuid.UUID, page, limit int) (*model.Page, error) {
	page, limit = Normalize(page, limit)
	key := s.Key(userID, page, limit)

	return cache.GetOrFetchTagged(ctx, s.cache, key, []string{CacheTag}, func(ctx context.Context) (*model.Page, error) {
		user, err := s.store.FindUserByID(ctx, userID)
		if err != nil {
			return nil, err
		}

		result, err := s.store.FindCustomersByUserPaged(ctx, user, page, limit)
		if err != nil {
			return nil, err
		}

		s.logger.Debug("listing page loaded", logging.Fields{
			"user_id": userID.String(),
			"page":    page,
			"limit":   limit,
			"total":   result.Total,
		})
		return result, nil
	})
}

// InvalidateAll drops every cached page.
func (s *Service) InvalidateAll(ctx context.Context) error {
	if err := s.cache.InvalidateTags(ctx, CacheTag); err != nil {
		s.logger.Error("listing invalidation failed", logging.Fields{"error": err.Error()})
		return err
	}
	return nil
}
