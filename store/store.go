package store

import (
	"context"
	"fmt"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-customer-listing/apperrors"
	"github.com/goliatone/go-customer-listing/model"
	"github.com/goliatone/go-customer-listing/repositorycache"
)

// Store is the backing store used by the listing and customer services.
// Lookups and writes go through the generic repositories, which may be
// cache decorated. The paged listing query runs on bun directly.
type Store struct {
	db        *bun.DB
	users     repository.Repository[*model.User]
	customers repository.Repository[*model.Customer]
}

// New returns a Store over db. Nil repositories default to plain bun repositories.
func New(db *bun.DB, users repository.Repository[*model.User], customers repository.Repository[*model.Customer]) *Store {
	if users == nil {
		users = NewUserRepository(db)
	}
	if customers == nil {
		customers = NewCustomerRepository(db)
	}
	return &Store{db: db, users: users, customers: customers}
}

// FindUserByID returns the user or a NotFound error. uuid.Nil never exists.
func (s *Store) FindUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if id == uuid.Nil {
		return nil, apperrors.NotFound("user", id)
	}
	user, err := s.users.GetByID(ctx, id.String())
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NotFound("user", id)
		}
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}
	if user == nil {
		return nil, apperrors.NotFound("user", id)
	}
	return user, nil
}

// FindCustomerByID returns the customer or a NotFound error.
func (s *Store) FindCustomerByID(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	if id == uuid.Nil {
		return nil, apperrors.NotFound("customer", id)
	}
	customer, err := s.customers.GetByID(ctx, id.String())
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NotFound("customer", id)
		}
		return nil, fmt.Errorf("find customer %s: %w", id, err)
	}
	if customer == nil {
		return nil, apperrors.NotFound("customer", id)
	}
	return customer, nil
}

// FindCustomersByUserPaged returns one page of the user's customers ordered
// by created_at then id, with the total count of the user's customers.
func (s *Store) FindCustomersByUserPaged(ctx context.Context, user *model.User, page, limit int) (*model.Page, error) {
	items := make([]*model.Customer, 0, limit)
	total, err := s.db.NewSelect().
		Model(&items).
		Where("?TableAlias.user_id = ?", user.ID).
		OrderExpr("?TableAlias.created_at ASC, ?TableAlias.id ASC").
		Limit(limit).
		Offset(model.Offset(page, limit)).
		ScanAndCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers of %s: %w", user.ID, err)
	}

	return &model.Page{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	}, nil
}

// SaveUser and SaveCustomer return the saved record alongside a
// repositorycache.InvalidationError when the insert committed but evicting
// cached reads failed.

// SaveUser inserts user, assigning an id and timestamp when missing.
func (s *Store) SaveUser(ctx context.Context, user *model.User) (*model.User, error) {
	stamp(&user.ID, &user.CreatedAt)
	saved, err := s.users.Create(ctx, user)
	if err != nil {
		if repositorycache.IsInvalidationError(err) {
			return saved, fmt.Errorf("save user: %w", err)
		}
		return nil, fmt.Errorf("save user: %w", err)
	}
	return saved, nil
}

// SaveCustomer inserts customer, assigning an id and timestamp when missing.
func (s *Store) SaveCustomer(ctx context.Context, customer *model.Customer) (*model.Customer, error) {
	stamp(&customer.ID, &customer.CreatedAt)
	saved, err := s.customers.Create(ctx, customer)
	if err != nil {
		if repositorycache.IsInvalidationError(err) {
			return saved, fmt.Errorf("save customer: %w", err)
		}
		return nil, fmt.Errorf("save customer: %w", err)
	}
	return saved, nil
}

// DeleteCustomer removes customer.
func (s *Store) DeleteCustomer(ctx context.Context, customer *model.Customer) error {
	if err := s.customers.Delete(ctx, customer); err != nil {
		return fmt.Errorf("delete customer %s: %w", customer.ID, err)
	}
	return nil
}

func stamp(id *uuid.UUID, createdAt *time.Time) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	if createdAt.IsZero() {
		*createdAt = time.Now().UTC()
	}
	// postgres keeps microseconds
	*createdAt = createdAt.UTC().Truncate(time.Microsecond)
}
