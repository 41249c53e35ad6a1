// Package customers implements customer lookup, creation and deletion.
// Successful writes invalidate every cached listing page.
package customers

import (
	"context"
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/goliatone/go-customer-listing/apperrors"
	"github.com/goliatone/go-customer-listing/model"
	"github.com/goliatone/go-customer-listing/pkg/logging"
	"github.com/goliatone/go-customer-listing/repositorycache"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type Store interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindCustomerByID(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	SaveCustomer(ctx context.Context, customer *model.Customer) (*model.Customer, error)
	DeleteCustomer(ctx context.Context, customer *model.Customer) error
}

// Invalidator drops cached listing pages.
type Invalidator interface {
	InvalidateAll(ctx context.Context) error
}

// CreateInput carries the fields of a new customer. UserID is uuid.Nil when
// the caller sent no usable user reference.
type CreateInput struct {
	UserID    uuid.UUID
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
}

// Validate checks field shape only; the user reference is resolved by Create.
func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.FirstName, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.LastName, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.Email, validation.Required, validation.Length(3, 255), validation.Match(emailPattern)),
		validation.Field(&in.Phone, validation.Length(0, 50)),
		validation.Field(&in.Address, validation.Length(0, 255)),
	)
}

func (in CreateInput) normalized() CreateInput {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	return in
}

type Service struct {
	store       Store
	invalidator Invalidator
	logger      logging.Logger
}

func NewService(store Store, invalidator Invalidator, logger logging.Logger) *Service {
	return &Service{
		store:       store,
		invalidator: invalidator,
		logger:      logging.OrNop(logger),
	}
}

// Get returns the customer or a NotFound error.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	return s.store.FindCustomerByID(ctx, id)
}

// Create validates input, attaches the customer to its user and saves it.
// A missing or unknown user yields NotFound.
func (s *Service) Create(ctx context.Context, input CreateInput) (*model.Customer, error) {
	input = input.normalized()
	if err := input.Validate(); err != nil {
		return nil, apperrors.Validation(err, "invalid customer")
	}

	user, err := s.store.FindUserByID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	customer, saveErr := s.store.SaveCustomer(ctx, &model.Customer{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     input.Email,
		Phone:     input.Phone,
		Address:   input.Address,
		UserID:    user.ID,
	})
	if !committed(saveErr) || customer == nil {
		return nil, saveErr
	}

	s.logger.Info("customer created", logging.Fields{
		"customer_id": customer.ID.String(),
		"user_id":     user.ID.String(),
	})

	return customer, errors.Join(saveErr, s.invalidate(ctx, "create", customer.ID))
}

// Delete removes the customer or returns NotFound.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	customer, err := s.store.FindCustomerByID(ctx, id)
	if err != nil {
		return err
	}

	deleteErr := s.store.DeleteCustomer(ctx, customer)
	if !committed(deleteErr) {
		return deleteErr
	}

	s.logger.Info("customer deleted", logging.Fields{"customer_id": id.String()})

	return errors.Join(deleteErr, s.invalidate(ctx, "delete", id))
}

// committed reports whether a store write reached the database. Entity cache
// invalidation failures still count as committed.
func committed(err error) bool {
	return err == nil || repositorycache.IsInvalidationError(err)
}

func (s *Service) invalidate(ctx context.Context, op string, id uuid.UUID) error {
	if s.invalidator == nil {
		return nil
	}
	if err := s.invalidator.InvalidateAll(ctx); err != nil {
		s.logger.Error("listing invalidation failed after write", logging.Fields{
			"op":          op,
			"customer_id": id.String(),
			"error":       err.Error(),
		})
		return err
	}
	return nil
}
