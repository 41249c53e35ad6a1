package store

import (
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-customer-listing/model"
)

// NewUserRepository builds the generic repository for users. Email is the identifier.
func NewUserRepository(db *bun.DB) repository.Repository[*model.User] {
	return repository.NewRepository[*model.User](db, repository.ModelHandlers[*model.User]{
		NewRecord: func() *model.User {
			return &model.User{}
		},
		GetID: func(u *model.User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *model.User, id uuid.UUID) {
			u.ID = id
		},
		GetIdentifier: func() string {
			return "email"
		},
	})
}

// NewCustomerRepository builds the generic repository for customers. Email is the identifier.
func NewCustomerRepository(db *bun.DB) repository.Repository[*model.Customer] {
	return repository.NewRepository[*model.Customer](db, repository.ModelHandlers[*model.Customer]{
		NewRecord: func() *model.Customer {
			return &model.Customer{}
		},
		GetID: func(c *model.Customer) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *model.Customer, id uuid.UUID) {
			c.ID = id
		},
		GetIdentifier: func() string {
			return "email"
		},
	})
}
