// Package model holds the persisted entities and the listing page.
package model

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u" json:"-" msgpack:"-"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Email     string    `bun:"email,notnull,unique" json:"email"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// Customer belongs to exactly one User through UserID.
type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:c" json:"-" msgpack:"-"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	FirstName string    `bun:"first_name,notnull" json:"first_name"`
	LastName  string    `bun:"last_name,notnull" json:"last_name"`
	Email     string    `bun:"email,notnull" json:"email"`
	Phone     string    `bun:"phone" json:"phone"`
	Address   string    `bun:"address" json:"address"`
	UserID    uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// Page is one window of a user's customers ordered by creation time then id.
type Page struct {
	Items []*Customer `json:"items"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
	Total int         `json:"total"`
}

// Offset of the first item for the given 1-based page. It saturates at
// math.MaxInt instead of wrapping.
func Offset(page, limit int) int {
	if page < 1 || limit < 1 {
		return 0
	}
	if page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}
