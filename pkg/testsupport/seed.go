package testsupport

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-customer-listing/model"
	"github.com/goliatone/go-customer-listing/store"
)

var dbSeq atomic.Int64

// BaseTime is the created_at of the first seeded customer. Each following
// customer is one minute later.
var BaseTime = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// Saver is the part of the store seeding needs.
type Saver interface {
	SaveUser(ctx context.Context, user *model.User) (*model.User, error)
	SaveCustomer(ctx context.Context, customer *model.Customer) (*model.Customer, error)
}

// StoreConfig returns a sqlite config private to the calling test.
func StoreConfig(t testing.TB) store.Config {
	t.Helper()
	name := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, t.Name())
	return store.Config{
		Driver: store.DriverSQLite,
		DSN:    fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1)),
	}
}

// OpenDB opens and migrates a private in-memory database closed at test end.
func OpenDB(t testing.TB) *bun.DB {
	t.Helper()
	ctx := context.Background()

	db, err := store.Open(ctx, StoreConfig(t), nil)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := store.Migrate(ctx, db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// SeedUser saves a user named name.
func SeedUser(t testing.TB, s Saver, name string) *model.User {
	t.Helper()

	user, err := s.SaveUser(context.Background(), &model.User{
		Name:      name,
		Email:     strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		CreatedAt: BaseTime,
	})
	if err != nil {
		t.Fatalf("failed to seed user %s: %v", name, err)
	}
	return user
}

// SeedCustomers saves n customers for user from the fixtures, cycling
// through them, with created_at increasing from BaseTime.
func SeedCustomers(t testing.TB, s Saver, user *model.User, n int) []*model.Customer {
	t.Helper()

	fixtures := Customers(t)
	out := make([]*model.Customer, 0, n)
	for i := 0; i < n; i++ {
		f := fixtures[i%len(fixtures)]
		customer, err := s.SaveCustomer(context.Background(), &model.Customer{
			FirstName: f.FirstName,
			LastName:  f.LastName,
			Email:     fmt.Sprintf("%d.%s", i+1, f.Email),
			Phone:     f.Phone,
			Address:   f.Address,
			UserID:    user.ID,
			CreatedAt: BaseTime.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("failed to seed customer %d: %v", i+1, err)
		}
		out = append(out, customer)
	}
	return out
}

func packageDir(t testing.TB) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot resolve testsupport directory")
	}
	return filepath.Dir(file)
}
