package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-customer-listing/cache"
	"github.com/goliatone/go-customer-listing/customers"
	"github.com/goliatone/go-customer-listing/httpapi"
	"github.com/goliatone/go-customer-listing/listing"
	"github.com/goliatone/go-customer-listing/model"
	"github.com/goliatone/go-customer-listing/pkg/testsupport"
	"github.com/goliatone/go-customer-listing/store"
)

const baseURL = "http://api.test"

type apiFixture struct {
	server *httptest.Server
	router http.Handler
	user   *model.User
	seeded []*model.Customer
}

func setup(t *testing.T, n int) *apiFixture {
	t.Helper()

	st := store.New(testsupport.OpenDB(t), nil, nil)
	user := testsupport.SeedUser(t, st, "User One")
	seeded := testsupport.SeedCustomers(t, st, user, n)

	cfg := cache.DefaultConfig()
	cfg.EarlyRefresh = nil
	cfg.TTL = time.Hour
	cacheSvc, err := cache.NewCacheService(cfg, nil)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	listingSvc := listing.NewService(st, cacheSvc, nil, nil)
	customerSvc := customers.NewService(st, listingSvc, nil)
	h := httpapi.NewHandler(customerSvc, listingSvc, baseURL+"/", nil)
	router := httpapi.NewRouter(h, httpapi.RouterOptions{RequestTimeout: 5 * time.Second})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &apiFixture{server: srv, router: router, user: user, seeded: seeded}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

type pageBody struct {
	Items []map[string]any `json:"items"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
	Total int              `json:"total"`
}

func (p pageBody) emails() []string {
	out := make([]string, 0, len(p.Items))
	for _, item := range p.Items {
		out = append(out, item["email"].(string))
	}
	return out
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func emailsOf(cs []*model.Customer) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Email)
	}
	return out
}

func equal(a, b []string) bool {
	return strings.Join(a, ",") == strings.Join(b, ",")
}

func TestHealth(t *testing.T) {
	f := setup(t, 0)

	resp := f.do(t, http.MethodGet, "/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body := decode[map[string]string](t, resp); body["status"] != "ok" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestGetCustomer(t *testing.T) {
	f := setup(t, 2)
	want := f.seeded[0]

	resp := f.do(t, http.MethodGet, "/api/customers/"+want.ID.String(), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decode[map[string]any](t, resp)
	wantKeys := []string{"address", "created_at", "email", "first_name", "id", "last_name", "phone", "user_id"}
	if got := keys(body); !equal(got, wantKeys) {
		t.Errorf("detail fields = %v, want %v", got, wantKeys)
	}
	if body["id"] != want.ID.String() || body["email"] != want.Email || body["user_id"] != f.user.ID.String() {
		t.Errorf("unexpected customer %v", body)
	}
}

func TestGetCustomer_NotFound(t *testing.T) {
	f := setup(t, 0)

	for _, path := range []string{
		"/api/customers/" + uuid.NewString(),
		"/api/customers/42",
		"/api/customers/not-a-uuid",
		"/api/customers/" + uuid.Nil.String(),
	} {
		resp := f.do(t, http.MethodGet, path, nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s: expected 404, got %d", path, resp.StatusCode)
		}
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		if buf.Len() != 0 {
			t.Errorf("GET %s: expected empty body, got %q", path, buf.String())
		}
	}
}

func TestCreateCustomer(t *testing.T) {
	f := setup(t, 0)

	resp := f.do(t, http.MethodPost, "/api/customers", map[string]any{
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"email":      "ada@example.com",
		"phone":      "+44 20 7946 0001",
		"address":    "12 St James's Square",
		"userId":     f.user.ID.String(),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	body := decode[map[string]any](t, resp)
	id, _ := body["id"].(string)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected a uuid id, got %v", body["id"])
	}
	if loc := resp.Header.Get("Location"); loc != baseURL+"/api/customers/"+id {
		t.Errorf("Location = %q", loc)
	}
	if body["user_id"] != f.user.ID.String() || body["first_name"] != "Ada" {
		t.Errorf("unexpected body %v", body)
	}

	if got := f.do(t, http.MethodGet, "/api/customers/"+id, nil); got.StatusCode != http.StatusOK {
		t.Errorf("created customer not readable: %d", got.StatusCode)
	}
}

func TestCreateCustomer_UnknownUser(t *testing.T) {
	f := setup(t, 0)

	for name, userID := range map[string]any{
		"missing":   nil,
		"numeric":   -1,
		"malformed": "abc",
		"unknown":   uuid.NewString(),
	} {
		t.Run(name, func(t *testing.T) {
			body := map[string]any{"first_name": "Ada", "last_name": "Lovelace", "email": "ada@example.com"}
			if userID != nil {
				body["userId"] = userID
			}
			if resp := f.do(t, http.MethodPost, "/api/customers", body); resp.StatusCode != http.StatusNotFound {
				t.Errorf("expected 404, got %d", resp.StatusCode)
			}
		})
	}
}

func TestCreateCustomer_BadRequest(t *testing.T) {
	f := setup(t, 0)

	resp := f.do(t, http.MethodPost, "/api/customers", "{not json")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if body := decode[httpapi.ErrorResponse](t, resp); body.Code != "BAD_REQUEST" {
		t.Errorf("expected BAD_REQUEST, got %+v", body)
	}

	resp = f.do(t, http.MethodPost, "/api/customers", map[string]any{
		"first_name": "",
		"last_name":  "Lovelace",
		"email":      "nope",
		"userId":     f.user.ID.String(),
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	body := decode[httpapi.ErrorResponse](t, resp)
	if body.Code != "VALIDATION_FAILED" {
		t.Errorf("expected VALIDATION_FAILED, got %+v", body)
	}
	if body.Details == nil {
		t.Error("expected field details")
	}
}

func TestDeleteCustomer(t *testing.T) {
	f := setup(t, 1)
	path := "/api/customers/" + f.seeded[0].ID.String()

	if resp := f.do(t, http.MethodDelete, path, nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodDelete, path, nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, path, nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestListUserCustomers(t *testing.T) {
	f := setup(t, 7)
	base := "/api/users/" + f.user.ID.String() + "/customers"

	tests := []struct {
		name  string
		query string
		page  int
		limit int
		want  []*model.Customer
	}{
		{"defaults", "", 1, 5, f.seeded[:5]},
		{"second page", "?page=2&limit=5", 2, 5, f.seeded[5:]},
		{"non-numeric falls back", "?page=abc&limit=", 1, 5, f.seeded[:5]},
		{"small limit", "?page=3&limit=2", 3, 2, f.seeded[4:6]},
		{"beyond the end", "?page=9", 9, 5, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, http.MethodGet, base+tt.query, nil)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}
			body := decode[pageBody](t, resp)
			if body.Page != tt.page || body.Limit != tt.limit || body.Total != 7 {
				t.Errorf("page=%d limit=%d total=%d", body.Page, body.Limit, body.Total)
			}
			if !equal(body.emails(), emailsOf(tt.want)) {
				t.Errorf("emails = %v, want %v", body.emails(), emailsOf(tt.want))
			}
			for _, item := range body.Items {
				if got := keys(item); !equal(got, []string{"email", "first_name", "id", "last_name"}) {
					t.Errorf("listing fields = %v", got)
				}
			}
		})
	}
}

func TestListUserCustomers_NotFound(t *testing.T) {
	f := setup(t, 0)

	for _, id := range []string{uuid.NewString(), "17"} {
		if resp := f.do(t, http.MethodGet, "/api/users/"+id+"/customers", nil); resp.StatusCode != http.StatusNotFound {
			t.Errorf("user %s: expected 404, got %d", id, resp.StatusCode)
		}
	}
}

func TestListingReflectsWrites(t *testing.T) {
	f := setup(t, 7)
	base := "/api/users/" + f.user.ID.String() + "/customers"

	page2 := decode[pageBody](t, f.do(t, http.MethodGet, base+"?page=2&limit=5", nil))
	if !equal(page2.emails(), emailsOf(f.seeded[5:7])) {
		t.Fatalf("unexpected page 2 %v", page2.emails())
	}

	created := f.do(t, http.MethodPost, "/api/customers", map[string]any{
		"first_name": "Eighth",
		"last_name":  "Customer",
		"email":      "c8@example.com",
		"userId":     f.user.ID.String(),
	})
	if created.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", created.StatusCode)
	}

	page2 = decode[pageBody](t, f.do(t, http.MethodGet, base+"?page=2&limit=5", nil))
	want := append(emailsOf(f.seeded[5:7]), "c8@example.com")
	if !equal(page2.emails(), want) || page2.Total != 8 {
		t.Fatalf("after create page 2 = %v (total %d), want %v", page2.emails(), page2.Total, want)
	}

	if resp := f.do(t, http.MethodDelete, "/api/customers/"+f.seeded[0].ID.String(), nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	page1 := decode[pageBody](t, f.do(t, http.MethodGet, base, nil))
	if !equal(page1.emails(), emailsOf(f.seeded[1:6])) {
		t.Errorf("after delete page 1 = %v, want %v", page1.emails(), emailsOf(f.seeded[1:6]))
	}
}

type failingListing struct{ err error }

func (f failingListing) GetPage(context.Context, uuid.UUID, int, int) (*model.Page, error) {
	return nil, f.err
}

func TestInternalErrorsAreGeneric(t *testing.T) {
	h := httpapi.NewHandler(nil, failingListing{err: errors.New("connection refused to 10.0.0.3")}, baseURL, nil)
	router := httpapi.NewRouter(h, httpapi.RouterOptions{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/"+uuid.NewString()+"/customers", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.3") {
		t.Errorf("internal details leaked: %s", rec.Body.String())
	}
}

// blockingListing waits for the request context to end.
type blockingListing struct{}

func (blockingListing) GetPage(ctx context.Context, _ uuid.UUID, _, _ int) (*model.Page, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRequestTimeout(t *testing.T) {
	h := httpapi.NewHandler(nil, blockingListing{}, baseURL, nil)
	router := httpapi.NewRouter(h, httpapi.RouterOptions{RequestTimeout: 20 * time.Millisecond})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/"+uuid.NewString()+"/customers", nil))

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("timeout response should come from the timeout middleware alone, got body %q", rec.Body.String())
	}
}

func TestDownstreamDeadline(t *testing.T) {
	h := httpapi.NewHandler(nil, failingListing{err: fmt.Errorf("list customers: %w", context.DeadlineExceeded)}, baseURL, nil)
	router := httpapi.NewRouter(h, httpapi.RouterOptions{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/"+uuid.NewString()+"/customers", nil))

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rec.Code)
	}
	var body httpapi.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Code != "TIMEOUT" {
		t.Errorf("expected TIMEOUT code, got %q", body.Code)
	}
}

func TestRequestID(t *testing.T) {
	h := httpapi.NewHandler(nil, nil, baseURL, nil)
	router := httpapi.NewRouter(h, httpapi.RouterOptions{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Errorf("expected propagated request id, got %q", got)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if _, err := uuid.Parse(rec.Header().Get("X-Request-Id")); err != nil {
		t.Errorf("expected generated uuid request id, got %q", rec.Header().Get("X-Request-Id"))
	}
}

func TestUnknownRoute(t *testing.T) {
	router := httpapi.NewRouter(httpapi.NewHandler(nil, nil, baseURL, nil), httpapi.RouterOptions{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/phones", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestURLFor(t *testing.T) {
	h := httpapi.NewHandler(nil, nil, baseURL+"/", nil)
	id := uuid.NewString()

	if got := h.URLFor(httpapi.RouteCustomerDetail, "id", id); got != baseURL+"/api/customers/"+id {
		t.Errorf("URLFor detail = %q", got)
	}
	if got := h.URLFor(httpapi.RouteUserCustomers, "id", id); got != baseURL+"/api/users/"+id+"/customers" {
		t.Errorf("URLFor listing = %q", got)
	}
	if got := h.URLFor("missing"); got != "" {
		t.Errorf("unknown route should be empty, got %q", got)
	}
}

func TestProject(t *testing.T) {
	c := &model.Customer{ID: uuid.New(), FirstName: "Ada", LastName: "L", Email: "a@b.c", Phone: "1", Address: "x", UserID: uuid.New()}

	if got := keys(httpapi.Project(c, httpapi.GroupListing)); !equal(got, []string{"email", "first_name", "id", "last_name"}) {
		t.Errorf("listing projection = %v", got)
	}
	if got := httpapi.Project(c, "admin"); len(got) != 0 {
		t.Errorf("unknown group should be empty, got %v", got)
	}
	if got := httpapi.Project(nil, httpapi.GroupDetail); len(got) != 0 {
		t.Errorf("nil customer should be empty, got %v", got)
	}
}
