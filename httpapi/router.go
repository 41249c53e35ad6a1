// Package httpapi exposes the customer and listing services over HTTP.
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/goliatone/go-customer-listing/pkg/logging"
)

// Route names used with URLFor.
const (
	RouteHealth         = "health"
	RouteCustomerDetail = "detailCustomer"
	RouteCustomerCreate = "newCustomer"
	RouteCustomerDelete = "deleteCustomer"
	RouteUserCustomers  = "usersCustomers"
)

// Route is one entry of the routing table.
type Route struct {
	Method  string
	Pattern string
	Name    string
	Handler http.HandlerFunc
}

// RouterOptions configures the middleware stack.
type RouterOptions struct {
	// RequestTimeout cancels the request context. Zero disables it.
	RequestTimeout time.Duration
	Logger         logging.Logger
}

// Routes is the routing table of h.
func (h *Handler) Routes() []Route {
	return []Route{
		{Method: http.MethodGet, Pattern: "/health", Name: RouteHealth, Handler: h.Health},
		{Method: http.MethodGet, Pattern: "/api/customers/{id}", Name: RouteCustomerDetail, Handler: h.GetCustomer},
		{Method: http.MethodPost, Pattern: "/api/customers", Name: RouteCustomerCreate, Handler: h.CreateCustomer},
		{Method: http.MethodDelete, Pattern: "/api/customers/{id}", Name: RouteCustomerDelete, Handler: h.DeleteCustomer},
		{Method: http.MethodGet, Pattern: "/api/users/{id}/customers", Name: RouteUserCustomers, Handler: h.ListUserCustomers},
	}
}

// NewRouter mounts the routing table of h on a chi router.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	logger := logging.OrNop(opts.Logger)

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	for _, route := range h.Routes() {
		r.Method(route.Method, route.Pattern, route.Handler)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	return r
}

// URLFor builds the absolute URL of the named route, substituting path
// parameters pairwise: URLFor(RouteCustomerDetail, "id", id).
func (h *Handler) URLFor(name string, params ...string) string {
	for _, route := range h.Routes() {
		if route.Name != name {
			continue
		}
		path := route.Pattern
		for i := 0; i+1 < len(params); i += 2 {
			path = strings.ReplaceAll(path, "{"+params[i]+"}", params[i+1])
		}
		return h.baseURL + path
	}
	return ""
}
