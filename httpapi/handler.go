package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/goliatone/go-customer-listing/apperrors"
	"github.com/goliatone/go-customer-listing/customers"
	"github.com/goliatone/go-customer-listing/model"
	"github.com/goliatone/go-customer-listing/pkg/logging"
)

// maxBodyBytes bounds POST bodies.
const maxBodyBytes = 1 << 20

type CustomerService interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	Create(ctx context.Context, input customers.CreateInput) (*model.Customer, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ListingService interface {
	GetPage(ctx context.Context, userID uuid.UUID, page, limit int) (*model.Page, error)
}

// Handler serves the customer API.
type Handler struct {
	customers CustomerService
	listing   ListingService
	baseURL   string
	logger    logging.Logger
}

// NewHandler builds the handler. baseURL prefixes Location headers.
func NewHandler(customerService CustomerService, listingService ListingService, baseURL string, logger logging.Logger) *Handler {
	return &Handler{
		customers: customerService,
		listing:   listingService,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logging.OrNop(logger),
	}
}

// ErrorResponse is the body of 4xx and 5xx responses that carry one.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// createCustomerRequest is the POST body. userId is untyped: anything that
// is not a UUID string names no user.
type createCustomerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	UserID    any    `json:"userId"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	customer, err := h.customers.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, Project(customer, GroupDetail))
}

func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		h.respondError(w, r, apperrors.BadInput(err, "invalid JSON body"))
		return
	}

	customer, err := h.customers.Create(r.Context(), customers.CreateInput{
		UserID:    userIDFrom(req.UserID),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
	})
	if err != nil && customer == nil {
		h.respondError(w, r, err)
		return
	}
	if err != nil {
		// saved, but cached pages may be stale until their TTL expires
		h.logger.Error("customer created with cache invalidation failure", logging.Fields{
			"request_id":  middleware.GetReqID(r.Context()),
			"customer_id": customer.ID.String(),
			"error":       err.Error(),
		})
	}

	w.Header().Set("Location", h.URLFor(RouteCustomerDetail, "id", customer.ID.String()))
	respondJSON(w, http.StatusCreated, Project(customer, GroupDetail))
}

func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if err := h.customers.Delete(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListUserCustomers(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	page, err := h.listing.GetPage(r.Context(), userID, queryInt(q.Get("page")), queryInt(q.Get("limit")))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, projectPage(page))
}

// respondError maps categorized errors to status codes. Not found carries no body.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case r.Context().Err() != nil:
		// The request deadline passed or the client left. middleware.Timeout
		// answers 504 for the former.
		return

	case apperrors.IsNotFound(err):
		w.WriteHeader(http.StatusNotFound)

	case apperrors.IsValidation(err):
		resp := ErrorResponse{Error: "invalid request", Code: "BAD_REQUEST"}
		if e, ok := apperrors.As(err); ok {
			resp.Error = e.Message
			if e.TextCode != "" {
				resp.Code = e.TextCode
			}
			if len(e.ValidationErrors) > 0 {
				resp.Details = e.ValidationErrors
			}
		}
		respondJSON(w, http.StatusBadRequest, resp)

	case errors.Is(err, context.DeadlineExceeded):
		respondJSON(w, http.StatusGatewayTimeout, ErrorResponse{Error: "request timed out", Code: "TIMEOUT"})

	default:
		h.logger.Error("request failed", logging.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"error":      err.Error(),
		})
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: "INTERNAL_ERROR"})
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// pathID parses the {id} URL parameter. Malformed ids name no entity.
func pathID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// userIDFrom accepts only UUID strings. Anything else becomes uuid.Nil,
// which the customer service reports as an unknown user.
func userIDFrom(v any) uuid.UUID {
	s, ok := v.(string)
	if !ok {
		return uuid.Nil
	}
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// queryInt returns 0 for missing or non-numeric values so the listing
// service applies its defaults.
func queryInt(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}
