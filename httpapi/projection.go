package httpapi

import (
	"time"

	"github.com/goliatone/go-customer-listing/model"
)

// Serialization groups. Each group is an explicit allowlist of customer fields.
const (
	GroupDetail  = "detail"
	GroupListing = "listing"
)

var groups = map[string][]string{
	GroupDetail:  {"id", "first_name", "last_name", "email", "phone", "address", "user_id", "created_at"},
	GroupListing: {"id", "first_name", "last_name", "email"},
}

// Project returns the fields of c allowed by group. Unknown groups yield an empty object.
func Project(c *model.Customer, group string) map[string]any {
	out := make(map[string]any, len(groups[group]))
	if c == nil {
		return out
	}
	for _, field := range groups[group] {
		out[field] = customerField(c, field)
	}
	return out
}

func customerField(c *model.Customer, field string) any {
	switch field {
	case "id":
		return c.ID.String()
	case "first_name":
		return c.FirstName
	case "last_name":
		return c.LastName
	case "email":
		return c.Email
	case "phone":
		return c.Phone
	case "address":
		return c.Address
	case "user_id":
		return c.UserID.String()
	case "created_at":
		return c.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return nil
}

type pageResponse struct {
	Items []map[string]any `json:"items"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
	Total int              `json:"total"`
}

func projectPage(p *model.Page) pageResponse {
	resp := pageResponse{Items: make([]map[string]any, 0, len(p.Items)), Page: p.Page, Limit: p.Limit, Total: p.Total}
	for _, c := range p.Items {
		resp.Items = append(resp.Items, Project(c, GroupListing))
	}
	return resp
}
