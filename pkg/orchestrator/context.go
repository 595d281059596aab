package orchestrator

import (
	"fmt"
	"strings"

	"nimbus-hq/ganymede/pkg/model"
)

// CallerContext carries what is known about the caller. All fields are
// optional; empty fields are omitted from the preamble.
type CallerContext struct {
	// Name is the caller's display name.
	Name string `json:"name,omitempty"`

	// Email is the caller's address, also used as the rate-limit key.
	Email string `json:"email,omitempty"`

	// OrderID is the order under discussion, if any.
	OrderID string `json:"order_id,omitempty"`
}

// Key returns the rate-limit caller key: the email when known.
func (c CallerContext) Key() string {
	return c.Email
}

// preamble renders the caller context as a system message, or nil when
// nothing is known.
func preamble(c CallerContext) *model.Message {
	var parts []string
	if c.Name != "" {
		parts = append(parts, fmt.Sprintf("The customer's name is %s.", c.Name))
	}
	if c.Email != "" {
		parts = append(parts, fmt.Sprintf("Their account email is %s.", c.Email))
	}
	if c.OrderID != "" {
		parts = append(parts, fmt.Sprintf("They are asking about order %s.", c.OrderID))
	}
	if len(parts) == 0 {
		return nil
	}
	return &model.Message{
		Role:    model.RoleSystem,
		Content: strings.Join(parts, " "),
	}
}
