package customers

import (
	"errors"
	"time"
)

// Customer is a distributor outlet buying stock on cash, cheque or credit.
type Customer struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Phone     *string   `json:"phone,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Address   *string   `json:"address,omitempty"`
	Route     *string   `json:"route,omitempty"`
	IsActive  bool      `json:"is_active"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateCustomerRequest carries customer creation input.
type CreateCustomerRequest struct {
	Code    string  `json:"code" validate:"required,max=50"`
	Name    string  `json:"name" validate:"required,max=200"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
	Address *string `json:"address,omitempty" validate:"omitempty,max=300"`
	Route   *string `json:"route,omitempty" validate:"omitempty,max=100"`
	Notes   *string `json:"notes,omitempty"`
}

// UpdateCustomerRequest carries partial customer updates.
type UpdateCustomerRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Address  *string `json:"address,omitempty" validate:"omitempty,max=300"`
	Route    *string `json:"route,omitempty" validate:"omitempty,max=100"`
	IsActive *bool   `json:"is_active,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

// ListCustomersRequest filters customer listings.
type ListCustomersRequest struct {
	IsActive *bool
	Search   string
	Limit    int
	Offset   int
}

var (
	// ErrCustomerNotFound indicates a missing customer row.
	ErrCustomerNotFound = errors.New("customers: customer not found")
	// ErrCodeTaken indicates a duplicate customer code.
	ErrCodeTaken = errors.New("customers: code already exists")
)
