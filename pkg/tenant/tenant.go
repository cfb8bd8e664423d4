// Package tenant creates and lists the companies that imported data lands in.
package tenant

import (
	"context"
	"strings"
	"time"

	"migra/pkg/domain"
)

// DefaultCurrencySymbol is used when a new company does not name one.
const DefaultCurrencySymbol = "Bs."

// Tenant is a company of the destination system.
type Tenant struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Address        string    `json:"address,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Email          string    `json:"email,omitempty"`
	TaxID          string    `json:"taxId,omitempty"`
	CurrencySymbol string    `json:"currencySymbol"`
	CreatedAt      time.Time `json:"createdAt"`
}

// CreateRequest carries the data entered for a new company.
type CreateRequest struct {
	Name           string `json:"name"`
	Address        string `json:"address,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Email          string `json:"email,omitempty"`
	TaxID          string `json:"taxId,omitempty"`
	CurrencySymbol string `json:"currencySymbol,omitempty"`
}

// Normalize trims every field and fills in the default currency.
func (r CreateRequest) Normalize() CreateRequest {
	r.Name = strings.TrimSpace(r.Name)
	r.Address = strings.TrimSpace(r.Address)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Email = strings.TrimSpace(r.Email)
	r.TaxID = strings.TrimSpace(r.TaxID)
	r.CurrencySymbol = strings.TrimSpace(r.CurrencySymbol)
	if r.CurrencySymbol == "" {
		r.CurrencySymbol = DefaultCurrencySymbol
	}
	return r
}

// Validate checks the fields a company cannot be created without.
func (r CreateRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return domain.NewInvalidInputError("company name is required")
	}
	if email := strings.TrimSpace(r.Email); email != "" && !strings.Contains(email, "@") {
		return domain.NewInvalidInputError("company email is not valid")
	}
	return nil
}

// Repository is the remote store of companies.
type Repository interface {
	CreateTenant(ctx context.Context, req CreateRequest) (*Tenant, error)
	ListTenants(ctx context.Context) ([]*Tenant, error)
}
