package mocks

import (
	"context"

	"migra/pkg/tenant"
)

// MockTenantRepository is a mock implementation of tenant.Repository
type MockTenantRepository struct {
	CreateTenantFunc func(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error)
	ListTenantsFunc  func(ctx context.Context) ([]*tenant.Tenant, error)

	CreateCalls []tenant.CreateRequest
}

// CreateTenant mocks the CreateTenant method
func (m *MockTenantRepository) CreateTenant(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	m.CreateCalls = append(m.CreateCalls, req)
	if m.CreateTenantFunc != nil {
		return m.CreateTenantFunc(ctx, req)
	}
	return &tenant.Tenant{
		ID:             "tenant-" + req.Name,
		Name:           req.Name,
		CurrencySymbol: tenant.DefaultCurrencySymbol,
	}, nil
}

// ListTenants mocks the ListTenants method
func (m *MockTenantRepository) ListTenants(ctx context.Context) ([]*tenant.Tenant, error) {
	if m.ListTenantsFunc != nil {
		return m.ListTenantsFunc(ctx)
	}
	return []*tenant.Tenant{}, nil
}
