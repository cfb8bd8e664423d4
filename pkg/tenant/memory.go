package tenant

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps companies in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	tenants []*Tenant
	now     func() time.Time
}

func NewMemoryRepository(seed ...*Tenant) *MemoryRepository {
	r := &MemoryRepository{now: time.Now}
	for _, t := range seed {
		cp := *t
		r.tenants = append(r.tenants, &cp)
	}
	return r
}

func (r *MemoryRepository) CreateTenant(ctx context.Context, req CreateRequest) (*Tenant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req = req.Normalize()

	t := &Tenant{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Address:        req.Address,
		Phone:          req.Phone,
		Email:          req.Email,
		TaxID:          req.TaxID,
		CurrencySymbol: req.CurrencySymbol,
		CreatedAt:      r.now().UTC(),
	}

	r.mu.Lock()
	r.tenants = append(r.tenants, t)
	r.mu.Unlock()

	cp := *t
	return &cp, nil
}

func (r *MemoryRepository) ListTenants(ctx context.Context) ([]*Tenant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}
