package leads

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for lead storage
type Repository interface {
	Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error)
	GetByID(ctx context.Context, id string) (*Lead, error)
	GetByContact(ctx context.Context, contact string) (*Lead, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]*Lead, error)
}

// InMemoryRepository is a Repository backed by a map, for tests and local runs.
type InMemoryRepository struct {
	mu    sync.RWMutex
	leads map[string]*Lead
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		leads: make(map[string]*Lead),
	}
}

var _ Repository = (*InMemoryRepository)(nil)

// Create creates a new lead in memory
func (r *InMemoryRepository) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	lead := &Lead{
		ID:              uuid.New().String(),
		CampaignID:      req.CampaignID,
		Name:            req.Name,
		PropertyAddress: req.PropertyAddress,
		PropertyType:    req.PropertyType,
		Email:           req.Email,
		Phone:           req.Phone,
		Source:          req.Source,
		CreatedAt:       time.Now().UTC(),
	}

	r.mu.Lock()
	r.leads[lead.ID] = lead
	r.mu.Unlock()

	return lead, nil
}

// GetByID retrieves a lead by ID
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}

	return lead, nil
}

// GetByContact finds a lead by phone number or email address.
func (r *InMemoryRepository) GetByContact(ctx context.Context, contact string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, lead := range r.leads {
		if (lead.Phone != "" && lead.Phone == contact) || (lead.Email != "" && lead.Email == contact) {
			return lead, nil
		}
	}
	return nil, ErrLeadNotFound
}

// ListByCampaign returns every lead belonging to the campaign.
func (r *InMemoryRepository) ListByCampaign(ctx context.Context, campaignID string) ([]*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Lead
	for _, lead := range r.leads {
		if lead.CampaignID == campaignID {
			out = append(out, lead)
		}
	}
	return out, nil
}
