package leads

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository stores leads in the relational database.
type PostgresRepository struct {
	pool pgxQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithQuerier(q pgxQuerier) *PostgresRepository {
	if q == nil {
		panic("leads: querier required")
	}
	return &PostgresRepository{pool: q}
}

var _ Repository = (*PostgresRepository)(nil)

// Create inserts a new row.
func (r *PostgresRepository) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New()
	query := `
		INSERT INTO leads (id, campaign_id, name, property_address, property_type, email, phone, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	var createdAt time.Time
	if err := r.pool.QueryRow(ctx, query,
		id,
		req.CampaignID,
		req.Name,
		req.PropertyAddress,
		string(req.PropertyType),
		req.Email,
		req.Phone,
		req.Source,
	).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("leads: insert failed: %w", err)
	}

	return &Lead{
		ID:              id.String(),
		CampaignID:      req.CampaignID,
		Name:            req.Name,
		PropertyAddress: req.PropertyAddress,
		PropertyType:    req.PropertyType,
		Email:           req.Email,
		Phone:           req.Phone,
		Source:          req.Source,
		CreatedAt:       createdAt,
	}, nil
}

// GetByID fetches a lead.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	query := `
		SELECT id, campaign_id, name, property_address, property_type, email, phone, source, created_at
		FROM leads
		WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)
	lead, err := scanLead(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	return lead, nil
}

// GetByContact finds a lead by phone number or email address. The newest
// match wins when a contact was re-imported across campaigns.
func (r *PostgresRepository) GetByContact(ctx context.Context, contact string) (*Lead, error) {
	query := `
		SELECT id, campaign_id, name, property_address, property_type, email, phone, source, created_at
		FROM leads
		WHERE phone = $1 OR email = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	row := r.pool.QueryRow(ctx, query, contact)
	lead, err := scanLead(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	return lead, nil
}

// ListByCampaign returns every lead belonging to the campaign, oldest first.
func (r *PostgresRepository) ListByCampaign(ctx context.Context, campaignID string) ([]*Lead, error) {
	query := `
		SELECT id, campaign_id, name, property_address, property_type, email, phone, source, created_at
		FROM leads
		WHERE campaign_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("leads: list failed: %w", err)
	}
	defer rows.Close()

	var out []*Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("leads: scan failed: %w", err)
		}
		out = append(out, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leads: rows failed: %w", err)
	}
	return out, nil
}

func scanLead(row pgx.Row) (*Lead, error) {
	var lead Lead
	var propertyType string
	if err := row.Scan(
		&lead.ID,
		&lead.CampaignID,
		&lead.Name,
		&lead.PropertyAddress,
		&propertyType,
		&lead.Email,
		&lead.Phone,
		&lead.Source,
		&lead.CreatedAt,
	); err != nil {
		return nil, err
	}
	lead.PropertyType = PropertyType(propertyType)
	return &lead, nil
}
