package repository

import (
	"context"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

type companyRepository struct {
	db Querier
}

// NewCompanyRepository builds the repository.
func NewCompanyRepository(db Querier) CompanyRepository {
	return &companyRepository{db: db}
}

func (r *companyRepository) Create(ctx context.Context, company *domain.Company) error {
	const query = `
        INSERT INTO companies (name, contact_email, is_active)
        VALUES ($1,$2,$3)
        RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		company.Name,
		company.ContactEmail,
		company.IsActive,
	).Scan(&company.ID, &company.CreatedAt, &company.UpdatedAt)
	return mapError(err)
}

func (r *companyRepository) GetByID(ctx context.Context, id string) (*domain.Company, error) {
	const query = `
        SELECT id, name, contact_email, is_active, created_at, updated_at
        FROM companies WHERE id=$1`
	var company domain.Company
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&company.ID,
		&company.Name,
		&company.ContactEmail,
		&company.IsActive,
		&company.CreatedAt,
		&company.UpdatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	return &company, nil
}
