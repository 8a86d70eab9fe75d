package postgres

import (
	"context"
	"time"

	"github.com/barberlink/bookings/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ServiceRepository interface {
	// GetByID returns the service, or nil when missing or soft-deleted.
	GetByID(ctx context.Context, id string) (*domain.BarbershopService, error)
}

type serviceRepository struct {
	pool *pgxpool.Pool
}

func NewServiceRepository(pool *pgxpool.Pool) ServiceRepository {
	return &serviceRepository{pool: pool}
}

func (r *serviceRepository) GetByID(ctx context.Context, id string) (*domain.BarbershopService, error) {
	const q = `SELECT id, barbershop_id, name, description, price_in_cents, duration_in_minutes, deleted_at
		FROM barbershop_services
		WHERE id=$1 AND deleted_at IS NULL`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var s domain.BarbershopService
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&s.ID, &s.BarbershopID, &s.Name, &s.Description,
		&s.PriceInCents, &s.DurationInMinutes, &s.DeletedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
