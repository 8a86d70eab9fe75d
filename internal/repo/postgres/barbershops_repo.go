package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/barberlink/bookings/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BarbershopRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Barbershop, error)
	GetByPublicSlug(ctx context.Context, slug string) (*domain.Barbershop, error)
	// EnsurePublicSlug returns the barbershop's public slug, generating and
	// persisting one when absent.
	EnsurePublicSlug(ctx context.Context, id string) (string, error)
}

type barbershopRepository struct {
	pool *pgxpool.Pool
}

func NewBarbershopRepository(pool *pgxpool.Pool) BarbershopRepository {
	return &barbershopRepository{pool: pool}
}

const barbershopCols = `id, name, COALESCE(public_slug, ''), owner_id, stripe_enabled`

const slugMaxGenerationAttempts = 10

func generatePublicSlug() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (r *barbershopRepository) GetByID(ctx context.Context, id string) (*domain.Barbershop, error) {
	const q = `SELECT ` + barbershopCols + ` FROM barbershops WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var b domain.Barbershop
	err := r.pool.QueryRow(ctx, q, id).Scan(&b.ID, &b.Name, &b.PublicSlug, &b.OwnerID, &b.StripeEnabled)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *barbershopRepository) GetByPublicSlug(ctx context.Context, slug string) (*domain.Barbershop, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, nil
	}

	const q = `SELECT ` + barbershopCols + ` FROM barbershops WHERE public_slug=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var b domain.Barbershop
	err := r.pool.QueryRow(ctx, q, slug).Scan(&b.ID, &b.Name, &b.PublicSlug, &b.OwnerID, &b.StripeEnabled)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *barbershopRepository) EnsurePublicSlug(ctx context.Context, id string) (string, error) {
	shop, err := r.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if shop == nil {
		return "", fmt.Errorf("barbershop %s not found", id)
	}
	if shop.PublicSlug != "" {
		return shop.PublicSlug, nil
	}

	const claim = `UPDATE barbershops SET public_slug=$2 WHERE id=$1 AND public_slug IS NULL`

	for attempt := 0; attempt < slugMaxGenerationAttempts; attempt++ {
		candidate := generatePublicSlug()

		opCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		result, err := r.pool.Exec(opCtx, claim, id, candidate)
		cancel()

		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				continue
			}
			return "", err
		}

		if result.RowsAffected() == 1 {
			return candidate, nil
		}

		// Another writer claimed a slug first; read it back.
		shop, err = r.GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		if shop == nil {
			return "", fmt.Errorf("barbershop %s not found", id)
		}
		if shop.PublicSlug != "" {
			return shop.PublicSlug, nil
		}
	}

	return "", fmt.Errorf("could not generate unique public slug for barbershop %s", id)
}
