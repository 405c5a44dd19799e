package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adworks/leadbot/internal/domain"
	apperrors "github.com/adworks/leadbot/internal/errors"
)

// InteractionRepository implements domain.InteractionRepository using
// PostgreSQL.
type InteractionRepository struct {
	pool *pgxpool.Pool
}

// NewInteractionRepository creates a new InteractionRepository.
func NewInteractionRepository(pool *pgxpool.Pool) *InteractionRepository {
	return &InteractionRepository{pool: pool}
}

// Create inserts a new interaction record, generating an ID if unset.
func (r *InteractionRepository) Create(ctx context.Context, interaction *domain.Interaction) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	if interaction.ID == "" {
		interaction.ID = uuid.New().String()
	}

	query := `
		INSERT INTO interactions (id, user_id, message, intent, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query,
		interaction.ID,
		interaction.UserID,
		interaction.Message,
		interaction.Intent,
		interaction.CreatedAt,
	)
	if err != nil {
		return apperrors.DatabaseError("InteractionRepository.Create", err)
	}

	return nil
}

// CountSince returns the number of interactions recorded in the last hours.
func (r *InteractionRepository) CountSince(ctx context.Context, hours int) (int, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	var count int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM interactions WHERE created_at >= NOW() - ($1 * INTERVAL '1 hour')",
		hours,
	).Scan(&count)
	if err != nil {
		return 0, apperrors.DatabaseError("InteractionRepository.CountSince", err)
	}
	return count, nil
}
