package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adworks/leadbot/internal/domain"
	apperrors "github.com/adworks/leadbot/internal/errors"
)

// UserRepository implements domain.UserRepository using PostgreSQL.
type UserRepository struct {
	pool     *pgxpool.Pool
	scoreCap int
}

// NewUserRepository creates a new UserRepository. scoreCap bounds the lead
// score BumpScore can reach.
func NewUserRepository(pool *pgxpool.Pool, scoreCap int) *UserRepository {
	if scoreCap <= 0 {
		scoreCap = 100
	}
	return &UserRepository{pool: pool, scoreCap: scoreCap}
}

// Register inserts the user if the ID is unseen and returns the stored
// record plus whether the row is new. An existing row is returned unchanged.
func (r *UserRepository) Register(ctx context.Context, user *domain.RegisteredUser) (*domain.RegisteredUser, bool, error) {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO registered_users (id, name, handle, referrer_id, campaign, score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Handle,
		user.ReferrerID,
		user.Campaign,
		user.Score,
		user.CreatedAt,
	)
	if err != nil {
		return nil, false, apperrors.DatabaseError("UserRepository.Register", err)
	}
	created := tag.RowsAffected() == 1

	// Re-read so a repeated registration returns the original row.
	stored, err := r.GetByID(ctx, user.ID)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// GetByID retrieves a user by Telegram ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.RegisteredUser, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, name, handle, referrer_id, campaign, score, created_at
		FROM registered_users
		WHERE id = $1`

	user := &domain.RegisteredUser{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Handle,
		&user.ReferrerID,
		&user.Campaign,
		&user.Score,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user")
		}
		return nil, apperrors.DatabaseError("UserRepository.GetByID", err)
	}

	return user, nil
}

// BumpScore increments the user's score by delta, clamped to the configured
// cap. Unknown IDs are a no-op.
func (r *UserRepository) BumpScore(ctx context.Context, id int64, delta int) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	query := `
		UPDATE registered_users SET
			score = LEAST(score + $2, $3)
		WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, id, delta, r.scoreCap)
	if err != nil {
		return apperrors.DatabaseError("UserRepository.BumpScore", err)
	}

	return nil
}

// ReferralCount returns the number of users directly referred by id.
func (r *UserRepository) ReferralCount(ctx context.Context, id int64) (int, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	var count int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM registered_users WHERE referrer_id = $1", id,
	).Scan(&count)
	if err != nil {
		return 0, apperrors.DatabaseError("UserRepository.ReferralCount", err)
	}
	return count, nil
}

// DownlineCount returns the number of users transitively referred by id at
// any depth. The traversal runs in memory with a visited set, so a cycle in
// the referral data cannot loop it.
func (r *UserRepository) DownlineCount(ctx context.Context, id int64) (int, error) {
	ctx, cancel := WithListQueryTimeout(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx,
		"SELECT id, referrer_id FROM registered_users WHERE referrer_id IS NOT NULL")
	if err != nil {
		return 0, apperrors.DatabaseError("UserRepository.DownlineCount", err)
	}
	defer rows.Close()

	children := make(map[int64][]int64)
	for rows.Next() {
		var child, parent int64
		if err := rows.Scan(&child, &parent); err != nil {
			return 0, apperrors.DatabaseError("UserRepository.DownlineCount", err)
		}
		children[parent] = append(children[parent], child)
	}
	if err := rows.Err(); err != nil {
		return 0, apperrors.DatabaseError("UserRepository.DownlineCount", err)
	}

	return downlineSize(children, id), nil
}

// downlineSize counts the nodes reachable from root through the child map,
// excluding root itself. The visited set keeps cycles and self-references
// from looping the traversal.
func downlineSize(children map[int64][]int64, root int64) int {
	visited := map[int64]bool{root: true}
	queue := []int64{root}
	count := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range children[current] {
			if visited[child] {
				continue
			}
			visited[child] = true
			count++
			queue = append(queue, child)
		}
	}
	return count
}

// All returns every registered user, oldest first.
func (r *UserRepository) All(ctx context.Context) ([]*domain.RegisteredUser, error) {
	ctx, cancel := WithListQueryTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, name, handle, referrer_id, campaign, score, created_at
		FROM registered_users
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, apperrors.DatabaseError("UserRepository.All", err)
	}
	defer rows.Close()

	var users []*domain.RegisteredUser
	for rows.Next() {
		user := &domain.RegisteredUser{}
		if err := rows.Scan(
			&user.ID,
			&user.Name,
			&user.Handle,
			&user.ReferrerID,
			&user.Campaign,
			&user.Score,
			&user.CreatedAt,
		); err != nil {
			return nil, apperrors.DatabaseError("UserRepository.All", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.DatabaseError("UserRepository.All", err)
	}

	return users, nil
}

// Count returns the total number of registered users.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM registered_users").Scan(&count)
	if err != nil {
		return 0, apperrors.DatabaseError("UserRepository.Count", err)
	}
	return count, nil
}
