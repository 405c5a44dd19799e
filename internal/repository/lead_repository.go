package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adworks/leadbot/internal/domain"
	apperrors "github.com/adworks/leadbot/internal/errors"
)

// LeadRepository implements domain.LeadRepository using PostgreSQL.
type LeadRepository struct {
	pool *pgxpool.Pool
}

// NewLeadRepository creates a new LeadRepository.
func NewLeadRepository(pool *pgxpool.Pool) *LeadRepository {
	return &LeadRepository{pool: pool}
}

// Create inserts a new lead and fills in its generated ID.
func (r *LeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO leads (name, phone, email, source, notes, status, added_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	err := r.pool.QueryRow(ctx, query,
		lead.Name,
		lead.Phone,
		lead.Email,
		lead.Source,
		lead.Notes,
		lead.Status,
		lead.AddedBy,
		lead.CreatedAt,
		lead.UpdatedAt,
	).Scan(&lead.ID)
	if err != nil {
		return apperrors.DatabaseError("LeadRepository.Create", err)
	}

	return nil
}

// Recent retrieves up to limit leads, newest first.
func (r *LeadRepository) Recent(ctx context.Context, limit int) ([]*domain.Lead, error) {
	ctx, cancel := WithListQueryTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, name, phone, email, source, notes, status, added_by, created_at, updated_at
		FROM leads
		ORDER BY created_at DESC, id DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, apperrors.DatabaseError("LeadRepository.Recent", err)
	}
	defer rows.Close()

	leads := make([]*domain.Lead, 0, limit)
	for rows.Next() {
		lead := &domain.Lead{}
		if err := rows.Scan(
			&lead.ID,
			&lead.Name,
			&lead.Phone,
			&lead.Email,
			&lead.Source,
			&lead.Notes,
			&lead.Status,
			&lead.AddedBy,
			&lead.CreatedAt,
			&lead.UpdatedAt,
		); err != nil {
			return nil, apperrors.DatabaseError("LeadRepository.Recent", err)
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.DatabaseError("LeadRepository.Recent", err)
	}

	return leads, nil
}

// UpdateStatus sets the status of a lead. Returns false when the lead does
// not exist.
func (r *LeadRepository) UpdateStatus(ctx context.Context, id int64, status domain.LeadStatus) (bool, error) {
	if !domain.ValidLeadStatus(status) {
		return false, apperrors.ValidationFailed(fmt.Sprintf("unknown lead status %q", status))
	}

	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	query := `
		UPDATE leads SET
			status = $2,
			updated_at = NOW()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return false, apperrors.DatabaseError("LeadRepository.UpdateStatus", err)
	}

	return result.RowsAffected() > 0, nil
}

// Stats returns aggregate lead counts. All zeros on an empty table.
func (r *LeadRepository) Stats(ctx context.Context) (*domain.LeadStats, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	stats := &domain.LeadStats{ByStatus: make(map[domain.LeadStatus]int)}

	query := `
		SELECT status, COUNT(*), COUNT(*) FILTER (WHERE created_at >= date_trunc('day', NOW() AT TIME ZONE 'UTC') AT TIME ZONE 'UTC')
		FROM leads
		GROUP BY status`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, apperrors.DatabaseError("LeadRepository.Stats", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status domain.LeadStatus
		var count, today int
		if err := rows.Scan(&status, &count, &today); err != nil {
			return nil, apperrors.DatabaseError("LeadRepository.Stats", err)
		}
		stats.ByStatus[status] = count
		stats.Total += count
		stats.Today += today
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.DatabaseError("LeadRepository.Stats", err)
	}

	return stats, nil
}

// ExportRows returns every lead as a flat row in domain.ExportHeader order.
func (r *LeadRepository) ExportRows(ctx context.Context) ([][]string, error) {
	ctx, cancel := WithListQueryTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, name, phone, email, source, notes, status, created_at, updated_at
		FROM leads
		ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, apperrors.DatabaseError("LeadRepository.ExportRows", err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		lead := &domain.Lead{}
		if err := rows.Scan(
			&lead.ID,
			&lead.Name,
			&lead.Phone,
			&lead.Email,
			&lead.Source,
			&lead.Notes,
			&lead.Status,
			&lead.CreatedAt,
			&lead.UpdatedAt,
		); err != nil {
			return nil, apperrors.DatabaseError("LeadRepository.ExportRows", err)
		}
		out = append(out, exportRow(lead))
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.DatabaseError("LeadRepository.ExportRows", err)
	}

	return out, nil
}

func exportRow(lead *domain.Lead) []string {
	return []string{
		strconv.FormatInt(lead.ID, 10),
		lead.Name,
		lead.Phone,
		deref(lead.Email),
		lead.Source,
		deref(lead.Notes),
		string(lead.Status),
		lead.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		lead.UpdatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
