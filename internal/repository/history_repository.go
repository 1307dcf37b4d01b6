package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/wilddocs/wilddocs-api/internal/models"
)

// HistoryRepository reads the append-only status ledger.
// Writes happen inside RequestRepository transactions so a status change
// and its ledger entry can never be observed apart.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository constructs a HistoryRepository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// ListByRequest returns the ledger for a request, newest change first.
// Ties on changed_at break by the monotonic seq counter so entries read
// back in the order they were written.
func (r *HistoryRepository) ListByRequest(ctx context.Context, requestID string) ([]models.TimelineEntry, error) {
	const query = `SELECT h.id, h.request_id, h.from_status, h.to_status, COALESCE(h.changed_by::text, '') AS changed_by, h.remarks, h.changed_at,
        COALESCE(u.full_name, sp_u.full_name, 'System') AS changed_by_name
        FROM request_status_history h
        LEFT JOIN users u ON u.id = h.changed_by
        LEFT JOIN student_profiles sp ON sp.id = h.changed_by
        LEFT JOIN users sp_u ON sp_u.id = sp.user_id
        WHERE h.request_id = $1
        ORDER BY h.changed_at DESC, h.seq ASC`
	var entries []models.TimelineEntry
	if err := r.db.SelectContext(ctx, &entries, query, requestID); err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	return entries, nil
}

// CountByRequest returns the number of ledger entries for a request.
func (r *HistoryRepository) CountByRequest(ctx context.Context, requestID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM request_status_history WHERE request_id = $1`, requestID); err != nil {
		return 0, fmt.Errorf("count status history: %w", err)
	}
	return count, nil
}
