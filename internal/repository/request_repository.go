package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/wilddocs/wilddocs-api/internal/models"
	appErrors "github.com/wilddocs/wilddocs-api/pkg/errors"
)

// RequestRepository manages document requests and their status ledger.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs a RequestRepository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestDetailColumns = `r.id, r.request_number, r.student_id, r.document_type_id, r.copies, r.purpose, r.status, r.fee_cents, r.assigned_to, r.remarks, r.created_at, r.updated_at,
        dt.name AS document_name, u.full_name AS student_name, sp.student_number`

const requestDetailJoins = `FROM document_requests r
        JOIN document_types dt ON dt.id = r.document_type_id
        JOIN student_profiles sp ON sp.id = r.student_id
        JOIN users u ON u.id = sp.user_id`

// Create inserts a request together with its opening ledger entry in one transaction.
func (r *RequestRepository) Create(ctx context.Context, req *models.Request) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin request creation: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Status = models.StatusPending
	req.CreatedAt = now
	req.UpdatedAt = now

	if req.RequestNumber == "" {
		var seq int64
		if err = tx.GetContext(ctx, &seq, `SELECT nextval('request_number_seq')`); err != nil {
			return fmt.Errorf("allocate request number: %w", err)
		}
		req.RequestNumber = fmt.Sprintf("WD-%d-%06d", now.Year(), seq)
	}

	const insertQuery = `INSERT INTO document_requests (id, request_number, student_id, document_type_id, copies, purpose, status, fee_cents, assigned_to, remarks, created_at, updated_at)
        VALUES (:id, :request_number, :student_id, :document_type_id, :copies, :purpose, :status, :fee_cents, :assigned_to, :remarks, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, req); err != nil {
		return fmt.Errorf("insert request: %w", err)
	}

	// The opening entry carries no actor id; it renders as the system actor.
	const historyQuery = `INSERT INTO request_status_history (id, request_id, from_status, to_status, changed_by, remarks, changed_at)
        VALUES ($1, $2, NULL, $3, NULL, '', $4)`
	if _, err = tx.ExecContext(ctx, historyQuery, uuid.NewString(), req.ID, models.StatusPending, now); err != nil {
		return fmt.Errorf("insert opening ledger entry: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit request creation: %w", err)
	}
	return nil
}

// FindByID fetches a bare request row.
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*models.Request, error) {
	const query = `SELECT id, request_number, student_id, document_type_id, copies, purpose, status, fee_cents, assigned_to, remarks, created_at, updated_at FROM document_requests WHERE id = $1 LIMIT 1`
	var req models.Request
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find request: %w", err)
	}
	return &req, nil
}

// FindDetail fetches a request joined with document and student display fields.
func (r *RequestRepository) FindDetail(ctx context.Context, id string) (*models.RequestDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE r.id = $1`, requestDetailColumns, requestDetailJoins)
	var detail models.RequestDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find request detail: %w", err)
	}
	return &detail, nil
}

// List returns requests matching the provided filters.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.RequestDetail, int, error) {
	base := requestDetailJoins
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("r.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("r.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DocumentTypeID != "" {
		conditions = append(conditions, fmt.Sprintf("r.document_type_id = $%d", len(args)+1))
		args = append(args, filter.DocumentTypeID)
	}
	if filter.AssignedTo != "" {
		conditions = append(conditions, fmt.Sprintf("r.assigned_to = $%d", len(args)+1))
		args = append(args, filter.AssignedTo)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(r.request_number) LIKE $%d OR LOWER(u.full_name) LIKE $%d OR LOWER(sp.student_number) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("r.created_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("r.created_at < $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"created_at":     "r.created_at",
		"updated_at":     "r.updated_at",
		"request_number": "r.request_number",
		"status":         "r.status",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "r.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d`, requestDetailColumns, base, column, order, size, offset)
	var requests []models.RequestDetail
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(r.id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}
	return requests, total, nil
}

// Transition moves a request to a new status and appends the ledger entry atomically.
// The row is locked for the duration of the transaction so concurrent decisions
// on the same request serialize; the loser observes an illegal transition.
func (r *RequestRepository) Transition(ctx context.Context, id string, to models.RequestStatus, allowedFrom []models.RequestStatus, changedBy, remarks string) (from models.RequestStatus, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transition: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.RequestStatus
	const lockQuery = `SELECT status FROM document_requests WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &current, lockQuery, id); err != nil {
		if err == sql.ErrNoRows {
			return "", err
		}
		return "", fmt.Errorf("lock request: %w", err)
	}

	allowed := false
	for _, s := range allowedFrom {
		if current == s {
			allowed = true
			break
		}
	}
	if !allowed {
		msg := fmt.Sprintf("cannot move %s request to %s", current, to)
		if current.Terminal() {
			msg = fmt.Sprintf("request is closed in %s and cannot move to %s", current, to)
		}
		err = appErrors.Clone(appErrors.ErrIllegalTransition, msg)
		return current, err
	}

	now := time.Now().UTC()
	const updateQuery = `UPDATE document_requests SET status = $2, remarks = $3, updated_at = $4 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery, id, to, remarks, now); err != nil {
		return current, fmt.Errorf("update request status: %w", err)
	}

	const historyQuery = `INSERT INTO request_status_history (id, request_id, from_status, to_status, changed_by, remarks, changed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err = tx.ExecContext(ctx, historyQuery, uuid.NewString(), id, string(current), to, changedBy, remarks, now); err != nil {
		return current, fmt.Errorf("insert ledger entry: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return current, fmt.Errorf("commit transition: %w", err)
	}
	return current, nil
}

// Assign sets the staff member responsible for a request.
func (r *RequestRepository) Assign(ctx context.Context, id, staffID string) error {
	const query = `UPDATE document_requests SET assigned_to = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, staffID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("assign request: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Statistics summarizes a student's requests by outcome.
func (r *RequestRepository) Statistics(ctx context.Context, studentID string) (*models.RequestStatistics, error) {
	const query = `SELECT
        COUNT(*) AS total,
        COUNT(*) FILTER (WHERE status = 'PENDING') AS pending,
        COUNT(*) FILTER (WHERE status = 'APPROVED') AS approved,
        COUNT(*) FILTER (WHERE status = 'COMPLETED') AS completed
        FROM document_requests WHERE student_id = $1`
	var stats models.RequestStatistics
	if err := r.db.GetContext(ctx, &stats, query, studentID); err != nil {
		return nil, fmt.Errorf("request statistics: %w", err)
	}
	return &stats, nil
}

// CountsByStatus returns registrar-wide request counts per lifecycle state.
func (r *RequestRepository) CountsByStatus(ctx context.Context) ([]models.StatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count FROM document_requests GROUP BY status ORDER BY status`
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("counts by status: %w", err)
	}
	return counts, nil
}

// CountAll returns the total number of document requests.
func (r *RequestRepository) CountAll(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM document_requests`); err != nil {
		return 0, fmt.Errorf("count all requests: %w", err)
	}
	return total, nil
}

// OverdueApproved returns approved requests filed before the cutoff.
// Age is measured from creation, not approval, matching the portal's
// original behavior.
func (r *RequestRepository) OverdueApproved(ctx context.Context, cutoff time.Time) ([]models.RequestDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE r.status = $1 AND r.created_at < $2 ORDER BY r.created_at ASC`, requestDetailColumns, requestDetailJoins)
	var requests []models.RequestDetail
	if err := r.db.SelectContext(ctx, &requests, query, models.StatusApproved, cutoff); err != nil {
		return nil, fmt.Errorf("overdue approved requests: %w", err)
	}
	return requests, nil
}
