package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/wilddocs/wilddocs-api/internal/models"
)

// ProfileRepository manages student and staff profile records.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository constructs a ProfileRepository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindStudentByUserID returns the student profile linked to a user account.
func (r *ProfileRepository) FindStudentByUserID(ctx context.Context, userID string) (*models.StudentProfile, error) {
	const query = `SELECT id, user_id, student_number, program, year_level, contact_number, created_at, updated_at FROM student_profiles WHERE user_id = $1 LIMIT 1`
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student profile by user: %w", err)
	}
	return &profile, nil
}

// FindStudentByID returns a student profile joined with account fields.
func (r *ProfileRepository) FindStudentByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	const query = `SELECT sp.id, sp.user_id, sp.student_number, sp.program, sp.year_level, sp.contact_number, sp.created_at, sp.updated_at,
        u.email, u.full_name, u.active
        FROM student_profiles sp
        JOIN users u ON u.id = sp.user_id
        WHERE sp.id = $1`
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student profile: %w", err)
	}
	return &detail, nil
}

// ExistsByStudentNumber checks whether a student number is already registered.
func (r *ProfileRepository) ExistsByStudentNumber(ctx context.Context, studentNumber string) (bool, error) {
	const query = `SELECT 1 FROM student_profiles WHERE student_number = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentNumber); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student number: %w", err)
	}
	return true, nil
}

// FindStaffByUserID returns the staff profile linked to a user account.
func (r *ProfileRepository) FindStaffByUserID(ctx context.Context, userID string) (*models.StaffProfile, error) {
	const query = `SELECT id, user_id, employee_id, position, department, created_at, updated_at FROM staff_profiles WHERE user_id = $1 LIMIT 1`
	var profile models.StaffProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find staff profile by user: %w", err)
	}
	return &profile, nil
}

// CreateStaff inserts a staff profile record.
func (r *ProfileRepository) CreateStaff(ctx context.Context, profile *models.StaffProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	const query = `INSERT INTO staff_profiles (id, user_id, employee_id, position, department, created_at, updated_at) VALUES (:id, :user_id, :employee_id, :position, :department, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("create staff profile: %w", err)
	}
	return nil
}

// CountActiveStudents returns the number of active student accounts.
func (r *ProfileRepository) CountActiveStudents(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM student_profiles sp JOIN users u ON u.id = sp.user_id WHERE u.active = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count active students: %w", err)
	}
	return count, nil
}
