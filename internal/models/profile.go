package models

import "time"

// StudentProfile holds registrar-facing data for a student account.
type StudentProfile struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	StudentNumber string    `db:"student_number" json:"student_number"`
	Program       string    `db:"program" json:"program"`
	YearLevel     int       `db:"year_level" json:"year_level"`
	ContactNumber string    `db:"contact_number" json:"contact_number"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// StaffProfile holds registrar staff data for a staff or admin account.
type StaffProfile struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	EmployeeID string    `db:"employee_id" json:"employee_id"`
	Position   string    `db:"position" json:"position"`
	Department string    `db:"department" json:"department"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// StudentDetail joins a student profile with its account information.
type StudentDetail struct {
	StudentProfile
	Email    string `db:"email" json:"email"`
	FullName string `db:"full_name" json:"full_name"`
	Active   bool   `db:"active" json:"active"`
}
