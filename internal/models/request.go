package models

import "time"

// RequestStatus enumerates the lifecycle states of a document request.
type RequestStatus string

const (
	StatusPending   RequestStatus = "PENDING"
	StatusApproved  RequestStatus = "APPROVED"
	StatusCompleted RequestStatus = "COMPLETED"
	StatusRejected  RequestStatus = "REJECTED"
	StatusCancelled RequestStatus = "CANCELLED"
)

// Valid reports whether s is one of the known lifecycle states.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusCompleted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s RequestStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Request represents a student document request.
type Request struct {
	ID             string        `db:"id" json:"id"`
	RequestNumber  string        `db:"request_number" json:"request_number"`
	StudentID      string        `db:"student_id" json:"student_id"`
	DocumentTypeID string        `db:"document_type_id" json:"document_type_id"`
	Copies         int           `db:"copies" json:"copies"`
	Purpose        string        `db:"purpose" json:"purpose"`
	Status         RequestStatus `db:"status" json:"status"`
	FeeCents       int64         `db:"fee_cents" json:"fee_cents"`
	AssignedTo     *string       `db:"assigned_to" json:"assigned_to,omitempty"`
	Remarks        string        `db:"remarks" json:"remarks"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// RequestDetail joins a request with document and student display fields.
type RequestDetail struct {
	Request
	DocumentName  string `db:"document_name" json:"document_name"`
	StudentName   string `db:"student_name" json:"student_name"`
	StudentNumber string `db:"student_number" json:"student_number"`
}

// CreateRequestInput is the payload for filing a new request.
type CreateRequestInput struct {
	DocumentTypeID string `json:"document_type_id"`
	DocumentName   string `json:"document_name"`
	Copies         int    `json:"copies" validate:"required,min=1,max=10"`
	Purpose        string `json:"purpose" validate:"required"`
}

// TransitionInput carries the staff decision applied to a request.
type TransitionInput struct {
	Remarks string `json:"remarks" validate:"max=500"`
}

// AssignInput designates the staff member handling a request.
type AssignInput struct {
	StaffID string `json:"staff_id" validate:"required,uuid"`
}

// RequestFilter captures filtering criteria for listing requests.
type RequestFilter struct {
	StudentID      string
	Status         *RequestStatus
	DocumentTypeID string
	AssignedTo     string
	Search         string
	From           *time.Time
	To             *time.Time
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}

// RequestStatistics summarizes a student's request counts by outcome.
type RequestStatistics struct {
	Total     int `db:"total" json:"total"`
	Pending   int `db:"pending" json:"pending"`
	Approved  int `db:"approved" json:"approved"`
	Completed int `db:"completed" json:"completed"`
}

// StatusCount pairs a lifecycle state with its request count.
type StatusCount struct {
	Status RequestStatus `db:"status" json:"status"`
	Count  int           `db:"count" json:"count"`
}

// StudentSummary condenses one student's request history for their dashboard.
type StudentSummary struct {
	Statistics            RequestStatistics `json:"statistics"`
	Recent                []RequestDetail   `json:"recent"`
	MostRequestedDocument string            `json:"most_requested_document,omitempty"`
	AvgProcessingDays     float64           `json:"avg_processing_days"`
}

// DashboardSummary aggregates registrar-wide counters for the admin view.
type DashboardSummary struct {
	ByStatus       []StatusCount    `json:"by_status"`
	TopDocuments   []DocumentDemand `json:"top_documents"`
	OverdueCount   int              `json:"overdue_count"`
	TotalRequests  int              `json:"total_requests"`
	ActiveStudents int              `json:"active_students"`
}
