package models

import "time"

// RequestComment is a message on a request's discussion thread. Internal
// comments are staff-only working notes hidden from the student.
type RequestComment struct {
	ID        string    `db:"id" json:"id"`
	RequestID string    `db:"request_id" json:"request_id"`
	AuthorID  string    `db:"author_id" json:"author_id"`
	Body      string    `db:"body" json:"body"`
	Internal  bool      `db:"internal" json:"internal"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CommentDetail renders a comment with author display fields.
type CommentDetail struct {
	RequestComment
	AuthorName string   `db:"author_name" json:"author_name"`
	AuthorRole UserRole `db:"author_role" json:"author_role"`
}

// CreateCommentInput is the payload for posting a comment. The internal flag
// is honored for staff authors only.
type CreateCommentInput struct {
	Body     string `json:"body" validate:"required"`
	Internal bool   `json:"internal"`
}
