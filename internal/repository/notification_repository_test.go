package repository

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilddocs/wilddocs-api/internal/models"
)

func TestNotificationCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(1, 1))

	n := &models.Notification{UserID: "user-1", Kind: models.NotificationStatusChange, Title: "t", Message: "m"}
	err := repo.Create(context.Background(), n)
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationMarkReadScopedToOwner(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec("UPDATE notifications SET read").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkRead(context.Background(), "n-1", "user-1"))

	mock.ExpectExec("UPDATE notifications SET read").WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.MarkRead(context.Background(), "n-1", "someone-else")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationMarkAllReadReturnsCount(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec("UPDATE notifications SET read").WillReturnResult(sqlmock.NewResult(0, 4))

	updated, err := repo.MarkAllRead(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 4, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}
