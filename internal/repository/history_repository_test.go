package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryListByRequestOrdersNewestFirst(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHistoryRepository(db)

	now := time.Now()
	pending := "PENDING"
	rows := sqlmock.NewRows([]string{"id", "request_id", "from_status", "to_status", "changed_by", "remarks", "changed_at", "changed_by_name"}).
		AddRow("h-2", "req-1", pending, "APPROVED", "staff-1", "ok", now, "Mr. Reyes").
		AddRow("h-1", "req-1", nil, "PENDING", "", "", now.Add(-time.Hour), "System")
	mock.ExpectQuery(`ORDER BY h\.changed_at DESC, h\.seq ASC`).WithArgs("req-1").WillReturnRows(rows)

	entries, err := repo.ListByRequest(context.Background(), "req-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "h-2", entries[0].ID)
	require.NotNil(t, entries[0].FromStatus)
	assert.Equal(t, "PENDING", *entries[0].FromStatus)
	assert.Nil(t, entries[1].FromStatus)
	assert.Equal(t, "System", entries[1].ChangedByName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryCountByRequest(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHistoryRepository(db)

	mock.ExpectQuery("SELECT COUNT").WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountByRequest(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
