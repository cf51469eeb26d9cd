package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenantkids/checkin-api/internal/models"
)

func newGuardianMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestGuardianRepositoryListForChild(t *testing.T) {
	db, mock, cleanup := newGuardianMock(t)
	defer cleanup()
	repo := NewGuardianRepository(db)

	now := time.Now().UTC()
	expiry := now.Add(30 * 24 * time.Hour)
	rows := sqlmock.NewRows([]string{"id", "parent_code", "full_name", "email", "phone", "relationship", "is_primary", "active_until", "user_id", "created_at", "updated_at"}).
		AddRow("g-1", "RS073", "Primary Parent", "p@example.com", "0800", "mother", true, nil, "u-1", now, now).
		AddRow("g-2", "SEC_9f2c", "Aunt", "a@example.com", "0801", "aunt", false, expiry, nil, now, now)

	mock.ExpectQuery("SELECT (.+) FROM guardians g").
		WithArgs("child-1").
		WillReturnRows(rows)

	guardians, err := repo.ListForChild(context.Background(), "child-1")
	require.NoError(t, err)
	require.Len(t, guardians, 2)
	assert.True(t, guardians[0].IsPrimary)
	assert.Nil(t, guardians[0].ActiveUntil)
	assert.False(t, guardians[1].IsPrimary)
	require.NotNil(t, guardians[1].ActiveUntil)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuardianRepositoryExistsByContact(t *testing.T) {
	db, mock, cleanup := newGuardianMock(t)
	defer cleanup()
	repo := NewGuardianRepository(db)

	mock.ExpectQuery("SELECT 1 FROM guardians").
		WithArgs("dup@example.com", "0800").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsByContact(context.Background(), "dup@example.com", "0800")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuardianRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newGuardianMock(t)
	defer cleanup()
	repo := NewGuardianRepository(db)

	mock.ExpectExec("INSERT INTO guardians").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	expiry := time.Now().UTC().Add(90 * 24 * time.Hour)
	err := repo.Create(context.Background(), &models.Guardian{
		ParentCode:   "SEC_9f2c",
		FullName:     "Aunt",
		Email:        "a@example.com",
		Phone:        "0801",
		Relationship: "aunt",
		ActiveUntil:  &expiry,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
