package leads

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepositoryCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	createdAt := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO leads").
		WithArgs(pgxmock.AnyArg(), "Asha", "asha@example.com", "", "", SourceWidget, "visitor-1").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	repo := NewPostgresRepository(mock)
	lead, err := repo.Create(context.Background(), &CreateLeadRequest{
		Name:      " Asha ",
		Email:     "Asha@Example.com",
		Source:    SourceWidget,
		VisitorID: "visitor-1",
	})
	require.NoError(t, err)
	assert.Equal(t, createdAt, lead.CreatedAt)
	assert.NotEmpty(t, lead.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryCreateRejectsInvalid(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewPostgresRepository(mock).Create(context.Background(), &CreateLeadRequest{Name: "Asha"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryCreateWrapsStorageErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO leads").WillReturnError(errors.New("connection refused"))

	_, err = NewPostgresRepository(mock).Create(context.Background(), &CreateLeadRequest{Name: "Asha", Email: "asha@example.com"})
	assert.ErrorIs(t, err, ErrStorage)
}

func TestPostgresRepositoryGetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	createdAt := time.Now().UTC()
	columns := []string{"id", "name", "email", "phone", "message", "source", "visitor_id", "created_at"}
	mock.ExpectQuery("SELECT id, name, email").
		WithArgs(id.String()).
		WillReturnRows(pgxmock.NewRows(columns).AddRow(id, "Asha", "asha@example.com", "", "hi", SourceWebForm, "", createdAt))
	mock.ExpectQuery("SELECT id, name, email").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	repo := NewPostgresRepository(mock)
	lead, err := repo.GetByID(context.Background(), id.String())
	require.NoError(t, err)
	assert.Equal(t, id.String(), lead.ID)
	assert.Equal(t, "hi", lead.Message)

	_, err = repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrLeadNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryListRecent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	columns := []string{"id", "name", "email", "phone", "message", "source", "visitor_id", "created_at"}
	now := time.Now().UTC()
	mock.ExpectQuery("ORDER BY created_at DESC").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow(uuid.New(), "Ben", "ben@example.com", "", "", SourceWidget, "v-2", now).
			AddRow(uuid.New(), "Ana", "ana@example.com", "", "", SourceWidget, "v-1", now.Add(-time.Hour)))

	leads, err := NewPostgresRepository(mock).ListRecent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, "Ben", leads[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}
