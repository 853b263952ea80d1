package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askmemo-backend/internal/models"
)

func TestTableIdentifier(t *testing.T) {
	ident, err := tableIdentifier("qa_records")
	require.NoError(t, err)
	assert.Equal(t, `"qa_records"`, ident.Sanitize())

	ident, err = tableIdentifier("memo.qa_records")
	require.NoError(t, err)
	assert.Equal(t, `"memo"."qa_records"`, ident.Sanitize())

	for _, bad := range []string{"", "1table", "qa_records; DROP TABLE x", "a.b.c", `qa"records`} {
		_, err := tableIdentifier(bad)
		assert.Error(t, err, bad)
	}
}

func TestRecordRepo_CreateRecord(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rec := models.Record{
		Title:  "What is Go?",
		Answer: "A language.",
		Date:   time.Date(2026, 3, 1, 14, 30, 5, 0, time.FixedZone("JST", 9*60*60)),
		User:   "Alice",
		Rating: models.RatingGood,
	}
	createdAt := time.Date(2026, 3, 1, 5, 30, 6, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "qa_records" (id, title, answer, recorded_at, user_name, rating)`)).
		WithArgs(pgxmock.AnyArg(), rec.Title, rec.Answer, rec.Date, rec.User, "Good").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	saved, err := NewRecordRepo(mock).CreateRecord(context.Background(), "qa_records", rec)
	require.NoError(t, err)
	_, err = uuid.Parse(saved.ID)
	assert.NoError(t, err)
	assert.Equal(t, createdAt, saved.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepo_CreateRecordFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO").WillReturnError(errors.New("connection reset"))

	_, err = NewRecordRepo(mock).CreateRecord(context.Background(), "qa_records", models.Record{Rating: models.RatingBad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepo_CreateRecordRejectsBadTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewRecordRepo(mock).CreateRecord(context.Background(), "x; DROP TABLE y", models.Record{})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepo_VerifyDatabase(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	query := regexp.QuoteMeta("SELECT to_regclass($1) IS NOT NULL")
	mock.ExpectQuery(query).WithArgs("qa_records").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(query).WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	repo := NewRecordRepo(mock)
	assert.NoError(t, repo.VerifyDatabase(context.Background(), "qa_records"))

	err = repo.VerifyDatabase(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
	assert.NoError(t, mock.ExpectationsWereMet())
}
