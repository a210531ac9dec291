package store

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscraps/internal/logger"
)

func newMockSession(t *testing.T) (*Session, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db, KindProduction, logger.Global()), mock
}

// sliceConverter lets []string travel to the mock driver unchanged, the way
// pgx accepts a slice for ANY($1).
type sliceConverter struct{}

func (sliceConverter) ConvertValue(v any) (driver.Value, error) {
	if _, ok := v.([]string); ok {
		return v, nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

func TestInsertJobsSkipsExistingIDs(t *testing.T) {
	s, mock := newMockSession(t)

	mock.ExpectQuery("SELECT id FROM scraped_jobs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("indeed_known"))
	mock.ExpectBegin()
	prepared := mock.ExpectPrepare("INSERT INTO scraped_jobs")
	prepared.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	jobs := []Job{
		{ID: "indeed_known", Site: "indeed", Title: "Known"},
		{ID: "indeed_fresh", Site: "indeed", Title: "Fresh"},
	}
	n, err := s.InsertJobs(context.Background(), jobs, "data engineer")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertJobsIsIdempotent(t *testing.T) {
	s, mock := newMockSession(t)

	mock.ExpectQuery("SELECT id FROM scraped_jobs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a").AddRow("b"))

	n, err := s.InsertJobs(context.Background(), []Job{{ID: "a"}, {ID: "b"}}, "q")
	require.NoError(t, err)
	assert.Zero(t, n, "re-ingesting a known batch must insert nothing")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertJobsDeduplicatesWithinBatch(t *testing.T) {
	s, mock := newMockSession(t)

	mock.ExpectQuery("SELECT id FROM scraped_jobs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectBegin()
	prepared := mock.ExpectPrepare("INSERT INTO scraped_jobs")
	prepared.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// The same listing twice in one batch must produce one row.
	jobs := []Job{
		{ID: "indeed_x", Site: "indeed"},
		{ID: "indeed_x", Site: "indeed"},
	}
	n, err := s.InsertJobs(context.Background(), jobs, "q")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertJobsEmptyBatch(t *testing.T) {
	s, mock := newMockSession(t)

	n, err := s.InsertJobs(context.Background(), nil, "q")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClearAll(t *testing.T) {
	s, mock := newMockSession(t)

	mock.ExpectExec("DELETE FROM scraped_jobs").
		WillReturnResult(sqlmock.NewResult(0, 1234))

	n, err := s.ClearAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1234), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBeforePassesCutoff(t *testing.T) {
	s, mock := newMockSession(t)

	cutoff := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM scraped_jobs WHERE date_scraped < $1")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 17))

	n, err := s.DeleteBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(17), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteByIDsEmptyIsNoOp(t *testing.T) {
	s, mock := newMockSession(t)

	n, err := s.DeleteByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteByIDsBulkDelete(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(sliceConverter{}))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := NewWithDB(db, KindProduction, logger.Global())

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM scraped_jobs WHERE id = ANY($1)")).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.DeleteByIDs(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteByFieldRejectsUnknownColumn(t *testing.T) {
	s, mock := newMockSession(t)

	_, err := s.DeleteByField(context.Background(), "description; DROP TABLE", []string{"%x%"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidField)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteByFieldLowercasesPatterns(t *testing.T) {
	s, mock := newMockSession(t)

	query := regexp.QuoteMeta("DELETE FROM scraped_jobs WHERE LOWER(company) LIKE $1")
	mock.ExpectExec(query).WithArgs("%acme%").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(query).WithArgs("%globex%").WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := s.DeleteByField(context.Background(), "company", []string{"%Acme%", "%Globex%"})
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBySalaryPredicate(t *testing.T) {
	s, mock := newMockSession(t)

	mock.ExpectExec("DELETE FROM scraped_jobs").
		WithArgs(70000.0, 90000.0).
		WillReturnResult(sqlmock.NewResult(0, 55))

	n, err := s.DeleteBySalary(context.Background(), 70000, 90000)
	require.NoError(t, err)
	assert.Equal(t, int64(55), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountJobs(t *testing.T) {
	s, mock := newMockSession(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(321))

	n, err := s.CountJobs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(321), n)
}

func TestDuplicateRowsScansNullableColumns(t *testing.T) {
	s, mock := newMockSession(t)

	cols := []string{
		"id", "site", "title", "company", "description", "min_amount",
		"max_amount", "job_url", "is_remote", "location", "search_query", "date_posted",
	}
	mock.ExpectQuery("FROM scraped_jobs").WillReturnRows(sqlmock.NewRows(cols).
		AddRow("a", "indeed", "Engineer", "Acme", "desc", 80000.0,
			100000.0, "https://x", true, "Denver, CO", "engineer denver", "2025-06-01").
		AddRow("b", "linkedin", "Engineer", "Acme", nil, nil,
			nil, nil, nil, nil, nil, nil))

	rows, err := s.DuplicateRows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 80000.0, rows[0].MinAmount)
	assert.True(t, rows[0].IsRemote)

	// Nullable columns come back zero-valued, not as scan errors.
	assert.Equal(t, "b", rows[1].ID)
	assert.Empty(t, rows[1].Description)
	assert.Zero(t, rows[1].MinAmount)
	assert.False(t, rows[1].IsRemote)
}

func TestLogSearchRecordsRun(t *testing.T) {
	s, mock := newMockSession(t)

	mock.ExpectExec("INSERT INTO search_history").
		WithArgs(sqlmock.AnyArg(), "data engineer", sqlmock.AnyArg(), sqlmock.AnyArg(), 42).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.LogSearch(context.Background(), "data engineer",
		map[string]any{"location": "Denver, CO"}, 42)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeriveID(t *testing.T) {
	provided := Job{ID: "given", Site: "indeed", JobURL: "https://example.com/j/123"}
	assert.Equal(t, "given", provided.DeriveID())

	derived := Job{Site: "indeed", JobURL: "https://www.indeed.com/viewjob?jk=abcdef123456"}
	assert.Equal(t, "indeed_wjob?jk=abcdef123456", derived.DeriveID())

	short := Job{Site: "google", JobURL: "/j/9"}
	assert.Equal(t, "google_/j/9", short.DeriveID())

	unknown := Job{JobURL: "/j/9"}
	assert.Equal(t, "unknown_/j/9", unknown.DeriveID())
}
