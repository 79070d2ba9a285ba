package results

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recist-derivation-server/internal/domain"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectPing()
	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	return store, mock
}

func TestNewPostgresStoreRequiresConnection(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}

func TestPostgresStore_Save(t *testing.T) {
	store, mock := newMockStore(t)

	result := testRunResult(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO run_results")).
		WithArgs(
			result.Run.ID,
			result.Run.CreatedAt,
			result.Run.Subjects,
			result.Run.Derived,
			0,
			result.Run.RejectedRows,
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newMockStore(t)

	result := testRunResult(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	payload := `{"run":{"id":"` + result.Run.ID.String() + `","created_at":"2024-03-01T12:00:00Z","config":{"recist_version":"1.1","baseline_method":"PRETREAT","nadir_exclude_baseline":false,"apply_enaworu_rule":false,"confirmation_window_days":28,"sd_min_duration_days":42},"subjects":1,"derived":1,"rejected_rows":0},"results":[],"bors":[],"metrics":{"overall":{"evaluable":1,"responders":1,"disease_control":1,"not_evaluable":0,"orr":1,"dcr":1}}}`

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM run_results WHERE run_id = $1")).
		WithArgs(result.Run.ID).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow([]byte(payload)))

	got, err := store.Get(context.Background(), result.Run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, result.Run.ID, got.Run.ID)
	assert.Equal(t, domain.RECIST11, got.Run.Config.RECISTVersion)
	assert.Equal(t, 1, got.Run.Derived)
	assert.InDelta(t, 1.0, got.Metrics.Overall.ORR, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMissingReturnsNil(t *testing.T) {
	store, mock := newMockStore(t)

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM run_results WHERE run_id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	got, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_List(t *testing.T) {
	store, mock := newMockStore(t)

	newer := uuid.New()
	older := uuid.New()
	now := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"run_id", "created_at", "subjects", "derived", "error_count", "rejected_rows"}).
		AddRow(newer, now, 10, 9, 1, 3).
		AddRow(older, now.AddDate(0, 0, -1), 5, 5, 0, 0)

	mock.ExpectQuery(regexp.QuoteMeta("FROM run_results")).
		WithArgs(10, 0).
		WillReturnRows(rows)

	runs, err := store.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, newer, runs[0].RunID)
	assert.Equal(t, 10, runs[0].Subjects)
	assert.Equal(t, 9, runs[0].Derived)
	assert.Equal(t, 1, runs[0].ErrorCount)
	assert.Equal(t, 3, runs[0].RejectedRows)
	assert.Equal(t, older, runs[1].RunID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Count(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM run_results")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete(t *testing.T) {
	store, mock := newMockStore(t)

	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM run_results WHERE run_id = $1")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Delete(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}
