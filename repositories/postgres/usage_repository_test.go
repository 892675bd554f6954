package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/contentpilot/engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockRepo(t *testing.T) (*UsageRepository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := &DB{DB: mockDB, logger: zap.NewNop()}
	return &UsageRepository{db: db, logger: zap.NewNop()}, mock
}

func TestUsageRepository_Insert(t *testing.T) {
	repo, mock := newMockRepo(t)

	record := models.NewUsageRecord("openai", models.ContentText, 0.0013, 1300, true, 900*time.Millisecond)

	mock.ExpectExec(`INSERT INTO usage_records`).
		WithArgs(
			record.ID,
			"openai",
			"text",
			int64(900),
			0.0013,
			true,
			1300,
			record.Timestamp,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Insert(context.Background(), record)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepository_Insert_Error(t *testing.T) {
	repo, mock := newMockRepo(t)

	record := models.NewUsageRecord("stability", models.ContentImage, 0.02, 1000, false, 2*time.Second)

	mock.ExpectExec(`INSERT INTO usage_records`).
		WillReturnError(assert.AnError)

	err := repo.Insert(context.Background(), record)

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepository_AggregatesSince(t *testing.T) {
	repo, mock := newMockRepo(t)

	since := time.Now().Add(-24 * time.Hour)
	rows := sqlmock.NewRows([]string{"provider", "content_type", "requests", "successes", "total_response_time", "total_cost"}).
		AddRow("anthropic", "text", int64(40), int64(38), int64(52000), 0.84).
		AddRow("openai", "text", int64(100), int64(97), int64(91000), 1.25)

	mock.ExpectQuery(`SELECT(.|\s)+FROM usage_records`).
		WithArgs(since).
		WillReturnRows(rows)

	aggs, err := repo.AggregatesSince(context.Background(), since)

	require.NoError(t, err)
	require.Len(t, aggs, 2)

	assert.Equal(t, "anthropic", aggs[0].Provider)
	assert.Equal(t, models.ContentText, aggs[0].ContentType)
	assert.Equal(t, int64(40), aggs[0].Requests)
	assert.Equal(t, int64(38), aggs[0].Successes)
	assert.Equal(t, 52*time.Second, aggs[0].TotalResponseTime)
	assert.InDelta(t, 0.84, aggs[0].TotalCost, 1e-9)

	assert.Equal(t, "openai", aggs[1].Provider)
	assert.Equal(t, int64(100), aggs[1].Requests)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepository_AggregatesSince_QueryError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT(.|\s)+FROM usage_records`).
		WillReturnError(assert.AnError)

	_, err := repo.AggregatesSince(context.Background(), time.Now().Add(-time.Hour))

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
