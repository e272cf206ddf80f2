package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawlcast/internal/domain/entity"
	pg "crawlcast/internal/infra/adapter/persistence/postgres"
)

func contentColumnNames() []string {
	return []string{
		"id", "source_id", "title", "url", "body", "content_hash", "published_at",
		"created_at", "status", "summary", "categories", "entities", "sentiment",
		"relevance_score", "importance_score", "key_topics",
	}
}

func contentRow(id int64, hash string) []driverValue {
	return []driverValue{
		id, int64(1), "title", "https://example.com/a", "body", hash, time.Now(),
		time.Now(), entity.ContentStatusNew, nil, []byte(`[]`), []byte(`{}`), "neutral",
		0.5, 0.5, []byte(`[]`),
	}
}

// driverValue is a tiny alias to keep contentRow's intent readable without
// importing database/sql/driver just for the type name.
type driverValue = interface{}

func TestContentRepo_Get_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, source_id")).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(contentColumnNames()))

	repo := pg.NewContentRepo(db)
	c, err := repo.Get(context.Background(), 42)

	assert.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentRepo_Get_Found(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows(contentColumnNames()).AddRow(contentRow(1, "hash-1")...)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, source_id")).
		WithArgs(int64(1)).
		WillReturnRows(rows)

	repo := pg.NewContentRepo(db)
	c, err := repo.Get(context.Background(), 1)

	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, int64(1), c.ID)
	assert.Equal(t, "hash-1", c.ContentHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentRepo_UpsertIfNew_Inserted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO contents")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	repo := pg.NewContentRepo(db)
	c := &entity.Content{SourceID: 1, Title: "t", URL: "https://example.com", ContentHash: "hash-new", Status: entity.ContentStatusNew}
	inserted, err := repo.UpsertIfNew(context.Background(), c)

	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(7), c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentRepo_UpsertIfNew_ConflictSkipped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO contents")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := pg.NewContentRepo(db)
	c := &entity.Content{SourceID: 1, Title: "t", URL: "https://example.com", ContentHash: "dup-hash", Status: entity.ContentStatusNew}
	inserted, err := repo.UpsertIfNew(context.Background(), c)

	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentRepo_ListByStatus_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, source_id")).
		WithArgs(entity.ContentStatusNew, 100).
		WillReturnError(errors.New("connection reset"))

	repo := pg.NewContentRepo(db)
	items, err := repo.ListByStatus(context.Background(), entity.ContentStatusNew, 100)

	assert.Error(t, err)
	assert.Nil(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentRepo_ExistsByHashBatch_Empty(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := pg.NewContentRepo(db)
	result, err := repo.ExistsByHashBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestContentRepo_ArchiveNotifiedBefore_ReturnsRowsAffected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	cutoff := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE contents SET status = $1")).
		WithArgs(entity.ContentStatusArchived, entity.ContentStatusNotified, cutoff, 200).
		WillReturnResult(sqlmock.NewResult(0, 3))

	repo := pg.NewContentRepo(db)
	n, err := repo.ArchiveNotifiedBefore(context.Background(), cutoff, 200)

	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentRepo_Delete_NoRowsAffected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM contents")).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := pg.NewContentRepo(db)
	err = repo.Delete(context.Background(), 5)

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
