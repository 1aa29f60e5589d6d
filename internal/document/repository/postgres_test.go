package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabdocs/internal/document/model"
	"collabdocs/internal/shared"
)

var docCols = []string{"id", "title", "content", "description", "tags", "is_favorite",
	"owner_name", "owner_email", "version", "deleted", "created_at", "updated_at"}

func docRow(id string, version int, deleted bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(docCols).
		AddRow(id, "T", "c", "", "{}", false, "u1", "u1@x.com", version, deleted, now, now)
}

func TestPostgresDocumentsCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("INSERT INTO documents").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	docs := &PostgresDocuments{DB: db}
	doc, err := docs.Create(context.Background(), &model.Document{
		Title: "T", Content: "c", Owner: "u1", OwnerEmail: "u1@x.com",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, 1, doc.Version)
	assert.False(t, doc.Deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDocumentsGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(docCols))

	docs := &PostgresDocuments{DB: db}
	_, err = docs.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDocumentsUpdateStaleVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// Stored version is already 2: the stale writer fails before any
	// UPDATE is attempted.
	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id").
		WithArgs("d1").
		WillReturnRows(docRow("d1", 2, false))

	docs := &PostgresDocuments{DB: db}
	title := "T3"
	_, err = docs.Update(context.Background(), "d1", model.DocumentPatch{Title: &title}, 1)
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDocumentsUpdateLostRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// The read sees version 1, but the guarded UPDATE scans zero rows
	// because a concurrent writer committed in between. The existence
	// probe finds the row, so the outcome is a conflict, not NotFound.
	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id").
		WithArgs("d1").
		WillReturnRows(docRow("d1", 1, false))
	mock.ExpectQuery("UPDATE documents").
		WillReturnRows(sqlmock.NewRows([]string{"version", "updated_at"}))
	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id").
		WithArgs("d1").
		WillReturnRows(docRow("d1", 2, false))

	docs := &PostgresDocuments{DB: db}
	title := "T2"
	_, err = docs.Update(context.Background(), "d1", model.DocumentPatch{Title: &title}, 1)
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDocumentsUpdateCommit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id").
		WithArgs("d1").
		WillReturnRows(docRow("d1", 1, false))
	mock.ExpectQuery("UPDATE documents").
		WillReturnRows(sqlmock.NewRows([]string{"version", "updated_at"}).AddRow(2, now))

	docs := &PostgresDocuments{DB: db}
	title := "T2"
	updated, err := docs.Update(context.Background(), "d1", model.DocumentPatch{Title: &title}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "T2", updated.Title)
	assert.Equal(t, "c", updated.Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDocumentsPurgeNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM documents").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	docs := &PostgresDocuments{DB: db}
	assert.ErrorIs(t, docs.Purge(context.Background(), "missing"), shared.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSharesCreateUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("INSERT INTO shares").
		WillReturnRows(sqlmock.NewRows([]string{"id", "shared_at"}).AddRow("s1", now))

	shares := &PostgresShares{DB: db}
	share, err := shares.Create(context.Background(), &model.Share{
		DocumentID: "d1", SharedWith: "u2", SharedWithEmail: "u2@x.com",
		Permission: model.PermissionWrite, SharedBy: "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", share.ID)
	assert.Equal(t, model.PermissionWrite, share.Permission)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSharesListForGrantee(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "document_id", "shared_with", "shared_with_email", "permission", "shared_by", "shared_at"}).
		AddRow("s1", "d1", "u2", "u2@x.com", "READ", "u1", now).
		AddRow("s2", "d2", "u2", "u2@x.com", "WRITE", "u1", now)
	mock.ExpectQuery("SELECT (.+) FROM shares WHERE shared_with").
		WithArgs("u2").
		WillReturnRows(rows)

	shares := &PostgresShares{DB: db}
	got, err := shares.ListForGrantee(context.Background(), "u2")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.PermissionRead, got[0].Permission)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProfilesEnsure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("INSERT INTO user_profiles").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "username", "avatar_url", "created_at"}).
			AddRow("p1", "u1@x.com", "u1", "", now))

	profiles := &PostgresProfiles{DB: db}
	p, err := profiles.Ensure(context.Background(), model.Identity{Username: "u1", Email: "u1@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "u1", p.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}
