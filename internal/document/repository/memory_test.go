package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabdocs/internal/document/model"
	"collabdocs/internal/shared"
)

func newDoc(t *testing.T, docs DocumentStore, title, content string) *model.Document {
	t.Helper()
	doc, err := docs.Create(context.Background(), &model.Document{
		Title:      title,
		Content:    content,
		Owner:      "u1",
		OwnerEmail: "u1@x.com",
	})
	require.NoError(t, err)
	return doc
}

func TestMemoryDocumentsCreate(t *testing.T) {
	store := NewMemoryStore()
	doc := newDoc(t, store.Documents, "T", "c")

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, 1, doc.Version)
	assert.False(t, doc.Deleted)
	assert.Equal(t, "u1", doc.Owner)
	assert.NotZero(t, doc.CreatedAt)
}

func TestMemoryDocumentsGetIdempotent(t *testing.T) {
	store := NewMemoryStore()
	doc := newDoc(t, store.Documents, "T", "c")

	first, err := store.Documents.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	second, err := store.Documents.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = store.Documents.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

// The concrete scenario: partial update keeps unspecified fields, a stale
// writer conflicts and leaves the record untouched.
func TestMemoryDocumentsStaleUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	doc := newDoc(t, store.Documents, "T", "c")

	title2 := "T2"
	updated, err := store.Documents.Update(ctx, doc.ID, model.DocumentPatch{Title: &title2}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "T2", updated.Title)
	assert.Equal(t, "c", updated.Content)

	title3 := "T3"
	_, err = store.Documents.Update(ctx, doc.ID, model.DocumentPatch{Title: &title3}, 1)
	assert.ErrorIs(t, err, shared.ErrConflict)

	current, err := store.Documents.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, current.Version)
	assert.Equal(t, "T2", current.Title)
}

func TestMemoryDocumentsDeleteRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	doc := newDoc(t, store.Documents, "T", "c")

	deleted, err := store.Documents.SoftDelete(ctx, doc.ID, 1)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)
	assert.Equal(t, 2, deleted.Version)

	restored, err := store.Documents.Restore(ctx, doc.ID, 2)
	require.NoError(t, err)
	assert.False(t, restored.Deleted)
	assert.Equal(t, 3, restored.Version)

	// Everything but version and updatedAt matches the pre-delete state.
	assert.Equal(t, doc.Title, restored.Title)
	assert.Equal(t, doc.Content, restored.Content)
	assert.Equal(t, doc.Tags, restored.Tags)
	assert.Equal(t, doc.Owner, restored.Owner)
	assert.Equal(t, doc.CreatedAt, restored.CreatedAt)
}

func TestMemoryDocumentsListIncludesTombstones(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	doc := newDoc(t, store.Documents, "T", "c")

	_, err := store.Documents.SoftDelete(ctx, doc.ID, 1)
	require.NoError(t, err)

	docs, err := store.Documents.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.True(t, docs[0].Deleted)
}

func TestMemoryDocumentsPurge(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	doc := newDoc(t, store.Documents, "T", "c")

	require.NoError(t, store.Documents.Purge(ctx, doc.ID))

	_, err := store.Documents.Get(ctx, doc.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.ErrorIs(t, store.Documents.Purge(ctx, doc.ID), shared.ErrNotFound)

	// A write against a purged id reports NotFound, not Conflict.
	title := "T2"
	_, err = store.Documents.Update(ctx, doc.ID, model.DocumentPatch{Title: &title}, 2)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestMemorySharesUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first, err := store.Shares.Create(ctx, &model.Share{
		DocumentID: "d1", SharedWith: "u2", SharedWithEmail: "u2@x.com",
		Permission: model.PermissionRead, SharedBy: "u1",
	})
	require.NoError(t, err)

	// Re-inviting the same grantee updates the grant instead of duplicating.
	second, err := store.Shares.Create(ctx, &model.Share{
		DocumentID: "d1", SharedWith: "u2", SharedWithEmail: "u2@x.com",
		Permission: model.PermissionWrite, SharedBy: "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, model.PermissionWrite, second.Permission)

	shares, err := store.Shares.ListByDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Len(t, shares, 1)
}

func TestMemorySharesDeleteByDocument(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Shares.Create(ctx, &model.Share{DocumentID: "d1", SharedWith: "u2", Permission: model.PermissionRead, SharedBy: "u1"})
	require.NoError(t, err)
	_, err = store.Shares.Create(ctx, &model.Share{DocumentID: "d2", SharedWith: "u2", Permission: model.PermissionRead, SharedBy: "u1"})
	require.NoError(t, err)

	require.NoError(t, store.Shares.DeleteByDocument(ctx, "d1"))

	grants, err := store.Shares.ListForGrantee(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, "d2", grants[0].DocumentID)
}

func TestMemoryTemplatesVisibility(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Templates.Create(ctx, &model.Template{Name: "Public", Content: "x", IsPublic: true, Owner: "u1"})
	require.NoError(t, err)
	_, err = store.Templates.Create(ctx, &model.Template{Name: "Private", Content: "y", Owner: "u1"})
	require.NoError(t, err)

	mine, err := store.Templates.ListVisible(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	theirs, err := store.Templates.ListVisible(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, "Public", theirs[0].Name)
}

func TestMemoryProfilesEnsure(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	p1, err := store.Profiles.Ensure(ctx, model.Identity{Username: "u1", Email: "u1@x.com"})
	require.NoError(t, err)
	p2, err := store.Profiles.Ensure(ctx, model.Identity{Username: "u1", Email: "u1@new.com"})
	require.NoError(t, err)
	assert.Equal(t, p1.ID, p2.ID)
	assert.Equal(t, "u1@new.com", p2.Email)

	byEmail, err := store.Profiles.GetByEmail(ctx, "u1@new.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.Username)
}
