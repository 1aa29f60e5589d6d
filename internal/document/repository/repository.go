// Package repository is the versioned record store: typed records keyed by
// id, optimistic-concurrency writes and soft-delete tombstones. Two
// implementations exist, Postgres for the real service and an in-memory
// one for tests and local runs.
package repository

import (
	"context"

	"collabdocs/internal/document/model"
)

// DocumentStore persists documents. Every accepted write bumps the version
// by exactly 1; a write carrying a stale expectedVersion fails with
// shared.ErrConflict and leaves the record untouched. Purged ids are gone
// for good and report shared.ErrNotFound.
type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)
	Get(ctx context.Context, id string) (*model.Document, error)
	Update(ctx context.Context, id string, patch model.DocumentPatch, expectedVersion int) (*model.Document, error)
	SoftDelete(ctx context.Context, id string, expectedVersion int) (*model.Document, error)
	Restore(ctx context.Context, id string, expectedVersion int) (*model.Document, error)
	Purge(ctx context.Context, id string) error
	// List returns all non-purged documents, tombstoned ones included so
	// trash views can show them. ownerFilter narrows to one owner when
	// non-empty; visibility filtering is the caller's job.
	List(ctx context.Context, ownerFilter string) ([]*model.Document, error)
}

// ShareStore persists grants. Shares are unversioned; deleting one revokes
// access on the next check.
type ShareStore interface {
	Create(ctx context.Context, share *model.Share) (*model.Share, error)
	Get(ctx context.Context, id string) (*model.Share, error)
	UpdatePermission(ctx context.Context, id string, permission model.Permission) (*model.Share, error)
	Delete(ctx context.Context, id string) error
	ListByDocument(ctx context.Context, documentID string) ([]*model.Share, error)
	ListForGrantee(ctx context.Context, username string) ([]*model.Share, error)
	// DeleteByDocument removes every share of a document, the cleanup half
	// of the purge saga.
	DeleteByDocument(ctx context.Context, documentID string) error
}

// TemplateStore persists document templates.
type TemplateStore interface {
	Create(ctx context.Context, tpl *model.Template) (*model.Template, error)
	Get(ctx context.Context, id string) (*model.Template, error)
	// ListVisible returns public templates plus those owned by owner.
	ListVisible(ctx context.Context, owner string) ([]*model.Template, error)
}

// ProfileStore holds read-mostly identity metadata. GetByEmail resolves a
// share invitee's email to a stable username.
type ProfileStore interface {
	GetByEmail(ctx context.Context, email string) (*model.UserProfile, error)
	GetByUsername(ctx context.Context, username string) (*model.UserProfile, error)
	// Ensure upserts a profile for an authenticated identity and returns it.
	Ensure(ctx context.Context, id model.Identity) (*model.UserProfile, error)
}

// Store bundles the per-entity stores an API facade needs.
type Store struct {
	Documents DocumentStore
	Shares    ShareStore
	Templates TemplateStore
	Profiles  ProfileStore
}
