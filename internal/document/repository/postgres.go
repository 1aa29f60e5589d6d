package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"collabdocs/internal/document/model"
	"collabdocs/internal/shared"
	"collabdocs/pkg/logger"
)

// NewPostgresStore wires all four entity stores over one *sql.DB.
func NewPostgresStore(db *sql.DB) *Store {
	return &Store{
		Documents: &PostgresDocuments{DB: db},
		Shares:    &PostgresShares{DB: db},
		Templates: &PostgresTemplates{DB: db},
		Profiles:  &PostgresProfiles{DB: db},
	}
}

type PostgresDocuments struct {
	DB *sql.DB
}

const documentColumns = `id, title, content, description, tags, is_favorite, owner_name, owner_email, version, deleted, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (*model.Document, error) {
	var doc model.Document
	err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.Description, pq.Array(&doc.Tags),
		&doc.IsFavorite, &doc.Owner, &doc.OwnerEmail, &doc.Version, &doc.Deleted,
		&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	return &doc, nil
}

func (r *PostgresDocuments) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	created := doc.Clone()
	created.ID = uuid.NewString()
	created.Version = 1
	created.Deleted = false

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO documents (id, title, content, description, tags, is_favorite, owner_name, owner_email, version, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, FALSE, NOW(), NOW())
		RETURNING created_at, updated_at`,
		created.ID, created.Title, created.Content, created.Description,
		pq.Array(created.Tags), created.IsFavorite, created.Owner, created.OwnerEmail)
	if err := row.Scan(&created.CreatedAt, &created.UpdatedAt); err != nil {
		logger.Sugar.Errorf("Failed to create document: %v", err)
		return nil, fmt.Errorf("create document: %w", err)
	}
	return created, nil
}

func (r *PostgresDocuments) Get(ctx context.Context, id string) (*model.Document, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get document %s: %v", id, err)
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (r *PostgresDocuments) Update(ctx context.Context, id string, patch model.DocumentPatch, expectedVersion int) (*model.Document, error) {
	doc, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Version != expectedVersion {
		return nil, shared.ErrConflict
	}
	patch.Apply(doc)
	return r.commit(ctx, doc, expectedVersion)
}

func (r *PostgresDocuments) SoftDelete(ctx context.Context, id string, expectedVersion int) (*model.Document, error) {
	doc, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Version != expectedVersion {
		return nil, shared.ErrConflict
	}
	doc.Deleted = true
	return r.commit(ctx, doc, expectedVersion)
}

func (r *PostgresDocuments) Restore(ctx context.Context, id string, expectedVersion int) (*model.Document, error) {
	doc, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Version != expectedVersion {
		return nil, shared.ErrConflict
	}
	doc.Deleted = false
	return r.commit(ctx, doc, expectedVersion)
}

// commit is the single write path. The version guard in the WHERE clause
// is the authoritative conflict check: the first writer to hit it wins,
// every other writer holding the same expectedVersion scans zero rows.
func (r *PostgresDocuments) commit(ctx context.Context, doc *model.Document, expectedVersion int) (*model.Document, error) {
	row := r.DB.QueryRowContext(ctx, `
		UPDATE documents
		SET title = $1, content = $2, description = $3, tags = $4, is_favorite = $5, deleted = $6,
			version = version + 1, updated_at = NOW()
		WHERE id = $7 AND version = $8
		RETURNING version, updated_at`,
		doc.Title, doc.Content, doc.Description, pq.Array(doc.Tags), doc.IsFavorite, doc.Deleted,
		doc.ID, expectedVersion)
	err := row.Scan(&doc.Version, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Either a concurrent writer moved the version or the row was
		// purged between the read and the write.
		if _, gerr := r.Get(ctx, doc.ID); gerr != nil {
			return nil, gerr
		}
		return nil, shared.ErrConflict
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to write document %s: %v", doc.ID, err)
		return nil, fmt.Errorf("write document: %w", err)
	}
	return doc, nil
}

func (r *PostgresDocuments) Purge(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		logger.Sugar.Errorf("Failed to purge document %s: %v", id, err)
		return fmt.Errorf("purge document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PostgresDocuments) List(ctx context.Context, ownerFilter string) ([]*model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents ORDER BY updated_at DESC`
	args := []any{}
	if ownerFilter != "" {
		query = `SELECT ` + documentColumns + ` FROM documents WHERE owner_name = $1 ORDER BY updated_at DESC`
		args = append(args, ownerFilter)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Sugar.Errorf("Failed to list documents: %v", err)
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

type PostgresShares struct {
	DB *sql.DB
}

const shareColumns = `id, document_id, shared_with, shared_with_email, permission, shared_by, shared_at`

func scanShare(row interface{ Scan(...any) error }) (*model.Share, error) {
	var s model.Share
	err := row.Scan(&s.ID, &s.DocumentID, &s.SharedWith, &s.SharedWithEmail, &s.Permission, &s.SharedBy, &s.SharedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create upserts on (document_id, shared_with): re-inviting the same user
// updates the grant level instead of stacking duplicate shares.
func (r *PostgresShares) Create(ctx context.Context, share *model.Share) (*model.Share, error) {
	created := *share
	created.ID = uuid.NewString()

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO shares (id, document_id, shared_with, shared_with_email, permission, shared_by, shared_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (document_id, shared_with)
		DO UPDATE SET permission = EXCLUDED.permission, shared_by = EXCLUDED.shared_by
		RETURNING id, shared_at`,
		created.ID, created.DocumentID, created.SharedWith, created.SharedWithEmail,
		created.Permission, created.SharedBy)
	if err := row.Scan(&created.ID, &created.SharedAt); err != nil {
		logger.Sugar.Errorf("Failed to create share on doc %s: %v", share.DocumentID, err)
		return nil, fmt.Errorf("create share: %w", err)
	}
	return &created, nil
}

func (r *PostgresShares) Get(ctx context.Context, id string) (*model.Share, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+shareColumns+` FROM shares WHERE id = $1`, id)
	s, err := scanShare(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get share %s: %v", id, err)
		return nil, fmt.Errorf("get share: %w", err)
	}
	return s, nil
}

func (r *PostgresShares) UpdatePermission(ctx context.Context, id string, permission model.Permission) (*model.Share, error) {
	row := r.DB.QueryRowContext(ctx, `
		UPDATE shares SET permission = $1 WHERE id = $2
		RETURNING `+shareColumns, permission, id)
	s, err := scanShare(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to update share %s: %v", id, err)
		return nil, fmt.Errorf("update share: %w", err)
	}
	return s, nil
}

func (r *PostgresShares) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM shares WHERE id = $1`, id)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete share %s: %v", id, err)
		return fmt.Errorf("delete share: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PostgresShares) ListByDocument(ctx context.Context, documentID string) ([]*model.Share, error) {
	return r.listWhere(ctx, `document_id = $1`, documentID)
}

func (r *PostgresShares) ListForGrantee(ctx context.Context, username string) ([]*model.Share, error) {
	return r.listWhere(ctx, `shared_with = $1`, username)
}

func (r *PostgresShares) listWhere(ctx context.Context, cond string, arg any) ([]*model.Share, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+shareColumns+` FROM shares WHERE `+cond+` ORDER BY shared_at ASC`, arg)
	if err != nil {
		logger.Sugar.Errorf("Failed to list shares: %v", err)
		return nil, fmt.Errorf("list shares: %w", err)
	}
	defer rows.Close()

	var out []*model.Share
	for rows.Next() {
		s, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresShares) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM shares WHERE document_id = $1`, documentID); err != nil {
		logger.Sugar.Errorf("Failed to delete shares for doc %s: %v", documentID, err)
		return fmt.Errorf("delete shares: %w", err)
	}
	return nil
}

type PostgresTemplates struct {
	DB *sql.DB
}

const templateColumns = `id, name, description, content, category, is_public, owner_name, created_at, updated_at`

func scanTemplate(row interface{ Scan(...any) error }) (*model.Template, error) {
	var t model.Template
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Content, &t.Category, &t.IsPublic,
		&t.Owner, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PostgresTemplates) Create(ctx context.Context, tpl *model.Template) (*model.Template, error) {
	created := *tpl
	created.ID = uuid.NewString()

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO templates (id, name, description, content, category, is_public, owner_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at`,
		created.ID, created.Name, created.Description, created.Content, created.Category,
		created.IsPublic, created.Owner)
	if err := row.Scan(&created.CreatedAt, &created.UpdatedAt); err != nil {
		logger.Sugar.Errorf("Failed to create template: %v", err)
		return nil, fmt.Errorf("create template: %w", err)
	}
	return &created, nil
}

func (r *PostgresTemplates) Get(ctx context.Context, id string) (*model.Template, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = $1`, id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get template %s: %v", id, err)
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (r *PostgresTemplates) ListVisible(ctx context.Context, owner string) ([]*model.Template, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE is_public OR owner_name = $1 ORDER BY name ASC`, owner)
	if err != nil {
		logger.Sugar.Errorf("Failed to list templates: %v", err)
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []*model.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type PostgresProfiles struct {
	DB *sql.DB
}

const profileColumns = `id, email, username, avatar_url, created_at`

func scanProfile(row interface{ Scan(...any) error }) (*model.UserProfile, error) {
	var p model.UserProfile
	err := row.Scan(&p.ID, &p.Email, &p.Username, &p.AvatarURL, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresProfiles) GetByEmail(ctx context.Context, email string) (*model.UserProfile, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE email = $1`, email)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get profile by email %s: %v", email, err)
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (r *PostgresProfiles) GetByUsername(ctx context.Context, username string) (*model.UserProfile, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE username = $1`, username)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get profile %s: %v", username, err)
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (r *PostgresProfiles) Ensure(ctx context.Context, id model.Identity) (*model.UserProfile, error) {
	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO user_profiles (id, email, username, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (username) DO UPDATE SET email = EXCLUDED.email
		RETURNING `+profileColumns,
		uuid.NewString(), id.Email, id.Username)
	p, err := scanProfile(row)
	if err != nil {
		logger.Sugar.Errorf("Failed to ensure profile %s: %v", id.Username, err)
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	return p, nil
}
