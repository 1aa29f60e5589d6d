package model

import "time"

type Permission string

const (
	PermissionRead  Permission = "READ"
	PermissionWrite Permission = "WRITE"
)

// Valid reports whether p is one of the two known grant levels.
func (p Permission) Valid() bool {
	return p == PermissionRead || p == PermissionWrite
}

// Identity is the authenticated (username, email) pair produced by the
// auth middleware. The core trusts it without re-verification.
type Identity struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Document is the primary record type. Version starts at 1 and increases
// by exactly 1 per accepted write; Deleted is a soft-delete tombstone so
// trashed documents can be restored.
type Document struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags"`
	IsFavorite  bool      `json:"isFavorite"`
	Owner       string    `json:"owner"`
	OwnerEmail  string    `json:"ownerEmail"`
	Version     int       `json:"version"`
	Deleted     bool      `json:"deleted"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Clone returns a deep copy, so stored records never alias caller slices.
func (d *Document) Clone() *Document {
	cp := *d
	if d.Tags != nil {
		cp.Tags = append([]string(nil), d.Tags...)
	}
	return &cp
}

// DocumentPatch is a partial update: nil fields keep their prior value.
type DocumentPatch struct {
	Title       *string   `json:"title,omitempty"`
	Content     *string   `json:"content,omitempty"`
	Description *string   `json:"description,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	IsFavorite  *bool     `json:"isFavorite,omitempty"`
}

// TouchesOwnerOnly reports whether the patch mutates fields that stay
// owner-only even under a WRITE share (tags, favorite flag).
func (p DocumentPatch) TouchesOwnerOnly() bool {
	return p.Tags != nil || p.IsFavorite != nil
}

// Apply overwrites the non-nil patch fields on doc.
func (p DocumentPatch) Apply(doc *Document) {
	if p.Title != nil {
		doc.Title = *p.Title
	}
	if p.Content != nil {
		doc.Content = *p.Content
	}
	if p.Description != nil {
		doc.Description = *p.Description
	}
	if p.Tags != nil {
		doc.Tags = append([]string(nil), *p.Tags...)
	}
	if p.IsFavorite != nil {
		doc.IsFavorite = *p.IsFavorite
	}
}

// Share grants SharedWith (a username, resolved from the invitee's email
// at creation time) visibility and, for WRITE, mutation rights on one
// document. Deleting a share revokes access on the next check.
type Share struct {
	ID              string     `json:"id"`
	DocumentID      string     `json:"documentId"`
	SharedWith      string     `json:"sharedWith"`
	SharedWithEmail string     `json:"sharedWithEmail"`
	Permission      Permission `json:"permission"`
	SharedBy        string     `json:"sharedBy"`
	SharedAt        time.Time  `json:"sharedAt"`
}

// Template seeds new documents. Public templates are readable by every
// identity; private ones only by their owner.
type Template struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Content     string    `json:"content"`
	Category    string    `json:"category,omitempty"`
	IsPublic    bool      `json:"isPublic"`
	Owner       string    `json:"owner"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// UserProfile is read-mostly identity metadata.
type UserProfile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateDocRequest struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type UpdateDocRequest struct {
	ExpectedVersion int           `json:"expected_version"`
	Patch           DocumentPatch `json:"patch"`
}

type CreateShareRequest struct {
	DocumentID string     `json:"document_id"`
	Email      string     `json:"email"`
	Permission Permission `json:"permission"`
}

type UpdateShareRequest struct {
	Permission Permission `json:"permission"`
}

type CreateTemplateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Category    string `json:"category"`
	IsPublic    bool   `json:"is_public"`
}

type FromTemplateRequest struct {
	TemplateID string `json:"template_id"`
	Title      string `json:"title"`
}

// DocumentListItem is the list-view projection returned by listDocuments.
type DocumentListItem struct {
	Document
	IsOwner bool `json:"is_owner"`
	Shared  bool `json:"shared"`
}
