package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"collabdocs/internal/document/model"
	"collabdocs/internal/shared"
)

// NewMemoryStore returns a Store backed by process memory. Used by tests
// and for running the service without a database.
func NewMemoryStore() *Store {
	return &Store{
		Documents: &MemoryDocuments{docs: make(map[string]*model.Document)},
		Shares:    &MemoryShares{shares: make(map[string]*model.Share)},
		Templates: &MemoryTemplates{templates: make(map[string]*model.Template)},
		Profiles:  &MemoryProfiles{byUsername: make(map[string]*model.UserProfile)},
	}
}

type MemoryDocuments struct {
	mu   sync.Mutex
	docs map[string]*model.Document
}

func (m *MemoryDocuments) Create(_ context.Context, doc *model.Document) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	created := doc.Clone()
	created.ID = uuid.NewString()
	created.Version = 1
	created.Deleted = false
	created.CreatedAt = now
	created.UpdatedAt = now
	if created.Tags == nil {
		created.Tags = []string{}
	}
	m.docs[created.ID] = created
	return created.Clone(), nil
}

func (m *MemoryDocuments) Get(_ context.Context, id string) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return doc.Clone(), nil
}

func (m *MemoryDocuments) Update(_ context.Context, id string, patch model.DocumentPatch, expectedVersion int) (*model.Document, error) {
	return m.mutate(id, expectedVersion, func(doc *model.Document) {
		patch.Apply(doc)
	})
}

func (m *MemoryDocuments) SoftDelete(_ context.Context, id string, expectedVersion int) (*model.Document, error) {
	return m.mutate(id, expectedVersion, func(doc *model.Document) {
		doc.Deleted = true
	})
}

func (m *MemoryDocuments) Restore(_ context.Context, id string, expectedVersion int) (*model.Document, error) {
	return m.mutate(id, expectedVersion, func(doc *model.Document) {
		doc.Deleted = false
	})
}

// mutate performs the check-apply-bump cycle under the lock, so the first
// writer holding a matching version wins and all others see ErrConflict.
func (m *MemoryDocuments) mutate(id string, expectedVersion int, apply func(*model.Document)) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if doc.Version != expectedVersion {
		return nil, shared.ErrConflict
	}
	next := doc.Clone()
	apply(next)
	next.Version = doc.Version + 1
	next.UpdatedAt = time.Now().UTC()
	m.docs[id] = next
	return next.Clone(), nil
}

func (m *MemoryDocuments) Purge(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *MemoryDocuments) List(_ context.Context, ownerFilter string) ([]*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.Document
	for _, doc := range m.docs {
		if ownerFilter != "" && doc.Owner != ownerFilter {
			continue
		}
		out = append(out, doc.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

type MemoryShares struct {
	mu     sync.Mutex
	shares map[string]*model.Share
}

func (m *MemoryShares) Create(_ context.Context, share *model.Share) (*model.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Upsert on (document, grantee), mirroring the SQL store.
	for _, existing := range m.shares {
		if existing.DocumentID == share.DocumentID && existing.SharedWith == share.SharedWith {
			existing.Permission = share.Permission
			existing.SharedBy = share.SharedBy
			cp := *existing
			return &cp, nil
		}
	}
	created := *share
	created.ID = uuid.NewString()
	created.SharedAt = time.Now().UTC()
	m.shares[created.ID] = &created
	cp := created
	return &cp, nil
}

func (m *MemoryShares) Get(_ context.Context, id string) (*model.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.shares[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryShares) UpdatePermission(_ context.Context, id string, permission model.Permission) (*model.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.shares[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	s.Permission = permission
	cp := *s
	return &cp, nil
}

func (m *MemoryShares) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.shares[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.shares, id)
	return nil
}

func (m *MemoryShares) ListByDocument(_ context.Context, documentID string) ([]*model.Share, error) {
	return m.listMatching(func(s *model.Share) bool { return s.DocumentID == documentID })
}

func (m *MemoryShares) ListForGrantee(_ context.Context, username string) ([]*model.Share, error) {
	return m.listMatching(func(s *model.Share) bool { return s.SharedWith == username })
}

func (m *MemoryShares) listMatching(match func(*model.Share) bool) ([]*model.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.Share
	for _, s := range m.shares {
		if match(s) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SharedAt.Before(out[j].SharedAt) })
	return out, nil
}

func (m *MemoryShares) DeleteByDocument(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.shares {
		if s.DocumentID == documentID {
			delete(m.shares, id)
		}
	}
	return nil
}

type MemoryTemplates struct {
	mu        sync.Mutex
	templates map[string]*model.Template
}

func (m *MemoryTemplates) Create(_ context.Context, tpl *model.Template) (*model.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	created := *tpl
	created.ID = uuid.NewString()
	created.CreatedAt = now
	created.UpdatedAt = now
	m.templates[created.ID] = &created
	cp := created
	return &cp, nil
}

func (m *MemoryTemplates) Get(_ context.Context, id string) (*model.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.templates[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryTemplates) ListVisible(_ context.Context, owner string) ([]*model.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.Template
	for _, t := range m.templates {
		if t.IsPublic || t.Owner == owner {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type MemoryProfiles struct {
	mu         sync.Mutex
	byUsername map[string]*model.UserProfile
}

func (m *MemoryProfiles) GetByEmail(_ context.Context, email string) (*model.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.byUsername {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *MemoryProfiles) GetByUsername(_ context.Context, username string) (*model.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byUsername[username]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryProfiles) Ensure(_ context.Context, id model.Identity) (*model.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.byUsername[id.Username]; ok {
		p.Email = id.Email
		cp := *p
		return &cp, nil
	}
	p := &model.UserProfile{
		ID:        uuid.NewString(),
		Email:     id.Email,
		Username:  id.Username,
		CreatedAt: time.Now().UTC(),
	}
	m.byUsername[id.Username] = p
	cp := *p
	return &cp, nil
}
