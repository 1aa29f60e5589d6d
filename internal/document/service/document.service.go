// Package service is the API facade: every mutating operation runs
// access check -> store op -> notify, in that order, and fails fast with
// shared.ErrPermission before touching the store. Notification is
// best-effort; a committed write is never rolled back over it.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"collabdocs/internal/document/access"
	"collabdocs/internal/document/model"
	"collabdocs/internal/document/repository"
	"collabdocs/internal/shared"
	"collabdocs/pkg/logger"
	"collabdocs/socket"
)

// Notifier is the commit fan-out the facade publishes into.
type Notifier interface {
	Publish(e socket.Event)
}

type DocumentService struct {
	Store    *repository.Store
	Notifier Notifier
}

func NewDocumentService(store *repository.Store, notifier Notifier) *DocumentService {
	return &DocumentService{Store: store, Notifier: notifier}
}

func (s *DocumentService) notify(eventType string, actor string, doc *model.Document) {
	record, err := json.Marshal(doc)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling record %s for broadcast: %v", doc.ID, err)
		return
	}
	s.Notifier.Publish(socket.Event{
		Type:     eventType,
		RecordID: doc.ID,
		Actor:    actor,
		Version:  doc.Version,
		Record:   record,
	})
}

func (s *DocumentService) CreateDocument(ctx context.Context, id model.Identity, req model.CreateDocRequest) (*model.Document, error) {
	switch {
	case id.Username == "" || id.Email == "":
		return nil, fmt.Errorf("%w: owner identity is required", shared.ErrValidation)
	case req.Title == "":
		return nil, fmt.Errorf("%w: title is required", shared.ErrValidation)
	case req.Content == "":
		return nil, fmt.Errorf("%w: content is required", shared.ErrValidation)
	}

	if _, err := s.Store.Profiles.Ensure(ctx, id); err != nil {
		return nil, err
	}

	doc, err := s.Store.Documents.Create(ctx, &model.Document{
		Title:       req.Title,
		Content:     req.Content,
		Description: req.Description,
		Tags:        req.Tags,
		Owner:       id.Username,
		OwnerEmail:  id.Email,
	})
	if err != nil {
		return nil, err
	}
	s.notify(socket.CreateType, id.Username, doc)
	return doc, nil
}

func (s *DocumentService) GetDocument(ctx context.Context, id model.Identity, docID string) (*model.Document, error) {
	doc, err := s.Store.Documents.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	shares, err := s.Store.Shares.ListByDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !access.CanRead(id, doc, shares) {
		return nil, shared.ErrPermission
	}
	return doc, nil
}

func (s *DocumentService) UpdateDocument(ctx context.Context, id model.Identity, docID string, patch model.DocumentPatch, expectedVersion int) (*model.Document, error) {
	doc, err := s.Store.Documents.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	shares, err := s.Store.Shares.ListByDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !access.CanWrite(id, doc, shares) {
		return nil, shared.ErrPermission
	}
	// Tags and the favorite flag stay the owner's even under a WRITE share.
	if patch.TouchesOwnerOnly() && doc.Owner != id.Username {
		return nil, shared.ErrPermission
	}

	updated, err := s.Store.Documents.Update(ctx, docID, patch, expectedVersion)
	if err != nil {
		return nil, err
	}
	s.notify(socket.UpdateType, id.Username, updated)
	return updated, nil
}

func (s *DocumentService) DeleteDocument(ctx context.Context, id model.Identity, docID string, expectedVersion int) (*model.Document, error) {
	doc, err := s.Store.Documents.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !access.CanDelete(id, doc) {
		return nil, shared.ErrPermission
	}
	deleted, err := s.Store.Documents.SoftDelete(ctx, docID, expectedVersion)
	if err != nil {
		return nil, err
	}
	s.notify(socket.DeleteType, id.Username, deleted)
	return deleted, nil
}

func (s *DocumentService) RestoreDocument(ctx context.Context, id model.Identity, docID string, expectedVersion int) (*model.Document, error) {
	doc, err := s.Store.Documents.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !access.CanDelete(id, doc) {
		return nil, shared.ErrPermission
	}
	restored, err := s.Store.Documents.Restore(ctx, docID, expectedVersion)
	if err != nil {
		return nil, err
	}
	s.notify(socket.RestoreType, id.Username, restored)
	return restored, nil
}

// PurgeDocument permanently removes a trashed document, then cleans up
// its shares as a second saga step. There is no cross-record transaction:
// the document removal is the commit, share cleanup is best-effort.
func (s *DocumentService) PurgeDocument(ctx context.Context, id model.Identity, docID string) error {
	doc, err := s.Store.Documents.Get(ctx, docID)
	if err != nil {
		return err
	}
	if !access.CanDelete(id, doc) {
		return shared.ErrPermission
	}
	if !doc.Deleted {
		return fmt.Errorf("%w: only trashed documents can be purged", shared.ErrValidation)
	}
	if err := s.Store.Documents.Purge(ctx, docID); err != nil {
		return err
	}
	if err := s.Store.Shares.DeleteByDocument(ctx, docID); err != nil {
		logger.Sugar.Errorf("Share cleanup after purge of %s failed: %v", docID, err)
	}
	s.Notifier.Publish(socket.Event{Type: socket.PurgeType, RecordID: docID, Actor: id.Username, Version: doc.Version})
	return nil
}

// ListDocuments returns everything the identity may see: its own
// documents, trashed ones included, plus live documents shared with it.
func (s *DocumentService) ListDocuments(ctx context.Context, id model.Identity) ([]model.DocumentListItem, error) {
	owned, err := s.Store.Documents.List(ctx, id.Username)
	if err != nil {
		return nil, err
	}
	items := make([]model.DocumentListItem, 0, len(owned))
	for _, doc := range owned {
		items = append(items, model.DocumentListItem{Document: *doc, IsOwner: true})
	}

	grants, err := s.Store.Shares.ListForGrantee(ctx, id.Username)
	if err != nil {
		return nil, err
	}
	for _, grant := range grants {
		doc, err := s.Store.Documents.Get(ctx, grant.DocumentID)
		if err != nil {
			// Dangling grant on a purged document: skip, cleanup is async.
			continue
		}
		if !access.CanRead(id, doc, []*model.Share{grant}) {
			continue
		}
		items = append(items, model.DocumentListItem{Document: *doc, Shared: true})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].UpdatedAt.After(items[j].UpdatedAt) })
	return items, nil
}

func (s *DocumentService) CreateShare(ctx context.Context, id model.Identity, req model.CreateShareRequest) (*model.Share, error) {
	switch {
	case req.DocumentID == "" || req.Email == "":
		return nil, fmt.Errorf("%w: document id and email are required", shared.ErrValidation)
	case !req.Permission.Valid():
		return nil, fmt.Errorf("%w: permission must be READ or WRITE", shared.ErrValidation)
	}

	doc, err := s.Store.Documents.Get(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if !access.CanManageShares(id, doc) {
		return nil, shared.ErrPermission
	}

	grantee, err := s.Store.Profiles.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if grantee.Username == doc.Owner {
		return nil, fmt.Errorf("%w: cannot share a document with its owner", shared.ErrValidation)
	}

	share, err := s.Store.Shares.Create(ctx, &model.Share{
		DocumentID:      req.DocumentID,
		SharedWith:      grantee.Username,
		SharedWithEmail: grantee.Email,
		Permission:      req.Permission,
		SharedBy:        id.Username,
	})
	if err != nil {
		return nil, err
	}
	s.notify(socket.ShareType, id.Username, doc)
	return share, nil
}

func (s *DocumentService) UpdateShare(ctx context.Context, id model.Identity, shareID string, permission model.Permission) (*model.Share, error) {
	if !permission.Valid() {
		return nil, fmt.Errorf("%w: permission must be READ or WRITE", shared.ErrValidation)
	}
	share, err := s.Store.Shares.Get(ctx, shareID)
	if err != nil {
		return nil, err
	}
	doc, err := s.Store.Documents.Get(ctx, share.DocumentID)
	if err != nil {
		return nil, err
	}
	if !access.CanManageShares(id, doc) {
		return nil, shared.ErrPermission
	}

	updated, err := s.Store.Shares.UpdatePermission(ctx, shareID, permission)
	if err != nil {
		return nil, err
	}
	s.notify(socket.ShareType, id.Username, doc)
	return updated, nil
}

func (s *DocumentService) DeleteShare(ctx context.Context, id model.Identity, shareID string) error {
	share, err := s.Store.Shares.Get(ctx, shareID)
	if err != nil {
		return err
	}
	doc, err := s.Store.Documents.Get(ctx, share.DocumentID)
	if err != nil {
		return err
	}
	if !access.CanManageShares(id, doc) {
		return shared.ErrPermission
	}

	if err := s.Store.Shares.Delete(ctx, shareID); err != nil {
		return err
	}
	s.notify(socket.ShareType, id.Username, doc)
	return nil
}

func (s *DocumentService) ListShares(ctx context.Context, id model.Identity, docID string) ([]*model.Share, error) {
	doc, err := s.Store.Documents.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	shares, err := s.Store.Shares.ListByDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !access.CanRead(id, doc, shares) {
		return nil, shared.ErrPermission
	}
	return shares, nil
}

func (s *DocumentService) CreateTemplate(ctx context.Context, id model.Identity, req model.CreateTemplateRequest) (*model.Template, error) {
	if req.Name == "" || req.Content == "" {
		return nil, fmt.Errorf("%w: name and content are required", shared.ErrValidation)
	}
	return s.Store.Templates.Create(ctx, &model.Template{
		Name:        req.Name,
		Description: req.Description,
		Content:     req.Content,
		Category:    req.Category,
		IsPublic:    req.IsPublic,
		Owner:       id.Username,
	})
}

func (s *DocumentService) ListTemplates(ctx context.Context, id model.Identity) ([]*model.Template, error) {
	return s.Store.Templates.ListVisible(ctx, id.Username)
}

// CreateDocumentFromTemplate seeds a new document with a template the
// identity can read. The new document is an ordinary create: version 1,
// owned by the caller, no link back to the template.
func (s *DocumentService) CreateDocumentFromTemplate(ctx context.Context, id model.Identity, req model.FromTemplateRequest) (*model.Document, error) {
	tpl, err := s.Store.Templates.Get(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if !access.CanReadTemplate(id, tpl) {
		return nil, shared.ErrPermission
	}
	title := req.Title
	if title == "" {
		title = tpl.Name
	}
	return s.CreateDocument(ctx, id, model.CreateDocRequest{
		Title:       title,
		Content:     tpl.Content,
		Description: tpl.Description,
	})
}

// Profile returns (creating on first sight) the caller's profile record.
func (s *DocumentService) Profile(ctx context.Context, id model.Identity) (*model.UserProfile, error) {
	if id.Username == "" || id.Email == "" {
		return nil, fmt.Errorf("%w: identity is incomplete", shared.ErrValidation)
	}
	return s.Store.Profiles.Ensure(ctx, id)
}
