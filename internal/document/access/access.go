// Package access decides whether an identity may act on a record. Every
// function is pure: the caller supplies the record and its current share
// set, nothing is looked up here.
package access

import "collabdocs/internal/document/model"

// grantFor finds the active share for the identity, matching on the
// stable username key only. Invitee emails are resolved to usernames when
// the share is created, so a single key is enough here.
func grantFor(id model.Identity, shares []*model.Share) *model.Share {
	for _, s := range shares {
		if s.SharedWith == id.Username {
			return s
		}
	}
	return nil
}

// CanRead allows the owner always; a grantee only while the document is
// not tombstoned, so shared collaborators lose sight of trashed items.
func CanRead(id model.Identity, doc *model.Document, shares []*model.Share) bool {
	if doc.Owner == id.Username {
		return true
	}
	if doc.Deleted {
		return false
	}
	return grantFor(id, shares) != nil
}

// CanWrite allows the owner, or a grantee holding a WRITE share on a live
// document.
func CanWrite(id model.Identity, doc *model.Document, shares []*model.Share) bool {
	if doc.Owner == id.Username {
		return true
	}
	if doc.Deleted {
		return false
	}
	g := grantFor(id, shares)
	return g != nil && g.Permission == model.PermissionWrite
}

// CanDelete is owner-only: trash, restore and purge are the owner's.
func CanDelete(id model.Identity, doc *model.Document) bool {
	return doc.Owner == id.Username
}

// CanManageShares is owner-only: sharing rights are not delegable.
func CanManageShares(id model.Identity, doc *model.Document) bool {
	return doc.Owner == id.Username
}

// CanReadTemplate allows public templates for everyone, private ones for
// the owner.
func CanReadTemplate(id model.Identity, tpl *model.Template) bool {
	return tpl.IsPublic || tpl.Owner == id.Username
}
