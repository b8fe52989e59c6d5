package auth

import (
	"github.com/aldoetobex/interior-mp-backend/pkg/apperror"
	"github.com/aldoetobex/interior-mp-backend/pkg/models"
)

// Identity is the acting user resolved from a bearer token.
type Identity struct {
	UserID uint        `json:"id"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
}

func (i Identity) IsAdmin() bool { return i.Role == models.RoleAdmin }

// Action is a capability checked by Authorize.
type Action string

const (
	ActionCreateProject  Action = "project:create"
	ActionReadProject    Action = "project:read"
	ActionEditProject    Action = "project:edit"    // owner-only progress and partial updates
	ActionDesignerUpload Action = "project:deliver" // designer floor plan and final designs
	ActionComment        Action = "project:comment"
	ActionAdminList      Action = "admin:list"
	ActionAssignDesigner Action = "admin:assign"
	ActionRepairStorage  Action = "admin:repair"
)

// ProjectRef is the part of a project Authorize needs.
type ProjectRef struct {
	OwnerID    uint
	DesignerID *uint
}

// RefOf builds a ProjectRef from a loaded project.
func RefOf(p models.Project) *ProjectRef {
	return &ProjectRef{OwnerID: p.UserID, DesignerID: p.DesignerID}
}

func (r *ProjectRef) ownedBy(id Identity) bool {
	return r != nil && r.OwnerID == id.UserID
}

func (r *ProjectRef) assignedTo(id Identity) bool {
	return r != nil && id.Role == models.RoleDesigner && r.DesignerID != nil && *r.DesignerID == id.UserID
}

/*
Authorize is the single capability check of the API.

	create          client, admin
	read, comment   owner, assigned designer, admin
	edit            owner
	deliver         assigned designer, admin
	admin:*         admin

Project actions require a non-nil ref; a nil ref is denied.
*/
func Authorize(action Action, id Identity, ref *ProjectRef) error {
	if !id.Role.Valid() || id.UserID == 0 {
		return apperror.Unauthenticated("")
	}
	allowed := false
	switch action {
	case ActionCreateProject:
		allowed = id.Role == models.RoleClient || id.IsAdmin()
	case ActionReadProject, ActionComment:
		allowed = ref != nil && (ref.ownedBy(id) || ref.assignedTo(id) || id.IsAdmin())
	case ActionEditProject:
		allowed = ref.ownedBy(id)
	case ActionDesignerUpload:
		allowed = ref != nil && (ref.assignedTo(id) || id.IsAdmin())
	case ActionAdminList, ActionAssignDesigner, ActionRepairStorage:
		allowed = id.IsAdmin()
	}
	if !allowed {
		return apperror.Forbidden("")
	}
	return nil
}
