package projects

import (
	"context"
	"path"

	"gorm.io/gorm"

	"github.com/aldoetobex/interior-mp-backend/internal/auth"
	"github.com/aldoetobex/interior-mp-backend/internal/storage"
	"github.com/aldoetobex/interior-mp-backend/pkg/apperror"
	"github.com/aldoetobex/interior-mp-backend/pkg/models"
	"github.com/aldoetobex/interior-mp-backend/pkg/utils"
)

func byID(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }

// withAggregate preloads everything toView reads.
func withAggregate(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Owner").
		Preload("Designer").
		Preload("FloorPlan").
		Preload("Rooms", byID).
		Preload("Rooms.Preference").
		Preload("Rooms.Photos", byID).
		Preload("FinalDesigns", byID)
}

// Readable loads a project the caller may read. Missing and unreadable
// projects both yield NotFound.
func (s *Service) Readable(ctx context.Context, projectID uint, caller auth.Identity) (models.Project, error) {
	p, err := s.loadProject(ctx, s.db, projectID, false)
	if err != nil {
		return p, apperror.Passthrough(err, apperror.Internal, "Could not load project")
	}
	if auth.Authorize(auth.ActionReadProject, caller, auth.RefOf(p)) != nil {
		return models.Project{}, errProjectNotFound()
	}
	return p, nil
}

// GetProject returns the project aggregate for its owner, its assigned
// designer or an admin.
func (s *Service) GetProject(ctx context.Context, projectID uint, caller auth.Identity) (ProjectView, error) {
	if _, err := s.Readable(ctx, projectID, caller); err != nil {
		return ProjectView{}, err
	}
	var p models.Project
	if err := withAggregate(s.db.WithContext(ctx)).First(&p, projectID).Error; err != nil {
		return ProjectView{}, apperror.Internal("Could not load project", err)
	}
	return toView(p, storage.ProjectPrefix(p.ID)), nil
}

// ListProjects returns the designer's assigned projects, or the caller's own
// projects for any other role, newest first.
func (s *Service) ListProjects(ctx context.Context, caller auth.Identity) ([]ProjectView, error) {
	q := withAggregate(s.db.WithContext(ctx))
	if caller.Role == models.RoleDesigner {
		q = q.Where("designer_id = ?", caller.UserID)
	} else {
		q = q.Where("user_id = ?", caller.UserID)
	}

	var rows []models.Project
	if err := q.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, apperror.Internal("Could not list projects", err)
	}
	out := make([]ProjectView, 0, len(rows))
	for _, p := range rows {
		out = append(out, toView(p, storage.ProjectPrefix(p.ID)))
	}
	return out, nil
}

// History returns the audit trail of a project, oldest first.
func (s *Service) History(ctx context.Context, projectID uint, caller auth.Identity) ([]models.ProjectHistory, error) {
	if _, err := s.Readable(ctx, projectID, caller); err != nil {
		return nil, err
	}
	rows := []models.ProjectHistory{}
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, apperror.Internal("Could not load history", err)
	}
	return rows, nil
}

// ListFiles lists every object directly under the project prefix in natural
// order, without the placeholder marker.
func (s *Service) ListFiles(ctx context.Context, projectID uint, caller auth.Identity) ([]FileView, error) {
	if _, err := s.Readable(ctx, projectID, caller); err != nil {
		return nil, err
	}
	keys, err := s.store.List(ctx, storage.ProjectPrefix(projectID))
	if err != nil {
		return nil, apperror.Internal("Could not list project files", err)
	}
	utils.SortNatural(keys)

	out := make([]FileView, 0, len(keys))
	for _, k := range keys {
		if path.Base(k) == path.Base(storage.PlaceholderKey(projectID)) {
			continue
		}
		out = append(out, FileView{Key: k, URL: s.store.PublicURL(k)})
	}
	return out, nil
}
