package projects

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/aldoetobex/interior-mp-backend/internal/auth"
	"github.com/aldoetobex/interior-mp-backend/internal/metrics"
	"github.com/aldoetobex/interior-mp-backend/internal/storage"
	"github.com/aldoetobex/interior-mp-backend/pkg/apperror"
	"github.com/aldoetobex/interior-mp-backend/pkg/models"
	"github.com/aldoetobex/interior-mp-backend/pkg/sanitize"
	"github.com/aldoetobex/interior-mp-backend/pkg/utils"
)

// Upload is one file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// StageInput describes where a direct upload lands.
type StageInput struct {
	Kind          string // room-photo, floor-plan, tagged-floor-plan
	RoomID        string
	Type          string  // existing, inspiration, original, tagged
	StoragePrefix *string // projects/project-{id} from InitializeProject; nil when not sent
}

// Stage stores a direct upload and returns its public URL. Without a storage
// prefix the file goes to a staging key and is relocated later; with one it
// goes straight into that project, which the caller must own. A prefix that
// is sent but blank is rejected.
func (s *Service) Stage(ctx context.Context, caller auth.Identity, in StageInput, up Upload) (string, error) {
	key := storage.StagingKey(in.Kind, in.RoomID, in.Type, up.Filename, s.now())
	if in.StoragePrefix != nil {
		prefix := strings.TrimSpace(*in.StoragePrefix)
		if prefix == "" {
			return "", apperror.Validation("Storage prefix is required")
		}
		projectID, err := storage.ParseProjectPrefix(prefix)
		if err != nil {
			return "", apperror.Validation("Invalid storage prefix")
		}
		p, err := s.loadProject(ctx, s.db, projectID, false)
		if err != nil {
			return "", apperror.Passthrough(err, apperror.Internal, "Could not load project")
		}
		if err := authorizeOn(auth.ActionEditProject, caller, p); err != nil {
			return "", err
		}
		key = storage.ProjectUploadKey(projectID, in.Type, up.Filename, s.now())
	}
	if err := s.store.Upload(ctx, key, up.Body, up.ContentType); err != nil {
		return "", apperror.CreationFailed("Upload failed", err)
	}
	return s.store.PublicURL(key), nil
}

// deliverable loads the project and checks the caller may deliver on it.
func (s *Service) deliverable(ctx context.Context, db *gorm.DB, projectID uint, caller auth.Identity, lock bool) (models.Project, error) {
	p, err := s.loadProject(ctx, db, projectID, lock)
	if err != nil {
		return p, err
	}
	return p, authorizeOn(auth.ActionDesignerUpload, caller, p)
}

func (s *Service) stageDeliverable(ctx context.Context, kind string, up Upload) (string, error) {
	key := storage.StagingKey(kind, "", "designer", up.Filename, s.now())
	if err := s.store.Upload(ctx, key, up.Body, up.ContentType); err != nil {
		return "", fmt.Errorf("stage %s: %w", up.Filename, err)
	}
	return s.store.PublicURL(key), nil
}

// UploadDesignerFloorPlan stores the designer's floor plan in the project
// prefix and returns its URL.
func (s *Service) UploadDesignerFloorPlan(ctx context.Context, projectID uint, caller auth.Identity, up Upload) (url string, err error) {
	defer func() { metrics.RecordOperation("designer_floor_plan", err) }()

	if _, err := s.deliverable(ctx, s.db, projectID, caller, false); err != nil {
		return "", apperror.Passthrough(err, apperror.Internal, "Could not load project")
	}
	staged, err := s.stageDeliverable(ctx, "designer-floor-plan", up)
	if err != nil {
		return "", apperror.UpdateFailed("Floor plan upload failed", err)
	}

	moves := s.relocator.Begin()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.deliverable(ctx, tx, projectID, caller, true)
		if err != nil {
			return err
		}
		moved, err := moves.Relocate(ctx, p.ID, staged)
		if err != nil {
			return err
		}
		if err := s.upsertFloorPlan(tx, p.ID, floorPlanPatch{Designer: &moved}); err != nil {
			return err
		}
		if err := tx.Model(&models.Project{}).Where("id = ?", p.ID).
			Update("last_modified_at", s.touch(&p)).Error; err != nil {
			return err
		}
		utils.LogProjectHistory(ctx, tx, p.ID, caller.UserID, "designer_floor_plan", p.Status, p.Status, map[string]any{"url": moved})
		url = moved
		return nil
	})
	moves.Finish(ctx, err == nil)
	if err != nil {
		return "", apperror.Passthrough(err, apperror.UpdateFailed, "Floor plan upload failed")
	}
	return url, nil
}

// UploadFinalDesigns appends one FinalDesign per file and completes the
// project. Files are handled in natural file-name order and stored as
// final-design-<n> so the gallery keeps that order across calls.
func (s *Service) UploadFinalDesigns(ctx context.Context, projectID uint, caller auth.Identity, ups []Upload) (designs []models.FinalDesign, err error) {
	defer func() { metrics.RecordOperation("final_designs", err) }()

	if len(ups) == 0 {
		return nil, apperror.Validation("At least one design file is required")
	}
	if _, err := s.deliverable(ctx, s.db, projectID, caller, false); err != nil {
		return nil, apperror.Passthrough(err, apperror.Internal, "Could not load project")
	}

	ordered := append([]Upload(nil), ups...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return utils.NaturalLess(sanitize.FileName(ordered[i].Filename), sanitize.FileName(ordered[j].Filename))
	})

	staged := make([]string, 0, len(ordered))
	for _, up := range ordered {
		u, err := s.stageDeliverable(ctx, "final-design", up)
		if err != nil {
			return nil, apperror.UpdateFailed("Final design upload failed", err)
		}
		staged = append(staged, u)
	}

	moves := s.relocator.Begin()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.deliverable(ctx, tx, projectID, caller, true)
		if err != nil {
			return err
		}
		var existing int64
		if err := tx.Model(&models.FinalDesign{}).Where("project_id = ?", p.ID).Count(&existing).Error; err != nil {
			return err
		}

		for i, u := range staged {
			ext := strings.ToLower(path.Ext(sanitize.FileName(ordered[i].Filename)))
			name := fmt.Sprintf("final-design-%d%s", existing+int64(i)+1, ext)
			moved, err := moves.RelocateAs(ctx, p.ID, u, name)
			if err != nil {
				return err
			}
			d := models.FinalDesign{ProjectID: p.ID, DesignURL: moved, CreatedAt: s.now().UTC()}
			if err := tx.Create(&d).Error; err != nil {
				return err
			}
			designs = append(designs, d)
		}

		if err := tx.Model(&models.Project{}).Where("id = ?", p.ID).Updates(map[string]any{
			"status":           models.ProjectCompleted,
			"completed":        true,
			"last_modified_at": s.touch(&p),
		}).Error; err != nil {
			return err
		}
		utils.LogProjectHistory(ctx, tx, p.ID, caller.UserID, "final_designs", p.Status, models.ProjectCompleted, map[string]any{"files": len(staged)})
		return nil
	})
	moves.Finish(ctx, err == nil)
	if err != nil {
		return nil, apperror.Passthrough(err, apperror.UpdateFailed, "Final design upload failed")
	}
	s.log.Info().Uint("project_id", projectID).Int("files", len(designs)).Msg("final designs uploaded")
	return designs, nil
}
