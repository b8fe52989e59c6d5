// Package projects implements the project workflow: creation, progress saves,
// designer deliverables and the read side of the project aggregate.
package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/interior-mp-backend/internal/auth"
	"github.com/aldoetobex/interior-mp-backend/internal/metrics"
	"github.com/aldoetobex/interior-mp-backend/internal/storage"
	"github.com/aldoetobex/interior-mp-backend/pkg/apperror"
	"github.com/aldoetobex/interior-mp-backend/pkg/models"
	"github.com/aldoetobex/interior-mp-backend/pkg/sanitize"
	"github.com/aldoetobex/interior-mp-backend/pkg/utils"
)

// Service runs every project workflow operation. Relational writes of one
// call share a transaction; the objects it relocates are copied inside it and
// settled by storage.Moves once it has committed or rolled back.
type Service struct {
	db        *gorm.DB
	relocator *storage.Relocator
	store     storage.ObjectStore
	log       zerolog.Logger
	now       func() time.Time
}

func NewService(db *gorm.DB, relocator *storage.Relocator, log zerolog.Logger) *Service {
	return &Service{
		db:        db,
		relocator: relocator,
		store:     relocator.Store(),
		log:       log.With().Str("component", "projects").Logger(),
		now:       time.Now,
	}
}

/* ================================ Inputs ================================ */

// Dimensions are all optional.
type Dimensions struct {
	SquareFootage *float64 `json:"squareFootage" validate:"omitempty,gte=0"`
	Length        *float64 `json:"length" validate:"omitempty,gte=0"`
	Width         *float64 `json:"width" validate:"omitempty,gte=0"`
	Height        *float64 `json:"height" validate:"omitempty,gte=0"`
}

type RoomInput struct {
	Type              string     `json:"type" validate:"required,max=80"`
	Dimensions        Dimensions `json:"dimensions"`
	Style             string     `json:"style" validate:"max=120"`
	Description       string     `json:"description" validate:"max=4000"`
	ExistingPhotos    []string   `json:"existingPhotos"`
	InspirationPhotos []string   `json:"inspirationPhotos"`
}

type CreateProjectInput struct {
	Name               string      `json:"name" validate:"max=120"`
	DesignType         string      `json:"designType" validate:"max=80"`
	Rooms              []RoomInput `json:"rooms" validate:"required,min=1,dive"`
	HasFloorPlan       bool        `json:"hasFloorPlan"`
	FloorPlanURL       string      `json:"floorPlanUrl"`
	TaggedFloorPlanURL string      `json:"taggedFloorPlanUrl"`
}

// TaggedRoom is a room marked on the tagged floor plan. Key matches it to an
// entry of SaveProgressInput.RoomDetails; Type is used when Key is empty.
type TaggedRoom struct {
	Key               string   `json:"id"`
	Type              string   `json:"type" validate:"required,max=80"`
	ExistingPhotos    []string `json:"existingPhotos"`
	InspirationPhotos []string `json:"inspirationPhotos"`
}

type RoomDetail struct {
	Style       string `json:"style" validate:"max=120"`
	Description string `json:"description" validate:"max=4000"`
	Dimensions
}

type SaveProgressInput struct {
	CurrentStep   int                   `json:"currentStep" validate:"gte=0,lte=100"`
	DesignType    string                `json:"designType" validate:"max=80"`
	HasFloorPlan  bool                  `json:"hasFloorPlan"`
	FloorPlanURLs []string              `json:"floorPlanUrls" validate:"max=2"` // [original, tagged]
	TaggedRooms   []TaggedRoom          `json:"taggedRooms" validate:"dive"`
	RoomDetails   map[string]RoomDetail `json:"roomDetails" validate:"dive"`
	Status        string                `json:"status" validate:"omitempty,projectstatus"`
}

// UpdateProjectInput is a partial update; nil fields are left alone.
type UpdateProjectInput struct {
	Name               *string `json:"name" validate:"omitempty,max=120"`
	DesignType         *string `json:"designType" validate:"omitempty,max=80"`
	HasFloorPlan       *bool   `json:"hasFloorPlan"`
	FloorPlanURL       *string `json:"floorPlanUrl"`
	TaggedFloorPlanURL *string `json:"taggedFloorPlanUrl"`
	Status             *string `json:"status" validate:"omitempty,projectstatus"`
}

func (in UpdateProjectInput) empty() bool {
	return in.Name == nil && in.DesignType == nil && in.HasFloorPlan == nil &&
		in.FloorPlanURL == nil && in.TaggedFloorPlanURL == nil && in.Status == nil
}

// roomSpec is the common shape rooms are inserted from.
type roomSpec struct {
	Type        string
	Dimensions  Dimensions
	Style       string
	Description string
	Existing    []string
	Inspiration []string
}

func (r roomSpec) urls() []string {
	return append(append([]string{}, r.Existing...), r.Inspiration...)
}

func specsFromCreate(rooms []RoomInput) []roomSpec {
	out := make([]roomSpec, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, roomSpec{
			Type:        r.Type,
			Dimensions:  r.Dimensions,
			Style:       r.Style,
			Description: r.Description,
			Existing:    r.ExistingPhotos,
			Inspiration: r.InspirationPhotos,
		})
	}
	return out
}

func specsFromProgress(in SaveProgressInput) []roomSpec {
	out := make([]roomSpec, 0, len(in.TaggedRooms))
	for _, t := range in.TaggedRooms {
		key := t.Key
		if key == "" {
			key = t.Type
		}
		d := in.RoomDetails[key]
		out = append(out, roomSpec{
			Type:        t.Type,
			Dimensions:  d.Dimensions,
			Style:       d.Style,
			Description: d.Description,
			Existing:    t.ExistingPhotos,
			Inspiration: t.InspirationPhotos,
		})
	}
	return out
}

/* =============================== Helpers ================================ */

func errProjectNotFound() error { return apperror.NotFound("Project not found") }

// touch advances last_modified_at without ever moving it backwards.
func (s *Service) touch(p *models.Project) time.Time {
	t := s.now().UTC()
	if t.Before(p.LastModifiedAt) {
		t = p.LastModifiedAt
	}
	p.LastModifiedAt = t
	return t
}

func (s *Service) loadProject(ctx context.Context, db *gorm.DB, id uint, lock bool) (models.Project, error) {
	var p models.Project
	q := db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return p, errProjectNotFound()
		}
		return p, err
	}
	return p, nil
}

// deny hides the project from callers without read access and returns err
// to everyone else.
func deny(caller auth.Identity, p models.Project, err error) error {
	if auth.Authorize(auth.ActionReadProject, caller, auth.RefOf(p)) != nil {
		return errProjectNotFound()
	}
	return err
}

// authorizeOn checks action on a loaded project, masking it from non-readers.
func authorizeOn(action auth.Action, caller auth.Identity, p models.Project) error {
	if err := auth.Authorize(action, caller, auth.RefOf(p)); err != nil {
		return deny(caller, p, err)
	}
	return nil
}

// checkURLs rejects URLs the store does not recognise and URLs inside a
// project prefix other than projectID (0 allows no project prefix at all).
func (s *Service) checkURLs(projectID uint, urls []string) error {
	for _, u := range urls {
		if strings.TrimSpace(u) == "" {
			continue
		}
		key, ok := s.store.KeyFromURL(u)
		if !ok {
			return apperror.Errorf("Unrecognised file URL %q", u)
		}
		if storage.InAnyProject(key) && (projectID == 0 || !storage.InProject(projectID, key)) {
			return apperror.Errorf("File %q belongs to another project", u)
		}
	}
	return nil
}

func relocateOptional(ctx context.Context, moves *storage.Moves, projectID uint, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return moves.Relocate(ctx, projectID, raw)
}

type floorPlanPatch struct {
	Original, Tagged, Designer *string
}

func (s *Service) upsertFloorPlan(tx *gorm.DB, projectID uint, patch floorPlanPatch) error {
	var fp models.FloorPlan
	err := tx.Where("project_id = ?", projectID).First(&fp).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	fp.ProjectID = projectID
	if patch.Original != nil {
		fp.OriginalURL = *patch.Original
	}
	if patch.Tagged != nil {
		fp.TaggedURL = *patch.Tagged
	}
	if patch.Designer != nil {
		fp.DesignerURL = *patch.Designer
	}
	return tx.Save(&fp).Error
}

// insertRooms writes rooms with their preference and photos. Photos are
// relocated into the project prefix first.
func (s *Service) insertRooms(ctx context.Context, tx *gorm.DB, moves *storage.Moves, projectID uint, rooms []roomSpec) error {
	for i, in := range rooms {
		room := models.Room{
			ProjectID:     projectID,
			RoomType:      sanitize.Text(in.Type),
			SquareFootage: in.Dimensions.SquareFootage,
			Length:        in.Dimensions.Length,
			Width:         in.Dimensions.Width,
			Height:        in.Dimensions.Height,
		}
		if err := tx.Omit(clause.Associations).Create(&room).Error; err != nil {
			return fmt.Errorf("room %d: %w", i+1, err)
		}

		style, desc := strings.TrimSpace(in.Style), strings.TrimSpace(in.Description)
		if style != "" || desc != "" {
			pref := models.RoomDesignPreference{RoomID: room.ID, Style: style, Description: desc}
			if err := tx.Create(&pref).Error; err != nil {
				return fmt.Errorf("room %d preference: %w", i+1, err)
			}
		}

		groups := []struct {
			kind models.PhotoType
			urls []string
		}{
			{models.PhotoExisting, in.Existing},
			{models.PhotoInspiration, in.Inspiration},
		}
		for _, g := range groups {
			for _, raw := range g.urls {
				if strings.TrimSpace(raw) == "" {
					continue
				}
				moved, err := moves.Relocate(ctx, projectID, raw)
				if err != nil {
					return fmt.Errorf("room %d photo: %w", i+1, err)
				}
				photo := models.RoomPhoto{RoomID: room.ID, PhotoURL: moved, PhotoType: g.kind}
				if err := tx.Create(&photo).Error; err != nil {
					return fmt.Errorf("room %d photo: %w", i+1, err)
				}
			}
		}
	}
	return nil
}

// replaceRooms drops the project's room set and inserts rooms in its place.
func (s *Service) replaceRooms(ctx context.Context, tx *gorm.DB, moves *storage.Moves, projectID uint, rooms []roomSpec) error {
	var ids []uint
	if err := tx.Model(&models.Room{}).Where("project_id = ?", projectID).Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) > 0 {
		if err := tx.Where("room_id IN ?", ids).Delete(&models.RoomPhoto{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id IN ?", ids).Delete(&models.RoomDesignPreference{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&models.Room{}).Error; err != nil {
			return err
		}
	}
	return s.insertRooms(ctx, tx, moves, projectID, rooms)
}

// statusUpdate validates a client supplied status. Completion is reserved to
// the final design upload.
func statusUpdate(raw string) (models.ProjectStatus, error) {
	st := models.ProjectStatus(strings.TrimSpace(raw))
	if st == "" {
		return "", nil
	}
	if !st.Valid() {
		return "", apperror.Errorf("Invalid project status %q", raw)
	}
	if st == models.ProjectCompleted {
		return "", apperror.Validation("A project is completed by uploading final designs")
	}
	return st, nil
}

/* ============================= Operations =============================== */

// CreateProject inserts a pending project with its rooms, relocating every
// referenced file into the new project's prefix. Any failure rolls back all
// relational writes.
func (s *Service) CreateProject(ctx context.Context, owner auth.Identity, in CreateProjectInput) (id uint, err error) {
	defer func() { metrics.RecordOperation("create_project", err) }()

	if err := auth.Authorize(auth.ActionCreateProject, owner, nil); err != nil {
		return 0, err
	}
	if len(in.Rooms) == 0 {
		return 0, apperror.Validation("At least one room is required")
	}
	rooms := specsFromCreate(in.Rooms)
	urls := []string{in.FloorPlanURL, in.TaggedFloorPlanURL}
	for _, r := range rooms {
		urls = append(urls, r.urls()...)
	}
	if err := s.checkURLs(0, urls); err != nil {
		return 0, err
	}

	moves := s.relocator.Begin()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now().UTC()
		p := models.Project{
			UserID:         owner.UserID,
			Name:           sanitize.Text(in.Name),
			Status:         models.ProjectPending,
			DesignType:     sanitize.Text(in.DesignType),
			HasFloorPlan:   in.HasFloorPlan,
			CreatedAt:      now,
			LastModifiedAt: now,
		}
		if err := tx.Omit(clause.Associations).Create(&p).Error; err != nil {
			return err
		}

		original, err := relocateOptional(ctx, moves, p.ID, in.FloorPlanURL)
		if err != nil {
			return fmt.Errorf("floor plan: %w", err)
		}
		tagged, err := relocateOptional(ctx, moves, p.ID, in.TaggedFloorPlanURL)
		if err != nil {
			return fmt.Errorf("tagged floor plan: %w", err)
		}
		if in.HasFloorPlan || original != "" || tagged != "" {
			if err := s.upsertFloorPlan(tx, p.ID, floorPlanPatch{Original: &original, Tagged: &tagged}); err != nil {
				return err
			}
		}

		if err := s.insertRooms(ctx, tx, moves, p.ID, rooms); err != nil {
			return err
		}

		utils.LogProjectHistory(ctx, tx, p.ID, owner.UserID, "created", "", p.Status, map[string]any{"rooms": len(rooms)})
		id = p.ID
		return nil
	})
	moves.Finish(ctx, err == nil)
	if err != nil {
		s.log.Warn().Err(err).Uint("owner_id", owner.UserID).Msg("project creation rolled back")
		return 0, apperror.CreationFailed("Project creation failed", err)
	}
	s.log.Info().Uint("project_id", id).Uint("owner_id", owner.UserID).Int("rooms", len(rooms)).Msg("project created")
	return id, nil
}

// InitializeProject creates a bare draft so the client can upload against a
// known prefix, and marks that prefix with a placeholder object.
func (s *Service) InitializeProject(ctx context.Context, owner auth.Identity) (id uint, prefix string, err error) {
	defer func() { metrics.RecordOperation("initialize_project", err) }()

	if err := auth.Authorize(auth.ActionCreateProject, owner, nil); err != nil {
		return 0, "", err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now().UTC()
		p := models.Project{
			UserID:         owner.UserID,
			Status:         models.ProjectDraft,
			CreatedAt:      now,
			LastModifiedAt: now,
		}
		if err := tx.Omit(clause.Associations).Create(&p).Error; err != nil {
			return err
		}
		if err := s.store.Upload(ctx, storage.PlaceholderKey(p.ID), strings.NewReader(""), "text/plain"); err != nil {
			return fmt.Errorf("placeholder: %w", err)
		}
		utils.LogProjectHistory(ctx, tx, p.ID, owner.UserID, "initialized", "", p.Status, nil)
		id = p.ID
		return nil
	})
	if err != nil {
		return 0, "", apperror.CreationFailed("Project initialization failed", err)
	}
	return id, storage.ProjectPrefix(id), nil
}

// SaveProgress applies one wizard step. A non-empty TaggedRooms replaces the
// project's whole room set (last write wins).
func (s *Service) SaveProgress(ctx context.Context, projectID uint, caller auth.Identity, in SaveProgressInput) (err error) {
	defer func() { metrics.RecordOperation("save_progress", err) }()

	status, err := statusUpdate(in.Status)
	if err != nil {
		return err
	}
	rooms := specsFromProgress(in)
	urls := append([]string{}, in.FloorPlanURLs...)
	for _, r := range rooms {
		urls = append(urls, r.urls()...)
	}

	moves := s.relocator.Begin()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.loadProject(ctx, tx, projectID, true)
		if err != nil {
			return err
		}
		if err := authorizeOn(auth.ActionEditProject, caller, p); err != nil {
			return err
		}
		if p.Completed {
			return apperror.Conflict("Project is already completed")
		}
		if err := s.checkURLs(p.ID, urls); err != nil {
			return err
		}

		updates := map[string]any{
			"current_step":   in.CurrentStep,
			"design_type":    sanitize.Text(in.DesignType),
			"has_floor_plan": in.HasFloorPlan,
		}
		if status != "" {
			updates["status"] = status
		}

		if len(in.FloorPlanURLs) > 0 {
			var patch floorPlanPatch
			for i, raw := range in.FloorPlanURLs {
				moved, err := relocateOptional(ctx, moves, p.ID, raw)
				if err != nil {
					return fmt.Errorf("floor plan: %w", err)
				}
				if moved == "" {
					continue
				}
				if i == 0 {
					patch.Original = &moved
				} else {
					patch.Tagged = &moved
				}
			}
			if patch.Original != nil || patch.Tagged != nil {
				if err := s.upsertFloorPlan(tx, p.ID, patch); err != nil {
					return err
				}
			}
		}

		if len(rooms) > 0 {
			if err := s.replaceRooms(ctx, tx, moves, p.ID, rooms); err != nil {
				return err
			}
		}

		updates["last_modified_at"] = s.touch(&p)
		if err := tx.Model(&models.Project{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
			return err
		}

		newStatus := p.Status
		if status != "" {
			newStatus = status
		}
		utils.LogProjectHistory(ctx, tx, p.ID, caller.UserID, "progress_saved", p.Status, newStatus, map[string]any{
			"current_step": in.CurrentStep,
			"rooms":        len(rooms),
		})
		return nil
	})
	moves.Finish(ctx, err == nil)
	return apperror.Passthrough(err, apperror.UpdateFailed, "Saving progress failed")
}

// UpdateProject applies a partial update from the owner.
func (s *Service) UpdateProject(ctx context.Context, projectID uint, caller auth.Identity, in UpdateProjectInput) (err error) {
	defer func() { metrics.RecordOperation("update_project", err) }()

	if in.empty() {
		return apperror.Validation("Nothing to update")
	}
	var status models.ProjectStatus
	if in.Status != nil {
		if status, err = statusUpdate(*in.Status); err != nil {
			return err
		}
	}
	var urls []string
	for _, u := range []*string{in.FloorPlanURL, in.TaggedFloorPlanURL} {
		if u != nil {
			urls = append(urls, *u)
		}
	}

	moves := s.relocator.Begin()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.loadProject(ctx, tx, projectID, true)
		if err != nil {
			return err
		}
		if err := authorizeOn(auth.ActionEditProject, caller, p); err != nil {
			return err
		}
		if p.Completed {
			return apperror.Conflict("Project is already completed")
		}
		if err := s.checkURLs(p.ID, urls); err != nil {
			return err
		}

		updates := map[string]any{}
		if in.Name != nil {
			updates["name"] = sanitize.Text(*in.Name)
		}
		if in.DesignType != nil {
			updates["design_type"] = sanitize.Text(*in.DesignType)
		}
		if in.HasFloorPlan != nil {
			updates["has_floor_plan"] = *in.HasFloorPlan
		}
		if status != "" {
			updates["status"] = status
		}

		var patch floorPlanPatch
		if in.FloorPlanURL != nil {
			moved, err := relocateOptional(ctx, moves, p.ID, *in.FloorPlanURL)
			if err != nil {
				return fmt.Errorf("floor plan: %w", err)
			}
			patch.Original = &moved
		}
		if in.TaggedFloorPlanURL != nil {
			moved, err := relocateOptional(ctx, moves, p.ID, *in.TaggedFloorPlanURL)
			if err != nil {
				return fmt.Errorf("tagged floor plan: %w", err)
			}
			patch.Tagged = &moved
		}
		if patch.Original != nil || patch.Tagged != nil {
			if err := s.upsertFloorPlan(tx, p.ID, patch); err != nil {
				return err
			}
		}

		updates["last_modified_at"] = s.touch(&p)
		if err := tx.Model(&models.Project{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
			return err
		}

		newStatus := p.Status
		if status != "" {
			newStatus = status
		}
		utils.LogProjectHistory(ctx, tx, p.ID, caller.UserID, "updated", p.Status, newStatus, nil)
		return nil
	})
	moves.Finish(ctx, err == nil)
	return apperror.Passthrough(err, apperror.UpdateFailed, "Project update failed")
}
