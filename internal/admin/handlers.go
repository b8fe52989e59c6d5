// Package admin serves the admin-only listing, assignment and maintenance endpoints.
package admin

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/interior-mp-backend/internal/auth"
	"github.com/aldoetobex/interior-mp-backend/internal/metrics"
	"github.com/aldoetobex/interior-mp-backend/internal/projects"
	"github.com/aldoetobex/interior-mp-backend/internal/storage"
	"github.com/aldoetobex/interior-mp-backend/pkg/apperror"
	"github.com/aldoetobex/interior-mp-backend/pkg/models"
	"github.com/aldoetobex/interior-mp-backend/pkg/utils"
	"github.com/aldoetobex/interior-mp-backend/pkg/validation"
)

// Repairer finishes interrupted object relocations.
type Repairer interface {
	RepairRelocations(ctx context.Context) (storage.RepairReport, error)
}

type Handler struct {
	db       *gorm.DB
	repairer Repairer
	log      zerolog.Logger
	now      func() time.Time
}

func NewHandler(db *gorm.DB, repairer Repairer, log zerolog.Logger) *Handler {
	return &Handler{db: db, repairer: repairer, log: log.With().Str("component", "admin").Logger(), now: time.Now}
}

func parsePage(c *fiber.Ctx) (page, size int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	size, _ = strconv.Atoi(c.Query("pageSize", "10"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 50 {
		size = 10
	}
	return
}

func pages(total int64, size int) int {
	return int(math.Ceil(float64(total) / float64(size)))
}

// =====================================================
// GET /api/admin/projects?page=&pageSize=&status=
// =====================================================

type ProjectItem struct {
	ID             uint                 `json:"id"`
	Name           string               `json:"name"`
	Status         models.ProjectStatus `json:"status"`
	Completed      bool                 `json:"completed"`
	OwnerEmail     string               `json:"owner_email"`
	DesignerID     *uint                `json:"designer_id"`
	DesignerEmail  *string              `json:"designer_email"`
	Rooms          int64                `json:"rooms"`
	CreatedAt      time.Time            `json:"created_at"`
	LastModifiedAt time.Time            `json:"last_modified_at"`
}

// @Summary      List all projects
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Param        status    query string false "draft|pending|in_progress|completed"
// @Success      200  {object}  models.Page[ProjectItem]
// @Failure      403  {object}  models.ErrorResponse
// @Router       /admin/projects [get]
func (h *Handler) ListProjects(c *fiber.Ctx) error {
	if err := auth.Authorize(auth.ActionAdminList, auth.MustIdentity(c), nil); err != nil {
		return err
	}
	page, size := parsePage(c)
	status := strings.TrimSpace(c.Query("status"))
	if status != "" && !models.ProjectStatus(status).Valid() {
		return apperror.Validation("invalid status filter")
	}

	base := h.db.WithContext(c.UserContext()).Model(&models.Project{})
	if status != "" {
		base = base.Where("projects.status = ?", status)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return apperror.Internal("Could not count projects", err)
	}

	rows := make([]ProjectItem, 0, size)
	if err := base.
		Select(`projects.id, projects.name, projects.status, projects.completed,
			projects.designer_id, projects.created_at, projects.last_modified_at,
			owners.email AS owner_email, designers.email AS designer_email,
			COUNT(rooms.id) AS rooms`).
		Joins("JOIN users owners ON owners.id = projects.user_id").
		Joins("LEFT JOIN users designers ON designers.id = projects.designer_id").
		Joins("LEFT JOIN rooms ON rooms.project_id = projects.id").
		Group("projects.id, owners.email, designers.email").
		Order("projects.created_at DESC").Order("projects.id DESC").
		Offset((page - 1) * size).Limit(size).
		Scan(&rows).Error; err != nil {
		return apperror.Internal("Could not list projects", err)
	}

	return c.JSON(models.Page[ProjectItem]{
		Page: page, PageSize: size, Total: total, Pages: pages(total, size), Items: rows,
	})
}

// =====================================================
// GET /api/admin/designers
// =====================================================

type DesignerItem struct {
	ID        uint   `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Assigned  int64  `json:"assigned_projects"`
}

// @Summary      List designers
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  DesignerItem
// @Router       /admin/designers [get]
func (h *Handler) ListDesigners(c *fiber.Ctx) error {
	if err := auth.Authorize(auth.ActionAdminList, auth.MustIdentity(c), nil); err != nil {
		return err
	}
	rows := []DesignerItem{}
	if err := h.db.WithContext(c.UserContext()).
		Table("users").
		Select(`users.id, users.email, users.first_name, users.last_name,
			COUNT(projects.id) AS assigned`).
		Joins("LEFT JOIN projects ON projects.designer_id = users.id").
		Where("users.role = ?", models.RoleDesigner).
		Group("users.id").
		Order("users.email ASC").
		Scan(&rows).Error; err != nil {
		return apperror.Internal("Could not list designers", err)
	}
	return c.JSON(rows)
}

// =====================================================
// POST /api/admin/projects/:id/assign
// =====================================================

type AssignRequest struct {
	DesignerID uint `json:"designerId" validate:"required"`
}

// AssignDesigner sets the project's designer. The target user must have the
// designer role; last_modified_at moves forward.
func (h *Handler) AssignDesigner(ctx context.Context, projectID, designerID uint, caller auth.Identity) (err error) {
	defer func() { metrics.RecordOperation("assign_designer", err) }()

	if err := auth.Authorize(auth.ActionAssignDesigner, caller, nil); err != nil {
		return err
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the project row to serialize concurrent assignments
		var p models.Project
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, projectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("Project not found")
			}
			return err
		}

		var designer models.User
		if err := tx.Where("id = ? AND role = ?", designerID, models.RoleDesigner).First(&designer).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.Validation("User is not a designer")
			}
			return err
		}

		now := h.now().UTC()
		if now.Before(p.LastModifiedAt) {
			now = p.LastModifiedAt
		}
		if err := tx.Model(&models.Project{}).Where("id = ?", p.ID).Updates(map[string]any{
			"designer_id":      designer.ID,
			"last_modified_at": now,
		}).Error; err != nil {
			return err
		}

		meta := map[string]any{"designer_id": designer.ID}
		if p.DesignerID != nil {
			meta["previous_designer_id"] = *p.DesignerID
		}
		utils.LogProjectHistory(ctx, tx, p.ID, caller.UserID, "designer_assigned", p.Status, p.Status, meta)
		return nil
	})
	if err != nil {
		return apperror.Passthrough(err, apperror.UpdateFailed, "Designer assignment failed")
	}
	h.log.Info().Uint("project_id", projectID).Uint("designer_id", designerID).Msg("designer assigned")
	return nil
}

// @Summary      Assign designer
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  int            true  "project id"
// @Param        payload  body  AssignRequest  true  "Designer"
// @Success      200  {object}  map[string]bool
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /admin/projects/{id}/assign [post]
func (h *Handler) Assign(c *fiber.Ctx) error {
	id, err := projects.ParseID(c, "id")
	if err != nil {
		return err
	}
	var in AssignRequest
	if err := c.BodyParser(&in); err != nil {
		return apperror.Validation("Invalid request body")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	if err := h.AssignDesigner(c.UserContext(), id, in.DesignerID, auth.MustIdentity(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

// =====================================================
// POST /api/admin/relocations/repair
// =====================================================

// @Summary      Repair relocations
// @Description  Finish object moves interrupted between copy and delete
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  storage.RepairReport
// @Router       /admin/relocations/repair [post]
func (h *Handler) RepairRelocations(c *fiber.Ctx) error {
	if err := auth.Authorize(auth.ActionRepairStorage, auth.MustIdentity(c), nil); err != nil {
		return err
	}
	report, err := h.repairer.RepairRelocations(c.UserContext())
	if err != nil {
		return apperror.Internal("Relocation repair failed", err)
	}
	return c.JSON(report)
}
