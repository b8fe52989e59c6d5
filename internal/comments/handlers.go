package comments

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aldoetobex/interior-mp-backend/internal/auth"
	"github.com/aldoetobex/interior-mp-backend/internal/projects"
	"github.com/aldoetobex/interior-mp-backend/pkg/apperror"
	"github.com/aldoetobex/interior-mp-backend/pkg/validation"
)

type AddCommentRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func target(c *fiber.Ctx) (Target, error) {
	projectID, err := projects.ParseID(c, "id")
	if err != nil {
		return Target{}, err
	}
	t := Target{ProjectID: projectID}
	if c.Params("designId") != "" {
		if t.DesignID, err = projects.ParseID(c, "designId"); err != nil {
			return Target{}, err
		}
	}
	return t, nil
}

// Add Comment godoc
// @Summary      Add comment
// @Description  Comment on a project (or one of its final designs) the caller can read
// @Tags         comments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id        path  int                true   "project id"
// @Param        designId  path  int                false  "final design id"
// @Param        payload   body  AddCommentRequest  true   "Comment"
// @Success      201  {object}  Comment
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /projects/{id}/comments [post]
// @Router       /projects/{id}/designs/{designId}/comments [post]
func (h *Handler) Add(c *fiber.Ctx) error {
	t, err := target(c)
	if err != nil {
		return err
	}
	var in AddCommentRequest
	if err := c.BodyParser(&in); err != nil {
		return apperror.Validation("Invalid request body")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	out, err := h.svc.Add(c.UserContext(), t, auth.MustIdentity(c), in.Text)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// @Summary      List comments
// @Description  Newest first
// @Tags         comments
// @Security     BearerAuth
// @Produce      json
// @Param        id        path  int  true   "project id"
// @Param        designId  path  int  false  "final design id"
// @Success      200  {array}  Comment
// @Router       /projects/{id}/comments [get]
// @Router       /projects/{id}/designs/{designId}/comments [get]
func (h *Handler) List(c *fiber.Ctx) error {
	t, err := target(c)
	if err != nil {
		return err
	}
	rows, err := h.svc.List(c.UserContext(), t, auth.MustIdentity(c))
	if err != nil {
		return err
	}
	return c.JSON(rows)
}
