package projects

import (
	"errors"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/aldoetobex/interior-mp-backend/internal/auth"
	"github.com/aldoetobex/interior-mp-backend/pkg/apperror"
	"github.com/aldoetobex/interior-mp-backend/pkg/models"
	"github.com/aldoetobex/interior-mp-backend/pkg/validation"
)

const (
	maxFiles    = 10
	maxFileSize = 10 * 1024 * 1024
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// ParseID reads a positive numeric path parameter.
func ParseID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.Errorf("Invalid %s", name)
	}
	return uint(id), nil
}

// Initialize Project godoc
// @Summary      Initialize project
// @Description  Create a bare draft project and return its storage prefix
// @Tags         projects
// @Security     BearerAuth
// @Produce      json
// @Success      201  {object}  map[string]any  "projectId, storagePrefix"
// @Failure      401  {object}  models.ErrorResponse
// @Router       /projects/initialize [post]
func (h *Handler) Initialize(c *fiber.Ctx) error {
	id, prefix, err := h.svc.InitializeProject(c.UserContext(), auth.MustIdentity(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "projectId": id, "storagePrefix": prefix})
}

// Create Project godoc
// @Summary      Create project
// @Description  Client submits rooms, photos and floor plans in one call
// @Tags         projects
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateProjectInput  true  "Project payload"
// @Success      201  {object}  map[string]any  "success, projectId"
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      500  {object}  models.ErrorResponse
// @Router       /projects [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateProjectInput
	if err := c.BodyParser(&in); err != nil {
		return apperror.Validation("Invalid request body")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	id, err := h.svc.CreateProject(c.UserContext(), auth.MustIdentity(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "projectId": id})
}

// @Summary      Update project
// @Tags         projects
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  int                 true  "project id"
// @Param        payload  body  UpdateProjectInput  true  "Fields to change"
// @Success      200  {object}  map[string]bool
// @Router       /projects/{id} [put]
func (h *Handler) Update(c *fiber.Ctx) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}
	var in UpdateProjectInput
	if err := c.BodyParser(&in); err != nil {
		return apperror.Validation("Invalid request body")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	if err := h.svc.UpdateProject(c.UserContext(), id, auth.MustIdentity(c), in); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

// @Summary      Save progress
// @Description  Owner saves one wizard step; taggedRooms replaces the room set
// @Tags         projects
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  int                true  "project id"
// @Param        payload  body  SaveProgressInput  true  "Progress payload"
// @Success      200  {object}  map[string]bool
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /projects/{id}/progress [put]
func (h *Handler) SaveProgress(c *fiber.Ctx) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}
	var in SaveProgressInput
	if err := c.BodyParser(&in); err != nil {
		return apperror.Validation("Invalid request body")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	if err := h.svc.SaveProgress(c.UserContext(), id, auth.MustIdentity(c), in); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

// @Summary      List projects
// @Description  Designers see assigned projects; everyone else sees their own
// @Tags         projects
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  ProjectView
// @Router       /projects [get]
func (h *Handler) List(c *fiber.Ctx) error {
	rows, err := h.svc.ListProjects(c.UserContext(), auth.MustIdentity(c))
	if err != nil {
		return err
	}
	return c.JSON(rows)
}

// @Summary      Project detail
// @Tags         projects
// @Security     BearerAuth
// @Produce      json
// @Param        id   path int true "project id"
// @Success      200  {object}  ProjectView
// @Failure      404  {object}  models.ErrorResponse
// @Router       /projects/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}
	v, err := h.svc.GetProject(c.UserContext(), id, auth.MustIdentity(c))
	if err != nil {
		return err
	}
	return c.JSON(v)
}

// @Summary      Project history
// @Tags         projects
// @Security     BearerAuth
// @Produce      json
// @Param        id   path int true "project id"
// @Success      200  {array}  models.ProjectHistory
// @Router       /projects/{id}/history [get]
func (h *Handler) History(c *fiber.Ctx) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}
	rows, err := h.svc.History(c.UserContext(), id, auth.MustIdentity(c))
	if err != nil {
		return err
	}
	return c.JSON(rows)
}

// @Summary      Project files
// @Description  Every object under the project prefix, in natural order
// @Tags         projects
// @Security     BearerAuth
// @Produce      json
// @Param        id   path int true "project id"
// @Success      200  {array}  FileView
// @Router       /projects/{id}/files [get]
func (h *Handler) Files(c *fiber.Ctx) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}
	files, err := h.svc.ListFiles(c.UserContext(), id, auth.MustIdentity(c))
	if err != nil {
		return err
	}
	return c.JSON(files)
}

/* ============================ Designer uploads ============================ */

// @Summary      Upload designer floor plan
// @Tags         designer
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id    path      int   true  "project id"
// @Param        file  formData  file  true  "floor plan"
// @Success      200  {object}  map[string]string  "url"
// @Router       /designer/projects/{id}/floor-plan [post]
func (h *Handler) UploadDesignerFloorPlan(c *fiber.Ctx) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return apperror.Validation("file is required")
	}
	if reason := checkFile(fh); reason != "" {
		return apperror.Validation(reason)
	}
	up, closeFn, err := openUpload(fh)
	if err != nil {
		return err
	}
	defer closeFn()

	url, err := h.svc.UploadDesignerFloorPlan(c.UserContext(), id, auth.MustIdentity(c), up)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "url": url})
}

// @Summary      Upload final designs
// @Description  Appends final designs and marks the project completed
// @Tags         designer
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id     path      int     true  "project id"
// @Param        files  formData  []file  true  "designs (max 10)"
// @Success      201  {array}  FinalDesignView
// @Router       /designer/projects/{id}/final-designs [post]
func (h *Handler) UploadFinalDesigns(c *fiber.Ctx) error {
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}
	files, err := formFiles(c)
	if err != nil {
		return err
	}
	for _, fh := range files {
		if reason := checkFile(fh); reason != "" {
			return apperror.Validation(fh.Filename + ": " + reason)
		}
	}

	ups := make([]Upload, 0, len(files))
	for _, fh := range files {
		up, closeFn, err := openUpload(fh)
		if err != nil {
			return err
		}
		defer closeFn()
		ups = append(ups, up)
	}

	designs, err := h.svc.UploadFinalDesigns(c.UserContext(), id, auth.MustIdentity(c), ups)
	if err != nil {
		return err
	}
	out := make([]FinalDesignView, 0, len(designs))
	for _, d := range designs {
		out = append(out, FinalDesignView{ID: d.ID, DesignURL: d.DesignURL, CreatedAt: d.CreatedAt})
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

/* ============================ Direct uploads ============================ */

type roomPhotoForm struct {
	Type   string `json:"type" validate:"phototype"`
	RoomID string `json:"roomId" validate:"omitempty,max=64"`
}

// UploadRoomPhotos stages room photos (POST /api/upload).
func (h *Handler) UploadRoomPhotos(c *fiber.Ctx) error {
	form := roomPhotoForm{
		Type:   strings.TrimSpace(c.FormValue("type", string(models.PhotoExisting))),
		RoomID: strings.TrimSpace(c.FormValue("roomId")),
	}
	if errs, _ := validation.Validate(form); errs != nil {
		return validation.Respond(c, errs)
	}
	return h.stage(c, StageInput{Kind: "room-photo", RoomID: form.RoomID, Type: form.Type})
}

// UploadFloorPlan stages an original floor plan (POST /api/upload-floor-plan).
func (h *Handler) UploadFloorPlan(c *fiber.Ctx) error {
	return h.stage(c, StageInput{Kind: "floor-plan", Type: "original"})
}

// UploadTaggedFloorPlan stages a room-tagged floor plan (POST /api/upload-tagged-floor-plan).
func (h *Handler) UploadTaggedFloorPlan(c *fiber.Ctx) error {
	return h.stage(c, StageInput{Kind: "tagged-floor-plan", Type: "tagged"})
}

// stage uploads every file of the form. Like the other multi-file endpoints
// it answers 201 with per-file results; failed files carry an "error" field.
func (h *Handler) stage(c *fiber.Ctx, in StageInput) error {
	files, err := formFiles(c)
	if err != nil {
		return err
	}
	in.StoragePrefix = optionalFormValue(c, "storagePrefix")
	caller := auth.MustIdentity(c)

	results := make([]fiber.Map, 0, len(files))
	urls := make([]string, 0, len(files))
	for _, fh := range files {
		res := fiber.Map{"name": fh.Filename, "size": fh.Size}
		if reason := checkFile(fh); reason != "" {
			res["error"] = reason
			results = append(results, res)
			continue
		}
		up, closeFn, err := openUpload(fh)
		if err != nil {
			res["error"] = "open failed"
			results = append(results, res)
			continue
		}
		url, err := h.svc.Stage(c.UserContext(), caller, in, up)
		closeFn()
		if err != nil {
			// a bad prefix fails every file the same way
			if requestLevel(err) {
				return err
			}
			res["error"] = "upload failed"
			results = append(results, res)
			continue
		}
		res["url"] = url
		urls = append(urls, url)
		results = append(results, res)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"urls": urls, "results": results})
}

// optionalFormValue tells a field sent empty apart from one not sent at all.
func optionalFormValue(c *fiber.Ctx, name string) *string {
	form, err := c.MultipartForm()
	if err != nil {
		return nil
	}
	values, ok := form.Value[name]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

func requestLevel(err error) bool {
	for _, target := range []error{apperror.ErrValidationFailed, apperror.ErrNotFound, apperror.ErrForbidden} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func formFiles(c *fiber.Ctx) ([]*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, apperror.Validation("multipart form required; use files[]")
	}
	files := form.File["files[]"]
	if len(files) == 0 {
		files = form.File["files"]
	}
	if len(files) == 0 {
		files = form.File["file"]
	}
	if len(files) == 0 {
		return nil, apperror.Validation("files are required (use key: files[])")
	}
	if len(files) > maxFiles {
		return nil, apperror.Errorf("max %d files allowed", maxFiles)
	}
	return files, nil
}

// contentTypeOf trusts the part header and falls back to the extension.
func contentTypeOf(fh *multipart.FileHeader) string {
	ct := fh.Header.Get(fiber.HeaderContentType)
	if ct == "" || ct == "application/octet-stream" {
		ct = mime.TypeByExtension(strings.ToLower(filepath.Ext(fh.Filename)))
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}

// checkFile returns why a file is rejected, or "".
func checkFile(fh *multipart.FileHeader) string {
	if fh.Size <= 0 {
		return "empty file"
	}
	if fh.Size > maxFileSize {
		return "max 10MB per file"
	}
	switch contentTypeOf(fh) {
	case "image/jpeg", "image/png", "image/webp", "application/pdf":
		return ""
	default:
		return "only JPEG, PNG, WEBP or PDF are allowed"
	}
}

func openUpload(fh *multipart.FileHeader) (Upload, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return Upload{}, nil, apperror.Validation("could not read " + fh.Filename)
	}
	return Upload{Filename: fh.Filename, ContentType: contentTypeOf(fh), Body: f}, func() { _ = f.Close() }, nil
}
