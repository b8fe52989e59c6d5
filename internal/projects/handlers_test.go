package projects

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aldoetobex/interior-mp-backend/internal/auth"
	"github.com/aldoetobex/interior-mp-backend/internal/storage"
	"github.com/aldoetobex/interior-mp-backend/internal/storage/storagetest"
	"github.com/aldoetobex/interior-mp-backend/internal/testutil"
	"github.com/aldoetobex/interior-mp-backend/pkg/models"
)

/* ============================================================================
   Helpers
   ============================================================================ */

type testEnv struct {
	app    *fiber.App
	db     *gorm.DB
	mem    *storagetest.Memory
	tokens *auth.Tokens
}

// newTestApp wires the auth and project routes the way the server does.
func newTestApp(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.OpenDB(t)
	mem := storagetest.NewMemory()
	reloc := storage.NewRelocator(mem, storage.NewGormJournal(db), zerolog.Nop())
	tokens := auth.NewTokens("test-secret", time.Hour)

	ah := auth.NewHandler(db, tokens)
	ph := NewHandler(NewService(db, reloc, zerolog.Nop()))
	protected := auth.RequireAuth(db, tokens)

	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	api := app.Group("/api")
	api.Post("/signup", ah.Signup)
	api.Post("/login", ah.Login)

	api.Post("/upload", protected, ph.UploadRoomPhotos)
	api.Post("/upload-floor-plan", protected, ph.UploadFloorPlan)

	api.Post("/projects/initialize", protected, ph.Initialize)
	api.Post("/projects", protected, ph.Create)
	api.Get("/projects", protected, ph.List)
	api.Get("/projects/:id", protected, ph.Get)
	api.Put("/projects/:id", protected, ph.Update)
	api.Put("/projects/:id/progress", protected, ph.SaveProgress)
	api.Get("/projects/:id/files", protected, ph.Files)
	api.Post("/designer/projects/:id/final-designs", protected, ph.UploadFinalDesigns)

	return &testEnv{app: app, db: db, mem: mem, tokens: tokens}
}

func (e *testEnv) do(t *testing.T, req *http.Request, token string) (int, []byte) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func (e *testEnv) json(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	return e.do(t, req, token)
}

func (e *testEnv) multipart(t *testing.T, path, token string, fields map[string]string, names ...string) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, n := range names {
		fw, err := w.CreateFormFile("files[]", n)
		require.NoError(t, err)
		_, _ = fw.Write([]byte("content of " + n))
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return e.do(t, req, token)
}

func (e *testEnv) tokenFor(t *testing.T, u models.User) string {
	t.Helper()
	tok, err := e.tokens.Issue(u)
	require.NoError(t, err)
	return tok
}

/* ============================================================================
   End to end
   ============================================================================ */

func TestEndToEnd_SignupLoginCreateGet(t *testing.T) {
	e := newTestApp(t)

	code, raw := e.json(t, http.MethodPost, "/api/signup", "", map[string]any{
		"email": "a@x.com", "password": "p", "tel": "555",
		"userType": "client", "firstName": "A", "lastName": "B",
	})
	require.Equal(t, http.StatusOK, code, string(raw))

	code, raw = e.json(t, http.MethodPost, "/api/login", "", map[string]any{"email": "a@x.com", "password": "p"})
	require.Equal(t, http.StatusOK, code, string(raw))
	var login auth.AuthResponse
	require.NoError(t, json.Unmarshal(raw, &login))
	require.NotEmpty(t, login.Token)

	code, raw = e.json(t, http.MethodPost, "/api/projects", login.Token, map[string]any{
		"rooms":        []map[string]any{{"type": "Kitchen", "dimensions": map[string]any{"squareFootage": 120}}},
		"hasFloorPlan": false,
	})
	require.Equal(t, http.StatusCreated, code, string(raw))
	var created struct {
		Success   bool `json:"success"`
		ProjectID uint `json:"projectId"`
	}
	require.NoError(t, json.Unmarshal(raw, &created))
	assert.True(t, created.Success)
	assert.Equal(t, uint(1), created.ProjectID)

	code, raw = e.json(t, http.MethodGet, "/api/projects/1", login.Token, nil)
	require.Equal(t, http.StatusOK, code, string(raw))
	var v ProjectView
	require.NoError(t, json.Unmarshal(raw, &v))
	assert.Equal(t, models.ProjectPending, v.Status)
	require.Len(t, v.Rooms, 1)
	assert.Equal(t, "Kitchen", v.Rooms[0].Type)
	require.NotNil(t, v.Rooms[0].SquareFootage)
	assert.Equal(t, 120.0, *v.Rooms[0].SquareFootage)
	assert.Equal(t, "a@x.com", v.Owner.Email)
}

func TestCreate_EmptyRoomsIsValidationError(t *testing.T) {
	e := newTestApp(t)
	u := testutil.CreateUser(t, e.db, "c@x.com", models.RoleClient)

	code, raw := e.json(t, http.MethodPost, "/api/projects", e.tokenFor(t, u), map[string]any{"rooms": []any{}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(raw), "rooms")
}

func TestProjects_RequireToken(t *testing.T) {
	e := newTestApp(t)
	code, raw := e.json(t, http.MethodGet, "/api/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	var out models.ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "UNAUTHENTICATED", out.Code)
	assert.NotEmpty(t, out.Error)
}

func TestGet_HiddenFromStrangers(t *testing.T) {
	e := newTestApp(t)
	owner := testutil.CreateUser(t, e.db, "c@x.com", models.RoleClient)
	stranger := testutil.CreateUser(t, e.db, "s@x.com", models.RoleClient)

	code, _ := e.json(t, http.MethodPost, "/api/projects", e.tokenFor(t, owner), map[string]any{
		"rooms": []map[string]any{{"type": "Kitchen"}},
	})
	require.Equal(t, http.StatusCreated, code)

	code, raw := e.json(t, http.MethodGet, "/api/projects/1", e.tokenFor(t, stranger), nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, string(raw), "NOT_FOUND")

	code, _ = e.json(t, http.MethodGet, "/api/projects/abc", e.tokenFor(t, owner), nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

/* ============================================================================
   Uploads
   ============================================================================ */

func TestUpload_StageThenCreate(t *testing.T) {
	e := newTestApp(t)
	u := testutil.CreateUser(t, e.db, "c@x.com", models.RoleClient)
	tok := e.tokenFor(t, u)

	code, raw := e.multipart(t, "/api/upload", tok, map[string]string{"roomId": "r1", "type": "inspiration"}, "mood.png", "notes.txt")
	require.Equal(t, http.StatusCreated, code, string(raw))
	var staged struct {
		URLs    []string         `json:"urls"`
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(raw, &staged))
	require.Len(t, staged.URLs, 1)
	require.Len(t, staged.Results, 2)
	assert.Contains(t, staged.Results[1]["error"], "only JPEG")
	assert.Contains(t, staged.URLs[0], "uploads/room-photo/room-r1-inspiration-")

	code, raw = e.json(t, http.MethodPost, "/api/projects", tok, map[string]any{
		"rooms": []map[string]any{{"type": "Den", "inspirationPhotos": staged.URLs}},
	})
	require.Equal(t, http.StatusCreated, code, string(raw))
	assert.Empty(t, e.mem.Keys("uploads/"))
	assert.Len(t, e.mem.Keys("projects/project-1/"), 1)
}

func TestUpload_StoragePrefix(t *testing.T) {
	e := newTestApp(t)
	owner := testutil.CreateUser(t, e.db, "c@x.com", models.RoleClient)
	stranger := testutil.CreateUser(t, e.db, "s@x.com", models.RoleClient)

	code, raw := e.json(t, http.MethodPost, "/api/projects/initialize", e.tokenFor(t, owner), nil)
	require.Equal(t, http.StatusCreated, code, string(raw))
	var initResp struct {
		ProjectID     uint   `json:"projectId"`
		StoragePrefix string `json:"storagePrefix"`
	}
	require.NoError(t, json.Unmarshal(raw, &initResp))
	assert.Equal(t, fmt.Sprintf("projects/project-%d", initResp.ProjectID), initResp.StoragePrefix)

	code, raw = e.multipart(t, "/api/upload-floor-plan", e.tokenFor(t, owner), map[string]string{"storagePrefix": initResp.StoragePrefix}, "plan.pdf")
	require.Equal(t, http.StatusCreated, code, string(raw))
	assert.Len(t, e.mem.Keys(initResp.StoragePrefix+"/original-plan-"), 1)

	code, _ = e.multipart(t, "/api/upload-floor-plan", e.tokenFor(t, stranger), map[string]string{"storagePrefix": initResp.StoragePrefix}, "plan.pdf")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = e.multipart(t, "/api/upload-floor-plan", e.tokenFor(t, owner), map[string]string{"storagePrefix": "projects/../x"}, "plan.pdf")
	assert.Equal(t, http.StatusBadRequest, code)

	before := len(e.mem.Keys("uploads/"))
	code, raw = e.multipart(t, "/api/upload-floor-plan", e.tokenFor(t, owner), map[string]string{"storagePrefix": ""}, "plan.pdf")
	assert.Equal(t, http.StatusBadRequest, code, string(raw))
	assert.Len(t, e.mem.Keys("uploads/"), before)
}

func TestFinalDesigns_HTTP(t *testing.T) {
	e := newTestApp(t)
	owner := testutil.CreateUser(t, e.db, "c@x.com", models.RoleClient)
	designer := testutil.CreateUser(t, e.db, "d@x.com", models.RoleDesigner)

	code, _ := e.json(t, http.MethodPost, "/api/projects", e.tokenFor(t, owner), map[string]any{
		"rooms": []map[string]any{{"type": "Kitchen"}},
	})
	require.Equal(t, http.StatusCreated, code)
	require.NoError(t, e.db.Model(&models.Project{}).Where("id = 1").Update("designer_id", designer.ID).Error)

	code, raw := e.multipart(t, "/api/designer/projects/1/final-designs", e.tokenFor(t, designer), nil, "10.png", "2.png", "1.png")
	require.Equal(t, http.StatusCreated, code, string(raw))
	var out []FinalDesignView
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Len(t, out, 3)

	code, raw = e.json(t, http.MethodGet, "/api/projects/1/files", e.tokenFor(t, owner), nil)
	require.Equal(t, http.StatusOK, code, string(raw))
	var files []FileView
	require.NoError(t, json.Unmarshal(raw, &files))
	require.Len(t, files, 3)
	assert.Equal(t, "projects/project-1/final-design-1.png", files[0].Key)
	assert.Equal(t, "projects/project-1/final-design-3.png", files[2].Key)

	data, ok := e.mem.Get("projects/project-1/final-design-3.png")
	require.True(t, ok)
	assert.Equal(t, "content of 10.png", string(data))

	code, raw = e.json(t, http.MethodGet, "/api/projects/1", e.tokenFor(t, owner), nil)
	require.Equal(t, http.StatusOK, code)
	var v ProjectView
	require.NoError(t, json.Unmarshal(raw, &v))
	assert.True(t, v.Completed)
	assert.Equal(t, models.ProjectCompleted, v.Status)
}
