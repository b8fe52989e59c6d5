package projects

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/aldoetobex/interior-mp-backend/internal/auth"
	"github.com/aldoetobex/interior-mp-backend/internal/storage"
	"github.com/aldoetobex/interior-mp-backend/internal/storage/storagetest"
	"github.com/aldoetobex/interior-mp-backend/internal/testutil"
	"github.com/aldoetobex/interior-mp-backend/pkg/apperror"
	"github.com/aldoetobex/interior-mp-backend/pkg/models"
)

type ProjectServiceSuite struct {
	suite.Suite
	ctx   context.Context
	db    *gorm.DB
	mem   *storagetest.Memory
	svc   *Service
	clock *fakeClock

	client, other, designer, otherDesigner, admin auth.Identity
}

// fakeClock advances one second per reading unless frozen.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func (c *fakeClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func identityOf(u models.User) auth.Identity {
	return auth.Identity{UserID: u.ID, Email: u.Email, Role: u.Role}
}

func (s *ProjectServiceSuite) SetupTest() {
	t := s.T()
	s.ctx = context.Background()
	s.db = testutil.OpenDB(t)
	s.mem = storagetest.NewMemory()

	// s.db has a single connection, shared by the workflow and the journal.
	s.svc = NewService(s.db, storage.NewRelocator(s.mem, storage.NewGormJournal(s.db), zerolog.Nop()), zerolog.Nop())
	s.clock = &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s.svc.now = s.clock.now

	s.client = identityOf(testutil.CreateUser(t, s.db, "client@x.com", models.RoleClient))
	s.other = identityOf(testutil.CreateUser(t, s.db, "other@x.com", models.RoleClient))
	s.designer = identityOf(testutil.CreateUser(t, s.db, "designer@x.com", models.RoleDesigner))
	s.otherDesigner = identityOf(testutil.CreateUser(t, s.db, "designer2@x.com", models.RoleDesigner))
	s.admin = identityOf(testutil.CreateUser(t, s.db, "admin@x.com", models.RoleAdmin))
}

func TestProjectServiceSuite(t *testing.T) {
	suite.Run(t, new(ProjectServiceSuite))
}

/* ------------------------------- helpers -------------------------------- */

func (s *ProjectServiceSuite) staged(name string) string {
	key := "uploads/room-photo/" + name
	s.mem.Put(key, []byte(name))
	return s.mem.PublicURL(key)
}

func (s *ProjectServiceSuite) createProject(owner auth.Identity, rooms ...RoomInput) uint {
	if len(rooms) == 0 {
		rooms = []RoomInput{{Type: "Kitchen"}}
	}
	id, err := s.svc.CreateProject(s.ctx, owner, CreateProjectInput{Rooms: rooms})
	s.Require().NoError(err)
	return id
}

func (s *ProjectServiceSuite) assign(projectID uint, designer auth.Identity) {
	s.Require().NoError(s.db.Model(&models.Project{}).Where("id = ?", projectID).Update("designer_id", designer.UserID).Error)
}

func (s *ProjectServiceSuite) count(model any, where string, args ...any) int64 {
	var n int64
	s.Require().NoError(s.db.Model(model).Where(where, args...).Count(&n).Error)
	return n
}

func files(names ...string) []Upload {
	out := make([]Upload, 0, len(names))
	for _, n := range names {
		out = append(out, Upload{Filename: n, ContentType: "image/png", Body: bytes.NewReader([]byte(n))})
	}
	return out
}

func f64(v float64) *float64 { return &v }

/* ---------------------------- CreateProject ----------------------------- */

func (s *ProjectServiceSuite) TestCreateProject_RelocatesEverything() {
	fp := s.staged("plan.pdf")
	photo := s.staged("kitchen-1.jpg")
	insp := s.staged("inspo-1.jpg")

	id, err := s.svc.CreateProject(s.ctx, s.client, CreateProjectInput{
		Name:         "Flat",
		HasFloorPlan: true,
		FloorPlanURL: fp,
		Rooms: []RoomInput{{
			Type:              "Kitchen",
			Dimensions:        Dimensions{SquareFootage: f64(120)},
			Style:             "Scandi",
			ExistingPhotos:    []string{photo},
			InspirationPhotos: []string{insp},
		}},
	})
	s.Require().NoError(err)

	v, err := s.svc.GetProject(s.ctx, id, s.client)
	s.Require().NoError(err)
	s.Equal(models.ProjectPending, v.Status)
	s.False(v.Completed)
	s.Require().NotNil(v.FloorPlan)
	s.Equal(s.mem.PublicURL(fmt.Sprintf("projects/project-%d/plan.pdf", id)), v.FloorPlan.OriginalURL)
	s.Require().Len(v.Rooms, 1)
	s.Equal("Scandi", v.Rooms[0].Style)
	s.Equal([]string{s.mem.PublicURL(fmt.Sprintf("projects/project-%d/kitchen-1.jpg", id))}, v.Rooms[0].ExistingPhotos)
	s.Len(v.Rooms[0].InspirationPhotos, 1)
	s.Empty(s.mem.Keys("uploads/"))
}

func (s *ProjectServiceSuite) TestCreateProject_AtomicWhenPhotoRelocationFails() {
	for n := 1; n <= 6; n++ {
		failing := n / 2
		if failing < 1 {
			failing = 1
		}
		rooms := make([]RoomInput, 0, n)
		for i := 1; i <= n; i++ {
			rooms = append(rooms, RoomInput{
				Type:           fmt.Sprintf("Room %d", i),
				Style:          "any",
				ExistingPhotos: []string{s.staged(fmt.Sprintf("n%d-room%d.jpg", n, i))},
			})
		}
		bad := fmt.Sprintf("n%d-room%d.jpg", n, failing)
		s.mem.FailCopy = func(src, _ string) error {
			if strings.HasSuffix(src, bad) {
				return storagetest.ErrInjected
			}
			return nil
		}

		_, err := s.svc.CreateProject(s.ctx, s.client, CreateProjectInput{Rooms: rooms})
		s.Require().Error(err, "n=%d", n)
		s.ErrorIs(err, apperror.ErrCreationFailed, "n=%d", n)

		s.Zero(s.count(&models.Project{}, "1 = 1"), "n=%d", n)
		s.Zero(s.count(&models.Room{}, "1 = 1"), "n=%d", n)
		s.Zero(s.count(&models.RoomPhoto{}, "1 = 1"), "n=%d", n)
		s.Zero(s.count(&models.RoomDesignPreference{}, "1 = 1"), "n=%d", n)

		// Staged photos stay put and no copy survives in a project prefix.
		for i := 1; i <= n; i++ {
			s.True(s.mem.Has(fmt.Sprintf("uploads/room-photo/n%d-room%d.jpg", n, i)), "n=%d room=%d", n, i)
		}
		s.Empty(s.mem.Keys("projects/"), "n=%d", n)
	}
}

func (s *ProjectServiceSuite) TestCreateProject_SharesOneConnectionWithJournal() {
	done := make(chan error, 1)
	go func() {
		_, err := s.svc.CreateProject(s.ctx, s.client, CreateProjectInput{
			Rooms: []RoomInput{{Type: "Kitchen", ExistingPhotos: []string{s.staged("pool.jpg")}}},
		})
		done <- err
	}()

	select {
	case err := <-done:
		s.Require().NoError(err)
	case <-time.After(5 * time.Second):
		s.FailNow("CreateProject did not return with a one-connection pool")
	}
	s.Equal(int64(1), s.count(&models.Relocation{}, "state = ?", models.RelocationDone))
	s.Empty(s.mem.Keys("uploads/"))
}

func (s *ProjectServiceSuite) TestCreateProject_DeleteFailureIsJournaled() {
	s.mem.FailDelete = func(key string) error {
		if strings.HasPrefix(key, "uploads/") {
			return storagetest.ErrInjected
		}
		return nil
	}
	id := s.createProject(s.client, RoomInput{Type: "Kitchen", ExistingPhotos: []string{s.staged("left.jpg")}})

	s.True(s.mem.Has(fmt.Sprintf("projects/project-%d/left.jpg", id)))
	s.True(s.mem.Has("uploads/room-photo/left.jpg"))
	s.Equal(int64(1), s.count(&models.Relocation{}, "state = ?", models.RelocationCopied))

	s.mem.FailDelete = nil
	report, err := s.svc.relocator.RepairRelocations(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, report.Repaired)
	s.False(s.mem.Has("uploads/room-photo/left.jpg"))
}

func (s *ProjectServiceSuite) TestCreateProject_Validation() {
	_, err := s.svc.CreateProject(s.ctx, s.client, CreateProjectInput{})
	s.ErrorIs(err, apperror.ErrValidationFailed)

	_, err = s.svc.CreateProject(s.ctx, s.client, CreateProjectInput{
		Rooms: []RoomInput{{Type: "Kitchen", ExistingPhotos: []string{"https://evil.example/x.jpg"}}},
	})
	s.ErrorIs(err, apperror.ErrValidationFailed)

	_, err = s.svc.CreateProject(s.ctx, s.designer, CreateProjectInput{Rooms: []RoomInput{{Type: "Kitchen"}}})
	s.ErrorIs(err, apperror.ErrForbidden)
}

/* --------------------------- InitializeProject -------------------------- */

func (s *ProjectServiceSuite) TestInitializeProject_WritesPlaceholder() {
	id, prefix, err := s.svc.InitializeProject(s.ctx, s.client)
	s.Require().NoError(err)
	s.Equal(fmt.Sprintf("projects/project-%d", id), prefix)
	s.True(s.mem.Has(prefix + "/.placeholder"))

	var p models.Project
	s.Require().NoError(s.db.First(&p, id).Error)
	s.Equal(models.ProjectDraft, p.Status)

	files, err := s.svc.ListFiles(s.ctx, id, s.client)
	s.Require().NoError(err)
	s.Empty(files)
}

func (s *ProjectServiceSuite) TestInitializeProject_PlaceholderFailureRollsBack() {
	s.mem.FailUpload = func(string) error { return storagetest.ErrInjected }
	_, _, err := s.svc.InitializeProject(s.ctx, s.client)
	s.ErrorIs(err, apperror.ErrCreationFailed)
	s.Zero(s.count(&models.Project{}, "1 = 1"))
}

/* ----------------------------- SaveProgress ----------------------------- */

func (s *ProjectServiceSuite) TestSaveProgress_ReplacesRoomSet() {
	id := s.createProject(s.client)

	first := SaveProgressInput{
		CurrentStep: 2,
		DesignType:  "full",
		TaggedRooms: []TaggedRoom{
			{Key: "r1", Type: "Living", ExistingPhotos: []string{s.staged("living.jpg")}},
			{Key: "r2", Type: "Bath"},
		},
		RoomDetails: map[string]RoomDetail{
			"r1": {Style: "Boho", Dimensions: Dimensions{Length: f64(4)}},
			"r2": {},
		},
	}
	s.Require().NoError(s.svc.SaveProgress(s.ctx, id, s.client, first))

	v, err := s.svc.GetProject(s.ctx, id, s.client)
	s.Require().NoError(err)
	s.Require().Len(v.Rooms, 2)
	s.Equal("Living", v.Rooms[0].Type)
	s.Equal("Boho", v.Rooms[0].Style)
	s.Equal(4.0, *v.Rooms[0].Length)
	s.Len(v.Rooms[0].ExistingPhotos, 1)
	s.Equal(int64(1), s.count(&models.RoomDesignPreference{}, "1 = 1"), "preference only for styled rooms")

	second := SaveProgressInput{
		CurrentStep: 3,
		TaggedRooms: []TaggedRoom{{Key: "r9", Type: "Office"}},
		RoomDetails: map[string]RoomDetail{"r9": {Description: "quiet"}},
	}
	s.Require().NoError(s.svc.SaveProgress(s.ctx, id, s.client, second))

	v, err = s.svc.GetProject(s.ctx, id, s.client)
	s.Require().NoError(err)
	s.Require().Len(v.Rooms, 1)
	s.Equal("Office", v.Rooms[0].Type)
	s.Equal("quiet", v.Rooms[0].Description)
	s.Equal(3, v.CurrentStep)
	s.Equal(int64(1), s.count(&models.Room{}, "project_id = ?", id))
	s.Zero(s.count(&models.RoomPhoto{}, "1 = 1"))
}

func (s *ProjectServiceSuite) TestSaveProgress_WithoutTaggedRoomsKeepsRooms() {
	id := s.createProject(s.client, RoomInput{Type: "Kitchen"}, RoomInput{Type: "Hall"})
	s.Require().NoError(s.svc.SaveProgress(s.ctx, id, s.client, SaveProgressInput{CurrentStep: 1, Status: "in_progress"}))

	v, err := s.svc.GetProject(s.ctx, id, s.client)
	s.Require().NoError(err)
	s.Len(v.Rooms, 2)
	s.Equal(models.ProjectInProgress, v.Status)
}

func (s *ProjectServiceSuite) TestSaveProgress_FloorPlans() {
	id, prefix, err := s.svc.InitializeProject(s.ctx, s.client)
	s.Require().NoError(err)

	direct := prefix + "/original-plan-1-abc.png"
	s.mem.Put(direct, []byte("x"))
	tagged := s.staged("tagged.png")

	s.Require().NoError(s.svc.SaveProgress(s.ctx, id, s.client, SaveProgressInput{
		HasFloorPlan:  true,
		FloorPlanURLs: []string{s.mem.PublicURL(direct), tagged},
	}))

	v, err := s.svc.GetProject(s.ctx, id, s.client)
	s.Require().NoError(err)
	s.Require().NotNil(v.FloorPlan)
	s.Equal(s.mem.PublicURL(direct), v.FloorPlan.OriginalURL)
	s.Equal(s.mem.PublicURL(prefix+"/tagged.png"), v.FloorPlan.TaggedURL)
	s.True(v.HasFloorPlan)
}

func (s *ProjectServiceSuite) TestSaveProgress_Authorization() {
	id := s.createProject(s.client)
	s.assign(id, s.designer)
	in := SaveProgressInput{CurrentStep: 1}

	s.ErrorIs(s.svc.SaveProgress(s.ctx, id, s.other, in), apperror.ErrNotFound)
	s.ErrorIs(s.svc.SaveProgress(s.ctx, id, s.designer, in), apperror.ErrForbidden)
	s.ErrorIs(s.svc.SaveProgress(s.ctx, id, s.admin, in), apperror.ErrForbidden)
	s.ErrorIs(s.svc.SaveProgress(s.ctx, 999, s.client, in), apperror.ErrNotFound)
	s.ErrorIs(s.svc.SaveProgress(s.ctx, id, s.client, SaveProgressInput{Status: "completed"}), apperror.ErrValidationFailed)
}

func (s *ProjectServiceSuite) TestEdits_HideProjectBeforeCheckingURLs() {
	id := s.createProject(s.client)
	bad := "https://evil.example/x.jpg"

	s.ErrorIs(s.svc.SaveProgress(s.ctx, id, s.other, SaveProgressInput{FloorPlanURLs: []string{bad}}), apperror.ErrNotFound)
	s.ErrorIs(s.svc.UpdateProject(s.ctx, id, s.other, UpdateProjectInput{FloorPlanURL: &bad}), apperror.ErrNotFound)

	s.ErrorIs(s.svc.SaveProgress(s.ctx, id, s.client, SaveProgressInput{FloorPlanURLs: []string{bad}}), apperror.ErrValidationFailed)
	s.ErrorIs(s.svc.UpdateProject(s.ctx, id, s.client, UpdateProjectInput{FloorPlanURL: &bad}), apperror.ErrValidationFailed)
}

func (s *ProjectServiceSuite) TestSaveProgress_RelocationFailureRollsBack() {
	id := s.createProject(s.client, RoomInput{Type: "Kitchen"})
	s.mem.FailCopy = func(string, string) error { return storagetest.ErrInjected }

	err := s.svc.SaveProgress(s.ctx, id, s.client, SaveProgressInput{
		TaggedRooms: []TaggedRoom{{Type: "Den", ExistingPhotos: []string{s.staged("den.jpg")}}},
	})
	s.ErrorIs(err, apperror.ErrUpdateFailed)

	v, err := s.svc.GetProject(s.ctx, id, s.client)
	s.Require().NoError(err)
	s.Require().Len(v.Rooms, 1)
	s.Equal("Kitchen", v.Rooms[0].Type)
}

func (s *ProjectServiceSuite) TestLastModifiedNeverDecreases() {
	id := s.createProject(s.client)
	var before models.Project
	s.Require().NoError(s.db.First(&before, id).Error)

	s.clock.set(before.LastModifiedAt.Add(-time.Hour))
	s.Require().NoError(s.svc.SaveProgress(s.ctx, id, s.client, SaveProgressInput{CurrentStep: 1}))

	var after models.Project
	s.Require().NoError(s.db.First(&after, id).Error)
	s.False(after.LastModifiedAt.Before(before.LastModifiedAt))
}

/* ---------------------------- UpdateProject ----------------------------- */

func (s *ProjectServiceSuite) TestUpdateProject_Partial() {
	id := s.createProject(s.client)
	name := "  New   name "
	s.Require().NoError(s.svc.UpdateProject(s.ctx, id, s.client, UpdateProjectInput{Name: &name}))

	v, err := s.svc.GetProject(s.ctx, id, s.client)
	s.Require().NoError(err)
	s.Equal("New name", v.Name)
	s.Equal(models.ProjectPending, v.Status)

	s.ErrorIs(s.svc.UpdateProject(s.ctx, id, s.client, UpdateProjectInput{}), apperror.ErrValidationFailed)
	s.ErrorIs(s.svc.UpdateProject(s.ctx, id, s.other, UpdateProjectInput{Name: &name}), apperror.ErrNotFound)
}

/* ------------------------------ GetProject ------------------------------ */

func (s *ProjectServiceSuite) TestGetProject_AuthorizationBoundary() {
	ids := []uint{s.createProject(s.client), s.createProject(s.client)}
	s.assign(ids[0], s.designer)

	for _, id := range ids {
		_, err := s.svc.GetProject(s.ctx, id, s.client)
		s.NoError(err)
		_, err = s.svc.GetProject(s.ctx, id, s.admin)
		s.NoError(err)

		for _, stranger := range []auth.Identity{s.other, s.otherDesigner} {
			_, err = s.svc.GetProject(s.ctx, id, stranger)
			s.ErrorIs(err, apperror.ErrNotFound)
		}
	}

	_, err := s.svc.GetProject(s.ctx, ids[0], s.designer)
	s.NoError(err)
	_, err = s.svc.GetProject(s.ctx, ids[1], s.designer)
	s.ErrorIs(err, apperror.ErrNotFound)

	_, err = s.svc.GetProject(s.ctx, 4242, s.admin)
	s.ErrorIs(err, apperror.ErrNotFound)
}

/* ----------------------------- ListProjects ----------------------------- */

func (s *ProjectServiceSuite) TestListProjects_RoleScoped() {
	a1 := s.createProject(s.client)
	b1 := s.createProject(s.other)
	a2 := s.createProject(s.client)
	s.assign(a1, s.designer)
	s.assign(b1, s.designer)
	s.assign(a2, s.otherDesigner)

	ids := func(vs []ProjectView) []uint {
		out := []uint{}
		for _, v := range vs {
			out = append(out, v.ID)
		}
		return out
	}

	got, err := s.svc.ListProjects(s.ctx, s.client)
	s.Require().NoError(err)
	s.Equal([]uint{a2, a1}, ids(got))

	got, err = s.svc.ListProjects(s.ctx, s.designer)
	s.Require().NoError(err)
	s.Equal([]uint{b1, a1}, ids(got))

	got, err = s.svc.ListProjects(s.ctx, s.otherDesigner)
	s.Require().NoError(err)
	s.Equal([]uint{a2}, ids(got))

	got, err = s.svc.ListProjects(s.ctx, s.admin)
	s.Require().NoError(err)
	s.Empty(got)
}

/* --------------------------- Designer uploads --------------------------- */

func (s *ProjectServiceSuite) TestUploadFinalDesigns_TerminalAndAppending() {
	id := s.createProject(s.client)
	s.assign(id, s.designer)

	designs, err := s.svc.UploadFinalDesigns(s.ctx, id, s.designer, files("a.png", "b.png"))
	s.Require().NoError(err)
	s.Len(designs, 2)

	v, err := s.svc.GetProject(s.ctx, id, s.client)
	s.Require().NoError(err)
	s.True(v.Completed)
	s.Equal(models.ProjectCompleted, v.Status)
	s.Len(v.FinalDesigns, 2)

	_, err = s.svc.UploadFinalDesigns(s.ctx, id, s.admin, files("c.png"))
	s.Require().NoError(err)

	v, err = s.svc.GetProject(s.ctx, id, s.client)
	s.Require().NoError(err)
	s.True(v.Completed)
	s.Equal(models.ProjectCompleted, v.Status)
	s.Len(v.FinalDesigns, 3)

	s.ErrorIs(s.svc.SaveProgress(s.ctx, id, s.client, SaveProgressInput{CurrentStep: 9}), apperror.ErrConflict)
}

func (s *ProjectServiceSuite) TestUploadFinalDesigns_Authorization() {
	id := s.createProject(s.client)
	s.assign(id, s.designer)

	_, err := s.svc.UploadFinalDesigns(s.ctx, id, s.otherDesigner, files("a.png"))
	s.ErrorIs(err, apperror.ErrNotFound)
	_, err = s.svc.UploadFinalDesigns(s.ctx, id, s.client, files("a.png"))
	s.ErrorIs(err, apperror.ErrForbidden)
	_, err = s.svc.UploadFinalDesigns(s.ctx, id, s.designer, nil)
	s.ErrorIs(err, apperror.ErrValidationFailed)
	s.Zero(s.count(&models.FinalDesign{}, "1 = 1"))
}

func (s *ProjectServiceSuite) TestUploadFinalDesigns_NaturalOrder() {
	id := s.createProject(s.client)
	s.assign(id, s.designer)

	names := make([]string, 0, 20)
	for i := 1; i <= 20; i++ {
		names = append(names, fmt.Sprintf("design3/%d.jpg", i))
	}
	shuffled := append([]string(nil), names...)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	designs, err := s.svc.UploadFinalDesigns(s.ctx, id, s.designer, files(shuffled...))
	s.Require().NoError(err)
	s.Require().Len(designs, 20)

	listed, err := s.svc.ListFiles(s.ctx, id, s.client)
	s.Require().NoError(err)
	s.Require().Len(listed, 20)
	for i, f := range listed {
		want := fmt.Sprintf("projects/project-%d/final-design-%d.jpg", id, i+1)
		s.Equal(want, f.Key)
		s.Equal(s.mem.PublicURL(want), designs[i].DesignURL)
	}

	// final-design-n holds the n-th file in natural order
	for i, name := range names {
		data, ok := s.mem.Get(fmt.Sprintf("projects/project-%d/final-design-%d.jpg", id, i+1))
		s.Require().True(ok)
		s.Equal(name, string(data))
	}
}

func (s *ProjectServiceSuite) TestUploadDesignerFloorPlan() {
	id := s.createProject(s.client)
	s.assign(id, s.designer)

	url, err := s.svc.UploadDesignerFloorPlan(s.ctx, id, s.designer, files("plan.pdf")[0])
	s.Require().NoError(err)
	s.True(strings.HasPrefix(url, s.mem.PublicURL(fmt.Sprintf("projects/project-%d/", id))), url)

	v, err := s.svc.GetProject(s.ctx, id, s.client)
	s.Require().NoError(err)
	s.Require().NotNil(v.FloorPlan)
	s.Equal(url, v.FloorPlan.DesignerURL)
	s.Empty(s.mem.Keys("uploads/"))

	_, err = s.svc.UploadDesignerFloorPlan(s.ctx, id, s.client, files("plan.pdf")[0])
	s.ErrorIs(err, apperror.ErrForbidden)
}

/* ------------------------------- History -------------------------------- */

func (s *ProjectServiceSuite) TestHistory() {
	id := s.createProject(s.client)
	s.Require().NoError(s.svc.SaveProgress(s.ctx, id, s.client, SaveProgressInput{CurrentStep: 1}))

	rows, err := s.svc.History(s.ctx, id, s.client)
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal("created", rows[0].Action)
	s.Equal("progress_saved", rows[1].Action)

	_, err = s.svc.History(s.ctx, id, s.other)
	s.ErrorIs(err, apperror.ErrNotFound)
}

/* -------------------------------- Stage --------------------------------- */

func (s *ProjectServiceSuite) TestStage() {
	url, err := s.svc.Stage(s.ctx, s.client, StageInput{Kind: "room-photo", RoomID: "3", Type: "existing"}, files("a.png")[0])
	s.Require().NoError(err)
	s.Contains(url, "uploads/room-photo/room-3-existing-")

	id, prefix, err := s.svc.InitializeProject(s.ctx, s.client)
	s.Require().NoError(err)
	url, err = s.svc.Stage(s.ctx, s.client, StageInput{Kind: "floor-plan", Type: "original", StoragePrefix: &prefix}, files("plan.png")[0])
	s.Require().NoError(err)
	s.Contains(url, fmt.Sprintf("projects/project-%d/original-plan-", id))

	_, err = s.svc.Stage(s.ctx, s.other, StageInput{Kind: "floor-plan", StoragePrefix: &prefix}, files("plan.png")[0])
	s.ErrorIs(err, apperror.ErrNotFound)
	bad := "projects/nope"
	_, err = s.svc.Stage(s.ctx, s.client, StageInput{Kind: "floor-plan", StoragePrefix: &bad}, files("plan.png")[0])
	s.ErrorIs(err, apperror.ErrValidationFailed)
}

func (s *ProjectServiceSuite) TestStage_BlankPrefixIsRejected() {
	blank := "  "
	_, err := s.svc.Stage(s.ctx, s.client, StageInput{Kind: "floor-plan", Type: "original", StoragePrefix: &blank}, files("plan.png")[0])
	s.ErrorIs(err, apperror.ErrValidationFailed)
	s.Empty(s.mem.Keys("uploads/"))
}
