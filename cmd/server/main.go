// @title           Interior Design Marketplace API
// @version         1.0
// @description     Clients describe rooms and floor plans, admins assign designers, designers deliver final designs.
// @BasePath        /api
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Format: Bearer <token>
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/aldoetobex/interior-mp-backend/internal/admin"
	"github.com/aldoetobex/interior-mp-backend/internal/auth"
	"github.com/aldoetobex/interior-mp-backend/internal/comments"
	"github.com/aldoetobex/interior-mp-backend/internal/config"
	"github.com/aldoetobex/interior-mp-backend/internal/logging"
	"github.com/aldoetobex/interior-mp-backend/internal/metrics"
	"github.com/aldoetobex/interior-mp-backend/internal/projects"
	"github.com/aldoetobex/interior-mp-backend/internal/storage"
	"github.com/aldoetobex/interior-mp-backend/pkg/database"
	"github.com/aldoetobex/interior-mp-backend/pkg/models"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("info", true)
		boot.Fatal().Err(err).Msg("config")
	}
	log := logging.New(cfg.Log.Level, cfg.IsDevelopment())

	db, err := database.Init(cfg.Database.URL, database.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: 30 * time.Minute,
		LogSQL:          cfg.Database.LogSQL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	if err := auth.EnsureAdmin(context.Background(), db, cfg.Admin.Email, cfg.Admin.Password, log); err != nil {
		log.Fatal().Err(err).Msg("admin bootstrap")
	}

	// Storage and the relocation journal
	store := storage.NewSupabase(cfg.Storage.SupabaseURL, cfg.Storage.ServiceKey, cfg.Storage.Bucket)
	relocator := storage.NewRelocator(store, storage.NewGormJournal(db), log)
	go repairOnStart(relocator, log)

	tokens := auth.NewTokens(cfg.JWT.Secret, cfg.JWT.TTL)
	projectSvc := projects.NewService(db, relocator, log)

	app := fiber.New(fiber.Config{
		ErrorHandler: auth.ErrorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(metrics.Middleware())
	app.Use(logging.Middleware(log))

	app.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	app.Get("/metrics", metrics.Handler())

	api := app.Group("/api")
	protected := auth.RequireAuth(db, tokens)

	// Auth
	authH := auth.NewHandler(db, tokens)
	api.Post("/signup", authH.Signup)
	api.Post("/login", authH.Login)
	api.Get("/me", protected, authH.Me)

	// Staging uploads
	projectH := projects.NewHandler(projectSvc)
	api.Post("/upload", protected, projectH.UploadRoomPhotos)
	api.Post("/upload-floor-plan", protected, projectH.UploadFloorPlan)
	api.Post("/upload-tagged-floor-plan", protected, projectH.UploadTaggedFloorPlan)

	// Projects
	api.Post("/projects/initialize", protected, auth.RequireRole(models.RoleClient, models.RoleAdmin), projectH.Initialize)
	api.Post("/projects", protected, auth.RequireRole(models.RoleClient, models.RoleAdmin), projectH.Create)
	api.Get("/projects", protected, projectH.List)
	api.Get("/projects/:id", protected, projectH.Get)
	api.Put("/projects/:id", protected, projectH.Update)
	api.Put("/projects/:id/progress", protected, projectH.SaveProgress)
	api.Get("/projects/:id/history", protected, projectH.History)
	api.Get("/projects/:id/files", protected, projectH.Files)

	// Comments
	commentH := comments.NewHandler(comments.NewService(db, projectSvc))
	api.Get("/projects/:id/comments", protected, commentH.List)
	api.Post("/projects/:id/comments", protected, commentH.Add)
	api.Get("/projects/:id/designs/:designId/comments", protected, commentH.List)
	api.Post("/projects/:id/designs/:designId/comments", protected, commentH.Add)

	// Designer deliverables
	designer := api.Group("/designer", protected, auth.RequireRole(models.RoleDesigner, models.RoleAdmin))
	designer.Post("/projects/:id/floor-plan", projectH.UploadDesignerFloorPlan)
	designer.Post("/projects/:id/final-designs", projectH.UploadFinalDesigns)

	// Admin
	adminH := admin.NewHandler(db, relocator, log)
	adm := api.Group("/admin", protected, auth.RequireRole(models.RoleAdmin))
	adm.Get("/projects", adminH.ListProjects)
	adm.Get("/designers", adminH.ListDesigners)
	adm.Post("/projects/:id/assign", adminH.Assign)
	adm.Post("/relocations/repair", adminH.RepairRelocations)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		log.Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("port", cfg.Server.Port).Str("env", cfg.Server.Environment).Msg("server running")
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
}

// repairOnStart finishes relocations a previous process left between copy and delete.
func repairOnStart(r *storage.Relocator, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	report, err := r.RepairRelocations(ctx)
	if err != nil {
		log.Error().Err(err).Msg("relocation repair")
		return
	}
	log.Info().Int("scanned", report.Scanned).Int("repaired", report.Repaired).Int("failed", report.Failed).Msg("relocation repair")
}
