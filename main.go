package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"lifequest-engine/handlers"
	"lifequest-engine/middleware"
	"lifequest-engine/models"
	"lifequest-engine/services"
	"lifequest-engine/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024, // JSON bodies only; evidence is carried as URLs
	})

	// 🔐 GLOBAL: only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		log.Println("⚠️  ALLOWED_ORIGINS not set, using default: http://localhost:3000")
		allowedOrigins = "http://localhost:3000"
	}
	origins := strings.Split(allowedOrigins, ",")
	for i, o := range origins {
		origins[i] = strings.TrimSpace(o)
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-User-ID, X-User-Roles",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Skill{},
		&models.Track{},
		&models.Mission{},
		&models.UserProfile{},
		&models.Assignment{},
		&models.Completion{},
		&models.XPEvent{},
		&models.UserStats{},
		&models.DexCard{},
		&models.UserDexUnlock{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	clock := clockwork.NewRealClock()
	progressionService := services.NewProgressionService(db, clock)
	dexService := services.NewDexService(db)
	plannerService := services.NewPlannerService(db, clock)
	scorerService := services.NewScorerService(db, clock, progressionService, dexService)

	accountServiceURL := os.Getenv("ACCOUNT_SERVICE_URL")
	if accountServiceURL == "" {
		log.Fatal("ACCOUNT_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("QUEST_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("QUEST_SERVICE_TOKEN environment variable not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncWorker := workers.NewProfileSyncWorker(db, accountServiceURL, "/api/v1/public/profiles", serviceToken)
	syncWorker.Start(ctx)

	progressionService.StartReconciler(15 * time.Minute)

	handlers.SetupPlanRoutes(app, plannerService)
	handlers.SetupMissionRoutes(app, plannerService, scorerService)
	handlers.SetupProgressionRoutes(app, progressionService, dexService, scorerService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Profile Sync Worker running")
	log.Println("✅ Ledger reconciler running (every 15m)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = app.ShutdownWithTimeout(5 * time.Second)
}
