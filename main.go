package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/hustletexas/cyber-arcade-verse-rally-sub004/handlers"
	"github.com/hustletexas/cyber-arcade-verse-rally-sub004/middleware"
	"github.com/hustletexas/cyber-arcade-verse-rally-sub004/models"
	"github.com/hustletexas/cyber-arcade-verse-rally-sub004/services"
	"github.com/hustletexas/cyber-arcade-verse-rally-sub004/utils"
	"github.com/hustletexas/cyber-arcade-verse-rally-sub004/workers"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // screenshots cap at 5MB; leave multipart headroom
	})

	// 🔐 GLOBAL: only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.MatchSubmission{},
		&models.TournamentMatch{},
		&models.MatchSessionToken{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	authServiceURL := os.Getenv("AUTH_SERVICE_URL")
	if authServiceURL == "" {
		log.Fatal("AUTH_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("PROOF_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("PROOF_SERVICE_TOKEN environment variable not set")
	}
	authClient := services.NewAuthServiceClient(authServiceURL, serviceToken)

	// AI backend is optional at boot: without a key the verify endpoint
	// answers 503 instead of silently passing or failing submissions.
	var judge services.ProofJudge
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		geminiJudge, err := services.NewGeminiJudge(apiKey, os.Getenv("GEMINI_MODEL"))
		if err != nil {
			log.Fatal("failed to initialize AI judge:", err)
		}
		judge = geminiJudge
	} else {
		log.Println("⚠️  GEMINI_API_KEY not set — automatic verification disabled, /submissions/verify will return 503")
	}

	verificationService := services.NewVerificationService(db, judge)
	evidenceService := services.NewEvidenceService(db)
	tokenService := services.NewTokenService(db)
	reviewService := services.NewReviewService(db)

	matchSyncClient := workers.NewMatchSyncClient(db)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go workers.PollMatches(ctx, matchSyncClient, 15*time.Second)

	tokenService.StartTokenSweeper()

	handlers.SetupSubmissionRoutes(app, verificationService, evidenceService, tokenService, reviewService, authClient)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Match roster sync running (every 15s)")
	log.Println("✅ Session token sweeper running (every 1m)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
