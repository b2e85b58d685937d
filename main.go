package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"game-match-system/handlers"
	"game-match-system/middleware"
	"game-match-system/models"
	"game-match-system/services"
	"game-match-system/utils"
	"game-match-system/workers"
	"game-match-system/ws"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		ReadBufferSize: 16 * 1024,
	})

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOriginsList, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-User-ID, X-Service-Token",
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
		&models.Session{},
		&models.MatchHistory{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	userServiceURL := os.Getenv("USER_SERVICE_URL")
	if userServiceURL == "" {
		log.Fatal("USER_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("MATCH_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("MATCH_SERVICE_TOKEN environment variable not set")
	}
	authServiceURL := os.Getenv("AUTH_SERVICE_URL")
	if authServiceURL == "" {
		log.Fatal("AUTH_SERVICE_URL environment variable not set")
	}

	userClient := services.NewUserServiceClient(userServiceURL, serviceToken)
	authClient := services.NewAuthServiceClient(authServiceURL, serviceToken)

	sessionService := services.NewSessionService(db)
	historyService := services.NewHistoryService(db)

	registry := ws.NewRegistry()
	broadcaster := ws.NewBroadcaster(registry)
	coordinator := services.NewMatchCoordinator(
		sessionService,
		historyService,
		services.NewMatchQueue(),
		registry,
		broadcaster,
		userClient,
	)

	// the game socket accepts either a gateway-verified X-User-ID or a raw
	// token in the query, validated against the auth service
	app.Use("/socket/game", middleware.WSAuthMiddleware(authClient))
	app.Use(middleware.UserContextMiddleware())
	app.Use("/s/", middleware.GatewayAuthMiddleware())

	handlers.SetupGameRoutes(app, coordinator, registry)
	handlers.SetupHistoryRoutes(app, historyService)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	historyService.StartRetentionScheduler(24 * time.Hour)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if utils.R2Enabled() {
		if err := utils.InitR2(); err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		archiver := workers.NewHistoryArchiver(db)
		go workers.PollFinalizedHistory(ctx, archiver, 5*time.Minute)
		log.Println("✅ History archiver running (every 5m)")
	} else {
		log.Println("⚠️  R2 not configured — finalized history will not be archived")
	}

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Game socket available at /socket/game")
	log.Println("✅ History retention job running (every 10m, 24h window)")

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
