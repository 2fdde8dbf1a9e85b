package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"

	config "github.com/hashipost/hashipost/configs"
	"github.com/hashipost/hashipost/internal/api/handlers"
	"github.com/hashipost/hashipost/internal/api/middleware"
	"github.com/hashipost/hashipost/internal/database"
	job "github.com/hashipost/hashipost/internal/jobs"
	"github.com/hashipost/hashipost/internal/models"
	"github.com/hashipost/hashipost/internal/queue"
	"github.com/hashipost/hashipost/internal/repository"
	"github.com/hashipost/hashipost/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	oauthStateRepo := repository.NewOAuthStateRepository(db)

	authService := service.NewAuthService(*cfg, userRepo)
	userService := service.NewUserService(userRepo)
	r2Service := service.NewR2Service(*cfg)
	mediaService := service.NewMediaService(*cfg, r2Service)
	tiktokService := service.NewTiktokService(*cfg, socialAccountRepo)
	youtubeService := service.NewYoutubeService(*cfg, socialAccountRepo)
	facebookService := service.NewFacebookService(*cfg, socialAccountRepo)
	instagramService := service.NewInstagramService(*cfg, socialAccountRepo)

	platformService := service.NewPlatformService(*cfg, socialAccountRepo, oauthStateRepo, map[string]service.TokenRevoker{
		models.PlatformTiktok:    tiktokService,
		models.PlatformYoutube:   youtubeService,
		models.PlatformFacebook:  facebookService,
		models.PlatformInstagram: instagramService,
	})

	enqueuer := queue.NewEnqueuer(client)
	publishService := service.NewPublishService(map[string]service.Publisher{
		models.PlatformTiktok:    tiktokService,
		models.PlatformYoutube:   youtubeService,
		models.PlatformFacebook:  facebookService,
		models.PlatformInstagram: instagramService,
	}, socialAccountRepo, postRepo, enqueuer)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	auth := handlers.NewAuthHandler(*cfg, authService)
	app.Get("/login", auth.Login)
	app.Get("/login/callback", auth.LoginCallbackHandler)
	app.Post("/logout", auth.Logout)

	platform := handlers.NewPlatformHandler(platformService, tiktokService, youtubeService, facebookService, instagramService, *cfg)
	app.Get("/social/connect/:platform", platform.CallbackHandler)

	api := app.Group("/")
	api.Use(authMiddleware.AuthMiddleware())

	api.Get("/auth/socials/:platform", platform.AuthURL)
	api.Post("/social/connect/:platform", platform.RefreshHandler)
	api.Post("/social/disconnect/:platform", platform.DisconnectHandler)
	api.Get("/social/status", platform.StatusHandler)
	api.Get("/social/profile/:platform", platform.ProfileHandler)

	publish := handlers.NewPublishHandler(publishService)
	api.Post("/social/publish", publish.PublishHandler)
	api.Get("/social/posts", publish.HistoryHandler)

	upload := handlers.NewUploadHandler(mediaService)
	api.Post("/upload", upload.UploadHandler)
	api.Delete("/upload/:key", upload.DeleteHandler)

	user := handlers.NewUserHandler(*cfg, userService)
	api.Get("/user/info", user.GetUserInfo)
	api.Delete("/user", user.DeleteUser)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(socialAccountRepo, youtubeService, tiktokService, facebookService, instagramService)
	stateCleanupJob := job.NewStateCleanupJob(oauthStateRepo)

	// queue
	queueW := queue.NewQueue(postRepo, socialAccountRepo, tiktokService)

	c := cron.New()
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.AddFunc("@every 01h00m00s", stateCleanupJob.CleanupStates)
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeBackfillURL, queueW.HandleBackfillURLTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
