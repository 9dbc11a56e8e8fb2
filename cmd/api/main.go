package main

import (
	"log"
	"os"
	"strings"

	"peer-review-api/config"
	"peer-review-api/controllers"
	"peer-review-api/middleware"
	"peer-review-api/monitor"
	"peer-review-api/routes"
	"peer-review-api/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logFile, logWriter := config.InitLogging()
	if logFile != nil {
		defer logFile.Close()
	}

	config.InitDB()

	// REVIEW_STORE=memory keeps steps and summaries in the process for local
	// runs; submissions and reviews still go to the database.
	store, err := services.NewReviewStore(os.Getenv("REVIEW_STORE"), config.DB)
	if err != nil {
		log.Fatal("Invalid review store configuration:", err)
	}
	if _, ok := store.(*services.MemoryReviewStore); ok {
		log.Printf("Warning: review steps are kept in memory and lost on restart")
	}
	content := services.NewContentService(nil)
	if strings.EqualFold(os.Getenv("DB_AUTO_MIGRATE"), "true") {
		if gormStore, ok := store.(*services.GormReviewStore); ok {
			if err := gormStore.AutoMigrate(); err != nil {
				log.Fatalf("Failed to migrate review tables: %v", err)
			}
		}
		if err := content.AutoMigrate(); err != nil {
			log.Fatalf("Failed to migrate content tables: %v", err)
		}
		if err := services.NewReviewExpiryRunService(nil).AutoMigrate(); err != nil {
			log.Fatalf("Failed to migrate review expiry runs: %v", err)
		}
	}

	services.RegisterReviewCounters(monitor.Default)
	manager := services.NewReviewManager(store, monitor.Default)

	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.LoggerWithWriter(logWriter))
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORSMiddleware())

	// Registered before SetupRoutes installs the 404 handler.
	monitor.RegisterMonitorPage(router)
	monitor.RegisterLogsRoute(router, config.LogFilePath())

	routes.SetupRoutes(router, controllers.NewReviewController(manager, content, monitor.Default))

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("🚀 Server starting on port %s", port)
	if ginMode == "release" {
		log.Printf("🏭 Running in production mode")
	} else {
		log.Printf("🔧 Running in development mode")
	}

	if err := router.Run(":" + port); err != nil {
		log.Fatal("❌ Failed to start server:", err)
	}
}
