package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"catalog-import-service/internal/config"
	"catalog-import-service/internal/events"
	"catalog-import-service/internal/handlers"
	"catalog-import-service/internal/metrics"
	"catalog-import-service/internal/middleware"
	"catalog-import-service/internal/repository"
	"catalog-import-service/internal/services"
	"catalog-import-service/internal/storage"
)

// @title Catalog Import API
// @version 1.0.0
// @description Spreadsheet import, export and photo matching for category catalogs

// @host localhost:8088
// @BasePath /api/v1

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Initialize Redis client
	var redisClient *redis.Client
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("WARNING: Failed to parse Redis URL: %v (continuing without Redis)", err)
	} else {
		redisClient = redis.NewClient(redisOpts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("WARNING: Redis not reachable: %v (continuing without cache)", err)
			redisClient.Close()
			redisClient = nil
		} else {
			log.Println("✓ Redis connected")
		}
		cancel()
	}

	// Initialize photo storage
	var photoStorage storage.PhotoStorage
	switch cfg.StorageDriver {
	case "s3":
		s3Storage, err := storage.NewS3Storage(context.Background(), cfg.S3)
		if err != nil {
			log.Fatal("Failed to initialize S3 storage:", err)
		}
		photoStorage = s3Storage
		log.Printf("✓ Photo storage: s3 bucket %s", cfg.S3.Bucket)
	default:
		localStorage, err := storage.NewLocalStorage(cfg.UploadDir, cfg.PublicBaseURL)
		if err != nil {
			log.Fatal("Failed to initialize local storage:", err)
		}
		photoStorage = localStorage
		log.Printf("✓ Photo storage: local dir %s", cfg.UploadDir)
	}

	// Initialize NATS events publisher (optional)
	var publisher services.EventPublisher
	var natsPublisher *events.Publisher
	if cfg.NATSURL != "" {
		natsPublisher, err = events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			log.Printf("WARNING: Failed to connect to NATS: %v (events disabled)", err)
		} else {
			publisher = natsPublisher
			defer natsPublisher.Close()
			log.Println("✓ NATS events publisher initialized")
		}
	}

	metrics.InitMetrics(cfg.MetricsPrefix)

	// Initialize repositories
	productsRepo := repository.NewProductsRepository(db, redisClient)
	templatesRepo := repository.NewTemplatesRepository(db, redisClient)
	historyRepo := repository.NewHistoryRepository(db)

	// Initialize services
	templates := services.NewTemplateRegistry(templatesRepo, cfg.IdentityField, logger)
	importService := services.NewImportService(templates, productsRepo, historyRepo, publisher, logger)
	exportService := services.NewExportService(templates, productsRepo, logger)
	photoService := services.NewPhotoService(productsRepo, photoStorage, historyRepo, publisher, services.PhotoServiceConfig{
		Workers:       cfg.PhotoWorkers,
		MaxPhotoBytes: cfg.MaxPhotoBytes,
		IdentityField: cfg.IdentityField,
	}, logger)

	// Initialize handlers
	templateHandler := handlers.NewTemplateHandler(templates)
	importHandler := handlers.NewImportHandler(importService, exportService, historyRepo, cfg.MaxUploadBytes)
	photoHandler := handlers.NewPhotoHandler(photoService, cfg.MaxUploadBytes)
	productHandler := handlers.NewProductHandler(productsRepo)
	uploadLimiter := middleware.NewUploadRateLimiter(cfg.UploadRatePerMin, cfg.UploadRateBurst)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.Middleware())
	router.Use(middleware.CORS())
	router.MaxMultipartMemory = 32 << 20

	// Health checks
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.ReadinessCheck(db))
	router.GET("/metrics", metrics.Handler())

	if cfg.StorageDriver != "s3" {
		router.Static("/uploads", cfg.UploadDir)
	}

	api := router.Group("/api/v1")
	{
		categories := api.Group("/categories/:categoryId")
		{
			categories.GET("/template", templateHandler.GetTemplate)
			categories.PUT("/template", templateHandler.PutTemplate)

			categories.POST("/import", uploadLimiter.Middleware(), importHandler.ImportProducts)
			categories.GET("/export", importHandler.ExportProducts)

			categories.POST("/photos", uploadLimiter.Middleware(), photoHandler.UploadPhotos)
			categories.DELETE("/photos", photoHandler.ClearPhotos)

			categories.GET("/products", productHandler.ListProducts)
			categories.GET("/products/:id", productHandler.GetProduct)
		}

		api.GET("/imports", importHandler.ListHistory)
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Catalog import service starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-quit
	log.Println("Shutting down catalog-import-service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}
	if redisClient != nil {
		redisClient.Close()
	}

	log.Println("Catalog import service stopped")
}
