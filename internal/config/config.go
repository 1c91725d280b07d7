package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"catalog-import-service/internal/models"
	"catalog-import-service/internal/storage"
)

type Config struct {
	// Database
	DBDriver   string // postgres or sqlite
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// Redis
	RedisURL string

	// NATS
	NATSURL string

	// Server
	Port        string
	Environment string

	// Photo storage
	StorageDriver string // s3 or local
	S3            storage.S3Config
	UploadDir     string
	PublicBaseURL string

	// Import settings
	IdentityField    string
	MaxUploadBytes   int64
	MaxPhotoBytes    int64
	PhotoWorkers     int
	UploadRatePerMin int
	UploadRateBurst  int

	// Metrics
	MetricsPrefix string
}

func Load() *Config {
	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	maxUploadMB, _ := strconv.ParseInt(getEnv("MAX_UPLOAD_MB", "20"), 10, 64)
	maxPhotoMB, _ := strconv.ParseInt(getEnv("MAX_PHOTO_MB", "10"), 10, 64)
	photoWorkers, _ := strconv.Atoi(getEnv("PHOTO_WORKERS", "4"))
	ratePerMin, _ := strconv.Atoi(getEnv("UPLOAD_RATE_PER_MIN", "30"))
	rateBurst, _ := strconv.Atoi(getEnv("UPLOAD_RATE_BURST", "5"))

	port := getEnv("PORT", "8088")

	return &Config{
		// Database
		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "catalog_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "catalog.db"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// NATS - optional, events are skipped when unset
		NATSURL: os.Getenv("NATS_URL"),

		// Server
		Port:        port,
		Environment: getEnv("ENVIRONMENT", "development"),

		// Photo storage
		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", "local")),
		S3: storage.S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Prefix:          getEnv("S3_PREFIX", "catalog"),
			Region:          getEnv("S3_REGION", "ru-central1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			PublicBaseURL:   os.Getenv("S3_PUBLIC_BASE_URL"),
		},
		UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:"+port+"/uploads"),

		// Import settings
		IdentityField:    getEnv("IMPORT_IDENTITY_FIELD", models.DefaultIdentityField),
		MaxUploadBytes:   maxUploadMB << 20,
		MaxPhotoBytes:    maxPhotoMB << 20,
		PhotoWorkers:     photoWorkers,
		UploadRatePerMin: ratePerMin,
		UploadRateBurst:  rateBurst,

		MetricsPrefix: getEnv("METRICS_PREFIX", "catalog_import"),
	}
}

// Dialector picks the gorm driver for the configured database
func (cfg *Config) Dialector() (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case "postgres", "":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(cfg.SQLitePath), nil
	}
	return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dialector, err := cfg.Dialector()
	if err != nil {
		return nil, err
	}

	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Running auto-migrations...")
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to run auto-migrations: %w", err)
	}
	log.Println("Auto-migrations completed successfully")

	return db, nil
}

// Migrate keeps the schema up to date. It adds missing columns but never drops any.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Template{},
		&models.PhotoGroup{},
		&models.ProductRecord{},
		&models.ImportHistory{},
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
