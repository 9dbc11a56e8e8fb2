package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Dialector picks the gorm dialector from DB_DRIVER (mysql by default).
func Dialector() (gorm.Dialector, error) {
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbDatabase := os.Getenv("DB_DATABASE")
	dbUsername := os.Getenv("DB_USERNAME")
	dbPassword := os.Getenv("DB_PASSWORD")

	switch driver := strings.ToLower(strings.TrimSpace(os.Getenv("DB_DRIVER"))); driver {
	case "", "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			dbUsername,
			dbPassword,
			dbHost,
			dbPort,
			dbDatabase,
		)
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			dbHost,
			dbPort,
			dbUsername,
			dbPassword,
			dbDatabase,
			envOr("DB_SSLMODE", "disable"),
		)
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(envOr("DB_PATH", "peer-review.db")), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
}

// GormConfig routes SQL logs to LogWriter. Production only logs warnings
// unless DEBUG_SQL=true.
func GormConfig() *gorm.Config {
	environment := strings.ToLower(os.Getenv("ENVIRONMENT"))
	debugSQL := strings.ToLower(os.Getenv("DEBUG_SQL"))

	logLevel := logger.Info
	if environment == "production" && debugSQL != "true" {
		logLevel = logger.Warn
	}

	sqlLogger := logger.New(
		log.New(LogWriter, "\r\n", log.LstdFlags),
		logger.Config{LogLevel: logLevel},
	)
	// Duplicate-key failures surface as gorm.ErrDuplicatedKey on every dialect.
	return &gorm.Config{
		TranslateError: true,
		Logger:         sqlLogger,
	}
}

func InitDB() {
	dialector, err := Dialector()
	if err != nil {
		log.Fatal("Invalid database configuration:", err)
	}

	DB, err = gorm.Open(dialector, GormConfig())
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	log.Printf("Database connected successfully (%s)", DB.Dialector.Name())
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
