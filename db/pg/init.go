package pg

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"billsplit/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultDSN = "host=localhost user=postgres dbname=postgres port=5432 sslmode=disable TimeZone=America/Lima"

// CreateDSN builds the connection string from DATABASE_URL, or from the
// DATABASE_PASSWORD/USER/HOST trio, and points search_path at the app schema.
func CreateDSN() string {
	connStr := defaultDSN
	if url := os.Getenv("DATABASE_URL"); url != "" {
		connStr = url
		slog.Info("using DATABASE_URL")
	} else if password := os.Getenv("DATABASE_PASSWORD"); password != "" {
		user := config.GetEnv("DATABASE_USER", "postgres")
		host := config.GetEnv("DATABASE_HOST", "127.0.0.1")
		connStr = fmt.Sprintf("host=%s user=%s dbname=postgres password=%s port=5432 sslmode=disable", host, user, password)
		slog.Info("using DATABASE_PASSWORD")
	} else {
		slog.Info("using default connection string", "dsn", connStr)
	}

	connStr += fmt.Sprintf(" search_path=%s", config.AppName)
	return connStr
}

func CloseGORM(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}
	return sqlDB.Close()
}

// InitPostgresGORM opens a GORM connection to PostgreSQL and pings it.
func InitPostgresGORM(dsn string) (*gorm.DB, error) {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      true,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}
