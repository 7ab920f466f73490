package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/autolumiku/whatsapp-backend/internal/config"
	"github.com/autolumiku/whatsapp-backend/internal/models"
)

var DB *gorm.DB

// Connect opens the PostgreSQL connection. DATABASE_URL wins when set;
// otherwise the DSN is assembled from the DB_* variables, with Cloud SQL
// socket support for Cloud Run deployments.
func Connect() error {
	dsn := config.Getenv("DATABASE_URL", "")
	if dsn == "" {
		dbUser := config.Getenv("DB_USER", "postgres")
		dbPass := config.Getenv("DB_PASS", "")
		dbName := config.Getenv("DB_NAME", "autolumiku")

		if instance := config.Getenv("INSTANCE_CONNECTION_NAME", ""); instance != "" {
			// Cloud Run: connect via the Cloud SQL unix socket
			dsn = fmt.Sprintf("host=/cloudsql/%s user=%s password=%s dbname=%s sslmode=disable",
				instance, dbUser, dbPass, dbName)
			zap.L().Info("connecting to Cloud SQL via socket", zap.String("instance", instance))
		} else {
			dbHost := config.Getenv("DB_HOST", "localhost")
			dbPort := config.Getenv("DB_PORT", "5432")
			dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
				dbHost, dbUser, dbPass, dbName, dbPort)
			zap.L().Info("connecting to PostgreSQL", zap.String("host", dbHost))
		}
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(config.GetenvInt("DB_MAX_OPEN_CONNS", 20))
	sqlDB.SetMaxIdleConns(config.GetenvInt("DB_MAX_IDLE_CONNS", 5))
	sqlDB.SetConnMaxLifetime(time.Hour)

	DB = db
	zap.L().Info("database connected")
	return nil
}

// Migrate applies the schema for every persisted model.
func Migrate() error {
	return DB.AutoMigrate(
		&models.Tenant{},
		&models.StaffMember{},
		&models.GatewayAccount{},
		&models.Conversation{},
		&models.MessageRecord{},
		&models.Vehicle{},
		&models.CommandLogEntry{},
	)
}
