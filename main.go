package main

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/fancy-planties/verification-service/database"
	"github.com/fancy-planties/verification-service/utils"
)

func main() {
	// load the environment variables from the .env file
	err := godotenv.Load()
	if err != nil {
		log.Printf("no .env file found, relying on the environment")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build the logger: %v", err)
	}
	defer logger.Sync()

	// create database connection
	db, err := database.NewVerificationServiceDB()
	if err != nil {
		log.Fatalf("failed to connect to the database: %v", err)
	}
	defer db.DB.Close()
	// ping the database to check the connection
	if err := db.DB.Ping(); err != nil {
		log.Fatalf("failed to ping the database: %v", err)
	}

	if err := runMigrations(db); err != nil {
		log.Fatalf("failed to run the migrations: %v", err)
	}

	cfg := VerificationConfig{
		CodeTTL:        time.Duration(utils.EnvOrInt("CODE_TTL_MINUTES", 10)) * time.Minute,
		MaxAttempts:    utils.EnvOrInt("CODE_MAX_ATTEMPTS", 5),
		IssueLimit:     utils.EnvOrInt("ISSUE_LIMIT_PER_HOUR", 5),
		IssueWindow:    time.Hour,
		ValidateLimit:  utils.EnvOrInt("VALIDATE_LIMIT", 30),
		ValidateWindow: time.Duration(utils.EnvOrInt("VALIDATE_WINDOW_MINUTES", 15)) * time.Minute,
	}

	securityLog := NewSecurityLog(utils.EnvOrInt("SECURITY_LOG_CAPACITY", 256))

	service := NewVerificationService(
		NewMySQLCodeStore(db.DB),
		NewMySQLUserStore(db.DB),
		newLimiter(logger),
		newMailer(logger),
		securityLog,
		logger,
		cfg,
	)

	interval := time.Duration(utils.EnvOrInt("CLEANUP_INTERVAL_MINUTES", 5)) * time.Minute
	scheduler := NewCleanupScheduler(service, interval, logger)
	scheduler.Start()
	defer scheduler.Stop()

	r := gin.Default()
	handler := NewVerificationHandler(service, scheduler, securityLog)
	handler.RegisterRoutes(r)

	addr := utils.EnvOr("HTTP_ADDR", ":8080")
	logger.Info("verification service listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}

func runMigrations(db *database.VerificationServiceDB) error {
	driver, err := migratemysql.WithInstance(db.DB, &migratemysql.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance(utils.EnvOr("MIGRATIONS_PATH", "file://migrations"), "mysql", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// newLimiter picks the Redis-backed limiter when an address is configured,
// otherwise falls back to the in-process fixed-window limiter. Throttling is
// best-effort either way.
func newLimiter(logger *zap.Logger) Limiter {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return NewWindowLimiter()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	return NewRedisLimiter(client, logger)
}

func newMailer(logger *zap.Logger) Mailer {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		logger.Warn("SMTP_HOST not set, verification codes will only be logged")
		return NewLogMailer(logger)
	}
	return NewSMTPMailer(
		host,
		utils.EnvOr("SMTP_PORT", "587"),
		os.Getenv("SMTP_USER"),
		os.Getenv("SMTP_PASSWORD"),
		utils.EnvOr("SMTP_FROM", "no-reply@fancy-planties.app"),
	)
}
