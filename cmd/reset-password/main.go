package main

import (
	"flag"
	"log"

	"go-retail-pos/config"
	"go-retail-pos/internal/events"
	"go-retail-pos/internal/repository"
	"go-retail-pos/internal/service"
	"go-retail-pos/pkg/database"
	"go-retail-pos/pkg/jwt"
	"go-retail-pos/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Resets a user's password from the shell and ends every session they hold.
//
//	go run ./cmd/reset-password -email admin@example.com -password newsecret
func main() {
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "new password (min 6 characters)")
	flag.Parse()

	if *email == "" || *password == "" {
		flag.Usage()
		log.Fatal("both -email and -password are required")
	}

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, relying on system env")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLogger := logger.NewZapLogger(&logger.ZapLoggerConfig{
		Encoding:          "console",
		Level:             "warn",
		DisableStacktrace: true,
	})
	defer appLogger.Sync()

	db, err := database.ConnectDB(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("database connection failed", zap.Error(err))
	}

	tokens := jwt.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	authService := service.NewAuthService(repository.NewUserRepo(db), tokens, events.Nop{}, cfg.SessionIdleTimeout)

	if err := authService.SetPassword(*email, *password); err != nil {
		appLogger.Fatal("password reset failed", zap.String("email", *email), zap.Error(err))
	}

	log.Printf("Password for %s has been reset; existing sessions are now invalid", *email)
}
