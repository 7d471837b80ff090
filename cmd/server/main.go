package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prudhvinik1/homesync/internal/api"
	"github.com/prudhvinik1/homesync/internal/config"
	"github.com/prudhvinik1/homesync/internal/database"
	"github.com/prudhvinik1/homesync/internal/repositories"
	"github.com/prudhvinik1/homesync/internal/services"
)

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database connections
	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create postgres pool: %v", err)
	}
	defer postgresPool.Close()

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to create redis client: %v", err)
	}
	defer redisClient.Close()

	// Wire repositories and services
	accountRepo := repositories.NewPostgresAccountRepository(postgresPool)
	deviceRepo := repositories.NewPostgresDeviceRepository(postgresPool)
	householdRepo := repositories.NewPostgresHouseholdRepository(postgresPool)
	sessionRepo := repositories.NewRedisSessionRepository(redisClient)
	changeLogRepo := repositories.NewPostgresChangeLogRepository(postgresPool)

	authService := services.NewAuthService(accountRepo, deviceRepo, sessionRepo, cfg.JWTSecret, cfg.JWTExpiry)

	apiServer := api.NewServer(authService, sessionRepo, deviceRepo, householdRepo, changeLogRepo)

	// Start Server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: apiServer.Router(),
	}

	// graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("Starting server on port %s", cfg.ServerPort)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped gracefully")
}
