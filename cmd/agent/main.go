package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prudhvinik1/homesync/internal/config"
	"github.com/prudhvinik1/homesync/internal/database"
	"github.com/prudhvinik1/homesync/internal/models"
	"github.com/prudhvinik1/homesync/internal/syncer"
)

// logNotifier surfaces non-silent sync notices on the agent log. The
// household apps replace this with in-app notifications.
type logNotifier struct{}

func (logNotifier) SyncSucceeded(result models.SyncResult) {
	log.Printf("Synced: %d pushed, %d pulled", result.Pushed, result.Pulled)
}

func (logNotifier) SyncFailed(err error) {
	log.Printf("Sync failed: %v", err)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	godotenv.Load()

	cfg, err := config.LoadAgentConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewSQLiteDB(cfg.ReplicaPath)
	if err != nil {
		log.Fatalf("Failed to open replica: %v", err)
	}
	defer db.Close()

	replica, err := syncer.NewSQLiteReplica(db)
	if err != nil {
		log.Fatalf("Failed to initialize replica: %v", err)
	}

	token, err := login(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to log in: %v", err)
	}

	remote := syncer.NewHTTPRemote(cfg.ServerURL, func(ctx context.Context) (string, error) {
		return token, nil
	}, nil)

	gate := syncer.NewMigrationGate(replica)
	needsMigration, err := gate.CheckMigrationNeeded(ctx)
	if err != nil {
		log.Fatalf("Failed to check migration: %v", err)
	}
	if needsMigration {
		log.Println("Local replica predates sync, migrating...")
		result := gate.PerformMigration(ctx)
		if !result.Success {
			log.Fatalf("Migration failed: %v", result.Err)
		}
		log.Printf("Migrated %d records across %d tables", result.RecordsMigrated, result.TablesProcessed)
	}

	engine := syncer.NewEngine(replica, remote, gate)
	status := syncer.NewStatusSurface()

	lastSyncAt, err := replica.LastSyncAt(ctx)
	if err != nil {
		log.Fatalf("Failed to load watermark: %v", err)
	}
	status.SetLastSyncAt(lastSyncAt)

	scheduler := syncer.NewScheduler(engine, status, logNotifier{}, log.Default(), syncer.SchedulerConfig{
		Debounce: cfg.Debounce,
		Interval: cfg.SyncInterval,
	})
	replica.SetOnChange(func(table string) {
		scheduler.NotifyMutation()
	})

	go scheduler.Run(ctx)
	scheduler.SetAuthenticated(true)

	// Initial full-freshness sync on startup
	scheduler.TriggerSync(false, true)

	log.Printf("Sync agent running against %s", cfg.ServerURL)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down agent...")
	cancel()
}

// login exchanges credentials for a session token. Session issuance and
// cookie plumbing belong to the server; the agent only stores the token.
func login(ctx context.Context, cfg *config.AgentConfig) (string, error) {
	body, err := json.Marshal(map[string]string{
		"email":       cfg.Email,
		"password":    cfg.Password,
		"device_name": cfg.DeviceName,
		"device_type": "agent",
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.ServerURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login rejected with status %d", resp.StatusCode)
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return "", err
	}
	if loginResp.Token == "" {
		return "", fmt.Errorf("login response missing token")
	}
	return loginResp.Token, nil
}
