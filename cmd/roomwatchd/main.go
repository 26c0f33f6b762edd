package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"

	"roomwatch-backend/config"
	"roomwatch-backend/internal/api"
	"roomwatch-backend/internal/clock"
	"roomwatch-backend/internal/db"
	"roomwatch-backend/internal/engine"
	"roomwatch-backend/internal/notification"
	"roomwatch-backend/internal/occupancy"
	"roomwatch-backend/internal/penalty"
	"roomwatch-backend/internal/store"
)

func main() {
	logger := log.New(os.Stdout, "roomwatch ", log.LstdFlags)

	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Printf("no config file at %s, using defaults", configPath)
			cfg = config.Default()
		} else {
			logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
		}
	} else {
		logger.Printf("configuration loaded from %s", configPath)
	}

	clk := clock.New()

	// Storage backend: volatile or durable, same contracts either way.
	// Audit timestamps track the virtual clock.
	var appStore store.Store
	if cfg.Database.Backend == "memory" {
		logger.Println("using in-memory store")
		appStore = store.NewMemoryStore(cfg.Reservation.Buffer, clk.Now)
	} else {
		gormDB, err := db.Init(&cfg.Database)
		if err != nil {
			logger.Fatalf("failed to initialize database: %v", err)
		}
		logger.Printf("using %s store", cfg.Database.Backend)
		appStore = store.NewGormStore(gormDB, cfg.Reservation.Buffer, clk.Now)
	}

	penaltySvc := penalty.NewService(appStore, cfg.Penalty.WindowDays, cfg.Penalty.Threshold)
	provider := occupancy.New(&cfg.Occupancy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Alert push delivery is optional; without VAPID keys alerts only
	// appear in the status snapshot.
	var notifier engine.Notifier
	webpushOptions := &webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions)
		pool.Start(ctx)
		notifier = pool
	} else {
		logger.Println("VAPID keys not configured; push notifications disabled")
	}

	eng := engine.New(engine.Options{
		RoomID:       cfg.Room.ID,
		Reservations: appStore,
		Penalties:    penaltySvc,
		Clock:        clk,
		Provider:     provider,
		Notifier:     notifier,
		Params: engine.Params{
			GracePeriodSec:         cfg.Room.GracePeriodSec,
			ArrivalWindowBeforeSec: cfg.Room.ArrivalWindowBeforeSec,
			ArrivalWindowAfterSec:  cfg.Room.ArrivalWindowAfterSec,
			CleanupMarginSec:       cfg.Room.CleanupMarginSec,
		},
		PointsPerNoShow:  cfg.Penalty.PointsPerNoShow,
		TickInterval:     cfg.Room.TickInterval,
		OccupancyTimeout: cfg.Room.OccupancyTimeout,
	})
	go eng.Run(ctx)

	handler := api.NewHandler(api.Deps{
		RoomID:    cfg.Room.ID,
		Store:     appStore,
		Penalties: penaltySvc,
		Engine:    eng,
		Clock:     clk,
		Provider:  provider,
		Policy:    cfg.Reservation,
		WebPush:   webpushOptions,
	})
	router := api.NewRouter(handler, &cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	cancel()
	logger.Println("Shutdown complete.")
}
