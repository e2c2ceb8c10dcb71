package main

import (
	"context"
	"embed"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wormmap/internal/config"
	"wormmap/internal/handler"
	"wormmap/internal/hub"
	"wormmap/internal/island"
	"wormmap/internal/poller"
	"wormmap/internal/repository/sqlite"
	"wormmap/internal/service"
	"wormmap/internal/watcher"
)

//go:embed web/*
var webFS embed.FS

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	configPath := flag.String("config", "", "config file path (overrides search path)")
	islandURL := flag.String("island", "", "island backend base URL (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting wormmap server...")

	// Load configuration
	var (
		cfg     *config.Config
		cfgPath string
		err     error
	)
	if *configPath != "" {
		cfgPath = *configPath
		cfg, err = config.LoadFromPath(cfgPath)
	} else {
		cfg, cfgPath, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfgPath != "" {
		log.Printf("Config loaded: %s", cfgPath)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *islandURL != "" {
		cfg.Island.URL = *islandURL
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	// Initialize SQLite repository
	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer repo.Close()
	log.Printf("Database opened: %s", cfg.Database.Path)

	// Initialize event bus
	eventBus := service.NewEventBus()

	// Initialize SSE hub
	sseHub := hub.New()
	go sseHub.Run()

	// Connect event bus to SSE hub
	eventChan := make(chan service.Event, 100)
	eventBus.Subscribe(eventChan)
	go func() {
		for event := range eventChan {
			sseHub.Broadcast(event)
		}
	}()

	// Initialize the island client and the map service
	client := island.NewClient(cfg.Island.URL, cfg.Island.AuthToken, cfg.Island.Timeout.Duration())
	mapSvc := service.NewMapService(client, repo, eventBus, cfg.Database.SnapshotsKept)

	if err := mapSvc.SeedFromRepository(context.Background()); err != nil {
		log.Printf("Warning: failed to seed from last snapshot: %v", err)
	}

	// Start the poll loop
	poll := poller.New(cfg.Poll.Interval.Duration(), func(ctx context.Context) {
		// Refresh logs its own failures; the next tick retries.
		_ = mapSvc.Refresh(ctx)
	})
	poll.Start(context.Background())
	log.Printf("Polling %s every %s", cfg.Island.URL, cfg.Poll.Interval.Duration())

	// Hot-reload the poll interval when the config file changes
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfgPath != "" {
		w := watcher.New(cfgPath, func() {
			updated, err := config.LoadFromPath(cfgPath)
			if err != nil {
				log.Printf("Config reload failed: %v", err)
				return
			}
			poll.SetInterval(updated.Poll.Interval.Duration())
		})
		go func() {
			if err := w.Watch(watchCtx); err != nil && watchCtx.Err() == nil {
				log.Printf("Config watcher stopped: %v", err)
			}
		}()
	}

	// Initialize HTTP handlers
	mapHandler := handler.NewMapHandler(mapSvc, mapSvc, repo)

	// Setup routes
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/map/graph", mapHandler.GetGraph)
	mux.HandleFunc("GET /api/map/machines", mapHandler.ListMachines)
	mux.HandleFunc("GET /api/map/status", mapHandler.GetStatus)
	mux.HandleFunc("POST /api/map/refresh", mapHandler.TriggerRefresh)

	mux.HandleFunc("GET /api/positions", mapHandler.GetPositions)
	mux.HandleFunc("POST /api/positions", mapHandler.SavePositions)
	mux.HandleFunc("PUT /api/positions/{machine_id}", mapHandler.UpdatePosition)

	mux.HandleFunc("GET /api/snapshots", mapHandler.ListSnapshots)

	// SSE events endpoint
	mux.Handle("GET /events", sseHub)

	// Static files from embedded filesystem
	webContent, err := fs.Sub(webFS, "web")
	if err != nil {
		log.Fatalf("Failed to get embedded web content: %v", err)
	}
	mux.Handle("/", http.FileServer(http.FS(webContent)))

	// Apply middleware
	finalHandler := handler.Chain(mux,
		handler.Recover,
		handler.CORS,
		handler.Logger,
	)

	// Create server; no write timeout, SSE connections stay open.
	server := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     finalHandler,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	watchCancel()
	poll.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
