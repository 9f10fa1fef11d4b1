package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relaychat/sync-engine/internal/bridge"
	"github.com/relaychat/sync-engine/internal/cache"
	"github.com/relaychat/sync-engine/internal/connection"
	"github.com/relaychat/sync-engine/internal/ephemeral"
	"github.com/relaychat/sync-engine/internal/events"
	"github.com/relaychat/sync-engine/internal/metrics"
	"github.com/relaychat/sync-engine/internal/orchestrator"
)

func main() {
	connConfig := connection.DefaultConfig()
	connConfig.URL = "ws://localhost:8065/api/v4/websocket"
	if v := os.Getenv("SYNC_SERVER_URL"); v != "" {
		connConfig.URL = v
	}
	connConfig.Token = os.Getenv("SYNC_AUTH_TOKEN")
	if v := os.Getenv("PING_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			connConfig.PingInterval = d
		}
	}

	eventsConfig := events.DefaultConfig()
	if v := os.Getenv("BATCH_QUIET"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			eventsConfig.BatchQuiet = d
		}
	}
	if v := os.Getenv("TYPING_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			eventsConfig.TypingWindow = d
		}
	}

	redisAddr := "localhost:6379"
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		redisAddr = v
	}

	metricsAddr := ":9090"
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		metricsAddr = v
	}

	// --- Redis stores ---
	cacheStore, err := cache.NewStore(redisAddr)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	typingStore, err := ephemeral.NewTypingStore(redisAddr)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	presenceStore, err := ephemeral.NewPresenceStore(redisAddr)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	draftStore, err := ephemeral.NewDraftStore(redisAddr)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}

	log.Printf("sync engine starting")
	log.Printf("  server_url:   %s", connConfig.URL)
	log.Printf("  redis_addr:   %s", redisAddr)
	log.Printf("  metrics_addr: %s", metricsAddr)

	manager := connection.NewManager(connConfig)

	session, err := orchestrator.Initialize(orchestrator.Deps{
		Source:   manager,
		Cache:    cacheStore,
		Typing:   typingStore,
		Presence: presenceStore,
		Drafts:   draftStore,
		Events:   eventsConfig,
	}, orchestrator.Context{
		CurrentUserID: os.Getenv("SYNC_USER_ID"),
		CurrentTeamID: os.Getenv("SYNC_TEAM_ID"),
	})
	if err != nil {
		log.Fatalf("failed to initialize session: %v", err)
	}

	// --- NATS bridge (optional) ---
	var natsBridge *bridge.Bridge
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		bridgeConfig := bridge.DefaultConfig()
		bridgeConfig.URL = natsURL
		natsBridge, err = bridge.New(bridgeConfig)
		if err != nil {
			log.Fatalf("failed to connect to NATS: %v", err)
		}
		natsBridge.Attach(session.Streams())
		log.Printf("  nats_url:     %s", natsURL)
	}

	// --- Metrics ---
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("metrics server: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), connConfig.DialTimeout)
	err = manager.Connect(ctx)
	cancel()
	if err != nil {
		log.Fatalf("initial connect failed: %v", err)
	}
	log.Printf("connected to %s", connConfig.URL)

	// --- Graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received %s, shutting down", sig)

	manager.Close()
	if natsBridge != nil {
		natsBridge.Close()
	}
	session.Close()
	cacheStore.Close()
	typingStore.Close()
	presenceStore.Close()
	draftStore.Close()

	log.Printf("shutdown complete")
}
