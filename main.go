package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gunbamguy/lolpick/internal/auth"
	"github.com/gunbamguy/lolpick/internal/clickhouse"
	"github.com/gunbamguy/lolpick/internal/handlers"
	"github.com/gunbamguy/lolpick/internal/logger"
	"github.com/gunbamguy/lolpick/internal/mocks"
	"github.com/gunbamguy/lolpick/internal/pubsub"
	"github.com/gunbamguy/lolpick/internal/roster"
	"github.com/gunbamguy/lolpick/internal/store"
)

var (
	dataStore    store.Store
	rosterMgr    *roster.Manager
	authProvider auth.AuthProvider
	ps           pubsub.Upstream
	chClient     interface {
		GetFormScore(string) (int, error)
		GetAllFormScores() (map[string]int, error)
		SyncFormScores(func(string, int) error) error
		Close() error
	}
)

func main() {
	// Initialize logger first
	logger.Init()

	logger.Info("Starting lolpick roster service")

	environment := os.Getenv("ENVIRONMENT")
	development := environment == "" || environment == "development"

	// Initialize storage backend
	dbDriver := os.Getenv("DB_DRIVER")
	if dbDriver == "" {
		dbDriver = "memory"
	}

	var err error
	switch dbDriver {
	case "memory":
		dataStore = store.NewMemoryStore()
		logger.Info("Using in-memory store")
	case "sqlite":
		sqliteFile := os.Getenv("SQLITE_FILE")
		if sqliteFile == "" {
			sqliteFile = "dev.sqlite"
		}
		dataStore, err = store.NewSQLiteStore(sqliteFile)
		if err != nil {
			logger.Error("Failed to initialize SQLite", "error", err)
			log.Fatalf("Failed to initialize SQLite: %v", err)
		}
		logger.Info("Connected to SQLite database", "file", sqliteFile)
	case "postgres":
		dbConnString := os.Getenv("DATABASE_URL")
		if dbConnString == "" && development {
			// No DATABASE_URL in dev falls back to the SQLite-backed mock
			sqliteFile := os.Getenv("SQLITE_FILE")
			if sqliteFile == "" {
				sqliteFile = "dev.sqlite"
			}
			dataStore, err = mocks.NewMockPostgresStore(sqliteFile)
			if err != nil {
				logger.Error("Failed to initialize mock Postgres", "error", err)
				log.Fatalf("Failed to initialize mock Postgres: %v", err)
			}
		} else {
			if dbConnString == "" {
				logger.Error("DATABASE_URL environment variable is required for postgres driver")
				log.Fatal("DATABASE_URL environment variable is required for postgres driver")
			}
			dataStore, err = store.NewPostgresStore(dbConnString)
			if err != nil {
				logger.Error("Failed to initialize Postgres", "error", err)
				log.Fatalf("Failed to initialize Postgres: %v", err)
			}
			logger.Info("Connected to Postgres database")
		}
	default:
		logger.Error("Unknown DB_DRIVER", "driver", dbDriver)
		log.Fatalf("Unknown DB_DRIVER: %s (valid: memory, sqlite, postgres)", dbDriver)
	}

	rosterMgr = roster.New(dataStore)

	// Initialize pub/sub (NATS JetStream or Embedded NATS for local development)
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}
	natsSubject := os.Getenv("NATS_SUBJECT")
	if natsSubject == "" {
		natsSubject = pubsub.DefaultSubject
	}

	// Use embedded NATS in development mode, real NATS in production.
	// NATS_EMBEDDED=false in dev skips the embedded server entirely and
	// uses the in-memory mock instead.
	if development && os.Getenv("NATS_EMBEDDED") == "false" {
		ps = mocks.NewMockNATSPubSub()
	} else if development {
		logger.Info("Starting embedded NATS server for local development")
		embeddedNats, err := pubsub.NewEmbeddedNATSPubSub(pubsub.EmbeddedNATSOptions{
			Port:       0, // Random available port
			Subject:    natsSubject,
			StreamName: pubsub.StreamName,
			StoreDir:   "", // In-memory storage
		})
		if err != nil {
			logger.Error("Failed to initialize embedded NATS", "error", err)
			log.Fatalf("Failed to initialize embedded NATS: %v", err)
		}
		ps = embeddedNats
		logger.Info("Embedded NATS server ready", "url", embeddedNats.GetServerURL())
	} else {
		logger.Info("Using real NATS JetStream for production")
		realNats, err := pubsub.NewNATSPubSub(natsURL, natsSubject)
		if err != nil {
			logger.Error("Failed to initialize NATS", "error", err)
			log.Fatalf("Failed to initialize NATS: %v", err)
		}
		ps = realNats
		logger.Info("Connected to NATS", "url", natsURL)
	}

	// Initialize ClickHouse client (or mock in development)
	if development {
		logger.Info("Using mock ClickHouse for local development (no ClickHouse server required)")
		chClient = mocks.NewMockClickHouseClient()
	} else {
		chAddr := os.Getenv("CLICKHOUSE_ADDR")
		if chAddr == "" {
			chAddr = "localhost:9000"
		}
		chDB := os.Getenv("CLICKHOUSE_DB")
		if chDB == "" {
			chDB = "default"
		}
		chUser := os.Getenv("CLICKHOUSE_USER")
		if chUser == "" {
			chUser = "default"
		}
		chPass := os.Getenv("CLICKHOUSE_PASSWORD")

		chClient, err = clickhouse.NewClient(chAddr, chDB, chUser, chPass)
		if err != nil {
			logger.Error("Failed to initialize ClickHouse", "error", err, "address", chAddr)
			log.Fatalf("Failed to initialize ClickHouse: %v", err)
		}
		logger.Info("Connected to ClickHouse", "address", chAddr, "database", chDB)
	}

	// Initialize authentication
	// Use mock auth in development mode, Authentik OAuth2 in production
	if development {
		logger.Info("Using mock authentication for local development (no Authentik server required)")
		authProvider = auth.NewMockAuth()
	} else {
		authentikBaseURL := os.Getenv("AUTHENTIK_BASE_URL")
		authentikClientID := os.Getenv("AUTHENTIK_CLIENT_ID")
		authentikClientSecret := os.Getenv("AUTHENTIK_CLIENT_SECRET")
		authentikRedirectURL := os.Getenv("AUTHENTIK_REDIRECT_URL")

		if authentikBaseURL == "" || authentikClientID == "" || authentikClientSecret == "" {
			logger.Error("AUTHENTIK_BASE_URL, AUTHENTIK_CLIENT_ID, and AUTHENTIK_CLIENT_SECRET environment variables are required for production")
			log.Fatal("AUTHENTIK_BASE_URL, AUTHENTIK_CLIENT_ID, and AUTHENTIK_CLIENT_SECRET environment variables are required for production")
		}

		if authentikRedirectURL == "" {
			authentikRedirectURL = "http://localhost:3000/auth/callback"
		}

		authProvider = auth.NewAuthentikAuth(&auth.AuthentikConfig{
			BaseURL:      authentikBaseURL,
			ClientID:     authentikClientID,
			ClientSecret: authentikClientSecret,
			RedirectURL:  authentikRedirectURL,
			Scopes:       []string{"openid", "profile", "email"},
		})
		logger.Info("Connected to Authentik", "url", authentikBaseURL)
	}

	// API handlers share a local pubsub bridged to NATS
	api := handlers.NewAPIHandlers(rosterMgr, pubsub.NewWithUpstream(ps))

	// Periodic form score sync keeps the catalog scores fresh
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		syncFormScores(api)

		for range ticker.C {
			syncFormScores(api)
		}
	}()

	// Set up HTTP routes
	mux := http.NewServeMux()

	// Static files
	fs := http.FileServer(http.Dir("static"))
	mux.Handle("/static/", http.StripPrefix("/static/", fs))
	mux.Handle("/images/", http.StripPrefix("/images/", http.FileServer(http.Dir("static/images"))))

	// Auth routes (public)
	mux.HandleFunc("/auth/login", authProvider.LoginHandler)
	mux.HandleFunc("/auth/callback", authProvider.CallbackHandler)
	mux.HandleFunc("/auth/logout", authProvider.LogoutHandler)

	// Roster API
	mux.HandleFunc("/api/roster/state", api.GetRosterState)
	mux.HandleFunc("/api/roster/assign", api.AssignPlayer)
	mux.HandleFunc("/api/roster/remove", api.RemovePlayer)
	mux.HandleFunc("/api/roster/score", api.SetPositionScore)
	mux.HandleFunc("/api/roster/points", api.SetTeamPoints)
	mux.HandleFunc("/api/roster/swap", api.SwapTeams)
	mux.HandleFunc("/api/roster/draw", api.DrawRandomPlayer)
	mux.HandleFunc("/api/roster/select-team", api.SelectTeam)

	// Bulk operations are destructive, so they sit behind auth; reset
	// additionally requires the admins group
	mux.HandleFunc("/api/roster/randomize", authProvider.Middleware(api.RandomizeOrder))
	mux.HandleFunc("/api/roster/reset", authProvider.Middleware(requireAdmin(api.ResetAll)))

	// Players API
	mux.HandleFunc("/api/players", api.ListPlayers)
	mux.HandleFunc("/api/players/form", api.GetFormScores)

	// SSE for realtime updates
	mux.HandleFunc("/api/events", api.EventsSSE)

	// Health check endpoints
	mux.HandleFunc("/api/health", healthHandler)
	mux.HandleFunc("/healthz", livenessHandler) // Kubernetes liveness probe
	mux.HandleFunc("/readyz", readinessHandler) // Kubernetes readiness probe

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	addr := "0.0.0.0:" + port
	logger.Info("Server starting", "address", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Server failed", "error", err)
		log.Fatal(err)
	}
}

// requireAdmin rejects authenticated users outside the admins group
func requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.GetUser(r)
		if !auth.IsAdmin(user) {
			http.Error(w, "Forbidden: Admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	// Check storage connectivity
	if dataStore != nil {
		_, err := dataStore.Get(roster.StorageKey)
		if err != nil {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			checks["storage"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
		} else {
			checks["storage"] = map[string]interface{}{
				"status": "healthy",
			}
		}
	} else {
		checks["storage"] = map[string]interface{}{
			"status": "not_configured",
		}
	}

	// Check ClickHouse connectivity (only in production)
	environment := os.Getenv("ENVIRONMENT")
	if environment == "production" && chClient != nil {
		_, err := chClient.GetAllFormScores()
		if err != nil {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			checks["clickhouse"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
		} else {
			checks["clickhouse"] = map[string]interface{}{
				"status": "healthy",
			}
		}
	} else if environment == "production" {
		checks["clickhouse"] = map[string]interface{}{
			"status": "not_configured",
		}
	}

	// NATS connection health is handled internally by the client
	if environment == "production" && ps != nil {
		checks["nats"] = map[string]interface{}{
			"status": "healthy",
		}
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(response)
}

// livenessHandler handles Kubernetes liveness probes
// Returns 200 if the application is running (doesn't check dependencies)
func livenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().Unix(),
	})
}

// readinessHandler handles Kubernetes readiness probes
// Returns 200 if the application is ready to serve traffic (checks critical dependencies)
func readinessHandler(w http.ResponseWriter, r *http.Request) {
	if dataStore != nil {
		_, err := dataStore.Get(roster.StorageKey)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status":    "not_ready",
				"reason":    "storage_unavailable",
				"timestamp": time.Now().Unix(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().Unix(),
	})
}

// syncFormScores refreshes the cached form scores from ClickHouse
func syncFormScores(api *handlers.APIHandlers) {
	logger.Info("Syncing form scores from ClickHouse")

	scores := make(map[string]int)
	err := chClient.SyncFormScores(func(playerID string, score int) error {
		scores[playerID] = score
		return nil
	})
	if err != nil {
		logger.Error("Failed to sync form scores", "error", err)
		return
	}

	api.SetFormScores(scores)
	logger.Info("Form scores synced successfully", "players", len(scores))
}
