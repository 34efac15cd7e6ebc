package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/inamate/sketchboard/internal/auth"
	"github.com/inamate/sketchboard/internal/board"
	"github.com/inamate/sketchboard/internal/collab"
	"github.com/inamate/sketchboard/internal/config"
	"github.com/inamate/sketchboard/internal/db"
	mw "github.com/inamate/sketchboard/internal/middleware"
	"github.com/inamate/sketchboard/internal/persist"
	"github.com/inamate/sketchboard/internal/typeid"
)

// Scenes with this id may be joined without a token.
const playgroundSceneID = "scene_playground"

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level, _ := cfg.Level()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	authService := auth.NewService(store, cfg.JWTSecret)
	authHandler := auth.NewHandler(authService)

	hub := collab.NewHub(store, cfg.SaveInterval)
	boardHandler := board.NewHandler(hub, board.Config{
		ShapeCacheSize:   cfg.ShapeCacheSize,
		FlattenTolerance: cfg.FlattenTolerance,
		TolerancePx:      cfg.HitTolerancePx,
		MinClickablePx:   cfg.MinClickablePx,
	})

	origins := mw.SplitOrigins(cfg.AllowedOrigins)

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(origins))

	// Auth routes (public)
	r.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/auth/guest", authHandler.Guest).Methods("POST")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("/me", authHandler.Me).Methods("GET")
	api.HandleFunc("/scenes/{sceneId}/elements", boardHandler.ListElements).Methods("GET")
	api.HandleFunc("/scenes/{sceneId}/elements", boardHandler.SubmitElements).Methods("POST")
	api.HandleFunc("/scenes/{sceneId}/hit-test", boardHandler.HitTest).Methods("POST")

	r.HandleFunc("/ws/scene/{sceneId}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, authService, origins)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run()
		return nil
	})

	g.Go(func() error {
		slog.Info("server starting", "addr", srv.Addr, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		// Stop the hub last so edits that arrived during shutdown are saved.
		slog.Info("saving all scenes...")
		hub.Stop()
		return err
	})

	return multierr.Append(g.Wait(), closeStore())
}

func openStore(ctx context.Context, cfg *config.Config) (persist.Storer, func() error, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		s := persist.NewMemStore()
		return s, s.Close, nil

	case config.BackendBolt:
		if err := os.MkdirAll(filepath.Dir(cfg.BoltPath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
		s, err := persist.OpenBolt(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		s, err := persist.NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return s, func() error {
			defer pool.Close()
			return s.Close()
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *collab.Hub, authSvc *auth.Service, origins []string) {
	sceneID := mux.Vars(r)["sceneId"]
	if sceneID != playgroundSceneID {
		if err := typeid.Validate(sceneID, typeid.PrefixScene); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	var userID, displayName string
	readOnly := false

	token := r.URL.Query().Get("token")
	switch {
	case token != "":
		claims, err := authSvc.ValidateToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		userID, displayName = claims.Subject, claims.DisplayName
	case sceneID == playgroundSceneID:
		userID = "anon-" + uuid.New().String()[:8]
		displayName = "Anonymous"
	default:
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	if r.URL.Query().Get("mode") == "view" {
		readOnly = true
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(origins),
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	client := collab.NewClient(hub, conn, userID, displayName, sceneID, uuid.New().String())
	client.ReadOnly = readOnly

	hub.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}

// originPatterns strips schemes; the websocket library matches on host.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+3:]
		}
		out = append(out, o)
	}
	return out
}
