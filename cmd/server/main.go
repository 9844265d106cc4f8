package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/isocanvas/isocanvas/internal/auth"
	"github.com/isocanvas/isocanvas/internal/collab"
	"github.com/isocanvas/isocanvas/internal/config"
	"github.com/isocanvas/isocanvas/internal/export"
	mw "github.com/isocanvas/isocanvas/internal/middleware"
	"github.com/isocanvas/isocanvas/internal/persist"
	"github.com/isocanvas/isocanvas/internal/scene"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
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

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	defer repo.Close()

	storeOpts, err := cfg.StoreOptions()
	if err != nil {
		return err
	}

	hub := collab.NewHub(repo, storeOpts, cfg.AutosaveInterval)
	go hub.Run()

	authService := auth.NewService(cfg.JWTSecret, cfg.EditPassphraseHash)
	if authService.Open() {
		slog.Warn("EDIT_PASSPHRASE_HASH not set, anyone can request edit tokens")
	}
	sceneService := scene.NewService(repo, hub, storeOpts)

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: newRouter(routes{
			hub:     hub,
			auth:    authService,
			scenes:  sceneService,
			export:  export.NewHandler(sceneService, storeOpts, cfg.Theme()),
			origins: cfg.Origins(),
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		hub.Stop()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	// Live scenes are saved before connections are torn down.
	hub.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type routes struct {
	hub     *collab.Hub
	auth    *auth.Service
	scenes  *scene.Service
	export  *export.Handler
	origins []string
}

func newRouter(rt routes) *mux.Router {
	sceneHandler := scene.NewHandler(rt.scenes)
	authHandler := auth.NewHandler(rt.auth)

	r := mux.NewRouter()
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(rt.origins))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/scenes", sceneHandler.List).Methods("GET", "OPTIONS")
	api.HandleFunc("/scenes", sceneHandler.Create).Methods("POST", "OPTIONS")
	api.HandleFunc("/scenes/{sceneId}", sceneHandler.Get).Methods("GET", "OPTIONS")
	api.HandleFunc("/scenes/{sceneId}", sceneHandler.Delete).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/scenes/{sceneId}/document", sceneHandler.GetDocument).Methods("GET", "OPTIONS")
	api.Handle("/scenes/{sceneId}/document", rt.auth.RequireEdit(http.HandlerFunc(sceneHandler.PutDocument))).Methods("PUT")
	api.HandleFunc("/scenes/{sceneId}/edit-token", authHandler.EditToken).Methods("POST", "OPTIONS")
	api.HandleFunc("/scenes/{sceneId}/snapshot.png", rt.export.Snapshot).Methods("GET", "OPTIONS")

	r.HandleFunc("/ws/scenes/{sceneId}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, rt.hub, rt.auth, rt.origins)
	})
	return r
}

// openRepository uses PostgreSQL when DATABASE_URL is set and the local
// SQLite file otherwise.
func openRepository(ctx context.Context, cfg *config.Config) (persist.Repository, error) {
	if cfg.DatabaseURL != "" {
		slog.Info("using postgres repository")
		return persist.OpenPostgres(ctx, cfg.DatabaseURL)
	}
	slog.Info("using sqlite repository", "path", cfg.SQLitePath)
	return persist.OpenSQLite(ctx, cfg.SQLitePath)
}

// handleWebSocket joins a viewer or editor to a scene room. A valid edit
// token for the scene grants editing; without one the client is read-only.
func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *collab.Hub, authSvc *auth.Service, origins []string) {
	id := collab.Identity{
		SceneID:     mux.Vars(r)["sceneId"],
		ClientID:    uuid.New().String(),
		EditorID:    "viewer-" + uuid.New().String()[:8],
		DisplayName: "Viewer",
	}

	if token := auth.TokenFromRequest(r); token != "" {
		claims, err := authSvc.Authorize(token, id.SceneID)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		id.EditorID = claims.EditorID
		id.DisplayName = claims.DisplayName
		id.CanEdit = true
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: origins,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	client := collab.NewClient(hub, conn, id)
	ctx := r.Context()
	if err := hub.Register(ctx, client); err != nil {
		reason := "failed to open scene"
		if errors.Is(err, persist.ErrNotFound) {
			reason = "scene not found"
		}
		slog.Warn("websocket register", "scene", id.SceneID, "error", err)
		conn.Close(websocket.StatusPolicyViolation, reason)
		return
	}

	go client.WritePump(ctx)
	client.ReadPump(ctx)
}
