// Package server exposes the playback daemon's HTTP control surface and
// the websocket event feed.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"audiowave/config"
	"audiowave/core/playback"
	"audiowave/core/plugin"
	"audiowave/library"
	"audiowave/logger"
	"audiowave/repository"
	"audiowave/storage"

	"github.com/gorilla/mux"
)

// Server wires the controller, plugin host and repositories into the
// HTTP API.
type Server struct {
	cfg     *config.Config
	ctrl    *playback.Controller
	host    *plugin.Host
	tracks  repository.TrackRepository
	lists   repository.PlaylistRepository
	store   *storage.MinioStorage
	scanner *library.Scanner
	hub     *Hub

	httpServer *http.Server
}

// New builds a server. store may be nil when no object storage is
// configured.
func New(cfg *config.Config, ctrl *playback.Controller, host *plugin.Host,
	tracks repository.TrackRepository, lists repository.PlaylistRepository,
	store *storage.MinioStorage, scanner *library.Scanner) *Server {

	s := &Server{
		cfg:     cfg,
		ctrl:    ctrl,
		host:    host,
		tracks:  tracks,
		lists:   lists,
		store:   store,
		scanner: scanner,
		hub:     NewHub(),
	}

	router := mux.NewRouter()
	s.registerRoutes(router)

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      corsMiddleware(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start runs the hub and the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)
	go s.forwardEvents(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("[Server] listening", logger.String("addr", s.cfg.ListenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("[Server] shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}

// forwardEvents bridges controller events onto the websocket hub.
func (s *Server) forwardEvents(ctx context.Context) {
	id, events := s.ctrl.Subscribe()
	defer s.ctrl.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				logger.Warn("[Server] failed to marshal event", logger.ErrorField(err))
				continue
			}
			s.hub.Broadcast(data)
		}
	}
}

func (s *Server) registerRoutes(router *mux.Router) {
	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.authMiddleware)

	// Transport controls.
	api.HandleFunc("/player/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/player/play", s.handlePlay).Methods("POST")
	api.HandleFunc("/player/pause", s.handlePause).Methods("POST")
	api.HandleFunc("/player/toggle", s.handleToggle).Methods("POST")
	api.HandleFunc("/player/stop", s.handleStop).Methods("POST")
	api.HandleFunc("/player/next", s.handleNext).Methods("POST")
	api.HandleFunc("/player/previous", s.handlePrevious).Methods("POST")
	api.HandleFunc("/player/skip", s.handleSkip).Methods("POST")
	api.HandleFunc("/player/seek", s.handleSeek).Methods("POST")
	api.HandleFunc("/player/volume", s.handleVolume).Methods("POST")

	// Queue management.
	api.HandleFunc("/queue", s.handleGetQueue).Methods("GET")
	api.HandleFunc("/queue/tracks", s.handleQueueAdd).Methods("POST")
	api.HandleFunc("/queue/stream", s.handleQueueAddStream).Methods("POST")
	api.HandleFunc("/queue/tracks/{index}", s.handleQueueRemove).Methods("DELETE")
	api.HandleFunc("/queue/reorder", s.handleQueueReorder).Methods("POST")
	api.HandleFunc("/queue/select/{index}", s.handleQueueSelect).Methods("POST")
	api.HandleFunc("/queue/repeat", s.handleRepeat).Methods("POST")
	api.HandleFunc("/queue/shuffle", s.handleShuffle).Methods("POST")
	api.HandleFunc("/queue/clear", s.handleQueueClear).Methods("POST")

	// Named playlists.
	api.HandleFunc("/playlists", s.handleListPlaylists).Methods("GET")
	api.HandleFunc("/playlists/{name}", s.handleSavePlaylist).Methods("PUT")
	api.HandleFunc("/playlists/{name}", s.handleDeletePlaylist).Methods("DELETE")
	api.HandleFunc("/playlists/{name}/rename", s.handleRenamePlaylist).Methods("POST")
	api.HandleFunc("/playlists/{name}/load", s.handleLoadPlaylist).Methods("POST")

	// Library.
	api.HandleFunc("/library/tracks", s.handleListTracks).Methods("GET")
	api.HandleFunc("/library/tracks/{id}/tags", s.handleUpdateTags).Methods("PUT")
	api.HandleFunc("/library/tracks/{id}/stream-url", s.handleStreamURL).Methods("GET")
	api.HandleFunc("/library/scan", s.handleScan).Methods("POST")

	// Plugins.
	api.HandleFunc("/plugins", s.handleListPlugins).Methods("GET")
	api.HandleFunc("/plugins/{id}/enable", s.handleEnablePlugin).Methods("POST")
	api.HandleFunc("/plugins/{id}/disable", s.handleDisablePlugin).Methods("POST")
	api.HandleFunc("/plugins/{id}/config", s.handleConfigurePlugin).Methods("PUT")
	api.HandleFunc("/plugins/lyrics/current", s.handleCurrentLyric).Methods("GET")

	// Auth and event feed sit outside the token middleware.
	router.HandleFunc("/api/auth/token", s.handleIssueToken).Methods("POST")
	router.HandleFunc("/ws", s.handleWebSocket)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
