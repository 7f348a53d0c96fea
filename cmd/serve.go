package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"audiowave/cache"
	"audiowave/config"
	"audiowave/core/backend"
	"audiowave/core/playback"
	"audiowave/core/playlist"
	"audiowave/core/plugin"
	"audiowave/db"
	"audiowave/library"
	"audiowave/logger"
	"audiowave/repository"
	"audiowave/server"
	"audiowave/storage"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the playback daemon",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

const snapshotInterval = 30 * time.Second

func runServe() {
	cfg := config.Load()
	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
	})

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("[Serve] database connection failed", logger.ErrorField(err))
	}
	defer db.DB.Close()
	if err := db.InitDB(); err != nil {
		logger.Fatal("[Serve] schema init failed", logger.ErrorField(err))
	}
	if err := db.ConnectGorm(cfg); err != nil {
		logger.Fatal("[Serve] gorm connection failed", logger.ErrorField(err))
	}

	if err := cache.InitRedis(cfg); err != nil {
		logger.Fatal("[Serve] redis connection failed", logger.ErrorField(err))
	}
	defer cache.CloseRedis()

	trackRepo := repository.NewMySQLTrackRepository(db.DB)
	playlistRepo := repository.NewGormPlaylistRepository(db.GormDB)

	var store *storage.MinioStorage
	var resolver backend.SourceResolver
	if cfg.MinioEndpoint != "" {
		var err error
		store, err = storage.NewMinioStorage(cfg)
		if err != nil {
			logger.Fatal("[Serve] minio connection failed", logger.ErrorField(err))
		}
		resolver = store
	}

	engine, err := backend.NewBeep(cfg.Volume, resolver)
	if err != nil {
		logger.Fatal("[Serve] audio engine init failed", logger.ErrorField(err))
	}
	defer engine.Close()

	queue := playlist.New()
	host := plugin.NewHost()
	registerPlugins(cfg, host, engine)

	ctrl := playback.New(engine, queue,
		playback.WithAutoSkip(cfg.AutoSkip),
		playback.WithDispatcher(host),
		playback.WithVolume(cfg.Volume),
	)

	// The sleep timer needs the controller's stop handle, so it joins
	// the host after the other plugins.
	if err := host.Register(plugin.NewSleepTimer(ctrl.Stop)); err != nil {
		logger.Warn("[Serve] sleep timer registration failed", logger.ErrorField(err))
	}

	if cfg.ResumeOnBoot {
		restoreQueue(ctrl, trackRepo)
	}

	scanner := library.NewScanner(cfg.MusicDir, trackRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go ctrl.Run(ctx)
	go snapshotLoop(ctx, ctrl)

	if cfg.WatchLibrary {
		watcher, err := library.NewWatcher(cfg.MusicDir, scanner, trackRepo)
		if err != nil {
			logger.Warn("[Serve] library watcher unavailable", logger.ErrorField(err))
		} else {
			go watcher.Run(ctx)
		}
	}

	srv := server.New(cfg, ctrl, host, trackRepo, playlistRepo, store, scanner)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("[Serve] shutdown signal received")
		cancel()
	}()

	if err := srv.Start(ctx); err != nil {
		logger.Error("[Serve] server stopped", logger.ErrorField(err))
	}

	saveSnapshot(ctrl)
	logger.Info("[Serve] goodbye")
}

func registerPlugins(cfg *config.Config, host *plugin.Host, engine backend.Backend) {
	if err := host.Register(plugin.NewEqualizer(engine)); err != nil {
		logger.Warn("[Serve] equalizer registration failed", logger.ErrorField(err))
	}
	if cfg.LyricsAPIURL != "" {
		if err := host.Register(plugin.NewLyrics(cfg.LyricsAPIURL)); err != nil {
			logger.Warn("[Serve] lyrics registration failed", logger.ErrorField(err))
		}
	}
	if cfg.ScrobbleURL != "" {
		if err := host.Register(plugin.NewScrobbler(cfg.ScrobbleURL, cfg.ScrobbleTimeout)); err != nil {
			logger.Warn("[Serve] scrobbler registration failed", logger.ErrorField(err))
		}
	}
}

// restoreQueue rebuilds the play queue from the persisted snapshot. The
// session is restored paused at the saved cursor, never auto-playing.
func restoreQueue(ctrl *playback.Controller, tracks repository.TrackRepository) {
	ids, err := cache.LoadQueue()
	if err != nil {
		logger.Warn("[Serve] failed to load persisted queue", logger.ErrorField(err))
		return
	}
	if len(ids) == 0 {
		return
	}

	restored, err := tracks.GetTracksByIDs(ids)
	if err != nil {
		logger.Warn("[Serve] failed to resolve persisted queue", logger.ErrorField(err))
		return
	}

	queue := ctrl.Queue()
	queue.Add(restored...)

	snap, err := cache.LoadSession()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("[Serve] failed to load persisted session", logger.ErrorField(err))
		}
		return
	}
	queue.SetRepeatMode(snap.Repeat)
	queue.SetShuffle(snap.Shuffle)
	if snap.Current >= 0 && snap.Current < queue.Len() {
		queue.Select(snap.Current)
	}
	if snap.Volume > 0 {
		ctrl.SetVolume(snap.Volume)
	}
	logger.Info("[Serve] queue restored",
		logger.Int("tracks", len(restored)),
		logger.Int("current", snap.Current))
}

func snapshotLoop(ctx context.Context, ctrl *playback.Controller) {
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			saveSnapshot(ctrl)
		}
	}
}

func saveSnapshot(ctrl *playback.Controller) {
	queue := ctrl.Queue()
	ids := make([]int64, 0, queue.Len())
	for _, t := range queue.Tracks() {
		ids = append(ids, t.ID)
	}
	if err := cache.SaveQueue(ids); err != nil {
		logger.Warn("[Serve] failed to persist queue", logger.ErrorField(err))
		return
	}

	session := ctrl.Session()
	snap := cache.SessionSnapshot{
		Current:  queue.CurrentIndex(),
		Repeat:   queue.RepeatMode(),
		Shuffle:  queue.Shuffle(),
		Position: session.Position.Seconds(),
		Volume:   session.Volume,
	}
	if err := cache.SaveSession(snap); err != nil {
		logger.Warn("[Serve] failed to persist session", logger.ErrorField(err))
	}
}
