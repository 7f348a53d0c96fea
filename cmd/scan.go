package cmd

import (
	"audiowave/config"
	"audiowave/db"
	"audiowave/library"
	"audiowave/logger"
	"audiowave/repository"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the music directory into the track database",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			OutputPath: cfg.LogPath,
		})

		if err := db.ConnectDB(cfg); err != nil {
			logger.Fatal("[Scan] database connection failed", logger.ErrorField(err))
		}
		defer db.DB.Close()
		if err := db.InitDB(); err != nil {
			logger.Fatal("[Scan] schema init failed", logger.ErrorField(err))
		}

		scanner := library.NewScanner(cfg.MusicDir, repository.NewMySQLTrackRepository(db.DB))
		added, err := scanner.Scan()
		if err != nil {
			logger.Fatal("[Scan] scan failed", logger.ErrorField(err))
		}
		logger.Info("[Scan] done", logger.Int("added", added))
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
