package cmd

import (
	"fmt"

	"audiowave/cache"
	"audiowave/config"
	"audiowave/logger"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis-check",
	Short: "Verify the Redis connection and show the persisted queue",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		logger.InitLogger(logger.Config{Level: logger.LogLevel(cfg.LogLevel)})

		if err := cache.InitRedis(cfg); err != nil {
			logger.Fatal("[Redis] connection failed", logger.ErrorField(err))
		}
		defer cache.CloseRedis()

		ids, err := cache.LoadQueue()
		if err != nil {
			logger.Fatal("[Redis] failed to read persisted queue", logger.ErrorField(err))
		}
		fmt.Printf("redis ok, persisted queue holds %d tracks\n", len(ids))
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
