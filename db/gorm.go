package db

import (
	"fmt"
	"time"

	"audiowave/config"
	"audiowave/logger"
	"audiowave/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var GormDB *gorm.DB

// ConnectGorm opens the gorm connection used by the playlist repository.
// The raw database/sql handle stays in charge of the tracks table.
func ConnectGorm(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	GormDB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to open gorm connection: %w", err)
	}

	sqlDB, err := GormDB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := GormDB.AutoMigrate(&model.Playlist{}); err != nil {
		return fmt.Errorf("failed to migrate playlist schema: %w", err)
	}

	logger.Info("[Database] gorm connection established")
	return nil
}
