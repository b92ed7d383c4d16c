package cmd

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jdziat/durableflow/internal/storage"
)

func openStorage(dsn, poolProfile string) (*storage.GormStorage, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", dsn, err)
	}
	preset, err := storage.PresetByName(poolProfile)
	if err != nil {
		return nil, err
	}
	return storage.NewGormStorage(db, storage.FromPreset(preset)), nil
}
