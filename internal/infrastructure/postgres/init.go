package postgres

import (
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/LavaJover/shvark-settlement-service/internal/config"
	"github.com/LavaJover/shvark-settlement-service/internal/infrastructure/logger"
	"github.com/LavaJover/shvark-settlement-service/internal/infrastructure/postgres/models"
)

// GormConfig is shared with tests so constraint errors translate the same
// way against every dialect.
func GormConfig() *gorm.Config {
	return &gorm.Config{TranslateError: true}
}

func MustInitDB(cfg *config.SettlementConfig) *gorm.DB {
	dsn := cfg.SettlementDB.Dsn
	db, err := gorm.Open(postgres.Open(dsn), GormConfig())
	if err != nil {
		log.Fatalf("failed to init db: %v\n", err.Error())
	}

	if cfg.SettlementDB.AutoMigrate {
		if err := AutoMigrate(db); err != nil {
			log.Fatalf("failed to auto-migrate: %v\n", err)
		}
	}

	return db
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.OrderModel{},
		&models.TransactionHistoryModel{},
		&models.CourseFileModel{},
		&logger.SecurityEventModel{},
	)
}
