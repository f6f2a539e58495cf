package db

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"laundry-booking-backend/config"
	"laundry-booking-backend/internal/model"
)

// Models lists every table managed by AutoMigrate, parents first.
var Models = []interface{}{
	&model.Machine{},
	&model.Resident{},
	&model.Reservation{},
	&model.PushSubscription{},
	&model.ProblemReport{},
}

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		dialector = postgres.Open(cfg.DSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// SQLite has a single writer; one connection keeps BEGIN from racing.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	log.Info("running database migrations", zap.String("driver", cfg.Driver))
	if err := db.AutoMigrate(Models...); err != nil {
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}

	if cfg.Driver == "postgres" && cfg.ExclusionConstraint {
		log.Info("applying reservation exclusion constraint")
		if err := applyExclusionDDL(db); err != nil {
			log.Warn("failed to apply exclusion constraint, relying on booking locks only", zap.Error(err))
		}
	}

	log.Info("database initialization complete")
	return db, nil
}

// exclusionDDL keeps two live reservations of one machine from overlapping.
// Violations surface as SQLSTATE 23P01.
var exclusionDDL = []string{
	"CREATE EXTENSION IF NOT EXISTS btree_gist;",

	"ALTER TABLE reservations DROP CONSTRAINT IF EXISTS reservations_window_valid;",
	"ALTER TABLE reservations ADD CONSTRAINT reservations_window_valid CHECK (start_at < end_at);",

	`DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'reservations_no_overlap') THEN
		ALTER TABLE reservations ADD CONSTRAINT reservations_no_overlap
			EXCLUDE USING GIST (machine_id WITH =, tstzrange(start_at, end_at, '[)') WITH &&)
			WHERE (status IN ('ACTIVE', 'AWAITING_CONFIRMATION', 'CONFIRMED'));
	END IF;
END
$$;`,
}

func applyExclusionDDL(db *gorm.DB) error {
	for _, ddl := range exclusionDDL {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
