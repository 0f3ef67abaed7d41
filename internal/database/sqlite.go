package database

import (
	"fmt"

	"github.com/bracketlab/pickem-api/internal/contests"
	"github.com/bracketlab/pickem-api/internal/leaderboard"
	"github.com/bracketlab/pickem-api/internal/profiles"
	"github.com/bracketlab/pickem-api/internal/votes"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec("PRAGMA foreign_keys = ON;").Error; err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&profiles.Profile{},
		&contests.Contest{},
		&contests.SubContest{},
		&contests.Team{},
		&contests.Match{},
		&votes.Vote{},
		&leaderboard.Points{},
		&leaderboard.BreakdownPoints{},
		&leaderboard.Star{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
