package database

import (
	"errors"
	"time"

	"github.com/bracketlab/pickem-api/internal/contests"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillTeamSlugs = "2026-08-12_backfill_team_slugs"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillTeamSlugs, apply: backfillTeamSlugs},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillTeamSlugs fills slugs for teams ingested before slugs existed.
func backfillTeamSlugs(db *gorm.DB) error {
	var teams []contests.Team
	if err := db.Where("slug = ''").Find(&teams).Error; err != nil {
		return err
	}
	for _, team := range teams {
		if err := db.Model(&contests.Team{}).
			Where("id = ?", team.ID).
			Update("slug", slug.Make(team.Name)).Error; err != nil {
			return err
		}
	}
	return nil
}
