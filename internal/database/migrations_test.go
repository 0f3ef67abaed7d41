package database

import (
	"path/filepath"
	"testing"

	"github.com/bracketlab/pickem-api/internal/contests"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsBackfillsTeamSlugs(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&contests.Team{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	legacy := contests.Team{
		ID:             "team-legacy",
		Name:           "FC Example United",
		ShortName:      "FCE",
		Slug:           "",
		ExternalSource: "feed",
		ExternalID:     "legacy-1",
	}
	if err := database.Create(&legacy).Error; err != nil {
		testContext.Fatalf("failed to insert legacy team: %v", err)
	}
	slugged := contests.Team{
		ID:             "team-current",
		Name:           "Bravo Gaming",
		ShortName:      "BRV",
		Slug:           "custom-slug",
		ExternalSource: "feed",
		ExternalID:     "current-1",
	}
	if err := database.Create(&slugged).Error; err != nil {
		testContext.Fatalf("failed to insert slugged team: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var stored contests.Team
	if err := database.Where("id = ?", legacy.ID).Take(&stored).Error; err != nil {
		testContext.Fatalf("failed to reload legacy team: %v", err)
	}
	if stored.Slug != "fc-example-united" {
		testContext.Fatalf("expected backfilled slug, got %q", stored.Slug)
	}

	var storedSlugged contests.Team
	if err := database.Where("id = ?", slugged.ID).Take(&storedSlugged).Error; err != nil {
		testContext.Fatalf("failed to reload slugged team: %v", err)
	}
	if storedSlugged.Slug != "custom-slug" {
		testContext.Fatalf("expected existing slug untouched, got %q", storedSlugged.Slug)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationBackfillTeamSlugs).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}

	// Re-running must be a no-op.
	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("second migration pass failed: %v", err)
	}
	var count int64
	if err := database.Model(&migrationRecord{}).Count(&count).Error; err != nil {
		testContext.Fatalf("failed to count migration records: %v", err)
	}
	if count != 1 {
		testContext.Fatalf("expected a single migration record, got %d", count)
	}
}
