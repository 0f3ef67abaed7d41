package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bracketlab/pickem-api/internal/contests"
	"github.com/bracketlab/pickem-api/internal/profiles"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequentialIDProvider struct {
	next int
}

func (p *sequentialIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("id-%d", p.next), nil
}

func openTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.Exec("PRAGMA foreign_keys = ON;").Error; err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := db.AutoMigrate(
		&profiles.Profile{},
		&contests.Contest{},
		&Points{},
		&BreakdownPoints{},
		&Star{},
	); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func seedFixture(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, userID := range []string{"user-1", "user-2"} {
		profile := profiles.Profile{
			ID:          userID,
			ProviderID:  "google:" + userID,
			Handle:      userID,
			DisplayName: "Player " + userID,
			Email:       userID + "@example.com",
		}
		if err := db.Create(&profile).Error; err != nil {
			t.Fatalf("profile seed failed: %v", err)
		}
	}
	contest := contests.Contest{ID: "contest-1", Name: "Worlds", Kind: "worlds", Year: 2026}
	if err := db.Create(&contest).Error; err != nil {
		t.Fatalf("contest seed failed: %v", err)
	}
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{
		Database:   db,
		IDProvider: &sequentialIDProvider{},
		Clock: func() time.Time {
			return time.Unix(1700000000, 0)
		},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service
}

func TestUpsertBreakdownRecomputesTotal(t *testing.T) {
	db := openTestDB(t, "leaderboard_totals")
	seedFixture(t, db)
	service := newTestService(t, db)

	if err := service.UpsertBreakdown(context.Background(), "user-1", "contest-1", "americas", 40); err != nil {
		t.Fatalf("breakdown upsert failed: %v", err)
	}
	if err := service.UpsertBreakdown(context.Background(), "user-1", "contest-1", "emea", 25); err != nil {
		t.Fatalf("breakdown upsert failed: %v", err)
	}

	total, err := service.GetTotal(context.Background(), "user-1", "contest-1")
	if err != nil {
		t.Fatalf("get total failed: %v", err)
	}
	if total != 65 {
		t.Fatalf("expected total 65, got %d", total)
	}

	if err := service.UpsertBreakdown(context.Background(), "user-1", "contest-1", "pacific", 10); err != nil {
		t.Fatalf("breakdown upsert failed: %v", err)
	}
	total, err = service.GetTotal(context.Background(), "user-1", "contest-1")
	if err != nil {
		t.Fatalf("get total failed: %v", err)
	}
	if total != 75 {
		t.Fatalf("expected total 75, got %d", total)
	}

	// Re-scoring a region replaces its component, never double-counts it.
	if err := service.UpsertBreakdown(context.Background(), "user-1", "contest-1", "americas", 50); err != nil {
		t.Fatalf("breakdown upsert failed: %v", err)
	}
	total, err = service.GetTotal(context.Background(), "user-1", "contest-1")
	if err != nil {
		t.Fatalf("get total failed: %v", err)
	}
	if total != 85 {
		t.Fatalf("expected total 85, got %d", total)
	}

	rows, err := service.ListBreakdown(context.Background(), "user-1", "contest-1")
	if err != nil {
		t.Fatalf("list breakdown failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected three breakdown rows, got %d", len(rows))
	}
}

func TestRecomputeTotalMatchesBreakdownSum(t *testing.T) {
	db := openTestDB(t, "leaderboard_recompute")
	seedFixture(t, db)
	service := newTestService(t, db)

	if err := service.UpsertBreakdown(context.Background(), "user-1", "contest-1", "americas", 40); err != nil {
		t.Fatalf("breakdown upsert failed: %v", err)
	}

	// Drift the stored total, then recompute from the breakdown rows.
	if err := db.Model(&Points{}).Where("user_id = ?", "user-1").Update("total", 999).Error; err != nil {
		t.Fatalf("drift update failed: %v", err)
	}
	if err := service.RecomputeTotal(context.Background(), "user-1", "contest-1"); err != nil {
		t.Fatalf("recompute failed: %v", err)
	}

	total, err := service.GetTotal(context.Background(), "user-1", "contest-1")
	if err != nil {
		t.Fatalf("get total failed: %v", err)
	}
	if total != 40 {
		t.Fatalf("expected recomputed total 40, got %d", total)
	}
}

func TestRecomputeTotalRequiresExistingRow(t *testing.T) {
	db := openTestDB(t, "leaderboard_missing")
	seedFixture(t, db)
	service := newTestService(t, db)

	err := service.RecomputeTotal(context.Background(), "user-1", "contest-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetTotalDefaultsToZero(t *testing.T) {
	db := openTestDB(t, "leaderboard_zero")
	seedFixture(t, db)
	service := newTestService(t, db)

	total, err := service.GetTotal(context.Background(), "user-1", "contest-1")
	if err != nil {
		t.Fatalf("get total failed: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected zero for unscored principal, got %d", total)
	}
}

func TestListLeaderboardCarriesPublicProfileFields(t *testing.T) {
	db := openTestDB(t, "leaderboard_entries")
	seedFixture(t, db)
	service := newTestService(t, db)

	if err := service.UpsertBreakdown(context.Background(), "user-1", "contest-1", "emea", 30); err != nil {
		t.Fatalf("breakdown upsert failed: %v", err)
	}
	if err := service.UpsertBreakdown(context.Background(), "user-2", "contest-1", "emea", 45); err != nil {
		t.Fatalf("breakdown upsert failed: %v", err)
	}

	entries, err := service.ListLeaderboard(context.Background(), "contest-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected two entries, got %d", len(entries))
	}

	byUser := map[string]Entry{}
	for _, entry := range entries {
		byUser[entry.UserID] = entry
	}
	if byUser["user-1"].Points != 30 || byUser["user-2"].Points != 45 {
		t.Fatalf("unexpected points: %+v", byUser)
	}
	if byUser["user-1"].Handle != "user-1" || byUser["user-1"].DisplayName != "Player user-1" {
		t.Fatalf("expected public profile fields on entries: %+v", byUser["user-1"])
	}
}

func TestAwardStarIsCreateOnly(t *testing.T) {
	db := openTestDB(t, "leaderboard_stars")
	seedFixture(t, db)
	service := newTestService(t, db)

	if err := service.AwardStar(context.Background(), "user-1", "contest-1", "perfect-week"); err != nil {
		t.Fatalf("star award failed: %v", err)
	}

	err := service.AwardStar(context.Background(), "user-1", "contest-1", "perfect-week")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict for duplicate star, got %v", err)
	}

	if err := service.AwardStar(context.Background(), "user-1", "contest-1", "top-scorer"); err != nil {
		t.Fatalf("distinct category award failed: %v", err)
	}

	stars, err := service.ListStars(context.Background(), "user-1", "contest-1")
	if err != nil {
		t.Fatalf("list stars failed: %v", err)
	}
	if len(stars) != 2 {
		t.Fatalf("expected two stars, got %d", len(stars))
	}
}
