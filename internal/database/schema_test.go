package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/bracketlab/pickem-api/internal/contests"
	"github.com/bracketlab/pickem-api/internal/leaderboard"
	"github.com/bracketlab/pickem-api/internal/profiles"
	"github.com/bracketlab/pickem-api/internal/votes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type foreignKeyRow struct {
	Table    string `gorm:"column:table"`
	From     string `gorm:"column:from"`
	To       string `gorm:"column:to"`
	OnDelete string `gorm:"column:on_delete"`
}

func listForeignKeys(testContext *testing.T, database *gorm.DB, table string) []foreignKeyRow {
	testContext.Helper()
	var rows []foreignKeyRow
	if err := database.Raw("PRAGMA foreign_key_list(" + table + ")").Scan(&rows).Error; err != nil {
		testContext.Fatalf("failed to read foreign keys of %s: %v", table, err)
	}
	return rows
}

func TestOpenSQLitePlacesProfileForeignKeysOnChildTables(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "schema.db")
	database, err := OpenSQLite(databasePath, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	// The identity table owns no outgoing references; a reversed relation
	// here would make every profile insert fail under PRAGMA foreign_keys.
	if rows := listForeignKeys(testContext, database, "user_profiles"); len(rows) != 0 {
		testContext.Fatalf("expected user_profiles to carry no foreign keys, got %+v", rows)
	}

	for _, table := range []string{"match_votes", "contest_points", "contest_stars"} {
		found := false
		for _, row := range listForeignKeys(testContext, database, table) {
			if row.Table == "user_profiles" && row.From == "user_id" && row.To == "user_id" {
				if row.OnDelete != "CASCADE" {
					testContext.Fatalf("%s profile reference lacks cascade: %+v", table, row)
				}
				found = true
			}
		}
		if !found {
			testContext.Fatalf("expected %s to reference user_profiles(user_id)", table)
		}
	}

	profile := profiles.Profile{
		ID:         "user-schema",
		ProviderID: "google:user-schema",
		Handle:     "user-schema",
	}
	if err := database.Create(&profile).Error; err != nil {
		testContext.Fatalf("failed to insert profile with enforcement enabled: %v", err)
	}
}

func TestDeletingProfileCascadesToChildRows(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "cascade.db")
	database, err := OpenSQLite(databasePath, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	profile := profiles.Profile{
		ID:         "user-cascade",
		ProviderID: "google:user-cascade",
		Handle:     "user-cascade",
	}
	if err := database.Create(&profile).Error; err != nil {
		testContext.Fatalf("failed to seed profile: %v", err)
	}
	contest := contests.Contest{ID: "contest-1", Name: "Worlds", Kind: "worlds", Year: 2026}
	if err := database.Create(&contest).Error; err != nil {
		testContext.Fatalf("failed to seed contest: %v", err)
	}
	sub := contests.SubContest{
		ID:             "sub-1",
		ContestID:      "contest-1",
		Region:         "americas",
		ExternalSource: "feed",
		ExternalID:     "sub-1",
	}
	if err := database.Create(&sub).Error; err != nil {
		testContext.Fatalf("failed to seed sub-contest: %v", err)
	}
	match := contests.Match{
		ID:             "match-1",
		ContestID:      "contest-1",
		SubContestID:   "sub-1",
		ScheduledAt:    time.Unix(1700003600, 0).UTC(),
		ExternalSource: "feed",
		ExternalID:     "match-1",
	}
	if err := database.Create(&match).Error; err != nil {
		testContext.Fatalf("failed to seed match: %v", err)
	}
	vote := votes.Vote{UserID: profile.ID, MatchID: match.ID}
	if err := database.Create(&vote).Error; err != nil {
		testContext.Fatalf("failed to seed vote: %v", err)
	}
	points := leaderboard.Points{ID: "points-1", UserID: profile.ID, ContestID: contest.ID, Total: 40}
	if err := database.Create(&points).Error; err != nil {
		testContext.Fatalf("failed to seed points: %v", err)
	}
	breakdown := leaderboard.BreakdownPoints{ID: "breakdown-1", PointsID: points.ID, Region: "americas", Points: 40}
	if err := database.Create(&breakdown).Error; err != nil {
		testContext.Fatalf("failed to seed breakdown: %v", err)
	}
	star := leaderboard.Star{ID: "star-1", UserID: profile.ID, ContestID: contest.ID, Category: "perfect-week"}
	if err := database.Create(&star).Error; err != nil {
		testContext.Fatalf("failed to seed star: %v", err)
	}

	if err := database.Delete(&profiles.Profile{}, "user_id = ?", profile.ID).Error; err != nil {
		testContext.Fatalf("failed to delete profile: %v", err)
	}

	for table, model := range map[string]interface{}{
		"match_votes":              &votes.Vote{},
		"contest_points":           &leaderboard.Points{},
		"contest_points_breakdown": &leaderboard.BreakdownPoints{},
		"contest_stars":            &leaderboard.Star{},
	} {
		var count int64
		if err := database.Model(model).Count(&count).Error; err != nil {
			testContext.Fatalf("failed to count %s: %v", table, err)
		}
		if count != 0 {
			testContext.Fatalf("expected %s rows to cascade away, found %d", table, count)
		}
	}
}
