package votes

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/bracketlab/pickem-api/internal/contests"
	"github.com/bracketlab/pickem-api/internal/profiles"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const matchStart = int64(1700003600)

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
		&contests.SubContest{},
		&contests.Team{},
		&contests.Match{},
		&Vote{},
	); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

type fixture struct {
	matchID string
	teamA   string
	teamB   string
}

func seedFixture(t *testing.T, db *gorm.DB) fixture {
	t.Helper()

	for _, userID := range []string{"user-1", "user-2", "user-3", "user-4"} {
		profile := profiles.Profile{
			ID:         userID,
			ProviderID: "google:" + userID,
			Handle:     userID,
		}
		if err := db.Create(&profile).Error; err != nil {
			t.Fatalf("profile seed failed: %v", err)
		}
	}

	contest := contests.Contest{ID: "contest-1", Name: "Worlds", Kind: "worlds", Year: 2026}
	if err := db.Create(&contest).Error; err != nil {
		t.Fatalf("contest seed failed: %v", err)
	}
	sub := contests.SubContest{
		ID: "sub-1", ContestID: "contest-1", Region: "emea",
		ExternalSource: "feed", ExternalID: "group-1",
	}
	if err := db.Create(&sub).Error; err != nil {
		t.Fatalf("sub-contest seed failed: %v", err)
	}
	teamA := contests.Team{
		ID: "team-a", Name: "Alpha", ShortName: "ALP", Slug: "alpha",
		ExternalSource: "feed", ExternalID: "team-a",
	}
	teamB := contests.Team{
		ID: "team-b", Name: "Beta", ShortName: "BET", Slug: "beta",
		ExternalSource: "feed", ExternalID: "team-b",
	}
	if err := db.Create(&teamA).Error; err != nil {
		t.Fatalf("team seed failed: %v", err)
	}
	if err := db.Create(&teamB).Error; err != nil {
		t.Fatalf("team seed failed: %v", err)
	}
	match := contests.Match{
		ID: "match-1", ContestID: "contest-1", SubContestID: "sub-1",
		TeamAID: &teamA.ID, TeamBID: &teamB.ID,
		ScheduledAt:    time.Unix(matchStart, 0).UTC(),
		ExternalSource: "feed", ExternalID: "match-1",
	}
	if err := db.Create(&match).Error; err != nil {
		t.Fatalf("match seed failed: %v", err)
	}
	return fixture{matchID: "match-1", teamA: "team-a", teamB: "team-b"}
}

func newTestService(t *testing.T, db *gorm.DB, now int64) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock: func() time.Time {
			return time.Unix(now, 0)
		},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service
}

func TestCastOrUpdateCollapsesToOneRow(t *testing.T) {
	db := openTestDB(t, "votes_upsert")
	fx := seedFixture(t, db)
	service := newTestService(t, db, matchStart-3600)

	if err := service.CastOrUpdate(context.Background(), "user-1", fx.matchID, fx.teamA); err != nil {
		t.Fatalf("first cast failed: %v", err)
	}
	if err := service.CastOrUpdate(context.Background(), "user-1", fx.matchID, fx.teamB); err != nil {
		t.Fatalf("second cast failed: %v", err)
	}

	var rows []Vote
	if err := db.Where("user_id = ? AND match_id = ?", "user-1", fx.matchID).Find(&rows).Error; err != nil {
		t.Fatalf("vote query failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one vote row, got %d", len(rows))
	}
	if rows[0].TeamID == nil || *rows[0].TeamID != fx.teamB {
		t.Fatalf("expected last cast to win, got %+v", rows[0])
	}
}

func TestCastOrUpdateRejectsUnknownReferences(t *testing.T) {
	db := openTestDB(t, "votes_missing")
	fx := seedFixture(t, db)
	service := newTestService(t, db, matchStart-3600)

	err := service.CastOrUpdate(context.Background(), "user-1", "missing-match", fx.teamA)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown match, got %v", err)
	}

	err = service.CastOrUpdate(context.Background(), "user-1", fx.matchID, "missing-team")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown team, got %v", err)
	}
}

func TestRetractRemovesOwnVote(t *testing.T) {
	db := openTestDB(t, "votes_retract")
	fx := seedFixture(t, db)
	service := newTestService(t, db, matchStart-3600)

	if err := service.CastOrUpdate(context.Background(), "user-1", fx.matchID, fx.teamA); err != nil {
		t.Fatalf("cast failed: %v", err)
	}
	if err := service.Retract(context.Background(), "user-1", fx.matchID); err != nil {
		t.Fatalf("retract failed: %v", err)
	}

	listed, err := service.ListForMatch(context.Background(), fx.matchID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected no votes after retract, got %d", len(listed))
	}

	// Retracting again is a no-op.
	if err := service.Retract(context.Background(), "user-1", fx.matchID); err != nil {
		t.Fatalf("second retract failed: %v", err)
	}
}

func TestStatsRoundsAndOmitsZeroVoteTeams(t *testing.T) {
	db := openTestDB(t, "votes_stats")
	fx := seedFixture(t, db)
	service := newTestService(t, db, matchStart-3600)

	for _, cast := range []struct {
		user string
		team string
	}{
		{"user-1", fx.teamA},
		{"user-2", fx.teamA},
		{"user-3", fx.teamA},
		{"user-4", fx.teamB},
	} {
		if err := service.CastOrUpdate(context.Background(), cast.user, fx.matchID, cast.team); err != nil {
			t.Fatalf("cast failed: %v", err)
		}
	}

	stats, err := service.Stats(context.Background(), fx.matchID)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected stats for two teams, got %d", len(stats))
	}
	if stats[fx.teamA].Count != 3 || stats[fx.teamA].Percentage != 75 {
		t.Fatalf("unexpected team A stats: %+v", stats[fx.teamA])
	}
	if stats[fx.teamB].Count != 1 || stats[fx.teamB].Percentage != 25 {
		t.Fatalf("unexpected team B stats: %+v", stats[fx.teamB])
	}

	var sum float64
	for _, entry := range stats {
		sum += entry.Percentage
	}
	if math.Abs(sum-100) > 0.01 {
		t.Fatalf("expected percentages to sum to 100, got %f", sum)
	}
}

func TestStatsEmptyMatch(t *testing.T) {
	db := openTestDB(t, "votes_stats_empty")
	fx := seedFixture(t, db)
	service := newTestService(t, db, matchStart-3600)

	stats, err := service.Stats(context.Background(), fx.matchID)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if len(stats) != 0 {
		t.Fatalf("expected empty stats, got %+v", stats)
	}
}

func TestIsLockedFollowsSchedule(t *testing.T) {
	db := openTestDB(t, "votes_lock")
	fx := seedFixture(t, db)

	before := newTestService(t, db, matchStart-60)
	locked, err := before.IsLocked(context.Background(), fx.matchID)
	if err != nil {
		t.Fatalf("lock check failed: %v", err)
	}
	if locked {
		t.Fatalf("expected match to be open before its scheduled start")
	}

	after := newTestService(t, db, matchStart)
	locked, err = after.IsLocked(context.Background(), fx.matchID)
	if err != nil {
		t.Fatalf("lock check failed: %v", err)
	}
	if !locked {
		t.Fatalf("expected match to lock at its scheduled start")
	}

	_, err = after.IsLocked(context.Background(), "missing-match")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown match, got %v", err)
	}
}
