package leaderboard

import (
	"time"

	"github.com/bracketlab/pickem-api/internal/contests"
	"github.com/bracketlab/pickem-api/internal/profiles"
)

// Points is one principal's running total for one contest. The total is
// always the sum of the breakdown rows hanging off it; only the privileged
// scoring role writes either.
type Points struct {
	ID        string    `gorm:"column:id;primaryKey;size:36;not null"`
	UserID    string    `gorm:"column:user_id;size:190;not null;uniqueIndex:idx_points_owner,priority:1"`
	ContestID string    `gorm:"column:contest_id;size:36;not null;uniqueIndex:idx_points_owner,priority:2"`
	Total     int       `gorm:"column:total;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at"`

	Profile profiles.Profile `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	Contest contests.Contest `gorm:"foreignKey:ContestID;constraint:OnDelete:CASCADE"`
}

// TableName exposes the table backing contest points.
func (Points) TableName() string {
	return "contest_points"
}

// BreakdownPoints is a region-scoped component of a points total.
type BreakdownPoints struct {
	ID       string `gorm:"column:id;primaryKey;size:36;not null"`
	PointsID string `gorm:"column:points_id;size:36;not null;uniqueIndex:idx_breakdown_region,priority:1"`
	Region   string `gorm:"column:region;size:64;not null;uniqueIndex:idx_breakdown_region,priority:2"`
	Points   int    `gorm:"column:points;not null;default:0"`

	Parent Points `gorm:"foreignKey:PointsID;constraint:OnDelete:CASCADE"`
}

// TableName exposes the table backing point breakdowns.
func (BreakdownPoints) TableName() string {
	return "contest_points_breakdown"
}

// Star is an achievement granted to a principal for a contest. Stars are
// create-only; there is no update path.
type Star struct {
	ID        string    `gorm:"column:id;primaryKey;size:36;not null"`
	UserID    string    `gorm:"column:user_id;size:190;not null;uniqueIndex:idx_stars_award,priority:1"`
	ContestID string    `gorm:"column:contest_id;size:36;not null;uniqueIndex:idx_stars_award,priority:2"`
	Category  string    `gorm:"column:category;size:64;not null;uniqueIndex:idx_stars_award,priority:3"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`

	Profile profiles.Profile `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	Contest contests.Contest `gorm:"foreignKey:ContestID;constraint:OnDelete:CASCADE"`
}

// TableName exposes the table backing contest stars.
func (Star) TableName() string {
	return "contest_stars"
}

// Entry is one leaderboard row: the public projection of a principal plus
// its contest total. Ordering is left to the caller.
type Entry struct {
	UserID      string `json:"user_id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Points      int    `json:"points"`
}
