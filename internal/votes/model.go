package votes

import (
	"time"

	"github.com/bracketlab/pickem-api/internal/contests"
	"github.com/bracketlab/pickem-api/internal/profiles"
)

// Vote is one principal's prediction for one match. The (user, match) pair is
// the identity of the row and never changes; only the predicted team does.
type Vote struct {
	UserID    string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	MatchID   string    `gorm:"column:match_id;primaryKey;size:36;not null;index"`
	TeamID    *string   `gorm:"column:team_id;size:36"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at"`

	Profile profiles.Profile `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	Match   contests.Match   `gorm:"foreignKey:MatchID;constraint:OnDelete:CASCADE"`
	Team    *contests.Team   `gorm:"foreignKey:TeamID;constraint:OnDelete:SET NULL"`
}

// TableName exposes the table backing match votes.
func (Vote) TableName() string {
	return "match_votes"
}

// TeamStats aggregates the votes cast for one team in one match.
type TeamStats struct {
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}
