package contests

import (
	"time"
)

// Contest is a top-level prediction event, e.g. one tournament year.
type Contest struct {
	ID        string    `gorm:"column:id;primaryKey;size:36;not null"`
	Name      string    `gorm:"column:name;size:190;not null"`
	Kind      string    `gorm:"column:kind;size:64;not null"`
	Year      int       `gorm:"column:year;not null"`
	Ongoing   bool      `gorm:"column:ongoing;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName exposes the table backing contests.
func (Contest) TableName() string {
	return "contests"
}

// SubContest is a region-scoped grouping within a contest. The parent
// reference is fixed once created.
type SubContest struct {
	ID             string    `gorm:"column:id;primaryKey;size:36;not null"`
	ContestID      string    `gorm:"column:contest_id;size:36;not null;index"`
	Region         string    `gorm:"column:region;size:64;not null"`
	ExternalSource string    `gorm:"column:external_source;size:64;not null;uniqueIndex:idx_subcontests_external,priority:1"`
	ExternalID     string    `gorm:"column:external_id;size:190;not null;uniqueIndex:idx_subcontests_external,priority:2"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`

	Contest Contest `gorm:"foreignKey:ContestID;constraint:OnDelete:CASCADE"`
}

// TableName exposes the table backing sub-contests.
func (SubContest) TableName() string {
	return "sub_contests"
}

// Team is an ingested competitor. Short name and slug stay stable across
// re-ingestion of the same external row.
type Team struct {
	ID             string    `gorm:"column:id;primaryKey;size:36;not null"`
	Name           string    `gorm:"column:name;size:190;not null"`
	ShortName      string    `gorm:"column:short_name;size:64;not null;uniqueIndex"`
	Slug           string    `gorm:"column:slug;size:190;not null;uniqueIndex"`
	ExternalSource string    `gorm:"column:external_source;size:64;not null;uniqueIndex:idx_teams_external,priority:1"`
	ExternalID     string    `gorm:"column:external_id;size:190;not null;uniqueIndex:idx_teams_external,priority:2"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

// TableName exposes the table backing teams.
func (Team) TableName() string {
	return "teams"
}

// Match pairs two teams inside a sub-contest. The contest reference is fixed
// once created; team references are cleared when a team is deleted.
type Match struct {
	ID             string     `gorm:"column:id;primaryKey;size:36;not null"`
	ContestID      string     `gorm:"column:contest_id;size:36;not null;index"`
	SubContestID   string     `gorm:"column:sub_contest_id;size:36;not null;index"`
	TeamAID        *string    `gorm:"column:team_a_id;size:36"`
	TeamBID        *string    `gorm:"column:team_b_id;size:36"`
	WinnerTeamID   *string    `gorm:"column:winner_team_id;size:36"`
	ScheduledAt    time.Time  `gorm:"column:scheduled_at;not null;index"`
	ExternalSource string     `gorm:"column:external_source;size:64;not null;uniqueIndex:idx_matches_external,priority:1"`
	ExternalID     string     `gorm:"column:external_id;size:190;not null;uniqueIndex:idx_matches_external,priority:2"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`

	Contest    Contest    `gorm:"foreignKey:ContestID;constraint:OnDelete:CASCADE"`
	SubContest SubContest `gorm:"foreignKey:SubContestID;constraint:OnDelete:CASCADE"`
	TeamA      *Team      `gorm:"foreignKey:TeamAID;constraint:OnDelete:SET NULL"`
	TeamB      *Team      `gorm:"foreignKey:TeamBID;constraint:OnDelete:SET NULL"`
	Winner     *Team      `gorm:"foreignKey:WinnerTeamID;constraint:OnDelete:SET NULL"`
}

// TableName exposes the table backing matches.
func (Match) TableName() string {
	return "matches"
}
