package contests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrImmutableFieldViolation indicates an upsert tried to move a row to a
	// different parent contest.
	ErrImmutableFieldViolation = errors.New("contests: immutable field violation")
	// ErrNotFound indicates a referenced contest, sub-contest or match does
	// not exist.
	ErrNotFound = errors.New("contests: not found")
)

// ServiceConfig describes the dependencies for the reference-data service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service ingests and serves contests, sub-contests, teams and matches.
// Mutating operations are reserved for the privileged ingestion role; the
// router enforces that before calling in.
type Service struct {
	db         *gorm.DB
	now        func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the reference-data service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("contests: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("contests: id provider required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         cfg.Database,
		now:        clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// ContestInput describes a contest create or update. An empty ID creates a
// new contest; a populated ID updates the existing one.
type ContestInput struct {
	ID      string
	Name    string
	Kind    string
	Year    int
	Ongoing bool
}

// UpsertContest creates or updates a contest and returns its id. The creation
// timestamp is never rewritten on update.
func (s *Service) UpsertContest(ctx context.Context, input ContestInput) (string, error) {
	now := s.now().UTC()

	if input.ID == "" {
		id, err := s.idProvider.NewID()
		if err != nil {
			return "", err
		}
		contest := Contest{
			ID:        id,
			Name:      input.Name,
			Kind:      input.Kind,
			Year:      input.Year,
			Ongoing:   input.Ongoing,
			UpdatedAt: now,
		}
		if err := s.db.WithContext(ctx).Create(&contest).Error; err != nil {
			return "", err
		}
		return id, nil
	}

	result := s.db.WithContext(ctx).
		Model(&Contest{}).
		Where("id = ?", input.ID).
		Updates(map[string]interface{}{
			"name":       input.Name,
			"kind":       input.Kind,
			"year":       input.Year,
			"ongoing":    input.Ongoing,
			"updated_at": now,
		})
	if result.Error != nil {
		return "", result.Error
	}
	if result.RowsAffected == 0 {
		return "", fmt.Errorf("%w: contest %s", ErrNotFound, input.ID)
	}
	return input.ID, nil
}

// SubContestInput describes an ingested region grouping keyed by its
// external source row.
type SubContestInput struct {
	ContestID      string
	Region         string
	ExternalSource string
	ExternalID     string
}

// UpsertSubContest creates or updates the sub-contest identified by
// (external source, external id). The parent contest reference is immutable.
func (s *Service) UpsertSubContest(ctx context.Context, input SubContestInput) (string, error) {
	var subContestID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing SubContest
		err := tx.Where("external_source = ? AND external_id = ?", input.ExternalSource, input.ExternalID).
			Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := s.requireContest(tx, input.ContestID); err != nil {
				return err
			}
			id, err := s.idProvider.NewID()
			if err != nil {
				return err
			}
			created := SubContest{
				ID:             id,
				ContestID:      input.ContestID,
				Region:         input.Region,
				ExternalSource: input.ExternalSource,
				ExternalID:     input.ExternalID,
				UpdatedAt:      s.now().UTC(),
			}
			if err := tx.Create(&created).Error; err != nil {
				return err
			}
			subContestID = id
			return nil
		}
		if err != nil {
			return err
		}

		if existing.ContestID != input.ContestID {
			return fmt.Errorf("%w: sub-contest contest_id", ErrImmutableFieldViolation)
		}
		subContestID = existing.ID
		return tx.Model(&SubContest{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"region":     input.Region,
				"updated_at": s.now().UTC(),
			}).Error
	})
	if err != nil {
		return "", err
	}
	return subContestID, nil
}

// TeamInput describes an ingested team keyed by its external source row.
type TeamInput struct {
	Name           string
	ShortName      string
	ExternalSource string
	ExternalID     string
}

// UpsertTeam creates or updates the team identified by
// (external source, external id). Short name and slug are assigned on first
// ingestion and kept stable afterwards.
func (s *Service) UpsertTeam(ctx context.Context, input TeamInput) (string, error) {
	var teamID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Team
		err := tx.Where("external_source = ? AND external_id = ?", input.ExternalSource, input.ExternalID).
			Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			id, err := s.idProvider.NewID()
			if err != nil {
				return err
			}
			created := Team{
				ID:             id,
				Name:           input.Name,
				ShortName:      input.ShortName,
				Slug:           slug.Make(input.Name),
				ExternalSource: input.ExternalSource,
				ExternalID:     input.ExternalID,
				UpdatedAt:      s.now().UTC(),
			}
			if err := tx.Create(&created).Error; err != nil {
				return err
			}
			teamID = id
			return nil
		}
		if err != nil {
			return err
		}

		teamID = existing.ID
		return tx.Model(&Team{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"name":       input.Name,
				"updated_at": s.now().UTC(),
			}).Error
	})
	if err != nil {
		return "", err
	}
	return teamID, nil
}

// MatchInput describes an ingested match keyed by its external source row.
type MatchInput struct {
	ContestID      string
	SubContestID   string
	TeamAID        *string
	TeamBID        *string
	WinnerTeamID   *string
	ScheduledAt    time.Time
	ExternalSource string
	ExternalID     string
}

// UpsertMatch creates or updates the match identified by
// (external source, external id). The contest reference is immutable; team
// references, schedule and winner follow the ingested row.
func (s *Service) UpsertMatch(ctx context.Context, input MatchInput) (string, error) {
	var matchID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Match
		err := tx.Where("external_source = ? AND external_id = ?", input.ExternalSource, input.ExternalID).
			Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := s.requireContest(tx, input.ContestID); err != nil {
				return err
			}
			var subContest SubContest
			if err := tx.Where("id = ?", input.SubContestID).Take(&subContest).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: sub-contest %s", ErrNotFound, input.SubContestID)
				}
				return err
			}
			id, err := s.idProvider.NewID()
			if err != nil {
				return err
			}
			created := Match{
				ID:             id,
				ContestID:      input.ContestID,
				SubContestID:   input.SubContestID,
				TeamAID:        input.TeamAID,
				TeamBID:        input.TeamBID,
				WinnerTeamID:   input.WinnerTeamID,
				ScheduledAt:    input.ScheduledAt.UTC(),
				ExternalSource: input.ExternalSource,
				ExternalID:     input.ExternalID,
				UpdatedAt:      s.now().UTC(),
			}
			if err := tx.Create(&created).Error; err != nil {
				return err
			}
			matchID = id
			return nil
		}
		if err != nil {
			return err
		}

		if existing.ContestID != input.ContestID {
			return fmt.Errorf("%w: match contest_id", ErrImmutableFieldViolation)
		}
		matchID = existing.ID
		return tx.Model(&Match{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"sub_contest_id": input.SubContestID,
				"team_a_id":      input.TeamAID,
				"team_b_id":      input.TeamBID,
				"winner_team_id": input.WinnerTeamID,
				"scheduled_at":   input.ScheduledAt.UTC(),
				"updated_at":     s.now().UTC(),
			}).Error
	})
	if err != nil {
		return "", err
	}
	return matchID, nil
}

// ListContests returns all contests, most recent year first.
func (s *Service) ListContests(ctx context.Context) ([]Contest, error) {
	var records []Contest
	if err := s.db.WithContext(ctx).
		Order("year DESC, name ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ListMatches returns the matches of one contest in schedule order.
func (s *Service) ListMatches(ctx context.Context, contestID string) ([]Match, error) {
	var records []Match
	if err := s.db.WithContext(ctx).
		Where("contest_id = ?", contestID).
		Order("scheduled_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// GetMatch returns a single match by id.
func (s *Service) GetMatch(ctx context.Context, matchID string) (Match, error) {
	var record Match
	err := s.db.WithContext(ctx).
		Where("id = ?", matchID).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Match{}, fmt.Errorf("%w: match %s", ErrNotFound, matchID)
	}
	if err != nil {
		return Match{}, err
	}
	return record, nil
}

func (s *Service) requireContest(tx *gorm.DB, contestID string) error {
	var contest Contest
	err := tx.Where("id = ?", contestID).Take(&contest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: contest %s", ErrNotFound, contestID)
	}
	return err
}
