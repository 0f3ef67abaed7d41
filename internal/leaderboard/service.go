package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bracketlab/pickem-api/internal/contests"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrConflict indicates an attempt to award a star the principal already
	// holds.
	ErrConflict = errors.New("leaderboard: conflict")
	// ErrNotFound indicates the referenced contest or points row is missing.
	ErrNotFound = errors.New("leaderboard: not found")
)

// ServiceConfig describes the dependencies for the aggregator.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider contests.IDProvider
	Logger     *zap.Logger
}

// Service maintains per-principal contest totals composed from per-region
// breakdowns, plus achievement stars. Mutations are reserved for the
// privileged scoring role; principals read only.
type Service struct {
	db         *gorm.DB
	now        func() time.Time
	idProvider contests.IDProvider
	logger     *zap.Logger
}

// NewService constructs the aggregator.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("leaderboard: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("leaderboard: id provider required")
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

// UpsertBreakdown records a region's points for a (principal, contest) pair
// and recomputes the total. The breakdown write and the total recompute share
// one transaction so a concurrent upsert can never leave a stale total.
func (s *Service) UpsertBreakdown(ctx context.Context, userID, contestID, region string, points int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		parent, err := s.findOrCreatePoints(tx, userID, contestID)
		if err != nil {
			return err
		}

		breakdownID, err := s.idProvider.NewID()
		if err != nil {
			return err
		}
		breakdown := BreakdownPoints{
			ID:       breakdownID,
			PointsID: parent.ID,
			Region:   region,
			Points:   points,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "points_id"}, {Name: "region"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"points": points}),
		}).Create(&breakdown).Error; err != nil {
			return err
		}

		return s.recomputeTotalTx(tx, parent.ID)
	})
}

// RecomputeTotal rewrites the stored total from the current breakdown rows
// for the (principal, contest) pair, inside one transaction.
func (s *Service) RecomputeTotal(ctx context.Context, userID, contestID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parent Points
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND contest_id = ?", userID, contestID).
			Take(&parent).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: points for user %s contest %s", ErrNotFound, userID, contestID)
		}
		if err != nil {
			return err
		}
		return s.recomputeTotalTx(tx, parent.ID)
	})
}

// GetTotal returns the principal's total for a contest; zero when the
// principal has not been scored yet.
func (s *Service) GetTotal(ctx context.Context, userID, contestID string) (int, error) {
	var parent Points
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND contest_id = ?", userID, contestID).
		Take(&parent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return parent.Total, nil
}

// ListBreakdown returns the per-region components behind a principal's total.
func (s *Service) ListBreakdown(ctx context.Context, userID, contestID string) ([]BreakdownPoints, error) {
	var parent Points
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND contest_id = ?", userID, contestID).
		Take(&parent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []BreakdownPoints{}, nil
	}
	if err != nil {
		return nil, err
	}

	var rows []BreakdownPoints
	if err := s.db.WithContext(ctx).
		Where("points_id = ?", parent.ID).
		Order("region ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListLeaderboard returns one entry per scored principal for a contest,
// carrying only public profile columns. Ordering is left to the caller.
func (s *Service) ListLeaderboard(ctx context.Context, contestID string) ([]Entry, error) {
	var entries []Entry
	err := s.db.WithContext(ctx).
		Model(&Points{}).
		Select("contest_points.user_id, user_profiles.handle, user_profiles.display_name, user_profiles.avatar_url, contest_points.total AS points").
		Joins("JOIN user_profiles ON user_profiles.user_id = contest_points.user_id").
		Where("contest_points.contest_id = ?", contestID).
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// AwardStar grants an achievement exactly once; a duplicate award is a
// conflict, never an overwrite.
func (s *Service) AwardStar(ctx context.Context, userID, contestID, category string) error {
	id, err := s.idProvider.NewID()
	if err != nil {
		return err
	}
	star := Star{
		ID:        id,
		UserID:    userID,
		ContestID: contestID,
		Category:  category,
	}
	err = s.db.WithContext(ctx).Create(&star).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: star %s already awarded", ErrConflict, category)
	}
	return err
}

// ListStars returns the principal's achievements for a contest.
func (s *Service) ListStars(ctx context.Context, userID, contestID string) ([]Star, error) {
	var stars []Star
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND contest_id = ?", userID, contestID).
		Order("created_at ASC").
		Find(&stars).Error; err != nil {
		return nil, err
	}
	return stars, nil
}

func (s *Service) findOrCreatePoints(tx *gorm.DB, userID, contestID string) (Points, error) {
	var parent Points
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND contest_id = ?", userID, contestID).
		Take(&parent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		var contest contests.Contest
		if err := tx.Where("id = ?", contestID).Take(&contest).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return Points{}, fmt.Errorf("%w: contest %s", ErrNotFound, contestID)
			}
			return Points{}, err
		}
		id, err := s.idProvider.NewID()
		if err != nil {
			return Points{}, err
		}
		parent = Points{
			ID:        id,
			UserID:    userID,
			ContestID: contestID,
			UpdatedAt: s.now().UTC(),
		}
		if err := tx.Create(&parent).Error; err != nil {
			return Points{}, err
		}
		return parent, nil
	}
	if err != nil {
		return Points{}, err
	}
	return parent, nil
}

func (s *Service) recomputeTotalTx(tx *gorm.DB, pointsID string) error {
	var total int
	if err := tx.Model(&BreakdownPoints{}).
		Select("COALESCE(SUM(points), 0)").
		Where("points_id = ?", pointsID).
		Scan(&total).Error; err != nil {
		return err
	}
	return tx.Model(&Points{}).
		Where("id = ?", pointsID).
		Updates(map[string]interface{}{
			"total":      total,
			"updated_at": s.now().UTC(),
		}).Error
}
