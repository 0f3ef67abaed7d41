package votes

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bracketlab/pickem-api/internal/contests"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound indicates the referenced match or team does not exist.
	ErrNotFound = errors.New("votes: not found")
	// ErrAlreadyLocked is surfaced by callers once a match's scheduled start
	// has passed. The ledger itself never blocks a write on it; lock timing
	// is policy owned by the calling layer, which consults IsLocked first.
	ErrAlreadyLocked = errors.New("votes: match already locked")

	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// ServiceError wraps a coded ledger failure.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the machine-readable failure code.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew = "votes.service.new"
	opCast       = "votes.cast"
	opRetract    = "votes.retract"
	opList       = "votes.list"
	opStats      = "votes.stats"
	opIsLocked   = "votes.is_locked"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies for the prediction ledger.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service records one vote per (principal, match) pair. Reads are public;
// writes are scoped to the authenticated principal by the caller passing its
// own id, never a caller-supplied one.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the prediction ledger.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:     cfg.Database,
		clock:  clock,
		logger: logger,
	}, nil
}

// CastOrUpdate records the principal's prediction for a match, replacing any
// prior prediction. Upsert on the (user, match) key: ownership columns are
// never rewritten, concurrent double-submission collapses to one row.
func (s *Service) CastOrUpdate(ctx context.Context, userID, matchID, teamID string) error {
	var match contests.Match
	err := s.db.WithContext(ctx).Where("id = ?", matchID).Take(&match).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: match %s", ErrNotFound, matchID)
	}
	if err != nil {
		s.logError(opCast, "match_select_failed", err, zap.String("match_id", matchID))
		return newServiceError(opCast, "match_select_failed", err)
	}

	var team contests.Team
	err = s.db.WithContext(ctx).Where("id = ?", teamID).Take(&team).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: team %s", ErrNotFound, teamID)
	}
	if err != nil {
		s.logError(opCast, "team_select_failed", err, zap.String("team_id", teamID))
		return newServiceError(opCast, "team_select_failed", err)
	}

	now := s.clock().UTC()
	vote := Vote{
		UserID:    userID,
		MatchID:   matchID,
		TeamID:    &team.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "match_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"team_id":    team.ID,
				"updated_at": now,
			}),
		}).
		Create(&vote).Error
	if err != nil {
		s.logError(opCast, "vote_upsert_failed", err,
			zap.String("user_id", userID),
			zap.String("match_id", matchID))
		return newServiceError(opCast, "vote_upsert_failed", err)
	}
	return nil
}

// Retract removes the principal's own vote for a match. Retracting a vote
// that does not exist is a no-op.
func (s *Service) Retract(ctx context.Context, userID, matchID string) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND match_id = ?", userID, matchID).
		Delete(&Vote{}).Error
	if err != nil {
		s.logError(opRetract, "vote_delete_failed", err,
			zap.String("user_id", userID),
			zap.String("match_id", matchID))
		return newServiceError(opRetract, "vote_delete_failed", err)
	}
	return nil
}

// ListForMatch returns every vote cast for a match. Votes are publicly
// readable.
func (s *Service) ListForMatch(ctx context.Context, matchID string) ([]Vote, error) {
	var records []Vote
	if err := s.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		s.logError(opList, "query_failed", err, zap.String("match_id", matchID))
		return nil, newServiceError(opList, "query_failed", err)
	}
	return records, nil
}

type teamTally struct {
	TeamID string
	Total  int64
}

// Stats aggregates a match's votes per team. Percentages are rounded to two
// decimal places; teams with zero votes are absent from the result.
func (s *Service) Stats(ctx context.Context, matchID string) (map[string]TeamStats, error) {
	var tallies []teamTally
	err := s.db.WithContext(ctx).
		Model(&Vote{}).
		Select("team_id, COUNT(*) AS total").
		Where("match_id = ? AND team_id IS NOT NULL", matchID).
		Group("team_id").
		Scan(&tallies).Error
	if err != nil {
		s.logError(opStats, "query_failed", err, zap.String("match_id", matchID))
		return nil, newServiceError(opStats, "query_failed", err)
	}

	var total int64
	for _, tally := range tallies {
		total += tally.Total
	}

	stats := make(map[string]TeamStats, len(tallies))
	for _, tally := range tallies {
		percentage := float64(0)
		if total > 0 {
			percentage = math.Round(float64(tally.Total)/float64(total)*100*100) / 100
		}
		stats[tally.TeamID] = TeamStats{
			Count:      tally.Total,
			Percentage: percentage,
		}
	}
	return stats, nil
}

// IsLocked reports whether the match's scheduled start has passed. Computed
// on read against the current schedule row, so a corrected start time
// immediately corrects the lock.
func (s *Service) IsLocked(ctx context.Context, matchID string) (bool, error) {
	var match contests.Match
	err := s.db.WithContext(ctx).Where("id = ?", matchID).Take(&match).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("%w: match %s", ErrNotFound, matchID)
	}
	if err != nil {
		s.logError(opIsLocked, "match_select_failed", err, zap.String("match_id", matchID))
		return false, newServiceError(opIsLocked, "match_select_failed", err)
	}
	return !s.clock().UTC().Before(match.ScheduledAt.UTC()), nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("vote ledger error", attrs...)
}
