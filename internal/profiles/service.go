package profiles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrMissingRequiredClaim indicates provisioning was invoked without a
	// provider id or handle-bearing name claim.
	ErrMissingRequiredClaim = errors.New("profiles: missing required claim")
	// ErrImmutableFieldViolation indicates an update tried to change a field
	// fixed at provisioning time.
	ErrImmutableFieldViolation = errors.New("profiles: immutable field violation")
	// ErrNotFound indicates no identity record exists for the principal.
	ErrNotFound = errors.New("profiles: profile not found")
)

// ServiceConfig describes the dependencies required for identity records.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service manages identity records and their public projections.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

// NewService constructs the profile service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("profiles: database connection required")
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
		db:     cfg.Database,
		now:    clock,
		logger: logger,
	}, nil
}

// Provision creates the identity record for a first-time principal.
// Insert-if-absent keyed on the user id: a retried signup event is a no-op.
// A unique collision on provider id or handle held by a different principal
// is logged and swallowed so the upstream signup never fails because of a
// provisioning problem.
func (s *Service) Provision(ctx context.Context, claims SignupClaims) error {
	userID := normalize(claims.UserID)
	providerID := normalize(claims.ProviderID)
	handle := normalize(claims.Name)
	if userID == "" || providerID == "" || handle == "" {
		return ErrMissingRequiredClaim
	}

	displayName := normalize(claims.FullName)
	if displayName == "" {
		displayName = normalize(claims.Email)
	}
	if displayName == "" {
		displayName = handle
	}

	record := Profile{
		ID:          userID,
		ProviderID:  providerID,
		Handle:      handle,
		DisplayName: displayName,
		AvatarURL:   normalize(claims.AvatarURL),
		Email:       normalize(claims.Email),
		UpdatedAt:   s.now().UTC(),
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			s.logger.Warn("profile provisioning collision",
				zap.String("user_id", userID),
				zap.String("handle", handle),
				zap.Error(err))
			return nil
		}
		return err
	}
	return nil
}

// GetOwn returns the identity record owned by the acting principal.
func (s *Service) GetOwn(ctx context.Context, userID string) (Profile, error) {
	var record Profile
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	return record, nil
}

// UpdateOwn applies the requested mutation to the principal's own record.
// The immutability guard runs before any persistence: a request that would
// change the user id, provider id or handle is rejected whole.
func (s *Service) UpdateOwn(ctx context.Context, userID string, update ProfileUpdate) error {
	current, err := s.GetOwn(ctx, userID)
	if err != nil {
		return err
	}

	if err := guardImmutableFields(current, update); err != nil {
		return err
	}

	changes := map[string]interface{}{}
	if update.DisplayName != nil {
		changes["display_name"] = normalize(*update.DisplayName)
	}
	if update.AvatarURL != nil {
		changes["avatar_url"] = normalize(*update.AvatarURL)
	}
	if update.Email != nil {
		changes["email"] = normalize(*update.Email)
	}
	if len(changes) == 0 {
		return nil
	}
	changes["updated_at"] = s.now().UTC()

	return s.db.WithContext(ctx).
		Model(&Profile{}).
		Where("user_id = ?", userID).
		Updates(changes).Error
}

// ListPublicProfiles returns every provisioned principal's public projection,
// ordered by handle ascending. This is the only code path that reads across
// principals, and it only ever leaves through Project.
func (s *Service) ListPublicProfiles(ctx context.Context) ([]PublicProfile, error) {
	var records []Profile
	if err := s.db.WithContext(ctx).
		Order("handle ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}

	projected := make([]PublicProfile, 0, len(records))
	for _, record := range records {
		projected = append(projected, Project(record))
	}
	return projected, nil
}

func guardImmutableFields(current Profile, update ProfileUpdate) error {
	if update.UserID != nil && normalize(*update.UserID) != current.ID {
		return fmt.Errorf("%w: user_id", ErrImmutableFieldViolation)
	}
	if update.ProviderID != nil && normalize(*update.ProviderID) != current.ProviderID {
		return fmt.Errorf("%w: provider_id", ErrImmutableFieldViolation)
	}
	if update.Handle != nil && normalize(*update.Handle) != current.Handle {
		return fmt.Errorf("%w: handle", ErrImmutableFieldViolation)
	}
	return nil
}
