package profiles

import (
	"strings"
	"time"
)

// Profile holds one identity record per authenticated principal. The primary
// key is the principal's user id; child tables reference it by that column.
// ID, ProviderID and Handle are fixed at provisioning time; the owning
// principal may change the remaining fields.
type Profile struct {
	ID          string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	ProviderID  string    `gorm:"column:provider_id;size:190;not null;uniqueIndex"`
	Handle      string    `gorm:"column:handle;size:190;not null;uniqueIndex"`
	DisplayName string    `gorm:"column:display_name;size:320"`
	AvatarURL   string    `gorm:"column:avatar_url;size:512"`
	Email       string    `gorm:"column:email;size:320"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

// TableName exposes the table backing identity records.
func (Profile) TableName() string {
	return "user_profiles"
}

// PublicProfile is the outward-facing subset of a Profile. Email and
// ProviderID never appear here.
type PublicProfile struct {
	UserID      string `json:"user_id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// Project maps an identity record to its public-safe subset. Every read that
// crosses the trust boundary must go through this single function so that no
// call site can leak a private column by hand-picking fields.
func Project(record Profile) PublicProfile {
	return PublicProfile{
		UserID:      record.ID,
		Handle:      record.Handle,
		DisplayName: record.DisplayName,
		AvatarURL:   record.AvatarURL,
	}
}

// SignupClaims carries the identity-provider claims delivered on first login.
type SignupClaims struct {
	UserID     string
	ProviderID string
	Name       string
	FullName   string
	Email      string
	AvatarURL  string
}

// ProfileUpdate describes a requested mutation of an identity record.
// Nil pointers leave the field untouched. UserID, ProviderID and Handle are
// present so the immutability guard can reject attempts to change them.
type ProfileUpdate struct {
	DisplayName *string
	AvatarURL   *string
	Email       *string
	UserID      *string
	ProviderID  *string
	Handle      *string
}

// normalize value helper used across the service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}
