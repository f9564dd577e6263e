package auth

import (
	"time"

	"github.com/google/uuid"
)

// User is an account row. PasswordHash never leaves the package; use SafeUser
// before handing a User to a caller.
type User struct {
	ID           uuid.UUID
	Email        string
	DisplayName  *string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SafeUser returns a copy without the password hash.
func (u User) SafeUser() User {
	u.PasswordHash = ""
	return u
}

// TokenPair is what a successful register, login or refresh hands back.
type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// RefreshSession is the stored state of one issued refresh token. Only the
// HMAC of the token is persisted.
type RefreshSession struct {
	UserID    uuid.UUID
	ExpiresAt time.Time
	RevokedAt *time.Time
}

func (s RefreshSession) usable(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// Profile is the authenticated user together with their root folder.
type Profile struct {
	User         User
	RootFolderID uuid.UUID
}
