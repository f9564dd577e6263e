package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abduss/treedrive/internal/config"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenIssuer        = "treedrive"
	tokenAudience      = "treedrive-api"
	refreshTokenLength = 48
	minPasswordLength  = 8
	maxPasswordLength  = 72 // bcrypt ignores anything past 72 bytes
)

type userStore interface {
	CreateUser(ctx context.Context, email, passwordHash string, displayName *string) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (User, error)
	StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	FindRefreshSession(ctx context.Context, tokenHash string) (RefreshSession, error)
	RevokeToken(ctx context.Context, userID uuid.UUID, tokenHash string) error
}

// rootProvisioner returns the owner's root folder, creating it if missing.
type rootProvisioner interface {
	RootFolderID(ctx context.Context, ownerID uuid.UUID) (uuid.UUID, error)
}

// Service issues and validates the tokens that scope every folder and file
// request to one owner.
type Service struct {
	store   userStore
	roots   rootProvisioner
	cfg     config.AuthConfig
	log     *zap.Logger
	nowFunc func() time.Time
	parser  *jwt.Parser
}

func NewService(store userStore, roots rootProvisioner, cfg config.AuthConfig, log *zap.Logger) *Service {
	s := &Service{
		store:   store,
		roots:   roots,
		cfg:     cfg,
		log:     log,
		nowFunc: time.Now,
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.nowFunc() }),
	)
	return s
}

// Credentials is an email and password pair as submitted by a client.
type Credentials struct {
	Email    string
	Password string
}

func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, is.EmailFormat),
		validation.Field(&c.Password, validation.Required, validation.Length(minPasswordLength, maxPasswordLength)),
	)
}

// RegisterInput is a new account request.
type RegisterInput struct {
	Credentials
	DisplayName *string
}

// AuthResult is returned by every call that issues tokens.
type AuthResult struct {
	User         User
	Tokens       TokenPair
	RootFolderID uuid.UUID
}

// UserClaims is the identity carried by a valid access token.
type UserClaims struct {
	UserID    uuid.UUID
	Email     string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Register creates the account, provisions its root folder and signs it in.
func (s *Service) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	if err := input.Credentials.Validate(); err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cfg.BcryptCost)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, normalizeEmail(input.Email), string(hash), input.DisplayName)
	if err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			return AuthResult{}, ErrEmailAlreadyExists
		}
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	result, err := s.issueTokens(ctx, user)
	if err != nil {
		return AuthResult{}, err
	}

	s.log.Info("user registered", zap.Stringer("user_id", user.ID), zap.Stringer("root_folder_id", result.RootFolderID))
	return result, nil
}

// Login checks the password and issues a fresh token pair. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, creds Credentials) (AuthResult, error) {
	if err := creds.Validate(); err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}

	user, err := s.store.FindUserByEmail(ctx, normalizeEmail(creds.Email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}

	return s.issueTokens(ctx, user)
}

// Refresh trades a live refresh token for a new pair. The presented token is
// revoked first, so each refresh token works exactly once.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return AuthResult{}, ErrInvalidRefreshToken
	}
	hash := s.hashRefreshToken(refreshToken)

	session, err := s.store.FindRefreshSession(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			return AuthResult{}, ErrInvalidRefreshToken
		}
		return AuthResult{}, fmt.Errorf("find refresh token: %w", err)
	}
	if !session.usable(s.nowFunc()) {
		return AuthResult{}, ErrInvalidRefreshToken
	}

	user, err := s.store.FindUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return AuthResult{}, ErrInvalidRefreshToken
		}
		return AuthResult{}, fmt.Errorf("find user: %w", err)
	}

	if err := s.revoke(ctx, user.ID, hash); err != nil {
		return AuthResult{}, err
	}
	return s.issueTokens(ctx, user)
}

// Logout revokes one of the caller's refresh tokens. Access tokens stay valid
// until they expire.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return ErrInvalidRefreshToken
	}
	if err := s.revoke(ctx, userID, s.hashRefreshToken(refreshToken)); err != nil {
		return err
	}
	s.log.Info("refresh token revoked", zap.Stringer("user_id", userID))
	return nil
}

// Me loads the caller's account and root folder.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (Profile, error) {
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Profile{}, ErrUserNotFound
		}
		return Profile{}, fmt.Errorf("find user: %w", err)
	}

	rootID, err := s.roots.RootFolderID(ctx, user.ID)
	if err != nil {
		return Profile{}, fmt.Errorf("provision root folder: %w", err)
	}
	return Profile{User: user.SafeUser(), RootFolderID: rootID}, nil
}

// ValidateAccessToken verifies signature, issuer, audience and expiry.
func (s *Service) ValidateAccessToken(tokenString string) (UserClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return UserClaims{}, ErrUnauthorized
	}

	var claims accessClaims
	token, err := s.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return []byte(s.cfg.AccessTokenSecret), nil
	})
	if err != nil || !token.Valid {
		return UserClaims{}, ErrUnauthorized
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return UserClaims{}, ErrUnauthorized
	}

	out := UserClaims{
		UserID:    userID,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

func (s *Service) revoke(ctx context.Context, userID uuid.UUID, hash string) error {
	if err := s.store.RevokeToken(ctx, userID, hash); err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			return ErrInvalidRefreshToken
		}
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (s *Service) issueTokens(ctx context.Context, user User) (AuthResult, error) {
	now := s.nowFunc()

	access, accessExpiry, err := s.signAccessToken(user, now)
	if err != nil {
		return AuthResult{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := newRefreshToken()
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate refresh token: %w", err)
	}
	refreshExpiry := now.Add(s.cfg.RefreshTokenTTL)
	if err := s.store.StoreRefreshToken(ctx, user.ID, s.hashRefreshToken(refresh), refreshExpiry); err != nil {
		return AuthResult{}, fmt.Errorf("store refresh token: %w", err)
	}

	// accounts created before root provisioning get their root here
	rootID, err := s.roots.RootFolderID(ctx, user.ID)
	if err != nil {
		return AuthResult{}, fmt.Errorf("provision root folder: %w", err)
	}

	return AuthResult{
		User:         user.SafeUser(),
		RootFolderID: rootID,
		Tokens: TokenPair{
			AccessToken:        access,
			AccessTokenExpiry:  accessExpiry,
			RefreshToken:       refresh,
			RefreshTokenExpiry: refreshExpiry,
		},
	}, nil
}

func (s *Service) signAccessToken(user User, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(s.cfg.AccessTokenTTL)
	claims := accessClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.String(),
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Only the HMAC of a refresh token is ever stored.
func (s *Service) hashRefreshToken(token string) string {
	mac := hmac.New(sha256.New, []byte(s.cfg.RefreshTokenSecret))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

func newRefreshToken() (string, error) {
	raw := make([]byte, refreshTokenLength)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
