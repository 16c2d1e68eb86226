package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/appaccess/internal/access"
)

const defaultRefreshTTL = 30 * 24 * time.Hour

// TokenPair is what a successful login or refresh hands to the client.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int // seconds
	User         *User
}

// Service implements login, registration, refresh rotation and bearer-token
// authentication on top of the repositories.
type Service struct {
	users      UserRepository
	tokens     TokenRepository
	hasher     *Hasher
	issuer     *TokenIssuer
	refreshTTL time.Duration
	now        func() time.Time

	// dummyHash is verified against when the email is unknown.
	dummyHash string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service) error

// WithHasher overrides the password hasher.
func WithHasher(h *Hasher) ServiceOption {
	return func(s *Service) error {
		if h == nil {
			return errors.New("auth: nil hasher")
		}
		s.hasher = h
		return nil
	}
}

// WithRefreshTTL sets the refresh token lifetime. Non-positive values are ignored.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock replaces the time source for token issue and expiry checks.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) error {
		if now == nil {
			return errors.New("auth: nil clock")
		}
		s.now = now
		s.issuer.now = now
		return nil
	}
}

// NewService wires a Service. issuer is required.
func NewService(users UserRepository, tokens TokenRepository, issuer *TokenIssuer, opts ...ServiceOption) (*Service, error) {
	if users == nil || tokens == nil || issuer == nil {
		return nil, errors.New("auth: users, tokens and issuer are required")
	}
	s := &Service{
		users:      users,
		tokens:     tokens,
		hasher:     NewHasher(DefaultArgonParams),
		issuer:     issuer,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	dummy, err := s.hasher.Hash("appaccess-dummy-password")
	if err != nil {
		return nil, err
	}
	s.dummyHash = dummy
	return s, nil
}

// Hasher returns the password hasher, for callers that create accounts directly.
func (s *Service) Hasher() *Hasher {
	return s.hasher
}

// Login checks credentials and starts a new refresh family. Unknown email,
// wrong password and inactive accounts all return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password, deviceInfo string) (*TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Burn comparable time so response latency does not reveal the email.
			s.hasher.Verify(password, s.dummyHash) //nolint:errcheck // result intentionally ignored
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if !ok || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	raw, err := GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	rt := &RefreshToken{
		UserID:     user.ID,
		TokenHash:  HashToken(raw),
		DeviceInfo: deviceInfo,
		ExpiresAt:  s.now().Add(s.refreshTTL),
	}
	if err := s.tokens.Create(ctx, rt); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	return s.pair(user, rt.FamilyID, raw)
}

// Register creates a viewer account from p. It never signs the caller in.
func (s *Service) Register(ctx context.Context, p Profile) (*User, error) {
	return s.CreateUser(ctx, p, access.RoleViewer)
}

// CreateUser validates p and stores a new active account with role.
func (s *Service) CreateUser(ctx context.Context, p Profile, role access.Role) (*User, error) {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	hash, err := s.hasher.Hash(p.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	user := &User{
		Name:         p.Name,
		Email:        p.Email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UserPatch lists the account fields to change. Nil fields are kept.
type UserPatch struct {
	Name     *string
	Email    *string
	Password *string
	Role     *access.Role
	IsActive *bool
}

// UpdateUser applies p to the account id. Deactivating an account or
// changing its password revokes every refresh token it holds.
func (s *Service) UpdateUser(ctx context.Context, id string, p UserPatch) (*User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if err := ValidateName(name); err != nil {
			return nil, err
		}
		user.Name = name
	}
	if p.Email != nil {
		email := NormalizeEmail(*p.Email)
		if err := ValidateEmail(email); err != nil {
			return nil, err
		}
		user.Email = email
	}
	if p.Role != nil {
		if !p.Role.IsValid() {
			return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, *p.Role)
		}
		user.Role = *p.Role
	}
	if p.IsActive != nil {
		user.IsActive = *p.IsActive
	}

	var hash string
	if p.Password != nil {
		if err := ValidatePassword(*p.Password); err != nil {
			return nil, err
		}
		if hash, err = s.hasher.Hash(*p.Password); err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	if hash != "" {
		if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
			return nil, err
		}
	}
	if hash != "" || !user.IsActive {
		if err := s.tokens.RevokeAllForUser(ctx, id); err != nil {
			return nil, fmt.Errorf("revoking sessions: %w", err)
		}
	}
	return user, nil
}

// Refresh rotates a refresh token. Presenting a token that was already
// rotated revokes its whole family and returns ErrTokenReuse.
func (s *Service) Refresh(ctx context.Context, raw string) (*TokenPair, error) {
	if raw == "" {
		return nil, ErrTokenInvalid
	}
	old, err := s.tokens.GetByTokenHash(ctx, HashToken(raw))
	if err != nil {
		return nil, err
	}

	if old.Revoked {
		if err := s.tokens.RevokeFamily(ctx, old.FamilyID); err != nil {
			return nil, fmt.Errorf("refresh: %w", err)
		}
		return nil, ErrTokenReuse
	}
	if !s.now().Before(old.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	user, err := s.users.GetByID(ctx, old.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if !user.IsActive {
		if err := s.tokens.RevokeAllForUser(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("refresh: %w", err)
		}
		return nil, ErrUserInactive
	}

	next, err := GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	rt := &RefreshToken{
		UserID:     user.ID,
		FamilyID:   old.FamilyID,
		TokenHash:  HashToken(next),
		DeviceInfo: old.DeviceInfo,
		ExpiresAt:  s.now().Add(s.refreshTTL),
	}
	if err := s.tokens.Rotate(ctx, old.ID, rt); err != nil {
		if errors.Is(err, ErrTokenRevoked) {
			// Lost a race with a concurrent rotation of the same token.
			if rerr := s.tokens.RevokeFamily(ctx, old.FamilyID); rerr != nil {
				return nil, fmt.Errorf("refresh: %w", rerr)
			}
			return nil, ErrTokenReuse
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}

	return s.pair(user, old.FamilyID, next)
}

// Authenticate parses an access token and loads the current account. The
// role is read from the database so demotions apply before token expiry.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, *Claims, error) {
	claims, err := s.issuer.Parse(token)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, ErrTokenInvalid
		}
		return nil, nil, fmt.Errorf("authenticate: %w", err)
	}
	if !user.IsActive {
		return nil, nil, ErrUserInactive
	}
	return user, claims, nil
}

// RevokeSessions revokes every refresh token held by userID.
func (s *Service) RevokeSessions(ctx context.Context, userID string) error {
	return s.tokens.RevokeAllForUser(ctx, userID)
}

// PurgeExpired deletes refresh tokens past their expiry.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx, s.now())
}

func (s *Service) pair(user *User, familyID, refresh string) (*TokenPair, error) {
	signed, err := s.issuer.Issue(user, familyID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  signed,
		RefreshToken: refresh,
		ExpiresIn:    int(s.issuer.TTL().Seconds()),
		User:         user,
	}, nil
}
