package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/gitclass/gitclass-backend/internal/apperr"
	"github.com/gitclass/gitclass-backend/internal/config"
	"github.com/gitclass/gitclass-backend/internal/model"
	"github.com/gitclass/gitclass-backend/internal/repository"
)

// ErrInvalidCredentials is returned when username or password do not match.
var ErrInvalidCredentials = errors.New("invalid credentials")

// TokenClaims extends JWT standard claims with the user id. Authorization
// data is never embedded in the token; it is loaded fresh (or from cache)
// on every request so role changes take effect within the cache TTL.
type TokenClaims struct {
	jwt.RegisteredClaims
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
}

// AuthService handles authentication, JWT, and the claims cache.
type AuthService struct {
	cfg         *config.Config
	rdb         *redis.Client
	users       *repository.UserRepository
	memberships *repository.MembershipRepository
	groups      *repository.GroupRepository
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	cfg *config.Config,
	rdb *redis.Client,
	users *repository.UserRepository,
	memberships *repository.MembershipRepository,
	groups *repository.GroupRepository,
) *AuthService {
	return &AuthService{cfg: cfg, rdb: rdb, users: users, memberships: memberships, groups: groups}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Login verifies credentials and returns a signed token plus the user.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *model.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if apperr.ClassOf(err) == apperr.ClassNotFound {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := s.CheckPassword(user.PasswordHash, password); err != nil {
		return "", nil, err
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// GenerateToken creates a JWT for a user.
func (s *AuthService) GenerateToken(user *model.User) (string, error) {
	now := time.Now()

	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		UserID:   user.ID,
		Username: user.Username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the token claims.
func (s *AuthService) ValidateToken(tokenStr string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &TokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// CurrentUser returns the authenticated user's profile.
func (s *AuthService) CurrentUser(ctx context.Context, userID int) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

// LoadClaims returns the user's authorization snapshot, from Redis when
// cached and otherwise rebuilt from the database. The snapshot is
// immutable once built; role changes are picked up by invalidation or
// TTL expiry, never by mutating a cached entry.
func (s *AuthService) LoadClaims(ctx context.Context, userID int) (*model.Claims, error) {
	cacheKey := config.CacheKey.UserClaimsKey(userID)

	cached, err := s.rdb.Get(ctx, cacheKey).Result()
	if err == nil {
		var claims model.Claims
		if err := json.Unmarshal([]byte(cached), &claims); err == nil {
			return &claims, nil
		}
		// Corrupt cache entry, rebuild below.
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get claims cache: %w", err)
	}

	claims, err := s.buildClaims(ctx, userID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return nil, fmt.Errorf("marshal claims: %w", err)
	}
	if err := s.rdb.Set(ctx, cacheKey, payload, s.cfg.ClaimsCacheTTL).Err(); err != nil {
		return nil, fmt.Errorf("set claims cache: %w", err)
	}
	return claims, nil
}

// InvalidateClaims drops a user's cached claims so the next request
// rebuilds them. Called after any membership or group mutation.
func (s *AuthService) InvalidateClaims(ctx context.Context, userID int) error {
	return s.rdb.Del(ctx, config.CacheKey.UserClaimsKey(userID)).Err()
}

func (s *AuthService) buildClaims(ctx context.Context, userID int) (*model.Claims, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	courseMemberships, err := s.memberships.ListCourseMembershipsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list course memberships: %w", err)
	}
	orgMemberships, err := s.memberships.ListOrgMembershipsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list org memberships: %w", err)
	}
	groupIDs, err := s.groups.ListGroupIDsByStudent(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list group ids: %w", err)
	}
	return model.ClaimsFromMemberships(user, courseMemberships, orgMemberships, groupIDs), nil
}
