package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken signals a missing, malformed, expired, or mis-signed credential.
var ErrInvalidToken = errors.New("auth: invalid token")

// Service issues and verifies the bearer tokens that carry tenant identity.
type Service struct {
	jwtSecret []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

// NewService creates an authentication service around a shared HS256 secret.
func NewService(jwtSecret string) *Service {
	return &Service{
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  24 * time.Hour,
		now:       time.Now,
	}
}

// WithClock overrides the time source, mainly for expiry tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// IssueToken mints a signed token for the given identity.
func (s *Service) IssueToken(id Identity) (string, error) {
	if id.TenantID == "" {
		return "", fmt.Errorf("auth: missing tenant id")
	}
	role := id.Role
	if role == "" {
		role = RoleCompany
	}
	if !isValidRole(role) {
		return "", fmt.Errorf("auth: invalid role %q", role)
	}

	claims := jwt.MapClaims{
		"tenant_id": id.TenantID,
		"role":      string(role),
		"exp":       s.now().Add(s.tokenTTL).Unix(),
		"iat":       s.now().Unix(),
	}
	if id.UserID != "" {
		claims["user_id"] = id.UserID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates a token and returns the identity it carries.
func (s *Service) VerifyToken(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	tenantID, ok := claims["tenant_id"].(string)
	if !ok || tenantID == "" {
		return Identity{}, fmt.Errorf("%w: missing tenant_id", ErrInvalidToken)
	}
	roleStr, ok := claims["role"].(string)
	if !ok {
		return Identity{}, fmt.Errorf("%w: missing role", ErrInvalidToken)
	}
	role := Role(roleStr)
	if !isValidRole(role) {
		return Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, roleStr)
	}

	id := Identity{TenantID: tenantID, Role: role}
	if userID, ok := claims["user_id"].(string); ok {
		id.UserID = userID
	}
	return id, nil
}

func isValidRole(role Role) bool {
	switch role {
	case RoleCompany, RoleTenantAdmin, RoleOperator:
		return true
	default:
		return false
	}
}
