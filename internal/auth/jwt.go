package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/garagedesk/workshop-api/internal/config"
	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims are the JWT claims issued for staff tokens
type Claims struct {
	DisplayName string `json:"name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	BranchID    string `json:"branch_id"`
	jwt.RegisteredClaims
}

// JWTValidator validates HS256 staff tokens
type JWTValidator struct {
	config *config.AuthConfig
}

// NewJWTValidator creates a new JWT validator
func NewJWTValidator(cfg *config.AuthConfig) *JWTValidator {
	return &JWTValidator{config: cfg}
}

// ValidateToken validates a JWT token and returns the user context
func (v *JWTValidator) ValidateToken(tokenString string) (*UserContext, error) {
	if v.config.JWTSecret == "" {
		return nil, fmt.Errorf("%w: no signing secret configured", ErrInvalidToken)
	}

	claims := &Claims{}
	parsedToken, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.config.JWTSecret), nil
	},
		jwt.WithIssuer(v.config.Issuer),
		jwt.WithAudience(v.config.Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !parsedToken.Valid {
		return nil, ErrInvalidToken
	}

	role := domain.UserRoleType(claims.Role)
	if role == "" {
		role = domain.RoleStaff
	}

	userCtx := &UserContext{
		DisplayName: claims.DisplayName,
		Email:       claims.Email,
		Role:        role,
	}

	if claims.Subject != "" {
		if uid, err := uuid.Parse(claims.Subject); err == nil {
			userCtx.UserID = uid
		}
	}
	if userCtx.UserID == uuid.Nil && userCtx.Email != "" {
		userCtx.UserID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(userCtx.Email))
	}

	branchID, err := uuid.Parse(claims.BranchID)
	if err != nil {
		return nil, fmt.Errorf("%w: missing or invalid branch_id claim", ErrInvalidToken)
	}
	userCtx.BranchID = branchID

	return userCtx, nil
}

// IssueToken signs a token for a user. Used by the token endpoint and tests.
func (v *JWTValidator) IssueToken(user *domain.User) (string, error) {
	if v.config.JWTSecret == "" {
		return "", fmt.Errorf("no signing secret configured")
	}

	now := time.Now()
	claims := &Claims{
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Role:        string(user.Role),
		BranchID:    user.BranchID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    v.config.Issuer,
			Audience:  jwt.ClaimStrings{v.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.config.TokenTTLDuration())),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(v.config.JWTSecret))
}
