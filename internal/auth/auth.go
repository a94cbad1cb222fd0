package auth

import (
	"errors"
	"time"

	"chart-extension/internal/models"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

// Claim names carried by a call-context token.
const (
	ClaimInstallationID = "installation_id"
	ClaimAccountID      = "account_id"
	ClaimEnvironmentID  = "environment_id"
	ClaimSubject        = "sub"
)

// ErrMissingInstallation is returned when a verified token does not name an installation.
var ErrMissingInstallation = errors.New("call context has no installation")

// Service encapsulates validation (and issuance, for tooling and tests) of call-context JWTs.
type Service struct {
	tokenAuth *jwtauth.JWTAuth
}

// New creates a new auth service sharing secret with the platform.
func New(secret []byte) *Service {
	return &Service{
		tokenAuth: jwtauth.New("HS256", secret, nil),
	}
}

// IssueToken returns a signed JWT describing cc, valid for ttl.
func (s *Service) IssueToken(cc models.CallContext, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   cc.UserID,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	_, tokenString, err := s.tokenAuth.Encode(map[string]interface{}{
		ClaimInstallationID: cc.InstallationID,
		ClaimAccountID:      cc.AccountID,
		ClaimEnvironmentID:  cc.EnvironmentID,
		ClaimSubject:        claims.Subject,
		"exp":               claims.ExpiresAt.Time.Unix(),
		"iat":               claims.IssuedAt.Time.Unix(),
	})
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// CallContextFromClaims maps verified token claims onto a CallContext.
func CallContextFromClaims(claims map[string]interface{}) (models.CallContext, error) {
	cc := models.CallContext{
		InstallationID: stringClaim(claims, ClaimInstallationID),
		AccountID:      stringClaim(claims, ClaimAccountID),
		EnvironmentID:  stringClaim(claims, ClaimEnvironmentID),
		UserID:         stringClaim(claims, ClaimSubject),
	}
	if cc.InstallationID == "" {
		return models.CallContext{}, ErrMissingInstallation
	}
	return cc, nil
}

func stringClaim(claims map[string]interface{}, key string) string {
	v, _ := claims[key].(string)
	return v
}

// TokenAuth exposes the underlying jwtauth instance for middleware use.
func (s *Service) TokenAuth() *jwtauth.JWTAuth {
	return s.tokenAuth
}
