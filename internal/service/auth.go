package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid admin token")
	ErrTokenExpired = errors.New("admin token expired")
)

// AdminPrincipal identifies an operator authenticated with an admin token.
type AdminPrincipal struct {
	Name string
}

// AdminAuth issues and validates the HMAC-signed bearer tokens that
// protect the key-management API. The signing secret is shared between
// the server and the token create command.
type AdminAuth struct {
	secret []byte
}

func NewAdminAuth(secret string) *AdminAuth {
	return &AdminAuth{secret: []byte(secret)}
}

// IssueToken creates a signed admin token for the named operator.
func (a *AdminAuth) IssueToken(name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := adminClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "scry",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken verifies an admin token and returns the operator identity.
func (a *AdminAuth) ValidateToken(tokenStr string) (*AdminPrincipal, error) {
	claims := &adminClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return &AdminPrincipal{Name: claims.Name}, nil
}

type adminClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}
