package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleStudent = "student"

	kindAccess  = "access"
	kindRefresh = "refresh"
)

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	RefreshID    string
	AccessExp    time.Time
	RefreshExp   time.Time
}

// Claims represents JWT payload. Subject is the student's roll number.
type Claims struct {
	Role     string `json:"role"`
	DeviceID string `json:"device_id,omitempty"`
	Kind     string `json:"kind"`
	jwt.RegisteredClaims
}

// Issuer signs tokens with an HS256 key.
type Issuer struct {
	Name       string
	Key        []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer creates an issuer with the given lifetimes.
func NewIssuer(name, key string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{Name: name, Key: []byte(key), AccessTTL: accessTTL, RefreshTTL: refreshTTL, now: time.Now}
}

// Issue issues signed access and refresh tokens. The refresh token carries a
// unique id so it can be redeemed once.
func (i *Issuer) Issue(subject, role, deviceID string) (TokenPair, error) {
	now := i.now()
	accessExp := now.Add(i.AccessTTL)
	refreshExp := now.Add(i.RefreshTTL)

	accessToken, err := i.sign(Claims{
		Role:     role,
		DeviceID: deviceID,
		Kind:     kindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.Name,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(accessExp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	if err != nil {
		return TokenPair{}, err
	}

	refreshID := uuid.NewString()
	refreshToken, err := i.sign(Claims{
		Role:     role,
		DeviceID: deviceID,
		Kind:     kindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        refreshID,
			Issuer:    i.Name,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(refreshExp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		RefreshID:    refreshID,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (i *Issuer) sign(c Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.Key)
}

// ParseAccess validates an access token and returns claims.
func (i *Issuer) ParseAccess(tokenStr string) (Claims, error) {
	return i.parse(tokenStr, kindAccess)
}

// ParseRefresh validates a refresh token and returns claims.
func (i *Issuer) ParseRefresh(tokenStr string) (Claims, error) {
	return i.parse(tokenStr, kindRefresh)
}

func (i *Issuer) parse(tokenStr, kind string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return i.Key, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if i.Name != "" && claims.Issuer != i.Name {
		return Claims{}, errors.New("issuer mismatch")
	}
	if claims.Kind != kind {
		return Claims{}, errors.New("wrong token kind")
	}
	return *claims, nil
}
