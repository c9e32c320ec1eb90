package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/laglue/storefront/pkg/config"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// NewDeviceID returns a fresh random device identifier.
func NewDeviceID() uuid.UUID {
	return uuid.New()
}

// MintDeviceToken issues a signed JWT for deviceID using the configured TTL.
func MintDeviceToken(cfg config.DeviceConfig, now time.Time, deviceID uuid.UUID) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("device token secret is required")
	}
	if cfg.Issuer == "" {
		return "", fmt.Errorf("device token issuer is required")
	}
	if cfg.TTL <= 0 {
		return "", fmt.Errorf("device token ttl must be positive")
	}
	if deviceID == uuid.Nil {
		return "", fmt.Errorf("device id is required")
	}

	claims := DeviceClaims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   deviceID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing device token: %w", err)
	}
	return signed, nil
}

// ParseDeviceToken validates the JWT string and returns typed claims.
func ParseDeviceToken(cfg config.DeviceConfig, tokenString string) (*DeviceClaims, error) {
	return ParseDeviceTokenAt(cfg, tokenString, time.Now())
}

// ParseDeviceTokenAt validates the token as of now.
func ParseDeviceTokenAt(cfg config.DeviceConfig, tokenString string, now time.Time) (*DeviceClaims, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("device token secret is required")
	}

	claims := &DeviceClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, err
	}
	if claims.DeviceID == uuid.Nil {
		return nil, fmt.Errorf("device token missing device id")
	}
	return claims, nil
}

// NeedsRefresh reports whether a token has lived past half of its lifetime.
// The device middleware then hands the browser a new token for the same
// device so an active shopper never loses their cart to expiry.
func NeedsRefresh(claims *DeviceClaims, now time.Time) bool {
	if claims == nil || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return false
	}
	issued, expires := claims.IssuedAt.Time, claims.ExpiresAt.Time
	if !expires.After(issued) {
		return false
	}
	return now.Sub(issued) >= expires.Sub(issued)/2
}
