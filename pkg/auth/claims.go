package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DeviceClaims represents the typed JWT handed to a browser. The device id
// scopes its cart and WhatsApp session inside the shared store.
type DeviceClaims struct {
	DeviceID uuid.UUID `json:"device_id"`
	jwt.RegisteredClaims
}
