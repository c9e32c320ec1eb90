package controllers

import (
	"net/http"
	"time"

	"github.com/laglue/storefront/api/middleware"
	"github.com/laglue/storefront/api/responses"
	"github.com/laglue/storefront/pkg/auth"
	"github.com/laglue/storefront/pkg/config"
	pkgerrors "github.com/laglue/storefront/pkg/errors"
	"github.com/laglue/storefront/pkg/logger"
)

type deviceResponse struct {
	DeviceToken string    `json:"device_token"`
	DeviceID    string    `json:"device_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// DeviceIssue mints a new device token. The browser keeps it and sends it
// back in X-Device-Token so its cart and login survive reloads.
func DeviceIssue(cfg config.DeviceConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		deviceID := auth.NewDeviceID()
		token, err := auth.MintDeviceToken(cfg, now, deviceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint device token"))
			return
		}
		w.Header().Set(middleware.DeviceTokenHeader, token)
		responses.WriteSuccessStatus(w, http.StatusCreated, deviceResponse{
			DeviceToken: token,
			DeviceID:    deviceID.String(),
			ExpiresAt:   now.Add(cfg.TTL),
		})
	}
}
