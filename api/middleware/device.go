package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/laglue/storefront/api/responses"
	"github.com/laglue/storefront/pkg/auth"
	"github.com/laglue/storefront/pkg/config"
	pkgerrors "github.com/laglue/storefront/pkg/errors"
	"github.com/laglue/storefront/pkg/logger"
)

// DeviceTokenHeader carries the signed device token issued by POST /device.
const DeviceTokenHeader = "X-Device-Token"

// Device validates the device token and seeds the request context with the
// device id. The token is echoed back on every response; past half of its
// lifetime a newly minted token for the same device is sent instead.
func Device(cfg config.DeviceConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return deviceWithClock(cfg, logg, time.Now)
}

func deviceWithClock(cfg config.DeviceConfig, logg *logger.Logger, now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(DeviceTokenHeader))
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "device token required"))
				return
			}

			claims, err := auth.ParseDeviceTokenAt(cfg, token, now())
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid device token"))
				return
			}

			deviceID := claims.DeviceID.String()
			ctx := WithDeviceID(r.Context(), deviceID)
			if logg != nil {
				ctx = logg.WithDeviceID(ctx, deviceID)
			}
			if auth.NeedsRefresh(claims, now()) {
				if fresh, err := auth.MintDeviceToken(cfg, now(), claims.DeviceID); err == nil {
					token = fresh
				} else if logg != nil {
					logg.Error(ctx, "device.token_refresh_failed", err)
				}
			}
			w.Header().Set(DeviceTokenHeader, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
