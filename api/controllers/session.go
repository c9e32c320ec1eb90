package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/laglue/storefront/api/middleware"
	"github.com/laglue/storefront/api/responses"
	"github.com/laglue/storefront/internal/storefront"
	pkgerrors "github.com/laglue/storefront/pkg/errors"
	"github.com/laglue/storefront/pkg/logger"
)

// SessionProvider resolves the cart and login state of a device.
type SessionProvider interface {
	Session(ctx context.Context, deviceID string) (*storefront.Session, error)
}

func deviceSession(w http.ResponseWriter, r *http.Request, sessions SessionProvider, logg *logger.Logger) (*storefront.Session, bool) {
	if sessions == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session registry unavailable"))
		return nil, false
	}
	session, err := sessions.Session(r.Context(), middleware.DeviceIDFromContext(r.Context()))
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	return session, true
}

func productIDParam(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "productId"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "identifiant produit invalide").
			WithDetails(map[string]any{"product_id": raw})
	}
	return id, nil
}
