package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/laglue/storefront/api/responses"
	"github.com/laglue/storefront/api/validators"
	"github.com/laglue/storefront/internal/checkout"
	"github.com/laglue/storefront/internal/ordercode"
	pkgerrors "github.com/laglue/storefront/pkg/errors"
	"github.com/laglue/storefront/pkg/logger"
)

const (
	defaultAdminOrdersLimit = 50
	maxAdminOrdersLimit     = 1000
)

// CodeVerifier checks the shape and date of an order code.
type CodeVerifier interface {
	Verify(code string) ordercode.Verification
}

func orderCodeParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "code"))
}

// OrderVerify reports whether a code is well formed and dated in the past.
// An invalid code is a normal answer, not an error.
func OrderVerify(verifier CodeVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if verifier == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order code verifier unavailable"))
			return
		}
		responses.WriteSuccess(w, verifier.Verify(orderCodeParam(r)))
	}
}

// OrderQRCode serves the WhatsApp link of one of the logged in shopper's
// orders as a PNG.
func OrderQRCode(sessions SessionProvider, svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		session, ok := deviceSession(w, r, sessions, logg)
		if !ok {
			return
		}
		phone := session.Auth.Phone()
		if phone == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "Vous devez être connecté pour voir cette commande"))
			return
		}
		png, err := svc.CustomerQRCode(r.Context(), orderCodeParam(r), phone)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writePNG(w, png)
	}
}

// AdminOrderQRCode serves the WhatsApp link of any logged order as a PNG.
func AdminOrderQRCode(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		png, err := svc.QRCode(r.Context(), orderCodeParam(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writePNG(w, png)
	}
}

func writePNG(w http.ResponseWriter, png []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// AdminOrders lists the shop's order log, newest first.
func AdminOrders(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultAdminOrdersLimit, 1, maxAdminOrdersLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orders, err := svc.AdminOrders(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders)
	}
}

// AdminOrder returns one logged order by code.
func AdminOrder(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		order, err := svc.FindOrder(r.Context(), orderCodeParam(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
