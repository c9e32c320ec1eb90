package controllers

import (
	"net/http"

	"github.com/laglue/storefront/api/responses"
	"github.com/laglue/storefront/api/validators"
	"github.com/laglue/storefront/internal/checkout"
	"github.com/laglue/storefront/pkg/enums"
	pkgerrors "github.com/laglue/storefront/pkg/errors"
	"github.com/laglue/storefront/pkg/logger"
	"github.com/laglue/storefront/pkg/types"
)

type checkoutRequest struct {
	Name      string `json:"name"`
	WhatsApp  string `json:"whatsapp"`
	Address   string `json:"address"`
	ClearCart bool   `json:"clear_cart"`
}

// Checkout submits the device's cart. The response carries the order code
// and the wa.me link the browser opens to send the order. The cart is kept
// unless clear_cart is set.
func Checkout(sessions SessionProvider, svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		session, ok := deviceSession(w, r, sessions, logg)
		if !ok {
			return
		}
		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		receipt, err := svc.Submit(r.Context(), session.Cart, session.Auth, checkout.Request{
			Name:      validators.SanitizeString(payload.Name, maxNameLength),
			WhatsApp:  payload.WhatsApp,
			Address:   validators.SanitizeString(payload.Address, maxAddressLength),
			ClearCart: payload.ClearCart,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessWithNotices(w, http.StatusCreated, receipt,
			[]types.Notice{types.NewNotice(enums.NoticeLevelSuccess, "Commande envoyée avec succès !")})
	}
}
