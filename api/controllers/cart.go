package controllers

import (
	"net/http"

	"github.com/laglue/storefront/api/responses"
	"github.com/laglue/storefront/api/validators"
	"github.com/laglue/storefront/internal/cart"
	pkgerrors "github.com/laglue/storefront/pkg/errors"
	"github.com/laglue/storefront/pkg/logger"
)

type addItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

func writeCart(w http.ResponseWriter, status int, result cart.Result) {
	responses.WriteSuccessWithNotices(w, status, result, result.Notices)
}

func CartGet(sessions SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := deviceSession(w, r, sessions, logg)
		if !ok {
			return
		}
		writeCart(w, http.StatusOK, session.Cart.Snapshot())
	}
}

// CartAddItem adds one unit of a catalog product.
func CartAddItem(sessions SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := deviceSession(w, r, sessions, logg)
		if !ok {
			return
		}
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := session.Cart.Add(r.Context(), payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, http.StatusOK, result)
	}
}

// CartSetQuantity sets a line quantity; zero or less removes the line.
func CartSetQuantity(sessions SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := deviceSession(w, r, sessions, logg)
		if !ok {
			return
		}
		id, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload setQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, http.StatusOK, session.Cart.SetQuantity(r.Context(), id, *payload.Quantity))
	}
}

func CartRemoveItem(sessions SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := deviceSession(w, r, sessions, logg)
		if !ok {
			return
		}
		id, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, http.StatusOK, session.Cart.Remove(r.Context(), id))
	}
}

// CartClear empties the cart. The caller must pass confirm=true, standing in
// for the confirmation dialog of the storefront.
func CartClear(sessions SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := deviceSession(w, r, sessions, logg)
		if !ok {
			return
		}
		if !validators.QueryFlag(r, "confirm") {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Confirmation requise pour vider le panier").
				WithDetails(map[string]any{"field": "confirm"}))
			return
		}
		writeCart(w, http.StatusOK, session.Cart.Clear(r.Context()))
	}
}
