package controllers

import (
	"net/http"
	"strings"

	"github.com/laglue/storefront/api/responses"
	"github.com/laglue/storefront/api/validators"
	"github.com/laglue/storefront/internal/auth"
	"github.com/laglue/storefront/pkg/enums"
	pkgerrors "github.com/laglue/storefront/pkg/errors"
	"github.com/laglue/storefront/pkg/logger"
	"github.com/laglue/storefront/pkg/types"
)

const (
	maxNameLength    = 120
	maxAddressLength = 500
)

type loginRequest struct {
	WhatsApp string `json:"whatsapp"`
}

type profileRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type sessionResponse struct {
	Authenticated bool          `json:"authenticated"`
	Profile       *auth.Profile `json:"profile,omitempty"`
}

// AuthLogin signs the device in with a WhatsApp number, creating the
// profile on first use.
func AuthLogin(sessions SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := deviceSession(w, r, sessions, logg)
		if !ok {
			return
		}
		var payload loginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		phone := strings.TrimSpace(payload.WhatsApp)
		if phone == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Veuillez saisir votre numéro WhatsApp"))
			return
		}
		if !auth.ValidPhone(phone) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Format de numéro WhatsApp invalide"))
			return
		}
		profile, err := session.Auth.Authenticate(r.Context(), phone)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessWithNotices(w, http.StatusOK, sessionResponse{Authenticated: true, Profile: &profile},
			[]types.Notice{types.NewNotice(enums.NoticeLevelSuccess, "Connexion réussie !")})
	}
}

func AuthLogout(sessions SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := deviceSession(w, r, sessions, logg)
		if !ok {
			return
		}
		if err := session.Auth.Logout(r.Context()); err != nil {
			// memory state is reset either way
			if logg != nil {
				logg.Error(r.Context(), "auth.logout.persist_failed", err)
			}
		}
		responses.WriteSuccessWithNotices(w, http.StatusOK, sessionResponse{Authenticated: false},
			[]types.Notice{types.NewNotice(enums.NoticeLevelInfo, "Déconnexion réussie")})
	}
}

// AuthProfile returns the signed-in profile, or authenticated=false.
func AuthProfile(sessions SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := deviceSession(w, r, sessions, logg)
		if !ok {
			return
		}
		profile, found, err := session.Auth.CurrentProfile(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !found {
			responses.WriteSuccess(w, sessionResponse{Authenticated: false})
			return
		}
		responses.WriteSuccess(w, sessionResponse{Authenticated: true, Profile: &profile})
	}
}

func AuthUpdateProfile(sessions SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := deviceSession(w, r, sessions, logg)
		if !ok {
			return
		}
		var payload profileRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profile, err := session.Auth.UpdateProfile(r.Context(),
			validators.SanitizeString(payload.Name, maxNameLength),
			validators.SanitizeString(payload.Address, maxAddressLength))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessWithNotices(w, http.StatusOK, sessionResponse{Authenticated: true, Profile: &profile},
			[]types.Notice{types.NewNotice(enums.NoticeLevelSuccess, "Profil mis à jour avec succès !")})
	}
}

// AuthOrders lists the signed-in user's order history, newest first.
func AuthOrders(sessions SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := deviceSession(w, r, sessions, logg)
		if !ok {
			return
		}
		orders, err := session.Auth.History(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders)
	}
}
