package controllers

import (
	"net/http"

	"github.com/laglue/storefront/api/responses"
	"github.com/laglue/storefront/api/validators"
	"github.com/laglue/storefront/internal/catalog"
	pkgerrors "github.com/laglue/storefront/pkg/errors"
	"github.com/laglue/storefront/pkg/logger"
)

// CatalogSource exposes the catalog currently in memory.
type CatalogSource interface {
	Current() *catalog.Catalog
}

type catalogResponse struct {
	Products      []catalog.Product      `json:"products"`
	Categories    catalog.Categories     `json:"categories"`
	Empty         bool                   `json:"empty"`
	Stats         catalog.Stats          `json:"stats"`
	DeliveryZones []catalog.DeliveryZone `json:"delivery_zones"`
}

const maxSearchLength = 100

func currentCatalog(w http.ResponseWriter, r *http.Request, src CatalogSource, logg *logger.Logger) (*catalog.Catalog, bool) {
	if src == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
		return nil, false
	}
	cat := src.Current()
	if cat == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "catalog not loaded yet"))
		return nil, false
	}
	return cat, true
}

// CatalogOverview returns the whole catalog with its stats and the delivery
// zones table.
func CatalogOverview(src CatalogSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cat, ok := currentCatalog(w, r, src, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, catalogResponse{
			Products:      cat.Products,
			Categories:    cat.Categories,
			Empty:         cat.Empty,
			Stats:         cat.Stats(),
			DeliveryZones: catalog.DeliveryZones(),
		})
	}
}

// CatalogProducts filters products by category, display priority and a
// free-text query.
func CatalogProducts(src CatalogSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cat, ok := currentCatalog(w, r, src, logg)
		if !ok {
			return
		}
		query := r.URL.Query()
		products := cat.Filter(catalog.Filter{
			Category: validators.SanitizeString(query.Get("category"), maxSearchLength),
			Display:  validators.SanitizeString(query.Get("display"), maxSearchLength),
			Query:    validators.SanitizeString(query.Get("q"), maxSearchLength),
		})
		responses.WriteSuccess(w, products)
	}
}

func CatalogProduct(src CatalogSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cat, ok := currentCatalog(w, r, src, logg)
		if !ok {
			return
		}
		id, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, found := cat.Product(id)
		if !found {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "Produit non trouvé").
				WithDetails(map[string]any{"product_id": id}))
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// CatalogSections returns the recent and popular rows of the home page.
func CatalogSections(src CatalogSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cat, ok := currentCatalog(w, r, src, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, cat.Sections())
	}
}
