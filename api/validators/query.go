package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/laglue/storefront/pkg/errors"
)

// ParseQueryInt reads an integer query parameter bounded by [min, max].
// A missing parameter yields defaultVal.
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "paramètre numérique attendu").
			WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "paramètre hors limites").
			WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// QueryFlag reports whether a boolean query parameter is set to a true value
// ("1", "true", "yes", "oui"). Anything else, including garbage, is false.
func QueryFlag(r *http.Request, key string) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get(key))) {
	case "1", "true", "yes", "oui":
		return true
	}
	return false
}
