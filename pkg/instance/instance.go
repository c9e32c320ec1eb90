package instance

import (
	"os"

	"github.com/laglue/storefront/pkg/env"
)

const fallbackID = "storefront-0"

// GetID returns the process identifier used for per-instance store keys:
// LAGLUE_INSTANCE_ID when set, else the hostname.
func GetID() string {
	if id := env.Get("LAGLUE_INSTANCE_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
