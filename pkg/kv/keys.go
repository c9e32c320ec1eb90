package kv

import "strings"

// Fixed keys shared with the storefront admin tool.
const (
	KeyProducts      = "laglue_products"
	KeyMainData      = "laglue_main_data"
	KeyCategories    = "laglue_categories"
	KeyCart          = "laglue_cart"
	KeyAuth          = "laglue_auth"
	KeyProfiles      = "laglue_profiles"
	KeyOrders        = "laglue_orders"
	KeyAdminOrders   = "laglue_admin_orders"
	KeyOrderCodes    = "laglue_order_codes"
	KeyLastSync      = "laglue_last_sync"
	KeySchemaVersion = "laglue_schema_version"
	KeyMigrationLock = "laglue_migration_lock"
)

const (
	devicePrefix   = "device"
	instancePrefix = "instance"
)

// DeviceKey scopes a per-browser key (cart, auth session) to one device.
func DeviceKey(deviceID, key string) string {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return key
	}
	return devicePrefix + ":" + deviceID + ":" + key
}

// InstanceKey scopes a per-process key (the last sync stamp) to one
// running instance, since every replica holds its own catalog copy.
func InstanceKey(instanceID, key string) string {
	instanceID = strings.TrimSpace(instanceID)
	if instanceID == "" {
		return key
	}
	return instancePrefix + ":" + instanceID + ":" + key
}

// IsCatalogKey reports whether a change to key can alter the catalog view.
func IsCatalogKey(key string) bool {
	switch key {
	case KeyProducts, KeyCategories, KeyMainData, KeySchemaVersion:
		return true
	}
	if strings.HasPrefix(key, devicePrefix+":") || strings.HasPrefix(key, instancePrefix+":") {
		return false
	}
	lower := strings.ToLower(key)
	return strings.Contains(lower, "laglue") &&
		(strings.Contains(lower, "product") || strings.Contains(lower, "categor"))
}
