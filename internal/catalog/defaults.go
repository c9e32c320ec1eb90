package catalog

import "github.com/shopspring/decimal"

// DefaultCategories is served when the store holds no category map.
func DefaultCategories() Categories {
	return Categories{
		"smartphones":    {Name: "Smartphones", Icon: "📱", Description: "Téléphones intelligents de toutes marques"},
		"ordinateurs":    {Name: "Ordinateurs", Icon: "💻", Description: "Ordinateurs portables et de bureau"},
		"tablettes":      {Name: "Tablettes", Icon: "📋", Description: "Tablettes tactiles pour tous usages"},
		"audio":          {Name: "Audio", Icon: "🎧", Description: "Écouteurs, enceintes et accessoires audio"},
		"accessoires":    {Name: "Accessoires", Icon: "⌚", Description: "Montres connectées et accessoires tech"},
		"electromenager": {Name: "Électroménager", Icon: "🏠", Description: "Appareils électroménagers pour la maison"},
		"alimentation":   {Name: "Alimentation", Icon: "🍽️", Description: "Produits alimentaires et boissons"},
		"maison":         {Name: "Maison & Jardin", Icon: "🏡", Description: "Décoration, mobilier et jardinage"},
		"mode":           {Name: "Mode & Style", Icon: "👕", Description: "Vêtements et accessoires de mode"},
		"beaute":         {Name: "Beauté & Santé", Icon: "🧴", Description: "Produits de beauté et de bien-être"},
		"gaming":         {Name: "Gaming", Icon: "🎮", Description: "Jeux vidéo et accessoires gaming"},
		"photo":          {Name: "Photo/Vidéo", Icon: "📷", Description: "Appareils photo et matériel vidéo"},
		"sport":          {Name: "Sport & Loisirs", Icon: "⚽", Description: "Équipements sportifs et loisirs"},
	}
}

const (
	otherCategoryName   = "Autre"
	otherCategoryIcon   = "📦"
	unknownCategoryName = "Catégorie inconnue"
)

// DeliveryZone is an informational shipping tier shown at checkout.
type DeliveryZone struct {
	Key   string          `json:"key"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Time  string          `json:"time"`
}

// DeliveryZones lists the zones in display order.
func DeliveryZones() []DeliveryZone {
	return []DeliveryZone{
		{Key: "yaounde_centre", Name: "Centre-ville Yaoundé", Price: decimal.NewFromInt(1000), Time: "2-4h"},
		{Key: "yaounde_quartiers", Name: "Quartiers de Yaoundé", Price: decimal.NewFromInt(1500), Time: "4-6h"},
		{Key: "douala", Name: "Douala", Price: decimal.NewFromInt(3000), Time: "1-2 jours"},
		{Key: "autres", Name: "Autres villes", Price: decimal.NewFromInt(5000), Time: "2-5 jours"},
	}
}
