package enums

// DisplayPriority steers where the storefront features a product. Unknown
// values written by the admin tool are kept verbatim; only the known ones
// drive the home page sections.
type DisplayPriority string

const (
	DisplayPriorityNormal   DisplayPriority = "normal"
	DisplayPriorityRecent   DisplayPriority = "recent"
	DisplayPriorityPopular  DisplayPriority = "popular"
	DisplayPriorityFeatured DisplayPriority = "featured"
)

func (d DisplayPriority) String() string {
	return string(d)
}

// IsKnown reports whether the value is one the storefront acts on.
func (d DisplayPriority) IsKnown() bool {
	switch d {
	case DisplayPriorityNormal, DisplayPriorityRecent, DisplayPriorityPopular, DisplayPriorityFeatured:
		return true
	}
	return false
}
