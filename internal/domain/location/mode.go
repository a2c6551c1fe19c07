package location

// SubscriptionMode identifies which live-subscription mode is active.
// Exactly one mode is active at a time; owned by the lifecycle coordinator.
type SubscriptionMode int

const (
	// ModeInactive means no live subscriptions are running.
	ModeInactive SubscriptionMode = iota
	// ModeAreaSearch means a proximity query watch is running.
	ModeAreaSearch
	// ModeTargetedWatch means an explicit user-ID watch set is running.
	ModeTargetedWatch
)

func (m SubscriptionMode) String() string {
	switch m {
	case ModeInactive:
		return "inactive"
	case ModeAreaSearch:
		return "area_search"
	case ModeTargetedWatch:
		return "targeted_watch"
	default:
		return "unknown"
	}
}

// ConsentState is the live permission/consent snapshot consumed by the
// lifecycle coordinator.
type ConsentState struct {
	LocationPermissionGranted bool `json:"location_permission_granted"`
	GPSEnabled                bool `json:"gps_enabled"`
	PrivacyOptedIn            bool `json:"privacy_opted_in"`
}

// CanSearch reports whether area search may be entered.
func (c ConsentState) CanSearch() bool {
	return c.LocationPermissionGranted && c.GPSEnabled
}

// CanPublish reports whether the user's own position may be written.
// Publishing additionally requires the privacy opt-in.
func (c ConsentState) CanPublish() bool {
	return c.LocationPermissionGranted && c.GPSEnabled && c.PrivacyOptedIn
}
